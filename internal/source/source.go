// Package source reads ERC-20 Transfer logs for the tracked stablecoins,
// either from an Ethereum JSON-RPC node or from a deterministic generator.
package source

import (
	"context"
	"fmt"

	"github.com/navid-fn/flowradar/internal/models"
)

// EventSource is the chain reader consumed by the flow service. Every call
// may fail; callers decide what a failure means.
type EventSource interface {
	// QueryTransferLogs returns the Transfer logs emitted by contract in the
	// inclusive block range [fromBlock, toBlock].
	QueryTransferLogs(ctx context.Context, contract string, fromBlock, toBlock uint64) ([]models.RawTransfer, error)
	CurrentBlockNumber(ctx context.Context) (uint64, error)
}

// FetchError reports which upstream operation failed.
type FetchError struct {
	Op       string
	Contract string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Contract == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Contract, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HTTPStatusError is a non-2xx response from the node.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d", e.StatusCode)
}
