package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/navid-fn/flowradar/internal/faulttolerance"
)

type RPCConfig struct {
	URL               string
	RequestsPerSecond float64
	RequestTimeout    time.Duration
}

// rpcClient is a minimal Ethereum JSON-RPC client. Every call waits on the
// rate limiter and goes through the circuit breaker with retries.
type rpcClient struct {
	url     string
	httpc   *http.Client
	limiter *rate.Limiter
	breaker *faulttolerance.CircuitBreaker
	retryer *faulttolerance.Retryer
	nextID  atomic.Uint64
}

func newRPCClient(cfg RPCConfig, logger logrus.FieldLogger) *rpcClient {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	retryCfg := faulttolerance.DefaultRetryConfig("rpc")
	retryCfg.Retryable = isTransient

	return &rpcClient{
		url:     cfg.URL,
		httpc:   &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1),
		breaker: faulttolerance.NewCircuitBreaker(faulttolerance.CircuitBreakerConfig{
			MaxFailures: 5,
			OpenTimeout: 30 * time.Second,
			Name:        "rpc",
		}, logger),
		retryer: faulttolerance.NewRetryer(retryCfg, logger),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *rpcClient) call(ctx context.Context, method string, params any, result any) error {
	return c.retryer.ExecuteWithCircuitBreaker(ctx, c.breaker, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.do(ctx, method, params, result)
	})
}

func (c *rpcClient) do(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &HTTPStatusError{StatusCode: resp.StatusCode}
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if rr.Error != nil {
		return &RPCError{Code: rr.Error.Code, Message: rr.Error.Message}
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(rr.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// isTransient reports whether a failed call is worth retrying. Client side
// HTTP errors other than 429 and JSON-RPC request errors are permanent.
func isTransient(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		// -32600..-32602 are malformed or invalid requests.
		return rpcErr.Code > -32600 || rpcErr.Code < -32602
	}
	return true
}
