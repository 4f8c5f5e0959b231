package source

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/flowradar/internal/models"
)

// TransferTopic is keccak256("Transfer(address,address,uint256)").
const TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

const (
	DefaultMaxBlockRange = 2000
	DefaultBlockTime     = 12 * time.Second
)

var errMalformedLog = errors.New("malformed transfer log")

type LiveConfig struct {
	RPC RPCConfig

	// MaxBlockRange is the widest eth_getLogs window sent in one request.
	MaxBlockRange uint64
	BlockTime     time.Duration
}

// LiveSource reads Transfer logs from an Ethereum node.
type LiveSource struct {
	client    *rpcClient
	maxRange  uint64
	blockTime time.Duration
	logger    logrus.FieldLogger
}

func NewLiveSource(cfg LiveConfig, logger logrus.FieldLogger) *LiveSource {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = DefaultMaxBlockRange
	}
	if cfg.BlockTime <= 0 {
		cfg.BlockTime = DefaultBlockTime
	}
	return &LiveSource{
		client:    newRPCClient(cfg.RPC, logger),
		maxRange:  cfg.MaxBlockRange,
		blockTime: cfg.BlockTime,
		logger:    logger,
	}
}

func (s *LiveSource) CurrentBlockNumber(ctx context.Context) (uint64, error) {
	var hex string
	if err := s.client.call(ctx, "eth_blockNumber", []any{}, &hex); err != nil {
		return 0, &FetchError{Op: "eth_blockNumber", Err: err}
	}
	n, err := parseQuantity(hex)
	if err != nil {
		return 0, &FetchError{Op: "eth_blockNumber", Err: err}
	}
	return n, nil
}

type logFilter struct {
	Address   string   `json:"address"`
	FromBlock string   `json:"fromBlock"`
	ToBlock   string   `json:"toBlock"`
	Topics    []string `json:"topics"`
}

type rpcLog struct {
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	BlockTimestamp  string   `json:"blockTimestamp"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
	Removed         bool     `json:"removed"`
}

type blockHeader struct {
	Number    string `json:"number"`
	Timestamp string `json:"timestamp"`
}

func (s *LiveSource) QueryTransferLogs(ctx context.Context, contract string, fromBlock, toBlock uint64) ([]models.RawTransfer, error) {
	if fromBlock > toBlock {
		return nil, nil
	}

	var logs []rpcLog
	for start := fromBlock; start <= toBlock; {
		end := toBlock
		if toBlock-start >= s.maxRange {
			end = start + s.maxRange - 1
		}

		var chunk []rpcLog
		err := s.client.call(ctx, "eth_getLogs", []any{logFilter{
			Address:   contract,
			FromBlock: toQuantity(start),
			ToBlock:   toQuantity(end),
			Topics:    []string{TransferTopic},
		}}, &chunk)
		if err != nil {
			return nil, &FetchError{Op: "eth_getLogs", Contract: contract, Err: err}
		}
		logs = append(logs, chunk...)

		if end == toBlock {
			break
		}
		start = end + 1
	}

	est := &timestampEstimator{source: s}
	transfers := make([]models.RawTransfer, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		raw, err := decodeTransfer(l)
		if err != nil {
			return nil, &FetchError{Op: "decode", Contract: contract, Err: err}
		}
		if l.BlockTimestamp != "" {
			ts, err := parseQuantity(l.BlockTimestamp)
			if err != nil {
				return nil, &FetchError{Op: "decode", Contract: contract, Err: err}
			}
			raw.Timestamp = time.Unix(int64(ts), 0).UTC()
		} else {
			raw.Timestamp, err = est.estimate(ctx, raw.BlockNumber)
			if err != nil {
				return nil, &FetchError{Op: "eth_getBlockByNumber", Contract: contract, Err: err}
			}
		}
		transfers = append(transfers, raw)
	}

	s.logger.WithFields(logrus.Fields{
		"contract":  contract,
		"fromBlock": fromBlock,
		"toBlock":   toBlock,
		"transfers": len(transfers),
	}).Debug("fetched transfer logs")

	return transfers, nil
}

// timestampEstimator derives block times from the head block, fetched at
// most once per query.
type timestampEstimator struct {
	source *LiveSource
	head   *blockHeader
	number uint64
	time   time.Time
}

func (e *timestampEstimator) estimate(ctx context.Context, block uint64) (time.Time, error) {
	if e.head == nil {
		var h blockHeader
		if err := e.source.client.call(ctx, "eth_getBlockByNumber", []any{"latest", false}, &h); err != nil {
			return time.Time{}, err
		}
		n, err := parseQuantity(h.Number)
		if err != nil {
			return time.Time{}, err
		}
		ts, err := parseQuantity(h.Timestamp)
		if err != nil {
			return time.Time{}, err
		}
		e.head, e.number, e.time = &h, n, time.Unix(int64(ts), 0).UTC()
	}
	if block >= e.number {
		return e.time, nil
	}
	return e.time.Add(-time.Duration(e.number-block) * e.source.blockTime), nil
}

func decodeTransfer(l rpcLog) (models.RawTransfer, error) {
	if len(l.Topics) != 3 || !strings.EqualFold(l.Topics[0], TransferTopic) {
		return models.RawTransfer{}, fmt.Errorf("%w: unexpected topics %v", errMalformedLog, l.Topics)
	}
	from, err := topicAddress(l.Topics[1])
	if err != nil {
		return models.RawTransfer{}, err
	}
	to, err := topicAddress(l.Topics[2])
	if err != nil {
		return models.RawTransfer{}, err
	}

	data := strings.TrimPrefix(l.Data, "0x")
	value := new(big.Int)
	if data != "" {
		if _, ok := value.SetString(data, 16); !ok {
			return models.RawTransfer{}, fmt.Errorf("%w: bad data %q", errMalformedLog, l.Data)
		}
	}

	block, err := parseQuantity(l.BlockNumber)
	if err != nil {
		return models.RawTransfer{}, err
	}
	index, err := parseQuantity(l.LogIndex)
	if err != nil {
		return models.RawTransfer{}, err
	}

	return models.RawTransfer{
		From:        from,
		To:          to,
		Value:       value,
		TxHash:      l.TransactionHash,
		LogIndex:    index,
		BlockNumber: block,
	}, nil
}

// topicAddress extracts the address from a 32-byte left padded topic.
func topicAddress(topic string) (string, error) {
	hex := strings.TrimPrefix(topic, "0x")
	if len(hex) != 64 {
		return "", fmt.Errorf("%w: bad address topic %q", errMalformedLog, topic)
	}
	return "0x" + strings.ToLower(hex[24:]), nil
}

func parseQuantity(s string) (uint64, error) {
	if !strings.HasPrefix(s, "0x") {
		return 0, fmt.Errorf("%w: bad quantity %q", errMalformedLog, s)
	}
	n, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad quantity %q", errMalformedLog, s)
	}
	return n, nil
}

func toQuantity(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}
