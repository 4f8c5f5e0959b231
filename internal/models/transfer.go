package models

import (
	"math/big"
	"time"
)

// ZeroAddress is the mint source and burn sink of ERC-20 supply changes.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// RawTransfer is an undecoded ERC-20 Transfer log as yielded by an event source.
type RawTransfer struct {
	// ID overrides the txHash-logIndex identifier when set (synthetic data).
	ID string

	From  string
	To    string
	Value *big.Int

	TxHash      string
	LogIndex    uint64
	BlockNumber uint64
	Timestamp   time.Time

	// GasUsed is only known when the source fetched the receipt.
	GasUsed *uint64
}

// Stablecoin is the contract metadata of a tracked token.
type Stablecoin struct {
	Symbol   string `yaml:"symbol" json:"symbol"`
	Address  string `yaml:"address" json:"address"`
	Decimals int32  `yaml:"decimals" json:"decimals"`
}
