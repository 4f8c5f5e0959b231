package model

import "time"

type FlowRecord struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	Type         string    `gorm:"column:type" json:"type"`
	Stablecoin   string    `gorm:"column:stablecoin" json:"stablecoin"`
	Amount       float64   `gorm:"column:amount;type:Float64" json:"amount"`
	Impact       string    `gorm:"column:impact" json:"impact"`
	Description  string    `gorm:"column:description" json:"description"`
	TxHash       string    `gorm:"column:tx_hash" json:"txHash"`
	FromAddress  string    `gorm:"column:from_address" json:"fromAddress,omitempty"`
	ToAddress    string    `gorm:"column:to_address" json:"toAddress,omitempty"`
	ExchangeName string    `gorm:"column:exchange_name" json:"exchangeName,omitempty"`
	BlockNumber  uint64    `gorm:"column:block_number" json:"blockNumber,omitempty"`
	EventTime    time.Time `gorm:"column:event_time;type:DateTime('UTC')" json:"timestamp"`
	InsertedAt   time.Time `gorm:"column:inserted_at;type:DateTime('UTC');default:now()" json:"insertedAt"`
}

func (FlowRecord) TableName() string {
	return "capital_flow"
}

type TypeCount struct {
	Type   string  `json:"type"`
	Count  int64   `json:"count"`
	Volume float64 `json:"volume"`
}
