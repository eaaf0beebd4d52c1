package chaindata

import (
	"fmt"
	"time"
)

// Transaction is one raw transaction as returned by the chain-data
// provider, with decoded log events attached.
type Transaction struct {
	BlockSignedAt string     `json:"block_signed_at"` // RFC3339
	BlockHeight   int64      `json:"block_height"`
	TxHash        string     `json:"tx_hash"`
	FromAddress   string     `json:"from_address"`
	ToAddress     string     `json:"to_address"`
	Value         string     `json:"value"` // native value, wei integer string
	LogEvents     []LogEvent `json:"log_events"`
}

// TimestampMs parses BlockSignedAt into Unix milliseconds.
func (t *Transaction) TimestampMs() (int64, error) {
	ts, err := time.Parse(time.RFC3339, t.BlockSignedAt)
	if err != nil {
		return 0, fmt.Errorf("parse block_signed_at %q: %w", t.BlockSignedAt, err)
	}
	return ts.UnixMilli(), nil
}

// LogEvent is one emitted log with optional decoded payload.
// SenderAddress is the emitting contract (the token contract for
// Transfer events).
type LogEvent struct {
	SenderAddress              string        `json:"sender_address"`
	SenderContractTickerSymbol string        `json:"sender_contract_ticker_symbol"`
	Decoded                    *DecodedEvent `json:"decoded"`
}

// DecodedEvent is a decoded log event. For Transfer events,
// params[0]=from, params[1]=to, params[2]=amount.
type DecodedEvent struct {
	Name   string         `json:"name"`
	Params []DecodedParam `json:"params"`
}

// DecodedParam is one decoded event parameter.
type DecodedParam struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
