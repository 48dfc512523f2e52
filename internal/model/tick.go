package model

import (
	"math"
	"time"
)

// Tick represents a single price observation for an instrument.
// Symbols are exchange-prefixed where known, e.g. "NSE:SBIN-EQ" or "BTC/USD".
type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume,omitempty"`
	TS     time.Time `json:"ts"` // UTC timestamp
}

// Valid reports whether the tick is well-formed enough to process.
// Malformed ticks (empty symbol, non-finite or non-positive price) are
// dropped by the pipeline with a logged warning.
func (t Tick) Valid() bool {
	if t.Symbol == "" {
		return false
	}
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0 {
		return false
	}
	return true
}
