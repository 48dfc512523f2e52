package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Direction represents the side of a trading signal.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Signal lifecycle statuses tracked by the signal monitor.
const (
	SignalActive      = "Active"
	SignalTargetHit   = "Target Hit"
	SignalStoplossHit = "Stoploss Hit"
)

// GeneratedSignal is a finished trade signal handed to the sink for
// persistence and fan-out. The engine does not own its lifecycle beyond
// construction and the per-strategy last-signal memory used for cooldown.
type GeneratedSignal struct {
	ID          int64     `json:"id,omitempty"` // assigned by the store
	StrategyID  string    `json:"strategy_id"`
	Symbol      string    `json:"symbol"`
	Segment     string    `json:"segment"`
	Direction   Direction `json:"direction"`
	EntryPrice  float64   `json:"entry_price"`
	StopLoss    float64   `json:"stop_loss"`
	Targets     []float64 `json:"targets"`
	Reason      string    `json:"reason"`
	GeneratedAt time.Time `json:"generated_at"`
}

// JSON returns the JSON-encoded signal.
func (s *GeneratedSignal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// MapSegment derives the market segment from an exchange-prefixed symbol.
// Symbols without an exchange prefix default to EQUITY.
func MapSegment(symbol string) string {
	exchange, sym, ok := strings.Cut(symbol, ":")
	if !ok {
		return "EQUITY"
	}
	if exchange == "NSE" && strings.HasSuffix(sym, "-EQ") {
		return "EQUITY"
	}
	switch exchange {
	case "NSE":
		return "FNO"
	case "BSE":
		return "EQUITY"
	case "MCX":
		return "COMMODITY"
	case "CDS":
		return "CURRENCY"
	case "BINANCE", "BITSTAMP":
		return "CRYPTO"
	default:
		return "EQUITY"
	}
}
