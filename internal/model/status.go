package model

import (
	"encoding/json"
	"time"
)

// TrendLabel is a coarse trend direction for status reporting.
type TrendLabel string

const (
	TrendUp   TrendLabel = "UP"
	TrendDown TrendLabel = "DOWN"
)

// StrategyStatus is the per-symbol indicator snapshot published after every
// evaluation. Consumed by the WebSocket gateway and the Redis publisher.
type StrategyStatus struct {
	Symbol          string     `json:"symbol"`
	Price           float64    `json:"price"`
	SupertrendValue float64    `json:"supertrend_value"`
	SupertrendTrend TrendLabel `json:"supertrend_trend"`
	PSARValue       float64    `json:"psar_value"`
	PSARTrend       TrendLabel `json:"psar_trend"`
	Structure       string     `json:"structure"` // HH, HL, LH, LL or NEUTRAL
	LastPivot       float64    `json:"last_pivot"`
	TS              time.Time  `json:"ts"`
}

// JSON returns the JSON-encoded status.
func (s *StrategyStatus) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
