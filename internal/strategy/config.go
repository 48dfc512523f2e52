// Package strategy holds strategy configurations and the in-memory
// registry the tick pipeline evaluates them from.
package strategy

import (
	"time"

	"signal-enginev1/internal/model"
	"signal-enginev1/internal/rules"
)

// Config is one active strategy: which instrument it watches, at what
// candle resolution, and the rule tree (or hybrid policy) that fires it.
// Configs are created and edited by an external admin-facing collaborator;
// the registry only caches them.
type Config struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Symbol    string     `json:"symbol"`
	Timeframe string     `json:"timeframe"` // "1m", "5m", "15m", "1h"
	Segment   string     `json:"segment,omitempty"`
	System    bool       `json:"is_system"` // system-managed hybrid confluence strategy
	Rules     rules.Tree `json:"rules"`

	// Action is the direction a rule-based strategy fires in when its tree
	// matches. Ignored for system-managed strategies, whose direction comes
	// from the confluence policy itself.
	Action model.Direction `json:"action,omitempty"`
}

// timeframe → candle bucket size
var tfBuckets = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"1d":  24 * time.Hour,
}

// BucketSize returns the candle bucket duration for the strategy's
// timeframe. Unknown timeframes fall back to 1 minute.
func (c Config) BucketSize() time.Duration {
	if d, ok := tfBuckets[c.Timeframe]; ok {
		return d
	}
	return time.Minute
}
