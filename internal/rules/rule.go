// Package rules models boolean trading conditions over indicator series and
// evaluates them against a candle window.
//
// Indicators are a closed set of tagged variants rather than free-form
// names, so an unknown indicator is a deserialization error instead of a
// silent runtime miss.
package rules

import (
	"encoding/json"
	"fmt"
)

// IndicatorKind enumerates the series an operand can resolve to.
type IndicatorKind int

const (
	KindPrice IndicatorKind = iota // raw close series
	KindSupertrend
	KindPSAR
	KindSMA
	KindEMA
	KindRSI
)

var kindNames = map[IndicatorKind]string{
	KindPrice:      "PRICE",
	KindSupertrend: "SUPERTREND",
	KindPSAR:       "PSAR",
	KindSMA:        "SMA",
	KindEMA:        "EMA",
	KindRSI:        "RSI",
}

func (k IndicatorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("IndicatorKind(%d)", int(k))
}

// MarshalJSON encodes the kind as its canonical name.
func (k IndicatorKind) MarshalJSON() ([]byte, error) {
	n, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("rules: unknown indicator kind %d", int(k))
	}
	return json.Marshal(n)
}

// UnmarshalJSON rejects names outside the closed set.
func (k *IndicatorKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("rules: unknown indicator %q", s)
}

// Params carries the per-kind indicator parameters. Zero values fall back
// to the conventional defaults for that kind at evaluation time.
type Params struct {
	Period     int     `json:"period,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"` // Supertrend band width
	Step       float64 `json:"step,omitempty"`       // PSAR acceleration increment
	MaxStep    float64 `json:"max_step,omitempty"`   // PSAR acceleration cap
}

// SeriesRef identifies one indicator series over the evaluation window.
type SeriesRef struct {
	Kind   IndicatorKind `json:"indicator"`
	Params Params        `json:"params,omitempty"`
}

// Operator is the comparison applied between the LHS and RHS series.
type Operator int

const (
	OpGT Operator = iota
	OpLT
	OpGTE
	OpLTE
	OpEQ
	OpCrossAbove
	OpCrossBelow
)

var opNames = map[Operator]string{
	OpGT:         ">",
	OpLT:         "<",
	OpGTE:        ">=",
	OpLTE:        "<=",
	OpEQ:         "==",
	OpCrossAbove: "CROSS_ABOVE",
	OpCrossBelow: "CROSS_BELOW",
}

func (o Operator) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// MarshalJSON encodes the operator as its symbolic form.
func (o Operator) MarshalJSON() ([]byte, error) {
	n, ok := opNames[o]
	if !ok {
		return nil, fmt.Errorf("rules: unknown operator %d", int(o))
	}
	return json.Marshal(n)
}

// UnmarshalJSON rejects operators outside the closed set.
func (o *Operator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for op, name := range opNames {
		if name == s {
			*o = op
			return nil
		}
	}
	return fmt.Errorf("rules: unknown operator %q", s)
}

// Rule compares an indicator series against either a literal value or a
// second indicator series. Exactly one of Value / RHS should be set; a rule
// with neither evaluates to false (fail closed).
type Rule struct {
	LHS   SeriesRef  `json:"lhs"`
	Op    Operator   `json:"operator"`
	Value *float64   `json:"value,omitempty"`
	RHS   *SeriesRef `json:"rhs,omitempty"`
}

// Condition combines the rules of a tree.
type Condition int

const (
	CondAND Condition = iota
	CondOR
)

var condNames = map[Condition]string{CondAND: "AND", CondOR: "OR"}

func (c Condition) String() string {
	if n, ok := condNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Condition(%d)", int(c))
}

// MarshalJSON encodes the condition as AND/OR.
func (c Condition) MarshalJSON() ([]byte, error) {
	n, ok := condNames[c]
	if !ok {
		return nil, fmt.Errorf("rules: unknown condition %d", int(c))
	}
	return json.Marshal(n)
}

// UnmarshalJSON rejects conditions other than AND/OR.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for cond, name := range condNames {
		if name == s {
			*c = cond
			return nil
		}
	}
	return fmt.Errorf("rules: unknown condition %q", s)
}

// Tree is a flat AND/OR combination of rules. An empty rule list evaluates
// to false so a misconfigured strategy can never auto-fire.
type Tree struct {
	Condition Condition `json:"condition"`
	Rules     []Rule    `json:"rules"`
}
