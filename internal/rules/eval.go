package rules

import (
	"signal-enginev1/internal/indicator"
	"signal-enginev1/internal/model"
)

// Default indicator parameters applied when a SeriesRef leaves them zero.
const (
	defaultPeriod     = 14
	defaultMultiplier = 3.0
	defaultStep       = 0.02
	defaultMaxStep    = 0.2
)

// Evaluate applies the rule tree to the candle window.
//
// Comparisons operate on the last two points of each side's series: the
// plain operators compare only the latest values, CROSS_ABOVE requires
// prevLHS <= prevRHS && lastLHS > lastRHS, CROSS_BELOW the mirror. A side
// with fewer than two points makes its rule false — never an error. Pure
// function of its inputs; the candle window is not mutated.
func Evaluate(tree Tree, candles []model.Candle) bool {
	if len(tree.Rules) == 0 {
		return false
	}
	for _, r := range tree.Rules {
		ok := evalRule(r, candles)
		if tree.Condition == CondAND && !ok {
			return false
		}
		if tree.Condition == CondOR && ok {
			return true
		}
	}
	return tree.Condition == CondAND
}

func evalRule(r Rule, candles []model.Candle) bool {
	lhsPrev, lhsLast, ok := lastTwo(Resolve(r.LHS, candles))
	if !ok {
		return false
	}

	var rhsPrev, rhsLast float64
	switch {
	case r.RHS != nil:
		rhsPrev, rhsLast, ok = lastTwo(Resolve(*r.RHS, candles))
		if !ok {
			return false
		}
	case r.Value != nil:
		rhsPrev, rhsLast = *r.Value, *r.Value
	default:
		return false // no comparand configured
	}

	switch r.Op {
	case OpGT:
		return lhsLast > rhsLast
	case OpLT:
		return lhsLast < rhsLast
	case OpGTE:
		return lhsLast >= rhsLast
	case OpLTE:
		return lhsLast <= rhsLast
	case OpEQ:
		return lhsLast == rhsLast
	case OpCrossAbove:
		return lhsPrev <= rhsPrev && lhsLast > rhsLast
	case OpCrossBelow:
		return lhsPrev >= rhsPrev && lhsLast < rhsLast
	default:
		return false
	}
}

// Resolve computes the series a SeriesRef stands for over the window.
// Series lengths differ per indicator warmup; only the tail is compared so
// alignment between sides is not required.
func Resolve(ref SeriesRef, candles []model.Candle) []float64 {
	p := ref.Params
	if p.Period <= 0 {
		p.Period = defaultPeriod
	}
	if p.Multiplier <= 0 {
		p.Multiplier = defaultMultiplier
	}
	if p.Step <= 0 {
		p.Step = defaultStep
	}
	if p.MaxStep <= 0 {
		p.MaxStep = defaultMaxStep
	}

	switch ref.Kind {
	case KindPrice:
		return model.Closes(candles)
	case KindSupertrend:
		return indicator.SupertrendSeries(candles, p.Period, p.Multiplier)
	case KindPSAR:
		return indicator.PSARSeries(candles, p.Step, p.MaxStep)
	case KindSMA:
		return indicator.SMASeries(candles, p.Period)
	case KindEMA:
		return indicator.EMASeries(candles, p.Period)
	case KindRSI:
		return indicator.RSISeries(candles, p.Period)
	default:
		return nil
	}
}

func lastTwo(series []float64) (prev, last float64, ok bool) {
	if len(series) < 2 {
		return 0, 0, false
	}
	return series[len(series)-2], series[len(series)-1], true
}
