package model

import (
	"context"
	"time"
)

// ── Boundary Port Interfaces ──
// These interfaces decouple the engine from external collaborators
// (history backfill, signal persistence, status broadcast). Each concrete
// implementation satisfies one or more of these interfaces.

// HistoryLoader backfills recent OHLC candles so a fresh rolling window can
// be primed before enough live ticks accumulate. Backfill failure is never
// fatal: the engine proceeds with an empty window.
type HistoryLoader interface {
	// LoadCandles returns candles for the symbol at the given bucket size,
	// oldest first, covering at most [from, to].
	LoadCandles(ctx context.Context, symbol string, bucketSize time.Duration, from, to time.Time) ([]Candle, error)
}

// SignalSink receives a finished GeneratedSignal for persistence and
// fan-out. The engine must not block on delivery; failures are logged and
// the emission decision is not rolled back (at-most-once best effort).
type SignalSink interface {
	Publish(ctx context.Context, sig GeneratedSignal) error
}

// StatusSink receives live per-symbol strategy status snapshots.
type StatusSink interface {
	PublishStatus(ctx context.Context, st StrategyStatus) error
}

// MultiSink fans a signal out to several sinks. Each sink's error is
// returned combined but delivery to the others still proceeds.
func MultiSink(sinks ...SignalSink) SignalSink {
	return multiSink(sinks)
}

type multiSink []SignalSink

func (m multiSink) Publish(ctx context.Context, sig GeneratedSignal) error {
	var firstErr error
	for _, s := range m {
		if err := s.Publish(ctx, sig); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
