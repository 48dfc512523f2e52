// Package agg builds bounded rolling OHLC windows from a stream of ticks.
//
// Unlike an emit-on-close bar builder, the aggregator owns the window
// itself: the latest candle is mutated in place while its bucket is open
// and becomes immutable once a later tick opens a new bucket. Indicator
// code reads the window directly on every tick.
package agg

import (
	"time"

	"signal-enginev1/internal/model"
)

// DefaultWindowCap is the rolling window bound when none is configured.
const DefaultWindowCap = 200

// Buffer is the rolling candle window for one (symbol, bucketSize) pair.
// Not goroutine-safe: confined to the worker that owns its symbol.
type Buffer struct {
	bucketSize time.Duration
	cap        int
	candles    []model.Candle
}

// NewBuffer creates an empty window with the given bucket size and cap.
func NewBuffer(bucketSize time.Duration, windowCap int) *Buffer {
	if windowCap <= 0 {
		windowCap = DefaultWindowCap
	}
	return &Buffer{
		bucketSize: bucketSize,
		cap:        windowCap,
		candles:    make([]model.Candle, 0, windowCap+1),
	}
}

// Prime seeds the window with backfilled candles (oldest first), keeping
// at most the newest cap entries. Called once before live ticks arrive.
func (b *Buffer) Prime(candles []model.Candle) {
	if len(candles) > b.cap {
		candles = candles[len(candles)-b.cap:]
	}
	b.candles = b.candles[:0]
	b.candles = append(b.candles, candles...)
}

// OnTick merges one tick into the window and returns a copy of the updated
// candle. When the tick opens a new bucket, closed holds the candle that
// just became immutable.
//
// Known limitation, kept on purpose: a tick whose timestamp falls before
// the currently open bucket still updates the open candle ("latest bucket
// wins") — out-of-order ticks are not re-bucketed.
func (b *Buffer) OnTick(t model.Tick) (cur model.Candle, closed *model.Candle) {
	bucketStart := t.TS.Truncate(b.bucketSize)

	n := len(b.candles)
	if n == 0 || b.candles[n-1].BucketStart.Before(bucketStart) {
		if n > 0 {
			done := b.candles[n-1]
			closed = &done
		}
		b.candles = append(b.candles, model.Candle{
			BucketStart: bucketStart,
			Open:        t.Price,
			High:        t.Price,
			Low:         t.Price,
			Close:       t.Price,
		})
		if len(b.candles) > b.cap {
			// FIFO eviction of the oldest candle.
			copy(b.candles, b.candles[1:])
			b.candles = b.candles[:b.cap]
		}
		return b.candles[len(b.candles)-1], closed
	}

	c := &b.candles[n-1]
	if t.Price > c.High {
		c.High = t.Price
	}
	if t.Price < c.Low {
		c.Low = t.Price
	}
	c.Close = t.Price
	return *c, nil
}

// Candles returns the current window, oldest first. The slice is shared
// with the buffer — callers must treat it as read-only and not retain it
// across ticks.
func (b *Buffer) Candles() []model.Candle {
	return b.candles
}

// Len returns the number of candles currently held.
func (b *Buffer) Len() int { return len(b.candles) }

// BucketSize returns the window's bucket duration.
func (b *Buffer) BucketSize() time.Duration { return b.bucketSize }

// bufKey identifies one rolling window.
type bufKey struct {
	symbol string
	bucket time.Duration
}

// Aggregator owns the rolling windows for the symbols a worker processes,
// one per (symbol, bucketSize) pair. Not goroutine-safe — each pipeline
// worker holds its own Aggregator.
type Aggregator struct {
	windowCap int
	buffers   map[bufKey]*Buffer
}

// New creates an Aggregator whose windows are bounded at windowCap.
func New(windowCap int) *Aggregator {
	if windowCap <= 0 {
		windowCap = DefaultWindowCap
	}
	return &Aggregator{
		windowCap: windowCap,
		buffers:   make(map[bufKey]*Buffer, 64),
	}
}

// Buffer returns the window for (symbol, bucketSize), creating it when
// unseen. created=true signals the caller to attempt a history backfill.
func (a *Aggregator) Buffer(symbol string, bucketSize time.Duration) (buf *Buffer, created bool) {
	key := bufKey{symbol: symbol, bucket: bucketSize}
	if buf, ok := a.buffers[key]; ok {
		return buf, false
	}
	buf = NewBuffer(bucketSize, a.windowCap)
	a.buffers[key] = buf
	return buf, true
}

// OnTick merges the tick into the (symbol, bucketSize) window and returns
// the updated candle plus the candle closed by a bucket rollover, if any.
func (a *Aggregator) OnTick(t model.Tick, bucketSize time.Duration) (cur model.Candle, closed *model.Candle) {
	buf, _ := a.Buffer(t.Symbol, bucketSize)
	return buf.OnTick(t)
}
