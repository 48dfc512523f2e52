package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"signal-enginev1/internal/model"
)

// LoadCandles returns closed candles for (symbol, bucketSize) in [from, to],
// oldest first, implementing model.HistoryLoader.
func (s *Store) LoadCandles(ctx context.Context, symbol string, bucketSize time.Duration, from, to time.Time) ([]model.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bucket_start, open, high, low, close
		FROM candles
		WHERE symbol = ? AND bucket_seconds = ? AND bucket_start BETWEEN ? AND ?
		ORDER BY bucket_start`,
		symbol, int64(bucketSize.Seconds()), from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite load candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var (
			c     model.Candle
			start int64
		)
		if err := rows.Scan(&start, &c.Open, &c.High, &c.Low, &c.Close); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		c.BucketStart = time.Unix(start, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// SaveCandle upserts one closed candle. Rewrites of the same bucket win,
// matching the aggregator's latest-bucket semantics.
func (s *Store) SaveCandle(ctx context.Context, symbol string, bucketSize time.Duration, c model.Candle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candles (symbol, bucket_seconds, bucket_start, open, high, low, close)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, bucket_seconds, bucket_start) DO UPDATE SET
			open = excluded.open, high = excluded.high,
			low = excluded.low, close = excluded.close`,
		symbol, int64(bucketSize.Seconds()), c.BucketStart.Unix(),
		c.Open, c.High, c.Low, c.Close)
	if err != nil {
		return fmt.Errorf("sqlite save candle: %w", err)
	}
	return nil
}

// closedCandle is one queued candle write.
type closedCandle struct {
	symbol string
	bucket time.Duration
	candle model.Candle
}

// Recorder moves candle persistence off the tick path. Record is
// non-blocking; a full queue drops the candle (the window can re-prime
// from live ticks, so a gap is tolerable).
type Recorder struct {
	store *Store
	log   *slog.Logger
	ch    chan closedCandle
}

// NewRecorder creates a Recorder with the given queue depth.
func NewRecorder(store *Store, bufSize int, log *slog.Logger) *Recorder {
	if bufSize <= 0 {
		bufSize = 1024
	}
	return &Recorder{
		store: store,
		log:   log,
		ch:    make(chan closedCandle, bufSize),
	}
}

// Record queues a closed candle for persistence. Safe to call from any
// goroutine; never blocks.
func (r *Recorder) Record(symbol string, bucketSize time.Duration, c model.Candle) {
	select {
	case r.ch <- closedCandle{symbol: symbol, bucket: bucketSize, candle: c}:
	default:
		r.log.Warn("candle recorder queue full, dropping candle", "symbol", symbol)
	}
}

// Run drains the queue until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cc := <-r.ch:
			if err := r.store.SaveCandle(ctx, cc.symbol, cc.bucket, cc.candle); err != nil {
				r.log.Error("candle persist failed", "symbol", cc.symbol, "err", err)
			}
		}
	}
}
