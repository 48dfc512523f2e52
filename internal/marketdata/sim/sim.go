// Package sim generates an in-process random-walk tick stream so the
// engine can run without a live market feed.
package sim

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"signal-enginev1/internal/model"
)

// Seed prices for well-known symbols. Unknown symbols start at 1000.
var seedPrices = map[string]float64{
	"SPX":     4750,
	"NDQ":     16800,
	"AAPL":    185,
	"MSFT":    370,
	"GOOG":    140,
	"TSLA":    240,
	"BTC/USD": 45000,
	"ETH/USD": 2400,
}

const defaultSeedPrice = 1000

// Feed is a simulated tick source.
type Feed struct {
	symbols  []string
	interval time.Duration
	log      *slog.Logger

	prices map[string]float64
	rng    *rand.Rand
}

// New creates a Feed ticking every interval for the given symbols.
func New(symbols []string, interval time.Duration, log *slog.Logger) *Feed {
	prices := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		p, ok := seedPrices[sym]
		if !ok {
			p = defaultSeedPrice
		}
		prices[sym] = p
	}
	return &Feed{
		symbols:  symbols,
		interval: interval,
		log:      log,
		prices:   prices,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start emits one tick per symbol per interval into tickCh. Blocks until
// ctx is cancelled. Full channels drop the tick.
func (f *Feed) Start(ctx context.Context, tickCh chan<- model.Tick) error {
	f.log.Info("simulated feed started", "symbols", f.symbols, "interval", f.interval)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := time.Now().UTC()
			for _, sym := range f.symbols {
				f.prices[sym] = f.walk(f.prices[sym])
				tick := model.Tick{
					Symbol: sym,
					Price:  f.prices[sym],
					Volume: float64(f.rng.Intn(100) + 1),
					TS:     now,
				}
				select {
				case tickCh <- tick:
				default:
				}
			}
		}
	}
}

// walk applies a random move of up to ±0.15% and floors the price at one
// cent.
func (f *Feed) walk(price float64) float64 {
	pct := (f.rng.Float64()*0.3 - 0.15) / 100.0
	next := price * (1 + pct)
	if next < 0.01 {
		next = 0.01
	}
	return next
}
