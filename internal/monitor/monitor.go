// Package monitor watches active signals against the live tick stream and
// closes them automatically when their stop loss or first target is hit.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"signal-enginev1/internal/model"
)

// Store is the signal persistence the monitor reads open signals from and
// writes close updates to.
type Store interface {
	// LoadOpen returns signals still in the Active state.
	LoadOpen(ctx context.Context) ([]model.GeneratedSignal, error)

	// CloseSignal marks the signal with a terminal status and exit price.
	CloseSignal(ctx context.Context, id int64, status string, exitPrice float64) error
}

// Monitor tracks open signals in memory. The cache refreshes on a timer
// (and on explicit Reload after a new signal is persisted); a refresh
// failure keeps the previous cache.
type Monitor struct {
	store Store
	log   *slog.Logger

	mu      sync.Mutex
	watched map[int64]model.GeneratedSignal

	// OnClosed is an optional metrics hook invoked per auto-closed signal.
	OnClosed func(status string)
}

// New creates a Monitor with an empty cache.
func New(store Store, log *slog.Logger) *Monitor {
	return &Monitor{
		store:   store,
		log:     log,
		watched: make(map[int64]model.GeneratedSignal),
	}
}

// Reload refreshes the watch cache from the store. Keeps the previous
// cache on failure.
func (m *Monitor) Reload(ctx context.Context) {
	signals, err := m.store.LoadOpen(ctx)
	if err != nil {
		m.log.Warn("signal cache refresh failed, keeping previous cache", "err", err)
		return
	}
	watched := make(map[int64]model.GeneratedSignal, len(signals))
	for _, s := range signals {
		watched[s.ID] = s
	}
	m.mu.Lock()
	m.watched = watched
	m.mu.Unlock()
	m.log.Info("signal cache refreshed", "open_signals", len(signals))
}

// Watching returns the number of signals currently tracked.
func (m *Monitor) Watching() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watched)
}

// Run consumes ticks and refreshes the cache every refreshEvery. Blocks
// until ctx is cancelled or tickCh is closed.
func (m *Monitor) Run(ctx context.Context, tickCh <-chan model.Tick, refreshEvery time.Duration) {
	m.Reload(ctx)

	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reload(ctx)
		case tick, ok := <-tickCh:
			if !ok {
				return
			}
			m.OnTick(ctx, tick)
		}
	}
}

// OnTick checks every watched signal on the tick's symbol for a stop or
// target hit.
func (m *Monitor) OnTick(ctx context.Context, tick model.Tick) {
	if !tick.Valid() {
		return
	}

	type hit struct {
		sig    model.GeneratedSignal
		status string
		exit   float64
	}
	var hits []hit

	m.mu.Lock()
	for id, sig := range m.watched {
		if sig.Symbol != tick.Symbol {
			continue
		}
		status, exit, ok := check(sig, tick.Price)
		if !ok {
			continue
		}
		// Remove immediately so a second tick cannot double-close.
		delete(m.watched, id)
		hits = append(hits, hit{sig: sig, status: status, exit: exit})
	}
	m.mu.Unlock()

	for _, h := range hits {
		m.log.Info("signal auto-closed",
			"signal", h.sig.ID, "symbol", h.sig.Symbol, "status", h.status, "exit", h.exit)
		if m.OnClosed != nil {
			m.OnClosed(h.status)
		}
		// Store update is off the tick path; failure is logged only —
		// the in-memory close already happened.
		go func(h hit) {
			updCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := m.store.CloseSignal(updCtx, h.sig.ID, h.status, h.exit); err != nil {
				m.log.Error("failed to persist signal close", "signal", h.sig.ID, "err", err)
			}
		}(h)
	}
}

// check applies the exit rules: a BUY closes at the stop when price falls
// to or below it, or at the first target when price reaches it; SELL is
// the mirror. Exit price is the level, not the traded price.
func check(sig model.GeneratedSignal, price float64) (status string, exit float64, ok bool) {
	var target float64
	if len(sig.Targets) > 0 {
		target = sig.Targets[0]
	}

	switch sig.Direction {
	case model.DirectionBuy:
		if price <= sig.StopLoss {
			return model.SignalStoplossHit, sig.StopLoss, true
		}
		if target > 0 && price >= target {
			return model.SignalTargetHit, target, true
		}
	case model.DirectionSell:
		if price >= sig.StopLoss {
			return model.SignalStoplossHit, sig.StopLoss, true
		}
		if target > 0 && price <= target {
			return model.SignalTargetHit, target, true
		}
	}
	return "", 0, false
}
