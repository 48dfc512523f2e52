package strategy

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"signal-enginev1/internal/model"
)

// Store loads active strategy configurations from persistence. Any external
// mutation (create/update/delete) must be followed by a Registry.Reload so
// the pipeline picks it up.
type Store interface {
	LoadActive(ctx context.Context) ([]Config, error)
}

// snapshot is the immutable view readers operate on. Reload builds a fresh
// snapshot and swaps it atomically, so concurrent tick workers see either
// the fully-old or fully-new set, never a partial one.
type snapshot struct {
	all      []Config
	bySymbol map[string][]Config
}

// Registry is the read-mostly cache of active strategies.
//
// Besides the config snapshot it keeps the per-strategy last-signal memory
// used for the emission cooldown; that memory survives reloads for
// strategies that remain active and is pruned for removed ones.
type Registry struct {
	store Store
	log   *slog.Logger

	snap atomic.Pointer[snapshot]

	mu          sync.Mutex
	lastSignals map[string]time.Time // key: strategyID + "|" + direction
}

// NewRegistry creates an empty registry. Call Load before serving reads.
func NewRegistry(store Store, log *slog.Logger) *Registry {
	r := &Registry{
		store:       store,
		log:         log,
		lastSignals: make(map[string]time.Time),
	}
	r.snap.Store(&snapshot{bySymbol: map[string][]Config{}})
	return r
}

// Load performs the initial cache fill. Unlike Reload, a failure here is
// returned to the caller — starting the pipeline with an unknowingly empty
// registry hides a broken store.
func (r *Registry) Load(ctx context.Context) error {
	configs, err := r.store.LoadActive(ctx)
	if err != nil {
		return err
	}
	r.swap(configs)
	r.log.Info("strategy cache loaded", "strategies", len(configs))
	return nil
}

// Reload refreshes the cache from the store. On failure the previous
// snapshot is retained and the error logged; the periodic timer or the
// next explicit reload will retry.
func (r *Registry) Reload(ctx context.Context) {
	configs, err := r.store.LoadActive(ctx)
	if err != nil {
		r.log.Warn("strategy cache reload failed, keeping previous snapshot", "err", err)
		return
	}
	r.swap(configs)
	r.log.Info("strategy cache refreshed", "strategies", len(configs))
}

// Run refreshes the cache on a timer as a safety net against missed
// explicit Reload calls. Blocks until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reload(ctx)
		}
	}
}

// Active returns the current full strategy set. The returned slice is
// shared with the snapshot and must not be mutated.
func (r *Registry) Active() []Config {
	return r.snap.Load().all
}

// ByInstrument returns the strategies bound to the given symbol.
func (r *Registry) ByInstrument(symbol string) []Config {
	return r.snap.Load().bySymbol[symbol]
}

// Len returns the number of cached strategies.
func (r *Registry) Len() int {
	return len(r.snap.Load().all)
}

// LastSignalAt returns when the strategy last emitted a signal in the
// given direction.
func (r *Registry) LastSignalAt(strategyID string, dir model.Direction) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.lastSignals[signalKey(strategyID, dir)]
	return t, ok
}

// MarkSignal records an emission synchronously, before any downstream I/O,
// so a second qualifying tick cannot double-fire inside the cooldown.
func (r *Registry) MarkSignal(strategyID string, dir model.Direction, at time.Time) {
	r.mu.Lock()
	r.lastSignals[signalKey(strategyID, dir)] = at
	r.mu.Unlock()
}

// swap installs a new snapshot and prunes last-signal memory for
// strategies that are no longer active.
func (r *Registry) swap(configs []Config) {
	bySymbol := make(map[string][]Config, len(configs))
	live := make(map[string]bool, len(configs))
	for _, c := range configs {
		bySymbol[c.Symbol] = append(bySymbol[c.Symbol], c)
		live[c.ID] = true
	}
	r.snap.Store(&snapshot{all: configs, bySymbol: bySymbol})

	r.mu.Lock()
	for key := range r.lastSignals {
		if id, _, ok := splitSignalKey(key); ok && !live[id] {
			delete(r.lastSignals, key)
		}
	}
	r.mu.Unlock()
}

func signalKey(id string, dir model.Direction) string {
	return id + "|" + string(dir)
}

func splitSignalKey(key string) (id, dir string, ok bool) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '|' {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}
