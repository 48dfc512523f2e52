package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"signal-enginev1/internal/model"
)

// fakeStore returns a canned config set or a canned error.
type fakeStore struct {
	configs []Config
	err     error
	calls   int
}

func (s *fakeStore) LoadActive(_ context.Context) ([]Config, error) {
	s.calls++
	return s.configs, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfigs() []Config {
	return []Config{
		{ID: "hybrid-aapl", Name: "Hybrid AAPL", Symbol: "AAPL", Timeframe: "1m", System: true},
		{ID: "rule-aapl", Name: "RSI dip", Symbol: "AAPL", Timeframe: "5m", Action: model.DirectionBuy},
		{ID: "rule-tsla", Name: "Breakout", Symbol: "TSLA", Timeframe: "1m", Action: model.DirectionSell},
	}
}

func TestRegistry_LoadAndLookup(t *testing.T) {
	store := &fakeStore{configs: testConfigs()}
	r := NewRegistry(store, testLogger())

	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if r.Len() != 3 {
		t.Fatalf("expected 3 strategies, got %d", r.Len())
	}

	aapl := r.ByInstrument("AAPL")
	if len(aapl) != 2 {
		t.Fatalf("expected 2 AAPL strategies, got %d", len(aapl))
	}
	if got := r.ByInstrument("MSFT"); len(got) != 0 {
		t.Errorf("expected no MSFT strategies, got %d", len(got))
	}
}

func TestRegistry_LoadPropagatesError(t *testing.T) {
	store := &fakeStore{err: errors.New("db locked")}
	r := NewRegistry(store, testLogger())
	if err := r.Load(context.Background()); err == nil {
		t.Fatal("expected initial load error to propagate")
	}
}

func TestRegistry_FailedReloadKeepsSnapshot(t *testing.T) {
	store := &fakeStore{configs: testConfigs()}
	r := NewRegistry(store, testLogger())
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	store.err = errors.New("db locked")
	store.configs = nil
	r.Reload(context.Background())

	if r.Len() != 3 {
		t.Fatalf("failed reload must keep the previous snapshot, got %d strategies", r.Len())
	}
	if len(r.ByInstrument("AAPL")) != 2 {
		t.Error("symbol index lost after failed reload")
	}
}

func TestRegistry_ReloadSwapsAtomically(t *testing.T) {
	store := &fakeStore{configs: testConfigs()}
	r := NewRegistry(store, testLogger())
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	store.configs = []Config{
		{ID: "rule-msft", Name: "New", Symbol: "MSFT", Timeframe: "1m"},
	}
	r.Reload(context.Background())

	if r.Len() != 1 {
		t.Fatalf("expected 1 strategy after reload, got %d", r.Len())
	}
	if len(r.ByInstrument("AAPL")) != 0 {
		t.Error("removed strategies still resolvable by symbol")
	}
	if len(r.ByInstrument("MSFT")) != 1 {
		t.Error("new strategy missing from symbol index")
	}
}

func TestRegistry_LastSignalMemory(t *testing.T) {
	store := &fakeStore{configs: testConfigs()}
	r := NewRegistry(store, testLogger())
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if _, ok := r.LastSignalAt("rule-aapl", model.DirectionBuy); ok {
		t.Fatal("expected no last-signal memory before any emission")
	}

	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	r.MarkSignal("rule-aapl", model.DirectionBuy, at)

	got, ok := r.LastSignalAt("rule-aapl", model.DirectionBuy)
	if !ok || !got.Equal(at) {
		t.Fatalf("expected %v, got %v (ok=%v)", at, got, ok)
	}
	// Direction-scoped: SELL memory is independent.
	if _, ok := r.LastSignalAt("rule-aapl", model.DirectionSell); ok {
		t.Error("SELL memory must be independent of BUY")
	}
}

func TestRegistry_ReloadPrunesDeadSignalMemory(t *testing.T) {
	store := &fakeStore{configs: testConfigs()}
	r := NewRegistry(store, testLogger())
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	at := time.Now()
	r.MarkSignal("rule-aapl", model.DirectionBuy, at)
	r.MarkSignal("rule-tsla", model.DirectionSell, at)

	// Drop rule-tsla from the active set.
	store.configs = testConfigs()[:2]
	r.Reload(context.Background())

	if _, ok := r.LastSignalAt("rule-aapl", model.DirectionBuy); !ok {
		t.Error("memory for surviving strategy must persist across reload")
	}
	if _, ok := r.LastSignalAt("rule-tsla", model.DirectionSell); ok {
		t.Error("memory for removed strategy must be pruned")
	}
}

func TestConfig_BucketSize(t *testing.T) {
	cases := []struct {
		tf   string
		want time.Duration
	}{
		{"1m", time.Minute},
		{"5m", 5 * time.Minute},
		{"15m", 15 * time.Minute},
		{"30m", 30 * time.Minute},
		{"1h", time.Hour},
		{"1d", 24 * time.Hour},
		{"", time.Minute},
		{"7m", time.Minute},
	}
	for _, c := range cases {
		cfg := Config{Timeframe: c.tf}
		if got := cfg.BucketSize(); got != c.want {
			t.Errorf("BucketSize(%q) = %v, want %v", c.tf, got, c.want)
		}
	}
}
