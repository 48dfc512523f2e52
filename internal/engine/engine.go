// Package engine wires the tick pipeline: aggregation, indicator
// computation, rule evaluation, and signal emission.
//
// Ticks for all symbols arrive on one stream. The engine shards symbols
// across a fixed set of workers; all per-symbol state (rolling windows,
// indicator snapshots) is confined to the worker that owns the symbol, so
// workers never share mutable state. The strategy registry is the only
// structure read from every worker and is safe for that by construction.
package engine

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"signal-enginev1/internal/bus"
	"signal-enginev1/internal/emit"
	"signal-enginev1/internal/indicator"
	"signal-enginev1/internal/marketdata/agg"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/rules"
	"signal-enginev1/internal/strategy"
)

// minEvalCandles is the minimum window before any indicator evaluation is
// attempted for a symbol.
const minEvalCandles = 20

// historyLookback bounds how far back the one-time window priming asks the
// history loader to go.
const historyLookback = 48 * time.Hour

// primeTimeout bounds the one-time backfill call for a fresh window. This
// is the only I/O the pipeline ever waits on, and only on the first tick
// of an unseen (symbol, bucket) pair.
const primeTimeout = 5 * time.Second

// Config holds the engine's runtime knobs.
type Config struct {
	Workers   int // symbol shards; <=0 means 4
	WindowCap int // rolling window bound; <=0 means agg.DefaultWindowCap

	SupertrendPeriod     int     // default 10
	SupertrendMultiplier float64 // default 3.0
	PSARStep             float64 // default 0.02
	PSARMaxStep          float64 // default 0.2
	PivotLookback        int     // default 5
}

func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.WindowCap <= 0 {
		c.WindowCap = agg.DefaultWindowCap
	}
	if c.SupertrendPeriod <= 0 {
		c.SupertrendPeriod = 10
	}
	if c.SupertrendMultiplier <= 0 {
		c.SupertrendMultiplier = 3.0
	}
	if c.PSARStep <= 0 {
		c.PSARStep = 0.02
	}
	if c.PSARMaxStep <= 0 {
		c.PSARMaxStep = 0.2
	}
	if c.PivotLookback <= 0 {
		c.PivotLookback = 5
	}
}

// Engine is the tick pipeline orchestrator. Construct with New, then
// Start/Stop (or Run directly). A stopped engine discards all in-memory
// window state; it is not restartable — build a new one.
type Engine struct {
	cfg      Config
	registry *strategy.Registry
	emitter  *emit.Controller
	history  model.HistoryLoader // optional
	statuses *bus.FanOut
	log      *slog.Logger

	workers []*worker

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}

	// Metrics hooks (optional, set externally)
	OnTick          func()
	OnMalformedTick func()
	OnEvalDuration  func(d time.Duration)
	OnWorkerDrop    func()

	// OnCandleClosed is invoked from worker goroutines whenever a bucket
	// rolls over; used to persist closed candles for window priming. Must
	// not block.
	OnCandleClosed func(symbol string, bucketSize time.Duration, c model.Candle)
}

// New creates an Engine. history may be nil (no window priming).
func New(cfg Config, registry *strategy.Registry, emitter *emit.Controller, history model.HistoryLoader, statuses *bus.FanOut, log *slog.Logger) *Engine {
	cfg.defaults()
	e := &Engine{
		cfg:      cfg,
		registry: registry,
		emitter:  emitter,
		history:  history,
		statuses: statuses,
		log:      log,
	}
	e.workers = make([]*worker, cfg.Workers)
	for i := range e.workers {
		e.workers[i] = &worker{
			eng: e,
			agg: agg.New(cfg.WindowCap),
			in:  make(chan model.Tick, 1024),
		}
	}
	return e
}

// Run consumes ticks until ctx is cancelled or tickCh is closed. Malformed
// ticks are dropped with a warning and do not affect other symbols.
func (e *Engine) Run(ctx context.Context, tickCh <-chan model.Tick) {
	var wg sync.WaitGroup
	for _, w := range e.workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			w.run(ctx)
		}(w)
	}

	defer func() {
		for _, w := range e.workers {
			close(w.in)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-tickCh:
			if !ok {
				return
			}
			e.dispatch(tick)
		}
	}
}

// Start subscribes the engine to the tick stream in the background.
func (e *Engine) Start(ctx context.Context, tickCh <-chan model.Tick) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return errors.New("engine: already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.stopped = make(chan struct{})
	go func() {
		defer close(e.stopped)
		e.Run(runCtx, tickCh)
	}()
	return nil
}

// Stop unsubscribes from the tick stream and waits for in-flight tick
// processing to finish. Window state is discarded with the engine.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, stopped := e.cancel, e.stopped
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

// dispatch validates the tick and routes it to its symbol's worker.
// A full worker queue drops the tick: dropping beats unbounded queueing.
func (e *Engine) dispatch(tick model.Tick) {
	if !tick.Valid() {
		e.log.Warn("dropping malformed tick", "symbol", tick.Symbol, "price", tick.Price)
		if e.OnMalformedTick != nil {
			e.OnMalformedTick()
		}
		return
	}
	if e.OnTick != nil {
		e.OnTick()
	}

	h := fnv.New32a()
	h.Write([]byte(tick.Symbol))
	w := e.workers[h.Sum32()%uint32(len(e.workers))]

	select {
	case w.in <- tick:
	default:
		e.log.Warn("worker queue full, dropping tick", "symbol", tick.Symbol)
		if e.OnWorkerDrop != nil {
			e.OnWorkerDrop()
		}
	}
}

// worker owns the per-symbol state for its shard of symbols.
type worker struct {
	eng *Engine
	agg *agg.Aggregator
	in  chan model.Tick
}

func (w *worker) run(ctx context.Context) {
	for tick := range w.in {
		w.process(ctx, tick)
	}
}

// process runs the full synchronous pipeline for one tick: aggregate,
// compute indicators, evaluate every strategy bound to the symbol, and
// publish the live status snapshot.
func (w *worker) process(ctx context.Context, tick model.Tick) {
	configs := w.eng.registry.ByInstrument(tick.Symbol)
	if len(configs) == 0 {
		return
	}

	start := time.Now()
	defer func() {
		if w.eng.OnEvalDuration != nil {
			w.eng.OnEvalDuration(time.Since(start))
		}
	}()

	// Indicator snapshots are shared across strategies on the same
	// (symbol, bucket) — computed at most once per tick per bucket.
	snaps := make(map[time.Duration]emit.Snapshot, 2)

	for _, cfg := range configs {
		bucket := cfg.BucketSize()
		buf, created := w.agg.Buffer(tick.Symbol, bucket)
		if created {
			w.prime(ctx, tick.Symbol, buf)
		}
		_, closed := buf.OnTick(tick)
		if closed != nil && w.eng.OnCandleClosed != nil {
			w.eng.OnCandleClosed(tick.Symbol, bucket, *closed)
		}

		candles := buf.Candles()
		if len(candles) < minEvalCandles {
			continue
		}

		snap, ok := snaps[bucket]
		if !ok {
			snap = w.snapshot(candles)
			snaps[bucket] = snap
			w.publishStatus(tick, snap)
		}

		if cfg.System {
			w.eng.emitter.MaybeEmitHybrid(ctx, cfg, tick.Price, snap)
			continue
		}
		if rules.Evaluate(cfg.Rules, candles) {
			w.eng.emitter.MaybeEmitRule(ctx, cfg, tick.Price)
		}
	}
}

// prime seeds a freshly created window from the history loader. Failure is
// logged and the window starts empty — live ticks will fill it.
func (w *worker) prime(ctx context.Context, symbol string, buf *agg.Buffer) {
	if w.eng.history == nil {
		return
	}
	loadCtx, cancel := context.WithTimeout(ctx, primeTimeout)
	defer cancel()

	to := time.Now().UTC()
	candles, err := w.eng.history.LoadCandles(loadCtx, symbol, buf.BucketSize(), to.Add(-historyLookback), to)
	if err != nil {
		w.eng.log.Warn("history backfill failed, starting with empty window",
			"symbol", symbol, "bucket", buf.BucketSize().String(), "err", err)
		return
	}
	buf.Prime(candles)
	w.eng.log.Info("window primed from history",
		"symbol", symbol, "bucket", buf.BucketSize().String(), "candles", buf.Len())
}

func (w *worker) snapshot(candles []model.Candle) emit.Snapshot {
	cfg := w.eng.cfg
	return emit.Snapshot{
		Supertrend: indicator.Supertrend(candles, cfg.SupertrendPeriod, cfg.SupertrendMultiplier),
		PSAR:       indicator.PSAR(candles, cfg.PSARStep, cfg.PSARMaxStep),
		Structure:  indicator.MarketStructure(candles, cfg.PivotLookback),
	}
}

func (w *worker) publishStatus(tick model.Tick, snap emit.Snapshot) {
	if w.eng.statuses == nil {
		return
	}
	st := model.StrategyStatus{
		Symbol:    tick.Symbol,
		Price:     tick.Price,
		Structure: snap.Structure.Structure,
		LastPivot: snap.Structure.LastPivot,
		TS:        tick.TS,
	}
	if snap.Supertrend.Ready {
		st.SupertrendValue = snap.Supertrend.Value
		st.SupertrendTrend = trendLabel(snap.Supertrend.Trend)
	}
	if snap.PSAR.Ready {
		st.PSARValue = snap.PSAR.Value
		st.PSARTrend = trendLabel(snap.PSAR.Trend)
	}
	w.eng.statuses.Publish(st)
}

func trendLabel(trend int) model.TrendLabel {
	if trend == indicator.TrendUp {
		return model.TrendUp
	}
	return model.TrendDown
}
