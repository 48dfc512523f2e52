// cmd/sigengine — live trading signal engine.
//
// Pipeline: [tick feed] → [engine: rolling windows → indicators → rules →
// emission] → [SQLite + Redis + WebSocket gateway], with the signal
// monitor auto-closing open signals against the same tick stream.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"signal-enginev1/config"
	"signal-enginev1/internal/bus"
	"signal-enginev1/internal/emit"
	"signal-enginev1/internal/engine"
	"signal-enginev1/internal/gateway"
	"signal-enginev1/internal/logger"
	"signal-enginev1/internal/marketdata/sim"
	"signal-enginev1/internal/marketdata/wsfeed"
	"signal-enginev1/internal/metrics"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/monitor"
	"signal-enginev1/internal/rules"
	redisstore "signal-enginev1/internal/store/redis"
	sqlitestore "signal-enginev1/internal/store/sqlite"
	"signal-enginev1/internal/strategy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.Init("sigengine", logger.ParseLevel(cfg.LogLevel))
	log.Info("starting signal engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, log)
	metricsSrv.Start()

	// ---- SQLite store ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	store, err := sqlitestore.Open(cfg.SQLitePath, log)
	if err != nil {
		log.Error("sqlite init failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	// ---- Strategy registry ----
	registry := strategy.NewRegistry(store, log)
	if err := registry.Load(ctx); err != nil {
		log.Error("initial strategy load failed", "err", err)
		os.Exit(1)
	}
	if registry.Len() == 0 && cfg.FeedURL == "" {
		seedDefaults(ctx, store, cfg.ParseSimSymbols(), log)
		registry.Reload(ctx)
	}
	go registry.Run(ctx, cfg.RegistryRefresh)

	// ---- Redis publisher (optional, degrade without it) ----
	var pub *redisstore.Publisher
	if cfg.RedisAddr != "" {
		pub, err = redisstore.NewPublisher(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}, log)
		if err != nil {
			log.Warn("redis init failed, continuing without redis", "err", err)
			pub = nil
		} else {
			defer pub.Close()
			go pub.SubscribeReload(ctx, func() { registry.Reload(ctx) })
		}
	}
	if pub != nil {
		health.StartLivenessChecker(ctx, pub.Client(), store.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, store.DB(), 10*time.Second)
	}

	// ---- Status fan-out: gateway + redis ----
	statuses := bus.New(1024)
	statuses.OnDrop = func(int) { prom.StatusDrops.Inc() }

	hub := gateway.NewHub(log)
	hub.OnDrop = func() { prom.GatewayDrops.Inc() }
	go hub.RunStatus(ctx, statuses.Subscribe())
	go func() {
		if err := hub.Serve(ctx, cfg.GatewayAddr); err != nil {
			log.Error("gateway server error", "err", err)
		}
	}()
	if pub != nil {
		go pub.RunStatus(ctx, statuses.Subscribe())
	}

	// ---- Signal sink chain ----
	sinks := []model.SignalSink{store, hub}
	if pub != nil {
		sinks = append(sinks, pub)
	}
	sink := model.MultiSink(sinks...)

	// ---- Emission controller ----
	emitter := emit.NewController(registry, sink, cfg.SignalCooldown, log)
	emitter.OnEmit = func(dir model.Direction) { prom.SignalsEmitted.WithLabelValues(string(dir)).Inc() }
	emitter.OnSuppressed = func() { prom.CooldownSuppressed.Inc() }
	emitter.OnSinkError = func() { prom.SinkErrors.Inc() }

	// ---- Candle persistence (off the tick path) ----
	recorder := sqlitestore.NewRecorder(store, 1024, log)
	go recorder.Run(ctx)

	// ---- Engine ----
	eng := engine.New(engine.Config{
		Workers:              cfg.Workers,
		WindowCap:            cfg.WindowCap,
		SupertrendPeriod:     cfg.SupertrendPeriod,
		SupertrendMultiplier: cfg.SupertrendMultiplier,
		PSARStep:             cfg.PSARStep,
		PSARMaxStep:          cfg.PSARMaxStep,
		PivotLookback:        cfg.PivotLookback,
	}, registry, emitter, store, statuses, log)
	eng.OnTick = prom.TicksTotal.Inc
	eng.OnMalformedTick = prom.MalformedTicks.Inc
	eng.OnWorkerDrop = prom.WorkerDrops.Inc
	eng.OnEvalDuration = func(d time.Duration) { prom.EvalDur.Observe(d.Seconds()) }
	eng.OnCandleClosed = recorder.Record

	// ---- Signal monitor ----
	mon := monitor.New(store, log)
	mon.OnClosed = func(status string) { prom.SignalsClosed.WithLabelValues(status).Inc() }

	// ---- Gauge refresher ----
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prom.ActiveStrategies.Set(float64(registry.Len()))
				prom.WatchedSignals.Set(float64(mon.Watching()))
			}
		}
	}()

	// ---- Tick stream: feed → engine + monitor ----
	tickCh := make(chan model.Tick, 10000)
	engineCh := make(chan model.Tick, 10000)
	monitorCh := make(chan model.Tick, 10000)
	go func() {
		defer close(engineCh)
		defer close(monitorCh)
		for {
			select {
			case <-ctx.Done():
				return
			case tick, ok := <-tickCh:
				if !ok {
					return
				}
				health.SetLastTickTime(time.Now())
				select {
				case engineCh <- tick:
				default:
				}
				select {
				case monitorCh <- tick:
				default:
				}
			}
		}
	}()

	if err := eng.Start(ctx, engineCh); err != nil {
		log.Error("engine start failed", "err", err)
		os.Exit(1)
	}
	go mon.Run(ctx, monitorCh, cfg.MonitorRefresh)

	// ---- Tick feed: live WebSocket or in-process simulation ----
	if cfg.FeedURL != "" {
		feed, err := wsfeed.New(wsfeed.Config{URL: cfg.FeedURL}, log)
		if err != nil {
			log.Error("feed init failed", "url", cfg.FeedURL, "err", err)
			os.Exit(1)
		}
		feed.OnReconnect = prom.WSReconnects.Inc
		feed.OnConnected = health.SetFeedConnected
		go func() {
			if err := feed.Start(ctx, tickCh); err != nil {
				log.Error("feed error", "err", err)
			}
		}()
		log.Info("live feed configured", "url", cfg.FeedURL)
	} else {
		feed := sim.New(cfg.ParseSimSymbols(), cfg.SimInterval, log)
		health.SetFeedConnected(true)
		go feed.Start(ctx, tickCh)
	}

	log.Info("signal engine ready",
		"workers", cfg.Workers, "gateway", cfg.GatewayAddr, "metrics", cfg.MetricsAddr,
		"strategies", registry.Len())

	// ---- Wait for shutdown ----
	<-sigCh
	log.Info("shutdown signal received")
	cancel()
	eng.Stop()
	statuses.Close()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	metricsSrv.Stop(shutCtx)
	log.Info("shutdown complete")
}

// seedDefaults installs one system hybrid strategy per simulated symbol so
// a fresh database produces signals out of the box.
func seedDefaults(ctx context.Context, store *sqlitestore.Store, symbols []string, log *slog.Logger) {
	for _, sym := range symbols {
		id := "hybrid-" + strings.ToLower(strings.NewReplacer("/", "-", ":", "-").Replace(sym))
		cfg := strategy.Config{
			ID:        id,
			Name:      "Hybrid " + sym,
			Symbol:    sym,
			Timeframe: "1m",
			System:    true,
			Rules:     rules.Tree{Condition: rules.CondAND},
		}
		if err := store.UpsertStrategy(ctx, cfg, true); err != nil {
			log.Warn("failed to seed strategy", "strategy", id, "err", err)
			continue
		}
		log.Info("seeded default strategy", "strategy", id, "symbol", sym)
	}
}
