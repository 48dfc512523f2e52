// Package metrics exposes Prometheus metrics and a health endpoint for the
// signal engine.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	TicksTotal     prometheus.Counter
	MalformedTicks prometheus.Counter
	WorkerDrops    prometheus.Counter
	EvalDur        prometheus.Histogram

	SignalsEmitted     *prometheus.CounterVec // labels: direction
	CooldownSuppressed prometheus.Counter
	SinkErrors         prometheus.Counter
	SignalsClosed      *prometheus.CounterVec // labels: status

	ActiveStrategies prometheus.Gauge
	WatchedSignals   prometheus.Gauge
	StatusDrops      prometheus.Counter
	GatewayDrops     prometheus.Counter
	WSReconnects     prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_ticks_total",
			Help: "Total ticks accepted by the engine",
		}),
		MalformedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_malformed_ticks_total",
			Help: "Ticks rejected at ingest (bad symbol or price)",
		}),
		WorkerDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_worker_drops_total",
			Help: "Ticks dropped because a worker queue was full",
		}),
		EvalDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_eval_duration_seconds",
			Help:    "Strategy evaluation latency per tick",
			Buckets: []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		}),
		SignalsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_signals_emitted_total",
			Help: "Signals emitted (by direction)",
		}, []string{"direction"}),
		CooldownSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_cooldown_suppressed_total",
			Help: "Signals suppressed by the per-strategy cooldown",
		}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_sink_errors_total",
			Help: "Signal sink publish failures",
		}),
		SignalsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_signals_closed_total",
			Help: "Signals auto-closed by the monitor (by status)",
		}, []string{"status"}),
		ActiveStrategies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_active_strategies",
			Help: "Strategies in the current registry snapshot",
		}),
		WatchedSignals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_watched_signals",
			Help: "Open signals tracked by the monitor",
		}),
		StatusDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_status_drops_total",
			Help: "Status updates dropped on a full fan-out subscriber",
		}),
		GatewayDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_gateway_drops_total",
			Help: "Messages dropped on a full WebSocket client queue",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_ws_reconnects_total",
			Help: "Tick feed WebSocket reconnection attempts",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.MalformedTicks,
		m.WorkerDrops,
		m.EvalDur,
		m.SignalsEmitted,
		m.CooldownSuppressed,
		m.SinkErrors,
		m.SignalsClosed,
		m.ActiveStrategies,
		m.WatchedSignals,
		m.StatusDrops,
		m.GatewayDrops,
		m.WSReconnects,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	LastTickTime   time.Time `json:"last_tick_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency and connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency and health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.FeedConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		FeedConnected   bool    `json:"feed_connected"`
		LastTickTime    string  `json:"last_tick_time"`
		TickAge         string  `json:"tick_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	log  *slog.Logger
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		log:  log,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
