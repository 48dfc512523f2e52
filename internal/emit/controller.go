// Package emit turns rule matches and indicator flips into concrete trade
// signals, applying the per-strategy cooldown before handing the signal to
// the external sink.
package emit

import (
	"context"
	"log/slog"
	"math"
	"time"

	"signal-enginev1/internal/indicator"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/strategy"
)

// DefaultCooldown is the minimum gap between two signals of the same
// direction from one strategy.
const DefaultCooldown = 15 * time.Minute

// sinkTimeout bounds the asynchronous sink hand-off.
const sinkTimeout = 10 * time.Second

// Snapshot carries the indicator state the hybrid confluence policy
// decides on.
type Snapshot struct {
	Supertrend indicator.SupertrendResult
	PSAR       indicator.PSARResult
	Structure  indicator.StructureResult
}

// Controller owns the emission decision: cooldown, stop/target
// construction, and the fire-and-forget hand-off to the sink.
type Controller struct {
	registry *strategy.Registry
	sink     model.SignalSink
	cooldown time.Duration
	log      *slog.Logger

	// now is swappable for tests.
	now func() time.Time

	// Metrics hooks (optional, set externally)
	OnEmit       func(dir model.Direction)
	OnSuppressed func()
	OnSinkError  func()
}

// NewController creates a Controller. cooldown <= 0 selects the default.
func NewController(registry *strategy.Registry, sink model.SignalSink, cooldown time.Duration, log *slog.Logger) *Controller {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Controller{
		registry: registry,
		sink:     sink,
		cooldown: cooldown,
		log:      log,
		now:      time.Now,
	}
}

// MaybeEmitHybrid applies the composite confluence policy: a BUY requires
// Supertrend's one-shot buy flip AND the PSAR below price; SELL is the
// mirror. Returns the emitted signal, or nil when nothing fired.
func (c *Controller) MaybeEmitHybrid(ctx context.Context, cfg strategy.Config, price float64, snap Snapshot) *model.GeneratedSignal {
	if !snap.Supertrend.Ready || !snap.PSAR.Ready {
		return nil
	}

	var (
		dir      model.Direction
		stopLoss float64
		target   float64
	)
	switch {
	case snap.Supertrend.IsBuy && snap.PSAR.Value < price:
		dir = model.DirectionBuy
		// Stop at the supertrend line, capped at 2% below entry.
		stopLoss = math.Min(snap.Supertrend.Value, price*0.98)
		target = price * 1.04
	case snap.Supertrend.IsSell && snap.PSAR.Value > price:
		dir = model.DirectionSell
		stopLoss = math.Max(snap.Supertrend.Value, price*1.02)
		target = price * 0.96
	default:
		return nil
	}

	return c.emit(ctx, cfg, dir, price, stopLoss, []float64{target},
		"Hybrid Strategy (Supertrend + PSAR + HH/LL)")
}

// MaybeEmitRule emits for a rule-based strategy whose tree matched this
// tick, in the strategy's configured action direction.
func (c *Controller) MaybeEmitRule(ctx context.Context, cfg strategy.Config, price float64) *model.GeneratedSignal {
	dir := cfg.Action
	if dir != model.DirectionBuy && dir != model.DirectionSell {
		dir = model.DirectionBuy
	}

	var stopLoss float64
	var targets []float64
	if dir == model.DirectionBuy {
		stopLoss = price * 0.98
		targets = []float64{price * 1.02, price * 1.04, price * 1.06}
	} else {
		stopLoss = price * 1.02
		targets = []float64{price * 0.98, price * 0.96, price * 0.94}
	}

	return c.emit(ctx, cfg, dir, price, stopLoss, targets, "Bot Signal: "+cfg.Name)
}

// emit applies the cooldown, commits the last-signal memory synchronously,
// and hands the signal to the sink without blocking the hot path.
func (c *Controller) emit(ctx context.Context, cfg strategy.Config, dir model.Direction, price, stopLoss float64, targets []float64, reason string) *model.GeneratedSignal {
	now := c.now()

	// Cooldown is direction-scoped: a repeat in the same direction within
	// the window is suppressed, the opposite direction still fires.
	if last, ok := c.registry.LastSignalAt(cfg.ID, dir); ok && now.Sub(last) < c.cooldown {
		if c.OnSuppressed != nil {
			c.OnSuppressed()
		}
		return nil
	}

	for i := range targets {
		targets[i] = round2(targets[i])
	}
	sig := model.GeneratedSignal{
		StrategyID:  cfg.ID,
		Symbol:      cfg.Symbol,
		Segment:     segmentFor(cfg),
		Direction:   dir,
		EntryPrice:  price,
		StopLoss:    round2(stopLoss),
		Targets:     targets,
		Reason:      reason,
		GeneratedAt: now,
	}

	// Commit cooldown state before any downstream I/O so a second tick
	// arriving before persistence completes cannot double-fire.
	c.registry.MarkSignal(cfg.ID, dir, now)

	c.log.Info("signal emitted",
		"strategy", cfg.ID, "symbol", cfg.Symbol, "direction", string(dir),
		"entry", sig.EntryPrice, "stop_loss", sig.StopLoss)
	if c.OnEmit != nil {
		c.OnEmit(dir)
	}

	// At-most-once best-effort delivery: a sink failure is logged and the
	// emission decision is not rolled back.
	go func() {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		defer cancel()
		if err := c.sink.Publish(sinkCtx, sig); err != nil {
			c.log.Error("signal sink publish failed", "strategy", cfg.ID, "symbol", cfg.Symbol, "err", err)
			if c.OnSinkError != nil {
				c.OnSinkError()
			}
		}
	}()

	return &sig
}

func segmentFor(cfg strategy.Config) string {
	if cfg.Segment != "" {
		return cfg.Segment
	}
	return model.MapSegment(cfg.Symbol)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
