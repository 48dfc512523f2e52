// Package redis publishes engine output to Redis channels for the outer
// service (socket broadcast, notification queueing) and listens for
// strategy reload nudges from the admin collaborator.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"signal-enginev1/internal/model"
)

// Pub/sub channel names shared with the outer service.
const (
	SignalChannel = "signals"
	StatusChannel = "strategy_update"
	ReloadChannel = "strategy_reload"
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher publishes signals and strategy status over Redis pub/sub.
// Implements model.SignalSink and model.StatusSink.
type Publisher struct {
	client *goredis.Client
	log    *slog.Logger
}

// NewPublisher creates a Publisher and pings the server.
func NewPublisher(cfg PublisherConfig, log *slog.Logger) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("redis publisher connected", "addr", cfg.Addr)
	return &Publisher{client: client, log: log}, nil
}

// Client returns the underlying client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Close releases the connection.
func (p *Publisher) Close() error { return p.client.Close() }

// Publish sends a generated signal to the signals channel.
func (p *Publisher) Publish(ctx context.Context, sig model.GeneratedSignal) error {
	if err := p.client.Publish(ctx, SignalChannel, sig.JSON()).Err(); err != nil {
		return fmt.Errorf("redis publish signal: %w", err)
	}
	return nil
}

// PublishStatus sends a strategy status snapshot to the status channel.
func (p *Publisher) PublishStatus(ctx context.Context, st model.StrategyStatus) error {
	if err := p.client.Publish(ctx, StatusChannel, st.JSON()).Err(); err != nil {
		return fmt.Errorf("redis publish status: %w", err)
	}
	return nil
}

// RunStatus drains a status subscription into Redis. Publish errors are
// logged and skipped — live status is best effort.
func (p *Publisher) RunStatus(ctx context.Context, statusCh <-chan model.StrategyStatus) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-statusCh:
			if !ok {
				return
			}
			if err := p.PublishStatus(ctx, st); err != nil {
				p.log.Warn("status publish failed", "symbol", st.Symbol, "err", err)
			}
		}
	}
}

// SubscribeReload listens on the reload channel and invokes fn for every
// message. The admin collaborator publishes after any strategy mutation.
// Blocks until ctx is cancelled.
func (p *Publisher) SubscribeReload(ctx context.Context, fn func()) {
	sub := p.client.Subscribe(ctx, ReloadChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			p.log.Info("strategy reload nudge received")
			fn()
		}
	}
}
