// Package wsfeed provides a WebSocket ingest client that connects to a
// tick server (e.g. cmd/ticksim) and feeds ticks into the engine pipeline.
//
// The expected JSON message format on the wire is identical to model.Tick:
//
//	{"symbol":"AAPL","price":185.42,"volume":10,"ts":"..."}
package wsfeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"signal-enginev1/internal/model"
)

// Config holds configuration for the WebSocket feed.
type Config struct {
	// URL of the tick WebSocket server, e.g. "ws://localhost:9001/ws"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Feed connects to a plain-JSON WebSocket tick server and pushes model.Tick
// values into tickCh.
type Feed struct {
	cfg Config
	log *slog.Logger

	// OnReconnect is an optional hook called on each reconnection attempt.
	OnReconnect func()

	// OnConnected is an optional hook called with the connection state.
	OnConnected func(bool)
}

// New creates a Feed. Returns an error if the URL is unparseable.
func New(cfg Config, log *slog.Logger) (*Feed, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &Feed{cfg: cfg, log: log}, nil
}

// Start connects to the WebSocket server and streams ticks into tickCh.
// Blocks until ctx is cancelled. Reconnects automatically on disconnect
// with exponential backoff.
func (f *Feed) Start(ctx context.Context, tickCh chan<- model.Tick) error {
	delay := f.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := f.runOnce(ctx, tickCh)
		if err == nil {
			return nil
		}
		if f.OnConnected != nil {
			f.OnConnected(false)
		}

		f.log.Warn("feed disconnected, reconnecting", "err", err, "delay", delay)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or
// ctx cancel.
func (f *Feed) runOnce(ctx context.Context, tickCh chan<- model.Tick) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info("feed connected", "url", f.cfg.URL)
	if f.OnConnected != nil {
		f.OnConnected(true)
	}

	// Context watcher closes the connection so ReadMessage unblocks.
	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var tick model.Tick
		if err := json.Unmarshal(raw, &tick); err != nil {
			f.log.Warn("feed parse error", "err", err)
			continue
		}
		if tick.Symbol == "" {
			continue
		}
		if tick.TS.IsZero() {
			tick.TS = time.Now().UTC()
		}

		select {
		case tickCh <- tick:
		default:
			f.log.Warn("tick channel full, dropping tick", "symbol", tick.Symbol)
		}
	}
}
