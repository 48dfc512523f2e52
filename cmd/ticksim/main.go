// cmd/ticksim — demo WebSocket tick server.
// Broadcasts simulated tick data so sigengine can run against FEED_URL
// without a real market feed.
//
// Tick JSON shape is identical to model.Tick:
//
//	{"symbol":"AAPL","price":185.42,"volume":10,"ts":"..."}
//
// Config (env vars):
//
//	TICKSIM_ADDR         — listen address (default ":9001")
//	TICKSIM_SYMBOLS      — comma-separated symbols (default "SPX,NDQ,AAPL,BTC/USD")
//	TICKSIM_INTERVAL_MS  — broadcast interval milliseconds (default "1000")
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signal-enginev1/internal/logger"
)

// tickMsg mirrors model.Tick for JSON serialisation.
type tickMsg struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
	TS     time.Time `json:"ts"`
}

// instrument holds per-symbol simulation state.
type instrument struct {
	Symbol string
	Price  float64
}

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	log     *slog.Logger
}

func newHub(log *slog.Logger) *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte), log: log}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client — drop tick
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn("upgrade error", "err", err)
			return
		}
		h.log.Info("client connected", "remote", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			h.log.Info("client disconnected", "remote", r.RemoteAddr)
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// walkPrice applies a random move of up to ±0.15%, floored at one cent.
func walkPrice(rng *rand.Rand, price float64) float64 {
	pct := (rng.Float64()*0.3 - 0.15) / 100.0
	next := price * (1 + pct)
	if next < 0.01 {
		next = 0.01
	}
	return next
}

func runGenerator(h *hub, instruments []instrument, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for range ticker.C {
		now := time.Now().UTC()
		for i := range instruments {
			instruments[i].Price = walkPrice(rng, instruments[i].Price)
			msg := tickMsg{
				Symbol: instruments[i].Symbol,
				Price:  instruments[i].Price,
				Volume: float64(rng.Intn(100) + 1),
				TS:     now,
			}
			b, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

func main() {
	log := logger.Init("ticksim", slog.LevelInfo)

	addr := envOrDefault("TICKSIM_ADDR", ":9001")
	symbolsEnv := envOrDefault("TICKSIM_SYMBOLS", "SPX,NDQ,AAPL,BTC/USD")
	intervalMs := envIntOrDefault("TICKSIM_INTERVAL_MS", 1000)

	instruments := parseInstruments(symbolsEnv)
	if len(instruments) == 0 {
		log.Error("no symbols configured via TICKSIM_SYMBOLS")
		os.Exit(1)
	}
	log.Info("tick simulator starting", "symbols", symbolsEnv, "interval_ms", intervalMs)

	h := newHub(log)
	go runGenerator(h, instruments, time.Duration(intervalMs)*time.Millisecond)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"ticksim"}`)
	})

	log.Info("ticksim listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
}

func parseInstruments(s string) []instrument {
	seedPrices := map[string]float64{
		"SPX":     4750,
		"NDQ":     16800,
		"AAPL":    185,
		"MSFT":    370,
		"GOOG":    140,
		"TSLA":    240,
		"BTC/USD": 45000,
		"ETH/USD": 2400,
	}

	var result []instrument
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		price := seedPrices[part]
		if price == 0 {
			price = 1000
		}
		result = append(result, instrument{Symbol: part, Price: price})
	}
	return result
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
