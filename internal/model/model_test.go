package model

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestTick_Valid(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		name string
		tick Tick
		want bool
	}{
		{"ok", Tick{Symbol: "AAPL", Price: 185.42, TS: now}, true},
		{"ok crypto", Tick{Symbol: "BTC/USD", Price: 45000, TS: now}, true},
		{"empty symbol", Tick{Symbol: "", Price: 100, TS: now}, false},
		{"zero price", Tick{Symbol: "AAPL", Price: 0, TS: now}, false},
		{"negative price", Tick{Symbol: "AAPL", Price: -1, TS: now}, false},
		{"nan price", Tick{Symbol: "AAPL", Price: math.NaN(), TS: now}, false},
		{"inf price", Tick{Symbol: "AAPL", Price: math.Inf(1), TS: now}, false},
	}
	for _, c := range cases {
		if got := c.tick.Valid(); got != c.want {
			t.Errorf("%s: Valid() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestMapSegment(t *testing.T) {
	cases := []struct {
		symbol string
		want   string
	}{
		{"NSE:NIFTY24APRFUT", "FNO"},
		{"NSE:SBIN-EQ", "EQUITY"},
		{"BSE:500325", "EQUITY"},
		{"MCX:GOLDM24JUNFUT", "COMMODITY"},
		{"CDS:USDINR24APRFUT", "CURRENCY"},
		{"BINANCE:BTCUSDT", "CRYPTO"},
		{"BITSTAMP:ETHUSD", "CRYPTO"},
		{"AAPL", "EQUITY"},
		{"UNKNOWN:XYZ", "EQUITY"},
	}
	for _, c := range cases {
		if got := MapSegment(c.symbol); got != c.want {
			t.Errorf("MapSegment(%q) = %q, want %q", c.symbol, got, c.want)
		}
	}
}

func TestCloses(t *testing.T) {
	candles := []Candle{{Close: 1}, {Close: 2}, {Close: 3}}
	got := Closes(candles)
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("Closes = %v", got)
	}
}

type stubSink struct {
	name string
	err  error
	got  []GeneratedSignal
}

func (s *stubSink) Publish(_ context.Context, sig GeneratedSignal) error {
	s.got = append(s.got, sig)
	return s.err
}

func TestMultiSink_DeliversToAllAndReturnsFirstError(t *testing.T) {
	a := &stubSink{name: "a"}
	b := &stubSink{name: "b", err: errors.New("b down")}
	c := &stubSink{name: "c"}

	sink := MultiSink(a, b, c)
	sig := GeneratedSignal{StrategyID: "s1", Symbol: "AAPL", Direction: DirectionBuy}
	err := sink.Publish(context.Background(), sig)

	if err == nil || err.Error() != "b down" {
		t.Fatalf("expected first error from b, got %v", err)
	}
	for _, s := range []*stubSink{a, b, c} {
		if len(s.got) != 1 {
			t.Errorf("sink %s received %d signals, want 1 (failures must not short-circuit)",
				s.name, len(s.got))
		}
	}
}
