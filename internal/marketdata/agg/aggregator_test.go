package agg

import (
	"testing"
	"time"

	"signal-enginev1/internal/model"
)

var base = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// makeTick creates a test tick offset seconds after the base time.
func makeTick(symbol string, offsetSec int, price float64) model.Tick {
	return model.Tick{
		Symbol: symbol,
		Price:  price,
		Volume: 1,
		TS:     base.Add(time.Duration(offsetSec) * time.Second),
	}
}

func TestBuffer_OHLCMerge(t *testing.T) {
	b := NewBuffer(time.Minute, 10)

	// Four ticks inside one minute bucket.
	b.OnTick(makeTick("AAPL", 0, 100))
	b.OnTick(makeTick("AAPL", 10, 105))
	b.OnTick(makeTick("AAPL", 20, 95))
	cur, closed := b.OnTick(makeTick("AAPL", 30, 102))

	if closed != nil {
		t.Fatalf("no bucket rollover expected, got closed candle %+v", *closed)
	}
	if b.Len() != 1 {
		t.Fatalf("expected 1 candle, got %d", b.Len())
	}
	if cur.Open != 100 {
		t.Errorf("expected open=100, got %v", cur.Open)
	}
	if cur.High != 105 {
		t.Errorf("expected high=105, got %v", cur.High)
	}
	if cur.Low != 95 {
		t.Errorf("expected low=95, got %v", cur.Low)
	}
	if cur.Close != 102 {
		t.Errorf("expected close=102, got %v", cur.Close)
	}
	if !cur.BucketStart.Equal(base) {
		t.Errorf("expected bucket start %v, got %v", base, cur.BucketStart)
	}
}

func TestBuffer_BucketRollover(t *testing.T) {
	b := NewBuffer(time.Minute, 10)

	b.OnTick(makeTick("AAPL", 0, 100))
	b.OnTick(makeTick("AAPL", 30, 104))
	cur, closed := b.OnTick(makeTick("AAPL", 60, 110))

	if b.Len() != 2 {
		t.Fatalf("expected 2 candles after rollover, got %d", b.Len())
	}
	if closed == nil {
		t.Fatal("expected a closed candle on rollover")
	}
	if closed.Close != 104 {
		t.Errorf("expected closed candle close=104, got %v", closed.Close)
	}
	if cur.Open != 110 || cur.Close != 110 {
		t.Errorf("new candle should open at tick price, got %+v", cur)
	}
	if !cur.BucketStart.Equal(base.Add(time.Minute)) {
		t.Errorf("expected new bucket at %v, got %v", base.Add(time.Minute), cur.BucketStart)
	}
}

func TestBuffer_CapEvictsOldest(t *testing.T) {
	b := NewBuffer(time.Minute, 3)

	// Five distinct minute buckets into a cap-3 window.
	for i := 0; i < 5; i++ {
		b.OnTick(makeTick("AAPL", i*60, 100+float64(i)))
	}

	if b.Len() != 3 {
		t.Fatalf("expected window capped at 3, got %d", b.Len())
	}
	candles := b.Candles()
	if candles[0].Open != 102 {
		t.Errorf("expected oldest surviving candle open=102, got %v", candles[0].Open)
	}
	if candles[2].Open != 104 {
		t.Errorf("expected newest candle open=104, got %v", candles[2].Open)
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].BucketStart.After(candles[i-1].BucketStart) {
			t.Errorf("candles not strictly ordered at %d", i)
		}
	}
}

func TestBuffer_LateTickUpdatesOpenBucket(t *testing.T) {
	b := NewBuffer(time.Minute, 10)

	b.OnTick(makeTick("AAPL", 0, 100))
	b.OnTick(makeTick("AAPL", 60, 110))

	// A tick stamped in the previous minute still lands on the open candle.
	cur, closed := b.OnTick(makeTick("AAPL", 30, 90))

	if closed != nil {
		t.Fatalf("late tick must not roll the bucket, got closed %+v", *closed)
	}
	if b.Len() != 2 {
		t.Fatalf("late tick must not create a candle, got %d", b.Len())
	}
	if cur.Low != 90 || cur.Close != 90 {
		t.Errorf("late tick should update open candle low/close, got %+v", cur)
	}
	if !cur.BucketStart.Equal(base.Add(time.Minute)) {
		t.Errorf("open bucket moved: %v", cur.BucketStart)
	}
}

func TestBuffer_PrimeKeepsNewest(t *testing.T) {
	b := NewBuffer(time.Minute, 3)

	backfill := make([]model.Candle, 5)
	for i := range backfill {
		backfill[i] = model.Candle{
			BucketStart: base.Add(time.Duration(i) * time.Minute),
			Open:        float64(100 + i), High: float64(100 + i),
			Low: float64(100 + i), Close: float64(100 + i),
		}
	}
	b.Prime(backfill)

	if b.Len() != 3 {
		t.Fatalf("expected prime to keep newest 3, got %d", b.Len())
	}
	if b.Candles()[0].Open != 102 {
		t.Errorf("expected oldest primed candle open=102, got %v", b.Candles()[0].Open)
	}

	// A live tick in the next bucket appends after the primed window.
	b.OnTick(makeTick("AAPL", 5*60, 200))
	if b.Len() != 3 {
		t.Fatalf("cap must hold after live tick, got %d", b.Len())
	}
	last := b.Candles()[b.Len()-1]
	if last.Open != 200 {
		t.Errorf("expected live candle appended, got %+v", last)
	}
}

func TestAggregator_IsolatesSymbolsAndBuckets(t *testing.T) {
	a := New(10)

	a.OnTick(makeTick("AAPL", 0, 100), time.Minute)
	a.OnTick(makeTick("TSLA", 0, 240), time.Minute)
	a.OnTick(makeTick("AAPL", 0, 100), 5*time.Minute)

	buf1, created := a.Buffer("AAPL", time.Minute)
	if created {
		t.Fatal("AAPL 1m buffer should already exist")
	}
	buf5, _ := a.Buffer("AAPL", 5*time.Minute)
	bufT, _ := a.Buffer("TSLA", time.Minute)

	if buf1.Len() != 1 || buf5.Len() != 1 || bufT.Len() != 1 {
		t.Fatalf("expected one candle per window, got %d/%d/%d",
			buf1.Len(), buf5.Len(), bufT.Len())
	}
	if bufT.Candles()[0].Open != 240 {
		t.Errorf("TSLA window polluted: %+v", bufT.Candles()[0])
	}

	_, created = a.Buffer("MSFT", time.Minute)
	if !created {
		t.Error("expected created=true for unseen symbol")
	}
}
