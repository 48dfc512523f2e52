package bus

import (
	"testing"

	"signal-enginev1/internal/model"
)

func status(symbol string, price float64) model.StrategyStatus {
	return model.StrategyStatus{Symbol: symbol, Price: price}
}

func TestFanOut_DeliversToAllSubscribers(t *testing.T) {
	f := New(4)
	a := f.Subscribe()
	b := f.Subscribe()

	f.Publish(status("AAPL", 185))

	got := <-a
	if got.Symbol != "AAPL" {
		t.Errorf("subscriber a got %+v", got)
	}
	got = <-b
	if got.Price != 185 {
		t.Errorf("subscriber b got %+v", got)
	}
}

func TestFanOut_SlowSubscriberDropsNotBlocks(t *testing.T) {
	f := New(1)
	slow := f.Subscribe()

	var drops int
	f.OnDrop = func(idx int) {
		if idx != 0 {
			t.Errorf("expected drop on subscriber 0, got %d", idx)
		}
		drops++
	}

	// Second publish overflows the cap-1 channel; must not block.
	f.Publish(status("AAPL", 1))
	f.Publish(status("AAPL", 2))

	if drops != 1 {
		t.Fatalf("expected 1 drop, got %d", drops)
	}
	if got := <-slow; got.Price != 1 {
		t.Errorf("subscriber should hold the first update, got %+v", got)
	}

	// After draining, delivery resumes.
	f.Publish(status("AAPL", 3))
	if got := <-slow; got.Price != 3 {
		t.Errorf("expected the post-drain update, got %+v", got)
	}
	if drops != 1 {
		t.Errorf("unexpected extra drops: %d", drops)
	}
}

func TestFanOut_CloseEndsSubscriptions(t *testing.T) {
	f := New(4)
	sub := f.Subscribe()
	f.Close()

	if _, ok := <-sub; ok {
		t.Fatal("expected closed subscriber channel")
	}
	// Publish after close is a no-op, not a panic.
	f.Publish(status("AAPL", 1))
	f.Close()
}
