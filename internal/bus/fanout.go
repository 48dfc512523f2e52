// Package bus provides the explicit observer fan-out the engine publishes
// live strategy status through. Consumers (WebSocket gateway, Redis
// publisher) subscribe for their own buffered channel; a slow consumer
// drops updates instead of blocking the tick pipeline.
package bus

import (
	"sync"

	"signal-enginev1/internal/model"
)

// FanOut broadcasts strategy status snapshots to all subscribers.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan model.StrategyStatus
	bufSize int
	closed  bool

	// OnDrop is called when an update is dropped for a subscriber.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for subscriber channels.
func New(bufSize int) *FanOut {
	return &FanOut{bufSize: bufSize}
}

// Subscribe creates and returns a new subscriber channel. Must not be
// called after Close.
func (f *FanOut) Subscribe() <-chan model.StrategyStatus {
	ch := make(chan model.StrategyStatus, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Publish delivers the status to every subscriber, dropping for any whose
// channel is full. Never blocks.
func (f *FanOut) Publish(st model.StrategyStatus) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for i, ch := range f.outputs {
		select {
		case ch <- st:
		default:
			if f.OnDrop != nil {
				f.OnDrop(i)
			}
		}
	}
}

// Close closes all subscriber channels.
func (f *FanOut) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.outputs {
		close(ch)
	}
}
