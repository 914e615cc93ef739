package stream

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"civicconnect.org/internal/report"
)

var subscribersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "civic_realtime_subscribers",
	Help: "Active subscriptions to the reports change stream.",
})

var registerOnce sync.Once

// Register adds the stream metrics to the default registry.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(subscribersGauge)
	})
}

// Hub fan-outs report changes to all active subscribers (SSE/WebSocket clients,
// in-process repositories).
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan report.Change
	next   int
	buffer int
}

// New initialises an empty hub.
func New() *Hub {
	return &Hub{
		subs:   make(map[int]chan report.Change),
		buffer: 32,
	}
}

// Subscribe registers a subscriber and returns a channel which will receive changes.
// The channel is closed when the provided context ends.
func (h *Hub) Subscribe(ctx context.Context) <-chan report.Change {
	ch := make(chan report.Change, h.buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()
	subscribersGauge.Inc()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
		subscribersGauge.Dec()
	}()

	return ch
}

// Publish fan-outs the change to all subscribers.
func (h *Hub) Publish(c report.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- c:
		default:
			// Drop when subscriber is slow to avoid blocking writers.
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
