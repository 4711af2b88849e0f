package nvr

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/technosupport/hikvision-bridge/internal/metrics"
)

const subscriberBuffer = 32

// Hub fans domain events out to websocket subscribers. A subscriber that is
// not keeping up loses events rather than blocking the others.
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

// Subscribe returns a message channel and the function that releases it.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	metrics.WebsocketClients.Set(float64(len(h.subs)))
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			metrics.WebsocketClients.Set(float64(len(h.subs)))
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) Publish(ctx context.Context, event *DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- data:
		default:
			log.Printf("[WARN] websocket subscriber is full, dropping event %s", event.ID)
		}
	}
	return nil
}
