package nvr

import (
	"context"
	"log"

	"github.com/technosupport/hikvision-bridge/internal/metrics"
)

// EventPublisher delivers domain events to one bus.
type EventPublisher interface {
	Publish(ctx context.Context, event *DomainEvent) error
}

type namedPublisher struct {
	name string
	pub  EventPublisher
}

// MultiPublisher fans one event out to every configured bus. A failing bus is
// logged and does not stop the others.
type MultiPublisher struct {
	pubs []namedPublisher
}

func NewMultiPublisher() *MultiPublisher {
	return &MultiPublisher{}
}

// Add registers a bus under name, used in logs and metrics. nil is ignored.
func (m *MultiPublisher) Add(name string, pub EventPublisher) {
	if pub == nil {
		return
	}
	m.pubs = append(m.pubs, namedPublisher{name: name, pub: pub})
}

func (m *MultiPublisher) Len() int { return len(m.pubs) }

func (m *MultiPublisher) Publish(ctx context.Context, event *DomainEvent) error {
	var firstErr error
	for _, p := range m.pubs {
		if err := p.pub.Publish(ctx, event); err != nil {
			log.Printf("[ERROR] Failed to publish event %s to %s: %v", event.ID, p.name, err)
			metrics.EventsPublishedTotal.WithLabelValues(p.name, "error").Inc()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.EventsPublishedTotal.WithLabelValues(p.name, "ok").Inc()
	}
	return firstErr
}
