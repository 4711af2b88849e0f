package nvr

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// natsConn is the part of *nats.Conn the publisher uses.
type natsConn interface {
	Publish(subj string, data []byte) error
}

var _ natsConn = (*nats.Conn)(nil)

// NATSPublisher publishes each event to {subject}.{serial}.{event_id}.
type NATSPublisher struct {
	conn       natsConn
	subject    string
	maxRetries int
}

func NewNATSPublisher(conn *nats.Conn, subject string, maxRetries int) *NATSPublisher {
	return newNATSPublisher(conn, subject, maxRetries)
}

func newNATSPublisher(conn natsConn, subject string, maxRetries int) *NATSPublisher {
	return &NATSPublisher{
		conn:       conn,
		subject:    subject,
		maxRetries: maxRetries,
	}
}

func (p *NATSPublisher) Subject(event *DomainEvent) string {
	subject := p.subject
	if event.DeviceSerial != "" {
		subject += "." + Slugify(event.DeviceSerial)
	}
	if id, ok := event.Data["event_id"].(string); ok && id != "" {
		subject += "." + id
	}
	return subject
}

func (p *NATSPublisher) Publish(ctx context.Context, event *DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	subject := p.Subject(event)

	for i := 0; i <= p.maxRetries; i++ {
		err = p.conn.Publish(subject, data)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Backoff
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}

	return fmt.Errorf("publish failed after %d retries: %w", p.maxRetries, err)
}
