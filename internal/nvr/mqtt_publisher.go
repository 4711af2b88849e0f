package nvr

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

func BuildMQTTClient(o MQTTOptions) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	if o.Username != "" {
		opts.SetUsername(o.Username)
	}
	if o.Password != "" {
		opts.SetPassword(o.Password)
	}
	opts.OnConnect = func(c mqtt.Client) { log.Printf("[MQTT] Connected to %s", o.Broker) }
	opts.OnConnectionLost = func(c mqtt.Client, err error) { log.Printf("[WARN] MQTT connection lost: %v", err) }

	return mqtt.NewClient(opts)
}

// ConnectWithBackoff retries Connect until it succeeds or ctx ends.
func ConnectWithBackoff(ctx context.Context, client mqtt.Client, start, max time.Duration) error {
	backoff := start
	for {
		token := client.Connect()
		if token.Wait() && token.Error() == nil {
			return nil
		}
		log.Printf("[WARN] MQTT connect error: %v; retrying in %s", token.Error(), backoff)
		select {
		case <-time.After(backoff):
			if backoff < max {
				backoff *= 2
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// MQTTPublisher publishes events to {prefix}/{serial}/{event_id} and entity
// states to {prefix}/{serial}/state/{unique_id}.
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
}

func NewMQTTPublisher(client mqtt.Client, prefix string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix, qos: qos, timeout: 5 * time.Second}
}

func (p *MQTTPublisher) EventTopic(event *DomainEvent) string {
	id, _ := event.Data["event_id"].(string)
	return fmt.Sprintf("%s/%s/%s", p.prefix, Slugify(event.DeviceSerial), id)
}

func (p *MQTTPublisher) StateTopic(serial, uniqueID string) string {
	return fmt.Sprintf("%s/%s/state/%s", p.prefix, Slugify(serial), uniqueID)
}

func (p *MQTTPublisher) Publish(ctx context.Context, event *DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	return p.send(p.EventTopic(event), false, data)
}

// PublishState sends a retained entity state message.
func (p *MQTTPublisher) PublishState(serial string, e Entity) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	return p.send(p.StateTopic(serial, e.UniqueID), true, data)
}

func (p *MQTTPublisher) send(topic string, retained bool, data []byte) error {
	token := p.client.Publish(topic, p.qos, retained, data)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}
