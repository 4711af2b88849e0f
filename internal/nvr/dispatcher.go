package nvr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"strings"
	"sync"
	"time"

	"github.com/technosupport/hikvision-bridge/internal/metrics"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
)

const publishTimeout = 10 * time.Second

// Outcome of one inbound notification.
type Outcome struct {
	Result   string   `json:"result"` // dispatched, cleared, ignored
	EventID  string   `json:"event_id,omitempty"`
	Channel  int      `json:"channel_id,omitempty"`
	Entities []string `json:"entities,omitempty"`
}

// Dispatcher turns alert notifications into entity state, domain events and
// auto-reset timers.
type Dispatcher struct {
	device *Device
	store  *EntityStore
	resets *ResetRegistry
	bus    EventPublisher
	norm   *hikvision.Normalizer

	wg sync.WaitGroup
}

func NewDispatcher(device *Device, store *EntityStore, bus EventPublisher, resetTimeout time.Duration) *Dispatcher {
	d := &Dispatcher{
		device: device,
		store:  store,
		bus:    bus,
		norm:   hikvision.DefaultNormalizer(),
	}
	d.resets = NewResetRegistry(resetTimeout, d.reset)
	return d
}

func (d *Dispatcher) Resets() *ResetRegistry { return d.resets }

// Handle processes one webhook body. An error means the body could not be
// parsed and nothing changed.
func (d *Dispatcher) Handle(ctx context.Context, contentType string, body []byte, remote string) (Outcome, error) {
	payload, payloadType, err := alertPart(contentType, body)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("invalid").Inc()
		return Outcome{}, err
	}

	alert, err := d.norm.ParseEventNotification(payload, hikvision.DetectFormat(payloadType, payload))
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("invalid").Inc()
		log.Printf("[NOTIFY] Unparseable alert from %s: %v", remote, err)
		return Outcome{}, err
	}

	channel, ok := d.resolve(alert)
	if !ok {
		return d.ignore(alert, remote, "unknown channel"), nil
	}
	generic, ok := d.device.Descriptor(channel, alert.EventID, "")
	if !ok {
		return d.ignore(alert, remote, "event not modeled"), nil
	}

	ids := []string{generic.UniqueID}
	if alert.DetectionTarget != nil {
		if target, ok := d.device.Descriptor(channel, alert.EventID, *alert.DetectionTarget); ok {
			ids = append(ids, target.UniqueID)
		}
	}

	out := Outcome{EventID: alert.EventID, Channel: channel, Entities: ids}

	if alert.Cleared {
		for _, id := range ids {
			d.store.SetOn(id, false)
		}
		out.Result = "cleared"
		metrics.NotificationsTotal.WithLabelValues("dispatched").Inc()
		return out, nil
	}

	// arm first: a reset already running for these ids finishes before they go on
	for _, id := range ids {
		d.resets.Arm(id)
	}
	for _, id := range ids {
		d.store.SetOn(id, true)
	}
	if alert.EventID == hikvision.EventVehicleDetection && alert.LicensePlate != nil {
		d.updatePlate(channel, alert)
	}

	d.publish(NewAlertEvent(d.device.SerialNo(), eventChannel(generic, channel), alert))

	out.Result = "dispatched"
	metrics.NotificationsTotal.WithLabelValues("dispatched").Inc()
	return out, nil
}

// resolve returns the descriptor channel key for an alert.
func (d *Dispatcher) resolve(alert *hikvision.AlertInfo) (int, bool) {
	if alert.EventID == hikvision.EventIO {
		port := alert.IOPortID
		if port == 0 {
			port = alert.ChannelID
		}
		return port, port > 0
	}
	if def, ok := hikvision.LookupEvent(alert.EventID); ok && def.DirectURL != "" {
		return 0, true
	}

	channelID := alert.ChannelID
	if channelID == 0 && !d.device.Capabilities.IsNVR {
		channelID = 1
	}
	cam := d.device.ResolveChannel(channelID)
	if cam == nil {
		return 0, false
	}
	return cam.ID, true
}

func eventChannel(desc EventDescriptor, channel int) int {
	if desc.ID == hikvision.EventIO {
		return 0
	}
	return channel
}

func (d *Dispatcher) ignore(alert *hikvision.AlertInfo, remote, reason string) Outcome {
	metrics.NotificationsTotal.WithLabelValues("ignored").Inc()
	log.Printf("[NOTIFY] Ignored %s on channel %d from %s: %s", alert.EventID, alert.ChannelID, remote, reason)
	return Outcome{Result: "ignored", EventID: alert.EventID, Channel: alert.ChannelID}
}

func (d *Dispatcher) updatePlate(channel int, alert *hikvision.AlertInfo) {
	attrs := map[string]any{"plate_confidence": alert.PlateConfidence}
	for k, v := range map[string]*string{
		"plate_color":   alert.PlateColor,
		"plate_type":    alert.PlateType,
		"vehicle_color": alert.VehicleColor,
	} {
		if v != nil {
			attrs[k] = *v
		}
	}
	serial := d.device.SerialNo()
	d.store.SetState(LicensePlateID(serial, channel), *alert.LicensePlate, attrs)
	if d.device.Capabilities.IsNVR {
		d.store.SetState(LicensePlateID(serial, 0), *alert.LicensePlate, attrs)
	}
}

func (d *Dispatcher) publish(event *DomainEvent) {
	if d.bus == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := d.bus.Publish(ctx, event); err != nil {
			log.Printf("[WARN] Event %s not delivered everywhere: %v", event.ID, err)
		}
	}()
}

// reset is the auto-reset callback.
func (d *Dispatcher) reset(entityID string) {
	if !d.store.IsOn(entityID) {
		metrics.AutoResetsTotal.WithLabelValues("noop").Inc()
		return
	}
	d.store.SetOn(entityID, false)
	metrics.AutoResetsTotal.WithLabelValues("reset").Inc()
}

// Drain waits for in-flight publishes.
func (d *Dispatcher) Drain() {
	d.wg.Wait()
}

// Close cancels pending resets and waits for in-flight publishes.
func (d *Dispatcher) Close() {
	d.resets.CancelAll()
	d.wg.Wait()
}

// alertPart returns the alert document of a webhook body. Multipart bodies
// (ANPR and face alerts with pictures) carry it in the first xml or json part.
func alertPart(contentType string, body []byte) ([]byte, string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return body, contentType, nil
	}

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", &hikvision.ParseError{Err: errors.New("multipart body has no alert part")}
		}
		if err != nil {
			return nil, "", &hikvision.ParseError{Err: fmt.Errorf("multipart: %w", err)}
		}
		partType := strings.ToLower(part.Header.Get("Content-Type"))
		if strings.Contains(partType, "xml") || strings.Contains(partType, "json") {
			data, err := io.ReadAll(part)
			if err != nil {
				return nil, "", &hikvision.ParseError{Err: fmt.Errorf("multipart: %w", err)}
			}
			return data, partType, nil
		}
	}
}
