package nvr

import (
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
)

// EventTypeAlert is the domain event type fired once per inbound notification.
const EventTypeAlert = "hikvision_event"

// DomainEvent is the envelope handed to the event buses.
type DomainEvent struct {
	ID           uuid.UUID      `json:"id"`
	Type         string         `json:"type"`
	DeviceSerial string         `json:"device_serial"`
	OccurredAt   time.Time      `json:"occurred_at"`
	Data         map[string]any `json:"data"` // absent alert fields are left out
}

// NewAlertEvent builds the event data from an alert. channel_id and event_id
// are always present; optional fields only when the device sent them.
func NewAlertEvent(serial string, channelID int, alert *hikvision.AlertInfo) *DomainEvent {
	data := map[string]any{
		"channel_id": channelID,
		"event_id":   alert.EventID,
	}
	if alert.IOPortID != 0 {
		data["io_port_id"] = alert.IOPortID
	}
	if alert.RegionID != 0 {
		data["region_id"] = alert.RegionID
	}
	if alert.PlateConfidence != 0 {
		data["plate_confidence"] = alert.PlateConfidence
	}
	if alert.FaceScore != 0 {
		data["face_score"] = alert.FaceScore
	}
	optional := map[string]*string{
		"detection_target": alert.DetectionTarget,
		"license_plate":    alert.LicensePlate,
		"plate_color":      alert.PlateColor,
		"plate_type":       alert.PlateType,
		"vehicle_color":    alert.VehicleColor,
		"person_name":      alert.PersonName,
		"person_id":        alert.PersonID,
	}
	for k, v := range optional {
		if v != nil {
			data[k] = *v
		}
	}

	return &DomainEvent{
		ID:           uuid.New(),
		Type:         EventTypeAlert,
		DeviceSerial: serial,
		OccurredAt:   time.Now().UTC(),
		Data:         data,
	}
}
