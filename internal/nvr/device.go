package nvr

import (
	"strconv"
	"strings"
	"sync"

	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
)

// DeviceCapabilities is owned by the device model and shared with the client
// that gates on it.
type DeviceCapabilities = hikvision.DeviceCapabilities

// nvrProxyOffset is the channel offset NVRs use for IP camera channels in alerts.
const nvrProxyOffset = 32

// Stream types, suffix of the stream id.
const (
	StreamMain       = 1
	StreamSub        = 2
	StreamTranscoded = 4
)

type Stream struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Type    int    `json:"type"`
	Enabled bool   `json:"enabled"`
	Codec   string `json:"codec,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	RTSPURL string `json:"rtsp_url"` // credentials masked
	url     string
}

// URL returns the stream url with credentials.
func (s Stream) URL() string { return s.url }

// EventDescriptor identifies one detection entity. DetectionTarget is empty
// for the generic descriptor.
type EventDescriptor struct {
	ID              string `json:"id"`
	ChannelID       int    `json:"channel_id"`
	IOPortID        int    `json:"io_port_id,omitempty"`
	DetectionTarget string `json:"detection_target,omitempty"`
	RegionID        int    `json:"region_id,omitempty"`
	UniqueID        string `json:"unique_id"`
	Label           string `json:"label"`
	DeviceClass     string `json:"device_class"`
	Disabled        bool   `json:"disabled"`
}

// Camera is one logical channel.
type Camera struct {
	ID         int               `json:"id"`
	Name       string            `json:"name"`
	Model      string            `json:"model,omitempty"`
	SerialNo   string            `json:"serial_no"`
	IPAddress  string            `json:"ip_address,omitempty"`
	InputPort  int               `json:"input_port"`
	IsProxy    bool              `json:"is_proxy"`
	SupportPTZ bool              `json:"support_ptz"`
	PTZInfo    hikvision.PTZInfo `json:"ptz_info"`
	Streams    []Stream          `json:"streams"`
	Events     []EventDescriptor `json:"events"`
	ANPR       bool              `json:"anpr"`
}

// Device is the model built at setup. Cameras and descriptors are read-only
// after Build; storage and alarm server are refreshed by the poller.
type Device struct {
	Info         adapters.DeviceInfo `json:"info"`
	Capabilities *DeviceCapabilities `json:"capabilities"`
	Cameras      []*Camera           `json:"cameras"`
	Events       []EventDescriptor   `json:"events"`
	RTSPPort     int                 `json:"rtsp_port"`

	index map[descriptorKey]EventDescriptor

	mu          sync.RWMutex
	storage     []hikvision.StorageInfo
	alarmServer *hikvision.AlarmServer
}

type descriptorKey struct {
	channel int
	event   string
	target  string
}

// Slugify lowercases s and collapses every run of non-alphanumerics into "_".
func Slugify(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// UniqueID renders {slug(serial)}_{channel}_{event}[_{target}]. Channel 0
// marks a device-level event and is left out.
func UniqueID(serial string, channel int, eventID, target string) string {
	parts := []string{Slugify(serial)}
	if channel > 0 {
		parts = append(parts, strconv.Itoa(channel))
	}
	parts = append(parts, eventID)
	if target != "" {
		parts = append(parts, target)
	}
	return strings.Join(parts, "_")
}

func (d *Device) SerialNo() string { return d.Info.SerialNo }

func (d *Device) Camera(id int) *Camera {
	for _, c := range d.Cameras {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ResolveChannel maps an alert channel to a camera. NVRs report IP camera
// channels as input port + 32.
func (d *Device) ResolveChannel(channelID int) *Camera {
	if d.Capabilities != nil && d.Capabilities.IsNVR && channelID > nvrProxyOffset {
		port := channelID - nvrProxyOffset
		for _, c := range d.Cameras {
			if c.InputPort == port {
				return c
			}
		}
	}
	return d.Camera(channelID)
}

// Descriptor looks up a descriptor. channel is the camera id, the input port
// for io events, or 0 for device-level events.
func (d *Device) Descriptor(channel int, eventID, target string) (EventDescriptor, bool) {
	desc, ok := d.index[descriptorKey{channel, eventID, target}]
	return desc, ok
}

// Descriptors returns every descriptor, camera ones first.
func (d *Device) Descriptors() []EventDescriptor {
	var out []EventDescriptor
	for _, c := range d.Cameras {
		out = append(out, c.Events...)
	}
	return append(out, d.Events...)
}

func (d *Device) reindex() {
	d.index = make(map[descriptorKey]EventDescriptor)
	for _, desc := range d.Descriptors() {
		channel := desc.ChannelID
		if desc.ID == hikvision.EventIO {
			channel = desc.IOPortID
		}
		d.index[descriptorKey{channel, desc.ID, desc.DetectionTarget}] = desc
	}
}

func (d *Device) Storage() []hikvision.StorageInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]hikvision.StorageInfo(nil), d.storage...)
}

func (d *Device) SetStorage(s []hikvision.StorageInfo) {
	d.mu.Lock()
	d.storage = s
	d.mu.Unlock()
}

func (d *Device) AlarmServer() *hikvision.AlarmServer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.alarmServer
}

func (d *Device) SetAlarmServer(s *hikvision.AlarmServer) {
	d.mu.Lock()
	d.alarmServer = s
	d.mu.Unlock()
}
