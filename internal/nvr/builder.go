package nvr

import (
	"context"
	"fmt"
	"log"

	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
)

// Builder turns capability probes into a Device. Only the device info request
// is fatal; every other probe degrades to unsupported or empty.
type Builder struct {
	client *hikvision.Client
	cred   adapters.Credential
}

func NewBuilder(client *hikvision.Client, cred adapters.Credential) *Builder {
	return &Builder{client: client, cred: cred}
}

func (b *Builder) Build(ctx context.Context) (*Device, error) {
	info, err := b.client.GetDeviceInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("device info: %w", err)
	}

	caps := b.client.ProbeCapabilities(ctx, info)
	b.client.Capabilities = caps

	dev := &Device{
		Info:         info,
		Capabilities: caps,
		RTSPPort:     b.client.GetRTSPPort(ctx),
	}

	triggers, err := b.client.GetEventTriggers(ctx)
	if err != nil {
		log.Printf("[WARN] %s: event triggers unavailable: %v", info.SerialNo, err)
	}
	streams, err := b.client.GetStreamingChannels(ctx)
	if err != nil {
		log.Printf("[WARN] %s: streaming channels unavailable: %v", info.SerialNo, err)
	}
	streamsByID := make(map[int]hikvision.StreamInfo, len(streams))
	for _, s := range streams {
		streamsByID[s.ID] = s
	}

	dev.Cameras = b.cameras(ctx, dev, streamsByID)
	for _, cam := range dev.Cameras {
		cam.Streams = b.streams(dev, cam, streamsByID)
		b.probePTZ(ctx, cam)
		cam.Events = cameraEvents(dev, cam, triggers)
		cam.ANPR = caps.SupportANPR && hasEvent(cam.Events, hikvision.EventVehicleDetection)
	}
	dev.Events = deviceEvents(dev, triggers)
	dev.reindex()

	log.Printf("[ISAPI] %s (%s): %d cameras, %d event entities", info.Model, info.SerialNo, len(dev.Cameras), len(dev.Descriptors()))
	return dev, nil
}

func (b *Builder) cameras(ctx context.Context, dev *Device, streams map[int]hikvision.StreamInfo) []*Camera {
	var cams []*Camera

	inputs, err := b.client.GetVideoInputs(ctx)
	if err != nil {
		log.Printf("[WARN] %s: video inputs unavailable: %v", dev.Info.SerialNo, err)
	}
	for _, in := range inputs {
		if dev.Capabilities.IsNVR && !in.Enabled {
			continue
		}
		name := dev.Info.Name
		if dev.Capabilities.IsNVR {
			name = nameOr(in.Name, fmt.Sprintf("Camera %d", in.ID))
		}
		cams = append(cams, &Camera{
			ID:        in.ID,
			Name:      name,
			Model:     dev.Info.Model,
			SerialNo:  dev.Info.SerialNo,
			IPAddress: dev.Info.IPAddress,
			InputPort: in.InputPort,
		})
	}

	if dev.Capabilities.IsNVR {
		proxies, err := b.client.GetInputProxyChannels(ctx)
		if err != nil {
			log.Printf("[WARN] %s: proxy channels unavailable: %v", dev.Info.SerialNo, err)
		}
		// analog inputs on an NVR carry the NVR serial; only proxies are deduplicated
		cams = append(cams, dedupeProxies(proxies, streams)...)
	}

	if len(cams) == 0 && !dev.Capabilities.IsNVR {
		cams = append(cams, &Camera{
			ID:        1,
			Name:      dev.Info.Name,
			Model:     dev.Info.Model,
			SerialNo:  dev.Info.SerialNo,
			IPAddress: dev.Info.IPAddress,
			InputPort: 1,
		})
	}
	return cams
}

// dedupeProxies keeps one camera per serial number. A proxy with streams wins
// over one without (multi-protocol entries of the same camera).
func dedupeProxies(proxies []hikvision.ProxyChannel, streams map[int]hikvision.StreamInfo) []*Camera {
	var out []*Camera
	bySerial := make(map[string]int)

	for _, p := range proxies {
		cam := &Camera{
			ID:        p.ID,
			Name:      nameOr(p.Name, fmt.Sprintf("Camera %d", p.ID)),
			Model:     p.Model,
			SerialNo:  p.SerialNo,
			IPAddress: p.IPAddress,
			InputPort: p.InputPort,
			IsProxy:   true,
		}
		if cam.InputPort == 0 {
			cam.InputPort = p.ID
		}
		if cam.SerialNo == "" {
			out = append(out, cam)
			continue
		}
		idx, seen := bySerial[cam.SerialNo]
		if !seen {
			bySerial[cam.SerialNo] = len(out)
			out = append(out, cam)
			continue
		}
		if !hasStreams(out[idx].ID, streams) && hasStreams(cam.ID, streams) {
			out[idx] = cam
		}
	}
	return out
}

func hasStreams(channel int, streams map[int]hikvision.StreamInfo) bool {
	if len(streams) == 0 {
		return true
	}
	_, ok := streams[adapters.StreamID(channel, StreamMain)]
	return ok
}

func (b *Builder) streams(dev *Device, cam *Camera, meta map[int]hikvision.StreamInfo) []Stream {
	kinds := []struct {
		typ     int
		name    string
		enabled bool
	}{
		{StreamMain, "Main", true},
		{StreamSub, "Sub-Stream", false},
		{StreamTranscoded, "Transcoded Stream", false},
	}

	out := make([]Stream, 0, len(kinds))
	for _, k := range kinds {
		id := adapters.StreamID(cam.ID, k.typ)
		raw := adapters.StreamURL(dev.Info.IPAddress, dev.RTSPPort, b.cred, id)
		s := Stream{
			ID:      id,
			Name:    k.name,
			Type:    k.typ,
			Enabled: k.enabled,
			RTSPURL: adapters.SanitizeRtspUrl(raw),
			url:     raw,
		}
		if m, ok := meta[id]; ok {
			s.Codec, s.Width, s.Height = m.Codec, m.Width, m.Height
		}
		out = append(out, s)
	}
	return out
}

// probePTZ records channel PTZ support on the client so control calls are gated.
func (b *Builder) probePTZ(ctx context.Context, cam *Camera) {
	if b.client.Capabilities.SupportPTZ {
		cam.PTZInfo = b.client.GetPTZInfo(ctx, cam.ID)
	} else {
		cam.PTZInfo = hikvision.PTZInfo{Presets: []hikvision.PTZPresetInfo{}, Patrols: []hikvision.PTZPatrolInfo{}}
	}
	cam.SupportPTZ = cam.PTZInfo.IsSupported
	b.client.SetChannelPTZ(cam.ID, cam.SupportPTZ)
}

func cameraEvents(dev *Device, cam *Camera, triggers []hikvision.EventTrigger) []EventDescriptor {
	var out []EventDescriptor
	seen := make(map[string]bool)

	add := func(def hikvision.EventDef, disabled bool) {
		if seen[def.ID] {
			return
		}
		seen[def.ID] = true
		out = append(out, expandTargets(dev.SerialNo(), cam.ID, def, disabled)...)
	}

	for _, t := range triggers {
		if t.ChannelID != cam.ID || t.EventID == hikvision.EventIO {
			continue
		}
		def, ok := hikvision.LookupEvent(t.EventID)
		if !ok || def.DirectURL != "" {
			continue
		}
		if def.Kind == hikvision.EventSmart && !smartConfirmed(dev, def) {
			continue
		}
		add(def, !t.Notify)
	}

	// intercoms report motion without a channel trigger
	if dev.Capabilities.SupportVideoIntercom && cam.ID == 1 {
		def, _ := hikvision.LookupEvent(hikvision.EventMotion)
		add(def, false)
	}
	return out
}

// smartConfirmed checks SmartCap. NVR SmartCap describes the recorder itself,
// so per-channel triggers are trusted there.
func smartConfirmed(dev *Device, def hikvision.EventDef) bool {
	if dev.Capabilities.IsNVR {
		return true
	}
	if def.ID == hikvision.EventVehicleDetection && dev.Capabilities.SupportANPR {
		return true
	}
	return dev.Capabilities.SmartEvents[def.ID]
}

func deviceEvents(dev *Device, triggers []hikvision.EventTrigger) []EventDescriptor {
	var out []EventDescriptor
	ioDef, _ := hikvision.LookupEvent(hikvision.EventIO)
	ports := make(map[int]bool)

	for _, t := range triggers {
		if t.EventID != hikvision.EventIO || t.IOPortID == 0 || ports[t.IOPortID] {
			continue
		}
		ports[t.IOPortID] = true
		out = append(out, EventDescriptor{
			ID:          ioDef.ID,
			IOPortID:    t.IOPortID,
			UniqueID:    UniqueID(dev.SerialNo(), t.IOPortID, ioDef.ID, ""),
			Label:       fmt.Sprintf("%s %d", ioDef.Label, t.IOPortID),
			DeviceClass: ioDef.DeviceClass,
			Disabled:    !t.Notify,
		})
	}

	if dev.Capabilities.SupportVideoIntercom {
		def, _ := hikvision.LookupEvent(hikvision.EventVideoIntercomEvent)
		out = append(out, expandTargets(dev.SerialNo(), 0, def, false)...)
	}
	return out
}

// expandTargets yields the generic descriptor plus one per detection target
// when the event type supports target detection.
func expandTargets(serial string, channel int, def hikvision.EventDef, disabled bool) []EventDescriptor {
	base := EventDescriptor{
		ID:          def.ID,
		ChannelID:   channel,
		UniqueID:    UniqueID(serial, channel, def.ID, ""),
		Label:       def.Label,
		DeviceClass: def.DeviceClass,
		Disabled:    disabled,
	}
	out := []EventDescriptor{base}
	if !hikvision.SupportsTargetDetection(def.ID) {
		return out
	}
	for _, target := range hikvision.DetectionTargets {
		d := base
		d.DetectionTarget = target
		d.UniqueID = UniqueID(serial, channel, def.ID, target)
		d.Label = fmt.Sprintf("%s (%s)", def.Label, targetLabel(target))
		out = append(out, d)
	}
	return out
}

func targetLabel(target string) string {
	if target == hikvision.TargetHuman {
		return "Person"
	}
	return "Vehicle"
}

func hasEvent(events []EventDescriptor, id string) bool {
	for _, e := range events {
		if e.ID == id {
			return true
		}
	}
	return false
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
