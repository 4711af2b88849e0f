package hikvision

import (
	"context"
	"fmt"
	"strings"

	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
)

// DeviceCapabilities are discovered once per device and consulted before every
// gated operation. Changes take effect on the next call.
type DeviceCapabilities struct {
	SupportPTZ           bool `json:"support_ptz"`
	SupportSiren         bool `json:"support_siren"`
	SupportStrobe        bool `json:"support_strobe"`
	SupportVoice         bool `json:"support_voice"`
	SupportTwoWayAudio   bool `json:"support_two_way_audio"`
	TwoWayAudioChannels  int  `json:"two_way_audio_channels"`
	SupportVideoIntercom bool `json:"support_video_intercom"`
	SupportANPR          bool `json:"support_anpr"`
	SupportAlarmServer   bool `json:"support_alarm_server"`
	SupportHolidayMode   bool `json:"support_holiday_mode"`
	IsNVR                bool `json:"is_nvr"`
	AnalogCameras        int  `json:"analog_cameras"`
	DigitalCameras       int  `json:"digital_cameras"`
	InputPorts           int  `json:"input_ports"`
	OutputPorts          int  `json:"output_ports"`
	// SmartEvents holds the smart event ids confirmed by SmartCap.
	SmartEvents map[string]bool `json:"smart_events,omitempty"`
}

// Probe endpoints for the deterrence features.
const (
	sirenProbePath  = "Event/triggers/notifications/AudioAlarm?format=json"
	strobeProbePath = "Event/triggers/notifications/channels/1/whiteLightAlarm?format=json"
	voiceProbePath  = "AudioAlarm/capabilities?format=json"
)

var intercomModelPrefixes = []string{"DS-KV", "DS-KD", "DS-KB", "DS-KH"}

func (c *Client) GetDeviceInfo(ctx context.Context) (adapters.DeviceInfo, error) {
	root, err := c.Get(ctx, "System/deviceInfo")
	if err != nil {
		return adapters.DeviceInfo{}, err
	}
	d := root.Get("DeviceInfo")
	if d == nil {
		return adapters.DeviceInfo{}, &ParseError{Err: fmt.Errorf("missing DeviceInfo")}
	}

	info := adapters.DeviceInfo{
		Name:            d.Get("deviceName").Text(),
		Manufacturer:    d.Get("manufacturer").Text(),
		Model:           d.Get("model").Text(),
		SerialNo:        d.Get("serialNumber").Text(),
		FirmwareVersion: d.Get("firmwareVersion").Text(),
		MACAddress:      d.Get("macAddress").Text(),
		DeviceType:      d.Get("deviceType").Text(),
		IPAddress:       c.Target.Host,
	}
	if info.Manufacturer == "" {
		info.Manufacturer = "Hikvision"
	}
	return info, nil
}

// GetSystemCapabilities returns the raw System/capabilities tree.
func (c *Client) GetSystemCapabilities(ctx context.Context) (*Node, error) {
	return c.Get(ctx, "System/capabilities")
}

// ProbeCapabilities builds DeviceCapabilities. Every probe failure degrades
// only its own flag.
func (c *Client) ProbeCapabilities(ctx context.Context, info adapters.DeviceInfo) *DeviceCapabilities {
	caps := &DeviceCapabilities{SmartEvents: make(map[string]bool)}

	// nil on failure; lookups on a nil node yield zero values
	sys, _ := c.GetSystemCapabilities(ctx)

	caps.InputPorts = sys.Find("IOInputPortNums").Int()
	caps.OutputPorts = sys.Find("IOOutputPortNums").Int()
	caps.AnalogCameras = sys.Find("videoInputPortNums").Int()
	caps.DigitalCameras = sys.Find("inputProxyNums").Int()
	caps.TwoWayAudioChannels = sys.Find("voicetalkNums").Int()
	caps.SupportTwoWayAudio = caps.TwoWayAudioChannels > 0
	caps.SupportPTZ = sys.Find("isSupportPTZ").Bool() || sys.Find("PTZCtrlCap") != nil
	caps.SupportHolidayMode = sys.Find("isSupportHolidy").Bool() || sys.Find("isSupportHoliday").Bool()

	devType := strings.ToUpper(info.DeviceType)
	caps.IsNVR = caps.DigitalCameras > 0 || strings.Contains(devType, "NVR") || strings.Contains(devType, "DVR")
	caps.SupportVideoIntercom = isIntercom(info, sys)

	smart := sys.Find("SmartCap")
	for _, def := range EventCatalog {
		if def.CapTag != "" && smart.Get(def.CapTag).Bool() {
			caps.SmartEvents[def.ID] = true
		}
	}
	caps.SupportANPR = caps.SmartEvents[EventVehicleDetection] || smart.Get("isSupportANPR").Bool()

	caps.SupportSiren = c.Exists(ctx, sirenProbePath)
	caps.SupportStrobe = c.Exists(ctx, strobeProbePath)
	caps.SupportVoice = c.probeVoice(ctx)

	return caps
}

// probeVoice treats the device as voice-capable when AudioAlarm capabilities
// list an alertAudio class.
func (c *Client) probeVoice(ctx context.Context) bool {
	resp, err := c.do(ctx, "GET", voiceProbePath, nil, "")
	if err != nil {
		return false
	}
	return strings.Contains(resp.text(), "alertAudio")
}

func isIntercom(info adapters.DeviceInfo, sys *Node) bool {
	if strings.EqualFold(info.DeviceType, "VIS") {
		return true
	}
	model := strings.ToUpper(info.Model)
	for _, p := range intercomModelPrefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return sys.Find("VideoIntercomCap") != nil
}

// EventTrigger is one entry of Event/triggers.
type EventTrigger struct {
	ID        string
	EventID   string
	ChannelID int
	IOPortID  int
	// Notify is true when the trigger reports to the surveillance center (the alarm server).
	Notify bool
}

// GetEventTriggers lists configured triggers with canonical event ids.
func (c *Client) GetEventTriggers(ctx context.Context) ([]EventTrigger, error) {
	items, err := c.getList(ctx, "Event/triggers", "EventTriggerList", "EventTrigger")
	if err != nil {
		return nil, err
	}

	var out []EventTrigger
	for _, item := range items {
		t := EventTrigger{
			ID:        item.Get("id").Text(),
			EventID:   CanonicalEventID(item.Get("eventType").Text()),
			ChannelID: item.First("videoInputChannelID", "dynVideoInputChannelID").Int(),
			IOPortID:  item.First("inputIOPortID", "dynInputIOPortID").Int(),
		}
		if t.EventID == "" {
			continue
		}
		for _, n := range item.Get("EventTriggerNotificationList", "EventTriggerNotification").List() {
			if strings.EqualFold(n.Get("notificationMethod").Text(), "center") {
				t.Notify = true
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// StreamInfo describes one entry of Streaming/channels.
type StreamInfo struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Codec   string `json:"codec"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

func (c *Client) GetStreamingChannels(ctx context.Context) ([]StreamInfo, error) {
	items, err := c.getList(ctx, "Streaming/channels", "StreamingChannelList", "StreamingChannel")
	if err != nil {
		return nil, err
	}
	out := make([]StreamInfo, 0, len(items))
	for _, item := range items {
		video := item.Get("Video")
		s := StreamInfo{
			ID:      item.Get("id").Int(),
			Name:    item.Get("channelName").Text(),
			Enabled: item.Get("enabled").Text() != "false",
			Codec:   video.Get("videoCodecType").Text(),
			Width:   video.Get("videoResolutionWidth").Int(),
			Height:  video.Get("videoResolutionHeight").Int(),
		}
		if s.ID == 0 {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ProxyChannel is an NVR input proxy channel (a connected IP camera).
type ProxyChannel struct {
	ID        int
	Name      string
	InputPort int
	IPAddress string
	Protocol  string
	Model     string
	SerialNo  string
}

func (c *Client) GetInputProxyChannels(ctx context.Context) ([]ProxyChannel, error) {
	items, err := c.getList(ctx, "ContentMgmt/InputProxy/channels", "InputProxyChannelList", "InputProxyChannel")
	if err != nil {
		return nil, err
	}
	out := make([]ProxyChannel, 0, len(items))
	for _, item := range items {
		src := item.Get("sourceInputPortDescriptor")
		ch := ProxyChannel{
			ID:        item.Get("id").Int(),
			Name:      item.Get("name").Text(),
			InputPort: src.Get("srcInputPort").Int(),
			IPAddress: src.First("ipAddress", "hostName").Text(),
			Protocol:  src.Get("proxyProtocol").Text(),
			Model:     src.First("model", "deviceModel").Text(),
			SerialNo:  item.First("serialNumber", "devIndex").Text(),
		}
		if ch.SerialNo == "" {
			ch.SerialNo = src.Get("serialNumber").Text()
		}
		if ch.ID == 0 {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

// VideoInput is a local (analog or built-in) video input.
type VideoInput struct {
	ID        int
	Name      string
	InputPort int
	Enabled   bool
}

func (c *Client) GetVideoInputs(ctx context.Context) ([]VideoInput, error) {
	items, err := c.getList(ctx, "System/Video/inputs/channels", "VideoInputChannelList", "VideoInputChannel")
	if err != nil {
		return nil, err
	}
	out := make([]VideoInput, 0, len(items))
	for _, item := range items {
		in := VideoInput{
			ID:        item.Get("id").Int(),
			Name:      item.Get("name").Text(),
			InputPort: item.Get("inputPort").Int(),
			Enabled:   item.Get("videoInputEnabled").Text() != "false",
		}
		if in.ID == 0 {
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

// GetRTSPPort returns the RTSP port from Security/adminAccesses, or the default.
func (c *Client) GetRTSPPort(ctx context.Context) int {
	if c.Target.RTSPPort > 0 {
		return c.Target.RTSPPort
	}
	items, err := c.getList(ctx, "Security/adminAccesses", "AdminAccessProtocolList", "AdminAccessProtocol")
	if err != nil {
		return adapters.DefaultRTSPPort
	}
	for _, item := range items {
		if strings.EqualFold(item.Get("protocol").Text(), "RTSP") {
			if port := item.Get("portNo").Int(); port > 0 {
				return port
			}
		}
	}
	return adapters.DefaultRTSPPort
}
