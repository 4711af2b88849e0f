package hikvision

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
)

// Firmware-accepted ranges. Out-of-range values are clamped, never rejected.
const (
	MinDuration   = 1
	MaxDuration   = 300
	MinVolume     = 1
	MaxVolume     = 100
	MinAlarmTimes = 1
	MaxAlarmTimes = 10
)

var strobeFrequencies = map[string]bool{"low": true, "medium": true, "high": true, "constant": true}

// SirenParams configures AudioAlarm. Use DefaultSirenParams for the stock values.
type SirenParams struct {
	Duration   int `json:"duration"`
	AudioID    int `json:"audio_id"`
	Volume     int `json:"volume"`
	AlarmTimes int `json:"alarm_times"`
}

func DefaultSirenParams() SirenParams {
	return SirenParams{Duration: 10, AudioID: 1, Volume: 50, AlarmTimes: 1}
}

type VoiceParams struct {
	AudioID    int `json:"audio_id"`
	Volume     int `json:"volume"`
	AlarmTimes int `json:"alarm_times"`
}

func DefaultVoiceParams() VoiceParams {
	return VoiceParams{AudioID: 1, Volume: 50, AlarmTimes: 1}
}

type audioAlarm struct {
	AudioID      string `json:"audioID"`
	AudioClass   string `json:"audioClass,omitempty"`
	AlertAudioID string `json:"alertAudioID,omitempty"`
	AudioVolume  string `json:"audioVolume"`
	AlarmTimes   string `json:"alarmTimes"`
	DurationTime string `json:"durationTime,omitempty"`
}

type whiteLightAlarm struct {
	ChannelID    string `json:"channelID"`
	DurationTime string `json:"durationTime"`
	Frequency    string `json:"frequency"`
}

// TriggerSiren sounds the built-in siren.
func (c *Client) TriggerSiren(ctx context.Context, p SirenParams) error {
	if c.Capabilities != nil && !c.Capabilities.SupportSiren {
		return &NotSupportedError{Feature: FeatureSiren}
	}
	body, err := json.Marshal(map[string]audioAlarm{"AudioAlarm": {
		AudioID:      strconv.Itoa(p.AudioID),
		AudioVolume:  strconv.Itoa(adapters.Clamp(p.Volume, MinVolume, MaxVolume)),
		AlarmTimes:   strconv.Itoa(adapters.Clamp(p.AlarmTimes, MinAlarmTimes, MaxAlarmTimes)),
		DurationTime: strconv.Itoa(adapters.Clamp(p.Duration, MinDuration, MaxDuration)),
	}})
	if err != nil {
		return err
	}
	return c.putJSON(ctx, sirenProbePath, body)
}

// PlayVoice plays a stored alert audio clip through the AudioAlarm endpoint.
func (c *Client) PlayVoice(ctx context.Context, p VoiceParams) error {
	if c.Capabilities != nil && !c.Capabilities.SupportVoice {
		return &NotSupportedError{Feature: FeatureVoice}
	}
	id := strconv.Itoa(p.AudioID)
	body, err := json.Marshal(map[string]audioAlarm{"AudioAlarm": {
		AudioID:      id,
		AudioClass:   "alertAudio",
		AlertAudioID: id,
		AudioVolume:  strconv.Itoa(adapters.Clamp(p.Volume, MinVolume, MaxVolume)),
		AlarmTimes:   strconv.Itoa(adapters.Clamp(p.AlarmTimes, MinAlarmTimes, MaxAlarmTimes)),
	}})
	if err != nil {
		return err
	}
	return c.putJSON(ctx, sirenProbePath, body)
}

// TriggerStrobe flashes the white light. Unknown frequencies fall back to "medium".
func (c *Client) TriggerStrobe(ctx context.Context, channel, duration int, frequency string) error {
	if c.Capabilities != nil && !c.Capabilities.SupportStrobe {
		return &NotSupportedError{Feature: FeatureStrobe}
	}
	if channel <= 0 {
		channel = 1
	}
	if !strobeFrequencies[frequency] {
		frequency = "medium"
	}
	body, err := json.Marshal(map[string]whiteLightAlarm{"WhiteLightAlarm": {
		ChannelID:    strconv.Itoa(channel),
		DurationTime: strconv.Itoa(adapters.Clamp(duration, MinDuration, MaxDuration)),
		Frequency:    frequency,
	}})
	if err != nil {
		return err
	}
	return c.putJSON(ctx, fmt.Sprintf("Event/triggers/notifications/channels/%d/whiteLightAlarm?format=json", channel), body)
}
