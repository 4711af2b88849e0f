package hikvision

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
)

const (
	audioAlarmPath = "Event/triggers/notifications/AudioAlarm"
	okJSON         = `{"requestURL":"/ISAPI/Event/triggers/notifications/AudioAlarm","statusCode":1,"statusString":"OK","subStatusCode":"ok"}`
)

func decodeBody(t *testing.T, raw, root string) map[string]string {
	t.Helper()
	var payload map[string]map[string]string
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("Invalid JSON body %q: %v", raw, err)
	}
	inner, ok := payload[root]
	if !ok {
		t.Fatalf("Expected %s root in %s", root, raw)
	}
	return inner
}

func TestTriggerSirenDefaults(t *testing.T) {
	dev := newFakeISAPI().on("PUT", audioAlarmPath, 200, okJSON)
	client := newTestClient(t, dev)

	if err := client.TriggerSiren(context.Background(), DefaultSirenParams()); err != nil {
		t.Fatalf("TriggerSiren failed: %v", err)
	}

	got := decodeBody(t, dev.body("PUT", audioAlarmPath), "AudioAlarm")
	want := map[string]string{"audioID": "1", "audioVolume": "50", "alarmTimes": "1", "durationTime": "10"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Expected %s=%s, got %s", k, v, got[k])
		}
	}
	if _, ok := got["audioClass"]; ok {
		t.Errorf("Siren payload must not carry audioClass")
	}
	if q := dev.rawQuery["PUT "+audioAlarmPath]; q != "format=json" {
		t.Errorf("Expected format=json query, got %q", q)
	}
}

func TestTriggerSirenClamps(t *testing.T) {
	tests := []struct {
		name   string
		params SirenParams
		key    string
		want   string
	}{
		{"duration zero", SirenParams{Duration: 0, AudioID: 1, Volume: 50, AlarmTimes: 1}, "durationTime", "1"},
		{"duration too long", SirenParams{Duration: 500, AudioID: 1, Volume: 50, AlarmTimes: 1}, "durationTime", "300"},
		{"volume too loud", SirenParams{Duration: 10, AudioID: 1, Volume: 150, AlarmTimes: 1}, "audioVolume", "100"},
		{"volume zero", SirenParams{Duration: 10, AudioID: 1, Volume: 0, AlarmTimes: 1}, "audioVolume", "1"},
		{"alarm times", SirenParams{Duration: 10, AudioID: 1, Volume: 50, AlarmTimes: 20}, "alarmTimes", "10"},
		{"custom values", SirenParams{Duration: 30, AudioID: 5, Volume: 80, AlarmTimes: 3}, "audioID", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeISAPI().on("PUT", audioAlarmPath, 200, okJSON)
			client := newTestClient(t, dev)

			if err := client.TriggerSiren(context.Background(), tt.params); err != nil {
				t.Fatalf("TriggerSiren failed: %v", err)
			}
			got := decodeBody(t, dev.body("PUT", audioAlarmPath), "AudioAlarm")
			if got[tt.key] != tt.want {
				t.Errorf("Expected %s=%s, got %s", tt.key, tt.want, got[tt.key])
			}
		})
	}
}

func TestPlayVoice(t *testing.T) {
	dev := newFakeISAPI().on("PUT", audioAlarmPath, 200, okJSON)
	client := newTestClient(t, dev)

	if err := client.PlayVoice(context.Background(), VoiceParams{AudioID: 3, Volume: 120, AlarmTimes: 5}); err != nil {
		t.Fatalf("PlayVoice failed: %v", err)
	}

	got := decodeBody(t, dev.body("PUT", audioAlarmPath), "AudioAlarm")
	want := map[string]string{"audioID": "3", "audioVolume": "100", "alarmTimes": "5", "audioClass": "alertAudio", "alertAudioID": "3"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Expected %s=%s, got %s", k, v, got[k])
		}
	}
	if _, ok := got["durationTime"]; ok {
		t.Errorf("Voice payload must not carry durationTime")
	}
}

func TestTriggerStrobe(t *testing.T) {
	tests := []struct {
		channel   int
		duration  int
		frequency string
		wantFreq  string
		wantDur   string
	}{
		{1, 10, "medium", "medium", "10"},
		{2, 60, "high", "high", "60"},
		{1, 10, "constant", "constant", "10"},
		{1, 10, "strobing", "medium", "10"},
		{1, 999, "", "medium", "300"},
	}
	for _, tt := range tests {
		path := "Event/triggers/notifications/channels/" + strconv.Itoa(tt.channel) + "/whiteLightAlarm"
		dev := newFakeISAPI().on("PUT", path, 200, okJSON)
		client := newTestClient(t, dev)

		if err := client.TriggerStrobe(context.Background(), tt.channel, tt.duration, tt.frequency); err != nil {
			t.Fatalf("TriggerStrobe failed: %v", err)
		}
		got := decodeBody(t, dev.body("PUT", path), "WhiteLightAlarm")
		if got["channelID"] != strconv.Itoa(tt.channel) {
			t.Errorf("Expected channelID %d, got %s", tt.channel, got["channelID"])
		}
		if got["frequency"] != tt.wantFreq {
			t.Errorf("Expected frequency %s, got %s", tt.wantFreq, got["frequency"])
		}
		if got["durationTime"] != tt.wantDur {
			t.Errorf("Expected duration %s, got %s", tt.wantDur, got["durationTime"])
		}
	}
}

func TestDeterrenceNotSupported(t *testing.T) {
	dev := newFakeISAPI()
	client := newTestClient(t, dev)
	client.Capabilities = &DeviceCapabilities{}
	ctx := context.Background()

	checks := map[string]error{
		FeatureSiren:  client.TriggerSiren(ctx, DefaultSirenParams()),
		FeatureStrobe: client.TriggerStrobe(ctx, 1, 10, "medium"),
		FeatureVoice:  client.PlayVoice(ctx, DefaultVoiceParams()),
	}
	for feature, err := range checks {
		ns, ok := err.(*NotSupportedError)
		if !ok {
			t.Fatalf("Expected NotSupportedError for %s, got %v", feature, err)
		}
		if ns.Feature != feature {
			t.Errorf("Expected feature %s, got %s", feature, ns.Feature)
		}
		if ns.Error() != "Device does not support "+feature {
			t.Errorf("Unexpected message %q", ns.Error())
		}
	}

	audio := client.StartTwoWayAudio(ctx, 1)
	if audio.OK || !IsNotSupported(audio.Err) {
		t.Errorf("Expected two-way audio to be unsupported, got %+v", audio)
	}

	if n := dev.totalCalls(); n != 0 {
		t.Errorf("Expected no requests, got %d", n)
	}
}
