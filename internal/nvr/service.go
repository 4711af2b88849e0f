package nvr

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrUnknownEntity = errors.New("unknown entity")
)

// ActionError is the user-visible failure of an action. Message is the device
// response body when there is one.
type ActionError struct {
	Message string
}

func (e *ActionError) Error() string { return e.Message }

// DeviceClient is the set of client operations the actions service drives.
type DeviceClient interface {
	Reboot(ctx context.Context) error
	Request(ctx context.Context, method, path string, body []byte) (string, error)
	TriggerSiren(ctx context.Context, p hikvision.SirenParams) error
	TriggerStrobe(ctx context.Context, channel, duration int, frequency string) error
	PlayVoice(ctx context.Context, p hikvision.VoiceParams) error
	PTZMove(ctx context.Context, channel, pan, tilt, zoom int) error
	PTZGotoPreset(ctx context.Context, channel, presetID int) error
	PTZPatrol(ctx context.Context, channel, patrolID int, start bool) error
	StartTwoWayAudio(ctx context.Context, channel int) hikvision.Result
	StopTwoWayAudio(ctx context.Context, channel int) hikvision.Result
	GetSnapshot(ctx context.Context, channel int) ([]byte, error)
	SearchRecordings(ctx context.Context, q hikvision.RecordingQuery) ([]hikvision.RecordingSearchResult, error)
}

// ActionParams is the JSON body of an action call. Unset fields take the
// action's default.
type ActionParams struct {
	ChannelID  *int   `json:"channel_id,omitempty"`
	Duration   *int   `json:"duration,omitempty"`
	AudioID    *int   `json:"audio_id,omitempty"`
	Volume     *int   `json:"volume,omitempty"`
	AlarmTimes *int   `json:"alarm_times,omitempty"`
	Frequency  string `json:"frequency,omitempty"`
	Pan        int    `json:"pan,omitempty"`
	Tilt       int    `json:"tilt,omitempty"`
	Zoom       int    `json:"zoom,omitempty"`
	PresetID   int    `json:"preset_id,omitempty"`
	PatrolID   int    `json:"patrol_id,omitempty"`
	Command    string `json:"command,omitempty"` // ptz_patrol: start or stop
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	Payload    string `json:"payload,omitempty"`
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// Service runs user actions against the device.
type Service struct {
	client    DeviceClient
	device    *Device
	store     *EntityStore
	snapshots *SnapshotCache
}

func NewService(client DeviceClient, device *Device, store *EntityStore, snapshots *SnapshotCache) *Service {
	return &Service{
		client:    client,
		device:    device,
		store:     store,
		snapshots: snapshots,
	}
}

func (s *Service) Device() *Device { return s.device }

func (s *Service) Store() *EntityStore { return s.store }

// Actions lists the action names Run accepts.
func (s *Service) Actions() []string {
	return []string{
		"reboot", "isapi_request", "trigger_siren", "trigger_strobe", "play_voice",
		"ptz_move", "ptz_preset", "ptz_patrol", "start_two_way_audio", "stop_two_way_audio",
		"update_snapshot",
	}
}

// Run dispatches an action by name. The result is nil for actions without one.
func (s *Service) Run(ctx context.Context, action string, p ActionParams) (any, error) {
	channel := intOr(p.ChannelID, 1)

	switch action {
	case "reboot":
		return nil, s.Reboot(ctx)
	case "isapi_request":
		return s.ISAPIRequest(ctx, p.Method, p.Path, p.Payload)
	case "trigger_siren":
		def := hikvision.DefaultSirenParams()
		return nil, s.TriggerSiren(ctx, hikvision.SirenParams{
			Duration:   intOr(p.Duration, def.Duration),
			AudioID:    intOr(p.AudioID, def.AudioID),
			Volume:     intOr(p.Volume, def.Volume),
			AlarmTimes: intOr(p.AlarmTimes, def.AlarmTimes),
		})
	case "trigger_strobe":
		return nil, s.TriggerStrobe(ctx, channel, intOr(p.Duration, 10), p.Frequency)
	case "play_voice":
		def := hikvision.DefaultVoiceParams()
		return nil, s.PlayVoice(ctx, hikvision.VoiceParams{
			AudioID:    intOr(p.AudioID, def.AudioID),
			Volume:     intOr(p.Volume, def.Volume),
			AlarmTimes: intOr(p.AlarmTimes, def.AlarmTimes),
		})
	case "ptz_move":
		return nil, s.PTZMove(ctx, channel, p.Pan, p.Tilt, p.Zoom)
	case "ptz_preset":
		return nil, s.PTZPreset(ctx, channel, p.PresetID)
	case "ptz_patrol":
		switch p.Command {
		case "start", "":
			return nil, s.PTZPatrol(ctx, channel, p.PatrolID, true)
		case "stop":
			return nil, s.PTZPatrol(ctx, channel, p.PatrolID, false)
		}
		return nil, &ActionError{Message: fmt.Sprintf("Invalid patrol command %q", p.Command)}
	case "start_two_way_audio":
		return nil, s.StartTwoWayAudio(ctx, channel)
	case "stop_two_way_audio":
		return nil, s.StopTwoWayAudio(ctx, channel)
	case "update_snapshot":
		snap, err := s.UpdateSnapshot(ctx, channel)
		if err != nil {
			return nil, err
		}
		return map[string]any{"channel_id": snap.Channel, "size": len(snap.Image), "captured_at": snap.CapturedAt}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
}

func (s *Service) Reboot(ctx context.Context) error {
	if err := s.client.Reboot(ctx); err != nil {
		return wrapActionError(err)
	}
	log.Printf("[INFO] Reboot requested for %s", s.device.SerialNo())
	return nil
}

// ISAPIRequest performs a raw call. An HTTP error yields the error body as the
// result rather than a failure.
func (s *Service) ISAPIRequest(ctx context.Context, method, path, payload string) (string, error) {
	if method == "" {
		method = "POST"
	}
	path = strings.TrimPrefix(strings.TrimPrefix(path, "/"), "ISAPI/")
	if path == "" {
		return "", &ActionError{Message: "path is required"}
	}

	var body []byte
	if payload != "" {
		body = []byte(payload)
	}
	text, err := s.client.Request(ctx, method, path, body)
	if err != nil {
		if errBody := hikvision.ResponseBody(err); errBody != "" {
			return strings.ReplaceAll(errBody, "\r", ""), nil
		}
		return "", wrapActionError(err)
	}
	return strings.ReplaceAll(text, "\r", ""), nil
}

func (s *Service) TriggerSiren(ctx context.Context, p hikvision.SirenParams) error {
	return wrapActionError(s.client.TriggerSiren(ctx, p))
}

func (s *Service) TriggerStrobe(ctx context.Context, channel, duration int, frequency string) error {
	return wrapActionError(s.client.TriggerStrobe(ctx, channel, duration, frequency))
}

func (s *Service) PlayVoice(ctx context.Context, p hikvision.VoiceParams) error {
	return wrapActionError(s.client.PlayVoice(ctx, p))
}

func (s *Service) PTZMove(ctx context.Context, channel, pan, tilt, zoom int) error {
	if err := s.ptzCamera(channel); err != nil {
		return err
	}
	return wrapActionError(s.client.PTZMove(ctx, channel, pan, tilt, zoom))
}

func (s *Service) PTZPreset(ctx context.Context, channel, presetID int) error {
	if err := s.ptzCamera(channel); err != nil {
		return err
	}
	return wrapActionError(s.client.PTZGotoPreset(ctx, channel, presetID))
}

func (s *Service) PTZPatrol(ctx context.Context, channel, patrolID int, start bool) error {
	if err := s.ptzCamera(channel); err != nil {
		return err
	}
	return wrapActionError(s.client.PTZPatrol(ctx, channel, patrolID, start))
}

// SelectPreset handles an option chosen on a PTZ preset select entity.
func (s *Service) SelectPreset(ctx context.Context, channel int, option string) error {
	presetID, err := ParsePresetOption(option)
	if err != nil {
		return &ActionError{Message: err.Error()}
	}
	if err := s.PTZPreset(ctx, channel, presetID); err != nil {
		return err
	}
	s.store.SetState(PresetSelectID(s.device.SerialNo(), channel), option, nil)
	return nil
}

// SelectOption applies option to a select entity by unique id.
func (s *Service) SelectOption(ctx context.Context, entityID, option string) error {
	e, ok := s.store.Get(entityID)
	if !ok || e.Kind != KindSelect {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	for _, cam := range s.device.Cameras {
		if PresetSelectID(s.device.SerialNo(), cam.ID) == entityID {
			return s.SelectPreset(ctx, cam.ID, option)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
}

func (s *Service) StartTwoWayAudio(ctx context.Context, channel int) error {
	return resultError(s.client.StartTwoWayAudio(ctx, channel))
}

func (s *Service) StopTwoWayAudio(ctx context.Context, channel int) error {
	return resultError(s.client.StopTwoWayAudio(ctx, channel))
}

// UpdateSnapshot fetches a fresh image and caches it.
func (s *Service) UpdateSnapshot(ctx context.Context, channel int) (Snapshot, error) {
	if s.device.Camera(channel) == nil {
		return Snapshot{}, cameraNotFound(channel)
	}
	img, err := s.client.GetSnapshot(ctx, channel)
	if err != nil {
		return Snapshot{}, wrapActionError(err)
	}
	return s.snapshots.Put(channel, img), nil
}

// Snapshot serves a cached image, fetching one on a miss.
func (s *Service) Snapshot(ctx context.Context, channel int) (Snapshot, error) {
	if snap, ok := s.snapshots.Get(channel); ok {
		return snap, nil
	}
	return s.UpdateSnapshot(ctx, channel)
}

func (s *Service) SearchRecordings(ctx context.Context, q hikvision.RecordingQuery) ([]hikvision.RecordingSearchResult, error) {
	if s.device.Camera(q.ChannelID) == nil {
		return nil, cameraNotFound(q.ChannelID)
	}
	res, err := s.client.SearchRecordings(ctx, q)
	if err != nil {
		return nil, wrapActionError(err)
	}
	return res, nil
}

func (s *Service) ptzCamera(channel int) error {
	cam := s.device.Camera(channel)
	if cam == nil {
		return cameraNotFound(channel)
	}
	if !cam.SupportPTZ {
		return &ActionError{Message: fmt.Sprintf("Camera %d does not support PTZ", channel)}
	}
	return nil
}

func cameraNotFound(channel int) error {
	return &ActionError{Message: fmt.Sprintf("Camera %d not found", channel)}
}

func resultError(r hikvision.Result) error {
	if r.OK {
		return nil
	}
	if r.Err == nil {
		return &ActionError{Message: "request failed"}
	}
	return wrapActionError(r.Err)
}

func wrapActionError(err error) error {
	if err == nil {
		return nil
	}
	if body := hikvision.ResponseBody(err); body != "" {
		return &ActionError{Message: body}
	}
	return &ActionError{Message: err.Error()}
}
