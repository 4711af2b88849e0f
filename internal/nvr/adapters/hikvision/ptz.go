package hikvision

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
)

type PTZPresetInfo struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type PTZPatrolInfo struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// PTZInfo is the per-channel PTZ description.
type PTZInfo struct {
	IsSupported    bool            `json:"is_supported"`
	AbsoluteMove   bool            `json:"absolute_move"`
	RelativeMove   bool            `json:"relative_move"`
	ContinuousMove bool            `json:"continuous_move"`
	Presets        []PTZPresetInfo `json:"presets"`
	Patrols        []PTZPatrolInfo `json:"patrols"`
}

const ptzLimit = 100

func ptzPath(channel int, suffix string) string {
	return fmt.Sprintf("PTZCtrl/channels/%d/%s", channel, suffix)
}

// GetPTZSupport reports whether channel answers the PTZ capabilities endpoint.
// No request is made when the device-level flag is off.
func (c *Client) GetPTZSupport(ctx context.Context, channel int) bool {
	if c.Capabilities != nil && !c.Capabilities.SupportPTZ {
		return false
	}
	return c.Exists(ctx, ptzPath(channel, "capabilities"))
}

// GetPTZInfo returns move capabilities, presets and patrols. A channel without
// PTZ yields an unsupported, empty PTZInfo.
func (c *Client) GetPTZInfo(ctx context.Context, channel int) PTZInfo {
	info := PTZInfo{Presets: []PTZPresetInfo{}, Patrols: []PTZPatrolInfo{}}

	root, err := c.Get(ctx, ptzPath(channel, "capabilities"))
	if err != nil {
		return info
	}
	info.IsSupported = true
	info.AbsoluteMove = root.Find("AbsolutePanTiltPositionSpace") != nil
	info.RelativeMove = root.Find("RelativePanTiltPositionSpace") != nil
	info.ContinuousMove = root.Find("ContinuousPanTiltSpace") != nil || root.Find("ContinuousPanTiltVelocitySpace") != nil

	if presets, err := c.GetPTZPresets(ctx, channel); err == nil {
		info.Presets = presets
	}
	if patrols, err := c.GetPTZPatrols(ctx, channel); err == nil {
		info.Patrols = patrols
	}
	return info
}

// GetPTZPresets lists presets in device order, skipping unnamed placeholder slots.
func (c *Client) GetPTZPresets(ctx context.Context, channel int) ([]PTZPresetInfo, error) {
	items, err := c.getList(ctx, ptzPath(channel, "presets"), "PTZPresetList", "PTZPreset")
	if err != nil {
		return nil, err
	}
	out := make([]PTZPresetInfo, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Get("presetName").Text())
		if name == "" {
			continue
		}
		out = append(out, PTZPresetInfo{
			ID:      item.Get("id").Int(),
			Name:    name,
			Enabled: item.Get("enabled").Text() != "false",
		})
	}
	return out, nil
}

func (c *Client) GetPTZPatrols(ctx context.Context, channel int) ([]PTZPatrolInfo, error) {
	items, err := c.getList(ctx, ptzPath(channel, "patrols"), "PTZPatrolList", "PTZPatrol")
	if err != nil {
		return nil, err
	}
	out := make([]PTZPatrolInfo, 0, len(items))
	for _, item := range items {
		out = append(out, PTZPatrolInfo{
			ID:      item.Get("id").Int(),
			Name:    strings.TrimSpace(item.Get("patrolName").Text()),
			Enabled: item.Get("enabled").Text() != "false",
		})
	}
	return out, nil
}

// PTZMove starts a continuous move. Each axis is a signed percentage clamped
// to [-100, 100]; all zeros stops the camera.
func (c *Client) PTZMove(ctx context.Context, channel, pan, tilt, zoom int) error {
	if err := c.checkChannelPTZ(channel); err != nil {
		return err
	}
	body := fmt.Sprintf("<PTZData><pan>%d</pan><tilt>%d</tilt><zoom>%d</zoom></PTZData>",
		adapters.Clamp(pan, -ptzLimit, ptzLimit),
		adapters.Clamp(tilt, -ptzLimit, ptzLimit),
		adapters.Clamp(zoom, -ptzLimit, ptzLimit))
	return c.putXML(ctx, ptzPath(channel, "continuous"), []byte(body))
}

func (c *Client) PTZStop(ctx context.Context, channel int) error {
	return c.PTZMove(ctx, channel, 0, 0, 0)
}

func (c *Client) PTZGotoPreset(ctx context.Context, channel, presetID int) error {
	if err := c.checkChannelPTZ(channel); err != nil {
		return err
	}
	return c.putXML(ctx, ptzPath(channel, fmt.Sprintf("presets/%d/goto", presetID)), nil)
}

// PTZPatrol starts or stops a patrol.
func (c *Client) PTZPatrol(ctx context.Context, channel, patrolID int, start bool) error {
	if err := c.checkChannelPTZ(channel); err != nil {
		return err
	}
	action := "stop"
	if start {
		action = "start"
	}
	return c.putXML(ctx, ptzPath(channel, fmt.Sprintf("patrols/%d/%s", patrolID, action)), nil)
}

// PTZPatrolRunning reports whether a patrol is running. Any failure reads as false.
func (c *Client) PTZPatrolRunning(ctx context.Context, channel, patrolID int) bool {
	resp, err := c.do(ctx, http.MethodGet, ptzPath(channel, fmt.Sprintf("patrols/%d/status", patrolID)), nil, "")
	if err != nil {
		return false
	}
	root, err := c.norm.Parse(resp.body, DetectFormat(resp.contentType, resp.body))
	if err != nil {
		return false
	}
	return strings.EqualFold(root.Find("patrolStatus").Text(), "running")
}
