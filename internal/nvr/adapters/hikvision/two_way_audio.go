package hikvision

import (
	"context"
	"fmt"
	"net/http"
)

// TwoWayAudioChannelInfo is the single record type for System/TwoWayAudio/channels.
type TwoWayAudioChannelInfo struct {
	ID                   int    `json:"id"`
	Enabled              bool   `json:"enabled"`
	AudioCompressionType string `json:"audio_compression_type"`
}

const DefaultAudioChannel = 1

// GetTwoWayAudioChannels lists every channel, disabled ones included.
func (c *Client) GetTwoWayAudioChannels(ctx context.Context) ([]TwoWayAudioChannelInfo, error) {
	items, err := c.getList(ctx, "System/TwoWayAudio/channels", "TwoWayAudioChannelList", "TwoWayAudioChannel")
	if err != nil {
		return nil, err
	}
	out := make([]TwoWayAudioChannelInfo, 0, len(items))
	for _, item := range items {
		out = append(out, TwoWayAudioChannelInfo{
			ID:                   item.Get("id").Int(),
			Enabled:              item.Get("enabled").Bool(),
			AudioCompressionType: item.Get("audioCompressionType").Text(),
		})
	}
	return out, nil
}

func audioPath(channel int, op string) string {
	if channel <= 0 {
		channel = DefaultAudioChannel
	}
	return fmt.Sprintf("System/TwoWayAudio/channels/%d/%s", channel, op)
}

func (c *Client) checkTwoWayAudio() error {
	if c.Capabilities != nil && !c.Capabilities.SupportTwoWayAudio {
		return &NotSupportedError{Feature: FeatureTwoWayAudio}
	}
	return nil
}

// StartTwoWayAudio opens the audio session on channel (0 means the default channel).
func (c *Client) StartTwoWayAudio(ctx context.Context, channel int) Result {
	return c.audioControl(ctx, audioPath(channel, "open"), nil, "")
}

func (c *Client) StopTwoWayAudio(ctx context.Context, channel int) Result {
	return c.audioControl(ctx, audioPath(channel, "close"), nil, "")
}

// SendAudioData forwards data verbatim. An empty payload is sent as an empty body.
func (c *Client) SendAudioData(ctx context.Context, channel int, data []byte) Result {
	if data == nil {
		data = []byte{}
	}
	return c.audioControl(ctx, audioPath(channel, "audioData"), data, contentTypeBinary)
}

func (c *Client) audioControl(ctx context.Context, path string, body []byte, contentType string) Result {
	if err := c.checkTwoWayAudio(); err != nil {
		return failed(err)
	}
	if _, err := c.do(ctx, http.MethodPut, path, body, contentType); err != nil {
		return failed(err)
	}
	return succeeded()
}
