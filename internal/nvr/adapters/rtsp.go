package adapters

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const DefaultRTSPPort = 554

// StreamID is the Hikvision stream number: channel*100 + stream index (1 main, 2 sub, 4 transcoded).
func StreamID(channel, index int) int {
	return channel*100 + index
}

// StreamURL builds the live RTSP url for a stream id.
func StreamURL(host string, port int, cred Credential, streamID int) string {
	return fmt.Sprintf("rtsp://%s%s/Streaming/channels/%d", userInfo(cred), hostPort(host, port), streamID)
}

// PlaybackURL builds the RTSP playback url for a recorded track.
// Track ids follow the stream numbering (channel 1 main = 101, channel 2 sub = 202).
func PlaybackURL(host string, port int, cred Credential, channel, streamType int, start, end time.Time) string {
	if streamType <= 0 {
		streamType = 1
	}
	return fmt.Sprintf("rtsp://%s%s/Streaming/tracks/%d?starttime=%s&endtime=%s",
		userInfo(cred), hostPort(host, port), StreamID(channel, streamType),
		CompactUTC(start), CompactUTC(end))
}

func userInfo(cred Credential) string {
	if cred.Username == "" {
		return ""
	}
	return escapeCredential(cred.Username) + ":" + escapeCredential(cred.Password) + "@"
}

func hostPort(host string, port int) string {
	if port == 0 {
		port = DefaultRTSPPort
	}
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// escapeCredential percent-encodes every reserved character, spaces included.
func escapeCredential(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
