package adapters

import (
	"strings"
	"time"
)

const compactLayout = "20060102T150405"

// ParseVendorTime attempts to parse timestamps reported by ISAPI firmware.
// Seen forms: 2023-10-27T10:00:00Z, 2023-10-27T10:00:00+08:00, 2023-10-27T10:00:00,
// 2023-10-27 10:00:00 and 20231027T100000Z.
func ParseVendorTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}

	if t, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
		return t
	}

	// Local device time without zone
	if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return t
	}

	if t, err := time.Parse(compactLayout+"Z", strings.ToUpper(raw)); err == nil {
		return t
	}

	// strip sub-seconds
	clean := strings.Split(raw, ".")[0]
	if t, err := time.Parse("2006-01-02T15:04:05", clean); err == nil {
		return t
	}

	return time.Time{}
}

// CompactUTC formats t the way RTSP playback expects it: YYYYMMDDTHHMMSSz.
func CompactUTC(t time.Time) string {
	return t.UTC().Format(compactLayout) + "z"
}

// ISOUTC formats t as used in search requests: 2006-01-02T15:04:05Z.
func ISOUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
