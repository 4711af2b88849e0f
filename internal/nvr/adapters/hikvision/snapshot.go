package hikvision

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/technosupport/hikvision-bridge/internal/metrics"
)

const snapshotAttempts = 3

// SnapshotRetryDelay is the pause between busy retries.
var SnapshotRetryDelay = 500 * time.Millisecond

var busyMarkers = []string{"device busy", "devicebusy", "device error", "deviceerror"}

// GetSnapshot fetches a JPEG. channel is either a channel number (main stream
// is used) or a stream id such as 102. A busy reply is retried on the primary
// path; a non-image reply falls back to the StreamingProxy path.
func (c *Client) GetSnapshot(ctx context.Context, channel int) ([]byte, error) {
	streamID := channel
	if channel < 100 {
		streamID = channel*100 + 1
	}
	primary := fmt.Sprintf("Streaming/channels/%d/picture", streamID)
	fallback := fmt.Sprintf("ContentMgmt/StreamingProxy/channels/%d/picture", streamID)

	var lastErr error
	for attempt := 1; attempt <= snapshotAttempts; attempt++ {
		resp, err := c.do(ctx, http.MethodGet, primary, nil, "")
		if err != nil {
			lastErr = err
			if IsAuth(err) {
				metrics.SnapshotAttemptsTotal.WithLabelValues("fail").Inc()
				return nil, err
			}
			break
		}
		if isImage(resp) {
			metrics.SnapshotAttemptsTotal.WithLabelValues("ok").Inc()
			return resp.body, nil
		}
		if !c.isBusy(resp) {
			lastErr = &ParseError{Err: fmt.Errorf("snapshot is not an image (%s)", resp.contentType)}
			break
		}

		metrics.SnapshotAttemptsTotal.WithLabelValues("busy").Inc()
		lastErr = &VendorBusyError{Body: resp.text()}
		if attempt < snapshotAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(SnapshotRetryDelay * time.Duration(attempt)):
			}
		}
	}

	metrics.SnapshotAttemptsTotal.WithLabelValues("fallback").Inc()
	resp, err := c.do(ctx, http.MethodGet, fallback, nil, "")
	if err == nil && isImage(resp) {
		return resp.body, nil
	}
	if err != nil {
		lastErr = err
	}
	metrics.SnapshotAttemptsTotal.WithLabelValues("fail").Inc()
	return nil, lastErr
}

func isImage(resp *response) bool {
	if len(resp.body) == 0 {
		return false
	}
	if strings.HasPrefix(strings.ToLower(resp.contentType), "image/") {
		return true
	}
	return strings.HasPrefix(http.DetectContentType(resp.body), "image/")
}

func (c *Client) isBusy(resp *response) bool {
	if !bytes.Contains(resp.body, []byte("<")) {
		return false
	}
	root, err := c.norm.ParseXML(resp.body)
	if err != nil {
		return false
	}
	for _, tag := range []string{"statusString", "subStatusCode"} {
		v := strings.ToLower(root.Find(tag).Text())
		for _, m := range busyMarkers {
			if v == m {
				return true
			}
		}
	}
	return false
}
