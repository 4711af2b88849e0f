package hikvision

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/icholy/digest"
	"github.com/technosupport/hikvision-bridge/internal/metrics"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
)

const (
	contentTypeXML    = "application/xml; charset=UTF-8"
	contentTypeJSON   = "application/json"
	contentTypeBinary = "application/octet-stream"
)

type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	// Normalizer defaults to DefaultNormalizer().
	Normalizer *Normalizer
}

// Client talks ISAPI to one device. Reads are safe for concurrent use.
type Client struct {
	Target adapters.Target
	cred   adapters.Credential
	rc     *resty.Client
	norm   *Normalizer

	// Capabilities gates feature calls. Nil means nothing is gated.
	Capabilities *DeviceCapabilities

	mu         sync.RWMutex
	channelPTZ map[int]bool
}

func NewClient(target adapters.Target, cred adapters.Credential, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = adapters.DefaultTimeout * time.Second
	}
	if opts.Normalizer == nil {
		opts.Normalizer = DefaultNormalizer()
	}

	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify},
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	var rc *resty.Client
	if strings.EqualFold(cred.AuthType, "basic") {
		rc = resty.New().SetTransport(base).SetDisableWarn(true)
		if cred.Username != "" {
			rc.SetBasicAuth(cred.Username, cred.Password)
		}
	} else {
		rc = resty.NewWithClient(&http.Client{
			Transport: &digest.Transport{
				Username:  cred.Username,
				Password:  cred.Password,
				Transport: base,
			},
		})
	}
	rc.SetBaseURL(target.BaseURL() + "/ISAPI").
		SetTimeout(opts.Timeout)

	return &Client{
		Target:     target,
		cred:       cred,
		rc:         rc,
		norm:       opts.Normalizer,
		channelPTZ: make(map[int]bool),
	}
}

// Host returns the device host name or address.
func (c *Client) Host() string { return c.Target.Host }

// Normalizer returns the parser shared with this client.
func (c *Client) Normalizer() *Normalizer { return c.norm }

// SetChannelPTZ records channel-level PTZ support. PTZ control calls on a
// channel marked unsupported fail without a request.
func (c *Client) SetChannelPTZ(channel int, supported bool) {
	c.mu.Lock()
	c.channelPTZ[channel] = supported
	c.mu.Unlock()
}

func (c *Client) checkChannelPTZ(channel int) error {
	c.mu.RLock()
	supported, known := c.channelPTZ[channel]
	c.mu.RUnlock()
	if known && !supported {
		return &NotSupportedError{Feature: FeaturePTZ}
	}
	return nil
}

// response is a completed exchange with a 2xx status.
type response struct {
	status      int
	contentType string
	body        []byte
}

func (r *response) text() string { return string(r.body) }

// do issues one request. Non-2xx statuses become typed errors carrying the body.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) (*response, error) {
	req := c.rc.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", contentType).SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, "/"+strings.TrimPrefix(path, "/"))
	metrics.ISAPIRequestDuration.WithLabelValues(method).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.ISAPIRequestsTotal.WithLabelValues(method, "error").Inc()
		log.Printf("[ISAPI] %s %s failed: %v", method, path, err)
		return nil, &TransportError{Err: err}
	}

	code := resp.StatusCode()
	metrics.ISAPIRequestsTotal.WithLabelValues(method, metrics.StatusClass(code)).Inc()

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, &AuthError{StatusCode: code, Body: resp.String()}
	case code < 200 || code >= 300:
		if code != http.StatusNotFound {
			log.Printf("[ISAPI] %s %s -> %d", method, path, code)
		}
		return nil, &TransportError{StatusCode: code, Body: resp.String()}
	}

	return &response{
		status:      code,
		contentType: resp.Header().Get("Content-Type"),
		body:        resp.Body(),
	}, nil
}

// Get fetches path and parses the body.
func (c *Client) Get(ctx context.Context, path string) (*Node, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	return c.norm.Parse(resp.body, DetectFormat(resp.contentType, resp.body))
}

// getList returns the nodes at listPath, treating 404 and unparseable bodies as empty.
func (c *Client) getList(ctx context.Context, path string, listPath ...string) ([]*Node, error) {
	root, err := c.Get(ctx, path)
	if err != nil {
		if IsNotFound(err) || isParse(err) {
			return nil, nil
		}
		return nil, err
	}
	return root.Get(listPath...).List(), nil
}

// Exists reports whether path answers 200. Any failure counts as absent.
func (c *Client) Exists(ctx context.Context, path string) bool {
	_, err := c.do(ctx, http.MethodGet, path, nil, "")
	return err == nil
}

func (c *Client) putXML(ctx context.Context, path string, body []byte) error {
	resp, err := c.do(ctx, http.MethodPut, path, body, contentTypeXML)
	if err != nil {
		return err
	}
	return c.checkStatus(resp)
}

func (c *Client) putJSON(ctx context.Context, path string, body []byte) error {
	resp, err := c.do(ctx, http.MethodPut, path, body, contentTypeJSON)
	if err != nil {
		return err
	}
	return c.checkStatus(resp)
}

func (c *Client) postXML(ctx context.Context, path string, body []byte) (*Node, error) {
	resp, err := c.do(ctx, http.MethodPost, path, body, contentTypeXML)
	if err != nil {
		return nil, err
	}
	return c.norm.Parse(resp.body, DetectFormat(resp.contentType, resp.body))
}

// checkStatus inspects a ResponseStatus envelope returned with a 2xx status.
// statusCode 1 is OK; 7 (reboot required) is accepted as success.
func (c *Client) checkStatus(resp *response) error {
	if len(resp.body) == 0 {
		return nil
	}
	root, err := c.norm.Parse(resp.body, DetectFormat(resp.contentType, resp.body))
	if err != nil {
		return nil
	}
	status := root.First("ResponseStatus")
	if status == nil {
		status = root
	}
	code := status.Get("statusCode")
	if code == nil {
		return nil
	}
	switch code.Int() {
	case 0, 1, 7:
		return nil
	}
	return &TransportError{StatusCode: resp.status, Body: resp.text()}
}

// Request performs a raw ISAPI call and returns the response text.
func (c *Client) Request(ctx context.Context, method, path string, body []byte) (string, error) {
	method = strings.ToUpper(method)
	ct := ""
	if body != nil {
		ct = contentTypeXML
		if DetectFormat("", body) == FormatJSON {
			ct = contentTypeJSON
		}
	}
	resp, err := c.do(ctx, method, path, body, ct)
	if err != nil {
		return "", err
	}
	return resp.text(), nil
}

// Reboot restarts the device.
func (c *Client) Reboot(ctx context.Context) error {
	return c.putXML(ctx, "System/reboot", nil)
}

func isParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
