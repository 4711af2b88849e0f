package hikvision

import (
	"errors"
	"fmt"
	"net/http"
)

// Feature names carried by NotSupportedError.
const (
	FeatureSiren       = "siren"
	FeatureStrobe      = "strobe"
	FeatureVoice       = "voice"
	FeatureTwoWayAudio = "two-way audio"
	FeaturePTZ         = "PTZ"
)

// NotSupportedError is returned before any request is made when the device
// lacks the capability an operation needs.
type NotSupportedError struct {
	Feature string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("Device does not support %s", e.Feature)
}

// AuthError is a 401/403 from the device.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("hikvision: authentication failed (status %d)", e.StatusCode)
}

// TransportError covers network failures and unclassified non-2xx responses.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hikvision: request failed: %v", e.Err)
	}
	return fmt.Sprintf("hikvision: status %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("hikvision: parse: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// VendorBusyError is a 200 response whose XML body reports the device as busy.
type VendorBusyError struct {
	Body string
}

func (e *VendorBusyError) Error() string {
	return "hikvision: device busy"
}

func IsNotFound(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.StatusCode == http.StatusNotFound
}

func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsNotSupported(err error) bool {
	var ns *NotSupportedError
	return errors.As(err, &ns)
}

// ResponseBody returns the device response text attached to err, if any.
func ResponseBody(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Body
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Body
	}
	var be *VendorBusyError
	if errors.As(err, &be) {
		return be.Body
	}
	return ""
}

// Result is the outcome of a best-effort control call. On failure OK is false
// and Err says why.
type Result struct {
	OK  bool
	Err error
}

func succeeded() Result { return Result{OK: true} }

func failed(err error) Result { return Result{Err: err} }
