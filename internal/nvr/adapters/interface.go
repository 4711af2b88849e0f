package adapters

import (
	"fmt"
	"net"
	"strconv"
)

// Target is the network location of a device.
type Target struct {
	Host     string
	Port     int
	Scheme   string // "http" or "https"
	RTSPPort int    // 0 means use the device reported port
}

// BaseURL returns scheme://host[:port] without a trailing slash.
func (t Target) BaseURL() string {
	scheme := t.Scheme
	if scheme == "" {
		scheme = "http"
	}
	if t.Port == 0 || (scheme == "http" && t.Port == 80) || (scheme == "https" && t.Port == 443) {
		return fmt.Sprintf("%s://%s", scheme, t.Host)
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(t.Host, strconv.Itoa(t.Port)))
}

// Credential for the device (in-memory only)
type Credential struct {
	Username string
	Password string
	AuthType string // "digest", "basic"
}

// DeviceInfo is the identity block reported by System/deviceInfo.
type DeviceInfo struct {
	Name            string `json:"name"`
	Manufacturer    string `json:"manufacturer"`
	Model           string `json:"model"`
	SerialNo        string `json:"serial_no"`
	FirmwareVersion string `json:"firmware_version"`
	MACAddress      string `json:"mac_address"`
	DeviceType      string `json:"device_type"`
	IPAddress       string `json:"ip_address"`
}
