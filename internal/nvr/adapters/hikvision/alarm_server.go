package hikvision

import (
	"context"
	"encoding/xml"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const isapiNamespace = "http://www.isapi.org/ver20/XMLSchema"

// AlarmServer is the first configured HTTP notification host.
type AlarmServer struct {
	ProtocolType string `json:"protocol_type"`
	Address      string `json:"address"`
	PortNo       int    `json:"port_no"`
	Path         string `json:"path"`
}

// GetAlarmServer reads Event/notification/httpHosts. NVRs return a single host
// and proxy-capable IPCs a list; both yield the first entry.
func (c *Client) GetAlarmServer(ctx context.Context) (*AlarmServer, error) {
	hosts, err := c.getList(ctx, "Event/notification/httpHosts", "HttpHostNotificationList", "HttpHostNotification")
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, nil
	}
	return alarmServerFromNode(hosts[0]), nil
}

func alarmServerFromNode(h *Node) *AlarmServer {
	addr := h.Get("ipAddress").Text()
	if strings.EqualFold(h.Get("addressingFormatType").Text(), "hostname") {
		addr = h.Get("hostName").Text()
	}
	return &AlarmServer{
		ProtocolType: h.Get("protocolType").Text(),
		Address:      addr,
		PortNo:       h.Get("portNo").Int(),
		Path:         h.Get("url").Text(),
	}
}

type httpHostNotificationList struct {
	XMLName xml.Name               `xml:"HttpHostNotificationList"`
	Version string                 `xml:"version,attr"`
	Xmlns   string                 `xml:"xmlns,attr"`
	Hosts   []httpHostNotification `xml:"HttpHostNotification"`
}

type httpHostNotification struct {
	ID                       string `xml:"id"`
	URL                      string `xml:"url"`
	ProtocolType             string `xml:"protocolType"`
	ParameterFormatType      string `xml:"parameterFormatType"`
	AddressingFormatType     string `xml:"addressingFormatType"`
	IPAddress                string `xml:"ipAddress,omitempty"`
	HostName                 string `xml:"hostName,omitempty"`
	PortNo                   int    `xml:"portNo"`
	HTTPAuthenticationMethod string `xml:"httpAuthenticationMethod"`
}

// AlarmServerPayload renders the canonical httpHosts document pointing at
// baseURL+path. Element order and casing are fixed; firmware rejects variants.
func AlarmServerPayload(hostID, baseURL, path string) ([]byte, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("hikvision: invalid alarm server url %q", baseURL)
	}
	if hostID == "" {
		hostID = "1"
	}

	protocol := "HTTP"
	port := 80
	if strings.EqualFold(u.Scheme, "https") {
		protocol = "HTTPS"
		port = 443
	}
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}

	host := httpHostNotification{
		ID:                       hostID,
		URL:                      path,
		ProtocolType:             protocol,
		ParameterFormatType:      "XML",
		PortNo:                   port,
		HTTPAuthenticationMethod: "none",
	}
	if net.ParseIP(u.Hostname()) != nil {
		host.AddressingFormatType = "ipaddress"
		host.IPAddress = u.Hostname()
	} else {
		host.AddressingFormatType = "hostname"
		host.HostName = u.Hostname()
	}

	body, err := xml.Marshal(httpHostNotificationList{
		Version: "2.0",
		Xmlns:   isapiNamespace,
		Hosts:   []httpHostNotification{host},
	})
	if err != nil {
		return nil, err
	}
	return append([]byte(`<?xml version="1.0" encoding="UTF-8"?>`), body...), nil
}

// SetAlarmServer points the first notification host at baseURL+path, keeping
// the host id the device already uses.
func (c *Client) SetAlarmServer(ctx context.Context, baseURL, path string) error {
	hostID := "1"
	if hosts, err := c.getList(ctx, "Event/notification/httpHosts", "HttpHostNotificationList", "HttpHostNotification"); err == nil && len(hosts) > 0 {
		if id := hosts[0].Get("id").Text(); id != "" {
			hostID = id
		}
	}
	body, err := AlarmServerPayload(hostID, baseURL, path)
	if err != nil {
		return err
	}
	return c.putXML(ctx, "Event/notification/httpHosts", body)
}

// PointsAt reports whether s already delivers to baseURL+path.
func (s *AlarmServer) PointsAt(baseURL, path string) bool {
	if s == nil {
		return false
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	port := 80
	if strings.EqualFold(u.Scheme, "https") {
		port = 443
	}
	if p, err := strconv.Atoi(u.Port()); err == nil {
		port = p
	}
	return strings.EqualFold(s.Address, u.Hostname()) &&
		s.PortNo == port &&
		s.Path == path &&
		strings.EqualFold(s.ProtocolType, u.Scheme)
}
