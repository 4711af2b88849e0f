package hikvision

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// AlertInfo is one parsed EventNotificationAlert. Absent text fields are nil and
// absent numeric fields are 0.
type AlertInfo struct {
	ChannelID       int
	IOPortID        int
	EventID         string
	DetectionTarget *string
	RegionID        int

	LicensePlate    *string
	PlateConfidence int
	PlateColor      *string
	PlateType       *string
	VehicleColor    *string

	PersonName *string
	FaceScore  int
	PersonID   *string

	// Cleared is true for eventState=inactive deliveries.
	Cleared     bool
	DateTime    string
	Description string
	IPAddress   string
}

var faceBlocks = []string{"FaceDetection", "FaceRecognition", "faceRecognition", "faceCapture", "FaceCapture"}

// ParseEventNotification parses a webhook body with the default normalizer,
// sniffing XML or JSON from the content.
func ParseEventNotification(body []byte) (*AlertInfo, error) {
	return DefaultNormalizer().ParseEventNotification(body, DetectFormat("", body))
}

// ParseEventNotification turns one alert payload into an AlertInfo.
func (z *Normalizer) ParseEventNotification(body []byte, format Format) (*AlertInfo, error) {
	root, err := z.Parse(body, format)
	if err != nil {
		return nil, err
	}

	alert := root.Get("EventNotificationAlert")
	if alert == nil {
		alert = root
	}
	eventType := alert.Get("eventType").Text()
	if eventType == "" {
		return nil, &ParseError{Err: errors.New("alert has no eventType")}
	}

	info := &AlertInfo{
		ChannelID:   alert.First("channelID", "dynChannelID").Int(),
		IOPortID:    alert.First("inputIOPortID", "dynInputIOPortID").Int(),
		EventID:     CanonicalEventID(eventType),
		Cleared:     strings.EqualFold(alert.Get("eventState").Text(), "inactive"),
		DateTime:    alert.Get("dateTime").Text(),
		Description: alert.Get("eventDescription").Text(),
		IPAddress:   alert.First("ipAddress", "ipv6Address").Text(),
	}

	if entries := alert.Get("DetectionRegionList", "DetectionRegionEntry").List(); len(entries) > 0 {
		region := entries[0]
		info.RegionID = region.Get("regionID").Int()
		if target := strings.ToLower(region.Get("detectionTarget").Text()); IsDetectionTarget(target) {
			info.DetectionTarget = &target
		}
	}

	if anpr := alert.Get("ANPR"); anpr != nil {
		info.LicensePlate = optText(anpr.Get("licensePlate"))
		info.PlateConfidence = anpr.Get("confidenceLevel").Int()
		info.PlateColor = optText(anpr.Get("plateColor"))
		info.PlateType = optText(anpr.Get("plateType"))
		info.VehicleColor = optText(firstNode(
			anpr.Get("vehicleColor"),
			anpr.Get("vehicleInfo", "color"),
			alert.Get("vehicleInfo", "color"),
		))
	}

	if info.EventID == EventFaceDetection {
		parseFace(alert, info)
	}

	return info, nil
}

// parseFace reads person fields from the alert body first, then from the
// firmware-specific face blocks.
func parseFace(alert *Node, info *AlertInfo) {
	scopes := []*Node{alert}
	for _, name := range faceBlocks {
		if block := alert.Get(name); block != nil {
			scopes = append(scopes, block)
		}
	}

	for i, scope := range scopes {
		lookup := func(names ...string) *Node {
			if i == 0 {
				return scope.First(names...)
			}
			for _, n := range names {
				if found := scope.Find(n); found != nil {
					return found
				}
			}
			return nil
		}
		if info.PersonName == nil {
			info.PersonName = optText(lookup("personName", "name"))
		}
		if info.FaceScore == 0 {
			info.FaceScore = score(lookup("faceScore", "similarity"))
		}
		if info.PersonID == nil {
			info.PersonID = optText(lookup("personID", "employeeNo"))
		}
	}
}

// score accepts 0-100 integers and 0-1 similarity ratios.
func score(n *Node) int {
	s := strings.TrimSpace(n.Text())
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if v > 0 && v <= 1 && strings.Contains(s, ".") {
		v *= 100
	}
	return int(math.Round(v))
}

func optText(n *Node) *string {
	if n == nil || n.Kind == KindMap {
		return nil
	}
	s := strings.TrimSpace(n.Text())
	if s == "" {
		return nil
	}
	return &s
}

func firstNode(nodes ...*Node) *Node {
	for _, n := range nodes {
		if n != nil {
			return n
		}
	}
	return nil
}
