package hikvision

import "strings"

// Event ids after alias translation.
const (
	EventMotion             = "motiondetection"
	EventTamper             = "tamperdetection"
	EventVideoLoss          = "videoloss"
	EventSceneChange        = "scenechangedetection"
	EventFieldDetection     = "fielddetection"
	EventLineDetection      = "linedetection"
	EventRegionEntrance     = "regionentrance"
	EventRegionExiting      = "regionexiting"
	EventIO                 = "io"
	EventPIR                = "pir"
	EventVisitorCall        = "visitorcall"
	EventFaceDetection      = "facedetection"
	EventAudioException     = "audioexception"
	EventDefocus            = "defocus"
	EventUnattendedBaggage  = "unattendedbaggage"
	EventVehicleDetection   = "vehicledetection"
	EventVideoIntercomEvent = "videointercomevent"
)

const (
	TargetHuman   = "human"
	TargetVehicle = "vehicle"
)

// DetectionTargets in the order their descriptors are generated.
var DetectionTargets = []string{TargetHuman, TargetVehicle}

type EventKind string

const (
	EventBasic EventKind = "basic"
	EventSmart EventKind = "smart"
)

// EventDef describes one event type the bridge models.
type EventDef struct {
	ID          string
	Kind        EventKind
	Label       string
	Slug        string // ISAPI resource name used in trigger/detection paths
	DeviceClass string
	// CapTag is the SmartCap flag that confirms a smart event.
	CapTag string
	// DirectURL replaces the trigger path for device-level events.
	DirectURL string
}

// EventCatalog is the process-wide table of modeled events.
var EventCatalog = []EventDef{
	{ID: EventMotion, Kind: EventBasic, Label: "Motion", Slug: "MotionDetection", DeviceClass: "motion"},
	{ID: EventTamper, Kind: EventBasic, Label: "Video Tampering", Slug: "TamperDetection", DeviceClass: "tamper"},
	{ID: EventVideoLoss, Kind: EventBasic, Label: "Video Loss", Slug: "videoLoss", DeviceClass: "problem"},
	{ID: EventSceneChange, Kind: EventSmart, Label: "Scene Change", Slug: "SceneChangeDetection", DeviceClass: "tamper", CapTag: "isSupportSceneChangeDetection"},
	{ID: EventFieldDetection, Kind: EventSmart, Label: "Intrusion", Slug: "FieldDetection", DeviceClass: "motion", CapTag: "isSupportFieldDetection"},
	{ID: EventLineDetection, Kind: EventSmart, Label: "Line Crossing", Slug: "LineDetection", DeviceClass: "motion", CapTag: "isSupportLineDetection"},
	{ID: EventRegionEntrance, Kind: EventSmart, Label: "Region Entrance", Slug: "regionEntrance", DeviceClass: "motion", CapTag: "isSupportRegionEntrance"},
	{ID: EventRegionExiting, Kind: EventSmart, Label: "Region Exiting", Slug: "regionExiting", DeviceClass: "motion", CapTag: "isSupportRegionExiting"},
	{ID: EventIO, Kind: EventBasic, Label: "Alarm Input", Slug: "IO", DeviceClass: "motion"},
	{ID: EventPIR, Kind: EventBasic, Label: "PIR", Slug: "PIR", DeviceClass: "motion"},
	{ID: EventVisitorCall, Kind: EventBasic, Label: "Visitor Call", Slug: "visitorCall", DeviceClass: "occupancy"},
	{ID: EventFaceDetection, Kind: EventSmart, Label: "Face Detection", Slug: "FaceDetection", DeviceClass: "motion", CapTag: "isSupportFaceDetect"},
	{ID: EventAudioException, Kind: EventSmart, Label: "Audio Exception", Slug: "AudioException", DeviceClass: "sound", CapTag: "isSupportAudioDetection"},
	{ID: EventDefocus, Kind: EventBasic, Label: "Defocus Detection", Slug: "defocus", DeviceClass: "problem"},
	{ID: EventUnattendedBaggage, Kind: EventSmart, Label: "Unattended Baggage", Slug: "UnattendedBaggage", DeviceClass: "problem", CapTag: "isSupportUnattendedBaggage"},
	{ID: EventVehicleDetection, Kind: EventSmart, Label: "Vehicle Detection", Slug: "vehicleDetection", DeviceClass: "motion", CapTag: "isSupportVehicleDetection"},
	{ID: EventVideoIntercomEvent, Kind: EventBasic, Label: "Doorbell", DeviceClass: "occupancy", DirectURL: "VideoIntercom/callStatus"},
}

var eventsByID = func() map[string]EventDef {
	m := make(map[string]EventDef, len(EventCatalog))
	for _, def := range EventCatalog {
		m[def.ID] = def
	}
	return m
}()

// LookupEvent returns the catalog entry for a canonical event id.
func LookupEvent(id string) (EventDef, bool) {
	def, ok := eventsByID[id]
	return def, ok
}

// eventAliases maps vendor spellings to catalog ids.
var eventAliases = map[string]string{
	"vmd":             EventMotion,
	"shelteralarm":    EventTamper,
	"doorbellpress":   EventVideoIntercomEvent,
	"anpr":            EventVehicleDetection,
	"facerecognition": EventFaceDetection,
	"facecapture":     EventFaceDetection,
}

// CanonicalEventID lowercases a vendor event type and resolves known aliases.
// Unknown types pass through lowercased.
func CanonicalEventID(eventType string) string {
	id := strings.ToLower(strings.TrimSpace(eventType))
	if alias, ok := eventAliases[id]; ok {
		return alias
	}
	return id
}

// SupportsTargetDetection reports whether an event type gets per-target descriptors.
func SupportsTargetDetection(eventID string) bool {
	switch eventID {
	case EventFieldDetection, EventLineDetection, EventRegionEntrance, EventRegionExiting:
		return true
	}
	return false
}

// IsDetectionTarget reports whether target is one of the modeled targets.
func IsDetectionTarget(target string) bool {
	return target == TargetHuman || target == TargetVehicle
}
