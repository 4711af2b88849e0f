package nvr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
)

var alarmServerKeys = []string{"protocol_type", "address", "port_no", "path"}

func AlarmServerID(serial, key string) string {
	return fmt.Sprintf("%s_alarm_server_%s", Slugify(serial), key)
}

func StorageID(serial string, s hikvision.StorageInfo) string {
	return fmt.Sprintf("%s_%d_%s", Slugify(serial), s.ID, Slugify(s.Name))
}

// LicensePlateID is per camera, or NVR-wide for channel 0.
func LicensePlateID(serial string, channel int) string {
	return UniqueID(serial, channel, "license_plate", "")
}

func PresetSelectID(serial string, channel int) string {
	return UniqueID(serial, channel, "ptz_preset", "")
}

// PresetOption renders a preset as a select option.
func PresetOption(p hikvision.PTZPresetInfo) string {
	return fmt.Sprintf("%d: %s", p.ID, p.Name)
}

// ParsePresetOption returns the preset id of an option or a bare id.
func ParsePresetOption(option string) (int, error) {
	head, _, _ := strings.Cut(option, ":")
	id, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid preset %q", option)
	}
	return id, nil
}

// RegisterEntities creates every entity the device model implies.
func RegisterEntities(dev *Device, store *EntityStore) {
	serial := dev.SerialNo()
	store.RegisterDescriptors(dev.Descriptors())

	for _, key := range alarmServerKeys {
		store.Register(Entity{
			UniqueID: AlarmServerID(serial, key),
			Kind:     KindSensor,
			Name:     "Alarm Server " + strings.ReplaceAll(key, "_", " "),
		})
	}

	anpr := false
	for _, cam := range dev.Cameras {
		if cam.ANPR {
			anpr = true
			store.Register(Entity{
				UniqueID: LicensePlateID(serial, cam.ID),
				Kind:     KindSensor,
				Name:     cam.Name + " License Plate",
			})
		}
		if cam.SupportPTZ && len(cam.PTZInfo.Presets) > 0 {
			options := make([]string, 0, len(cam.PTZInfo.Presets))
			for _, p := range cam.PTZInfo.Presets {
				options = append(options, PresetOption(p))
			}
			store.Register(Entity{
				UniqueID: PresetSelectID(serial, cam.ID),
				Kind:     KindSelect,
				Name:     cam.Name + " PTZ Preset",
				Options:  options,
			})
		}
	}
	if anpr && dev.Capabilities.IsNVR {
		store.Register(Entity{
			UniqueID: LicensePlateID(serial, 0),
			Kind:     KindSensor,
			Name:     dev.Info.Name + " License Plate",
		})
	}

	if srv := dev.AlarmServer(); srv != nil {
		UpdateAlarmServerSensors(dev, store, srv)
	}
	UpdateStorageSensors(dev, store, dev.Storage())
}

func UpdateAlarmServerSensors(dev *Device, store *EntityStore, srv *hikvision.AlarmServer) {
	serial := dev.SerialNo()
	values := map[string]string{
		"protocol_type": srv.ProtocolType,
		"address":       srv.Address,
		"port_no":       strconv.Itoa(srv.PortNo),
		"path":          srv.Path,
	}
	for _, key := range alarmServerKeys {
		id := AlarmServerID(serial, key)
		if cur, ok := store.Get(id); ok && cur.State == values[key] {
			continue
		}
		store.SetState(id, values[key], nil)
	}
}

// UpdateStorageSensors registers sensors for newly seen disks and refreshes
// state and attributes of all of them.
func UpdateStorageSensors(dev *Device, store *EntityStore, disks []hikvision.StorageInfo) {
	serial := dev.SerialNo()
	for _, s := range disks {
		id := StorageID(serial, s)
		if _, ok := store.Get(id); !ok {
			store.Register(Entity{
				UniqueID: id,
				Kind:     KindSensor,
				Name:     s.Name,
			})
		}
		attrs := map[string]any{
			"type":      s.Type,
			"capacity":  s.Capacity,
			"freespace": s.Freespace,
		}
		if s.IP != "" {
			attrs["ip"] = s.IP
		}
		store.SetState(id, strings.ToUpper(s.Status), attrs)
	}
}
