package nvr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
)

// fakeDevice serves canned ISAPI documents keyed by path without the /ISAPI/
// prefix; anything else is a 404.
type fakeDevice map[string]string

func (f fakeDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, ok := f[strings.TrimPrefix(r.URL.Path, "/ISAPI/")]
	if !ok || r.Method != http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(body))
}

func newFakeClient(t *testing.T, dev fakeDevice) (*hikvision.Client, adapters.Credential) {
	t.Helper()
	srv := httptest.NewServer(dev)
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	cred := adapters.Credential{Username: "admin", Password: "secret", AuthType: "basic"}
	client := hikvision.NewClient(adapters.Target{Host: u.Hostname(), Port: port}, cred, hikvision.Options{})
	return client, cred
}

const ipcSerial = "DS-2CD2386G2-ISU/SL20210101AAWRJ00000001"

func ipcDevice() fakeDevice {
	return fakeDevice{
		"System/deviceInfo": `<DeviceInfo version="2.0">
	<deviceName>Front Door</deviceName>
	<model>DS-2CD2386G2-ISU/SL</model>
	<serialNumber>` + ipcSerial + `</serialNumber>
	<firmwareVersion>V5.7.3</firmwareVersion>
	<deviceType>IPCamera</deviceType>
</DeviceInfo>`,
		"System/capabilities": `<DeviceCap>
	<SysCap><IOCap><IOInputPortNums>1</IOInputPortNums></IOCap><VideoCap><videoInputPortNums>1</videoInputPortNums></VideoCap></SysCap>
	<isSupportPTZ>false</isSupportPTZ>
	<SmartCap><isSupportLineDetection>true</isSupportLineDetection></SmartCap>
</DeviceCap>`,
		"Event/triggers": `<EventTriggerList>
	<EventTrigger><id>VMD-1</id><eventType>VMD</eventType><videoInputChannelID>1</videoInputChannelID>
		<EventTriggerNotificationList><EventTriggerNotification><notificationMethod>center</notificationMethod></EventTriggerNotification></EventTriggerNotificationList>
	</EventTrigger>
	<EventTrigger><id>linedetection-1</id><eventType>linedetection</eventType><videoInputChannelID>1</videoInputChannelID>
		<EventTriggerNotificationList/>
	</EventTrigger>
	<EventTrigger><id>fielddetection-1</id><eventType>fielddetection</eventType><videoInputChannelID>1</videoInputChannelID></EventTrigger>
	<EventTrigger><id>IO-1</id><eventType>IO</eventType><inputIOPortID>1</inputIOPortID>
		<EventTriggerNotificationList><EventTriggerNotification><notificationMethod>center</notificationMethod></EventTriggerNotification></EventTriggerNotificationList>
	</EventTrigger>
</EventTriggerList>`,
		"Streaming/channels": `<StreamingChannelList>
	<StreamingChannel><id>101</id><channelName>Front Door</channelName><enabled>true</enabled>
		<Video><videoCodecType>H.265</videoCodecType><videoResolutionWidth>3840</videoResolutionWidth><videoResolutionHeight>2160</videoResolutionHeight></Video>
	</StreamingChannel>
</StreamingChannelList>`,
		"System/Video/inputs/channels": `<VideoInputChannelList>
	<VideoInputChannel><id>1</id><inputPort>1</inputPort><name>Camera 01</name></VideoInputChannel>
</VideoInputChannelList>`,
	}
}

func TestBuildIPC(t *testing.T) {
	client, cred := newFakeClient(t, ipcDevice())

	dev, err := NewBuilder(client, cred).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ipcSerial, dev.SerialNo())
	assert.False(t, dev.Capabilities.IsNVR)
	assert.Equal(t, adapters.DefaultRTSPPort, dev.RTSPPort)
	assert.Same(t, dev.Capabilities, client.Capabilities)

	require.Len(t, dev.Cameras, 1)
	cam := dev.Cameras[0]
	assert.Equal(t, 1, cam.ID)
	assert.Equal(t, "Front Door", cam.Name)
	assert.False(t, cam.SupportPTZ)
	assert.Empty(t, cam.PTZInfo.Presets)

	require.Len(t, cam.Streams, 3)
	assert.Equal(t, 101, cam.Streams[0].ID)
	assert.True(t, cam.Streams[0].Enabled)
	assert.Equal(t, "H.265", cam.Streams[0].Codec)
	assert.Equal(t, 3840, cam.Streams[0].Width)
	assert.Equal(t, "Sub-Stream", cam.Streams[1].Name)
	assert.False(t, cam.Streams[1].Enabled)
	assert.Equal(t, 104, cam.Streams[2].ID)
	assert.Equal(t, "Transcoded Stream", cam.Streams[2].Name)
	assert.NotContains(t, cam.Streams[0].RTSPURL, "secret")
	assert.Contains(t, cam.Streams[0].URL(), "admin:secret@")
	assert.True(t, strings.HasSuffix(cam.Streams[0].URL(), "/Streaming/channels/101"))

	slug := Slugify(ipcSerial)
	var ids []string
	for _, d := range dev.Descriptors() {
		ids = append(ids, d.UniqueID)
	}
	// fielddetection has a trigger but no SmartCap flag
	assert.Equal(t, []string{
		slug + "_1_motiondetection",
		slug + "_1_linedetection",
		slug + "_1_linedetection_human",
		slug + "_1_linedetection_vehicle",
		slug + "_1_io",
	}, ids)

	line, ok := dev.Descriptor(1, hikvision.EventLineDetection, hikvision.TargetHuman)
	require.True(t, ok)
	assert.Equal(t, "Line Crossing (Person)", line.Label)
	assert.True(t, line.Disabled)

	io, ok := dev.Descriptor(1, hikvision.EventIO, "")
	require.True(t, ok)
	assert.Equal(t, "Alarm Input 1", io.Label)
	assert.False(t, io.Disabled)
}

func TestBuildIntercom(t *testing.T) {
	device := ipcDevice()
	device["System/deviceInfo"] = strings.Replace(device["System/deviceInfo"], "DS-2CD2386G2-ISU/SL", "DS-KV6113-WPE1", 1)
	device["Event/triggers"] = `<EventTriggerList/>`
	client, cred := newFakeClient(t, device)

	dev, err := NewBuilder(client, cred).Build(context.Background())
	require.NoError(t, err)
	require.True(t, dev.Capabilities.SupportVideoIntercom)

	slug := Slugify(ipcSerial)
	_, ok := dev.Descriptor(0, hikvision.EventVideoIntercomEvent, "")
	assert.True(t, ok)
	motion, ok := dev.Descriptor(1, hikvision.EventMotion, "")
	require.True(t, ok)
	assert.Equal(t, slug+"_1_motiondetection", motion.UniqueID)

	doorbell, _ := dev.Descriptor(0, hikvision.EventVideoIntercomEvent, "")
	assert.Equal(t, slug+"_videointercomevent", doorbell.UniqueID)
}

func TestBuildFailsWithoutDeviceInfo(t *testing.T) {
	client, cred := newFakeClient(t, fakeDevice{})

	_, err := NewBuilder(client, cred).Build(context.Background())
	require.Error(t, err)
	assert.True(t, hikvision.IsNotFound(err))
}

func nvrDevice() fakeDevice {
	return fakeDevice{
		"System/deviceInfo": `<DeviceInfo><deviceName>Recorder</deviceName><model>DS-7608NI-K2</model><serialNumber>DS-7608NI-K20200101CCWRE00000001</serialNumber><deviceType>NVR</deviceType></DeviceInfo>`,
		"System/capabilities": `<DeviceCap>
	<SysCap><VideoCap><videoInputPortNums>0</videoInputPortNums></VideoCap></SysCap>
	<RacmCap><inputProxyNums>8</inputProxyNums></RacmCap>
	<PTZCtrlCap><isSupportPatrols>true</isSupportPatrols></PTZCtrlCap>
</DeviceCap>`,
		"ContentMgmt/InputProxy/channels": `<InputProxyChannelList>
	<InputProxyChannel><id>1</id><name>Drive ONVIF</name>
		<sourceInputPortDescriptor><proxyProtocol>ONVIF</proxyProtocol><ipAddress>1.0.0.64</ipAddress><srcInputPort>1</srcInputPort><serialNumber>CAM-A</serialNumber></sourceInputPortDescriptor>
	</InputProxyChannel>
	<InputProxyChannel><id>2</id><name>Drive</name>
		<sourceInputPortDescriptor><proxyProtocol>HIKVISION</proxyProtocol><ipAddress>1.0.0.64</ipAddress><srcInputPort>2</srcInputPort><serialNumber>CAM-A</serialNumber></sourceInputPortDescriptor>
	</InputProxyChannel>
	<InputProxyChannel><id>3</id><name>Yard</name>
		<sourceInputPortDescriptor><proxyProtocol>HIKVISION</proxyProtocol><ipAddress>1.0.0.65</ipAddress><srcInputPort>3</srcInputPort><serialNumber>CAM-B</serialNumber></sourceInputPortDescriptor>
	</InputProxyChannel>
</InputProxyChannelList>`,
		"Streaming/channels": `<StreamingChannelList>
	<StreamingChannel><id>201</id><enabled>true</enabled></StreamingChannel>
	<StreamingChannel><id>301</id><enabled>true</enabled></StreamingChannel>
</StreamingChannelList>`,
		"Event/triggers": `<EventTriggerList>
	<EventTrigger><id>VMD-2</id><eventType>VMD</eventType><videoInputChannelID>2</videoInputChannelID></EventTrigger>
	<EventTrigger><id>linedetection-3</id><eventType>linedetection</eventType><videoInputChannelID>3</videoInputChannelID></EventTrigger>
</EventTriggerList>`,
		"PTZCtrl/channels/2/capabilities": `<PTZChanelCap><AbsolutePanTiltPositionSpace/><ContinuousPanTiltSpace/></PTZChanelCap>`,
		"PTZCtrl/channels/2/presets": `<PTZPresetList>
	<PTZPreset><id>1</id><presetName>Gate</presetName><enabled>true</enabled></PTZPreset>
	<PTZPreset><id>2</id><presetName></presetName></PTZPreset>
</PTZPresetList>`,
	}
}

func TestBuildNVR(t *testing.T) {
	client, cred := newFakeClient(t, nvrDevice())

	dev, err := NewBuilder(client, cred).Build(context.Background())
	require.NoError(t, err)
	require.True(t, dev.Capabilities.IsNVR)

	// proxies 1 and 2 are the same camera; the one with streams stays
	require.Len(t, dev.Cameras, 2)
	assert.Equal(t, 2, dev.Cameras[0].ID)
	assert.Equal(t, "Drive", dev.Cameras[0].Name)
	assert.True(t, dev.Cameras[0].IsProxy)
	assert.Equal(t, 3, dev.Cameras[1].ID)

	ptz := dev.Cameras[0]
	assert.True(t, ptz.SupportPTZ)
	assert.True(t, ptz.PTZInfo.AbsoluteMove)
	assert.Equal(t, []hikvision.PTZPresetInfo{{ID: 1, Name: "Gate", Enabled: true}}, ptz.PTZInfo.Presets)
	assert.False(t, dev.Cameras[1].SupportPTZ)

	// smart events on NVR channels come from the triggers alone
	_, ok := dev.Descriptor(3, hikvision.EventLineDetection, hikvision.TargetVehicle)
	assert.True(t, ok)

	// alert channel 34 is input port 2
	cam := dev.ResolveChannel(34)
	require.NotNil(t, cam)
	assert.Equal(t, 2, cam.ID)
	assert.Equal(t, 3, dev.ResolveChannel(3).ID)

	// gated on the client after the probe
	err = client.PTZMove(context.Background(), 3, 10, 0, 0)
	assert.True(t, hikvision.IsNotSupported(err))
}

func TestUniqueIDAndSlugify(t *testing.T) {
	tests := []struct {
		serial  string
		channel int
		event   string
		target  string
		want    string
	}{
		{"DS-2CD2386G2", 1, "motiondetection", "", "ds_2cd2386g2_1_motiondetection"},
		{"DS-2CD2386G2", 1, "linedetection", "human", "ds_2cd2386g2_1_linedetection_human"},
		{"DS-KV6113//WPE1", 0, "videointercomevent", "", "ds_kv6113_wpe1_videointercomevent"},
		{"  ABC  ", 2, "io", "", "abc_2_io"},
	}
	for _, tt := range tests {
		if got := UniqueID(tt.serial, tt.channel, tt.event, tt.target); got != tt.want {
			t.Errorf("Expected %s, got %s", tt.want, got)
		}
	}
}
