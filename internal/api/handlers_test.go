package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/hikvision-bridge/internal/api"
	"github.com/technosupport/hikvision-bridge/internal/middleware"
	"github.com/technosupport/hikvision-bridge/internal/nvr"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
	"github.com/technosupport/hikvision-bridge/internal/tokens"
)

const cameraSerial = "DS-2CD2386G2-ISU/SL20210101AAWRJ00000001"

var jpeg = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

// fakeCamera is a single-channel IPC speaking just enough ISAPI for the builder
// and the actions used below.
type fakeCamera struct {
	reboots  atomic.Int32
	pictures atomic.Int32
}

func (f *fakeCamera) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/ISAPI/")
	switch {
	case r.Method == http.MethodPut && path == "System/reboot":
		f.reboots.Add(1)
		w.Write([]byte(`<ResponseStatus><statusCode>1</statusCode><statusString>OK</statusString></ResponseStatus>`))
		return
	case r.Method == http.MethodGet && path == "Streaming/channels/101/picture":
		f.pictures.Add(1)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpeg)
		return
	case r.Method != http.MethodGet:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	docs := map[string]string{
		"System/deviceInfo": `<DeviceInfo version="2.0">
	<deviceName>Front Door</deviceName>
	<model>DS-2CD2386G2-ISU/SL</model>
	<serialNumber>` + cameraSerial + `</serialNumber>
	<firmwareVersion>V5.7.3</firmwareVersion>
	<deviceType>IPCamera</deviceType>
</DeviceInfo>`,
		"System/capabilities": `<DeviceCap>
	<SysCap><VideoCap><videoInputPortNums>1</videoInputPortNums></VideoCap></SysCap>
	<isSupportPTZ>false</isSupportPTZ>
</DeviceCap>`,
		"Event/triggers": `<EventTriggerList>
	<EventTrigger><id>VMD-1</id><eventType>VMD</eventType><videoInputChannelID>1</videoInputChannelID>
		<EventTriggerNotificationList><EventTriggerNotification><notificationMethod>center</notificationMethod></EventTriggerNotification></EventTriggerNotificationList>
	</EventTrigger>
</EventTriggerList>`,
		"Streaming/channels": `<StreamingChannelList>
	<StreamingChannel><id>101</id><channelName>Front Door</channelName><enabled>true</enabled></StreamingChannel>
</StreamingChannelList>`,
		"System/Video/inputs/channels": `<VideoInputChannelList>
	<VideoInputChannel><id>1</id><inputPort>1</inputPort><name>Camera 01</name></VideoInputChannel>
</VideoInputChannelList>`,
	}
	body, ok := docs[path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(body))
}

type testBridge struct {
	router  http.Handler
	camera  *fakeCamera
	store   *nvr.EntityStore
	hub     *nvr.Hub
	tokens  *tokens.Manager
	control string
	read    string
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()
	cam := &fakeCamera{}
	srv := httptest.NewServer(cam)
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	cred := adapters.Credential{Username: "admin", Password: "secret", AuthType: "basic"}
	client := hikvision.NewClient(adapters.Target{Host: u.Hostname(), Port: port}, cred, hikvision.Options{})

	dev, err := nvr.NewBuilder(client, cred).Build(context.Background())
	require.NoError(t, err)

	store := nvr.NewEntityStore()
	nvr.RegisterEntities(dev, store)

	hub := nvr.NewHub()
	dispatcher := nvr.NewDispatcher(dev, store, hub, time.Hour)
	t.Cleanup(dispatcher.Close)

	svc := nvr.NewService(client, dev, store, nvr.NewSnapshotCache(8, time.Minute))
	mgr := tokens.NewManager("test-key")
	control, _ := mgr.GenerateToken("ops-1", tokens.ScopeControl, time.Hour)
	read, _ := mgr.GenerateToken("viewer", tokens.ScopeRead, time.Hour)

	router := api.NewRouter(api.RouterConfig{
		Service:    svc,
		Dispatcher: dispatcher,
		Hub:        hub,
		Auth:       middleware.NewJWTAuth(mgr, nil),
	})
	return &testBridge{router: router, camera: cam, store: store, hub: hub, tokens: mgr, control: control, read: read}
}

func (b *testBridge) do(method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	b.router.ServeHTTP(w, req)
	return w
}

func motionAlert(state string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<EventNotificationAlert version="2.0" xmlns="http://www.hikvision.com/ver20/XMLSchema">
<ipAddress>1.0.0.10</ipAddress>
<channelID>1</channelID>
<dateTime>2024-01-15T10:00:00+00:00</dateTime>
<eventType>VMD</eventType>
<eventState>` + state + `</eventState>
</EventNotificationAlert>`
}

func TestHealthz(t *testing.T) {
	b := newTestBridge(t)
	w := b.do("GET", "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAPIRequiresToken(t *testing.T) {
	b := newTestBridge(t)

	assert.Equal(t, http.StatusUnauthorized, b.do("GET", "/api/v1/device", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, b.do("GET", "/api/v1/device", "garbage", "").Code)
	assert.Equal(t, http.StatusOK, b.do("GET", "/api/v1/device", b.read, "").Code)
}

func TestGetDevice(t *testing.T) {
	b := newTestBridge(t)
	w := b.do("GET", "/api/v1/device", b.read, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Info struct {
			SerialNo string `json:"serial_no"`
		} `json:"info"`
		Cameras int `json:"cameras"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, cameraSerial, body.Info.SerialNo)
	assert.Equal(t, 1, body.Cameras)
}

func TestListCamerasMasksCredentials(t *testing.T) {
	b := newTestBridge(t)
	w := b.do("GET", "/api/v1/cameras", b.read, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")

	var cams []nvr.Camera
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cams))
	require.Len(t, cams, 1)
	assert.Equal(t, "Front Door", cams[0].Name)
}

func TestWebhookTurnsEntityOn(t *testing.T) {
	b := newTestBridge(t)
	id := nvr.UniqueID(cameraSerial, 1, hikvision.EventMotion, "")

	w := b.do("POST", api.DefaultAlarmServerPath, "", motionAlert("active"))
	require.Equal(t, http.StatusOK, w.Code)

	var out nvr.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "dispatched", out.Result)
	assert.True(t, b.store.IsOn(id))

	w = b.do("GET", "/api/v1/entities?kind=binary_sensor", b.read, "")
	require.Equal(t, http.StatusOK, w.Code)
	var entities []nvr.Entity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entities))
	require.NotEmpty(t, entities)
	for _, e := range entities {
		assert.Equal(t, nvr.KindBinarySensor, e.Kind)
	}
}

func TestWebhookRejectsGarbage(t *testing.T) {
	b := newTestBridge(t)
	w := b.do("POST", api.DefaultAlarmServerPath, "", "not an alert")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	b := newTestBridge(t)
	big := strings.Repeat("a", adapters.MaxNotificationSize+1)
	w := b.do("POST", api.DefaultAlarmServerPath, "", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSnapshotCached(t *testing.T) {
	b := newTestBridge(t)

	for i := 0; i < 2; i++ {
		w := b.do("GET", "/api/v1/cameras/1/snapshot", b.read, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
		assert.Equal(t, jpeg, w.Body.Bytes())
	}
	assert.Equal(t, int32(1), b.camera.pictures.Load())

	assert.Equal(t, http.StatusBadRequest, b.do("GET", "/api/v1/cameras/x/snapshot", b.read, "").Code)
}

func TestSnapshotUnknownCamera(t *testing.T) {
	b := newTestBridge(t)
	w := b.do("GET", "/api/v1/cameras/9/snapshot", b.read, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Camera 9 not found")
}

func TestActionsNeedControlScope(t *testing.T) {
	b := newTestBridge(t)

	assert.Equal(t, http.StatusForbidden, b.do("POST", "/api/v1/actions/reboot", b.read, "").Code)
	assert.Equal(t, int32(0), b.camera.reboots.Load())

	w := b.do("POST", "/api/v1/actions/reboot", b.control, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), b.camera.reboots.Load())
}

func TestActionErrors(t *testing.T) {
	b := newTestBridge(t)

	assert.Equal(t, http.StatusNotFound, b.do("POST", "/api/v1/actions/self_destruct", b.control, "{}").Code)
	assert.Equal(t, http.StatusBadRequest, b.do("POST", "/api/v1/actions/reboot", b.control, "{").Code)

	w := b.do("POST", "/api/v1/actions/ptz_move", b.control, `{"channel_id": 1, "pan": 10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Camera 1 does not support PTZ")
}

func TestSelectUnknownEntity(t *testing.T) {
	b := newTestBridge(t)
	w := b.do("POST", "/api/v1/entities/nope/select", b.control, `{"option": "1: Gate"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordingsValidation(t *testing.T) {
	b := newTestBridge(t)

	assert.Equal(t, http.StatusBadRequest, b.do("GET", "/api/v1/recordings?channel=0", b.read, "").Code)
	assert.Equal(t, http.StatusBadRequest, b.do("GET", "/api/v1/recordings?start=yesterday", b.read, "").Code)
	assert.Equal(t, http.StatusBadRequest,
		b.do("GET", "/api/v1/recordings?start=2024-01-02T00:00:00Z&end=2024-01-01T00:00:00Z", b.read, "").Code)

	// The fake camera 404s the search, which reads as no matches.
	w := b.do("GET", "/api/v1/recordings?channel=1", b.read, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestEventStream(t *testing.T) {
	b := newTestBridge(t)
	srv := httptest.NewServer(b.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws?token=" + b.read
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+api.DefaultAlarmServerPath, "application/xml", strings.NewReader(motionAlert("active")))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event nvr.DomainEvent
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, nvr.EventTypeAlert, event.Type)
	assert.Equal(t, cameraSerial, event.DeviceSerial)
	assert.Equal(t, hikvision.EventMotion, event.Data["event_id"])
}

func TestEventStreamRejectsMissingToken(t *testing.T) {
	b := newTestBridge(t)
	srv := httptest.NewServer(b.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
