package hikvision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nvrHTTPHosts = `<?xml version="1.0" encoding="UTF-8"?>
<HttpHostNotificationList version="2.0" xmlns="http://www.hikvision.com/ver20/XMLSchema">
	<HttpHostNotification>
		<id>1</id>
		<url>/api/hikvision</url>
		<protocolType>HTTP</protocolType>
		<parameterFormatType>XML</parameterFormatType>
		<addressingFormatType>ipaddress</addressingFormatType>
		<ipAddress>1.0.0.11</ipAddress>
		<portNo>8123</portNo>
		<httpAuthenticationMethod>none</httpAuthenticationMethod>
	</HttpHostNotification>
</HttpHostNotificationList>`

const ipcHTTPHosts = `<?xml version="1.0" encoding="UTF-8"?>
<HttpHostNotificationList version="2.0" xmlns="http://www.isapi.org/ver20/XMLSchema">
	<HttpHostNotification>
		<id>1</id>
		<url>/api/hikvision</url>
		<protocolType>HTTP</protocolType>
		<parameterFormatType>XML</parameterFormatType>
		<addressingFormatType>ipaddress</addressingFormatType>
		<ipAddress>1.0.0.11</ipAddress>
		<portNo>8123</portNo>
		<httpAuthenticationMethod>none</httpAuthenticationMethod>
	</HttpHostNotification>
	<HttpHostNotification>
		<id>2</id>
		<url>/</url>
		<protocolType>HTTP</protocolType>
		<parameterFormatType>XML</parameterFormatType>
		<addressingFormatType>ipaddress</addressingFormatType>
		<ipAddress>0.0.0.0</ipAddress>
		<portNo>80</portNo>
		<httpAuthenticationMethod>none</httpAuthenticationMethod>
	</HttpHostNotification>
</HttpHostNotificationList>`

const httpHostsPath = "Event/notification/httpHosts"

func TestGetAlarmServerShapesAgree(t *testing.T) {
	nvr := newTestClient(t, newFakeISAPI().on("GET", httpHostsPath, 200, nvrHTTPHosts))
	ipc := newTestClient(t, newFakeISAPI().on("GET", httpHostsPath, 200, ipcHTTPHosts))

	a, err := nvr.GetAlarmServer(context.Background())
	require.NoError(t, err)
	b, err := ipc.GetAlarmServer(context.Background())
	require.NoError(t, err)

	want := &AlarmServer{ProtocolType: "HTTP", Address: "1.0.0.11", PortNo: 8123, Path: "/api/hikvision"}
	assert.Equal(t, want, a)
	assert.Equal(t, a, b)
	assert.True(t, a.PointsAt("http://1.0.0.11:8123", "/api/hikvision"))
	assert.False(t, a.PointsAt("http://1.0.0.12:8123", "/api/hikvision"))
	assert.False(t, a.PointsAt("https://1.0.0.11:8123", "/api/hikvision"))
}

func TestGetAlarmServerEmpty(t *testing.T) {
	client := newTestClient(t, newFakeISAPI().on("GET", httpHostsPath, 200, `<HttpHostNotificationList version="2.0"></HttpHostNotificationList>`))
	server, err := client.GetAlarmServer(context.Background())
	require.NoError(t, err)
	assert.Nil(t, server)

	var none *AlarmServer
	assert.False(t, none.PointsAt("http://1.0.0.11:8123", "/api/hikvision"))
}

func TestAlarmServerPayload(t *testing.T) {
	body, err := AlarmServerPayload("1", "http://1.0.0.11:8123", "/api/hikvision")
	require.NoError(t, err)

	want := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<HttpHostNotificationList version="2.0" xmlns="http://www.isapi.org/ver20/XMLSchema">` +
		`<HttpHostNotification>` +
		`<id>1</id>` +
		`<url>/api/hikvision</url>` +
		`<protocolType>HTTP</protocolType>` +
		`<parameterFormatType>XML</parameterFormatType>` +
		`<addressingFormatType>ipaddress</addressingFormatType>` +
		`<ipAddress>1.0.0.11</ipAddress>` +
		`<portNo>8123</portNo>` +
		`<httpAuthenticationMethod>none</httpAuthenticationMethod>` +
		`</HttpHostNotification>` +
		`</HttpHostNotificationList>`
	assert.Equal(t, want, string(body))
}

func TestAlarmServerPayloadHostname(t *testing.T) {
	body, err := AlarmServerPayload("", "https://bridge.local", "/api/hikvision")
	require.NoError(t, err)

	s := string(body)
	assert.Contains(t, s, "<id>1</id>")
	assert.Contains(t, s, "<protocolType>HTTPS</protocolType>")
	assert.Contains(t, s, "<addressingFormatType>hostname</addressingFormatType><hostName>bridge.local</hostName><portNo>443</portNo>")
	assert.NotContains(t, s, "<ipAddress>")

	_, err = AlarmServerPayload("1", "not a url", "/x")
	assert.Error(t, err)
}

func TestSetAlarmServerKeepsHostID(t *testing.T) {
	dev := newFakeISAPI().
		on("GET", httpHostsPath, 200, `<HttpHostNotificationList><HttpHostNotification><id>3</id><url>/</url></HttpHostNotification></HttpHostNotificationList>`).
		on("PUT", httpHostsPath, 200, `<ResponseStatus><statusCode>1</statusCode><statusString>OK</statusString></ResponseStatus>`)
	client := newTestClient(t, dev)

	require.NoError(t, client.SetAlarmServer(context.Background(), "http://1.0.0.11:8123", "/api/hikvision"))

	want, _ := AlarmServerPayload("3", "http://1.0.0.11:8123", "/api/hikvision")
	assert.Equal(t, string(want), dev.body("PUT", httpHostsPath))
	assert.Equal(t, contentTypeXML, dev.contentType("PUT", httpHostsPath))
}
