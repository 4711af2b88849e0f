package hikvision

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseXMLSingleItemCollapse(t *testing.T) {
	z := DefaultNormalizer()

	single := []byte(`<PTZPresetList><PTZPreset><id>1</id><presetName>Home</presetName></PTZPreset></PTZPresetList>`)
	multi := []byte(`<PTZPresetList><PTZPreset><id>1</id></PTZPreset><PTZPreset><id>2</id></PTZPreset></PTZPresetList>`)

	one, err := z.ParseXML(single)
	require.NoError(t, err)
	many, err := z.ParseXML(multi)
	require.NoError(t, err)

	oneList := one.Get("PTZPresetList", "PTZPreset")
	manyList := many.Get("PTZPresetList", "PTZPreset")
	assert.Equal(t, KindList, oneList.Kind)
	assert.Equal(t, KindList, manyList.Kind)
	assert.Len(t, oneList.List(), 1)
	assert.Len(t, manyList.List(), 2)
	assert.Equal(t, "Home", oneList.List()[0].Get("presetName").Text())
}

func TestParseXMLRepeatedUnknownElementBecomesList(t *testing.T) {
	z := NewNormalizer()
	root, err := z.ParseXML([]byte(`<a><b>1</b><b>2</b><b>3</b><c>x</c></a>`))
	require.NoError(t, err)

	assert.Len(t, root.Get("a", "b").List(), 3)
	assert.Equal(t, KindScalar, root.Get("a", "c").Kind)
	// a bare node still iterates as one item
	assert.Len(t, root.Get("a", "c").List(), 1)
	assert.Nil(t, root.Get("a", "missing").List())
}

func TestParseXMLDropsNamespacesAndAttributes(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<EventNotificationAlert version="2.0" xmlns="http://www.isapi.org/ver20/XMLSchema">
	<channelID>3</channelID>
	<eventType>VMD</eventType>
	<isapi:extra xmlns:isapi="urn:x" flag="1">yes</isapi:extra>
</EventNotificationAlert>`)

	root, err := DefaultNormalizer().ParseXML(body)
	require.NoError(t, err)

	assert.Equal(t, []string{"EventNotificationAlert"}, root.Keys())
	alert := root.Get("EventNotificationAlert")
	assert.Equal(t, 3, alert.Get("channelID").Int())
	assert.Equal(t, "yes", alert.Get("extra").Text())
	assert.Equal(t, []string{"channelID", "eventType", "extra"}, alert.Keys())
}

func TestParseJSONKeepsOrderAndNumbers(t *testing.T) {
	root, err := DefaultNormalizer().ParseJSON([]byte(`{"AudioAlarm":{"audioID":1,"audioVolume":"50","enabled":true,"nothing":null}}`))
	require.NoError(t, err)

	alarm := root.Get("AudioAlarm")
	assert.Equal(t, []string{"audioID", "audioVolume", "enabled", "nothing"}, alarm.Keys())
	assert.Equal(t, 1, alarm.Get("audioID").Int())
	assert.Equal(t, 50, alarm.Get("audioVolume").Int())
	assert.True(t, alarm.Get("enabled").Bool())
	assert.Equal(t, "", alarm.Get("nothing").Text())
}

func TestParseJSONWrapsRepeatableObject(t *testing.T) {
	root, err := DefaultNormalizer().ParseJSON([]byte(`{"TwoWayAudioChannelList":{"TwoWayAudioChannel":{"id":"1","enabled":"true"}}}`))
	require.NoError(t, err)

	channels := root.Get("TwoWayAudioChannelList", "TwoWayAudioChannel")
	assert.Equal(t, KindList, channels.Kind)
	assert.Len(t, channels.List(), 1)
}

func TestParseMalformed(t *testing.T) {
	z := DefaultNormalizer()
	cases := map[string]struct {
		body   string
		format Format
	}{
		"empty xml":     {"", FormatXML},
		"blank xml":     {"   \n", FormatXML},
		"unclosed xml":  {"<a><b>1</b>", FormatXML},
		"not xml":       {"Device Busy", FormatXML},
		"broken json":   {`{"a":`, FormatJSON},
		"empty json":    {"", FormatJSON},
		"mismatched el": {"<a></b>", FormatXML},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := z.Parse([]byte(tc.body), tc.format)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe), "expected ParseError, got %v", err)
		})
	}
}

func TestNodeAccessorsAreNilSafe(t *testing.T) {
	var n *Node
	assert.Nil(t, n.Get("a", "b"))
	assert.Equal(t, "", n.Text())
	assert.Equal(t, 0, n.Int())
	assert.False(t, n.Bool())
	assert.Nil(t, n.Find("x"))
	assert.Nil(t, n.List())
	assert.Nil(t, n.Interface())
}

func TestNodeGetEntersListsAndFind(t *testing.T) {
	root, err := DefaultNormalizer().ParseXML([]byte(`<StreamingChannelList>
	<StreamingChannel><id>101</id><Video><videoCodecType>H.265</videoCodecType></Video></StreamingChannel>
	<StreamingChannel><id>102</id><Video><videoCodecType>H.264</videoCodecType></Video></StreamingChannel>
</StreamingChannelList>`))
	require.NoError(t, err)

	// a list met mid-path resolves through its first item
	assert.Equal(t, "H.265", root.Get("StreamingChannelList", "StreamingChannel", "Video", "videoCodecType").Text())
	assert.Equal(t, "H.265", root.Find("videoCodecType").Text())
	assert.Equal(t, 101, root.Find("id").Int())
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, DetectFormat("application/json; charset=utf-8", nil))
	assert.Equal(t, FormatXML, DetectFormat(`application/xml; charset="UTF-8"`, []byte(`{}`)))
	assert.Equal(t, FormatJSON, DetectFormat("", []byte("  {\"a\":1}")))
	assert.Equal(t, FormatXML, DetectFormat("text/plain", []byte("<a/>")))
}

func TestNodeInterface(t *testing.T) {
	root, err := DefaultNormalizer().ParseXML([]byte(`<hddList><hdd><id>1</id></hdd></hddList>`))
	require.NoError(t, err)

	want := map[string]any{"hddList": map[string]any{"hdd": []any{map[string]any{"id": "1"}}}}
	assert.Equal(t, want, root.Interface())
}
