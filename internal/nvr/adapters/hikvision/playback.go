package hikvision

import (
	"context"
	"encoding/xml"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
)

type RecordingSearchResult struct {
	ChannelID   int    `json:"channel_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	SourceID    string `json:"source_id"`
	TrackID     string `json:"track_id"`
	PlaybackURI string `json:"playback_uri"`
	EventType   string `json:"event_type,omitempty"`
	ContentType string `json:"content_type"`
}

type PlaybackSession struct {
	SessionID   string `json:"session_id"`
	PlaybackURI string `json:"playback_uri"`
	ChannelID   int    `json:"channel_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// RecordingQuery selects recordings on one channel. EventType "" matches all
// recordings; otherwise it is the ISAPI record type (VMD, linedetection, ...).
type RecordingQuery struct {
	ChannelID  int
	Start      time.Time
	End        time.Time
	EventType  string
	StreamType int
	MaxResults int
	Position   int
}

const recordTypeMeta = "//recordType.meta.std-cgi.com"

type cmSearchDescription struct {
	XMLName             xml.Name `xml:"CMSearchDescription"`
	SearchID            string   `xml:"searchID"`
	TrackIDList         []int    `xml:"trackList>trackID"`
	StartTime           string   `xml:"timeSpanList>timeSpan>startTime"`
	EndTime             string   `xml:"timeSpanList>timeSpan>endTime"`
	MaxResults          int      `xml:"maxResults"`
	SearchResultPostion int      `xml:"searchResultPostion"`
	MetadataDescriptor  string   `xml:"metadataList>metadataDescriptor"`
}

type trackDailyParam struct {
	XMLName     xml.Name `xml:"trackDailyParam"`
	TrackID     int      `xml:"trackID"`
	Year        int      `xml:"year"`
	MonthOfYear int      `xml:"monthOfYear"`
}

// SearchRecordings posts a CMSearchDescription and returns the matches in
// device order. 404 and unparseable replies read as no matches.
func (c *Client) SearchRecordings(ctx context.Context, q RecordingQuery) ([]RecordingSearchResult, error) {
	if q.StreamType <= 0 {
		q.StreamType = 1
	}
	q.MaxResults = adapters.ConstrainLimits(q.MaxResults, adapters.MaxSearchResults)

	meta := recordTypeMeta
	if q.EventType != "" {
		meta += "/" + q.EventType
	}
	desc := cmSearchDescription{
		SearchID:            uuid.NewString(),
		TrackIDList:         []int{adapters.StreamID(q.ChannelID, q.StreamType)},
		StartTime:           adapters.ISOUTC(q.Start),
		EndTime:             adapters.ISOUTC(q.End),
		MaxResults:          q.MaxResults,
		SearchResultPostion: q.Position,
		MetadataDescriptor:  meta,
	}
	body, err := xml.Marshal(desc)
	if err != nil {
		return nil, err
	}

	root, err := c.postXML(ctx, "ContentMgmt/search", append([]byte(xml.Header), body...))
	if err != nil {
		if IsNotFound(err) || isParse(err) {
			return []RecordingSearchResult{}, nil
		}
		return nil, err
	}

	items := root.Get("CMSearchResult", "matchList", "searchMatchItem").List()
	out := make([]RecordingSearchResult, 0, len(items))
	for _, item := range items {
		out = append(out, c.recordingFromMatch(item, q.EventType))
	}
	return out, nil
}

func (c *Client) recordingFromMatch(item *Node, eventType string) RecordingSearchResult {
	track := item.Get("trackID").Text()
	trackNo, _ := strconv.Atoi(track)
	start := item.Get("timeSpan", "startTime").Text()
	end := item.Get("timeSpan", "endTime").Text()

	r := RecordingSearchResult{
		ChannelID:   trackNo / 100,
		StartTime:   start,
		EndTime:     end,
		SourceID:    item.Get("sourceID").Text(),
		TrackID:     track,
		EventType:   eventType,
		ContentType: item.Get("mediaSegmentDescriptor", "contentType").Text(),
	}
	if r.ContentType == "" {
		r.ContentType = "video"
	}
	// matches carry their record type as //recordType.meta.std-cgi.com/<type>
	if m := item.Get("metadataMatches", "metadataDescriptor").Text(); strings.HasPrefix(strings.TrimLeft(m, "/"), "recordType.meta.std-cgi.com/") {
		r.EventType = m[strings.LastIndex(m, "/")+1:]
	}
	streamType := trackNo % 100
	r.PlaybackURI = adapters.PlaybackURL(c.Target.Host, c.rtspPort(), c.cred, r.ChannelID, streamType,
		adapters.ParseVendorTime(start), adapters.ParseVendorTime(end))
	return r
}

// GetRecordingCalendar returns the days of month that hold at least one recording.
func (c *Client) GetRecordingCalendar(ctx context.Context, channel, year, month int) ([]int, error) {
	// normalise out-of-range months through date arithmetic
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	param := trackDailyParam{
		TrackID:     adapters.StreamID(channel, 1),
		Year:        first.Year(),
		MonthOfYear: int(first.Month()),
	}
	body, err := xml.Marshal(param)
	if err != nil {
		return nil, err
	}

	root, err := c.postXML(ctx, "ContentMgmt/record/tracks/daily", append([]byte(xml.Header), body...))
	if err != nil {
		if IsNotFound(err) || isParse(err) {
			return []int{}, nil
		}
		return nil, err
	}

	days := []int{}
	for _, d := range root.Find("dayList").Get("day").List() {
		if !d.Get("record").Bool() {
			continue
		}
		if n := d.Get("dayOfMonth").Int(); n >= 1 && n <= 31 {
			days = append(days, n)
		}
	}
	sort.Ints(days)
	return days, nil
}

// GetPlaybackURL builds the RTSP playback URL for a time range.
func (c *Client) GetPlaybackURL(channel int, start, end time.Time, streamType int) string {
	return adapters.PlaybackURL(c.Target.Host, c.rtspPort(), c.cred, channel, streamType, start, end)
}

// StartPlayback creates a playback session. No request is sent: the session is
// the URL the player opens.
func (c *Client) StartPlayback(channel int, start, end time.Time, streamType int) PlaybackSession {
	return PlaybackSession{
		SessionID:   uuid.NewString(),
		PlaybackURI: c.GetPlaybackURL(channel, start, end, streamType),
		ChannelID:   channel,
		StartTime:   adapters.ISOUTC(start),
		EndTime:     adapters.ISOUTC(end),
	}
}

func (c *Client) rtspPort() int {
	if c.Target.RTSPPort > 0 {
		return c.Target.RTSPPort
	}
	return adapters.DefaultRTSPPort
}
