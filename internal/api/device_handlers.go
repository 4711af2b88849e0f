package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/hikvision-bridge/internal/middleware"
	"github.com/technosupport/hikvision-bridge/internal/nvr"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
)

const defaultRecordingWindow = 24 * time.Hour

type DeviceHandler struct {
	Service *nvr.Service
}

func NewDeviceHandler(svc *nvr.Service) *DeviceHandler {
	return &DeviceHandler{Service: svc}
}

type deviceView struct {
	Info         adapters.DeviceInfo     `json:"info"`
	Capabilities *nvr.DeviceCapabilities `json:"capabilities"`
	RTSPPort     int                     `json:"rtsp_port"`
	Cameras      int                     `json:"cameras"`
	AlarmServer  *hikvision.AlarmServer  `json:"alarm_server,omitempty"`
	Storage      []hikvision.StorageInfo `json:"storage"`
	Events       []nvr.EventDescriptor   `json:"events"`
}

// GET /api/v1/device
func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	dev := h.Service.Device()
	respondJSON(w, http.StatusOK, deviceView{
		Info:         dev.Info,
		Capabilities: dev.Capabilities,
		RTSPPort:     dev.RTSPPort,
		Cameras:      len(dev.Cameras),
		AlarmServer:  dev.AlarmServer(),
		Storage:      dev.Storage(),
		Events:       dev.Events,
	})
}

// GET /api/v1/cameras
func (h *DeviceHandler) ListCameras(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Service.Device().Cameras)
}

// GET /api/v1/cameras/{id}/snapshot
func (h *DeviceHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	channel, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || channel <= 0 {
		respondError(w, http.StatusBadRequest, "invalid camera id")
		return
	}

	snap, err := h.Service.Snapshot(r.Context(), channel)
	if err != nil {
		writeActionError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Last-Modified", snap.CapturedAt.UTC().Format(http.TimeFormat))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(snap.Image)
}

// GET /api/v1/entities
func (h *DeviceHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	entities := h.Service.Store().List()
	if kind := r.URL.Query().Get("kind"); kind != "" {
		filtered := entities[:0]
		for _, e := range entities {
			if string(e.Kind) == kind {
				filtered = append(filtered, e)
			}
		}
		entities = filtered
	}
	respondJSON(w, http.StatusOK, entities)
}

// GET /api/v1/recordings?channel=1&start=...&end=...&event_type=...
func (h *DeviceHandler) SearchRecordings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	channel := 1
	if v := q.Get("channel"); v != "" {
		c, err := strconv.Atoi(v)
		if err != nil || c <= 0 {
			respondError(w, http.StatusBadRequest, "invalid channel")
			return
		}
		channel = c
	}

	end := time.Now().UTC()
	if v := q.Get("end"); v != "" {
		if end = adapters.ParseVendorTime(v); end.IsZero() {
			respondError(w, http.StatusBadRequest, "invalid end time")
			return
		}
	}
	start := end.Add(-defaultRecordingWindow)
	if v := q.Get("start"); v != "" {
		if start = adapters.ParseVendorTime(v); start.IsZero() {
			respondError(w, http.StatusBadRequest, "invalid start time")
			return
		}
	}
	if !start.Before(end) {
		respondError(w, http.StatusBadRequest, "start must be before end")
		return
	}

	results, err := h.Service.SearchRecordings(r.Context(), hikvision.RecordingQuery{
		ChannelID:  channel,
		Start:      start,
		End:        end,
		EventType:  q.Get("event_type"),
		MaxResults: adapters.MaxSearchResults,
	})
	if err != nil {
		writeActionError(w, err)
		return
	}
	if results == nil {
		results = []hikvision.RecordingSearchResult{}
	}
	respondJSON(w, http.StatusOK, results)
}

// POST /api/v1/actions/{action}
func (h *DeviceHandler) RunAction(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")

	var params nvr.ActionParams
	if err := decodeOptionalJSON(r, &params); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	operator := "unknown"
	if ac, ok := middleware.GetAuthContext(r.Context()); ok {
		operator = ac.Operator
	}
	log.Printf("[INFO] action %s requested by %s", action, operator)

	result, err := h.Service.Run(r.Context(), action, params)
	if err != nil {
		writeActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"action": action, "result": result})
}

// POST /api/v1/entities/{id}/select
func (h *DeviceHandler) SelectOption(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Option string `json:"option"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Option == "" {
		respondError(w, http.StatusBadRequest, "option is required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Service.SelectOption(r.Context(), id, req.Option); err != nil {
		writeActionError(w, err)
		return
	}
	e, _ := h.Service.Store().Get(id)
	respondJSON(w, http.StatusOK, e)
}

// decodeOptionalJSON treats an empty body as an empty object.
func decodeOptionalJSON(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeActionError(w http.ResponseWriter, err error) {
	var ae *nvr.ActionError
	switch {
	case errors.Is(err, nvr.ErrUnknownAction), errors.Is(err, nvr.ErrUnknownEntity):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ae):
		respondError(w, http.StatusBadRequest, ae.Message)
	default:
		log.Printf("[ERROR] action failed: %v", err)
		respondError(w, http.StatusBadGateway, fmt.Sprintf("device request failed: %v", err))
	}
}
