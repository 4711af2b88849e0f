package api

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/technosupport/hikvision-bridge/internal/nvr"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
)

// NotificationHandler receives alarm-server posts from the device.
type NotificationHandler struct {
	Dispatcher *nvr.Dispatcher
}

func NewNotificationHandler(d *nvr.Dispatcher) *NotificationHandler {
	return &NotificationHandler{Dispatcher: d}
}

// POST {alarm_server_path}
func (h *NotificationHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, adapters.MaxNotificationSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "notification too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	out, err := h.Dispatcher.Handle(r.Context(), r.Header.Get("Content-Type"), body, r.RemoteAddr)
	if err != nil {
		log.Printf("[NOTIFY] rejected notification from %s: %v", r.RemoteAddr, err)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, out)
}
