package handler

import (
	"encoding/json"
	"net/http"

	"github.com/schoolchat/internal/middleware"
	"github.com/schoolchat/internal/push"
)

// PushHandler proxies browser subscription management to the push service.
type PushHandler struct {
	client *push.Client
}

func NewPushHandler(client *push.Client) *PushHandler {
	return &PushHandler{client: client}
}

// Subscribe registers the caller's browser push subscription.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if !h.client.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "push service not configured")
		return
	}
	userID := middleware.GetUserID(r.Context())

	var sub push.PushSubscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if sub.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	if err := h.client.Subscribe(r.Context(), userID, sub); err != nil {
		writeError(w, http.StatusBadGateway, "push service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
}

// Unsubscribe removes the caller's subscription by endpoint.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if !h.client.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "push service not configured")
		return
	}
	userID := middleware.GetUserID(r.Context())

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.client.Unsubscribe(r.Context(), userID, req.Endpoint); err != nil {
		writeError(w, http.StatusBadGateway, "push service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}
