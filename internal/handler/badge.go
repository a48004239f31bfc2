package handler

import (
	"net/http"

	"github.com/schoolchat/internal/logger"
	"github.com/schoolchat/internal/middleware"
	"github.com/schoolchat/internal/repository"
	"github.com/schoolchat/internal/storage"
)

// BadgeHandler serves the aggregate unread count for the navigation badge.
// Connected clients get live totals over the ws hub; this is the cold path
// for app start, backed by the store cache.
type BadgeHandler struct {
	convRepo *repository.ConversationRepository
	store    storage.SessionBadgeStore
}

func NewBadgeHandler(convRepo *repository.ConversationRepository, store storage.SessionBadgeStore) *BadgeHandler {
	return &BadgeHandler{convRepo: convRepo, store: store}
}

type badgeResponse struct {
	Total int `json:"total"`
}

func (h *BadgeHandler) GetUnread(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if total, ok, err := h.store.GetBadge(r.Context(), userID); err == nil && ok {
		writeJSON(w, http.StatusOK, badgeResponse{Total: total})
		return
	}

	total, err := h.convRepo.TotalUnread(r.Context(), userID)
	if err != nil {
		logger.Errorf("badge user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to get unread count")
		return
	}
	if err := h.store.SetBadge(r.Context(), userID, total); err != nil {
		logger.Errorf("badge cache user=%s: %v", userID, err)
	}
	writeJSON(w, http.StatusOK, badgeResponse{Total: total})
}
