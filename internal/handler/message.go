package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/schoolchat/internal/highlight"
	"github.com/schoolchat/internal/logger"
	"github.com/schoolchat/internal/middleware"
	"github.com/schoolchat/internal/model"
	"github.com/schoolchat/internal/repository"
	"github.com/schoolchat/internal/ws"
)

type MessageHandler struct {
	msgRepo  *repository.MessageRepository
	convRepo *repository.ConversationRepository
	hub      *ws.Hub
	pageSize int
}

func NewMessageHandler(msgRepo *repository.MessageRepository, convRepo *repository.ConversationRepository, hub *ws.Hub, pageSize int) *MessageHandler {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &MessageHandler{msgRepo: msgRepo, convRepo: convRepo, hub: hub, pageSize: pageSize}
}

type messagePageResponse struct {
	Messages []model.Message `json:"messages"`
	HasMore  bool            `json:"has_more"`
}

// GetMessages returns one page of messages older than the before cursor,
// newest first, plus whether more remain.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	convID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	isMember, err := h.convRepo.IsMember(r.Context(), convID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	limit := queryInt(r, "limit", h.pageSize)
	if limit > 100 {
		limit = 100
	}
	var before time.Time
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before cursor")
			return
		}
		before = t
	}

	messages, hasMore, err := h.msgRepo.PageBefore(r.Context(), convID, before, limit)
	if err != nil {
		logger.Errorf("messages page conv=%s: %v", convID, err)
		writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}
	for i := range messages {
		messages[i].Mine = messages[i].SenderID == userID
	}

	writeJSON(w, http.StatusOK, messagePageResponse{Messages: messages, HasMore: hasMore})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// Send persists a message and fans it out to members via the hub.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	convID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	isMember, err := h.convRepo.IsMember(r.Context(), convID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: convID,
		SenderID:       userID,
		Content:        content,
		Status:         model.MessageStatusSent,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.msgRepo.Create(r.Context(), m); err != nil {
		logger.Errorf("send message conv=%s user=%s: %v", convID, userID, err)
		writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}
	if saved, err := h.msgRepo.GetByID(r.Context(), m.ID); err == nil {
		m = saved
	}

	memberIDs, err := h.convRepo.MemberIDs(r.Context(), convID)
	if err == nil {
		h.hub.FanOutMessage(r.Context(), *m, memberIDs)
	} else {
		logger.Errorf("send message members conv=%s: %v", convID, err)
	}

	m.Mine = true
	writeJSON(w, http.StatusCreated, m)
}

// MarkRead marks the conversation read for the caller and moves the read
// marker, which zeroes its unread count.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	convID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	isMember, err := h.convRepo.IsMember(r.Context(), convID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	if err := h.msgRepo.MarkRead(r.Context(), convID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark as read")
		return
	}
	if err := h.convRepo.UpdateLastRead(r.Context(), convID, userID, time.Now().UTC()); err != nil {
		logger.Errorf("update last_read_at conv=%s user=%s: %v", convID, userID, err)
	}
	h.hub.MarkReadLocal(r.Context(), convID, userID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchResult struct {
	Message model.Message    `json:"message"`
	Spans   []highlight.Span `json:"spans"`
}

// Search finds messages across the caller's conversations and returns each
// hit with its highlight spans.
func (h *MessageHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusOK, []searchResult{})
		return
	}

	limit := queryInt(r, "limit", 30)
	if limit > 50 {
		limit = 50
	}
	convID := r.URL.Query().Get("conversation_id")

	messages, err := h.msgRepo.Search(r.Context(), userID, query, limit, convID)
	if err != nil {
		logger.Errorf("search user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	results := make([]searchResult, 0, len(messages))
	for _, m := range messages {
		m.Mine = m.SenderID == userID
		results = append(results, searchResult{
			Message: m,
			Spans:   highlight.Spans(m.Content, query),
		})
	}
	writeJSON(w, http.StatusOK, results)
}
