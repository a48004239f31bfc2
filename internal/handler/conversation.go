package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/schoolchat/internal/logger"
	"github.com/schoolchat/internal/middleware"
	"github.com/schoolchat/internal/model"
	"github.com/schoolchat/internal/repository"
	"github.com/schoolchat/internal/unread"
	"github.com/schoolchat/internal/ws"
)

type ConversationHandler struct {
	convRepo *repository.ConversationRepository
	userRepo *repository.UserRepository
	hub      *ws.Hub
}

func NewConversationHandler(convRepo *repository.ConversationRepository, userRepo *repository.UserRepository, hub *ws.Hub) *ConversationHandler {
	return &ConversationHandler{convRepo: convRepo, userRepo: userRepo, hub: hub}
}

type conversationListResponse struct {
	Conversations []model.Conversation `json:"conversations"`
	TotalUnread   int                  `json:"total_unread"`
}

// List returns the caller's conversations with unread counts and the
// aggregate badge total.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	convs, err := h.convRepo.ForUser(r.Context(), userID)
	if err != nil {
		logger.Errorf("conversations list user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, conversationListResponse{
		Conversations: convs,
		TotalUnread:   unread.Total(convs),
	})
}

type createDirectRequest struct {
	UserID string `json:"user_id"`
}

type createGroupRequest struct {
	Name      string          `json:"name"`
	GroupType model.GroupType `json:"group_type"`
	MemberIDs []string        `json:"member_ids"`
}

func (h *ConversationHandler) CreateDirect(w http.ResponseWriter, r *http.Request) {
	var req createDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	currentUserID := middleware.GetUserID(r.Context())
	if req.UserID == currentUserID {
		writeError(w, http.StatusBadRequest, "cannot create a conversation with yourself")
		return
	}

	if existing, err := h.convRepo.FindDirect(r.Context(), currentUserID, req.UserID); err == nil {
		writeJSON(w, http.StatusOK, existing)
		return
	}

	if _, err := h.userRepo.GetByID(r.Context(), req.UserID); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		CreatedBy: currentUserID,
		CreatedAt: &now,
	}
	if err := h.convRepo.Create(r.Context(), conv); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	for _, uid := range []string{currentUserID, req.UserID} {
		member := &model.ConversationMember{
			ConversationID: conv.ID,
			UserID:         uid,
			Role:           "member",
			JoinedAt:       now,
		}
		if err := h.convRepo.AddMember(r.Context(), member); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to add member")
			return
		}
	}

	h.hub.BroadcastToConversation(r.Context(), conv.ID, ws.OutgoingEvent{
		Type:    ws.EventConversationCreated,
		Payload: conv,
	})
	writeJSON(w, http.StatusCreated, conv)
}

func (h *ConversationHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	currentUserID := middleware.GetUserID(r.Context())
	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		Name:      req.Name,
		IsGroup:   true,
		GroupType: req.GroupType,
		CreatedBy: currentUserID,
		CreatedAt: &now,
	}
	if err := h.convRepo.Create(r.Context(), conv); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	admin := &model.ConversationMember{
		ConversationID: conv.ID,
		UserID:         currentUserID,
		Role:           "admin",
		JoinedAt:       now,
	}
	if err := h.convRepo.AddMember(r.Context(), admin); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add admin member")
		return
	}
	for _, uid := range req.MemberIDs {
		if uid == currentUserID {
			continue
		}
		member := &model.ConversationMember{
			ConversationID: conv.ID,
			UserID:         uid,
			Role:           "member",
			JoinedAt:       now,
		}
		if err := h.convRepo.AddMember(r.Context(), member); err != nil {
			logger.Errorf("group add member conv=%s user=%s: %v", conv.ID, uid, err)
		}
	}

	h.hub.BroadcastToConversation(r.Context(), conv.ID, ws.OutgoingEvent{
		Type:    ws.EventConversationCreated,
		Payload: conv,
	})
	writeJSON(w, http.StatusCreated, conv)
}

type participant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Resolved bool   `json:"resolved"`
}

type conversationDetailsResponse struct {
	Conversation model.Conversation `json:"conversation"`
	Participants []participant      `json:"participants"`
}

// Get returns one conversation with resolved participants. Missing user rows
// degrade to raw IDs instead of failing the screen.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	conv, err := h.convRepo.GetByID(r.Context(), convID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get conversation")
		return
	}

	memberIDs, err := h.convRepo.MemberIDs(r.Context(), convID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get members")
		return
	}
	conv.ParticipantIDs = memberIDs

	resolved := map[string]model.User{}
	users, err := h.userRepo.ListByIDs(r.Context(), memberIDs)
	if err != nil {
		logger.Errorf("conversation participants conv=%s: %v", convID, err)
	} else {
		for _, u := range users {
			resolved[u.ID] = u
		}
	}

	participants := make([]participant, 0, len(memberIDs))
	for _, id := range memberIDs {
		if u, ok := resolved[id]; ok {
			participants = append(participants, participant{ID: id, Name: u.FullName, Role: u.Role, Resolved: true})
		} else {
			participants = append(participants, participant{ID: id, Name: id})
		}
	}

	writeJSON(w, http.StatusOK, conversationDetailsResponse{
		Conversation: *conv,
		Participants: participants,
	})
}
