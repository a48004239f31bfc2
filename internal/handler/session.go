package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/schoolchat/internal/logger"
	"github.com/schoolchat/internal/model"
	"github.com/schoolchat/internal/repository"
	"github.com/schoolchat/internal/storage"
)

// SessionHandler mints and revokes bearer sessions. Minting is called by the
// school information system after its own login flow, behind InternalOnly.
type SessionHandler struct {
	userRepo   *repository.UserRepository
	store      storage.SessionBadgeStore
	sessionTTL time.Duration
}

func NewSessionHandler(userRepo *repository.UserRepository, store storage.SessionBadgeStore, sessionTTL time.Duration) *SessionHandler {
	return &SessionHandler{userRepo: userRepo, store: store, sessionTTL: sessionTTL}
}

type mintSessionRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type mintSessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Mint creates a session token for a user, upserting the user row from the
// roster data so names resolve in conversation views.
func (h *SessionHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if _, err := h.userRepo.GetByID(r.Context(), req.UserID); err != nil {
		u := &model.User{
			ID:        req.UserID,
			Username:  req.Username,
			FullName:  req.FullName,
			Role:      req.Role,
			CreatedAt: time.Now().UTC(),
		}
		if err := h.userRepo.Create(r.Context(), u); err != nil {
			logger.Errorf("session mint create user=%s: %v", req.UserID, err)
			writeError(w, http.StatusInternalServerError, "failed to create user")
			return
		}
	}

	token := uuid.New().String()
	if err := h.store.SetSession(r.Context(), token, req.UserID, h.sessionTTL); err != nil {
		logger.Errorf("session mint user=%s: %v", req.UserID, err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, mintSessionResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(h.sessionTTL),
	})
}

// Revoke deletes the caller's session token.
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	if err := h.store.DeleteSession(r.Context(), token); err != nil {
		logger.Errorf("session revoke: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
