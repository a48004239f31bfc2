package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/schoolchat/internal/storage"
)

// SessionAuth validates the bearer token against the session store and puts
// the resolved user_id into the request context. WebSocket clients cannot set
// headers, so ?token= is accepted as a fallback.
func SessionAuth(store storage.SessionBadgeStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				writeUnauthorized(w)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			userID, err := store.GetSession(ctx, token)
			cancel()
			if err != nil || userID == "" {
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserIDKey, userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
