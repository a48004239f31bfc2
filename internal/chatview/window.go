// Package chatview holds the client-side state of one open conversation: the
// loaded message window with pagination and search, and the composer state
// machine. Each instance is owned by a single goroutine (the UI event loop);
// widgets read derived views and never mutate state directly.
package chatview

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/schoolchat/internal/logger"
	"github.com/schoolchat/internal/model"
)

const DefaultPageSize = 50

// MessageFetcher is the repository collaborator for the window. Fetch returns
// up to limit messages older than before (newest first) and whether more
// remain beyond the returned page.
type MessageFetcher interface {
	FetchMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]model.Message, bool, error)
}

// EmptyKind distinguishes the terminal empty-display states. They are display
// states, not errors.
type EmptyKind int

const (
	EmptyNone      EmptyKind = iota // messages are visible
	EmptyNoMessages                 // nothing loaded, no search active
	EmptyNoResults                  // search active, nothing matched
)

// Window is the loaded message window of one conversation, newest first.
// Invariants: messages are sorted by CreatedAt descending and contain no
// duplicate IDs.
type Window struct {
	conversationID string
	fetcher        MessageFetcher
	pageSize       int

	messages []model.Message
	ids      map[string]struct{}
	hasMore  bool
	loading  bool
	query    string
}

func NewWindow(conversationID string, fetcher MessageFetcher, pageSize int) *Window {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Window{
		conversationID: conversationID,
		fetcher:        fetcher,
		pageSize:       pageSize,
		ids:            make(map[string]struct{}),
		hasMore:        true,
	}
}

// Messages returns the full loaded window, newest first.
func (w *Window) Messages() []model.Message {
	return w.messages
}

// HasMore reports whether older messages are still fetchable.
func (w *Window) HasMore() bool {
	return w.hasMore
}

// Loading reports whether a LoadMore call is in flight.
func (w *Window) Loading() bool {
	return w.loading
}

// LoadMore fetches the next older page and appends it to the tail of the
// window. Re-entrant calls while a fetch is outstanding are ignored, and a
// repeated fetch of the same page cannot introduce duplicates. On failure the
// window and HasMore are left unchanged and the error is returned; the call
// is retryable.
func (w *Window) LoadMore(ctx context.Context) error {
	if w.loading || !w.hasMore {
		return nil
	}
	w.loading = true
	defer func() { w.loading = false }()
	defer logger.DeferLogDuration("chatview.LoadMore", time.Now())()

	page, hasMore, err := w.fetcher.FetchMessages(ctx, w.conversationID, w.cursor(), w.pageSize)
	if err != nil {
		return fmt.Errorf("chatview.LoadMore: %w", err)
	}

	for _, m := range page {
		if _, dup := w.ids[m.ID]; dup {
			continue
		}
		w.ids[m.ID] = struct{}{}
		w.messages = append(w.messages, m)
	}
	// Pages arrive newest-first but fetches can interleave with live
	// prepends; keep the ordering invariant explicit.
	sort.SliceStable(w.messages, func(i, j int) bool {
		return w.messages[i].CreatedAt.After(w.messages[j].CreatedAt)
	})
	w.hasMore = hasMore
	return nil
}

// cursor is the pagination cursor: the creation time of the oldest loaded
// message, or the zero time when nothing is loaded yet.
func (w *Window) cursor() time.Time {
	if len(w.messages) == 0 {
		return time.Time{}
	}
	return w.messages[len(w.messages)-1].CreatedAt
}

// Prepend inserts a newly arrived message at the head of the window. A
// message whose ID is already present is ignored.
func (w *Window) Prepend(m model.Message) {
	if _, dup := w.ids[m.ID]; dup {
		return
	}
	w.ids[m.ID] = struct{}{}
	w.messages = append([]model.Message{m}, w.messages...)
}

// SetQuery sets the active search query. An empty query clears the search.
func (w *Window) SetQuery(q string) {
	w.query = strings.TrimSpace(q)
}

// Query returns the active search query, empty when no search is active.
func (w *Window) Query() string {
	return w.query
}

// Visible returns the messages to display: with an empty query the original
// sequence unchanged, otherwise the case-insensitive substring-filtered
// subsequence. The underlying window is never mutated by filtering.
func (w *Window) Visible() []model.Message {
	if w.query == "" {
		return w.messages
	}
	q := strings.ToLower(w.query)
	filtered := make([]model.Message, 0, len(w.messages))
	for _, m := range w.messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// Empty classifies the current empty-display state.
func (w *Window) Empty() EmptyKind {
	if len(w.Visible()) > 0 {
		return EmptyNone
	}
	if w.query != "" {
		return EmptyNoResults
	}
	return EmptyNoMessages
}
