package chatview

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/schoolchat/internal/model"
)

// fakeFetcher serves fixed pages, newest first, and records calls.
type fakeFetcher struct {
	pages [][]model.Message
	more  []bool
	err   error
	calls int
}

func (f *fakeFetcher) FetchMessages(_ context.Context, _ string, _ time.Time, _ int) ([]model.Message, bool, error) {
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	if len(f.pages) == 0 {
		return nil, false, nil
	}
	page := f.pages[0]
	more := f.more[0]
	f.pages = f.pages[1:]
	f.more = f.more[1:]
	return page, more, nil
}

// msgs builds n messages with descending timestamps starting at base.
func msgs(prefix string, n int, base time.Time) []model.Message {
	out := make([]model.Message, n)
	for i := 0; i < n; i++ {
		out[i] = model.Message{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			Content:   prefix,
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestLoadMoreAppendsOlderPage(t *testing.T) {
	base := time.Date(2024, time.January, 16, 12, 0, 0, 0, time.UTC)
	f := &fakeFetcher{
		pages: [][]model.Message{
			msgs("new", 20, base),
			msgs("old", 10, base.Add(-24*time.Hour)),
		},
		more: []bool{true, false},
	}
	w := NewWindow("conv1", f, 20)

	if err := w.LoadMore(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(w.Messages()); got != 20 {
		t.Fatalf("after first page: %d messages, want 20", got)
	}
	if !w.HasMore() {
		t.Fatal("HasMore must follow the fetcher's flag")
	}

	if err := w.LoadMore(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(w.Messages()); got != 30 {
		t.Fatalf("after second page: %d messages, want 30", got)
	}
	if w.HasMore() {
		t.Error("HasMore must turn false when the fetcher says so")
	}

	// Ordering invariant: newest first.
	ms := w.Messages()
	for i := 1; i < len(ms); i++ {
		if ms[i].CreatedAt.After(ms[i-1].CreatedAt) {
			t.Fatalf("messages out of order at %d", i)
		}
	}
}

func TestLoadMoreIsIdempotentForRepeatedPage(t *testing.T) {
	base := time.Date(2024, time.January, 16, 12, 0, 0, 0, time.UTC)
	page := msgs("a", 5, base)
	f := &fakeFetcher{
		pages: [][]model.Message{page, page},
		more:  []bool{true, true},
	}
	w := NewWindow("conv1", f, 5)

	if err := w.LoadMore(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.LoadMore(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(w.Messages()); got != 5 {
		t.Errorf("repeated page duplicated messages: %d, want 5", got)
	}
}

func TestLoadMoreFailureLeavesStateUnchanged(t *testing.T) {
	base := time.Date(2024, time.January, 16, 12, 0, 0, 0, time.UTC)
	f := &fakeFetcher{
		pages: [][]model.Message{msgs("a", 3, base)},
		more:  []bool{true},
	}
	w := NewWindow("conv1", f, 3)
	if err := w.LoadMore(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.err = errors.New("network down")
	err := w.LoadMore(context.Background())
	if err == nil {
		t.Fatal("expected an error from the failed fetch")
	}
	if got := len(w.Messages()); got != 3 {
		t.Errorf("failed fetch changed the window: %d messages", got)
	}
	if !w.HasMore() {
		t.Error("failed fetch changed HasMore")
	}
	if w.Loading() {
		t.Error("in-flight flag stuck after failure")
	}

	// Retryable: clearing the error lets the next call proceed.
	f.err = nil
	f.pages = [][]model.Message{msgs("b", 2, base.Add(-time.Hour))}
	f.more = []bool{false}
	if err := w.LoadMore(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(w.Messages()); got != 5 {
		t.Errorf("retry did not append: %d messages, want 5", got)
	}
}

func TestLoadMoreNotReentrant(t *testing.T) {
	base := time.Date(2024, time.January, 16, 12, 0, 0, 0, time.UTC)

	var w *Window
	f := &reentrantFetcher{base: base}
	w = NewWindow("conv1", f, 5)
	f.window = func() *Window { return w }

	if err := w.LoadMore(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.calls != 1 {
		t.Errorf("re-entrant LoadMore issued %d fetches, want 1", f.calls)
	}
}

// reentrantFetcher calls back into LoadMore from inside the fetch, simulating
// a second scroll event arriving while the first fetch is outstanding.
type reentrantFetcher struct {
	base   time.Time
	window func() *Window
	calls  int
}

func (f *reentrantFetcher) FetchMessages(ctx context.Context, _ string, _ time.Time, _ int) ([]model.Message, bool, error) {
	f.calls++
	if f.calls == 1 {
		if err := f.window().LoadMore(ctx); err != nil {
			return nil, false, err
		}
	}
	return msgs("p", 2, f.base), false, nil
}

func TestVisibleFilter(t *testing.T) {
	base := time.Date(2024, time.January, 16, 12, 0, 0, 0, time.UTC)
	w := NewWindow("conv1", &fakeFetcher{}, 10)
	w.Prepend(model.Message{ID: "3", Content: "see you tomorrow", CreatedAt: base.Add(-2 * time.Minute)})
	w.Prepend(model.Message{ID: "2", Content: "Homework is due Monday", CreatedAt: base.Add(-time.Minute)})
	w.Prepend(model.Message{ID: "1", Content: "hello", CreatedAt: base})

	w.SetQuery("HOMEWORK")
	got := w.Visible()
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("Visible = %v, want only message 2", got)
	}

	// Empty query returns the original sequence unchanged.
	w.SetQuery("")
	all := w.Visible()
	if len(all) != 3 {
		t.Fatalf("Visible with empty query = %d messages, want 3", len(all))
	}
	for i, want := range []string{"1", "2", "3"} {
		if all[i].ID != want {
			t.Errorf("position %d = %s, want %s", i, all[i].ID, want)
		}
	}
}

func TestEmptyStates(t *testing.T) {
	w := NewWindow("conv1", &fakeFetcher{}, 10)
	if got := w.Empty(); got != EmptyNoMessages {
		t.Errorf("empty window = %v, want EmptyNoMessages", got)
	}

	w.Prepend(model.Message{ID: "1", Content: "hello", CreatedAt: time.Now()})
	if got := w.Empty(); got != EmptyNone {
		t.Errorf("loaded window = %v, want EmptyNone", got)
	}

	w.SetQuery("nomatch")
	if got := w.Empty(); got != EmptyNoResults {
		t.Errorf("searching window = %v, want EmptyNoResults", got)
	}
}

func TestPrependIgnoresDuplicates(t *testing.T) {
	w := NewWindow("conv1", &fakeFetcher{}, 10)
	m := model.Message{ID: "1", Content: "hi", CreatedAt: time.Now()}
	w.Prepend(m)
	w.Prepend(m)
	if got := len(w.Messages()); got != 1 {
		t.Errorf("duplicate prepend: %d messages, want 1", got)
	}
}
