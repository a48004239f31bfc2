package unread

import (
	"testing"

	"github.com/schoolchat/internal/model"
)

func conv(id string, unread int) model.Conversation {
	return model.Conversation{ID: id, Name: id, UnreadCount: unread}
}

func TestTotal(t *testing.T) {
	tests := []struct {
		name  string
		convs []model.Conversation
		want  int
	}{
		{"empty", nil, 0},
		{"all zero", []model.Conversation{conv("a", 0), conv("b", 0)}, 0},
		{"mixed", []model.Conversation{conv("a", 3), conv("b", 0), conv("c", 7)}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Total(tt.convs); got != tt.want {
				t.Errorf("Total = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHasUnreadMatchesCount(t *testing.T) {
	a := NewAggregator()
	a.Replace([]model.Conversation{conv("a", 2), conv("b", 0)})

	if !a.HasUnread("a") {
		t.Error("conversation with unread count must report HasUnread")
	}
	if a.HasUnread("b") {
		t.Error("conversation with zero count must not report HasUnread")
	}
	if a.HasUnread("missing") {
		t.Error("unknown conversation must not report HasUnread")
	}
}

func TestAggregatorPushesEveryChange(t *testing.T) {
	a := NewAggregator()
	a.Replace([]model.Conversation{conv("a", 1), conv("b", 2)})

	var seen []int
	unsub := a.Subscribe(func(total int) { seen = append(seen, total) })
	defer unsub()

	a.Update(conv("a", 5))    // 5+2
	a.MarkRead("b")           // 5
	a.MarkRead("b")           // no change, no notification
	a.Update(conv("c", 1))    // 6
	a.Replace(nil)            // 0

	want := []int{3, 7, 5, 6, 0}
	if len(seen) != len(want) {
		t.Fatalf("notifications = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("notification %d = %d, want %d", i, seen[i], want[i])
		}
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	a := NewAggregator()
	calls := 0
	unsub := a.Subscribe(func(int) { calls++ })
	unsub()
	a.Update(conv("a", 1))
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (initial value only)", calls)
	}
}

func TestMarkReadUnknownConversation(t *testing.T) {
	a := NewAggregator()
	a.Replace([]model.Conversation{conv("a", 4)})
	a.MarkRead("missing")
	if got := a.Total(); got != 4 {
		t.Errorf("Total = %d, want 4", got)
	}
}
