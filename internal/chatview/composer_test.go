package chatview

import (
	"context"
	"errors"
	"testing"
)

type fakeSender struct {
	ok    bool
	err   error
	calls int
	sent  []string
}

func (s *fakeSender) SendMessage(_ context.Context, _ string, text string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	if s.ok {
		s.sent = append(s.sent, text)
	}
	return s.ok, nil
}

func TestComposerStates(t *testing.T) {
	c := NewComposer("conv1", &fakeSender{ok: true})

	if got := c.State(); got != ComposerIdle {
		t.Errorf("initial state = %v, want idle", got)
	}
	c.SetText("   ")
	if got := c.State(); got != ComposerIdle {
		t.Errorf("whitespace draft = %v, want idle", got)
	}
	c.SetText("Hi")
	if got := c.State(); got != ComposerReady {
		t.Errorf("non-empty draft = %v, want ready", got)
	}
	if !c.CanSend() {
		t.Error("CanSend must be true in ready")
	}
}

func TestSendSuccessClearsDraft(t *testing.T) {
	s := &fakeSender{ok: true}
	c := NewComposer("conv1", s)
	c.SetText("Hi")

	if err := c.Send(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := c.State(); got != ComposerIdle {
		t.Errorf("state after success = %v, want idle", got)
	}
	if c.Text() != "" {
		t.Errorf("draft after success = %q, want empty", c.Text())
	}
	if len(s.sent) != 1 || s.sent[0] != "Hi" {
		t.Errorf("sent = %v, want [Hi]", s.sent)
	}
}

func TestSendFailurePreservesDraft(t *testing.T) {
	s := &fakeSender{err: errors.New("timeout")}
	c := NewComposer("conv1", s)
	c.SetText("Hi")

	if err := c.Send(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if got := c.State(); got != ComposerReady {
		t.Errorf("state after failure = %v, want ready", got)
	}
	if c.Text() != "Hi" {
		t.Errorf("draft after failure = %q, want %q", c.Text(), "Hi")
	}

	// Rejected send (no transport error) behaves the same.
	s.err = nil
	s.ok = false
	if err := c.Send(context.Background()); !errors.Is(err, ErrSendFailed) {
		t.Fatalf("err = %v, want ErrSendFailed", err)
	}
	if c.Text() != "Hi" {
		t.Errorf("draft after rejection = %q, want %q", c.Text(), "Hi")
	}
}

func TestSendIsNoOpOutsideReady(t *testing.T) {
	s := &fakeSender{ok: true}
	c := NewComposer("conv1", s)

	if err := c.Send(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.calls != 0 {
		t.Errorf("send from idle reached the backend %d times", s.calls)
	}
}

// blockedSender re-enters Send from inside SendMessage, simulating a double
// tap while the request is in flight.
type blockedSender struct {
	composer func() *Composer
	calls    int
}

func (s *blockedSender) SendMessage(ctx context.Context, _ string, _ string) (bool, error) {
	s.calls++
	if s.calls == 1 {
		if err := s.composer().Send(ctx); err != nil {
			return false, err
		}
	}
	return true, nil
}

func TestConcurrentSendBlocked(t *testing.T) {
	var c *Composer
	s := &blockedSender{}
	c = NewComposer("conv1", s)
	s.composer = func() *Composer { return c }

	c.SetText("Hi")
	if err := c.Send(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.calls != 1 {
		t.Errorf("re-entrant send reached the backend %d times, want 1", s.calls)
	}
}
