package chatview

import (
	"context"
	"strings"
)

// MessageSender is the repository collaborator for the composer. A false
// result or an error both count as a failed send.
type MessageSender interface {
	SendMessage(ctx context.Context, conversationID, text string) (bool, error)
}

// ComposerState is the composition state machine:
// idle (no content) -> ready (non-whitespace content) -> sending -> idle on
// success, back to ready on failure with the content preserved.
type ComposerState int

const (
	ComposerIdle ComposerState = iota
	ComposerReady
	ComposerSending
)

func (s ComposerState) String() string {
	switch s {
	case ComposerIdle:
		return "idle"
	case ComposerReady:
		return "ready"
	case ComposerSending:
		return "sending"
	default:
		return "unknown"
	}
}

// Composer owns the draft text for one conversation. Like Window it belongs
// to a single goroutine.
type Composer struct {
	conversationID string
	sender         MessageSender

	text    string
	sending bool
}

func NewComposer(conversationID string, sender MessageSender) *Composer {
	return &Composer{conversationID: conversationID, sender: sender}
}

// SetText updates the draft. Ignored while a send is in flight.
func (c *Composer) SetText(text string) {
	if c.sending {
		return
	}
	c.text = text
}

// Text returns the current draft.
func (c *Composer) Text() string {
	return c.text
}

// State derives the current machine state from the draft and in-flight flag.
func (c *Composer) State() ComposerState {
	switch {
	case c.sending:
		return ComposerSending
	case strings.TrimSpace(c.text) != "":
		return ComposerReady
	default:
		return ComposerIdle
	}
}

// CanSend reports whether the send action is enabled.
func (c *Composer) CanSend() bool {
	return c.State() == ComposerReady
}

// Send performs the send. It is a no-op unless the state is ready; the
// in-flight flag blocks re-entry while sending. On success the draft is
// cleared (back to idle); on failure it is preserved (back to ready) so the
// user can retry. The flag is cleared on every exit path.
func (c *Composer) Send(ctx context.Context) error {
	if !c.CanSend() {
		return nil
	}
	text := strings.TrimSpace(c.text)
	c.sending = true
	defer func() { c.sending = false }()

	ok, err := c.sender.SendMessage(ctx, c.conversationID, text)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSendFailed
	}
	c.text = ""
	return nil
}
