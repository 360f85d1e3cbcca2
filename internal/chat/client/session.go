// Package client holds the conversation-side state machine for the Yuri
// chat: an ordered message list, a send/stream lifecycle, and the
// seed-once-per-open contextual question behavior.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zenith/internal/chat"
)

// Status describes the session's stream lifecycle
type Status string

const (
	// StatusIdle means no request is outstanding
	StatusIdle Status = "idle"
	// StatusSubmitted means a request was sent but no chunk has arrived yet
	StatusSubmitted Status = "submitted"
	// StatusStreaming means chunks are being appended to the pending reply
	StatusStreaming Status = "streaming"
	// StatusError means the last stream failed; any partial reply is retained
	StatusError Status = "error"
)

// ErrSessionBusy is returned when a send is attempted while a stream is
// already in flight. Sends are rejected rather than queued.
var ErrSessionBusy = errors.New("a message is already being sent")

// StreamSender opens one stream exchange against the relay and invokes
// onDelta for every text chunk, in receipt order.
type StreamSender interface {
	Stream(ctx context.Context, messages []chat.Message, blogTitle string, onDelta func(delta string) error) error
}

// Session owns one conversation. All mutation goes through its methods;
// the message list is never shared mutably with callers.
type Session struct {
	transport StreamSender
	blogTitle string

	mu       sync.Mutex
	messages []chat.Message
	status   Status
	open     bool
	seeded   bool
	pending  bool // trailing message is the in-flight assistant reply
	cancel   context.CancelFunc

	// OnDelta, when set, is called after each chunk is applied. It drives
	// UI re-rendering and must not call back into the session.
	OnDelta func(delta string)
}

// NewSession creates an empty conversation bound to the article title that
// will accompany every relay request.
func NewSession(transport StreamSender, blogTitle string) *Session {
	return &Session{
		transport: transport,
		blogTitle: blogTitle,
		status:    StatusIdle,
	}
}

// Status returns the current stream status
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Messages returns a snapshot of the conversation in chronological order
func (s *Session) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Message, len(s.messages))
	copy(out, s.messages)
	for i := range out {
		parts := make([]chat.Part, len(s.messages[i].Parts))
		copy(parts, s.messages[i].Parts)
		out[i].Parts = parts
	}
	return out
}

// Open marks the chat panel visible. A non-empty excerpt seeds the
// conversation with a single synthetic question; the seed is consumed at
// most once per open/close cycle, so re-rendering an already-open panel
// never resends it.
func (s *Session) Open(ctx context.Context, excerpt string) error {
	s.mu.Lock()
	s.open = true
	if excerpt == "" || s.seeded {
		s.mu.Unlock()
		return nil
	}
	s.seeded = true
	s.mu.Unlock()

	seed := fmt.Sprintf("Help me understand this text from the article %q: %q", s.blogTitle, excerpt)
	return s.Send(ctx, seed)
}

// Close hides the panel: any in-flight stream is aborted and the seed
// flag resets so the next Open may seed again.
func (s *Session) Close() {
	s.mu.Lock()
	s.open = false
	s.seeded = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Send appends a user message and streams the assistant's reply into the
// conversation. Whitespace-only text is silently ignored. A send while a
// stream is in flight returns ErrSessionBusy and changes nothing.
//
// Send blocks until the stream resolves; Close from another goroutine
// aborts it.
func (s *Session) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	s.mu.Lock()
	if s.status == StatusSubmitted || s.status == StatusStreaming {
		s.mu.Unlock()
		return ErrSessionBusy
	}

	// The user message joins the conversation before any network activity.
	s.messages = append(s.messages, chat.NewTextMessage(chat.RoleUser, trimmed))
	s.status = StatusSubmitted
	s.pending = false

	history := make([]chat.Message, len(s.messages))
	copy(history, s.messages)

	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer cancel()

	err := s.transport.Stream(streamCtx, history, s.blogTitle, s.applyDelta)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = nil
	s.pending = false

	switch {
	case err == nil:
		// Pending assistant message is final now.
		s.status = StatusIdle
		return nil
	case errors.Is(err, context.Canceled):
		// Aborted by Close; the conversation is being discarded.
		s.status = StatusIdle
		return nil
	default:
		// Partial text stays in place so the UI can show what arrived.
		s.status = StatusError
		return err
	}
}

// applyDelta appends one chunk to the in-flight assistant message,
// creating it on first receipt. Called by the transport in chunk order.
func (s *Session) applyDelta(delta string) error {
	s.mu.Lock()
	if s.cancel == nil {
		// Stream was torn down; drop late chunks.
		s.mu.Unlock()
		return nil
	}

	if !s.pending {
		s.messages = append(s.messages, chat.NewTextMessage(chat.RoleAssistant, delta))
		s.pending = true
	} else {
		s.messages[len(s.messages)-1].AppendText(delta)
	}
	s.status = StatusStreaming
	onDelta := s.OnDelta
	s.mu.Unlock()

	if onDelta != nil {
		onDelta(delta)
	}
	return nil
}
