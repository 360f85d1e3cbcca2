package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator replays scripted chunks and an optional terminal error,
// recording the prompt and history it was called with.
type fakeGenerator struct {
	chunks []string
	err    error

	gotPrompt  string
	gotHistory []Message
}

func (f *fakeGenerator) Stream(ctx context.Context, systemPrompt string, history []Message, onDelta func(delta string) error) error {
	f.gotPrompt = systemPrompt
	f.gotHistory = history
	for _, chunk := range f.chunks {
		if err := onDelta(chunk); err != nil {
			return err
		}
	}
	return f.err
}

func relayRequest(t *testing.T, body string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/yuri", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

// decodeFrames splits an SSE body into its decoded events plus whether the
// end-of-stream marker was present.
func decodeFrames(t *testing.T, body string) ([]streamEvent, bool) {
	t.Helper()
	var events []streamEvent
	done := false
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == endOfStream {
			done = true
			continue
		}
		var event streamEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &event))
		events = append(events, event)
	}
	return events, done
}

func TestHandleChatStreamsDeltasInOrder(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"The ", "Moon ", "is a satellite"}}
	h := NewRelayHandler(gen, 10, 10)

	rec, c := relayRequest(t, `{"messages":[{"id":"m1","role":"user","parts":[{"type":"text","text":"What is the Moon?"}]}],"blogTitle":"Lunar Basics"}`)
	require.NoError(t, h.HandleChat(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	events, done := decodeFrames(t, rec.Body.String())
	require.True(t, done, "stream must end with the end-of-stream marker")
	require.Len(t, events, 4)
	assert.Equal(t, streamEvent{Type: eventTextDelta, Delta: "The "}, events[0])
	assert.Equal(t, streamEvent{Type: eventTextDelta, Delta: "Moon "}, events[1])
	assert.Equal(t, streamEvent{Type: eventTextDelta, Delta: "is a satellite"}, events[2])
	assert.Equal(t, eventFinish, events[3].Type)

	assert.Contains(t, gen.gotPrompt, `"Lunar Basics"`)
	require.Len(t, gen.gotHistory, 1)
	assert.Equal(t, RoleUser, gen.gotHistory[0].Role)
}

func TestHandleChatRejectsEmptyMessages(t *testing.T) {
	gen := &fakeGenerator{}
	h := NewRelayHandler(gen, 10, 10)

	rec, c := relayRequest(t, `{"messages":[]}`)
	require.NoError(t, h.HandleChat(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, gen.gotHistory)
}

func TestHandleChatRejectsMalformedBody(t *testing.T) {
	h := NewRelayHandler(&fakeGenerator{}, 10, 10)

	rec, c := relayRequest(t, `{not json`)
	require.NoError(t, h.HandleChat(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatEmitsErrorFrameOnUpstreamFailure(t *testing.T) {
	gen := &fakeGenerator{
		chunks: []string{"partial "},
		err:    errors.New("provider exploded"),
	}
	h := NewRelayHandler(gen, 10, 10)

	rec, c := relayRequest(t, `{"messages":[{"role":"user","parts":[{"type":"text","text":"hi"}]}]}`)
	require.NoError(t, h.HandleChat(c))

	// The stream already started, so failure surfaces as a frame, not a status.
	assert.Equal(t, http.StatusOK, rec.Code)

	events, done := decodeFrames(t, rec.Body.String())
	require.True(t, done)
	require.Len(t, events, 2)
	assert.Equal(t, eventTextDelta, events[0].Type)
	assert.Equal(t, eventError, events[1].Type)
	assert.Equal(t, "The response could not be completed", events[1].ErrorText)
	// Never leak the upstream error text to the caller.
	assert.NotContains(t, rec.Body.String(), "provider exploded")
}

func TestHandleChatRateLimitsPerClient(t *testing.T) {
	h := NewRelayHandler(&fakeGenerator{chunks: []string{"ok"}}, 0.001, 1)

	body := `{"messages":[{"role":"user","parts":[{"type":"text","text":"hi"}]}]}`

	rec, c := relayRequest(t, body)
	require.NoError(t, h.HandleChat(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, c = relayRequest(t, body)
	require.NoError(t, h.HandleChat(c))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHandleChatOmitsContextSectionWithoutTitle(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"ok"}}
	h := NewRelayHandler(gen, 10, 10)

	_, c := relayRequest(t, `{"messages":[{"role":"user","parts":[{"type":"text","text":"hi"}]}]}`)
	require.NoError(t, h.HandleChat(c))

	assert.NotContains(t, gen.gotPrompt, "currently reading an article")
}
