package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// maxStreamDuration bounds the wall-clock time of one relay exchange.
// Exceeding it terminates the stream with an error frame.
const maxStreamDuration = 30 * time.Second

// RelayRequest is the body of POST /api/yuri
type RelayRequest struct {
	Messages  []Message `json:"messages"`
	BlogTitle string    `json:"blogTitle,omitempty"`
}

// streamEvent is one framed SSE event on the relay's response
type streamEvent struct {
	Type      string `json:"type"`
	Delta     string `json:"delta,omitempty"`
	ErrorText string `json:"errorText,omitempty"`
}

const (
	eventTextDelta = "text-delta"
	eventFinish    = "finish"
	eventError     = "error"

	// endOfStream terminates every relay response, success or failure
	endOfStream = "[DONE]"
)

// RelayHandler streams assistant replies from the upstream provider to the
// caller. It holds no conversation state between requests.
type RelayHandler struct {
	generator Generator

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	rateLimit rate.Limit
	rateBurst int
}

// NewRelayHandler creates a relay over the given generator. rateLimit is
// requests per second per client IP.
func NewRelayHandler(generator Generator, rateLimit float64, rateBurst int) *RelayHandler {
	if rateLimit <= 0 {
		rateLimit = 1
	}
	if rateBurst <= 0 {
		rateBurst = 5
	}
	return &RelayHandler{
		generator: generator,
		limiters:  make(map[string]*rate.Limiter),
		rateLimit: rate.Limit(rateLimit),
		rateBurst: rateBurst,
	}
}

// RegisterHandlers registers the relay endpoint on the router
func (h *RelayHandler) RegisterHandlers(e *echo.Echo) {
	e.POST("/api/yuri", h.HandleChat)
}

func (h *RelayHandler) limiterFor(clientIP string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	limiter, ok := h.limiters[clientIP]
	if !ok {
		limiter = rate.NewLimiter(h.rateLimit, h.rateBurst)
		h.limiters[clientIP] = limiter
	}
	return limiter
}

// HandleChat relays one conversation exchange. The full message history
// arrives in the request body; the reply streams back as SSE frames
// terminated by an explicit end-of-stream marker.
func (h *RelayHandler) HandleChat(c echo.Context) error {
	var req RelayRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	if len(req.Messages) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "messages are required",
		})
	}

	if !h.limiterFor(c.RealIP()).Allow() {
		return c.JSON(http.StatusTooManyRequests, map[string]string{
			"error": "Too many requests",
		})
	}

	log.Info().
		Int("messages", len(req.Messages)).
		Str("blog_title", req.BlogTitle).
		Msg("Relaying chat request")

	rw := c.Response()
	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")
	rw.Header().Set("X-Accel-Buffering", "no")
	rw.WriteHeader(http.StatusOK)

	emit := func(event streamEvent) {
		data, _ := json.Marshal(event)
		fmt.Fprintf(rw, "data: %s\n\n", data)
		rw.Flush()
	}

	// The upstream call lives no longer than the inbound request: client
	// aborts cancel it through the request context, and the deadline
	// bounds worst-case resource holding.
	ctx, cancel := context.WithTimeout(c.Request().Context(), maxStreamDuration)
	defer cancel()

	systemPrompt := BuildSystemPrompt(req.BlogTitle)

	err := h.generator.Stream(ctx, systemPrompt, req.Messages, func(delta string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		emit(streamEvent{Type: eventTextDelta, Delta: delta})
		return nil
	})

	switch {
	case err == nil:
		emit(streamEvent{Type: eventFinish})
	case errors.Is(err, context.Canceled):
		// Client went away; nobody is reading the stream anymore.
		log.Debug().Msg("Chat stream aborted by client")
	default:
		log.Error().Err(err).Msg("Upstream generation failed")
		emit(streamEvent{Type: eventError, ErrorText: "The response could not be completed"})
	}

	fmt.Fprintf(rw, "data: %s\n\n", endOfStream)
	rw.Flush()

	return nil
}
