package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zenith/internal/chat"
)

// HTTPTransport speaks the relay's SSE protocol over plain HTTP
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPTransport creates a transport for a relay at baseURL (no trailing
// slash). The client carries no overall timeout: stream lifetime is
// bounded by the caller's context and the relay's own deadline.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Stream posts the conversation and decodes SSE frames from the response
// body until the end-of-stream marker.
func (t *HTTPTransport) Stream(ctx context.Context, messages []chat.Message, blogTitle string, onDelta func(delta string) error) error {
	payload, err := json.Marshal(chat.RelayRequest{
		Messages:  messages,
		BlogTitle: blogTitle,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/yuri", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chat request rejected (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return nil
		}

		var event struct {
			Type      string `json:"type"`
			Delta     string `json:"delta"`
			ErrorText string `json:"errorText"`
		}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return fmt.Errorf("malformed stream event: %w", err)
		}

		switch event.Type {
		case "text-delta":
			if err := onDelta(event.Delta); err != nil {
				return err
			}
		case "error":
			return errors.New(event.ErrorText)
		case "finish":
			// Terminal marker follows; nothing to apply.
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("stream read failed: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("stream ended without end-of-stream marker")
}
