// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
)

// =============================================================================
// STREAM TYPES
// =============================================================================

// StreamChunk is a single parsed chunk from the streaming response.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// GetContent returns the content delta from the first choice, or "".
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// DeltaFunc is called for each non-empty content delta. cumulative is the
// concatenation of every delta observed so far, including this one.
type DeltaFunc func(delta, cumulative string)

// StreamError is a streaming failure that preserves any content received
// before the stream broke.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// RECONCILER
// =============================================================================

var dataPrefix = []byte("data:")

// Reconciler folds a growing SSE response buffer into an ordered sequence of
// content deltas.
//
// The transport appends raw bytes to one cumulative buffer and hands the
// whole buffer to Observe after every read. The reconciler remembers how far
// it has consumed and only parses the unconsumed suffix, so re-observing
// already-processed bytes is free and a record split across two reads is
// never parsed until its terminating newline arrives. The result is
// independent of how the network fragments the stream.
//
// Records are newline-delimited. Blank records and records without the
// "data:" field prefix are skipped, a literal [DONE] payload marks the end
// of the stream, and a malformed JSON payload is dropped without disturbing
// the records around it.
type Reconciler struct {
	buf      []byte
	consumed int
	done     bool
	text     strings.Builder
	onDelta  DeltaFunc
}

// NewReconciler creates a reconciler that reports deltas to onDelta.
// A nil onDelta is allowed; the cumulative text is still accumulated.
func NewReconciler(onDelta DeltaFunc) *Reconciler {
	return &Reconciler{onDelta: onDelta}
}

// Observe processes every newline-terminated record in buf that has not been
// consumed yet. buf must be the same cumulative buffer as on previous calls,
// possibly grown; already-consumed bytes are never re-read.
func (r *Reconciler) Observe(buf []byte) {
	r.buf = buf
	for !r.done {
		rest := buf[r.consumed:]
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			// Unterminated tail: hold until the newline arrives.
			return
		}
		record := rest[:i]
		r.consumed += i + 1
		r.process(record)
	}
}

// Finish flushes the unterminated tail, if any. Called once when the
// transport reaches end of stream, where a missing final newline no longer
// means an incomplete record.
func (r *Reconciler) Finish() {
	if r.done || r.consumed >= len(r.buf) {
		return
	}
	tail := r.buf[r.consumed:]
	r.consumed = len(r.buf)
	r.process(tail)
}

// Done reports whether the [DONE] sentinel has been observed.
func (r *Reconciler) Done() bool {
	return r.done
}

// Text returns the concatenation of all deltas observed so far.
func (r *Reconciler) Text() string {
	return r.text.String()
}

// process parses one record and emits its delta.
func (r *Reconciler) process(record []byte) {
	record = bytes.TrimRight(record, "\r")
	if len(bytes.TrimSpace(record)) == 0 {
		return
	}
	if !bytes.HasPrefix(record, dataPrefix) {
		// Other SSE fields (event:, id:, comments) carry no content.
		return
	}

	payload := bytes.TrimSpace(record[len(dataPrefix):])
	if bytes.Equal(payload, []byte("[DONE]")) {
		r.done = true
		return
	}

	var chunk StreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		log.Debug("deepseek: skipping malformed stream record", "err", err)
		return
	}

	delta := chunk.GetContent()
	if delta == "" {
		return
	}
	r.text.WriteString(delta)
	if r.onDelta != nil {
		r.onDelta(delta, r.text.String())
	}
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatStream performs a streaming chat completion request, reporting each
// content delta to onDelta as it arrives. It returns the complete response
// text. On a mid-stream failure the partial text accumulated so far is
// returned alongside a StreamError wrapping the cause.
func (c *Client) ChatStream(ctx context.Context, messages []ChatMessage, onDelta DeltaFunc) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	reqBody := ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := sharedStreamingClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		return "", handleErrorResponse(resp.StatusCode, body)
	}

	rec := NewReconciler(onDelta)
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return rec.Text(), &StreamError{Partial: rec.Text(), Err: ctx.Err()}
		default:
		}

		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			rec.Observe(buf)
		}
		if rec.Done() {
			return rec.Text(), nil
		}
		if readErr == io.EOF {
			rec.Finish()
			return rec.Text(), nil
		}
		if readErr != nil {
			return rec.Text(), &StreamError{Partial: rec.Text(), Err: readErr}
		}
	}
}
