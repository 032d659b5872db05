package llm

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ScriptedClient replays a fixed sequence of turns. Each call to Complete
// consumes the next entry. Useful for examples and tests; a real deployment
// injects a provider-backed Client instead.
type ScriptedClient struct {
	mu    sync.Mutex
	turns []Response
	calls int

	// OnComplete, if set, is invoked with each request before the scripted
	// response is returned.
	OnComplete func(req CompletionRequest)
}

// NewScriptedClient builds a client that replays the given turns in order.
func NewScriptedClient(turns ...Response) *ScriptedClient {
	return &ScriptedClient{turns: turns}
}

// Calls reports how many completions have been requested.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *ScriptedClient) Complete(ctx context.Context, req CompletionRequest) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.OnComplete != nil {
		c.OnComplete(req)
	}
	if c.calls >= len(c.turns) {
		c.mu.Unlock()
		return nil, fmt.Errorf("scripted client exhausted after %d turns", len(c.turns))
	}
	resp := c.turns[c.calls]
	c.calls++
	c.mu.Unlock()

	return NewResponseStream(resp), nil
}

// responseStream replays a Response as a chunk sequence: one text chunk, one
// chunk per tool call, then a terminal stop/usage chunk.
type responseStream struct {
	mu     sync.Mutex
	chunks []*StreamChunk
	next   int
}

// NewResponseStream wraps an already-complete response in the Stream interface.
func NewResponseStream(resp Response) Stream {
	var chunks []*StreamChunk
	if resp.Text != "" {
		chunks = append(chunks, &StreamChunk{TextDelta: resp.Text})
	}
	for i := range resp.ToolCalls {
		tc := resp.ToolCalls[i]
		chunks = append(chunks, &StreamChunk{ToolCall: &tc})
	}
	usage := resp.Usage
	chunks = append(chunks, &StreamChunk{StopReason: resp.StopReason, Usage: &usage})
	return &responseStream{chunks: chunks}
}

func (s *responseStream) Recv() (*StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.next]
	s.next++
	return chunk, nil
}

func (s *responseStream) Close() error { return nil }
