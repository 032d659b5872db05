package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulate(t *testing.T) {
	resp := Response{
		Text:       "hello world",
		StopReason: "tool_use",
		ToolCalls:  []ToolCall{{ID: "c-1", Name: "Read", Input: map[string]any{"path": "go.mod"}}},
		Usage:      Usage{InputTokens: 11, OutputTokens: 7},
	}

	got, err := Accumulate(context.Background(), NewResponseStream(resp), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got.Text)
	assert.Equal(t, "tool_use", got.StopReason)
	require.Len(t, got.ToolCalls, 1)
	assert.Equal(t, "Read", got.ToolCalls[0].Name)
	assert.Equal(t, 11, got.Usage.InputTokens)
}

func TestAccumulateChecksContextPerChunk(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var seen int
	stream := NewResponseStream(Response{Text: "partial", StopReason: "end_turn"})
	_, err := Accumulate(ctx, stream, func(c *StreamChunk) {
		seen++
		cancel() // cancellation lands mid-stream
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, seen) // no chunks consumed after the cancel
}

func TestAccumulateOnChunkCallback(t *testing.T) {
	var chunks []*StreamChunk
	resp := Response{Text: "abc", StopReason: "end_turn", Usage: Usage{OutputTokens: 3}}

	_, err := Accumulate(context.Background(), NewResponseStream(resp), func(c *StreamChunk) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2) // text chunk plus terminal stop/usage chunk
	assert.Equal(t, "abc", chunks[0].TextDelta)
	assert.Equal(t, "end_turn", chunks[1].StopReason)
}

func TestScriptedClientExhaustion(t *testing.T) {
	c := NewScriptedClient(Response{Text: "only one", StopReason: "end_turn"})

	_, err := c.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Calls())

	_, err = c.Complete(context.Background(), CompletionRequest{})
	assert.Error(t, err)
}

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5}
	u.Add(Usage{InputTokens: 3, OutputTokens: 2})
	assert.Equal(t, Usage{InputTokens: 13, OutputTokens: 7}, u)
}

func TestAssistantMessage(t *testing.T) {
	resp := Response{
		Text:      "calling a tool",
		ToolCalls: []ToolCall{{ID: "c-1", Name: "Grep"}},
	}
	msg := resp.AssistantMessage()
	assert.Equal(t, "assistant", msg.Role)
	assert.Equal(t, "calling a tool", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
}
