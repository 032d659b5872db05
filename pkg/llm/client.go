package llm

import (
	"context"
	"errors"
	"io"
)

// Client is the completion service consumed by the executor. Implementations
// live outside this module (provider SDKs, proxies); the engine only needs to
// drive one model turn at a time and consume its stream under cancellation.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (Stream, error)
}

// StreamChunk is one unit of streamed model output. Exactly one field group is
// set per chunk: a text delta, a complete tool call, or the final stop
// reason + usage.
type StreamChunk struct {
	TextDelta  string
	ToolCall   *ToolCall
	StopReason string
	Usage      *Usage
}

// Stream yields chunks one at a time. Recv returns io.EOF after the final
// chunk has been delivered.
type Stream interface {
	Recv() (*StreamChunk, error)
	Close() error
}

// Accumulate drains a stream into a Response, checking ctx between every
// chunk so a stop request interrupts even a long stream. onChunk, if non-nil,
// is invoked for each chunk as it arrives.
func Accumulate(ctx context.Context, s Stream, onChunk func(*StreamChunk)) (*Response, error) {
	defer s.Close()

	resp := &Response{StopReason: "end_turn"}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return resp, nil
		}
		if err != nil {
			return nil, err
		}

		if onChunk != nil {
			onChunk(chunk)
		}

		switch {
		case chunk.TextDelta != "":
			resp.Text += chunk.TextDelta
		case chunk.ToolCall != nil:
			resp.ToolCalls = append(resp.ToolCalls, *chunk.ToolCall)
		}
		if chunk.StopReason != "" {
			resp.StopReason = chunk.StopReason
		}
		if chunk.Usage != nil {
			resp.Usage.Add(*chunk.Usage)
		}
	}
}
