package agent

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jg-phare/warren/pkg/llm"
)

// executeTools runs each requested tool call and returns the result messages.
// Cancellation is checked before every call; on cancellation the remaining
// calls are answered with a cancellation notice and interrupted is true.
func (e *Execution) executeTools(ctx context.Context, calls []llm.ToolCall, config *Config) (results []llm.ChatMessage, interrupted bool) {
	results = make([]llm.ChatMessage, 0, len(calls))

	for i, call := range calls {
		// Checkpoint: before dispatching each tool call.
		select {
		case <-ctx.Done():
			for _, remaining := range calls[i:] {
				results = append(results, toolResultMessage(remaining.ID, "Error: operation cancelled"))
			}
			return results, true
		default:
		}

		results = append(results, e.executeSingleTool(ctx, call, config))
	}

	return results, false
}

func (e *Execution) executeSingleTool(ctx context.Context, call llm.ToolCall, config *Config) llm.ChatMessage {
	if config.Registry == nil {
		return toolResultMessage(call.ID, fmt.Sprintf("Error: unknown tool %q", call.Name))
	}

	tool, ok := config.Registry.Get(call.Name)
	if !ok {
		return toolResultMessage(call.ID, fmt.Sprintf("Error: unknown tool %q", call.Name))
	}

	output, err := tool.Execute(ctx, call.Input)
	if err != nil {
		// Tool failures become tool results, not loop failures; the model
		// decides how to proceed.
		config.logger().WithFields(logrus.Fields{
			"tool":    call.Name,
			"session": config.SessionID,
		}).WithError(err).Warn("tool execution failed")
		return toolResultMessage(call.ID, fmt.Sprintf("Error: %s", err))
	}

	content := output.Content
	if output.IsError && content == "" {
		content = "Error: tool reported failure"
	}
	return toolResultMessage(call.ID, content)
}

func toolResultMessage(callID, content string) llm.ChatMessage {
	return llm.ChatMessage{Role: "tool", ToolCallID: callID, Content: content}
}
