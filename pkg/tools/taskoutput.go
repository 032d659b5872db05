package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jg-phare/warren/pkg/task"
)

// TaskOutputTool retrieves the output of a background task, optionally
// blocking until it finishes.
type TaskOutputTool struct {
	Manager *task.Manager
}

func (t *TaskOutputTool) Name() string { return "TaskOutput" }

func (t *TaskOutputTool) Description() string {
	return `Retrieve the output of a background task started with the Task tool.

Usage notes:
- By default this blocks until the task finishes or the wait times out
- Pass block: false to get the task's current status immediately
- timeout_ms bounds only this call; the task itself keeps running
- If the task is still running when the wait ends, call TaskOutput again to keep polling`
}

func (t *TaskOutputTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{
				"type":        "string",
				"description": "The id of the background task",
			},
			"block": map[string]any{
				"type":        "boolean",
				"description": "Wait for the task to finish (default true)",
			},
			"timeout_ms": map[string]any{
				"type":        "integer",
				"description": "Maximum time to wait in milliseconds",
			},
		},
		"required": []string{"task_id"},
	}
}

func (t *TaskOutputTool) SideEffect() SideEffectType { return SideEffectBlocking }

func (t *TaskOutputTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	id, ok := input["task_id"].(string)
	if !ok || id == "" {
		return ToolOutput{Content: "Error: task_id is required", IsError: true}, nil
	}

	block := true
	if b, ok := input["block"].(bool); ok {
		block = b
	}
	var timeout time.Duration
	if ms, ok := input["timeout_ms"].(float64); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	snap, err := t.Manager.WaitOutput(id, block, timeout)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return ToolOutput{Content: fmt.Sprintf("Error: no task with id %s", id), IsError: true}, nil
		}
		return ToolOutput{}, err
	}

	return ToolOutput{Content: formatSnapshot(snap)}, nil
}

func formatSnapshot(snap task.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task %s (%s): %s", snap.ID, snap.AgentType, snap.Status)

	if !snap.Status.Terminal() {
		fmt.Fprintf(&b, "\nTurns so far: %d | Tokens: %d in / %d out",
			snap.Turns, snap.Usage.InputTokens, snap.Usage.OutputTokens)
		if snap.CancelRequested {
			b.WriteString("\nCancellation requested; the task is shutting down.")
		}
		b.WriteString("\nStill running. Call TaskOutput again to keep waiting.")
		return b.String()
	}

	if res := snap.Result; res != nil {
		if res.Text != "" {
			fmt.Fprintf(&b, "\n\n%s", res.Text)
		}
		if res.Reason != "" {
			fmt.Fprintf(&b, "\n\nReason: %s", res.Reason)
		}
		fmt.Fprintf(&b, "\n---\nDuration: %.1fs | Turns: %d | Tokens: %d in / %d out",
			res.Duration.Seconds(), res.Turns, res.Usage.InputTokens, res.Usage.OutputTokens)
	}
	for _, w := range snap.Warnings {
		fmt.Fprintf(&b, "\nWarning: %s", w)
	}
	return b.String()
}
