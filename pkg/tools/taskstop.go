package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/jg-phare/warren/pkg/task"
)

// TaskStopTool cancels a running background task.
type TaskStopTool struct {
	Manager *task.Manager
}

func (t *TaskStopTool) Name() string { return "TaskStop" }

func (t *TaskStopTool) Description() string {
	return `Stop a running background task started with the Task tool.

The task is asked to stop at its next checkpoint. If it does not stop
within the grace period it is marked cancelled anyway. Stopping a task
that already finished is reported as such, not as an error.`
}

func (t *TaskStopTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{
				"type":        "string",
				"description": "The id of the background task to stop",
			},
		},
		"required": []string{"task_id"},
	}
}

func (t *TaskStopTool) SideEffect() SideEffectType { return SideEffectMutating }

func (t *TaskStopTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	id, ok := input["task_id"].(string)
	if !ok || id == "" {
		return ToolOutput{Content: "Error: task_id is required", IsError: true}, nil
	}

	err := t.Manager.Cancel(id)
	switch {
	case err == nil:
		snap, found := t.Manager.Get(id)
		if found {
			s := snap.Snapshot()
			return ToolOutput{Content: fmt.Sprintf("Task %s stopped (status: %s).", id, s.Status)}, nil
		}
		return ToolOutput{Content: fmt.Sprintf("Task %s stopped.", id)}, nil
	case errors.Is(err, task.ErrAlreadyTerminal):
		snap, _ := t.Manager.Get(id)
		status := "finished"
		if snap != nil {
			status = snap.Status().String()
		}
		return ToolOutput{Content: fmt.Sprintf("Task %s already %s; nothing to stop. Use TaskOutput to read its result.", id, status)}, nil
	case errors.Is(err, task.ErrNotFound):
		return ToolOutput{Content: fmt.Sprintf("Error: no task with id %s", id), IsError: true}, nil
	default:
		return ToolOutput{}, err
	}
}
