package tools

import (
	"context"
	"fmt"
	"strings"
)

// TaskInput contains the parameters for one delegation.
type TaskInput struct {
	Description string
	Prompt      string
	AgentType   string
	Model       *string
	Resume      *string // session id to continue
	Background  *bool
	MaxTurns    *int
}

// TaskMetrics carries execution metrics from a finished delegation.
type TaskMetrics struct {
	DurationSecs float64
	Turns        int
	InputTokens  int
	OutputTokens int
}

// TaskResult is the outcome of one delegation.
type TaskResult struct {
	TaskID     string
	SessionID  string // resumable session id (set when persistence is enabled)
	Output     string // final output (empty for background tasks)
	LogPath    string // progress log path (background tasks only)
	Background bool
	Cached     bool         // true when served from the result cache
	Err        string       // error message from the subagent (empty on success)
	Metrics    *TaskMetrics // nil for background tasks
}

// Spawner creates and runs subagent executions.
type Spawner interface {
	// Spawn runs one delegation, blocking for foreground tasks and
	// returning a task handle immediately for background ones.
	Spawn(ctx context.Context, input TaskInput) (TaskResult, error)

	// SpawnMany runs several delegations concurrently. One failing branch
	// never cancels its siblings; errors surface per result.
	SpawnMany(ctx context.Context, inputs []TaskInput) []TaskResult
}

// TaskTool launches specialized subagents to handle delegated work.
type TaskTool struct {
	Spawner Spawner
}

func (t *TaskTool) Name() string { return "Task" }

func (t *TaskTool) Description() string {
	return `Launch a specialized agent to handle a complex, multi-step task autonomously.

Usage notes:
- Always include a short description (3-5 words) summarizing what the agent will do
- Provide clear, detailed prompts so the agent can work autonomously and return exactly the information you need; unless resuming, each invocation starts fresh
- To run several independent tasks concurrently, pass them together in the specs array; results come back per task and one failure does not abort the others
- Set run_in_background to true to get a task id back immediately and keep working; check on it with TaskOutput and stop it with TaskStop
- A finished foreground task returns a session id; pass it as resume to continue that agent with its previous context preserved`
}

func (t *TaskTool) InputSchema() map[string]any {
	spec := map[string]any{
		"description": map[string]any{
			"type":        "string",
			"description": "A short (3-5 word) description of the task",
		},
		"prompt": map[string]any{
			"type":        "string",
			"description": "The task for the agent to perform",
		},
		"subagent_type": map[string]any{
			"type":        "string",
			"description": "The type of specialized agent to use",
		},
		"model": map[string]any{
			"type":        "string",
			"description": "Optional model override for this agent",
		},
		"resume": map[string]any{
			"type":        "string",
			"description": "Optional session id to resume from",
		},
		"run_in_background": map[string]any{
			"type":        "boolean",
			"description": "Run this agent in the background and return a task id",
		},
		"max_turns": map[string]any{
			"type":        "integer",
			"description": "Maximum number of agentic turns before stopping",
		},
	}

	return map[string]any{
		"type":       "object",
		"properties": withSpecs(spec),
		"required":   []string{},
	}
}

// withSpecs extends the single-task properties with the parallel form.
func withSpecs(single map[string]any) map[string]any {
	props := make(map[string]any, len(single)+1)
	for k, v := range single {
		props[k] = v
	}
	props["specs"] = map[string]any{
		"type":        "array",
		"description": "Multiple task specs to run concurrently (each with the same fields as a single task)",
		"items": map[string]any{
			"type":       "object",
			"properties": single,
			"required":   []string{"description", "prompt", "subagent_type"},
		},
	}
	return props
}

func (t *TaskTool) SideEffect() SideEffectType { return SideEffectSpawns }

func (t *TaskTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	if t.Spawner == nil {
		return ToolOutput{Content: "Error: task delegation not configured", IsError: true}, nil
	}

	// Parallel form
	if rawSpecs, ok := input["specs"].([]any); ok && len(rawSpecs) > 0 {
		inputs := make([]TaskInput, 0, len(rawSpecs))
		for i, raw := range rawSpecs {
			m, ok := raw.(map[string]any)
			if !ok {
				return ToolOutput{Content: fmt.Sprintf("Error: specs[%d] is not an object", i), IsError: true}, nil
			}
			ti, err := parseTaskInput(m)
			if err != nil {
				return ToolOutput{Content: fmt.Sprintf("Error: specs[%d]: %s", i, err), IsError: true}, nil
			}
			inputs = append(inputs, ti)
		}

		results := t.Spawner.SpawnMany(ctx, inputs)
		var sections []string
		anyErr := false
		for i, res := range results {
			header := fmt.Sprintf("=== Task %d/%d: %s ===", i+1, len(results), inputs[i].Description)
			sections = append(sections, header+"\n"+formatResult(res))
			if res.Err != "" {
				anyErr = true
			}
		}
		return ToolOutput{Content: strings.Join(sections, "\n\n"), IsError: anyErr}, nil
	}

	// Single form
	ti, err := parseTaskInput(input)
	if err != nil {
		return ToolOutput{Content: fmt.Sprintf("Error: %s", err), IsError: true}, nil
	}

	result, err := t.Spawner.Spawn(ctx, ti)
	if err != nil {
		return ToolOutput{Content: fmt.Sprintf("Error: %s", err), IsError: true}, nil
	}
	return ToolOutput{Content: formatResult(result), IsError: result.Err != ""}, nil
}

func parseTaskInput(input map[string]any) (TaskInput, error) {
	ti := TaskInput{}

	var ok bool
	if ti.Description, ok = input["description"].(string); !ok || ti.Description == "" {
		return ti, fmt.Errorf("description is required")
	}
	if ti.Prompt, ok = input["prompt"].(string); !ok || ti.Prompt == "" {
		return ti, fmt.Errorf("prompt is required")
	}
	if ti.AgentType, ok = input["subagent_type"].(string); !ok || ti.AgentType == "" {
		return ti, fmt.Errorf("subagent_type is required")
	}

	if m, ok := input["model"].(string); ok && m != "" {
		ti.Model = &m
	}
	if r, ok := input["resume"].(string); ok && r != "" {
		ti.Resume = &r
	}
	if bg, ok := input["run_in_background"].(bool); ok {
		ti.Background = &bg
	}
	if mt, ok := input["max_turns"].(float64); ok {
		turns := int(mt)
		ti.MaxTurns = &turns
	}

	return ti, nil
}

func formatResult(res TaskResult) string {
	if res.Background {
		msg := fmt.Sprintf("Task started in background. Task ID: %s", res.TaskID)
		if res.LogPath != "" {
			msg += fmt.Sprintf("\nProgress log: %s", res.LogPath)
		}
		msg += "\nUse TaskOutput to retrieve results and TaskStop to cancel."
		return msg
	}

	content := res.Output
	if res.TaskID != "" {
		content += fmt.Sprintf("\n\ntaskId: %s", res.TaskID)
	}
	if res.SessionID != "" {
		content += fmt.Sprintf("\nsessionId: %s (pass as resume to continue)", res.SessionID)
	}
	if res.Cached {
		content += "\n(cached result)"
	}
	if m := res.Metrics; m != nil {
		content += fmt.Sprintf("\n---\nDuration: %.1fs | Turns: %d | Tokens: %d in / %d out",
			m.DurationSecs, m.Turns, m.InputTokens, m.OutputTokens)
	}
	if res.Err != "" {
		content += fmt.Sprintf("\n\nError: %s", res.Err)
	}
	return strings.TrimSpace(content)
}
