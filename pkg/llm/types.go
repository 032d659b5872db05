package llm

// ChatMessage is one entry in a conversation history.
type ChatMessage struct {
	Role       string     `json:"role"` // "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant messages requesting tool use
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool result messages
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Usage counts tokens consumed by one or more completions.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage record into this one.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// CompletionRequest is one turn's worth of input to the completion service.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []ChatMessage
	Tools        []ToolDefinition
	MaxTokens    int
}

// Response is a fully accumulated model turn.
type Response struct {
	Model      string
	Text       string
	ToolCalls  []ToolCall
	StopReason string // "end_turn", "tool_use", "max_tokens"
	Usage      Usage
}

// AssistantMessage converts a response into a history entry.
func (r *Response) AssistantMessage() ChatMessage {
	return ChatMessage{
		Role:      "assistant",
		Content:   r.Text,
		ToolCalls: r.ToolCalls,
	}
}
