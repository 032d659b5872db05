package agent

import "github.com/jg-phare/warren/pkg/llm"

// ExitReason describes why the loop terminated.
type ExitReason string

const (
	ExitEndTurn     ExitReason = "end_turn"
	ExitMaxTurns    ExitReason = "max_turns"
	ExitMaxTokens   ExitReason = "max_tokens"
	ExitInterrupted ExitReason = "interrupted"
	ExitError       ExitReason = "error"
)

// LoopState tracks the mutable state of a running loop. Guarded by the
// owning Execution's mutex.
type LoopState struct {
	SessionID  string
	Messages   []llm.ChatMessage
	TurnCount  int
	TotalUsage llm.Usage
	ExitReason ExitReason
	Err        error
}

// Result is the final outcome of an execution.
type Result struct {
	Text       string // concatenated assistant text across turns
	Turns      int
	Usage      llm.Usage
	ExitReason ExitReason
	History    []llm.ChatMessage // full conversation, usable to seed a resume
	Err        error             // non-nil when ExitReason is ExitError
}

// Snapshot is a consistent read of an in-flight execution.
type Snapshot struct {
	SessionID string
	Turns     int
	Usage     llm.Usage
	Running   bool
}
