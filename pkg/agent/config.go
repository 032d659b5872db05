package agent

import (
	"github.com/sirupsen/logrus"

	"github.com/jg-phare/warren/pkg/llm"
	"github.com/jg-phare/warren/pkg/tools"
)

// Progress is an incremental report from a running execution. Turn and Usage
// are cumulative; Text carries only the newly produced assistant text.
type Progress struct {
	Turn  int
	Usage llm.Usage
	Text  string
}

// Config holds the full configuration for one autonomous conversation loop.
type Config struct {
	// Model and prompt
	Model        string
	SystemPrompt string

	// Execution limits
	MaxTurns  int // 0 = unlimited
	MaxTokens int // per-completion output cap

	// Identity
	AgentType string
	SessionID string
	Depth     int // delegation depth this execution runs at (root = 0)

	// Seed history. When non-empty the prompt message is appended to it
	// (resumed sessions); when empty the history starts from the prompt.
	History []llm.ChatMessage

	// Dependencies (injected)
	Client   llm.Client
	Registry *tools.Registry

	// OnProgress, if set, is invoked after every completed turn and for each
	// streamed text chunk. Must be safe for calls from the loop goroutine.
	OnProgress func(Progress)

	Logger *logrus.Logger
}

// DefaultConfig returns a Config with sensible defaults. The caller must
// still provide Client and Registry.
func DefaultConfig() Config {
	return Config{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTurns:  100,
		MaxTokens: 16384,
		Logger:    logrus.StandardLogger(),
	}
}

func (c *Config) logger() *logrus.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}
