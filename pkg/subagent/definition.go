package subagent

// Source identifies where an agent definition came from.
type Source int

const (
	SourceBuiltIn Source = iota // hard-coded in Go
	SourceConfig                // supplied programmatically at construction
	SourceUser                  // user-level agents directory
	SourceProject               // project-level agents directory
)

// String returns a human-readable label for the source.
func (s Source) String() string {
	switch s {
	case SourceBuiltIn:
		return "built-in"
	case SourceConfig:
		return "config"
	case SourceUser:
		return "user"
	case SourceProject:
		return "project"
	default:
		return "unknown"
	}
}

// Definition is a fully resolved agent configuration: a closed, fixed-shape
// record regardless of whether the agent is built-in or user-defined.
type Definition struct {
	Name            string
	Description     string
	Prompt          string   // system prompt body
	Tools           []string // allow-list; empty = inherit all parent tools
	DisallowedTools []string
	Model           string // model or alias; empty = inherit parent model
	MaxTurns        int    // 0 = engine default
	PermissionMode  string
	Disabled        bool

	// Loader metadata
	Source   Source
	Priority int    // higher overrides lower on name collision
	FilePath string // source file path (empty for built-in/config)
}
