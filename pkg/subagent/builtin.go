package subagent

// BuiltInAgents returns the default set of built-in agent definitions.
func BuiltInAgents() map[string]Definition {
	defs := make(map[string]Definition)

	// general-purpose: inherits all parent tools
	defs["general-purpose"] = Definition{
		Name:        "general-purpose",
		Description: "General-purpose agent for researching complex questions, searching for code, and executing multi-step tasks.",
		Prompt: "You are an autonomous agent working on a delegated task. Work the task to completion " +
			"and return a single, self-contained report: the caller sees nothing but your final message.",
		Source: SourceBuiltIn,
	}

	// explore: fast read-only search agent
	defs["explore"] = Definition{
		Name:        "explore",
		Description: "Fast agent specialized for exploring codebases without modifying them.",
		Prompt: "You are a codebase exploration specialist. Locate the relevant files and symbols " +
			"and report precise paths and findings. Never modify anything.",
		Model:           "haiku",
		DisallowedTools: []string{"Write", "Edit", "Task"},
		Source:          SourceBuiltIn,
	}

	// plan: architecture agent, no write tools
	defs["plan"] = Definition{
		Name:        "plan",
		Description: "Software architect agent for designing implementation plans.",
		Prompt: "You are a software architect. Study the problem and produce a concrete, ordered " +
			"implementation plan. Do not write code or modify files.",
		DisallowedTools: []string{"Write", "Edit", "Task"},
		Source:          SourceBuiltIn,
	}

	return defs
}
