package subagent

import "errors"

var (
	// ErrAgentNotFound is returned when no definition matches the requested type.
	ErrAgentNotFound = errors.New("agent type not found")

	// ErrAgentDisabled is returned when the matched definition is disabled.
	ErrAgentDisabled = errors.New("agent type is disabled")

	// ErrDepthExceeded is returned when a delegation would exceed the
	// maximum nesting depth.
	ErrDepthExceeded = errors.New("maximum delegation depth exceeded")

	// ErrSpawnNotAllowed is returned when a definition's tool list does not
	// permit delegating to the requested agent type.
	ErrSpawnNotAllowed = errors.New("agent type not permitted by spawn restriction")
)
