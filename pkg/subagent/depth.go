package subagent

import "context"

// DefaultMaxDepth is the delegation depth ceiling: a root conversation is at
// depth 0 and may delegate three hops deep.
const DefaultMaxDepth = 3

type depthKey struct{}

// WithDepth returns a context recording the delegation depth an execution
// runs at. Depth rides the tool-call context, not the call stack, so nested
// foreground and background delegations both see the correct value.
func WithDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

// DepthFromContext reads the delegation depth, defaulting to 0 (root).
func DepthFromContext(ctx context.Context) int {
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}
