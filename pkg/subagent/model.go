package subagent

import "sync"

// modelAliases maps short names to full model IDs.
var modelAliases = map[string]string{
	"sonnet": "claude-sonnet-4-5-20250929",
	"opus":   "claude-opus-4-5-20250514",
	"haiku":  "claude-haiku-4-5-20251001",
}

var aliasMu sync.RWMutex

// RegisterModelAlias adds or overwrites a model alias at runtime.
func RegisterModelAlias(alias, fullModelID string) {
	aliasMu.Lock()
	defer aliasMu.Unlock()
	modelAliases[alias] = fullModelID
}

// resolveModel determines the model for a subagent.
// Priority: input override > definition > parent default.
func resolveModel(defModel string, inputModel *string, parentModel string) string {
	if inputModel != nil && *inputModel != "" {
		return expandModelAlias(*inputModel)
	}
	if defModel != "" {
		return expandModelAlias(defModel)
	}
	return parentModel
}

// expandModelAlias expands a short alias to its full model ID, returning the
// input unchanged when it is not a known alias.
func expandModelAlias(alias string) string {
	aliasMu.RLock()
	defer aliasMu.RUnlock()
	if full, ok := modelAliases[alias]; ok {
		return full
	}
	return alias
}
