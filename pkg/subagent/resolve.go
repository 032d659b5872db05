package subagent

import "strings"

// Resolve merges agent definitions from multiple sources. On a name
// collision the definition with the higher priority wins; equal priority
// favors the later source.
func Resolve(builtIn, config, fileBased map[string]Definition) map[string]Definition {
	result := make(map[string]Definition)

	for name, def := range builtIn {
		result[name] = def
	}
	for name, def := range config {
		def.Source = SourceConfig
		if def.Priority == 0 {
			def.Priority = 5
		}
		result[name] = def
	}
	for name, def := range fileBased {
		if existing, ok := result[name]; ok && def.Priority < existing.Priority {
			continue
		}
		result[name] = def
	}

	return result
}

// SpawnRestriction describes which agent types a definition may delegate to.
type SpawnRestriction struct {
	Unrestricted bool     // true = any agent type
	AllowedTypes []string // specific agent types (when Unrestricted is false)
}

// Allows reports whether the restriction permits spawning the given type.
// A nil restriction means the definition carries no Task entry at all and
// may not delegate.
func (r *SpawnRestriction) Allows(agentType string) bool {
	if r == nil {
		return false
	}
	if r.Unrestricted {
		return true
	}
	for _, t := range r.AllowedTypes {
		if t == agentType {
			return true
		}
	}
	return false
}

// parseSpawnRestriction extracts Task / Task(type1,type2) entries from a
// tools list. Returns the parsed restriction (nil when no Task entry is
// present) and the remaining plain tool names.
func parseSpawnRestriction(tools []string) (*SpawnRestriction, []string) {
	var remaining []string
	var allowedTypes []string
	hasTask := false

	for _, t := range tools {
		t = strings.TrimSpace(t)
		switch {
		case t == "Task":
			hasTask = true
		case strings.HasPrefix(t, "Task(") && strings.HasSuffix(t, ")"):
			hasTask = true
			for _, typ := range strings.Split(t[5:len(t)-1], ",") {
				if typ = strings.TrimSpace(typ); typ != "" {
					allowedTypes = append(allowedTypes, typ)
				}
			}
		default:
			remaining = append(remaining, t)
		}
	}

	if !hasTask {
		return nil, remaining
	}
	if len(allowedTypes) == 0 {
		return &SpawnRestriction{Unrestricted: true}, remaining
	}
	return &SpawnRestriction{AllowedTypes: allowedTypes}, remaining
}

// resolveTools determines the final tool set for a subagent. A non-empty
// allow-list is intersected with the parent's tools; otherwise all parent
// tools are inherited. Disallowed tools are then removed.
func resolveTools(allowed, disallowed, parentTools []string) []string {
	var base []string

	if len(allowed) > 0 {
		parentSet := toSet(parentTools)
		for _, t := range allowed {
			if parentSet[t] {
				base = append(base, t)
			}
		}
	} else {
		base = append(base, parentTools...)
	}

	if len(disallowed) > 0 {
		disallowedSet := toSet(disallowed)
		var kept []string
		for _, t := range base {
			if !disallowedSet[t] {
				kept = append(kept, t)
			}
		}
		base = kept
	}

	return base
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}
