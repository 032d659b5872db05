package subagent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatterData represents the YAML frontmatter fields in an agent .md file.
type frontmatterData struct {
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description"`
	Tools           flexStringList `yaml:"tools"`
	DisallowedTools flexStringList `yaml:"disallowedTools"`
	Model           string         `yaml:"model"`
	MaxTurns        int            `yaml:"maxTurns"`
	PermissionMode  string         `yaml:"permissionMode"`
	Disabled        bool           `yaml:"disabled"`
}

// flexStringList handles YAML that can be either a comma-separated string or
// a list, e.g. "Read, Glob, Grep" or ["Read", "Glob", "Grep"].
type flexStringList []string

func (f *flexStringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*f = list
		return nil
	case yaml.ScalarNode:
		parts := strings.Split(value.Value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		*f = result
		return nil
	default:
		return fmt.Errorf("expected string or list for tools, got YAML kind %d", value.Kind)
	}
}

// splitFrontmatter extracts YAML frontmatter and body from Markdown content.
// Frontmatter is delimited by "---" lines at the start of the file.
func splitFrontmatter(data []byte) (yamlPart []byte, body string) {
	content := string(data)

	if !strings.HasPrefix(content, "---") {
		return nil, content
	}

	rest := content[3:]
	if len(rest) > 0 && rest[0] == '\n' {
		rest = rest[1:]
	} else if len(rest) > 1 && rest[0] == '\r' && rest[1] == '\n' {
		rest = rest[2:]
	}

	endIdx := strings.Index(rest, "\n---")
	if endIdx < 0 {
		return nil, content
	}

	yamlContent := rest[:endIdx]
	remaining := rest[endIdx+4:]
	if len(remaining) > 0 && remaining[0] == '\n' {
		remaining = remaining[1:]
	} else if len(remaining) > 1 && remaining[0] == '\r' && remaining[1] == '\n' {
		remaining = remaining[2:]
	}

	return []byte(yamlContent), remaining
}

// ParseFile reads an agent definition from a Markdown file with YAML
// frontmatter.
func ParseFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agent file %s: %w", path, err)
	}
	return ParseContent(data, path)
}

// ParseContent parses an agent definition from raw content with an
// associated file path.
func ParseContent(data []byte, filePath string) (*Definition, error) {
	yamlPart, body := splitFrontmatter(data)
	if len(yamlPart) == 0 {
		return nil, fmt.Errorf("no frontmatter found in %s", filePath)
	}

	var fm frontmatterData
	if err := yaml.Unmarshal(yamlPart, &fm); err != nil {
		return nil, fmt.Errorf("parsing YAML in %s: %w", filePath, err)
	}

	if fm.Name == "" {
		base := filepath.Base(filePath)
		fm.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if fm.Description == "" {
		return nil, fmt.Errorf("missing required field 'description' in %s", filePath)
	}

	return &Definition{
		Name:            fm.Name,
		Description:     fm.Description,
		Prompt:          strings.TrimSpace(body),
		Tools:           []string(fm.Tools),
		DisallowedTools: []string(fm.DisallowedTools),
		Model:           fm.Model,
		MaxTurns:        fm.MaxTurns,
		PermissionMode:  fm.PermissionMode,
		Disabled:        fm.Disabled,
		FilePath:        filePath,
	}, nil
}
