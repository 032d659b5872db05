package subagent

import (
	"os"
	"path/filepath"
	"strings"
)

// Loader discovers and loads agent definitions from the filesystem.
type Loader struct {
	projectDir string // <project>/.warren/agents
	userDir    string // ~/.warren/agents
}

// NewLoader creates a Loader scanning the project and user agent
// directories. userDir defaults to ~/.warren/agents when empty.
func NewLoader(cwd, userDir string) *Loader {
	if userDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			userDir = filepath.Join(home, ".warren", "agents")
		}
	}
	return &Loader{
		projectDir: filepath.Join(cwd, ".warren", "agents"),
		userDir:    userDir,
	}
}

// Dirs returns the directories this loader scans, for watchers.
func (l *Loader) Dirs() []string {
	var dirs []string
	if l.userDir != "" {
		dirs = append(dirs, l.userDir)
	}
	dirs = append(dirs, l.projectDir)
	return dirs
}

// LoadAll discovers all file-based agent definitions. Project agents
// override user agents of the same name.
func (l *Loader) LoadAll() (map[string]Definition, error) {
	result := make(map[string]Definition)

	if l.userDir != "" {
		for name, def := range l.scanDir(l.userDir, SourceUser, 20) {
			result[name] = def
		}
	}
	for name, def := range l.scanDir(l.projectDir, SourceProject, 30) {
		result[name] = def
	}

	return result, nil
}

// scanDir reads all .md files from a directory. Missing directories and
// unparseable files are skipped.
func (l *Loader) scanDir(dir string, source Source, priority int) map[string]Definition {
	result := make(map[string]Definition)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return result
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		def, err := ParseFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		def.Source = source
		def.Priority = priority
		result[def.Name] = *def
	}

	return result
}
