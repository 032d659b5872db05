package subagent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContent(t *testing.T) {
	content := `---
name: code-reviewer
description: Reviews code for correctness and style
tools:
  - Read
  - Grep
model: haiku
maxTurns: 15
---

You are a meticulous code reviewer. Focus on races and error handling.`

	def, err := ParseContent([]byte(content), "agents/code-reviewer.md")
	require.NoError(t, err)

	assert.Equal(t, "code-reviewer", def.Name)
	assert.Equal(t, "Reviews code for correctness and style", def.Description)
	assert.Equal(t, []string{"Read", "Grep"}, def.Tools)
	assert.Equal(t, "haiku", def.Model)
	assert.Equal(t, 15, def.MaxTurns)
	assert.Contains(t, def.Prompt, "meticulous code reviewer")
	assert.Equal(t, "agents/code-reviewer.md", def.FilePath)
}

func TestParseContentCommaSeparatedTools(t *testing.T) {
	content := `---
description: comma form
tools: Read, Grep, Task(explore)
disallowedTools: Write
---
body`

	def, err := ParseContent([]byte(content), "agents/comma.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"Read", "Grep", "Task(explore)"}, def.Tools)
	assert.Equal(t, []string{"Write"}, def.DisallowedTools)
}

func TestParseContentNameFromFilename(t *testing.T) {
	content := `---
description: unnamed agent
---
prompt body`

	def, err := ParseContent([]byte(content), "/some/dir/security-audit.md")
	require.NoError(t, err)
	assert.Equal(t, "security-audit", def.Name)
}

func TestParseContentErrors(t *testing.T) {
	t.Run("missing description", func(t *testing.T) {
		_, err := ParseContent([]byte("---\nname: x\n---\nbody"), "x.md")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "description")
	})

	t.Run("no frontmatter", func(t *testing.T) {
		_, err := ParseContent([]byte("just a prompt"), "x.md")
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := ParseContent([]byte("---\ntools: {broken\n---\nbody"), "x.md")
		assert.Error(t, err)
	})
}

func TestLoaderProjectOverridesUser(t *testing.T) {
	userDir := t.TempDir()
	projectRoot := t.TempDir()
	projectDir := filepath.Join(projectRoot, ".warren", "agents")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))

	write := func(dir, name, desc string) {
		content := "---\ndescription: " + desc + "\n---\nprompt"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".md"), []byte(content), 0o644))
	}
	write(userDir, "helper", "user helper")
	write(userDir, "auditor", "user auditor")
	write(projectDir, "helper", "project helper")

	// Unparseable files are skipped, not fatal.
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "broken.md"), []byte("no frontmatter"), 0o644))

	loader := NewLoader(projectRoot, userDir)
	defs, err := loader.LoadAll()
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "project helper", defs["helper"].Description)
	assert.Equal(t, SourceProject, defs["helper"].Source)
	assert.Equal(t, SourceUser, defs["auditor"].Source)
}

func TestResolveModelPrecedence(t *testing.T) {
	override := "opus"
	assert.Equal(t, "claude-opus-4-5-20250514", resolveModel("haiku", &override, "parent-model"))
	assert.Equal(t, "claude-haiku-4-5-20251001", resolveModel("haiku", nil, "parent-model"))
	assert.Equal(t, "parent-model", resolveModel("", nil, "parent-model"))

	// Unknown names pass through unchanged.
	assert.Equal(t, "my-custom-model", resolveModel("my-custom-model", nil, "parent-model"))
}

func TestRegisterModelAlias(t *testing.T) {
	RegisterModelAlias("testalias", "full-test-model-id")
	assert.Equal(t, "full-test-model-id", expandModelAlias("testalias"))
}
