package subagent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jg-phare/warren/pkg/llm"
)

func TestWatchReloadsOnFileChange(t *testing.T) {
	projectRoot := t.TempDir()
	agentsDir := filepath.Join(projectRoot, ".warren", "agents")
	require.NoError(t, os.MkdirAll(agentsDir, 0o755))

	f := newFixture(t, llm.NewScriptedClient(), func(o *DispatcherOpts) {
		o.Loader = NewLoader(projectRoot, filepath.Join(t.TempDir(), "unused"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchDone := make(chan error, 1)
	go func() { watchDone <- f.dispatcher.Watch(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	_, ok := f.dispatcher.Get("hotload")
	require.False(t, ok)

	content := "---\ndescription: added while watching\n---\nprompt"
	require.NoError(t, os.WriteFile(filepath.Join(agentsDir, "hotload.md"), []byte(content), 0o644))

	require.Eventually(t, func() bool {
		_, ok := f.dispatcher.Get("hotload")
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	// Removal drops the definition on the next debounce.
	require.NoError(t, os.Remove(filepath.Join(agentsDir, "hotload.md")))
	require.Eventually(t, func() bool {
		_, ok := f.dispatcher.Get("hotload")
		return !ok
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-watchDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on context cancellation")
	}
}

func TestWatchWithoutLoaderBlocksUntilCancel(t *testing.T) {
	f := newFixture(t, llm.NewScriptedClient(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.dispatcher.Watch(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return")
	}
}
