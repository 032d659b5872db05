// Example program demonstrating delegated subagent tasks.
//
// It wires the full stack — task manager, session store, result cache, and
// agent dispatcher — against a scripted LLM client, so it runs offline:
//
//	go run ./cmd/example/
//
// The parent agent delegates a research question to the built-in
// general-purpose agent, once in the foreground and once in the background,
// then polls the background task and prints its progress log.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jg-phare/warren/pkg/cache"
	"github.com/jg-phare/warren/pkg/llm"
	"github.com/jg-phare/warren/pkg/session"
	"github.com/jg-phare/warren/pkg/subagent"
	"github.com/jg-phare/warren/pkg/task"
	"github.com/jg-phare/warren/pkg/tools"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := run(log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(log *logrus.Logger) error {
	workDir, err := os.MkdirTemp("", "warren-example-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	// Each scripted response is one subagent turn.
	client := llm.NewScriptedClient(
		llm.Response{
			Text:       "Go's errgroup package runs a group of goroutines and collects the first error.",
			StopReason: "end_turn",
			Usage:      llm.Usage{InputTokens: 42, OutputTokens: 18},
		},
		llm.Response{
			Text:       "Background check complete: all three services are healthy.",
			StopReason: "end_turn",
			Usage:      llm.Usage{InputTokens: 30, OutputTokens: 12},
		},
	)

	opts := task.DefaultOptions()
	opts.LogDir = filepath.Join(workDir, "task-logs")
	opts.Logger = log
	manager, err := task.NewManager(opts)
	if err != nil {
		return err
	}
	defer manager.Shutdown(context.Background())

	sessions, err := session.Open(filepath.Join(workDir, "sessions.db"))
	if err != nil {
		return err
	}
	defer sessions.Close()

	dispatcher, err := subagent.NewDispatcher(subagent.DispatcherOpts{
		Client:         client,
		ParentRegistry: tools.NewRegistry(),
		ParentModel:    "claude-sonnet-4-5-20250929",
		Manager:        manager,
		Sessions:       sessions,
		Cache:          cache.New(cache.DefaultCapacity, cache.DefaultTTL),
		Logger:         log,
	})
	if err != nil {
		return err
	}

	taskTool := &tools.TaskTool{Spawner: dispatcher}
	outputTool := &tools.TaskOutputTool{Manager: manager}

	ctx := context.Background()

	// Foreground delegation: blocks until the subagent finishes.
	fmt.Println("--- Foreground delegation ---")
	out, err := taskTool.Execute(ctx, map[string]any{
		"description":   "explain errgroup",
		"prompt":        "Explain what golang.org/x/sync/errgroup does in one sentence.",
		"subagent_type": "general-purpose",
	})
	if err != nil {
		return err
	}
	fmt.Println(out.Content)

	// Background delegation: returns a task id immediately.
	fmt.Println("\n--- Background delegation ---")
	out, err = taskTool.Execute(ctx, map[string]any{
		"description":       "check services",
		"prompt":            "Check the health of the three core services.",
		"subagent_type":     "general-purpose",
		"run_in_background": true,
	})
	if err != nil {
		return err
	}
	fmt.Println(out.Content)

	// Poll for the result.
	snaps := manager.List()
	if len(snaps) == 0 {
		return fmt.Errorf("no background task registered")
	}
	id := snaps[0].ID

	fmt.Println("\n--- TaskOutput ---")
	out, err = outputTool.Execute(ctx, map[string]any{
		"task_id":    id,
		"timeout_ms": float64(5000),
	})
	if err != nil {
		return err
	}
	fmt.Println(out.Content)

	// Show the structured progress log the background task wrote.
	fmt.Println("\n--- Task log ---")
	records, err := task.ReadLog(snaps[0].LogPath)
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Printf("seq=%d event=%s status=%s turns=%d text=%q\n",
			rec.Seq, rec.Event, rec.Status, rec.Turns, rec.Text)
	}

	// Give the manager a moment to settle before teardown.
	time.Sleep(50 * time.Millisecond)
	return nil
}
