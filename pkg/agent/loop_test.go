package agent

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jg-phare/warren/pkg/llm"
	"github.com/jg-phare/warren/pkg/tools"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fnTool adapts a function into a tool for tests.
type fnTool struct {
	name string
	fn   func(ctx context.Context, input map[string]any) (tools.ToolOutput, error)
}

func (t *fnTool) Name() string                     { return t.name }
func (t *fnTool) Description() string              { return t.name + " test tool" }
func (t *fnTool) InputSchema() map[string]any      { return map[string]any{"type": "object"} }
func (t *fnTool) SideEffect() tools.SideEffectType { return tools.SideEffectNone }
func (t *fnTool) Execute(ctx context.Context, input map[string]any) (tools.ToolOutput, error) {
	return t.fn(ctx, input)
}

// blockingClient never produces a response; Complete waits for ctx.
type blockingClient struct {
	started chan struct{}
	once    sync.Once
}

func (c *blockingClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Stream, error) {
	c.once.Do(func() { close(c.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func testConfig(client llm.Client) Config {
	cfg := DefaultConfig()
	cfg.Client = client
	cfg.Registry = tools.NewRegistry()
	return cfg
}

func waitResult(t *testing.T, e *Execution) Result {
	t.Helper()
	select {
	case <-e.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("execution did not finish in time")
	}
	return e.Result()
}

func TestRunSingleTurn(t *testing.T) {
	client := llm.NewScriptedClient(llm.Response{
		Text:       "four",
		StopReason: "end_turn",
		Usage:      llm.Usage{InputTokens: 12, OutputTokens: 3},
	})

	exec := Run(context.Background(), "what is 2+2?", testConfig(client))
	res := waitResult(t, exec)

	assert.Equal(t, ExitEndTurn, res.ExitReason)
	assert.Equal(t, "four", res.Text)
	assert.Equal(t, 1, res.Turns)
	assert.Equal(t, 12, res.Usage.InputTokens)
	assert.NoError(t, res.Err)
	assert.NotEmpty(t, exec.SessionID())

	// User prompt plus assistant reply.
	require.Len(t, res.History, 2)
	assert.Equal(t, "user", res.History[0].Role)
	assert.Equal(t, "what is 2+2?", res.History[0].Content)
	assert.Equal(t, "assistant", res.History[1].Role)
}

func TestRunToolUseTurn(t *testing.T) {
	client := llm.NewScriptedClient(
		llm.Response{
			Text:       "checking",
			StopReason: "tool_use",
			ToolCalls:  []llm.ToolCall{{ID: "call-1", Name: "echo", Input: map[string]any{"msg": "hi"}}},
			Usage:      llm.Usage{InputTokens: 10, OutputTokens: 5},
		},
		llm.Response{
			Text:       "the tool said hi",
			StopReason: "end_turn",
			Usage:      llm.Usage{InputTokens: 20, OutputTokens: 6},
		},
	)

	cfg := testConfig(client)
	cfg.Registry.Register(&fnTool{name: "echo", fn: func(ctx context.Context, input map[string]any) (tools.ToolOutput, error) {
		return tools.ToolOutput{Content: fmt.Sprintf("echo: %v", input["msg"])}, nil
	}})

	exec := Run(context.Background(), "use the echo tool", cfg)
	res := waitResult(t, exec)

	assert.Equal(t, ExitEndTurn, res.ExitReason)
	assert.Equal(t, 2, res.Turns)
	assert.Equal(t, 30, res.Usage.InputTokens)

	// user, assistant(tool_use), tool result, assistant(end_turn)
	require.Len(t, res.History, 4)
	assert.Equal(t, "tool", res.History[2].Role)
	assert.Equal(t, "call-1", res.History[2].ToolCallID)
	assert.Equal(t, "echo: hi", res.History[2].Content)
}

func TestToolErrorsBecomeToolResults(t *testing.T) {
	client := llm.NewScriptedClient(
		llm.Response{
			StopReason: "tool_use",
			ToolCalls: []llm.ToolCall{
				{ID: "c-1", Name: "broken", Input: map[string]any{}},
				{ID: "c-2", Name: "nonexistent", Input: map[string]any{}},
			},
		},
		llm.Response{Text: "recovered", StopReason: "end_turn"},
	)

	cfg := testConfig(client)
	cfg.Logger = quietLogger()
	cfg.Registry.Register(&fnTool{name: "broken", fn: func(ctx context.Context, input map[string]any) (tools.ToolOutput, error) {
		return tools.ToolOutput{}, fmt.Errorf("disk on fire")
	}})

	res := waitResult(t, Run(context.Background(), "go", cfg))

	assert.Equal(t, ExitEndTurn, res.ExitReason)
	assert.NoError(t, res.Err)

	require.Len(t, res.History, 5)
	assert.Contains(t, res.History[2].Content, "disk on fire")
	assert.Contains(t, res.History[3].Content, `unknown tool "nonexistent"`)
}

func TestRunMaxTurns(t *testing.T) {
	// Every turn asks for another tool call; the cap stops the loop.
	spin := llm.Response{
		StopReason: "tool_use",
		ToolCalls:  []llm.ToolCall{{ID: "c", Name: "echo", Input: map[string]any{}}},
	}
	client := llm.NewScriptedClient(spin, spin, spin)

	cfg := testConfig(client)
	cfg.MaxTurns = 2
	cfg.Registry.Register(&fnTool{name: "echo", fn: func(ctx context.Context, input map[string]any) (tools.ToolOutput, error) {
		return tools.ToolOutput{Content: "ok"}, nil
	}})

	res := waitResult(t, Run(context.Background(), "spin", cfg))

	assert.Equal(t, ExitMaxTurns, res.ExitReason)
	assert.Equal(t, 2, res.Turns)
	assert.Equal(t, 2, client.Calls())
}

func TestRunMaxTokens(t *testing.T) {
	client := llm.NewScriptedClient(llm.Response{Text: "truncated outp", StopReason: "max_tokens"})

	res := waitResult(t, Run(context.Background(), "go", testConfig(client)))
	assert.Equal(t, ExitMaxTokens, res.ExitReason)
	assert.Equal(t, "truncated outp", res.Text)
}

// ctxCaptureClient records the context the loop drives completions with.
type ctxCaptureClient struct {
	inner llm.Client

	mu  sync.Mutex
	ctx context.Context
}

func (c *ctxCaptureClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Stream, error) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
	return c.inner.Complete(ctx, req)
}

func (c *ctxCaptureClient) captured() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func TestRunReleasesContextOnCompletion(t *testing.T) {
	client := &ctxCaptureClient{inner: llm.NewScriptedClient(llm.Response{Text: "ok", StopReason: "end_turn"})}

	res := waitResult(t, Run(context.Background(), "go", testConfig(client)))
	require.Equal(t, ExitEndTurn, res.ExitReason)

	// The loop's child context is cancelled once the run finishes, even
	// though Interrupt was never called; a finished execution leaves
	// nothing registered on the parent.
	require.Eventually(t, func() bool {
		ctx := client.captured()
		return ctx != nil && ctx.Err() != nil
	}, time.Second, time.Millisecond)
}

func TestInterruptWhileWaitingOnCompletion(t *testing.T) {
	client := &blockingClient{started: make(chan struct{})}

	exec := Run(context.Background(), "go", testConfig(client))
	<-client.started
	exec.Interrupt()

	res := waitResult(t, exec)
	assert.Equal(t, ExitInterrupted, res.ExitReason)
	assert.NoError(t, res.Err)
	assert.True(t, exec.Interrupted())
}

func TestParentContextCancelPropagates(t *testing.T) {
	client := &blockingClient{started: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	exec := Run(ctx, "go", testConfig(client))
	<-client.started
	cancel()

	res := waitResult(t, exec)
	assert.Equal(t, ExitInterrupted, res.ExitReason)
	assert.False(t, exec.Interrupted()) // external cancel, not Interrupt
}

func TestCancellationBetweenToolCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	client := llm.NewScriptedClient(llm.Response{
		StopReason: "tool_use",
		ToolCalls: []llm.ToolCall{
			{ID: "c-1", Name: "trip", Input: map[string]any{}},
			{ID: "c-2", Name: "trip", Input: map[string]any{}},
		},
	})

	cfg := testConfig(client)
	cfg.Registry.Register(&fnTool{name: "trip", fn: func(ctx context.Context, input map[string]any) (tools.ToolOutput, error) {
		cancel() // cancellation lands while the batch is mid-flight
		return tools.ToolOutput{Content: "ran"}, nil
	}})

	res := waitResult(t, Run(ctx, "go", cfg))

	assert.Equal(t, ExitInterrupted, res.ExitReason)

	// First call ran; the second was answered with a cancellation notice.
	require.Len(t, res.History, 4)
	assert.Equal(t, "ran", res.History[2].Content)
	assert.Equal(t, "Error: operation cancelled", res.History[3].Content)
	assert.Equal(t, "c-2", res.History[3].ToolCallID)
}

func TestResumeSeedsHistory(t *testing.T) {
	var seen llm.CompletionRequest
	client := llm.NewScriptedClient(llm.Response{Text: "continuing", StopReason: "end_turn"})
	client.OnComplete = func(req llm.CompletionRequest) { seen = req }

	cfg := testConfig(client)
	cfg.History = []llm.ChatMessage{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}

	res := waitResult(t, Run(context.Background(), "follow up", cfg))

	require.Len(t, seen.Messages, 3)
	assert.Equal(t, "earlier question", seen.Messages[0].Content)
	assert.Equal(t, "follow up", seen.Messages[2].Content)
	assert.Len(t, res.History, 4)
}

func TestOnProgressPerTurn(t *testing.T) {
	client := llm.NewScriptedClient(
		llm.Response{
			Text:       "step one",
			StopReason: "tool_use",
			ToolCalls:  []llm.ToolCall{{ID: "c", Name: "echo", Input: map[string]any{}}},
			Usage:      llm.Usage{OutputTokens: 4},
		},
		llm.Response{Text: "step two", StopReason: "end_turn", Usage: llm.Usage{OutputTokens: 5}},
	)

	var mu sync.Mutex
	var reports []Progress
	cfg := testConfig(client)
	cfg.Registry.Register(&fnTool{name: "echo", fn: func(ctx context.Context, input map[string]any) (tools.ToolOutput, error) {
		return tools.ToolOutput{Content: "ok"}, nil
	}})
	cfg.OnProgress = func(p Progress) {
		mu.Lock()
		reports = append(reports, p)
		mu.Unlock()
	}

	waitResult(t, Run(context.Background(), "go", cfg))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].Turn)
	assert.Equal(t, "step one", reports[0].Text)
	assert.Equal(t, 2, reports[1].Turn)
	assert.Equal(t, 9, reports[1].Usage.OutputTokens) // cumulative
}
