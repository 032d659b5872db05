package agent

import (
	"context"

	"github.com/jg-phare/warren/pkg/llm"
)

func (e *Execution) runLoop(ctx context.Context, prompt string, config *Config) {
	defer close(e.done)

	// 1. Seed history: resumed sessions carry prior messages, fresh
	// executions start from the task prompt alone.
	e.mu.Lock()
	e.state.Messages = append(e.state.Messages, config.History...)
	e.state.Messages = append(e.state.Messages, llm.ChatMessage{Role: "user", Content: prompt})
	e.mu.Unlock()

	for {
		// 2. Checkpoint: before starting a new turn.
		if e.checkCancelled(ctx) {
			return
		}

		e.mu.Lock()
		turns := e.state.TurnCount
		messages := append([]llm.ChatMessage(nil), e.state.Messages...)
		e.mu.Unlock()

		if config.MaxTurns > 0 && turns >= config.MaxTurns {
			e.finish(ExitMaxTurns, nil)
			return
		}

		// 3. Build and dispatch the completion request.
		req := llm.CompletionRequest{
			Model:        config.Model,
			SystemPrompt: config.SystemPrompt,
			Messages:     messages,
			MaxTokens:    config.MaxTokens,
		}
		if config.Registry != nil {
			req.Tools = config.Registry.Definitions()
		}

		stream, err := config.Client.Complete(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				e.finish(ExitInterrupted, nil)
				return
			}
			e.finish(ExitError, err)
			return
		}

		// 4. Checkpoint: every streamed chunk passes through Accumulate's
		// per-chunk ctx check.
		resp, err := llm.Accumulate(ctx, stream, nil)
		if err != nil {
			if ctx.Err() != nil {
				e.finish(ExitInterrupted, nil)
				return
			}
			e.finish(ExitError, err)
			return
		}

		// 5. Record the turn.
		e.mu.Lock()
		e.state.Messages = append(e.state.Messages, resp.AssistantMessage())
		e.state.TurnCount++
		e.state.TotalUsage.Add(resp.Usage)
		e.text.WriteString(resp.Text)
		turn := e.state.TurnCount
		usage := e.state.TotalUsage
		e.mu.Unlock()

		if config.OnProgress != nil {
			config.OnProgress(Progress{Turn: turn, Usage: usage, Text: resp.Text})
		}

		// 6. Act on the stop reason.
		switch resp.StopReason {
		case "tool_use":
			if len(resp.ToolCalls) == 0 {
				// Degenerate response; treat as end of turn.
				e.finish(ExitEndTurn, nil)
				return
			}
			results, interrupted := e.executeTools(ctx, resp.ToolCalls, config)
			e.mu.Lock()
			e.state.Messages = append(e.state.Messages, results...)
			e.mu.Unlock()
			if interrupted {
				e.finish(ExitInterrupted, nil)
				return
			}

		case "max_tokens":
			e.finish(ExitMaxTokens, nil)
			return

		default: // "end_turn" and anything unrecognized
			e.finish(ExitEndTurn, nil)
			return
		}
	}
}

// checkCancelled returns true and finalizes the state when ctx is done.
func (e *Execution) checkCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		e.finish(ExitInterrupted, nil)
		return true
	default:
		return false
	}
}

func (e *Execution) finish(reason ExitReason, err error) {
	e.mu.Lock()
	e.state.ExitReason = reason
	e.state.Err = err
	e.mu.Unlock()
}
