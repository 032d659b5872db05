package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Execution is a handle to a running or finished loop. Callers wait on Done
// or Wait, interrupt via Interrupt, and read the outcome with Result.
type Execution struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu          sync.Mutex
	state       *LoopState
	text        strings.Builder
	interrupted bool
}

// Run starts the loop in a goroutine and returns immediately. The loop
// observes ctx at every suspension point: before each turn, before each tool
// call, and per streamed chunk.
func Run(ctx context.Context, prompt string, config Config) *Execution {
	loopCtx, cancel := context.WithCancel(ctx)

	state := &LoopState{SessionID: config.SessionID}
	if state.SessionID == "" {
		state.SessionID = uuid.New().String()
	}

	e := &Execution{
		done:   make(chan struct{}),
		cancel: cancel,
		state:  state,
	}

	// Release the child context on every exit path, not just Interrupt,
	// so finished executions do not stay registered on the parent.
	go func() {
		defer cancel()
		e.runLoop(loopCtx, prompt, &config)
	}()

	return e
}

// Done is closed when the loop finishes.
func (e *Execution) Done() <-chan struct{} { return e.done }

// Wait blocks until the loop completes.
func (e *Execution) Wait() { <-e.done }

// Interrupt requests the loop to stop at its next cancellation checkpoint.
func (e *Execution) Interrupt() {
	e.mu.Lock()
	e.interrupted = true
	e.mu.Unlock()
	e.cancel()
}

// Interrupted reports whether Interrupt was called.
func (e *Execution) Interrupted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interrupted
}

// SessionID returns the session identifier for this execution.
func (e *Execution) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.SessionID
}

// Snapshot returns a consistent view of the execution's progress.
func (e *Execution) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	running := true
	select {
	case <-e.done:
		running = false
	default:
	}

	return Snapshot{
		SessionID: e.state.SessionID,
		Turns:     e.state.TurnCount,
		Usage:     e.state.TotalUsage,
		Running:   running,
	}
}

// Result returns the final outcome. It blocks until the loop has finished.
func (e *Execution) Result() Result {
	<-e.done

	e.mu.Lock()
	defer e.mu.Unlock()

	out := Result{
		Text:       e.text.String(),
		Turns:      e.state.TurnCount,
		Usage:      e.state.TotalUsage,
		ExitReason: e.state.ExitReason,
		Err:        e.state.Err,
	}
	out.History = append(out.History, e.state.Messages...)
	return out
}
