package task

import (
	"context"
	"sync"
	"time"

	"github.com/jg-phare/warren/pkg/llm"
)

// Status is the lifecycle state of a task. Transitions are strictly forward:
// pending → running → one of the terminal states.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// MarshalJSON encodes the status as its string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Progress is an incremental update reported by the executor while a task
// runs. Turns and Usage are cumulative; Text carries only new output.
type Progress struct {
	Turns int
	Usage llm.Usage
	Text  string
}

// Result is the final outcome of a task.
type Result struct {
	Text     string
	Reason   string // human-readable reason for failure/cancellation, "" on success
	Turns    int
	Usage    llm.Usage
	Duration time.Duration
}

// Task is the unit of schedulable work. All mutable fields are guarded by mu;
// readers go through Snapshot for a consistent view.
type Task struct {
	id        string
	agentType string
	depth     int
	logPath   string

	// Execution context and its cancel func are allocated at creation,
	// before the task is visible to any other goroutine, and never
	// reassigned. A cancel latched while the task is still pending is
	// therefore already delivered when the runner eventually starts.
	ctx    context.Context
	cancel context.CancelFunc

	done chan struct{} // closed when the runner goroutine returns

	mu              sync.Mutex
	status          Status
	startedAt       time.Time
	completedAt     time.Time
	turns           int
	usage           llm.Usage
	cancelRequested bool
	result          *Result
	warnings        []string
}

// Snapshot is a consistent, immutable view of a task.
type Snapshot struct {
	ID              string
	AgentType       string
	Depth           int
	Status          Status
	StartedAt       time.Time
	CompletedAt     time.Time
	Turns           int
	Usage           llm.Usage
	CancelRequested bool
	LogPath         string
	Result          *Result
	Warnings        []string
}

func (t *Task) ID() string        { return t.id }
func (t *Task) AgentType() string { return t.agentType }
func (t *Task) Depth() int        { return t.depth }
func (t *Task) LogPath() string   { return t.logPath }

// Done is closed once the task's runner has returned. Forced cancellation
// (grace period elapsed) marks the task terminal without closing Done.
func (t *Task) Done() <-chan struct{} { return t.done }

// Snapshot returns a consistent view of the task.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		ID:              t.id,
		AgentType:       t.agentType,
		Depth:           t.depth,
		Status:          t.status,
		StartedAt:       t.startedAt,
		CompletedAt:     t.completedAt,
		Turns:           t.turns,
		Usage:           t.usage,
		CancelRequested: t.cancelRequested,
		LogPath:         t.logPath,
		Warnings:        append([]string(nil), t.warnings...),
	}
	if t.result != nil {
		r := *t.result
		snap.Result = &r
	}
	return snap
}

// Status returns the current status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// CancelRequested reports whether the cancel latch has been set.
func (t *Task) CancelRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelRequested
}

// advance moves the status forward. Regressions and transitions out of a
// terminal state are ignored; returns whether the transition applied.
func (t *Task) advance(next Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.advanceLocked(next)
}

func (t *Task) advanceLocked(next Status) bool {
	if t.status.Terminal() || next <= t.status {
		return false
	}
	t.status = next
	if next == StatusRunning && t.startedAt.IsZero() {
		t.startedAt = time.Now()
	}
	if next.Terminal() {
		t.completedAt = time.Now()
	}
	return true
}

// applyProgress folds an executor progress report into the record.
func (t *Task) applyProgress(p Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	t.turns = p.Turns
	t.usage = p.Usage
}

// requestCancel sets the cancel latch and cancels the execution context.
// Idempotent. cancel is immutable after construction, so reading it outside
// the lock is safe.
func (t *Task) requestCancel() {
	t.mu.Lock()
	already := t.cancelRequested
	t.cancelRequested = true
	t.mu.Unlock()
	if !already && t.cancel != nil {
		t.cancel()
	}
}

// finish records the terminal result. The first terminal transition wins;
// later attempts (e.g. a runner returning after a forced cancellation) only
// leave a warning.
func (t *Task) finish(status Status, res Result) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.advanceLocked(status) {
		return false
	}
	// Counters from the final result supersede the last progress report.
	if res.Turns > 0 {
		t.turns = res.Turns
	} else {
		res.Turns = t.turns
	}
	if res.Usage != (llm.Usage{}) {
		t.usage = res.Usage
	} else {
		res.Usage = t.usage
	}
	if !t.startedAt.IsZero() {
		res.Duration = t.completedAt.Sub(t.startedAt)
	}
	t.result = &res
	return true
}

func (t *Task) addWarning(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnings = append(t.warnings, msg)
}
