package task

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Options configures a Manager.
type Options struct {
	MaxConcurrent  int           // ceiling on pending+running tasks
	MaxOutputBytes int64         // per-task log size ceiling
	GracePeriod    time.Duration // wait for cooperative cancellation
	Retention      time.Duration // terminal task retention window
	EvictInterval  time.Duration // 0 = no background sweep, Evict on demand only
	PollTimeout    time.Duration // default WaitOutput block duration
	MaxPollTimeout time.Duration // hard cap on WaitOutput block duration
	LogDir         string        // directory for background task logs
	Logger         *logrus.Logger
}

// DefaultOptions returns the standard limits.
func DefaultOptions() Options {
	return Options{
		MaxConcurrent:  10,
		MaxOutputBytes: 10 << 20,
		GracePeriod:    2 * time.Second,
		Retention:      24 * time.Hour,
		PollTimeout:    30 * time.Second,
		MaxPollTimeout: 10 * time.Minute,
		Logger:         logrus.StandardLogger(),
	}
}

// CreateSpec describes a task to register.
type CreateSpec struct {
	AgentType string
	Depth     int
}

// Runner executes a task to completion. It must observe ctx at its
// suspension points and may call report as often as it likes; reports after
// the task turns terminal are dropped.
type Runner func(ctx context.Context, report func(Progress)) (Result, error)

// Manager owns the task record store: it enforces the concurrency ceiling,
// drives background tasks to completion, and evicts stale records.
type Manager struct {
	opts Options
	log  *logrus.Logger

	root context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]*Task
}

// NewManager creates a Manager. The log directory is created if needed. When
// EvictInterval is set, a background sweep runs until Shutdown.
func NewManager(opts Options) (*Manager, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.LogDir == "" {
		opts.LogDir = filepath.Join(os.TempDir(), "warren-tasks")
	}
	if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating task log dir: %w", err)
	}

	root, stop := context.WithCancel(context.Background())
	m := &Manager{
		opts:  opts,
		log:   opts.Logger,
		root:  root,
		stop:  stop,
		tasks: make(map[string]*Task),
	}

	if opts.EvictInterval > 0 {
		m.wg.Add(1)
		go m.evictLoop(opts.EvictInterval)
	}

	return m, nil
}

// GenerateID returns a task id whose prefix names the agent type that
// produced it, e.g. "code-reviewer-a1b2c3d4".
func GenerateID(agentType string) string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	prefix := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(agentType), " ", "-"))
	if prefix == "" {
		prefix = "task"
	}
	return prefix + "-" + hex.EncodeToString(b)
}

// Create registers a new pending task. The ceiling check and the insert are
// one atomic step: concurrent creators cannot overshoot the limit.
func (m *Manager) Create(spec CreateSpec) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := 0
	for _, t := range m.tasks {
		if !t.Status().Terminal() {
			active++
		}
	}
	if active >= m.opts.MaxConcurrent {
		return nil, fmt.Errorf("%w: %d tasks pending or running (limit %d)",
			ErrResourceExhausted, active, m.opts.MaxConcurrent)
	}

	id := GenerateID(spec.AgentType)
	for m.tasks[id] != nil { // vanishingly unlikely, but ids must be unique
		id = GenerateID(spec.AgentType)
	}

	// The execution context is allocated here, before the task becomes
	// visible through Get/List, so Cancel can never race its assignment
	// and a cancel latched before StartBackground still reaches the runner.
	taskCtx, cancel := context.WithCancel(m.root)
	t := &Task{
		id:        id,
		agentType: spec.AgentType,
		depth:     spec.Depth,
		status:    StatusPending,
		logPath:   filepath.Join(m.opts.LogDir, id+".jsonl"),
		done:      make(chan struct{}),
		ctx:       taskCtx,
		cancel:    cancel,
	}
	m.tasks[id] = t
	return t, nil
}

// StartBackground transitions the task to running and launches the runner in
// its own goroutine, independent of any caller. The manager applies the
// runner's progress reports to the record and mirrors them to the task log.
func (m *Manager) StartBackground(t *Task, run Runner) error {
	if !t.advance(StatusRunning) {
		return fmt.Errorf("task %s cannot start from status %s", t.id, t.Status())
	}

	writer, err := newLogWriter(t.logPath, m.opts.MaxOutputBytes, m.log)
	if err != nil {
		t.finish(StatusFailed, Result{Reason: err.Error()})
		t.cancel()
		close(t.done)
		return err
	}

	report := func(p Progress) {
		t.applyProgress(p)
		writer.Append(Record{
			Event:        EventProgress,
			Status:       StatusRunning.String(),
			Turns:        p.Turns,
			InputTokens:  p.Usage.InputTokens,
			OutputTokens: p.Usage.OutputTokens,
			Text:         p.Text,
		})
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer t.cancel()
		defer close(t.done)

		res, err := run(t.ctx, report)
		status, res := terminalFor(t, res, err)

		if t.finish(status, res) {
			m.log.WithFields(logrus.Fields{
				"task":   t.id,
				"status": status.String(),
				"turns":  res.Turns,
			}).Info("background task finished")
		} else {
			// The manager already forced a terminal status (grace period
			// elapsed); the late result is informational only.
			t.addWarning("runner finished after forced cancellation")
		}

		if writer.Truncated() {
			t.addWarning("output truncated at size ceiling")
		}
		snap := t.Snapshot()
		writer.Append(Record{
			Event:        EventResult,
			Status:       snap.Status.String(),
			Turns:        snap.Turns,
			InputTokens:  snap.Usage.InputTokens,
			OutputTokens: snap.Usage.OutputTokens,
			Text:         res.Text,
			Reason:       res.Reason,
		})
		if err := writer.Close(); err != nil {
			m.log.WithError(err).WithField("task", t.id).Warn("closing task log")
		}
	}()

	return nil
}

// terminalFor maps a runner outcome to a terminal status and reason.
func terminalFor(t *Task, res Result, err error) (Status, Result) {
	switch {
	case err == nil && !t.CancelRequested():
		return StatusCompleted, res
	case err == nil:
		// Runner finished despite the stop request; honor the latch.
		if res.Reason == "" {
			res.Reason = "cancelled by request"
		}
		return StatusCancelled, res
	case errors.Is(err, context.Canceled) || t.CancelRequested():
		if res.Reason == "" {
			res.Reason = "cancelled by request"
		}
		return StatusCancelled, res
	default:
		res.Reason = err.Error()
		return StatusFailed, res
	}
}

// Get retrieves a task by id.
func (m *Manager) Get(id string) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

// List returns snapshots of all known tasks, newest first. With statuses
// given, only matching tasks are included.
func (m *Manager) List(statuses ...Status) []Snapshot {
	m.mu.Lock()
	tasks := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()

	var out []Snapshot
	for _, t := range tasks {
		snap := t.Snapshot()
		if len(statuses) > 0 {
			match := false
			for _, s := range statuses {
				if snap.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Cancel sets the task's cancel latch and waits up to the grace period for
// the runner to observe it. If the grace period elapses the task is marked
// cancelled unilaterally; the runner is expected to stop on its own since
// every blocking point observes the same context.
func (m *Manager) Cancel(id string) error {
	t, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if t.Status().Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, id, t.Status())
	}

	t.requestCancel()

	select {
	case <-t.done:
		return nil
	case <-time.After(m.opts.GracePeriod):
	}

	// Grace period elapsed without cooperative shutdown.
	if t.finish(StatusCancelled, Result{Reason: "cancelled; grace period elapsed before the task stopped"}) {
		t.addWarning("grace period elapsed; marked cancelled while work may still be finishing")
		m.log.WithField("task", id).Warn("task did not stop within grace period; marked cancelled")
	}
	return nil
}

// WaitOutput returns the task's snapshot, optionally blocking until the task
// turns terminal or the timeout elapses. The timeout bounds only this wait;
// it never affects the task itself.
func (m *Manager) WaitOutput(id string, block bool, timeout time.Duration) (Snapshot, error) {
	t, ok := m.Get(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	snap := t.Snapshot()
	if !block || snap.Status.Terminal() {
		return snap, nil
	}

	if timeout <= 0 {
		timeout = m.opts.PollTimeout
	}
	if m.opts.MaxPollTimeout > 0 && timeout > m.opts.MaxPollTimeout {
		timeout = m.opts.MaxPollTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.done:
	case <-timer.C:
	}
	return t.Snapshot(), nil
}

// Evict removes terminal tasks whose completion is older than the retention
// window and deletes their log files. Returns the number of tasks removed.
func (m *Manager) Evict() int {
	cutoff := time.Now().Add(-m.opts.Retention)

	m.mu.Lock()
	var victims []*Task
	for id, t := range m.tasks {
		snap := t.Snapshot()
		if snap.Status.Terminal() && !snap.CompletedAt.IsZero() && snap.CompletedAt.Before(cutoff) {
			victims = append(victims, t)
			delete(m.tasks, id)
		}
	}
	m.mu.Unlock()

	for _, t := range victims {
		if err := os.Remove(t.logPath); err != nil && !os.IsNotExist(err) {
			m.log.WithError(err).WithField("task", t.id).Warn("removing evicted task log")
		}
	}
	if len(victims) > 0 {
		m.log.WithField("count", len(victims)).Info("evicted terminal tasks")
	}
	return len(victims)
}

// Delete removes a terminal task and its log immediately.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if ok && t.Status().Terminal() {
		delete(m.tasks, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !t.Status().Terminal() {
		return fmt.Errorf("task %s is still %s", id, t.Status())
	}
	if err := os.Remove(t.logPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *Manager) evictLoop(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.root.Done():
			return
		case <-ticker.C:
			m.Evict()
		}
	}
}

// Shutdown cancels every running task and waits for runners to drain, up to
// ctx's deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()

	drained := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
