package subagent

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jg-phare/warren/pkg/agent"
	"github.com/jg-phare/warren/pkg/cache"
	"github.com/jg-phare/warren/pkg/llm"
	"github.com/jg-phare/warren/pkg/session"
	"github.com/jg-phare/warren/pkg/task"
	"github.com/jg-phare/warren/pkg/tools"
)

// DispatcherOpts configures a Dispatcher.
type DispatcherOpts struct {
	Client         llm.Client
	ParentRegistry *tools.Registry
	ParentModel    string

	Manager *task.Manager

	// Optional subsystems. A nil Sessions disables resume; a nil Cache
	// disables result reuse; a nil Loader disables file-based agents.
	Sessions *session.Store
	Cache    *cache.ResultCache
	Loader   *Loader

	// ConfigAgents are definitions supplied programmatically. They override
	// built-ins and are overridden by file-based agents of the same name.
	ConfigAgents []Definition

	MaxDepth   int           // 0 = DefaultMaxDepth
	SessionTTL time.Duration // 0 = session.DefaultTTL
	MaxResumes int           // 0 = session.DefaultMaxResumes

	// ParallelLimit bounds concurrently running branches of one SpawnMany
	// call. 0 = no limit beyond the manager's task ceiling.
	ParallelLimit int

	Logger *logrus.Logger
}

// Dispatcher resolves agent definitions and runs delegations. It implements
// tools.Spawner, so registering a tools.TaskTool backed by a Dispatcher is
// what gives a parent agent the ability to delegate.
type Dispatcher struct {
	opts DispatcherOpts
	log  *logrus.Logger

	mu   sync.RWMutex
	defs map[string]Definition
}

// NewDispatcher builds a dispatcher and performs the initial definition load.
func NewDispatcher(opts DispatcherOpts) (*Dispatcher, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("dispatcher requires an llm client")
	}
	if opts.Manager == nil {
		return nil, fmt.Errorf("dispatcher requires a task manager")
	}
	if opts.ParentRegistry == nil {
		opts.ParentRegistry = tools.NewRegistry()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	d := &Dispatcher{opts: opts, log: log}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload rebuilds the definition table from built-ins, config agents, and the
// agent directories. Running tasks keep the definitions they started with.
func (d *Dispatcher) Reload() error {
	config := make(map[string]Definition, len(d.opts.ConfigAgents))
	for _, def := range d.opts.ConfigAgents {
		def.Source = SourceConfig
		if def.Priority == 0 {
			def.Priority = 10
		}
		config[def.Name] = def
	}

	var fileBased map[string]Definition
	if d.opts.Loader != nil {
		var err error
		fileBased, err = d.opts.Loader.LoadAll()
		if err != nil {
			return fmt.Errorf("loading agent definitions: %w", err)
		}
	}

	defs := Resolve(BuiltInAgents(), config, fileBased)

	d.mu.Lock()
	d.defs = defs
	d.mu.Unlock()

	d.log.WithField("agents", len(defs)).Debug("agent definitions loaded")
	return nil
}

// Get returns the definition for an agent type.
func (d *Dispatcher) Get(name string) (Definition, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	def, ok := d.defs[name]
	return def, ok
}

// Definitions returns all known definitions sorted by name. Disabled
// definitions are included so callers can surface them.
func (d *Dispatcher) Definitions() []Definition {
	d.mu.RLock()
	defs := make([]Definition, 0, len(d.defs))
	for _, def := range d.defs {
		defs = append(defs, def)
	}
	d.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Spawn runs one delegation. Foreground spawns block until the subagent
// finishes and return its output; background spawns return a task id
// immediately.
func (d *Dispatcher) Spawn(ctx context.Context, input tools.TaskInput) (tools.TaskResult, error) {
	def, ok := d.Get(input.AgentType)
	if !ok {
		return tools.TaskResult{}, fmt.Errorf("%w: %q (available: %s)",
			ErrAgentNotFound, input.AgentType, d.availableNames())
	}
	if def.Disabled {
		return tools.TaskResult{}, fmt.Errorf("%w: %q", ErrAgentDisabled, def.Name)
	}

	depth := DepthFromContext(ctx) + 1
	if depth > d.opts.MaxDepth {
		return tools.TaskResult{}, fmt.Errorf("%w: depth %d exceeds limit %d",
			ErrDepthExceeded, depth, d.opts.MaxDepth)
	}

	model := resolveModel(def.Model, input.Model, d.opts.ParentModel)
	background := input.Background != nil && *input.Background

	// Resumed delegations re-run the agent against its saved history.
	// Resuming always bypasses the cache; the whole point is fresh work.
	var resumed *session.Session
	if input.Resume != nil {
		if d.opts.Sessions == nil {
			return tools.TaskResult{}, fmt.Errorf("resume requested but session persistence is not enabled")
		}
		sess, err := d.opts.Sessions.Touch(*input.Resume, time.Now())
		if err != nil {
			return tools.TaskResult{}, err
		}
		resumed = sess
	}

	var fingerprint string
	if resumed == nil && !background && d.opts.Cache != nil {
		var flags map[string]string
		if input.MaxTurns != nil {
			flags = map[string]string{"max_turns": strconv.Itoa(*input.MaxTurns)}
		}
		fingerprint = cache.Fingerprint(def.Name, input.Prompt, model, flags)
		if res, ok := d.opts.Cache.Get(fingerprint); ok {
			d.log.WithFields(logrus.Fields{"agent": def.Name, "fingerprint": fingerprint[:12]}).
				Debug("delegation served from cache")
			return tools.TaskResult{
				Output: res.Text,
				Cached: true,
				Metrics: &tools.TaskMetrics{
					DurationSecs: res.Duration.Seconds(),
					Turns:        res.Turns,
					InputTokens:  res.Usage.InputTokens,
					OutputTokens: res.Usage.OutputTokens,
				},
			}, nil
		}
	}

	cfg := d.buildConfig(def, model, depth, input)
	if resumed != nil {
		cfg.History = append(cfg.History, resumed.Messages...)
	}

	if background {
		return d.spawnBackground(def, cfg, input)
	}
	return d.spawnForeground(ctx, def, cfg, input, resumed, fingerprint)
}

// SpawnMany runs several delegations concurrently. Each branch gets its own
// result slot; a failing branch never cancels its siblings, so the group is
// built on the caller's context rather than a shared cancellable one.
func (d *Dispatcher) SpawnMany(ctx context.Context, inputs []tools.TaskInput) []tools.TaskResult {
	results := make([]tools.TaskResult, len(inputs))

	var g errgroup.Group
	if d.opts.ParallelLimit > 0 {
		g.SetLimit(d.opts.ParallelLimit)
	}

	for i, input := range inputs {
		g.Go(func() error {
			res, err := d.Spawn(ctx, input)
			if err != nil {
				res.Err = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// buildConfig assembles the subagent's loop configuration, including its
// scoped tool registry.
func (d *Dispatcher) buildConfig(def Definition, model string, depth int, input tools.TaskInput) agent.Config {
	restriction, plainTools := parseSpawnRestriction(def.Tools)
	allowed := resolveTools(plainTools, def.DisallowedTools, d.opts.ParentRegistry.Names())

	// The Task tool never flows through scoping directly. If the definition
	// carries a Task entry the subagent gets its own Task tool bound to a
	// restriction-checking spawner; otherwise it cannot delegate at all.
	registry := d.opts.ParentRegistry.Scoped(allowed, "Task")
	if restriction != nil {
		registry.Register(&tools.TaskTool{Spawner: &restrictedSpawner{d: d, restriction: restriction}})
	}

	cfg := agent.DefaultConfig()
	cfg.Model = model
	cfg.SystemPrompt = def.Prompt
	cfg.AgentType = def.Name
	cfg.Depth = depth
	cfg.Client = d.opts.Client
	cfg.Registry = registry
	cfg.Logger = d.log
	if def.MaxTurns > 0 {
		cfg.MaxTurns = def.MaxTurns
	}
	if input.MaxTurns != nil && *input.MaxTurns > 0 {
		cfg.MaxTurns = *input.MaxTurns
	}
	return cfg
}

func (d *Dispatcher) spawnForeground(ctx context.Context, def Definition, cfg agent.Config,
	input tools.TaskInput, resumed *session.Session, fingerprint string) (tools.TaskResult, error) {

	taskID := task.GenerateID(def.Name)
	start := time.Now()

	exec := agent.Run(WithDepth(ctx, cfg.Depth), input.Prompt, cfg)
	res := exec.Result()
	duration := time.Since(start)

	out := tools.TaskResult{
		TaskID: taskID,
		Output: res.Text,
		Metrics: &tools.TaskMetrics{
			DurationSecs: duration.Seconds(),
			Turns:        res.Turns,
			InputTokens:  res.Usage.InputTokens,
			OutputTokens: res.Usage.OutputTokens,
		},
	}
	if res.Err != nil {
		out.Err = res.Err.Error()
		return out, nil
	}

	if d.opts.Cache != nil && fingerprint != "" {
		d.opts.Cache.Put(fingerprint, task.Result{
			Text:     res.Text,
			Turns:    res.Turns,
			Usage:    res.Usage,
			Duration: duration,
		})
	}

	if d.opts.Sessions != nil {
		if sessID, err := d.persistSession(def.Name, resumed, res.History); err != nil {
			d.log.WithError(err).WithField("agent", def.Name).Warn("failed to persist session")
		} else {
			out.SessionID = sessID
		}
	}
	return out, nil
}

// persistSession saves the finished conversation so it can be resumed. A
// resumed delegation updates its existing session in place; a fresh one gets
// a new record.
func (d *Dispatcher) persistSession(agentType string, resumed *session.Session, history []llm.ChatMessage) (string, error) {
	sess := resumed
	if sess == nil {
		sess = session.New(agentType, d.opts.SessionTTL, d.opts.MaxResumes)
	}
	sess.Messages = history
	if err := d.opts.Sessions.Save(sess); err != nil {
		return "", err
	}
	return sess.ID, nil
}

func (d *Dispatcher) spawnBackground(def Definition, cfg agent.Config, input tools.TaskInput) (tools.TaskResult, error) {
	t, err := d.opts.Manager.Create(task.CreateSpec{AgentType: def.Name, Depth: cfg.Depth})
	if err != nil {
		return tools.TaskResult{}, err
	}

	prompt := input.Prompt
	runner := func(ctx context.Context, report func(task.Progress)) (task.Result, error) {
		runCfg := cfg
		runCfg.OnProgress = func(p agent.Progress) {
			report(task.Progress{Turns: p.Turn, Usage: p.Usage, Text: p.Text})
		}

		start := time.Now()
		exec := agent.Run(WithDepth(ctx, runCfg.Depth), prompt, runCfg)
		res := exec.Result()

		out := task.Result{
			Text:     res.Text,
			Turns:    res.Turns,
			Usage:    res.Usage,
			Duration: time.Since(start),
		}
		if res.Err != nil {
			return out, res.Err
		}
		if res.ExitReason == agent.ExitInterrupted {
			return out, context.Canceled
		}
		return out, nil
	}

	if err := d.opts.Manager.StartBackground(t, runner); err != nil {
		return tools.TaskResult{}, err
	}

	d.log.WithFields(logrus.Fields{"task": t.ID(), "agent": def.Name, "depth": cfg.Depth}).
		Info("background delegation started")

	return tools.TaskResult{
		TaskID:     t.ID(),
		LogPath:    t.LogPath(),
		Background: true,
	}, nil
}

func (d *Dispatcher) availableNames() string {
	defs := d.Definitions()
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		if !def.Disabled {
			names = append(names, def.Name)
		}
	}
	return strings.Join(names, ", ")
}

// restrictedSpawner enforces a definition's Task(...) allow-list before
// handing off to the dispatcher.
type restrictedSpawner struct {
	d           *Dispatcher
	restriction *SpawnRestriction
}

func (r *restrictedSpawner) Spawn(ctx context.Context, input tools.TaskInput) (tools.TaskResult, error) {
	if !r.restriction.Allows(input.AgentType) {
		return tools.TaskResult{}, fmt.Errorf("%w: %q", ErrSpawnNotAllowed, input.AgentType)
	}
	return r.d.Spawn(ctx, input)
}

func (r *restrictedSpawner) SpawnMany(ctx context.Context, inputs []tools.TaskInput) []tools.TaskResult {
	allowed := make([]tools.TaskInput, 0, len(inputs))
	slots := make([]int, 0, len(inputs))
	results := make([]tools.TaskResult, len(inputs))

	for i, input := range inputs {
		if !r.restriction.Allows(input.AgentType) {
			results[i].Err = fmt.Sprintf("%s: %q", ErrSpawnNotAllowed, input.AgentType)
			continue
		}
		allowed = append(allowed, input)
		slots = append(slots, i)
	}

	for j, res := range r.d.SpawnMany(ctx, allowed) {
		results[slots[j]] = res
	}
	return results
}
