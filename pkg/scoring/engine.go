// Package scoring owns the flat component list of a simulation session and
// derives per-component metrics, configuration issues, global metrics and
// governance checkpoints from it.
package scoring

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/sched"
)

const (
	DefaultResolveDelay = 1500 * time.Millisecond
	DefaultRerunDelay   = 2 * time.Second
)

var (
	ErrUnknownComponentType = errors.New("unknown component type")
	ErrDuplicateComponent   = errors.New("component already exists")
	ErrComponentNotFound    = errors.New("component not found")
	ErrInvalidSpeed         = errors.New("simulation speed must be 1, 2 or 4")
)

// Subscriber receives a snapshot after every mutation. Subscribers run
// synchronously on the mutating goroutine and must not call mutating engine
// methods themselves.
type Subscriber func(SimulationState)

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithScheduler sets the clock driving delayed resolutions and re-runs.
func WithScheduler(s sched.Scheduler) Option {
	return func(e *Engine) { e.timers = sched.NewGroup(s) }
}

// WithRand sets the random source of the non-deterministic checkpoints.
// The engine serialises access to it.
func WithRand(r RandSource) Option {
	return func(e *Engine) { e.rng = r }
}

// WithSeed seeds a private random source.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewSource(seed)) }
}

// WithRules appends custom rules after the built-in ones.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) { e.custom = append(e.custom, rules...) }
}

func WithDelays(resolve, rerun time.Duration) Option {
	return func(e *Engine) {
		e.resolveDelay = resolve
		e.rerunDelay = rerun
	}
}

// WithInitialComponents seeds the engine with components whose metrics are
// kept exactly as given. No rules run against them.
func WithInitialComponents(cs []Component) Option {
	return func(e *Engine) {
		for _, c := range cs {
			e.components = append(e.components, c.clone())
		}
	}
}

// WithScenario tags the session with the scenario it was loaded from.
func WithScenario(ref ScenarioRef) Option {
	return func(e *Engine) { e.scenario = &ref }
}

// Engine is the scoring engine of one simulation session.
type Engine struct {
	mu        sync.Mutex
	deliverMu sync.Mutex

	components  []Component
	issues      []Issue
	checkpoints []Checkpoint
	metrics     GlobalMetrics
	totalTime   float64
	speed       int
	running     bool
	scenario    *ScenarioRef

	builtin []Rule
	custom  []Rule

	rng          RandSource
	timers       *sched.Group
	resolveDelay time.Duration
	rerunDelay   time.Duration

	subs    map[int]Subscriber
	nextSub int

	restore *SimulationState
	logger  *slog.Logger
}

// New creates an engine with an empty component list unless seeded through
// WithInitialComponents.
func New(opts ...Option) *Engine {
	e := &Engine{
		speed:        1,
		builtin:      DefaultRules(),
		resolveDelay: DefaultResolveDelay,
		rerunDelay:   DefaultRerunDelay,
		subs:         make(map[int]Subscriber),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.timers == nil {
		e.timers = sched.NewGroup(sched.Real{})
	}
	if e.restore != nil {
		e.applyRestore(*e.restore)
		e.restore = nil
	}
	e.metrics = Aggregate(e.components, e.issues, e.totalTime)
	return e
}

// Close cancels every pending delayed transition.
func (e *Engine) Close() {
	e.timers.Stop()
}

// Subscribe registers fn and returns a function that removes it.
func (e *Engine) Subscribe(fn Subscriber) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// NewComponent builds a component of type t seeded from its template.
func NewComponent(t catalog.ComponentType) (Component, error) {
	tpl, ok := catalog.ComponentTemplateFor(t)
	if !ok {
		return Component{}, fmt.Errorf("%w: %q", ErrUnknownComponentType, t)
	}
	return Component{
		ID:          fmt.Sprintf("comp-%s", uuid.NewString()),
		Type:        t,
		Name:        tpl.Name,
		Config:      tpl.DefaultConfig,
		Connections: []string{},
		Metrics:     tpl.BaseMetrics,
	}, nil
}

// AddComponent appends c, derives its metrics, runs the issue rules against
// it and recomputes the global metrics. Missing id, name, cost and
// complexity are filled from the component template. The returned copy
// carries the issues raised.
func (e *Engine) AddComponent(c Component) (Component, error) {
	tpl, ok := catalog.ComponentTemplateFor(c.Type)
	if !ok {
		return Component{}, fmt.Errorf("%w: %q", ErrUnknownComponentType, c.Type)
	}
	c = c.clone()
	if c.ID == "" {
		c.ID = fmt.Sprintf("comp-%s", uuid.NewString())
	}
	if c.Name == "" {
		c.Name = tpl.Name
	}
	if c.Connections == nil {
		c.Connections = []string{}
	}
	if c.Metrics.Cost == 0 {
		c.Metrics.Cost = tpl.BaseMetrics.Cost
	}
	if c.Metrics.Complexity == 0 {
		c.Metrics.Complexity = tpl.BaseMetrics.Complexity
	}
	c.Metrics = DeriveMetrics(c.Config, c.Metrics)
	c.Issues = nil

	e.mu.Lock()
	if e.indexOf(c.ID) >= 0 {
		e.mu.Unlock()
		return Component{}, fmt.Errorf("%w: %s", ErrDuplicateComponent, c.ID)
	}
	e.components = append(e.components, c)
	raised := runRules(e.rulesLocked(), c)
	e.issues = append(e.issues, raised...)
	e.recomputeLocked()
	e.logger.Debug("component_added", "component_id", c.ID, "type", c.Type, "issues_raised", len(raised))
	e.commit()
	out := c.clone()
	out.Issues = append([]Issue{}, raised...)
	return out, nil
}

// UpdateComponent merges u into the component, re-derives its metrics and
// re-runs the issue rules. It reports false, changing nothing, if id is
// unknown.
func (e *Engine) UpdateComponent(id string, u ComponentUpdate) bool {
	e.mu.Lock()
	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()
		return false
	}
	c := e.components[i]
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Position != nil {
		c.Position = *u.Position
	}
	if u.Config != nil {
		c.Config = *u.Config
	}
	if u.Connections != nil {
		c.Connections = append([]string{}, (*u.Connections)...)
	}
	c.Metrics = DeriveMetrics(c.Config, c.Metrics)
	e.components[i] = c

	raised := runRules(e.rulesLocked(), c)
	e.issues = append(e.issues, raised...)
	e.recomputeLocked()
	e.logger.Debug("component_updated", "component_id", id, "issues_raised", len(raised))
	e.commit()
	return true
}

// RemoveComponent deletes the component with its issues, checkpoints,
// pending timers and every connection pointing at it.
func (e *Engine) RemoveComponent(id string) bool {
	e.mu.Lock()
	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()
		return false
	}
	e.components = append(e.components[:i:i], e.components[i+1:]...)
	for j := range e.components {
		e.components[j].Connections = without(e.components[j].Connections, id)
	}

	kept := e.issues[:0:0]
	for _, is := range e.issues {
		if is.Component == id {
			e.timers.Cancel(resolveKey(is.ID))
			continue
		}
		kept = append(kept, is)
	}
	e.issues = kept

	keptCp := e.checkpoints[:0:0]
	for _, cp := range e.checkpoints {
		if cp.Component == id {
			e.timers.Cancel(rerunKey(cp.ID))
			continue
		}
		keptCp = append(keptCp, cp)
	}
	e.checkpoints = keptCp

	e.recomputeLocked()
	e.logger.Debug("component_removed", "component_id", id)
	e.commit()
	return true
}

// ResolveIssue removes the issue and advances simulated time by its
// time-to-resolve in days.
func (e *Engine) ResolveIssue(id string) bool {
	e.mu.Lock()
	for i, is := range e.issues {
		if is.ID != id {
			continue
		}
		e.issues = append(e.issues[:i:i], e.issues[i+1:]...)
		e.totalTime += is.TimeToResolve / 24
		e.timers.Cancel(resolveKey(id))
		e.recomputeLocked()
		e.logger.Debug("issue_resolved", "issue_id", id, "total_time", e.totalTime)
		e.commit()
		return true
	}
	e.mu.Unlock()
	return false
}

// ScheduleResolve resolves the issue after the resolve delay. It reports
// false if the issue is unknown or a resolution is already pending.
func (e *Engine) ScheduleResolve(id string) bool {
	e.mu.Lock()
	if e.issueIndex(id) < 0 {
		e.mu.Unlock()
		return false
	}
	ok := e.timers.Schedule(resolveKey(id), e.resolveDelay, func() {
		if !e.ResolveIssue(id) {
			e.logger.Debug("issue_resolve_skipped", "issue_id", id)
		}
	})
	if !ok {
		e.mu.Unlock()
		return false
	}
	e.commit()
	return true
}

// Start, Pause and SetSpeed only track the run controls of the session.
func (e *Engine) Start() {
	e.mu.Lock()
	e.running = true
	e.commit()
}

func (e *Engine) Pause() {
	e.mu.Lock()
	e.running = false
	e.commit()
}

func (e *Engine) SetSpeed(speed int) error {
	if speed != 1 && speed != 2 && speed != 4 {
		return fmt.Errorf("%w: got %d", ErrInvalidSpeed, speed)
	}
	e.mu.Lock()
	e.speed = speed
	e.commit()
	return nil
}

// SetCustomRules replaces the custom rules. Built-in rules always run first.
// Existing issues are left untouched.
func (e *Engine) SetCustomRules(rules []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.custom = append([]Rule(nil), rules...)
	e.logger.Info("rules_updated", "custom_rules", len(rules))
}

// Rules returns the names of the active rules in evaluation order.
func (e *Engine) Rules() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var names []string
	for _, r := range e.rulesLocked() {
		names = append(names, r.Name())
	}
	return names
}

// State returns a deep copy of the current simulation state.
func (e *Engine) State() SimulationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) Metrics() GlobalMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

// Component returns a copy of the component with the given id.
func (e *Engine) Component(id string) (Component, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		return Component{}, false
	}
	c := e.components[i].clone()
	c.Issues = e.issuesFor(id)
	return c, true
}

// recomputeLocked refreshes the global metrics. Caller holds e.mu.
func (e *Engine) recomputeLocked() {
	e.metrics = Aggregate(e.components, e.issues, e.totalTime)
}

func (e *Engine) rulesLocked() []Rule {
	out := make([]Rule, 0, len(e.builtin)+len(e.custom))
	out = append(out, e.builtin...)
	return append(out, e.custom...)
}

func (e *Engine) indexOf(id string) int {
	for i, c := range e.components {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) issueIndex(id string) int {
	for i, is := range e.issues {
		if is.ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) issuesFor(componentID string) []Issue {
	out := []Issue{}
	for _, is := range e.issues {
		if is.Component == componentID {
			out = append(out, is)
		}
	}
	return out
}

func (e *Engine) snapshotLocked() SimulationState {
	st := SimulationState{
		Components:  make([]Component, 0, len(e.components)),
		Metrics:     e.metrics,
		Issues:      append([]Issue{}, e.issues...),
		Checkpoints: make([]Checkpoint, 0, len(e.checkpoints)),
		Speed:       e.speed,
		Running:     e.running,
		TotalTime:   e.totalTime,
	}
	for _, c := range e.components {
		cc := c.clone()
		cc.Issues = e.issuesFor(c.ID)
		st.Components = append(st.Components, cc)
	}
	for _, cp := range e.checkpoints {
		st.Checkpoints = append(st.Checkpoints, cp.clone())
	}
	if e.scenario != nil {
		ref := *e.scenario
		st.Scenario = &ref
	}
	for _, k := range e.timers.Keys() {
		if id, ok := strings.CutPrefix(k, resolvePrefix); ok {
			st.Resolving = append(st.Resolving, id)
		}
	}
	sort.Strings(st.Resolving)
	return st
}

// commit snapshots the state, releases e.mu and delivers the snapshot to
// every subscriber in mutation order. Caller holds e.mu.
func (e *Engine) commit() {
	st := e.snapshotLocked()
	ids := make([]int, 0, len(e.subs))
	for id := range e.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, e.subs[id])
	}

	e.deliverMu.Lock()
	e.mu.Unlock()
	defer e.deliverMu.Unlock()

	for _, fn := range subs {
		e.deliver(fn, st)
	}
}

func (e *Engine) deliver(fn Subscriber, st SimulationState) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("subscriber_panic", "error", fmt.Sprint(r))
		}
	}()
	fn(st)
}

const (
	resolvePrefix = "resolve:"
	rerunPrefix   = "rerun:"
)

func resolveKey(issueID string) string { return resolvePrefix + issueID }
func rerunKey(checkpointID string) string { return rerunPrefix + checkpointID }

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
