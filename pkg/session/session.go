// Package session owns one scoring engine and one hierarchy store, forwards
// their snapshots to session subscribers, journals every mutation and
// keeps the Prometheus gauges current.
package session

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rmax-ai/platformsim/pkg/hierarchy"
	"github.com/rmax-ai/platformsim/pkg/scenario"
	"github.com/rmax-ai/platformsim/pkg/scoring"
)

// Kind names the engine an Update came from.
type Kind string

const (
	KindSimulation Kind = "simulation"
	KindPlatform   Kind = "platform"
)

// Update is one snapshot delivered to session subscribers. State is a
// scoring.SimulationState or a hierarchy.PlatformState depending on Kind.
type Update struct {
	Kind  Kind `json:"kind"`
	State any  `json:"state"`
}

// Subscriber receives every update synchronously, in mutation order.
type Subscriber func(Update)

// Mirror receives every snapshot for out-of-process readers.
type Mirror interface {
	Mirror(kind string, state any)
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithJournal(j Journal) Option {
	return func(s *Session) { s.journal = j }
}

func WithMirror(m Mirror) Option {
	return func(s *Session) { s.mirror = m }
}

func WithRegistry(r *scenario.Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithScoringOptions are applied to every scoring engine the session
// builds, including the ones created by scenario resets.
func WithScoringOptions(opts ...scoring.Option) Option {
	return func(s *Session) { s.scoringOpts = append(s.scoringOpts, opts...) }
}

func WithHierarchyOptions(opts ...hierarchy.Option) Option {
	return func(s *Session) { s.hierarchyOpts = append(s.hierarchyOpts, opts...) }
}

// WithCustomRules sets the extra issue rules every scoring engine starts with.
func WithCustomRules(rules []scoring.Rule) Option {
	return func(s *Session) { s.rules = append([]scoring.Rule(nil), rules...) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is the single simulation a daemon serves.
type Session struct {
	mu       sync.RWMutex
	scoring  *scoring.Engine
	platform *hierarchy.Store
	unsub    []func()
	current  *scenario.Scenario
	rules    []scoring.Rule

	scoringOpts   []scoring.Option
	hierarchyOpts []hierarchy.Option

	registry *scenario.Registry
	journal  Journal
	mirror   Mirror

	subMu   sync.Mutex
	subs    map[int]Subscriber
	nextSub int

	lastEvent atomic.Value // string
	now       func() time.Time
	logger    *slog.Logger
}

func New(opts ...Option) *Session {
	s := &Session{
		subs:   make(map[int]Subscriber),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = scenario.NewRegistry()
	}
	s.lastEvent.Store("")
	s.install(s.newScoring(), hierarchy.New(s.platformOptions()...), nil)
	return s
}

func (s *Session) newScoring(extra ...scoring.Option) *scoring.Engine {
	opts := append([]scoring.Option{scoring.WithLogger(s.logger)}, s.scoringOpts...)
	opts = append(opts, scoring.WithRules(s.rules...))
	return scoring.New(append(opts, extra...)...)
}

func (s *Session) platformOptions(extra ...hierarchy.Option) []hierarchy.Option {
	opts := append([]hierarchy.Option{hierarchy.WithLogger(s.logger)}, s.hierarchyOpts...)
	return append(opts, extra...)
}

// install swaps in new engines, closes the replaced ones and announces the
// fresh state of both. Either engine may be nil to keep the current one.
func (s *Session) install(eng *scoring.Engine, plat *hierarchy.Store, current *scenario.Scenario) {
	s.mu.Lock()
	for _, u := range s.unsub {
		u()
	}
	if eng != nil {
		if s.scoring != nil {
			s.scoring.Close()
		}
		s.scoring = eng
		s.current = current
	}
	if plat != nil {
		if s.platform != nil {
			s.platform.Close()
		}
		s.platform = plat
	}
	s.unsub = []func(){
		s.scoring.Subscribe(func(st scoring.SimulationState) { s.onSimulation(st) }),
		s.platform.Subscribe(func(st hierarchy.PlatformState) { s.onPlatform(st) }),
	}
	sim, pl := s.scoring.State(), s.platform.Snapshot()
	s.mu.Unlock()

	s.onSimulation(sim)
	s.onPlatform(pl)
}

func (s *Session) onSimulation(st scoring.SimulationState) {
	observeSimulation(st)
	if s.mirror != nil {
		s.mirror.Mirror(string(KindSimulation), st)
	}
	s.broadcast(Update{Kind: KindSimulation, State: st})
}

func (s *Session) onPlatform(st hierarchy.PlatformState) {
	observePlatform(st)
	if s.mirror != nil {
		s.mirror.Mirror(string(KindPlatform), st)
	}
	s.broadcast(Update{Kind: KindPlatform, State: st})
}

// Subscribe registers fn and returns a function that removes it.
func (s *Session) Subscribe(fn Subscriber) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) broadcast(u Update) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		s.deliver(fn, u)
	}
}

func (s *Session) deliver(fn Subscriber, u Update) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber_panic", "kind", u.Kind, "error", fmt.Sprint(r))
		}
	}()
	fn(u)
}

// Scoring returns the current scoring engine. Scenario resets replace it,
// so callers should not hold on to it.
func (s *Session) Scoring() *scoring.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scoring
}

// Hierarchy returns the current hierarchy store.
func (s *Session) Hierarchy() *hierarchy.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.platform
}

func (s *Session) Simulation() scoring.SimulationState {
	return s.Scoring().State()
}

func (s *Session) Platform() hierarchy.PlatformState {
	return s.Hierarchy().Snapshot()
}

// Close stops the pending timers of both engines.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.unsub {
		u()
	}
	s.unsub = nil
	s.scoring.Close()
	s.platform.Close()
}
