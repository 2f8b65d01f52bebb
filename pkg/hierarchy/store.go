// Package hierarchy owns the platform node tree: containment and capacity
// checks on insertion, cascading deletes, resource rollups, application
// deployments and the aggregate platform metrics.
package hierarchy

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/sched"
)

// DefaultSettleDelay is how long a deployment stays in deploying.
const DefaultSettleDelay = 2 * time.Second

const (
	defaultVersion = "1.0.0"
	deployPrefix   = "deploy:"
)

var (
	defaultPosition       = Position{X: 100, Y: 100}
	defaultDeployResource = catalog.Resources{CPU: 10, Memory: 128}
)

// Subscriber receives a snapshot after every mutation. It runs on the
// mutating goroutine and must not call mutating store methods.
type Subscriber func(PlatformState)

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithScheduler sets the clock driving deployment settlement.
func WithScheduler(sc sched.Scheduler) Option {
	return func(s *Store) { s.timers = sched.NewGroup(sc) }
}

func WithSettleDelay(d time.Duration) Option {
	return func(s *Store) { s.settle = d }
}

// WithClock sets the wall clock used for deployment timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the hierarchy store of one simulation session.
type Store struct {
	mu        sync.Mutex
	deliverMu sync.Mutex

	nodes       map[string]*Node
	order       []string
	deployments []Deployment
	selected    string

	timers *sched.Group
	settle time.Duration
	now    func() time.Time

	subs    map[int]Subscriber
	nextSub int

	restore *PlatformState
	logger  *slog.Logger
}

func New(opts ...Option) *Store {
	s := &Store{
		nodes:  make(map[string]*Node),
		settle: DefaultSettleDelay,
		now:    time.Now,
		subs:   make(map[int]Subscriber),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timers == nil {
		s.timers = sched.NewGroup(sched.Real{})
	}
	if s.restore != nil {
		s.applyRestore(*s.restore)
		s.restore = nil
	}
	return s
}

// Close cancels pending deployment settlements.
func (s *Store) Close() {
	s.timers.Stop()
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// AddNode inserts a node built from spec under parentID ("" for a root).
// On rejection it returns an empty id and a *RejectionError.
func (s *Store) AddNode(spec NodeSpec, parentID string) (string, error) {
	s.mu.Lock()
	tpl, ok := catalog.NodeTemplateFor(spec.Type)
	if !ok {
		return "", s.rejectLocked(reject(ReasonMissingTemplate, spec.Type, parentID, ""))
	}
	if parentID != "" {
		if rej := s.checkAcceptLocked(parentID, spec.Type); rej != nil {
			return "", s.rejectLocked(rej)
		}
	} else if tpl.RequiresParent != "" {
		return "", s.rejectLocked(reject(ReasonRequiresParent, spec.Type, "", fmt.Sprintf("needs a %s parent", tpl.RequiresParent)))
	}

	n := newNode(tpl, spec)
	n.ParentID = parentID
	s.nodes[n.ID] = n
	s.order = append(s.order, n.ID)
	if parentID != "" {
		p := s.nodes[parentID]
		p.ChildIDs = append(p.ChildIDs, n.ID)
	}
	s.logger.Debug("node_added", "node_id", n.ID, "type", n.Type, "parent_id", parentID)
	s.commit()
	return n.ID, nil
}

func newNode(tpl catalog.NodeTemplate, spec NodeSpec) *Node {
	n := &Node{
		ID:       fmt.Sprintf("node-%s", uuid.NewString()),
		Layer:    tpl.Layer,
		Type:     tpl.Type,
		Name:     tpl.Name,
		Position: defaultPosition,
		Size:     tpl.DefaultSize,
		ChildIDs: []string{},
		Config:   DefaultNodeConfig(),
		Status:   NodeStatus{Health: HealthHealthy},
		Metrics:  NodeMetrics{Availability: 99.9, Performance: 85, Cost: tpl.BaseCost, Efficiency: 80},
	}
	if spec.Name != "" {
		n.Name = spec.Name
	}
	if spec.Position != nil {
		n.Position = *spec.Position
	}
	if spec.Size != nil {
		n.Size = *spec.Size
	}
	if spec.Config != nil {
		n.Config = *spec.Config
	}
	if tpl.Resources != nil {
		rc := capacityOf(*tpl.Resources, catalog.Resources{})
		n.Resources = &rc
	}
	return n
}

func (s *Store) rejectLocked(rej *RejectionError) error {
	s.mu.Unlock()
	s.logger.Debug("node_rejected", "type", rej.NodeType, "parent_id", rej.ParentID, "reason", rej.Reason)
	return rej
}

// CanAcceptNode reports whether a node of type t may be inserted under
// parentID right now.
func (s *Store) CanAcceptNode(parentID string, t catalog.NodeType) bool {
	return s.CheckAccept(parentID, t) == nil
}

// CheckAccept is CanAcceptNode with the rejection reason.
func (s *Store) CheckAccept(parentID string, t catalog.NodeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rej := s.checkAcceptLocked(parentID, t); rej != nil {
		return rej
	}
	return nil
}

func (s *Store) checkAcceptLocked(parentID string, t catalog.NodeType) *RejectionError {
	child, ok := catalog.NodeTemplateFor(t)
	if !ok {
		return reject(ReasonMissingTemplate, t, parentID, "")
	}
	parent, ok := s.nodes[parentID]
	if !ok {
		return reject(ReasonMissingParent, t, parentID, "")
	}
	ptpl, ok := catalog.NodeTemplateFor(parent.Type)
	if !ok {
		return reject(ReasonMissingTemplate, parent.Type, parentID, "parent template")
	}
	if !ptpl.Contains(child.Layer) {
		return reject(ReasonContainment, t, parentID, fmt.Sprintf("%s cannot contain %s", parent.Type, child.Layer))
	}
	if ptpl.Resources == nil || child.Resources == nil {
		return nil
	}
	avail := capacityOf(*ptpl.Resources, s.allocatedLocked(parent)).Available()
	need := *child.Resources
	switch {
	case need.CPU > avail.CPU:
		return reject(ReasonCapacity, t, parentID, fmt.Sprintf("cpu %g > %g available", need.CPU, avail.CPU))
	case need.Memory > avail.Memory:
		return reject(ReasonCapacity, t, parentID, fmt.Sprintf("memory %g > %g available", need.Memory, avail.Memory))
	case need.Storage > avail.Storage:
		return reject(ReasonCapacity, t, parentID, fmt.Sprintf("storage %g > %g available", need.Storage, avail.Storage))
	}
	return nil
}

// UpdateNode shallow-merges u into the node. It reports false, changing
// nothing, if id is unknown.
func (s *Store) UpdateNode(id string, u NodeUpdate) bool {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if u.Name != nil {
		n.Name = *u.Name
	}
	if u.Position != nil {
		n.Position = *u.Position
	}
	if u.Size != nil {
		n.Size = *u.Size
	}
	if u.Config != nil {
		n.Config = *u.Config
	}
	if u.Status != nil {
		n.Status = *u.Status
	}
	if u.Metrics != nil {
		n.Metrics = *u.Metrics
	}
	s.commit()
	return true
}

// SetHealth drives the external health state machine of a node.
func (s *Store) SetHealth(id string, h Health) error {
	if !h.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidHealth, h)
	}
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	n.Status.Health = h
	s.logger.Debug("node_health", "node_id", id, "health", h)
	s.commit()
	return nil
}

// DeleteNode removes the node and its whole subtree, detaches it from its
// parent and drops every deployment touching a removed node.
func (s *Store) DeleteNode(id string) bool {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if p, ok := s.nodes[n.ParentID]; ok {
		p.ChildIDs = without(p.ChildIDs, id)
	}

	removed := make(map[string]bool)
	s.deleteSubtreeLocked(id, removed)

	order := s.order[:0:0]
	for _, nid := range s.order {
		if !removed[nid] {
			order = append(order, nid)
		}
	}
	s.order = order

	kept := s.deployments[:0:0]
	for _, d := range s.deployments {
		if removed[d.TargetID] || removed[d.ApplicationID] {
			s.timers.Cancel(deployPrefix + d.ID)
			continue
		}
		kept = append(kept, d)
	}
	s.deployments = kept

	if removed[s.selected] {
		s.selected = ""
	}
	s.logger.Debug("node_deleted", "node_id", id, "removed", len(removed))
	s.commit()
	return true
}

// deleteSubtreeLocked removes descendants depth-first before the node itself.
func (s *Store) deleteSubtreeLocked(id string, removed map[string]bool) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	for _, cid := range n.ChildIDs {
		s.deleteSubtreeLocked(cid, removed)
	}
	delete(s.nodes, id)
	removed[id] = true
}

// SelectNode marks id as the selected node. An empty id clears the
// selection; an unknown id is ignored.
func (s *Store) SelectNode(id string) bool {
	s.mu.Lock()
	if id != "" {
		if _, ok := s.nodes[id]; !ok {
			s.mu.Unlock()
			return false
		}
	}
	s.selected = id
	s.commit()
	return true
}

func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Node returns a copy of the node with its allocation filled in.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return s.viewLocked(n), true
}

// Nodes returns every node in insertion order.
func (s *Store) Nodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodesLocked()
}

func (s *Store) Roots() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Node
	for _, id := range s.order {
		if n := s.nodes[id]; n.ParentID == "" {
			out = append(out, s.viewLocked(n))
		}
	}
	return out
}

// Children returns the direct children of id in insertion order.
func (s *Store) Children(id string) []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}
	out := make([]Node, 0, len(n.ChildIDs))
	for _, cid := range n.ChildIDs {
		if c, ok := s.nodes[cid]; ok {
			out = append(out, s.viewLocked(c))
		}
	}
	return out
}

// Snapshot returns a deep copy of the platform state.
func (s *Store) Snapshot() PlatformState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) nodesLocked() []Node {
	out := make([]Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.viewLocked(s.nodes[id]))
	}
	return out
}

// viewLocked copies n and fills its allocation from the current tree.
func (s *Store) viewLocked(n *Node) Node {
	v := n.clone()
	if v.Resources != nil {
		rc := capacityOf(v.Resources.Total(), s.allocatedLocked(n))
		v.Resources = &rc
		v.Status.Utilization = round(rc.Utilization())
	}
	return v
}

func (s *Store) snapshotLocked() PlatformState {
	st := PlatformState{
		Nodes:       s.nodesLocked(),
		Deployments: append([]Deployment{}, s.deployments...),
		Selected:    s.selected,
		Metrics:     s.metricsLocked(),
	}
	return st
}

// commit snapshots the state, releases s.mu and delivers the snapshot to
// every subscriber in registration order. Caller holds s.mu.
func (s *Store) commit() {
	st := s.snapshotLocked()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}

	s.deliverMu.Lock()
	s.mu.Unlock()
	defer s.deliverMu.Unlock()

	for _, fn := range subs {
		s.deliver(fn, st)
	}
}

func (s *Store) deliver(fn Subscriber, st PlatformState) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber_panic", "error", fmt.Sprint(r))
		}
	}()
	fn(st)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
