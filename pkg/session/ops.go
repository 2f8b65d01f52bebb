package session

import (
	"context"
	"errors"

	"github.com/rmax-ai/platformsim/pkg/hierarchy"
	"github.com/rmax-ai/platformsim/pkg/scoring"
	"github.com/rmax-ai/platformsim/pkg/store"
)

// Scoring mutations. Each one forwards to the current engine and journals
// the outcome when it changed something.

func (s *Session) AddComponent(ctx context.Context, c scoring.Component) (scoring.Component, error) {
	added, err := s.Scoring().AddComponent(c)
	if err != nil {
		return scoring.Component{}, err
	}
	s.record(ctx, store.EventTypeComponentAdded, store.EngineScoring, added.ID, added)
	return added, nil
}

func (s *Session) UpdateComponent(ctx context.Context, id string, u scoring.ComponentUpdate) bool {
	if !s.Scoring().UpdateComponent(id, u) {
		return false
	}
	s.record(ctx, store.EventTypeComponentUpdated, store.EngineScoring, id, u)
	return true
}

func (s *Session) RemoveComponent(ctx context.Context, id string) bool {
	if !s.Scoring().RemoveComponent(id) {
		return false
	}
	s.record(ctx, store.EventTypeComponentRemoved, store.EngineScoring, id, map[string]string{"id": id})
	return true
}

func (s *Session) ResolveIssue(ctx context.Context, id string) bool {
	if !s.Scoring().ResolveIssue(id) {
		return false
	}
	s.record(ctx, store.EventTypeIssueResolved, store.EngineScoring, id, map[string]string{"id": id})
	return true
}

// ScheduleResolve starts the delayed "fix" of an issue.
func (s *Session) ScheduleResolve(ctx context.Context, id string) bool {
	if !s.Scoring().ScheduleResolve(id) {
		return false
	}
	s.record(ctx, store.EventTypeResolveScheduled, store.EngineScoring, id, map[string]string{"id": id})
	return true
}

// CheckComponent evaluates one checkpoint against a stored component
// without changing the simulation.
func (s *Session) CheckComponent(ctx context.Context, t scoring.CheckpointType, componentID string) (scoring.Checkpoint, error) {
	cp, err := s.Scoring().CheckComponent(t, componentID)
	if err != nil {
		return scoring.Checkpoint{}, err
	}
	s.record(ctx, store.EventTypeCheckpointCreated, store.EngineScoring, componentID, cp)
	return cp, nil
}

func (s *Session) EvaluatePipeline(ctx context.Context) []scoring.Checkpoint {
	cps := s.Scoring().EvaluatePipeline()
	passed := 0
	for _, cp := range cps {
		if cp.Passed {
			passed++
		}
	}
	s.record(ctx, store.EventTypePipelineEvaluated, store.EngineScoring, "", map[string]int{"checkpoints": len(cps), "passed": passed})
	return cps
}

func (s *Session) RerunCheckpoint(ctx context.Context, id string) bool {
	if !s.Scoring().RerunCheckpoint(id) {
		return false
	}
	s.record(ctx, store.EventTypeCheckpointRerun, store.EngineScoring, id, map[string]string{"id": id})
	return true
}

// SetRunning starts or pauses the simulation clock controls.
func (s *Session) SetRunning(running bool) {
	if running {
		s.Scoring().Start()
		return
	}
	s.Scoring().Pause()
}

func (s *Session) SetSpeed(speed int) error {
	return s.Scoring().SetSpeed(speed)
}

// SetCustomRules replaces the extra issue rules of the current engine and
// of every engine a later scenario reset builds.
func (s *Session) SetCustomRules(ctx context.Context, rules []scoring.Rule) {
	s.mu.Lock()
	s.rules = append([]scoring.Rule(nil), rules...)
	eng := s.scoring
	s.mu.Unlock()
	eng.SetCustomRules(rules)

	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name())
	}
	s.record(ctx, store.EventTypeRulesReloaded, store.EngineScoring, "", map[string][]string{"rules": names})
}

// Hierarchy mutations.

// AddNode inserts a node and counts rejections by reason.
func (s *Session) AddNode(ctx context.Context, spec hierarchy.NodeSpec, parentID string) (string, error) {
	id, err := s.Hierarchy().AddNode(spec, parentID)
	if err != nil {
		reason, _ := hierarchy.ReasonOf(err)
		NodeRejections.WithLabelValues(string(reason)).Inc()
		s.record(ctx, store.EventTypeNodeRejected, store.EngineHierarchy, parentID, map[string]string{
			"type":   string(spec.Type),
			"parent": parentID,
			"reason": string(reason),
			"error":  err.Error(),
		})
		return "", err
	}
	node, _ := s.Hierarchy().Node(id)
	s.record(ctx, store.EventTypeNodeAdded, store.EngineHierarchy, id, node)
	return id, nil
}

func (s *Session) UpdateNode(ctx context.Context, id string, u hierarchy.NodeUpdate) bool {
	if !s.Hierarchy().UpdateNode(id, u) {
		return false
	}
	s.record(ctx, store.EventTypeNodeUpdated, store.EngineHierarchy, id, u)
	return true
}

func (s *Session) SetHealth(ctx context.Context, id string, h hierarchy.Health) error {
	if err := s.Hierarchy().SetHealth(id, h); err != nil {
		return err
	}
	s.record(ctx, store.EventTypeNodeHealthSet, store.EngineHierarchy, id, map[string]string{"health": string(h)})
	return nil
}

func (s *Session) DeleteNode(ctx context.Context, id string) bool {
	if !s.Hierarchy().DeleteNode(id) {
		return false
	}
	s.record(ctx, store.EventTypeNodeDeleted, store.EngineHierarchy, id, map[string]string{"id": id})
	return true
}

func (s *Session) SelectNode(id string) bool {
	return s.Hierarchy().SelectNode(id)
}

// NodeResources returns the shallow rollup, or the transitive one when deep
// is set.
func (s *Session) NodeResources(id string, deep bool) (hierarchy.ResourceCapacity, bool) {
	if deep {
		return s.Hierarchy().SubtreeResources(id)
	}
	return s.Hierarchy().GetNodeResources(id)
}

func (s *Session) DeployApplication(ctx context.Context, appID, targetID, environment string) (hierarchy.Deployment, error) {
	d, err := s.Hierarchy().DeployApplication(appID, targetID, environment)
	if err != nil {
		if errors.Is(err, hierarchy.ErrInvalidDeployment) {
			Deployments.WithLabelValues("invalid").Inc()
		}
		return hierarchy.Deployment{}, err
	}
	Deployments.WithLabelValues("created").Inc()
	s.record(ctx, store.EventTypeDeploymentCreated, store.EngineHierarchy, d.ID, d)
	return d, nil
}

func (s *Session) UpdateDeployment(ctx context.Context, id string, u hierarchy.DeploymentUpdate) bool {
	if !s.Hierarchy().UpdateDeployment(id, u) {
		return false
	}
	s.record(ctx, store.EventTypeDeploymentUpdated, store.EngineHierarchy, id, u)
	return true
}

func (s *Session) RemoveDeployment(ctx context.Context, id string) bool {
	if !s.Hierarchy().RemoveDeployment(id) {
		return false
	}
	s.record(ctx, store.EventTypeDeploymentRemoved, store.EngineHierarchy, id, map[string]string{"id": id})
	return true
}
