package session

import (
	"context"

	"github.com/rmax-ai/platformsim/pkg/scenario"
	"github.com/rmax-ai/platformsim/pkg/scoring"
	"github.com/rmax-ai/platformsim/pkg/store"
)

func (s *Session) Scenarios() []scenario.Scenario {
	return s.registry.List()
}

// Registry exposes the scenario registry so callers can add file-loaded
// scenarios.
func (s *Session) Registry() *scenario.Registry {
	return s.registry
}

// LoadScenario replaces the scoring engine with one seeded from the
// scenario's initial components. The hierarchy is left alone.
func (s *Session) LoadScenario(ctx context.Context, id string) (scenario.Scenario, error) {
	sc, err := s.registry.Get(id)
	if err != nil {
		return scenario.Scenario{}, err
	}
	eng := s.newScoring(
		scoring.WithInitialComponents(sc.InitialComponents),
		scoring.WithScenario(sc.Ref()),
	)
	s.install(eng, nil, &sc)
	s.logger.Info("scenario_loaded", "scenario_id", sc.ID, "components", len(sc.InitialComponents))
	s.record(ctx, store.EventTypeScenarioLoaded, store.EngineSession, sc.ID, sc.Ref())
	return sc, nil
}

// ClearScenario resets the scoring engine to an empty simulation.
func (s *Session) ClearScenario(ctx context.Context) {
	s.install(s.newScoring(), nil, nil)
	s.logger.Info("scenario_cleared")
	s.record(ctx, store.EventTypeScenarioCleared, store.EngineSession, "", struct{}{})
}

// CurrentScenario returns the loaded scenario, if any.
func (s *Session) CurrentScenario() (scenario.Scenario, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return scenario.Scenario{}, false
	}
	return *s.current, true
}

// Progress evaluates the loaded scenario against the current metrics.
func (s *Session) Progress() (scenario.Progress, bool) {
	sc, ok := s.CurrentScenario()
	if !ok {
		return scenario.Progress{}, false
	}
	return scenario.Evaluate(sc, s.Scoring().Metrics()), true
}
