package scoring

import (
	"errors"
	"fmt"
)

var ErrCheckpointNotFound = errors.New("checkpoint not found")

// CreateCheckpoint evaluates gate t against c. It does not change the
// simulation state.
func (e *Engine) CreateCheckpoint(t CheckpointType, c Component) (Checkpoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return NewCheckpoint(t, c, e.rng)
}

// CheckComponent evaluates gate t against the stored component id.
func (e *Engine) CheckComponent(t CheckpointType, id string) (Checkpoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		return Checkpoint{}, fmt.Errorf("%w: %s", ErrComponentNotFound, id)
	}
	return NewCheckpoint(t, e.components[i], e.rng)
}

// EvaluatePipeline runs every gate against every component and stores the
// results as the session's checkpoint list, replacing any previous run.
func (e *Engine) EvaluatePipeline() []Checkpoint {
	e.mu.Lock()
	for _, cp := range e.checkpoints {
		e.timers.Cancel(rerunKey(cp.ID))
	}
	out := make([]Checkpoint, 0, len(e.components)*len(CheckpointTypes))
	for _, c := range e.components {
		for _, t := range CheckpointTypes {
			cp, err := NewCheckpoint(t, c, e.rng)
			if err != nil {
				continue
			}
			cp.Name = fmt.Sprintf("%s - %s", cp.Name, c.Name)
			out = append(out, cp)
		}
	}
	e.checkpoints = out

	passed := 0
	for _, cp := range out {
		if cp.Passed {
			passed++
		}
	}
	e.logger.Debug("pipeline_evaluated", "checkpoints", len(out), "passed", passed)

	result := make([]Checkpoint, len(out))
	for i, cp := range out {
		result[i] = cp.clone()
	}
	e.commit()
	return result
}

// Checkpoints returns the stored pipeline results.
func (e *Engine) Checkpoints() []Checkpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Checkpoint, 0, len(e.checkpoints))
	for _, cp := range e.checkpoints {
		out = append(out, cp.clone())
	}
	return out
}

// RerunCheckpoint marks the checkpoint as running and re-evaluates it after
// the re-run delay. It reports false if the checkpoint is unknown or already
// running.
func (e *Engine) RerunCheckpoint(id string) bool {
	e.mu.Lock()
	i := e.checkpointIndex(id)
	if i < 0 {
		e.mu.Unlock()
		return false
	}
	if !e.timers.Schedule(rerunKey(id), e.rerunDelay, func() { e.finishRerun(id) }) {
		e.mu.Unlock()
		return false
	}
	e.checkpoints[i].Running = true
	e.commit()
	return true
}

func (e *Engine) finishRerun(id string) {
	e.mu.Lock()
	i := e.checkpointIndex(id)
	if i < 0 {
		e.mu.Unlock()
		e.logger.Debug("checkpoint_rerun_skipped", "checkpoint_id", id)
		return
	}
	cp := &e.checkpoints[i]
	ci := e.indexOf(cp.Component)
	if ci < 0 {
		e.mu.Unlock()
		e.logger.Debug("checkpoint_rerun_skipped", "checkpoint_id", id, "component_id", cp.Component)
		return
	}
	cp.setOutcome(Passes(cp.Type, e.components[ci], e.rng))
	e.logger.Debug("checkpoint_rerun", "checkpoint_id", id, "passed", cp.Passed)
	e.commit()
}

func (e *Engine) checkpointIndex(id string) int {
	for i, cp := range e.checkpoints {
		if cp.ID == id {
			return i
		}
	}
	return -1
}
