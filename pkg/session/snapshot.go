package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rmax-ai/platformsim/pkg/blob"
	"github.com/rmax-ai/platformsim/pkg/hierarchy"
	"github.com/rmax-ai/platformsim/pkg/scenario"
	"github.com/rmax-ai/platformsim/pkg/scoring"
	"github.com/rmax-ai/platformsim/pkg/store"
)

const DefaultSnapshotInterval = time.Minute

// SnapshotPayload is the JSON blob stored in journal snapshots.
type SnapshotPayload struct {
	Simulation scoring.SimulationState `json:"simulation"`
	Platform   hierarchy.PlatformState `json:"platform"`
	ScenarioID string                  `json:"scenarioId,omitempty"`
}

// TakeSnapshot captures both engines and saves them to the journal.
func (s *Session) TakeSnapshot(ctx context.Context) error {
	if s.journal == nil {
		return ErrNoJournal
	}
	payload := SnapshotPayload{
		Simulation: s.Simulation(),
		Platform:   s.Platform(),
	}
	if sc, ok := s.CurrentScenario(); ok {
		payload.ScenarioID = sc.ID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot payload: %w", err)
	}

	now := s.now().UTC()
	snap := &store.Snapshot{
		SnapshotID:    fmt.Sprintf("snap_%d", now.UnixNano()),
		SchemaVersion: 1,
		TsSnapshot:    now,
		LastEventID:   store.EventID(s.lastEvent.Load().(string)),
		Payload:       data,
	}
	if err := s.journal.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("store save failed: %w", err)
	}
	return nil
}

// Restore replaces both engines with the latest journal snapshot. It
// reports false when the journal holds no snapshot.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	if s.journal == nil {
		return false, ErrNoJournal
	}
	snap, err := s.journal.GetLatestSnapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	if snap == nil {
		return false, nil
	}

	var payload SnapshotPayload
	if err := json.Unmarshal(snap.Payload, &payload); err != nil {
		return false, fmt.Errorf("failed to unmarshal snapshot payload: %w", err)
	}

	var current *scenario.Scenario
	if payload.ScenarioID != "" {
		if sc, err := s.registry.Get(payload.ScenarioID); err == nil {
			current = &sc
		} else {
			s.logger.Warn("snapshot_scenario_missing", "scenario_id", payload.ScenarioID)
		}
	}
	eng := s.newScoring(scoring.WithState(payload.Simulation))
	plat := hierarchy.New(s.platformOptions(hierarchy.WithState(payload.Platform))...)
	s.install(eng, plat, current)
	s.lastEvent.Store(string(snap.LastEventID))

	s.logger.Info("snapshot_restored",
		"snapshot_id", snap.SnapshotID,
		"components", len(payload.Simulation.Components),
		"nodes", len(payload.Platform.Nodes),
	)
	return true, nil
}

// SnapshotWorker periodically persists the session to the journal and
// prunes events older than the retention window.
type SnapshotWorker struct {
	session   *Session
	interval  time.Duration
	retention time.Duration
	archive   blob.Store
	logger    *slog.Logger
}

// NewSnapshotWorker creates a worker. A zero retention keeps every event.
func NewSnapshotWorker(s *Session, interval, retention time.Duration) *SnapshotWorker {
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	return &SnapshotWorker{session: s, interval: interval, retention: retention, logger: s.logger}
}

// WithArchive makes the worker copy events to b before pruning them.
// Events stay in the journal when the copy fails.
func (w *SnapshotWorker) WithArchive(b blob.Store) *SnapshotWorker {
	w.archive = b
	return w
}

// Run snapshots on every tick and once more on shutdown.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("snapshot_worker_started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			// ctx is already done; give the final snapshot its own deadline
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.tick(final)
			cancel()
			w.logger.Info("snapshot_worker_stopped")
			return nil
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *SnapshotWorker) tick(ctx context.Context) {
	if err := w.session.TakeSnapshot(ctx); err != nil {
		w.logger.Error("snapshot_failed", "error", err)
	} else {
		w.logger.Debug("snapshot_created")
	}
	if w.retention <= 0 || w.session.journal == nil {
		return
	}
	cutoff := w.session.now().Add(-w.retention)
	if w.archive != nil {
		key, count, err := w.session.archiveEvents(ctx, w.archive, cutoff)
		if err != nil {
			w.logger.Error("archive_failed", "error", err)
			return
		}
		if count > 0 {
			w.logger.Info("events_archived", "key", key, "count", count)
		}
	}
	n, err := w.session.journal.PruneEvents(ctx, cutoff)
	if err != nil {
		w.logger.Error("prune_failed", "error", err)
		return
	}
	if n > 0 {
		w.logger.Info("events_pruned", "count", n)
	}
}
