package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func testEvent(id EventID, typ EventType, entity string) *Event {
	return &Event{
		EventID:       id,
		EventType:     typ,
		SchemaVersion: 1,
		TsEvent:       time.Now().UTC(),
		Source:        EventSource{OriginKind: "test", OriginID: "test", WriterID: WriterID},
		Subject:       EventSubject{Engine: EngineHierarchy, EntityID: entity},
		Payload:       json.RawMessage(`{}`),
	}
}

func TestGetEvent(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	val, err := store.GetEvent(ctx, "non_existent")
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil for non-existent event, got %v", val)
	}

	evt := testEvent("evt_get_1", EventTypeComponentAdded, "api-1")
	evt.Subject.Engine = EngineScoring
	evt.Payload = json.RawMessage(`{"type":"api"}`)
	if err := store.AppendEvent(ctx, evt); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}

	got, err := store.GetEvent(ctx, "evt_get_1")
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if got == nil {
		t.Fatalf("expected event, got nil")
	}
	if got.EventType != EventTypeComponentAdded {
		t.Errorf("expected type %s, got %s", EventTypeComponentAdded, got.EventType)
	}
	if got.Subject != (EventSubject{Engine: EngineScoring, EntityID: "api-1"}) {
		t.Errorf("unexpected subject %+v", got.Subject)
	}
	if got.Source.WriterID != WriterID {
		t.Errorf("expected writer %s, got %s", WriterID, got.Source.WriterID)
	}
	if string(got.Payload) != `{"type":"api"}` {
		t.Errorf("unexpected payload %s", got.Payload)
	}
	if got.TsIngest.IsZero() {
		t.Errorf("expected ingest time to be stamped")
	}
}

func TestAppendEvent_Errors(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.AppendEvent(ctx, &Event{}); err == nil {
		t.Errorf("expected error for event without id")
	}

	evt := testEvent("dup", EventTypeNodeAdded, "n")
	if err := store.AppendEvent(ctx, evt); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	if err := store.AppendEvent(ctx, evt); err == nil {
		t.Errorf("expected error appending duplicate id")
	}

	noPayload := testEvent("empty", EventTypeNodeAdded, "n")
	noPayload.Payload = nil
	if err := store.AppendEvent(ctx, noPayload); err != nil {
		t.Fatalf("AppendEvent with empty payload failed: %v", err)
	}
	got, _ := store.GetEvent(ctx, "empty")
	if string(got.Payload) != "{}" {
		t.Errorf("expected {} payload, got %s", got.Payload)
	}
}

func TestReadRecentEvents(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if err := store.AppendEvent(ctx, testEvent(EventID(fmt.Sprintf("evt_%d", i)), EventTypeNodeAdded, "n")); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	recent, err := store.ReadRecentEvents(ctx, 3)
	if err != nil {
		t.Fatalf("ReadRecentEvents failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 events, got %d", len(recent))
	}
	// Newest first (5, 4, 3)
	if recent[0].EventID != "evt_5" {
		t.Errorf("expected first to be evt_5, got %s", recent[0].EventID)
	}
	if recent[2].EventID != "evt_3" {
		t.Errorf("expected last to be evt_3, got %s", recent[2].EventID)
	}

	recentAll, err := store.ReadRecentEvents(ctx, 0)
	if err != nil {
		t.Fatalf("ReadRecentEvents failed: %v", err)
	}
	if len(recentAll) != 5 {
		t.Errorf("expected 5 events, got %d", len(recentAll))
	}
}

func TestQueryEvents(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	baseTime := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	events := []*Event{
		testEvent("evt_n1", EventTypeNodeAdded, "node-1"),
		testEvent("evt_n1_del", EventTypeNodeDeleted, "node-1"),
		testEvent("evt_c1", EventTypeComponentAdded, "api-1"),
	}
	events[1].TsEvent = baseTime.Add(time.Hour)
	events[0].TsEvent = baseTime
	events[2].TsEvent = baseTime.Add(2 * time.Hour)
	events[2].Subject.Engine = EngineScoring
	for _, e := range events {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter EventFilter
		want   []EventID
	}{
		{"all", EventFilter{}, []EventID{"evt_n1", "evt_n1_del", "evt_c1"}},
		{"time range", EventFilter{From: baseTime.Add(30 * time.Minute), To: baseTime.Add(90 * time.Minute)}, []EventID{"evt_n1_del"}},
		{"engine", EventFilter{Engine: EngineHierarchy}, []EventID{"evt_n1", "evt_n1_del"}},
		{"entity", EventFilter{EntityID: "api-1"}, []EventID{"evt_c1"}},
		{"types", EventFilter{EventTypes: []EventType{EventTypeNodeDeleted, EventTypeComponentAdded}}, []EventID{"evt_n1_del", "evt_c1"}},
		{"limit", EventFilter{Limit: 1}, []EventID{"evt_n1"}},
		{"no match", EventFilter{EntityID: "ghost"}, []EventID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := store.QueryEvents(ctx, tt.filter)
			if err != nil {
				t.Fatalf("QueryEvents failed: %v", err)
			}
			if len(res) != len(tt.want) {
				t.Fatalf("expected %d events, got %d", len(tt.want), len(res))
			}
			for i, id := range tt.want {
				if res[i].EventID != id {
					t.Errorf("event %d: expected %s, got %s", i, id, res[i].EventID)
				}
			}
		})
	}
}

func TestPruneEvents(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	old := testEvent("old", EventTypeNodeAdded, "n")
	old.TsEvent = now.Add(-48 * time.Hour)
	fresh := testEvent("fresh", EventTypeNodeAdded, "n")
	fresh.TsEvent = now
	for _, e := range []*Event{old, fresh} {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	n, err := store.PruneEvents(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneEvents failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned event, got %d", n)
	}
	if got, _ := store.GetEvent(ctx, "old"); got != nil {
		t.Errorf("expected old event to be pruned")
	}
	if got, _ := store.GetEvent(ctx, "fresh"); got == nil {
		t.Errorf("expected fresh event to survive")
	}
}

func TestSnapshots(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	snap, err := store.GetLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("GetLatestSnapshot failed: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot, got %v", snap)
	}

	base := time.Now().UTC()
	for i, id := range []string{"snap_1", "snap_2"} {
		err := store.SaveSnapshot(ctx, &Snapshot{
			SnapshotID:    id,
			SchemaVersion: 1,
			TsSnapshot:    base.Add(time.Duration(i) * time.Minute),
			LastEventID:   "evt_last",
			Payload:       json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)),
		})
		if err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}
	}

	snap, err = store.GetLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("GetLatestSnapshot failed: %v", err)
	}
	if snap == nil {
		t.Fatalf("expected snapshot, got nil")
	}
	if snap.SnapshotID != "snap_2" {
		t.Errorf("expected snap_2, got %s", snap.SnapshotID)
	}
	if snap.LastEventID != "evt_last" {
		t.Errorf("expected last event evt_last, got %s", snap.LastEventID)
	}
	if string(snap.Payload) != `{"n":1}` {
		t.Errorf("unexpected payload %s", snap.Payload)
	}
	if snap.TsSnapshot.Unix() != base.Add(time.Minute).Unix() {
		t.Errorf("expected time %v, got %v", base.Add(time.Minute), snap.TsSnapshot)
	}
}
