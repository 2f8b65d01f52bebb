package store

import (
	"context"
	"encoding/json"
	"time"
)

// EventType represents the kind of journal event.
type EventType string

const (
	EventTypeComponentAdded     EventType = "component_added"
	EventTypeComponentUpdated   EventType = "component_updated"
	EventTypeComponentRemoved   EventType = "component_removed"
	EventTypeIssueResolved      EventType = "issue_resolved"
	EventTypeResolveScheduled   EventType = "resolve_scheduled"
	EventTypeCheckpointCreated  EventType = "checkpoint_created"
	EventTypePipelineEvaluated  EventType = "pipeline_evaluated"
	EventTypeCheckpointRerun    EventType = "checkpoint_rerun"
	EventTypeRulesReloaded      EventType = "rules_reloaded"
	EventTypeScenarioLoaded     EventType = "scenario_loaded"
	EventTypeScenarioCleared    EventType = "scenario_cleared"
	EventTypeNodeAdded          EventType = "node_added"
	EventTypeNodeRejected       EventType = "node_rejected"
	EventTypeNodeUpdated        EventType = "node_updated"
	EventTypeNodeHealthSet      EventType = "node_health_set"
	EventTypeNodeDeleted        EventType = "node_deleted"
	EventTypeDeploymentCreated  EventType = "deployment_created"
	EventTypeDeploymentUpdated  EventType = "deployment_updated"
	EventTypeDeploymentRemoved  EventType = "deployment_removed"
)

// Engine names which half of the session produced an event.
type Engine string

const (
	EngineScoring   Engine = "scoring"
	EngineHierarchy Engine = "hierarchy"
	EngineSession   Engine = "session"
)

// EventID is a unique identifier for an event.
type EventID string

// Event is the journal envelope for every session mutation.
type Event struct {
	EventID       EventID         `json:"event_id"`
	EventType     EventType       `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	TsEvent       time.Time       `json:"ts_event"`
	TsIngest      time.Time       `json:"ts_ingest"`
	Source        EventSource     `json:"source"`
	Subject       EventSubject    `json:"subject"`
	Payload       json.RawMessage `json:"payload"`
}

// EventSource describes the origin of the event.
type EventSource struct {
	OriginKind string `json:"origin_kind"` // api, cli, mcp, watcher, daemon
	OriginID   string `json:"origin_id"`
	WriterID   string `json:"writer_id"` // Always "platformsim-d"
}

// EventSubject identifies the entity an event is about.
type EventSubject struct {
	Engine   Engine `json:"engine"`
	EntityID string `json:"entity_id"`
}

// EventFilter defines filters for querying events.
type EventFilter struct {
	From       time.Time
	To         time.Time
	EventTypes []EventType
	Engine     Engine
	EntityID   string
	Limit      int
}

// Snapshot represents a point-in-time capture of the session.
type Snapshot struct {
	SnapshotID    string          `json:"snapshot_id"`
	SchemaVersion int             `json:"schema_version"`
	TsSnapshot    time.Time       `json:"ts_snapshot"`
	LastEventID   EventID         `json:"last_event_id"`
	Payload       json.RawMessage `json:"payload"`
}

// Lease guards a journal against a second daemon writing to it.
// AcquiredAt is when the current holder took it; renewals keep it.
type Lease struct {
	Name       string    `json:"name"`
	HolderID   string    `json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	Version    int64     `json:"version"`
}

// LeaseStore defines the interface for acquiring and renewing leases.
type LeaseStore interface {
	// Acquire tries to acquire the lease. Returns true if successful.
	// If the lease is already held by holderID, it renews it.
	Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error)

	// Renew updates the expiry of an existing lease held by holderID.
	// Returns error if the lease is lost or stolen.
	Renew(ctx context.Context, name, holderID string, ttl time.Duration) error

	// Release releases the lease if held by holderID.
	Release(ctx context.Context, name, holderID string) error

	// GetLease returns the current lease state, or nil if nobody holds it.
	GetLease(ctx context.Context, name string) (*Lease, error)
}

const WriterID = "platformsim-d"
