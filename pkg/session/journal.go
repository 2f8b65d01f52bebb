package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rmax-ai/platformsim/pkg/store"
)

// ErrNoJournal is returned by journal queries when the session runs
// without one.
var ErrNoJournal = errors.New("session has no journal")

// Journal is the subset of store.Store the session writes to.
type Journal interface {
	AppendEvent(ctx context.Context, evt *store.Event) error
	ReadRecentEvents(ctx context.Context, limit int) ([]*store.Event, error)
	QueryEvents(ctx context.Context, f store.EventFilter) ([]*store.Event, error)
	SaveSnapshot(ctx context.Context, snap *store.Snapshot) error
	GetLatestSnapshot(ctx context.Context) (*store.Snapshot, error)
	PruneEvents(ctx context.Context, before time.Time) (int64, error)
}

var _ Journal = (*store.Store)(nil)

type originKey struct{}

// WithOrigin tags journal events written under ctx with the caller that
// caused them.
func WithOrigin(ctx context.Context, kind, id string) context.Context {
	return context.WithValue(ctx, originKey{}, store.EventSource{OriginKind: kind, OriginID: id, WriterID: store.WriterID})
}

func originFrom(ctx context.Context) store.EventSource {
	if src, ok := ctx.Value(originKey{}).(store.EventSource); ok {
		return src
	}
	return store.EventSource{OriginKind: "daemon", OriginID: "session", WriterID: store.WriterID}
}

// record appends one event. Journal failures are logged and counted; the
// in-memory engines stay authoritative.
func (s *Session) record(ctx context.Context, typ store.EventType, eng store.Engine, entity string, payload any) {
	if s.journal == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("journal_marshal_failed", "event_type", typ, "error", err)
		JournalErrors.Inc()
		return
	}
	evt := &store.Event{
		EventID:       store.EventID("evt_" + uuid.NewString()),
		EventType:     typ,
		SchemaVersion: 1,
		TsEvent:       s.now().UTC(),
		Source:        originFrom(ctx),
		Subject:       store.EventSubject{Engine: eng, EntityID: entity},
		Payload:       data,
	}
	if err := s.journal.AppendEvent(ctx, evt); err != nil {
		s.logger.Warn("journal_append_failed", "event_type", typ, "error", err)
		JournalErrors.Inc()
		return
	}
	s.lastEvent.Store(string(evt.EventID))
}

// Events returns the newest journal events first.
func (s *Session) Events(ctx context.Context, limit int) ([]*store.Event, error) {
	if s.journal == nil {
		return nil, ErrNoJournal
	}
	return s.journal.ReadRecentEvents(ctx, limit)
}

// EntityEvents returns the journal history of one component, node or
// deployment, oldest first.
func (s *Session) EntityEvents(ctx context.Context, entityID string) ([]*store.Event, error) {
	if s.journal == nil {
		return nil, ErrNoJournal
	}
	return s.journal.QueryEvents(ctx, store.EventFilter{EntityID: entityID})
}

// QueryEvents runs an arbitrary journal filter, oldest first.
func (s *Session) QueryEvents(ctx context.Context, f store.EventFilter) ([]*store.Event, error) {
	if s.journal == nil {
		return nil, ErrNoJournal
	}
	return s.journal.QueryEvents(ctx, f)
}
