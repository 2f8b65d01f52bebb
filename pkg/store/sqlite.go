package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const defaultRecentLimit = 100

// Store is the session journal: an append-only events table plus periodic
// snapshots, backed by SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the SQLite database connection.
// It enables WAL mode for concurrency and durability. The path ":memory:"
// keeps the journal in process memory.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS events (
		event_id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		schema_version INTEGER NOT NULL,
		ts_event DATETIME NOT NULL,
		ts_ingest DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,

		origin_kind TEXT,
		origin_id TEXT,
		writer_id TEXT,

		engine TEXT NOT NULL,
		entity_id TEXT NOT NULL,

		payload JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_ts_event ON events(ts_event);
	CREATE INDEX IF NOT EXISTS idx_events_entity ON events(engine, entity_id);

	CREATE TABLE IF NOT EXISTS snapshots (
		snapshot_id TEXT PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		ts_snapshot DATETIME NOT NULL,
		last_event_id TEXT,
		payload JSON NOT NULL
	);

	` + leaseSchema

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// AppendEvent writes evt to the journal. A zero TsIngest is stamped with
// the current time.
func (s *Store) AppendEvent(ctx context.Context, evt *Event) error {
	if evt.EventID == "" {
		return errors.New("event id is required")
	}
	if evt.TsIngest.IsZero() {
		evt.TsIngest = time.Now().UTC()
	}
	payload := evt.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			event_id, event_type, schema_version, ts_event, ts_ingest,
			origin_kind, origin_id, writer_id,
			engine, entity_id, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		evt.EventID, evt.EventType, evt.SchemaVersion, evt.TsEvent.UTC(), evt.TsIngest.UTC(),
		evt.Source.OriginKind, evt.Source.OriginID, evt.Source.WriterID,
		evt.Subject.Engine, evt.Subject.EntityID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to append event %s: %w", evt.EventID, err)
	}
	return nil
}

const eventColumns = `event_id, event_type, schema_version, ts_event, ts_ingest,
	origin_kind, origin_id, writer_id, engine, entity_id, payload`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*Event, error) {
	var (
		e       Event
		payload string
		origin  sql.NullString
		oid     sql.NullString
		writer  sql.NullString
	)
	if err := row.Scan(
		&e.EventID, &e.EventType, &e.SchemaVersion, &e.TsEvent, &e.TsIngest,
		&origin, &oid, &writer, &e.Subject.Engine, &e.Subject.EntityID, &payload,
	); err != nil {
		return nil, err
	}
	e.Source = EventSource{OriginKind: origin.String, OriginID: oid.String, WriterID: writer.String}
	e.Payload = []byte(payload)
	return &e, nil
}

// GetEvent returns the event with id, or nil if there is none.
func (s *Store) GetEvent(ctx context.Context, id EventID) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE event_id = ?`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// ReadRecentEvents returns up to limit events, newest first. A limit of
// zero or less means the default of 100.
func (s *Store) ReadRecentEvents(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// QueryEvents returns the events matching f in journal order.
func (s *Store) QueryEvents(ctx context.Context, f EventFilter) ([]*Event, error) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsZero() {
		where = append(where, "ts_event >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "ts_event <= ?")
		args = append(args, f.To.UTC())
	}
	if len(f.EventTypes) > 0 {
		marks := make([]string, len(f.EventTypes))
		for i, t := range f.EventTypes {
			marks[i] = "?"
			args = append(args, t)
		}
		where = append(where, "event_type IN ("+strings.Join(marks, ", ")+")")
	}
	if f.Engine != "" {
		where = append(where, "engine = ?")
		args = append(args, f.Engine)
	}
	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]*Event, error) {
	events := []*Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// PruneEvents deletes events older than before and returns how many went.
func (s *Store) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE ts_event < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n, nil
}

// SaveSnapshot stores snap. Snapshots are never updated in place.
func (s *Store) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (snapshot_id, schema_version, ts_snapshot, last_event_id, payload)
		VALUES (?, ?, ?, ?, ?)
	`, snap.SnapshotID, snap.SchemaVersion, snap.TsSnapshot.UTC(), snap.LastEventID, string(snap.Payload))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetLatestSnapshot returns the newest snapshot, or nil if none exists.
func (s *Store) GetLatestSnapshot(ctx context.Context) (*Snapshot, error) {
	var (
		snap    Snapshot
		lastID  sql.NullString
		payload string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot_id, schema_version, ts_snapshot, last_event_id, payload
		FROM snapshots ORDER BY ts_snapshot DESC, rowid DESC LIMIT 1
	`).Scan(&snap.SnapshotID, &snap.SchemaVersion, &snap.TsSnapshot, &lastID, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	snap.LastEventID = EventID(lastID.String)
	snap.Payload = []byte(payload)
	return &snap, nil
}
