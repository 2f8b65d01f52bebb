package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrLeaseLost is returned by Renew when holderID no longer owns the lease.
var ErrLeaseLost = errors.New("lease lost or stolen")

// leaseSchema lives beside the journal tables: a lease row names the daemon
// allowed to append to this database.
const leaseSchema = `
	CREATE TABLE IF NOT EXISTS leases (
		name TEXT PRIMARY KEY,
		holder_id TEXT NOT NULL,
		acquired_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		version INTEGER NOT NULL
	);
`

// Acquire inserts the lease row, or takes the existing one over when it is
// already ours or has expired. acquired_at only moves on a change of holder.
func (s *Store) Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leases (name, holder_id, acquired_at, expires_at, version)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(name) DO UPDATE SET
			acquired_at = CASE WHEN leases.holder_id = excluded.holder_id
				THEN leases.acquired_at ELSE excluded.acquired_at END,
			holder_id = excluded.holder_id,
			expires_at = excluded.expires_at,
			version = leases.version + 1
		WHERE leases.holder_id = excluded.holder_id OR leases.expires_at < ?
	`, name, holderID, now, now.Add(ttl), now)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n > 0, nil
}

// Renew extends an unexpired lease held by holderID. An expired lease is
// treated as lost even if nobody took it over yet.
func (s *Store) Renew(ctx context.Context, name, holderID string, ttl time.Duration) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE leases SET expires_at = ?, version = version + 1
		WHERE name = ? AND holder_id = ? AND expires_at >= ?
	`, now.Add(ttl), name, holderID, now)
	if err != nil {
		return fmt.Errorf("failed to renew lease %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Release deletes the row when holderID owns it; otherwise it is a no-op.
func (s *Store) Release(ctx context.Context, name, holderID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM leases WHERE name = ? AND holder_id = ?`, name, holderID); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", name, err)
	}
	return nil
}

// GetLease returns the live lease, or nil when the row is missing or expired.
func (s *Store) GetLease(ctx context.Context, name string) (*Lease, error) {
	l := Lease{Name: name}
	err := s.db.QueryRowContext(ctx, `
		SELECT holder_id, acquired_at, expires_at, version
		FROM leases WHERE name = ? AND expires_at >= ?
	`, name, time.Now().UTC()).Scan(&l.HolderID, &l.AcquiredAt, &l.ExpiresAt, &l.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lease %s: %w", name, err)
	}
	return &l, nil
}
