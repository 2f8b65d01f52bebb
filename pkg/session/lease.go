package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rmax-ai/platformsim/pkg/store"
)

const (
	JournalLeaseName = "journal"
	DefaultLeaseTTL  = 30 * time.Second
)

var (
	// ErrLeaseHeld means another daemon writes to the journal.
	ErrLeaseHeld = errors.New("journal lease held by another writer")
	// ErrLeaseLost means a renewal failed after the lease was acquired.
	ErrLeaseLost = errors.New("journal lease lost")
)

// WriterLease keeps a single daemon writing to a journal. It is acquired
// once at startup and renewed every ttl/2 until the context ends.
type WriterLease struct {
	store    store.LeaseStore
	holderID string
	name     string
	ttl      time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	held bool
}

func NewWriterLease(ls store.LeaseStore, holderID string, ttl time.Duration, logger *slog.Logger) *WriterLease {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WriterLease{
		store:    ls,
		holderID: holderID,
		name:     JournalLeaseName,
		ttl:      ttl,
		logger:   logger,
	}
}

// Acquire takes the lease or reports ErrLeaseHeld with the current holder.
func (l *WriterLease) Acquire(ctx context.Context) error {
	ok, err := l.store.Acquire(ctx, l.name, l.holderID, l.ttl)
	if err != nil {
		return fmt.Errorf("failed to acquire journal lease: %w", err)
	}
	if !ok {
		holder := "unknown"
		if cur, err := l.store.GetLease(ctx, l.name); err == nil && cur != nil {
			holder = cur.HolderID
			if !cur.AcquiredAt.IsZero() {
				holder += " since " + cur.AcquiredAt.Format(time.RFC3339)
			}
		}
		return fmt.Errorf("%w: %s", ErrLeaseHeld, holder)
	}
	l.setHeld(true)
	l.logger.Info("lease_acquired", "holder_id", l.holderID, "lease_name", l.name)
	return nil
}

// Held reports whether the last acquire or renew succeeded.
func (l *WriterLease) Held() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.held
}

func (l *WriterLease) setHeld(v bool) {
	l.mu.Lock()
	l.held = v
	l.mu.Unlock()
}

// Release gives the lease up. It does nothing unless the lease is held, so
// it is safe to defer next to Run.
func (l *WriterLease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return nil
	}
	if err := l.store.Release(ctx, l.name, l.holderID); err != nil {
		return fmt.Errorf("failed to release journal lease: %w", err)
	}
	l.held = false
	l.logger.Info("lease_released", "holder_id", l.holderID)
	return nil
}

// Run renews the lease until ctx ends, then releases it. A failed renewal
// returns ErrLeaseLost so the daemon can stop writing.
func (l *WriterLease) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			release, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.Release(release); err != nil {
				l.logger.Error("lease_release_failed", "holder_id", l.holderID, "error", err)
			}
			return nil
		case <-ticker.C:
			if err := l.store.Renew(ctx, l.name, l.holderID, l.ttl); err != nil {
				if ctx.Err() != nil {
					continue
				}
				l.setHeld(false)
				l.logger.Error("lease_lost", "holder_id", l.holderID, "error", err)
				return fmt.Errorf("%w: %v", ErrLeaseLost, err)
			}
			l.logger.Debug("lease_renewed", "holder_id", l.holderID)
		}
	}
}
