// Package redis mirrors the session's latest snapshots into Redis so that
// dashboards and other daemons can read them without calling the API.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "platformsim"
	kindsSet  = keyPrefix + ":snapshots"

	// Channel receives a Notification after every Publish.
	Channel = keyPrefix + ":updates"

	// DefaultMirrorTimeout bounds one Mirror call. Mirror runs inside engine
	// subscriber delivery, so a hung server must not stall mutations.
	DefaultMirrorTimeout = 500 * time.Millisecond
)

// Notification is the pub/sub message announcing a new snapshot.
type Notification struct {
	Kind    string `json:"kind"`
	Version int64  `json:"version"`
}

// SnapshotMirror stores the latest snapshot per kind ("simulation",
// "platform") with a monotonically increasing version.
type SnapshotMirror struct {
	client  *redis.Client
	logger  *slog.Logger
	timeout time.Duration
}

func NewSnapshotMirror(client *redis.Client, logger *slog.Logger) *SnapshotMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotMirror{client: client, logger: logger, timeout: DefaultMirrorTimeout}
}

// WithTimeout overrides DefaultMirrorTimeout. The client needs
// ContextTimeoutEnabled for the bound to cover socket reads.
func (m *SnapshotMirror) WithTimeout(d time.Duration) *SnapshotMirror {
	if d > 0 {
		m.timeout = d
	}
	return m
}

func (m *SnapshotMirror) makeKey(kind string) string {
	return fmt.Sprintf("%s:snapshot:%s", keyPrefix, kind)
}

func (m *SnapshotMirror) versionKey(kind string) string {
	return m.makeKey(kind) + ":version"
}

// Publish stores state under kind, bumps its version and notifies
// subscribers. It returns the new version.
func (m *SnapshotMirror) Publish(ctx context.Context, kind string, state any) (int64, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return 0, fmt.Errorf("marshal %s snapshot: %w", kind, err)
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, m.makeKey(kind), data, 0)
	incr := pipe.Incr(ctx, m.versionKey(kind))
	pipe.SAdd(ctx, kindsSet, kind)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("store %s snapshot: %w", kind, err)
	}
	version := incr.Val()

	note, _ := json.Marshal(Notification{Kind: kind, Version: version})
	if err := m.client.Publish(ctx, Channel, note).Err(); err != nil {
		return version, fmt.Errorf("publish %s notification: %w", kind, err)
	}
	return version, nil
}

// Mirror is the fire-and-forget form of Publish used from engine
// subscribers; failures are logged.
func (m *SnapshotMirror) Mirror(kind string, state any) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if _, err := m.Publish(ctx, kind, state); err != nil {
		m.logger.Warn("snapshot_mirror_failed", "kind", kind, "error", err)
	}
}

// Get decodes the latest snapshot of kind into dst. It returns the
// snapshot version, or false if nothing was published yet.
func (m *SnapshotMirror) Get(ctx context.Context, kind string, dst any) (int64, bool, error) {
	data, err := m.client.Get(ctx, m.makeKey(kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get %s snapshot: %w", kind, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return 0, false, fmt.Errorf("decode %s snapshot: %w", kind, err)
	}
	version, err := m.client.Get(ctx, m.versionKey(kind)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, false, fmt.Errorf("get %s version: %w", kind, err)
	}
	return version, true, nil
}

// Kinds lists every snapshot kind published so far.
func (m *SnapshotMirror) Kinds(ctx context.Context) ([]string, error) {
	kinds, err := m.client.SMembers(ctx, kindsSet).Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshot kinds: %w", err)
	}
	return kinds, nil
}

// Clear removes every mirrored snapshot.
func (m *SnapshotMirror) Clear(ctx context.Context) error {
	kinds, err := m.Kinds(ctx)
	if err != nil {
		return err
	}
	keys := []string{kindsSet}
	for _, k := range kinds {
		keys = append(keys, m.makeKey(k), m.versionKey(k))
	}
	if err := m.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}

// Subscribe delivers notifications until ctx is cancelled. Malformed
// messages are skipped.
func (m *SnapshotMirror) Subscribe(ctx context.Context) (<-chan Notification, error) {
	sub := m.client.Subscribe(ctx, Channel)
	// Wait for the subscription to be confirmed before returning.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel, err)
	}

	out := make(chan Notification)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var n Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					m.logger.Debug("snapshot_notification_skipped", "error", err)
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
