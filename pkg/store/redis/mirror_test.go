package redis

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/platformsim/pkg/store"
)

type snapshotDoc struct {
	Nodes   []string `json:"nodes"`
	Running bool     `json:"running"`
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestSnapshotMirror(t *testing.T) {
	_, client := setupMiniredis(t)
	m := NewSnapshotMirror(client, nil)
	ctx := context.Background()

	t.Run("Get before publish", func(t *testing.T) {
		var doc snapshotDoc
		_, ok, err := m.Get(ctx, "platform", &doc)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if ok {
			t.Error("Expected no snapshot before publish")
		}
	})

	t.Run("Publish and Get", func(t *testing.T) {
		v1, err := m.Publish(ctx, "platform", snapshotDoc{Nodes: []string{"region"}})
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		v2, err := m.Publish(ctx, "platform", snapshotDoc{Nodes: []string{"region", "zone"}, Running: true})
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		if v2 != v1+1 {
			t.Errorf("Expected version to increase by one, got %d -> %d", v1, v2)
		}

		var doc snapshotDoc
		version, ok, err := m.Get(ctx, "platform", &doc)
		if err != nil || !ok {
			t.Fatalf("Get failed: ok=%v err=%v", ok, err)
		}
		if version != v2 {
			t.Errorf("Version: got %d, want %d", version, v2)
		}
		if len(doc.Nodes) != 2 || !doc.Running {
			t.Errorf("Unexpected snapshot %+v", doc)
		}
	})

	t.Run("Kinds and Clear", func(t *testing.T) {
		m.Mirror("simulation", map[string]int{"components": 1})

		kinds, err := m.Kinds(ctx)
		if err != nil {
			t.Fatalf("Kinds failed: %v", err)
		}
		if len(kinds) != 2 {
			t.Errorf("Expected 2 kinds, got %v", kinds)
		}

		if err := m.Clear(ctx); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		var doc snapshotDoc
		if _, ok, _ := m.Get(ctx, "platform", &doc); ok {
			t.Error("Expected snapshot to be gone after clear")
		}
		kinds, _ = m.Kinds(ctx)
		if len(kinds) != 0 {
			t.Errorf("Expected no kinds after clear, got %v", kinds)
		}
	})
}

func TestSnapshotMirror_Subscribe(t *testing.T) {
	_, client := setupMiniredis(t)
	m := NewSnapshotMirror(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notes, err := m.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if _, err := m.Publish(ctx, "simulation", map[string]bool{"isRunning": true}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case n := <-notes:
		if n.Kind != "simulation" || n.Version != 1 {
			t.Errorf("Unexpected notification %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for notification")
	}

	cancel()
	select {
	case _, ok := <-notes:
		if ok {
			// a late notification is fine; the channel must still close
			<-notes
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected notification channel to close after cancel")
	}
}

func TestSnapshotMirror_ServerDown(t *testing.T) {
	mr, client := setupMiniredis(t)
	m := NewSnapshotMirror(client, nil)
	mr.Close()

	if _, err := m.Publish(context.Background(), "platform", snapshotDoc{}); err == nil {
		t.Error("Expected error publishing to a closed server")
	}
	// Mirror logs instead of failing.
	m.Mirror("platform", snapshotDoc{})
}

func TestSnapshotMirror_HungServer(t *testing.T) {
	// Accepts connections and never answers.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer ln.Close()
	var conns []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	}()

	client := redis.NewClient(&redis.Options{
		Addr:                  ln.Addr().String(),
		ContextTimeoutEnabled: true,
	})
	defer client.Close()
	m := NewSnapshotMirror(client, nil).WithTimeout(100 * time.Millisecond)

	start := time.Now()
	m.Mirror("simulation", snapshotDoc{})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Mirror blocked for %v against a hung server", elapsed)
	}
}

func TestLeaseStore(t *testing.T) {
	mr, client := setupMiniredis(t)
	s := NewLeaseStore(client)
	ctx := context.Background()

	ok, err := s.Acquire(ctx, "session", "daemon-a", time.Second)
	if err != nil || !ok {
		t.Fatalf("Acquire failed: ok=%v err=%v", ok, err)
	}

	// Re-acquire by the holder renews.
	ok, err = s.Acquire(ctx, "session", "daemon-a", time.Second)
	if err != nil || !ok {
		t.Fatalf("Acquire (renew) failed: ok=%v err=%v", ok, err)
	}

	ok, err = s.Acquire(ctx, "session", "daemon-b", time.Second)
	if err != nil {
		t.Fatalf("Acquire (steal) failed: %v", err)
	}
	if ok {
		t.Error("Should not acquire a lease held by another daemon")
	}

	l, err := s.GetLease(ctx, "session")
	if err != nil || l == nil {
		t.Fatalf("GetLease failed: %v %v", l, err)
	}
	if l.HolderID != "daemon-a" {
		t.Errorf("Holder: got %s, want daemon-a", l.HolderID)
	}

	if err := s.Renew(ctx, "session", "daemon-b", time.Second); !errors.Is(err, store.ErrLeaseLost) {
		t.Errorf("Expected ErrLeaseLost for non-holder renew, got %v", err)
	}

	mr.FastForward(2 * time.Second)
	ok, err = s.Acquire(ctx, "session", "daemon-b", time.Second)
	if err != nil || !ok {
		t.Fatalf("Expected takeover of expired lease: ok=%v err=%v", ok, err)
	}

	// Release by a non-holder leaves the lease alone.
	if err := s.Release(ctx, "session", "daemon-a"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if l, _ := s.GetLease(ctx, "session"); l == nil || l.HolderID != "daemon-b" {
		t.Errorf("Expected daemon-b to still hold the lease, got %v", l)
	}

	if err := s.Release(ctx, "session", "daemon-b"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if l, _ := s.GetLease(ctx, "session"); l != nil {
		t.Errorf("Expected lease to be gone, got %v", l)
	}
}
