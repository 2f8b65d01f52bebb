package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rmax-ai/platformsim/pkg/api"
	"github.com/rmax-ai/platformsim/pkg/blob"
	"github.com/rmax-ai/platformsim/pkg/hierarchy"
	"github.com/rmax-ai/platformsim/pkg/rules"
	"github.com/rmax-ai/platformsim/pkg/scenario"
	"github.com/rmax-ai/platformsim/pkg/scoring"
	"github.com/rmax-ai/platformsim/pkg/session"
	"github.com/rmax-ai/platformsim/pkg/store"
	"github.com/rmax-ai/platformsim/pkg/store/redis"
)

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "platformsim-d: %v\n", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("system_started", "component", "platformsim-d", "addr", cfg.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("daemon_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown_complete")
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	journal, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init store: %w", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			logger.Error("failed_to_close_store", "error", err)
		} else {
			logger.Info("store_closed")
		}
	}()
	logger.Info("store_initialized", "path", cfg.DBPath)

	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, ContextTimeoutEnabled: true})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("redis_connected", "addr", cfg.RedisAddr)
	}

	var lease *session.WriterLease
	holderID := fmt.Sprintf("platformsim-d-%d-%s", os.Getpid(), uuid.NewString()[:8])
	switch cfg.LeaseBackend {
	case "sqlite":
		lease = session.NewWriterLease(journal, holderID, session.DefaultLeaseTTL, logger)
	case "redis":
		lease = session.NewWriterLease(redis.NewLeaseStore(rdb), holderID, session.DefaultLeaseTTL, logger)
	}
	if lease != nil {
		if err := lease.Acquire(ctx); err != nil {
			return err
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lease.Release(releaseCtx); err != nil {
				logger.Error("lease_release_failed", "error", err)
			}
		}()
	}

	registry := scenario.NewRegistry()
	if cfg.ScenarioDir != "" {
		extra, err := scenario.LoadDir(cfg.ScenarioDir)
		if err != nil {
			return fmt.Errorf("failed to load scenarios: %w", err)
		}
		for _, sc := range extra {
			if err := registry.Register(sc); err != nil {
				return fmt.Errorf("failed to register scenario %s: %w", sc.ID, err)
			}
		}
		logger.Info("scenarios_loaded", "dir", cfg.ScenarioDir, "count", len(extra))
	}

	scoringOpts := []scoring.Option{scoring.WithDelays(cfg.ResolveDelay, cfg.CheckDelay)}
	if cfg.Seed != 0 {
		scoringOpts = append(scoringOpts, scoring.WithSeed(cfg.Seed))
	}
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithJournal(journal),
		session.WithRegistry(registry),
		session.WithScoringOptions(scoringOpts...),
		session.WithHierarchyOptions(hierarchy.WithSettleDelay(cfg.DeploySettle)),
	}
	if rdb != nil {
		opts = append(opts, session.WithMirror(redis.NewSnapshotMirror(rdb, logger)))
	}
	if cfg.RulesPath != "" {
		custom, err := rules.LoadFile(cfg.RulesPath)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
		opts = append(opts, session.WithCustomRules(custom))
		logger.Info("rules_loaded", "path", cfg.RulesPath, "count", len(custom))
	}

	sess := session.New(opts...)
	defer sess.Close()

	if !cfg.InMemory() {
		restored, err := sess.Restore(ctx)
		if err != nil {
			return fmt.Errorf("failed to restore session: %w", err)
		}
		if !restored {
			logger.Info("session_started_empty")
		}
	}

	if cfg.RulesPath != "" {
		watcher, err := rules.NewWatcher(cfg.RulesPath, func(custom []scoring.Rule) {
			sess.SetCustomRules(session.WithOrigin(ctx, "watcher", cfg.RulesPath), custom)
		}, rules.WithWatchLogger(logger))
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	srv := api.NewServer(sess, cfg.Addr, api.WithLogger(logger))
	if cfg.TLSCertFile != "" {
		srv.SetTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	}

	worker := session.NewSnapshotWorker(sess, cfg.SnapshotInterval, cfg.Retention)
	if cfg.ArchiveDir != "" {
		worker.WithArchive(blob.NewDirStore(cfg.ArchiveDir))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error { return worker.Run(gctx) })
	if lease != nil {
		g.Go(func() error { return lease.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown_initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	return g.Wait()
}
