package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAddr             = "127.0.0.1:8095"
	defaultDBPath           = ":memory:"
	defaultDeploySettle     = 2 * time.Second
	defaultResolveDelay     = 1500 * time.Millisecond
	defaultCheckDelay       = 2 * time.Second
	defaultSnapshotInterval = time.Minute
	defaultLeaseBackend     = "sqlite"
)

type Config struct {
	DBPath           string
	Addr             string
	RulesPath        string
	ScenarioDir      string
	RedisAddr        string
	LeaseBackend     string
	ArchiveDir       string
	TLSCertFile      string
	TLSKeyFile       string
	Seed             int64
	DeploySettle     time.Duration
	ResolveDelay     time.Duration
	CheckDelay       time.Duration
	SnapshotInterval time.Duration
	Retention        time.Duration
	LogLevel         slog.Level
}

// InMemory reports whether the journal lives only for the process.
func (c Config) InMemory() bool {
	return c.DBPath == defaultDBPath
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	seed := int64(0)
	if v := os.Getenv("PLATFORMSIM_SEED"); v != "" {
		seed, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PLATFORMSIM_SEED: %w", err)
		}
	}
	durations := map[string]time.Duration{
		"PLATFORMSIM_DEPLOY_SETTLE":     defaultDeploySettle,
		"PLATFORMSIM_RESOLVE_DELAY":     defaultResolveDelay,
		"PLATFORMSIM_CHECK_DELAY":       defaultCheckDelay,
		"PLATFORMSIM_SNAPSHOT_INTERVAL": defaultSnapshotInterval,
		"PLATFORMSIM_RETENTION":         0,
	}
	for key := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = d
	}

	flagSet := flag.NewFlagSet("platformsim-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("db", envOrDefault("PLATFORMSIM_DB_PATH", defaultDBPath), "path to SQLite journal (:memory: keeps nothing)")
	flagAddr := flagSet.String("addr", addrFromEnv(defaultAddr), "HTTP listen address")
	flagRules := flagSet.String("rules", os.Getenv("PLATFORMSIM_RULES_PATH"), "YAML or JSON file of extra issue rules")
	flagScenarios := flagSet.String("scenario-dir", os.Getenv("PLATFORMSIM_SCENARIO_DIR"), "directory of extra scenario files")
	flagRedis := flagSet.String("redis-addr", os.Getenv("PLATFORMSIM_REDIS_ADDR"), "Redis address for the snapshot mirror")
	flagLease := flagSet.String("lease", envOrDefault("PLATFORMSIM_LEASE", defaultLeaseBackend), "journal writer lease: sqlite|redis|off")
	flagArchive := flagSet.String("archive-dir", os.Getenv("PLATFORMSIM_ARCHIVE_DIR"), "directory receiving pruned journal events")
	flagCert := flagSet.String("tls-cert", os.Getenv("PLATFORMSIM_TLS_CERT"), "TLS certificate file")
	flagKey := flagSet.String("tls-key", os.Getenv("PLATFORMSIM_TLS_KEY"), "TLS key file")
	flagSeed := flagSet.Int64("seed", seed, "seed for checkpoint draws (0 = time based)")
	flagSettle := flagSet.String("deploy-settle", durations["PLATFORMSIM_DEPLOY_SETTLE"].String(), "delay before a deployment is running")
	flagResolve := flagSet.String("resolve-delay", durations["PLATFORMSIM_RESOLVE_DELAY"].String(), "delay of a scheduled issue fix")
	flagCheck := flagSet.String("check-delay", durations["PLATFORMSIM_CHECK_DELAY"].String(), "delay of a checkpoint rerun")
	flagSnapshot := flagSet.String("snapshot-interval", durations["PLATFORMSIM_SNAPSHOT_INTERVAL"].String(), "interval between journal snapshots")
	flagRetention := flagSet.String("retention", durations["PLATFORMSIM_RETENTION"].String(), "age after which journal events are pruned (0 keeps all)")
	flagLevel := flagSet.String("log-level", envOrDefault("PLATFORMSIM_LOG_LEVEL", "info"), "debug|info|warn|error")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
		}
		return Config{}, err
	}

	config := Config{
		Addr:         strings.TrimSpace(*flagAddr),
		RulesPath:    resolvePath(*flagRules, cwd),
		ScenarioDir:  resolvePath(*flagScenarios, cwd),
		RedisAddr:    strings.TrimSpace(*flagRedis),
		LeaseBackend: strings.ToLower(strings.TrimSpace(*flagLease)),
		ArchiveDir:   resolvePath(*flagArchive, cwd),
		TLSCertFile:  resolvePath(*flagCert, cwd),
		TLSKeyFile:   resolvePath(*flagKey, cwd),
		Seed:         *flagSeed,
	}
	if db := strings.TrimSpace(*flagDB); db == defaultDBPath {
		config.DBPath = db
	} else {
		config.DBPath = resolvePath(db, cwd)
	}

	for _, d := range []struct {
		name  string
		value string
		dst   *time.Duration
		zero  bool
	}{
		{"deploy-settle", *flagSettle, &config.DeploySettle, true},
		{"resolve-delay", *flagResolve, &config.ResolveDelay, true},
		{"check-delay", *flagCheck, &config.CheckDelay, true},
		{"snapshot-interval", *flagSnapshot, &config.SnapshotInterval, false},
		{"retention", *flagRetention, &config.Retention, true},
	} {
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		if parsed < 0 || (parsed == 0 && !d.zero) {
			return Config{}, fmt.Errorf("%s must be positive", d.name)
		}
		*d.dst = parsed
	}

	if err := config.LogLevel.UnmarshalText([]byte(*flagLevel)); err != nil {
		return Config{}, fmt.Errorf("invalid log-level: %w", err)
	}

	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) validate() error {
	if c.Addr == "" {
		return errors.New("addr cannot be empty")
	}
	if c.DBPath == "" {
		return errors.New("db cannot be empty")
	}
	switch c.LeaseBackend {
	case "sqlite", "off":
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("lease=redis requires redis-addr")
		}
	default:
		return fmt.Errorf("unsupported lease backend: %s", c.LeaseBackend)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("tls-cert and tls-key must be set together")
	}
	if c.ArchiveDir != "" && c.Retention == 0 {
		return errors.New("archive-dir requires a retention")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("PLATFORMSIM_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("PLATFORMSIM_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
