// Command saveguard runs the save verification server: it accepts signed
// save submissions, validates progression, maintains the flag ledger and
// serves the review API.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lumen-arcade/saveguard/pkg/api"
	"github.com/lumen-arcade/saveguard/pkg/archive"
	"github.com/lumen-arcade/saveguard/pkg/audit"
	"github.com/lumen-arcade/saveguard/pkg/baseline"
	"github.com/lumen-arcade/saveguard/pkg/config"
	"github.com/lumen-arcade/saveguard/pkg/docstore"
	"github.com/lumen-arcade/saveguard/pkg/ledger"
	"github.com/lumen-arcade/saveguard/pkg/limiter"
	"github.com/lumen-arcade/saveguard/pkg/observability"
	"github.com/lumen-arcade/saveguard/pkg/policy"
	"github.com/lumen-arcade/saveguard/pkg/progression"
	"github.com/lumen-arcade/saveguard/pkg/verify"

	_ "github.com/lib/pq" // Postgres driver
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches subcommands; the default is the server.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) >= 2 {
		switch args[1] {
		case "server", "serve":
			// fall through to the server below
		case "version":
			fmt.Fprintln(stdout, "saveguard", version)
			return 0
		default:
			fmt.Fprintf(stderr, "unknown command %q (expected: server, version)\n", args[1])
			return 2
		}
	}
	if err := runServer(); err != nil {
		fmt.Fprintln(stderr, "saveguard:", err)
		return 1
	}
	return 0
}

var version = "dev"

func runServer() error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required")
	}

	// Progression limits and reviewer rules, per game profile when set.
	limits := progression.DefaultLimits()
	var rules []policy.Rule
	if cfg.GameID != "" {
		profile, err := config.LoadProfile(cfg.ProfilesDir, cfg.GameID)
		if err != nil {
			return fmt.Errorf("load limits profile: %w", err)
		}
		limits = profile.Limits
		rules = profile.Rules
		slog.Info("loaded limits profile", "game", profile.GameID, "rules", len(rules))
	}

	var engine *policy.Engine
	if len(rules) > 0 {
		var err error
		engine, err = policy.NewEngine(rules)
		if err != nil {
			return fmt.Errorf("compile policy rules: %w", err)
		}
	}

	// Baseline store: Postgres when configured, memory otherwise.
	var baselines baseline.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database unreachable: %w", err)
		}
		baselines, err = baseline.NewPostgresStore(db)
		if err != nil {
			return err
		}
		slog.Info("baseline store: postgres")
	} else {
		baselines = baseline.NewMemoryStore()
		slog.Warn("baseline store: memory (set DATABASE_URL for durability)")
	}

	// Document store: SQLite when configured, memory otherwise.
	var documents docstore.Store
	if cfg.DocstorePath != "" {
		sq, err := docstore.OpenSQLite(cfg.DocstorePath)
		if err != nil {
			return fmt.Errorf("open document store: %w", err)
		}
		defer sq.Close()
		documents = sq
		slog.Info("document store: sqlite", "path", cfg.DocstorePath)
	} else {
		documents = docstore.NewMemoryStore()
		slog.Warn("document store: memory (set DOCSTORE_PATH for durability)")
	}

	evidence, err := archive.FromEnv(ctx, cfg.ArchiveLocation)
	if err != nil {
		return fmt.Errorf("configure evidence archive: %w", err)
	}
	if evidence != nil {
		slog.Info("evidence archive configured", "location", cfg.ArchiveLocation)
	}

	trail, err := audit.NewLogger(os.Stdout)
	if err != nil {
		return fmt.Errorf("configure audit trail: %w", err)
	}

	var obs *observability.Provider
	if cfg.OTLPEndpoint != "" {
		obsCfg := observability.DefaultConfig()
		obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
		obsCfg.ServiceVersion = version
		obsCfg.Insecure = true
		obs, err = observability.New(ctx, obsCfg)
		if err != nil {
			return fmt.Errorf("configure observability: %w", err)
		}
		defer func() { _ = obs.Shutdown(context.Background()) }()
	}

	svc, err := verify.NewService(verify.ServiceConfig{
		Validator:        progression.NewValidator(limits),
		Baselines:        baselines,
		Documents:        documents,
		Flags:            ledger.New(baselines),
		Rules:            engine,
		Evidence:         evidence,
		Trail:            trail,
		MinClientVersion: cfg.MinClientVersion,
	})
	if err != nil {
		return err
	}

	var buckets limiter.Store
	if cfg.RedisAddr != "" {
		buckets = limiter.NewRedisStore(cfg.RedisAddr, "", 0)
		slog.Info("rate limiter: redis", "addr", cfg.RedisAddr)
	} else {
		buckets = limiter.NewMemoryStore()
	}

	server := api.NewServer(api.ServerConfig{
		Service:     svc,
		Documents:   documents,
		Auth:        api.NewTokenValidator([]byte(cfg.AuthSecret), cfg.AdminSubjects),
		Limits:      buckets,
		LimitPolicy: limiter.Policy{RPM: cfg.RateLimitRPM, Burst: cfg.RateLimitBurst},
		Trail:       trail,
		Obs:         obs,
	})
	return server.ListenAndServe(ctx, ":"+cfg.Port)
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
