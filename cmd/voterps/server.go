package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/voterps/internal/auth"
	"github.com/lox/voterps/internal/game"
	"github.com/lox/voterps/internal/randutil"
	"github.com/lox/voterps/internal/server"
	"github.com/lox/voterps/internal/snapshot"
	"github.com/lox/voterps/internal/snapshot/sqlite"
	"golang.org/x/sync/errgroup"
)

// ServerCmd runs the engine, the snapshot exporter and the HTTP listener.
// Flags override the config file and the environment.
type ServerCmd struct {
	Config        string  `kong:"short='c',default='voterps.hcl',help='HCL config file (optional)'"`
	Addr          *string `kong:"help='Server address'"`
	LogLevel      *string `kong:"help='Log level (debug, info, warn, error)'"`
	Debug         bool    `kong:"help='Enable debug logging'"`
	Seed          *int64  `kong:"help='Deterministic RNG seed for decks (optional)'"`
	AuthMode      *string `kong:"help='Identity provider: jwt, http or none'"`
	StorageDriver *string `kong:"help='Snapshot store: sqlite, http, memory or none'"`
	StoragePath   *string `kong:"help='SQLite database path'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		return err
	}

	seed := cfg.Server.Seed
	if seed == 0 {
		seed = randutil.Seed()
		logger.Info("Using random seed", "seed", seed)
	} else {
		logger.Info("Using deterministic seed", "seed", seed)
	}

	validator, err := newValidator(cfg.Auth)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(ctx, cfg.Storage, cfg.Auth.AdminSecret)
	if err != nil {
		return err
	}
	defer closeStore()

	exporter := snapshot.NewExporter(store, logger, quartz.NewReal(), cfg.Storage.QueueSize)
	rules := cfg.Rules()
	engine := server.NewEngine(game.NewRegistry(rules, randutil.New(seed)), exporter, logger)
	srv := server.NewServer(engine, validator, logger)

	logger.Info("Starting voterps server",
		"addr", cfg.Server.Addr,
		"auth", cfg.Auth.Mode,
		"storage", cfg.Storage.Driver,
		"initial_credits", rules.InitialCredits,
		"max_voters", rules.MaxVoters,
		"min_deck_size", rules.MinDeckSize,
		"hand_size", rules.HandSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return exporter.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Server.Addr) })
	return g.Wait()
}

// apply overlays the flags that were given.
func (c *ServerCmd) apply(cfg *server.Config) {
	if c.Addr != nil {
		cfg.Server.Addr = *c.Addr
	}
	if c.LogLevel != nil {
		cfg.Server.LogLevel = *c.LogLevel
	}
	if c.Debug {
		cfg.Server.LogLevel = log.DebugLevel.String()
	}
	if c.Seed != nil {
		cfg.Server.Seed = *c.Seed
	}
	if c.AuthMode != nil {
		cfg.Auth.Mode = *c.AuthMode
	}
	if c.StorageDriver != nil {
		cfg.Storage.Driver = *c.StorageDriver
	}
	if c.StoragePath != nil {
		cfg.Storage.Path = *c.StoragePath
	}
}

func newValidator(a server.AuthSettings) (auth.Validator, error) {
	switch a.Mode {
	case server.AuthModeJWT:
		return auth.NewJWTValidator(a.Secret)
	case server.AuthModeHTTP:
		return auth.NewHTTPValidator(a.URL, a.AdminSecret), nil
	default:
		return auth.NewNoopValidator(), nil
	}
}

// newStore opens the snapshot store. The history service shares the
// identity provider's admin secret.
func newStore(ctx context.Context, s server.StorageSettings, adminSecret string) (snapshot.Store, func(), error) {
	switch s.Driver {
	case server.StorageSQLite:
		db, err := sqlite.Open(ctx, s.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	case server.StorageHTTP:
		return snapshot.NewHTTPStore(s.URL, adminSecret), func() {}, nil
	case server.StorageMemory:
		return snapshot.NewMemoryStore(), func() {}, nil
	default:
		return snapshot.Discard, func() {}, nil
	}
}
