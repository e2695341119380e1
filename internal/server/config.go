package server

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/voterps/internal/config"
	"github.com/lox/voterps/internal/game"
)

// Config represents the complete server configuration
type Config struct {
	Server  ServerSettings
	Game    GameSettings
	Auth    AuthSettings
	Storage StorageSettings
}

// fileConfig is the HCL layout; every block is optional.
type fileConfig struct {
	Server  *ServerSettings  `hcl:"server,block"`
	Game    *GameSettings    `hcl:"game,block"`
	Auth    *AuthSettings    `hcl:"auth,block"`
	Storage *StorageSettings `hcl:"storage,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Addr     string `hcl:"addr,optional" env:"ADDR"`
	LogLevel string `hcl:"log_level,optional" env:"LOG_LEVEL"`
	Seed     int64  `hcl:"seed,optional" env:"SEED"`
}

// GameSettings are the rules every session runs with.
type GameSettings struct {
	InitialCredits int   `hcl:"initial_credits,optional" env:"INITIAL_CREDITS"`
	MaxVoters      int   `hcl:"max_voters,optional" env:"MAX_VOTERS"`
	MinDeckSize    int   `hcl:"min_deck_size,optional" env:"MIN_DECK_SIZE"`
	HandSize       int   `hcl:"hand_size,optional" env:"HAND_SIZE"`
	RetainPlayers  *bool `hcl:"retain_players_on_disconnect,optional" env:"RETAIN_PLAYERS_ON_DISCONNECT"`
	RetainVoters   *bool `hcl:"retain_voters_on_disconnect,optional" env:"RETAIN_VOTERS_ON_DISCONNECT"`
}

// AuthSettings selects the identity provider.
type AuthSettings struct {
	Mode        string `hcl:"mode,optional" env:"AUTH_MODE"`
	Secret      string `hcl:"secret,optional" env:"AUTH_SECRET"`
	URL         string `hcl:"url,optional" env:"AUTH_URL"`
	AdminSecret string `hcl:"admin_secret,optional" env:"AUTH_ADMIN_SECRET"`
}

// StorageSettings selects where finished sessions are exported.
type StorageSettings struct {
	Driver    string `hcl:"driver,optional" env:"STORAGE_DRIVER"`
	Path      string `hcl:"path,optional" env:"STORAGE_PATH"`
	URL       string `hcl:"url,optional" env:"STORAGE_URL"`
	QueueSize int    `hcl:"queue_size,optional" env:"STORAGE_QUEUE_SIZE"`
}

const (
	AuthModeJWT  = "jwt"
	AuthModeHTTP = "http"
	AuthModeNone = "none"

	StorageSQLite = "sqlite"
	StorageHTTP   = "http"
	StorageMemory = "memory"
	StorageNone   = "none"
)

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	rules := game.DefaultConfig()
	cfg := &Config{
		Server: ServerSettings{
			Addr:     "localhost:8080",
			LogLevel: "info",
		},
		Game: GameSettings{
			InitialCredits: rules.InitialCredits,
			MaxVoters:      rules.MaxVoters,
			MinDeckSize:    rules.MinDeckSize,
			HandSize:       rules.HandSize,
		},
		Auth: AuthSettings{
			Mode: AuthModeNone,
		},
		Storage: StorageSettings{
			Driver:    StorageSQLite,
			Path:      "voterps.db",
			QueueSize: 64,
		},
	}
	cfg.Game.RetainPlayers = &rules.RetainPlayersOnDisconnect
	cfg.Game.RetainVoters = &rules.RetainVotersOnDisconnect
	return cfg
}

// LoadConfig loads configuration from an HCL file on top of the defaults.
// A missing file yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if filename == "" {
		return cfg, nil
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var fc fileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &fc)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg.merge(fc)
	return cfg, nil
}

// merge overlays the values set in fc.
func (c *Config) merge(fc fileConfig) {
	if s := fc.Server; s != nil {
		setString(&c.Server.Addr, s.Addr)
		setString(&c.Server.LogLevel, s.LogLevel)
		if s.Seed != 0 {
			c.Server.Seed = s.Seed
		}
	}
	if g := fc.Game; g != nil {
		setInt(&c.Game.InitialCredits, g.InitialCredits)
		setInt(&c.Game.MaxVoters, g.MaxVoters)
		setInt(&c.Game.MinDeckSize, g.MinDeckSize)
		setInt(&c.Game.HandSize, g.HandSize)
		if g.RetainPlayers != nil {
			c.Game.RetainPlayers = g.RetainPlayers
		}
		if g.RetainVoters != nil {
			c.Game.RetainVoters = g.RetainVoters
		}
	}
	if a := fc.Auth; a != nil {
		setString(&c.Auth.Mode, a.Mode)
		setString(&c.Auth.Secret, a.Secret)
		setString(&c.Auth.URL, a.URL)
		setString(&c.Auth.AdminSecret, a.AdminSecret)
	}
	if s := fc.Storage; s != nil {
		setString(&c.Storage.Driver, s.Driver)
		setString(&c.Storage.Path, s.Path)
		setString(&c.Storage.URL, s.URL)
		setInt(&c.Storage.QueueSize, s.QueueSize)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// ApplyEnv overlays VOTERPS_* environment variables.
func (c *Config) ApplyEnv() error {
	for _, target := range []any{&c.Server, &c.Game, &c.Auth, &c.Storage} {
		if err := config.ParseEnv(target); err != nil {
			return err
		}
	}
	return nil
}

// Rules returns the session rules described by the game block.
func (c *Config) Rules() game.Config {
	rules := game.DefaultConfig()
	rules.InitialCredits = c.Game.InitialCredits
	rules.MaxVoters = c.Game.MaxVoters
	rules.MinDeckSize = c.Game.MinDeckSize
	rules.HandSize = c.Game.HandSize
	if c.Game.RetainPlayers != nil {
		rules.RetainPlayersOnDisconnect = *c.Game.RetainPlayers
	}
	if c.Game.RetainVoters != nil {
		rules.RetainVotersOnDisconnect = *c.Game.RetainVoters
	}
	return rules
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server address is required")
	}

	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	if err := c.Rules().Validate(); err != nil {
		return fmt.Errorf("game: %w", err)
	}

	switch c.Auth.Mode {
	case AuthModeJWT:
		if c.Auth.Secret == "" {
			return fmt.Errorf("auth: jwt mode requires a secret")
		}
	case AuthModeHTTP:
		if c.Auth.URL == "" {
			return fmt.Errorf("auth: http mode requires a url")
		}
	case AuthModeNone:
	default:
		return fmt.Errorf("auth: invalid mode %s", c.Auth.Mode)
	}

	switch c.Storage.Driver {
	case StorageSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage: sqlite driver requires a path")
		}
	case StorageHTTP:
		if c.Storage.URL == "" {
			return fmt.Errorf("storage: http driver requires a url")
		}
	case StorageMemory, StorageNone:
	default:
		return fmt.Errorf("storage: invalid driver %s", c.Storage.Driver)
	}
	if c.Storage.QueueSize < 1 {
		return fmt.Errorf("storage: queue size must be positive, got %d", c.Storage.QueueSize)
	}

	return nil
}
