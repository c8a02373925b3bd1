package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/birocrat/pkg/adapters/file"
	"github.com/aretw0/birocrat/pkg/adapters/memory"
	redisstore "github.com/aretw0/birocrat/pkg/adapters/redis"
	"github.com/aretw0/birocrat/pkg/bundle"
	"github.com/aretw0/birocrat/pkg/host"
	"github.com/aretw0/birocrat/pkg/ports"
	"github.com/aretw0/birocrat/pkg/session"
)

// ServeConfig holds the server configuration, read from the environment.
// Flags override individual fields after parsing.
type ServeConfig struct {
	Addr     string `env:"BIROCRAT_ADDR" envDefault:":8080"`
	FormsDir string `env:"BIROCRAT_FORMS_DIR" envDefault:"."`

	// Store selects the session backend: memory, file, or redis.
	Store    string `env:"BIROCRAT_STORE" envDefault:"memory"`
	StoreDir string `env:"BIROCRAT_STORE_DIR"`

	RedisAddr     string `env:"BIROCRAT_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"BIROCRAT_REDIS_PASSWORD"`
	RedisDB       int    `env:"BIROCRAT_REDIS_DB"`

	SessionTTL time.Duration `env:"BIROCRAT_SESSION_TTL"`
}

// LoadServeConfig reads the server configuration from environment variables.
func LoadServeConfig() (ServeConfig, error) {
	var cfg ServeConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// NewHost builds the form host for the configured store backend. The returned
// close function releases backend resources.
func NewHost(cfg ServeConfig, logger *slog.Logger) (*host.Host, func() error, error) {
	registry := bundle.NewRegistry(cfg.FormsDir)

	var (
		store        ports.SessionStore
		managerOpts  []session.Option
		closeBackend = func() error { return nil }
	)

	switch cfg.Store {
	case "memory":
		store = memory.NewStore()
	case "file":
		dir := cfg.StoreDir
		if dir == "" {
			dir = SessionStorePath(cfg.FormsDir)
		}
		store = file.New(dir)
	case "redis":
		var storeOpts []redisstore.Option
		if cfg.SessionTTL > 0 {
			storeOpts = append(storeOpts, redisstore.WithTTL(cfg.SessionTTL))
		}
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, storeOpts...)
		store = rs
		closeBackend = rs.Close

		// A distributed lock keeps concurrent replicas from racing on the
		// same session.
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		managerOpts = append(managerOpts, session.WithLocker(redisstore.NewLocker(client, "birocrat:lock:")))
		prevClose := closeBackend
		closeBackend = func() error {
			if err := prevClose(); err != nil {
				client.Close()
				return err
			}
			return client.Close()
		}
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q (memory, file, redis)", cfg.Store)
	}

	managerOpts = append(managerOpts, session.WithLogger(logger))
	manager := session.NewManager(store, managerOpts...)

	return host.New(registry, manager, host.WithLogger(logger)), closeBackend, nil
}
