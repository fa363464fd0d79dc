// Package config loads the settings shared by hub-shell and hubctl from the environment
// (optionally seeded from a .env file), and builds the session store and logger they
// describe
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/codingconcepts/env"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/acer-hub/hubclient/internal/impact"
	"github.com/acer-hub/hubclient/internal/session"
)

// ErrUnknownSessionStore is returned when HUB_SESSION_STORE names no supported backend
var ErrUnknownSessionStore = errors.New("unknown session store")

type Config struct {
	APIBaseURL         string        `env:"HUB_API_BASE_URL" required:"true"`
	APITimeout         time.Duration `env:"HUB_API_TIMEOUT" default:"30s"`
	ValidationInterval time.Duration `env:"HUB_VALIDATION_INTERVAL" default:"5m"`
	LoginURL           string        `env:"HUB_LOGIN_URL" default:"/login"`

	SessionStore string `env:"HUB_SESSION_STORE" default:"file"`
	SessionDir   string `env:"HUB_SESSION_DIR"`
	RedisURL     string `env:"HUB_REDIS_URL" default:"redis://localhost:6379/0"`
	SessionKey   string `env:"HUB_SESSION_KEY" default:"acer-hub:session"`

	BindAddr       string `env:"BIND_ADDR"`
	ListenPort     uint16 `env:"LISTEN_PORT" default:"5010"`
	AllowedOrigins string `env:"HUB_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	DefaultLanguage string `env:"HUB_DEFAULT_LANGUAGE" default:"fr"`
	DefaultTheme    string `env:"HUB_DEFAULT_THEME" default:"light"`

	LogLevel       string `env:"HUB_LOG_LEVEL" default:"info"`
	LogDevelopment bool   `env:"HUB_LOG_DEVELOPMENT" default:"false"`

	SnapshotAccessKeyID    string `env:"HUB_SNAPSHOT_ACCESS_KEY_ID"`
	SnapshotSecretKey      string `env:"HUB_SNAPSHOT_SECRET_KEY"`
	SnapshotEndpointOrigin string `env:"HUB_SNAPSHOT_ENDPOINT"`
	SnapshotRegionName     string `env:"HUB_SNAPSHOT_REGION" default:"us-east-1"`
	SnapshotBucketName     string `env:"HUB_SNAPSHOT_BUCKET"`
}

// Load reads .env (if present) into the environment, then parses the environment
func Load() (Config, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("error loading .env file: %w", err)
	}
	config := Config{}
	if err := env.Set(&config); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	return config, nil
}

// ListenAddr is the address hub-shell binds to
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.ListenPort)
}

// Origins splits HUB_ALLOWED_ORIGINS on commas
func (c Config) Origins() []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// OpenStore constructs the session store selected by HUB_SESSION_STORE
func (c Config) OpenStore() (session.Store, error) {
	switch c.SessionStore {
	case "file", "":
		return session.NewFileStore(c.SessionDir), nil
	case "memory":
		return session.NewMemoryStore(session.Tokens{}), nil
	case "redis":
		return session.NewRedisStore(c.RedisURL, c.SessionKey)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSessionStore, c.SessionStore)
}

// HasSnapshotStore reports whether a bucket is configured for tree snapshots
func (c Config) HasSnapshotStore() bool {
	return c.SnapshotBucketName != "" && c.SnapshotEndpointOrigin != ""
}

func (c Config) SnapshotConfig() impact.SnapshotConfig {
	return impact.SnapshotConfig{
		AccessKeyID:    c.SnapshotAccessKeyID,
		SecretKey:      c.SnapshotSecretKey,
		EndpointOrigin: c.SnapshotEndpointOrigin,
		RegionName:     c.SnapshotRegionName,
		BucketName:     c.SnapshotBucketName,
	}
}

// NewLogger builds a zap logger at HUB_LOG_LEVEL, using the development encoder when
// HUB_LOG_DEVELOPMENT is set
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
