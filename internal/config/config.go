// Package config loads process configuration from the Lambda environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jacentio/todos/attachment"
	"github.com/jacentio/todos/internal/shard"
	"github.com/jacentio/todos/store"
)

// Environment variable names.
const (
	EnvTodosTable       = "TODOS_TABLE"
	EnvAttachmentBucket = "ATTACHMENT_S3_BUCKET"
	EnvURLExpiration    = "SIGNED_URL_EXPIRATION"
	EnvKeyShards        = "ATTACHMENT_KEY_SHARDS"
	EnvLogLevel         = "LOG_LEVEL"
)

// maxExpirationSeconds is the SigV4 presign limit of 7 days.
const maxExpirationSeconds = 7 * 24 * 60 * 60

// Config is the resolved process configuration.
type Config struct {
	Store      store.Config
	Attachment attachment.Config
	LogLevel   slog.Level
}

// environment is the raw variable binding.
type environment struct {
	TodosTable        string     `env:"TODOS_TABLE,required,notEmpty"`
	AttachmentBucket  string     `env:"ATTACHMENT_S3_BUCKET,required,notEmpty"`
	ExpirationSeconds int        `env:"SIGNED_URL_EXPIRATION" envDefault:"300"`
	KeyShards         int        `env:"ATTACHMENT_KEY_SHARDS" envDefault:"1"`
	LogLevel          slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// FromEnvironment reads configuration from the given variables only.
func FromEnvironment(environ map[string]string) (Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var raw environment
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if strings.TrimSpace(raw.TodosTable) == "" {
		return Config{}, fmt.Errorf("config: %s is required", EnvTodosTable)
	}
	if strings.TrimSpace(raw.AttachmentBucket) == "" {
		return Config{}, fmt.Errorf("config: %s is required", EnvAttachmentBucket)
	}
	if raw.ExpirationSeconds <= 0 || raw.ExpirationSeconds > maxExpirationSeconds {
		return Config{}, fmt.Errorf("config: %s must be between 1 and %d seconds, got %d",
			EnvURLExpiration, maxExpirationSeconds, raw.ExpirationSeconds)
	}
	if raw.KeyShards < 1 || raw.KeyShards > shard.MaxShards {
		return Config{}, fmt.Errorf("config: %s must be between 1 and %d, got %d",
			EnvKeyShards, shard.MaxShards, raw.KeyShards)
	}

	cfg := Config{
		Store:      store.DefaultConfig(),
		Attachment: attachment.DefaultConfig(),
		LogLevel:   raw.LogLevel,
	}
	cfg.Store.TableName = raw.TodosTable
	cfg.Attachment.Bucket = raw.AttachmentBucket
	cfg.Attachment.Expiry = time.Duration(raw.ExpirationSeconds) * time.Second
	cfg.Attachment.NumShards = raw.KeyShards
	return cfg, nil
}

// Logger builds the JSON logger used by the Lambda entry points.
func (c Config) Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel}))
}
