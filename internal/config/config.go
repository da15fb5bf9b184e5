// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides chatbot configuration.
//
// Values come from, in increasing priority, built-in defaults, an optional
// config file and NBA_-prefixed environment variables, where a key such as
// ollama.timeout is read from NBA_OLLAMA_TIMEOUT.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all chatbot configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Data      DataConfig      `mapstructure:"data"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Session   SessionConfig   `mapstructure:"session"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

// DataConfig locates the statistics table.
type DataConfig struct {
	Path    string   `mapstructure:"path"`
	Exclude []string `mapstructure:"exclude"`
}

// OllamaConfig configures the model server.
type OllamaConfig struct {
	Host           string        `mapstructure:"host"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Retrieval backends.
const (
	BackendMemory   = "memory"
	BackendPGVector = "pgvector"
)

// RetrievalConfig configures the document index.
type RetrievalConfig struct {
	Backend     string `mapstructure:"backend"`
	TopK        int    `mapstructure:"top_k"`
	Concurrency int    `mapstructure:"concurrency"`
	DatabaseURL string `mapstructure:"database_url"`
}

// Session stores.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// placeholderSecret is the secret shipped in example code; it is refused.
const placeholderSecret = "your_secret_key"

// SessionConfig configures chat sessions.
type SessionConfig struct {
	Secret     string        `mapstructure:"secret"`
	Store      string        `mapstructure:"store"`
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookie_name"`
	Secure     bool          `mapstructure:"secure"`
}

// RedisConfig configures the Redis session store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig configures logging.
type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

var defaults = map[string]any{
	"server.addr":            ":8080",
	"server.static_dir":      "static",
	"data.path":              "stats/player-per-game.csv",
	"data.exclude":           []string{"Player-additional"},
	"ollama.host":            "http://127.0.0.1:11434",
	"ollama.model":           "llama3.2",
	"ollama.embedding_model": "all-minilm",
	"ollama.timeout":         120 * time.Second,
	"retrieval.backend":      BackendMemory,
	"retrieval.top_k":        2,
	"retrieval.concurrency":  4,
	"retrieval.database_url": "",
	"session.secret":         "",
	"session.store":          StoreMemory,
	"session.ttl":            24 * time.Hour,
	"session.cookie_name":    "nba_session",
	"session.secure":         false,
	"redis.addr":             "127.0.0.1:6379",
	"redis.password":         "",
	"redis.db":               0,
	"log.mode":               "dev",
}

// New returns a viper instance with defaults and environment bindings.
// Callers may bind command-line flags to it before calling [Load].
func New() *viper.Viper {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix("NBA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration into a validated [Config]. If path is empty,
// config.{yaml,json,toml} is looked up in . and ./config and may be absent.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr cannot be empty"))
	}
	if c.Data.Path == "" {
		errs = append(errs, errors.New("data.path cannot be empty"))
	}
	if u, err := url.Parse(c.Ollama.Host); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("ollama.host %q is not an absolute URL", c.Ollama.Host))
	}
	if c.Ollama.Model == "" || c.Ollama.EmbeddingModel == "" {
		errs = append(errs, errors.New("ollama.model and ollama.embedding_model cannot be empty"))
	}
	if c.Ollama.Timeout <= 0 {
		errs = append(errs, errors.New("ollama.timeout must be > 0"))
	}
	switch c.Retrieval.Backend {
	case BackendMemory:
	case BackendPGVector:
		if c.Retrieval.DatabaseURL == "" {
			errs = append(errs, errors.New("retrieval.database_url is required for the pgvector backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown retrieval.backend %q", c.Retrieval.Backend))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, errors.New("retrieval.top_k must be > 0"))
	}
	if c.Retrieval.Concurrency <= 0 {
		errs = append(errs, errors.New("retrieval.concurrency must be > 0"))
	}
	switch c.Session.Store {
	case StoreMemory, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown session.store %q", c.Session.Store))
	}
	if c.Session.Secret == placeholderSecret {
		errs = append(errs, errors.New("session.secret is the example placeholder"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be > 0"))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("session.cookie_name cannot be empty"))
	}
	switch strings.ToLower(c.Log.Mode) {
	case "dev", "development", "prod", "production":
	default:
		errs = append(errs, fmt.Errorf("unknown log.mode %q", c.Log.Mode))
	}
	return errors.Join(errs...)
}

// Key returns the session signing key. Without a configured secret a random
// key is generated and generated is true; sessions then end on restart.
func (s SessionConfig) Key() (key []byte, generated bool, err error) {
	if s.Secret != "" {
		return []byte(s.Secret), false, nil
	}
	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate session key: %w", err)
	}
	return key, true, nil
}
