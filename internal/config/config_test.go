// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Ollama.Model != "llama3.2" || cfg.Ollama.Host != "http://127.0.0.1:11434" {
		t.Errorf("Ollama = %+v", cfg.Ollama)
	}
	if cfg.Ollama.Timeout != 120*time.Second {
		t.Errorf("Ollama.Timeout = %v, want 2m0s", cfg.Ollama.Timeout)
	}
	if cfg.Retrieval.Backend != BackendMemory || cfg.Retrieval.TopK != 2 {
		t.Errorf("Retrieval = %+v", cfg.Retrieval)
	}
	if !slices.Equal(cfg.Data.Exclude, []string{"Player-additional"}) {
		t.Errorf("Data.Exclude = %q", cfg.Data.Exclude)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("NBA_OLLAMA_TIMEOUT", "5s")
	t.Setenv("NBA_RETRIEVAL_TOP_K", "4")
	t.Setenv("NBA_SESSION_STORE", "redis")
	t.Setenv("NBA_DATA_EXCLUDE", "Rk,Player-additional")
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ollama.Timeout != 5*time.Second {
		t.Errorf("Ollama.Timeout = %v, want 5s", cfg.Ollama.Timeout)
	}
	if cfg.Retrieval.TopK != 4 {
		t.Errorf("Retrieval.TopK = %d, want 4", cfg.Retrieval.TopK)
	}
	if cfg.Session.Store != StoreRedis {
		t.Errorf("Session.Store = %q, want redis", cfg.Session.Store)
	}
	if !slices.Equal(cfg.Data.Exclude, []string{"Rk", "Player-additional"}) {
		t.Errorf("Data.Exclude = %q", cfg.Data.Exclude)
	}
}

func TestLoadFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "nba.yaml")
	data := "data:\n  path: ref.csv\nollama:\n  model: llama3:8b\n"
	if err := os.WriteFile(name, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(New(), name)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Data.Path != "ref.csv" || cfg.Ollama.Model != "llama3:8b" {
		t.Errorf("Load() = %+v", cfg)
	}
	if _, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() with missing file succeeded")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"placeholder secret", func(c *Config) { c.Session.Secret = "your_secret_key" }},
		{"pgvector without database", func(c *Config) { c.Retrieval.Backend = BackendPGVector }},
		{"unknown backend", func(c *Config) { c.Retrieval.Backend = "faiss" }},
		{"unknown store", func(c *Config) { c.Session.Store = "cookie" }},
		{"relative ollama host", func(c *Config) { c.Ollama.Host = "localhost" }},
		{"zero timeout", func(c *Config) { c.Ollama.Timeout = 0 }},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"unknown log mode", func(c *Config) { c.Log.Mode = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(New(), "")
			if err != nil {
				t.Fatal(err)
			}
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() succeeded")
			}
		})
	}
}

func TestSessionKey(t *testing.T) {
	t.Parallel()
	key, generated, err := SessionConfig{Secret: "s3cret"}.Key()
	if err != nil || generated || string(key) != "s3cret" {
		t.Errorf("Key() = %q, %v, %v", key, generated, err)
	}
	key, generated, err = SessionConfig{}.Key()
	if err != nil || !generated || len(key) != 32 {
		t.Errorf("Key() = %d bytes, %v, %v, want 32 generated bytes", len(key), generated, err)
	}
}
