// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package app assembles the chatbot's components from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/matthewdargan/nba-chat/internal/chat"
	"github.com/matthewdargan/nba-chat/internal/config"
	"github.com/matthewdargan/nba-chat/internal/index"
	"github.com/matthewdargan/nba-chat/internal/logger"
	"github.com/matthewdargan/nba-chat/internal/metrics"
	"github.com/matthewdargan/nba-chat/internal/nba"
	"github.com/matthewdargan/nba-chat/internal/query"
	"github.com/ollama/ollama/api"
	"github.com/redis/go-redis/v9"
)

const sweepInterval = time.Minute

// OllamaClient returns a model server client for cfg.
// Requests give up after cfg.Timeout.
func OllamaClient(cfg config.OllamaConfig) (*api.Client, error) {
	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama host %q: want scheme://host:port", cfg.Host)
	}
	return api.NewClient(u, &http.Client{Timeout: cfg.Timeout}), nil
}

// Index loads the configured statistics table and embeds it into an
// in-memory index.
func Index(ctx context.Context, cfg *config.Config, e nba.Embedder, log *logger.Logger) (*index.Index, error) {
	ds, err := nba.Loader{Exclude: cfg.Data.Exclude}.Load(cfg.Data.Path)
	if err != nil {
		return nil, err
	}
	log.Info("loaded documents", "path", cfg.Data.Path, "documents", len(ds))
	start := time.Now()
	idx, err := index.Build(ctx, e, cfg.Ollama.EmbeddingModel, ds, cfg.Retrieval.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}
	log.Info("built index", "documents", idx.Len(), "dims", idx.Dims(), "duration", time.Since(start))
	return idx, nil
}

// Engine returns a query engine over the configured retrieval backend and a
// function releasing its resources. m may be nil.
func Engine(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*query.Engine, func(), error) {
	client, err := OllamaClient(cfg.Ollama)
	if err != nil {
		return nil, nil, err
	}
	var (
		ret     query.Retriever
		closeFn = func() {}
	)
	switch cfg.Retrieval.Backend {
	case config.BackendPGVector:
		pool, err := pgxpool.New(ctx, cfg.Retrieval.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		log.Info("using pgvector index")
		ret, closeFn = nba.NewStore(pool), pool.Close
	case config.BackendMemory:
		idx, err := Index(ctx, cfg, client, log)
		if err != nil {
			return nil, nil, err
		}
		if m != nil {
			m.SetDocuments(idx.Len())
		}
		ret = idx
	default:
		return nil, nil, fmt.Errorf("unknown retrieval backend %q", cfg.Retrieval.Backend)
	}
	e := query.New(client, client, ret, query.Config{
		Model:          cfg.Ollama.Model,
		EmbeddingModel: cfg.Ollama.EmbeddingModel,
		TopK:           cfg.Retrieval.TopK,
		Timeout:        cfg.Ollama.Timeout,
	})
	return e, closeFn, nil
}

// ChatStore returns the configured chat history store and a function
// releasing it. A memory store is swept of expired sessions until ctx is
// done.
func ChatStore(ctx context.Context, cfg *config.Config) (chat.Store, func(), error) {
	switch cfg.Session.Store {
	case config.StoreMemory:
		s := chat.NewMemoryStore(cfg.Session.TTL)
		go s.Run(ctx, sweepInterval)
		return s, func() {}, nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return chat.NewRedisStore(client, cfg.Session.TTL), func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
}
