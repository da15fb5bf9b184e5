// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ingest loads NBA statistics, generates their embeddings and stores them
// in a pgvector table for the server's pgvector retrieval backend.
//
// It reads the same configuration as the server and requires
// retrieval.database_url (NBA_RETRIEVAL_DATABASE_URL).
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/matthewdargan/nba-chat/internal/app"
	"github.com/matthewdargan/nba-chat/internal/config"
	"github.com/matthewdargan/nba-chat/internal/logger"
	"github.com/matthewdargan/nba-chat/internal/nba"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(config.New(), os.Getenv("NBA_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	l, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatal(err)
	}
	defer l.Sync()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := ingest(ctx, cfg, l); err != nil {
		l.Error("ingest failed", "error", err)
		l.Sync()
		os.Exit(1)
	}
}

func ingest(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	if cfg.Retrieval.DatabaseURL == "" {
		return errors.New("retrieval.database_url is not set")
	}
	ds, err := nba.Loader{Exclude: cfg.Data.Exclude}.Load(cfg.Data.Path)
	if err != nil {
		return err
	}
	client, err := app.OllamaClient(cfg.Ollama)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := nba.EmbedDocuments(ctx, client, cfg.Ollama.EmbeddingModel, ds, cfg.Retrieval.Concurrency); err != nil {
		return err
	}
	l.Info("generated embeddings", "documents", len(ds), "duration", time.Since(start))
	conn, err := pgx.Connect(ctx, cfg.Retrieval.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	s := nba.NewStore(conn)
	if err := s.CreateSchema(ctx, len(ds[0].Embedding.Slice())); err != nil {
		return err
	}
	if err := s.Reset(ctx); err != nil {
		return err
	}
	if err := s.InsertDocuments(ctx, ds); err != nil {
		return err
	}
	l.Info("inserted documents", "documents", len(ds))
	return nil
}
