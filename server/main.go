// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Server is the NBA statistics chat web application.
//
// Configuration is read from config.yaml in the working directory (or the
// file named by NBA_CONFIG) and from NBA_* environment variables, which may
// also be given in a .env file.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/matthewdargan/nba-chat/internal/app"
	"github.com/matthewdargan/nba-chat/internal/chat"
	"github.com/matthewdargan/nba-chat/internal/config"
	"github.com/matthewdargan/nba-chat/internal/logger"
	"github.com/matthewdargan/nba-chat/internal/metrics"
)

func main() {
	dotenv := godotenv.Load()
	cfg, err := config.Load(config.New(), os.Getenv("NBA_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	l, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatal(err)
	}
	defer l.Sync()
	if dotenv != nil {
		l.Debug("no .env file loaded", "error", dotenv)
	}
	if err := run(cfg, l); err != nil {
		l.Error("server failed", "error", err)
		l.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, l *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	engine, closeEngine, err := app.Engine(ctx, cfg, l, m)
	if err != nil {
		return err
	}
	defer closeEngine()
	store, closeStore, err := app.ChatStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	key, generated, err := cfg.Session.Key()
	if err != nil {
		return err
	}
	if generated {
		l.Warn("session.secret is not set; using a random key, sessions end on restart")
	}
	sessions := chat.NewSessions(key, cfg.Session.CookieName, cfg.Session.TTL, cfg.Session.Secure)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(l))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.Server.StaticDir))))
	chat.NewHandler(engine, store, l, m).RegisterRoutes(r, sessions)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Ollama.Timeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		l.Info("listening", "addr", srv.Addr, "backend", cfg.Retrieval.Backend, "store", cfg.Session.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	stop()
	l.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
