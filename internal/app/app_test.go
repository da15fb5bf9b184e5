// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matthewdargan/nba-chat/internal/chat"
	"github.com/matthewdargan/nba-chat/internal/config"
	"github.com/matthewdargan/nba-chat/internal/logger"
	"github.com/matthewdargan/nba-chat/internal/metrics"
	"github.com/matthewdargan/nba-chat/internal/nba"
	"github.com/ollama/ollama/api"
)

const stats = `Rk,Player,Pos,PTS,Player-additional
1,LeBron James,SF,25.7,jamesle01
2,Yao Ming,C,19.0,mingya01
3,Tracy McGrady,SG,19.6,mcgratr01
`

func testConfig(t *testing.T, host string) *config.Config {
	t.Helper()
	name := filepath.Join(t.TempDir(), "stats.csv")
	if err := os.WriteFile(name, []byte(stats), 0o600); err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		Data: config.DataConfig{Path: name, Exclude: []string{"Player-additional"}},
		Ollama: config.OllamaConfig{
			Host:           host,
			Model:          "llama3.2",
			EmbeddingModel: "all-minilm",
			Timeout:        5 * time.Second,
		},
		Retrieval: config.RetrievalConfig{Backend: config.BackendMemory, TopK: 2, Concurrency: 2},
		Session:   config.SessionConfig{Store: config.StoreMemory, TTL: time.Hour},
	}
}

func ollamaServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req api.EmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		v := []float64{1, 0}
		if strings.Contains(req.Prompt, "Yao") {
			v = []float64{0, 1}
		}
		_ = json.NewEncoder(w).Encode(api.EmbeddingResponse{Embedding: v})
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(api.GenerateResponse{Response: "Yao Ming was the tallest.", Done: true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaClient(t *testing.T) {
	t.Parallel()
	tests := []struct {
		host    string
		wantErr bool
	}{
		{"http://127.0.0.1:11434", false},
		{"https://ollama.example.com", false},
		{"127.0.0.1:11434", true},
		{"", true},
		{"http://%zz", true},
	}
	for _, tt := range tests {
		_, err := OllamaClient(config.OllamaConfig{Host: tt.host, Timeout: time.Second})
		if (err != nil) != tt.wantErr {
			t.Errorf("OllamaClient(%q) error = %v, wantErr %v", tt.host, err, tt.wantErr)
		}
	}
}

type embedFunc func(text string) []float64

func (f embedFunc) Embeddings(_ context.Context, req *api.EmbeddingRequest) (*api.EmbeddingResponse, error) {
	return &api.EmbeddingResponse{Embedding: f(req.Prompt)}, nil
}

func TestIndex(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, "http://127.0.0.1:11434")
	e := embedFunc(func(text string) []float64 {
		if strings.Contains(text, "Player-additional") {
			t.Errorf("excluded column embedded: %q", text)
		}
		return []float64{1, 2, 3}
	})
	idx, err := Index(context.Background(), cfg, e, logger.Nop())
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if idx.Len() != 3 || idx.Dims() != 3 {
		t.Errorf("index has %d documents of %d dims, want 3 of 3", idx.Len(), idx.Dims())
	}
}

func TestIndexMissingData(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, "http://127.0.0.1:11434")
	cfg.Data.Path = filepath.Join(t.TempDir(), "missing.csv")
	_, err := Index(context.Background(), cfg, embedFunc(func(string) []float64 { return []float64{1} }), logger.Nop())
	var lerr *nba.DataLoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("Index() error = %v, want *nba.DataLoadError", err)
	}
}

func TestEngine(t *testing.T) {
	t.Parallel()
	srv := ollamaServer(t)
	cfg := testConfig(t, srv.URL)
	m := metrics.New()
	e, closeFn, err := Engine(context.Background(), cfg, logger.Nop(), m)
	if err != nil {
		t.Fatalf("Engine() error = %v", err)
	}
	defer closeFn()
	ans, err := e.Answer(context.Background(), "Who was the tallest?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if ans != "Yao Ming was the tallest." {
		t.Errorf("Answer() = %q", ans)
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "nba_chat_index_documents 3") {
		t.Error("index size not exported")
	}
}

func TestEngineUnknownBackend(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, "http://127.0.0.1:11434")
	cfg.Retrieval.Backend = "faiss"
	if _, _, err := Engine(context.Background(), cfg, logger.Nop(), nil); err == nil {
		t.Error("Engine() succeeded with an unknown backend")
	}
}

func TestChatStore(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testConfig(t, "http://127.0.0.1:11434")
	s, closeFn, err := ChatStore(ctx, cfg)
	if err != nil {
		t.Fatalf("ChatStore() error = %v", err)
	}
	defer closeFn()
	if _, ok := s.(*chat.MemoryStore); !ok {
		t.Errorf("ChatStore() = %T, want *chat.MemoryStore", s)
	}

	cfg.Session.Store = config.StoreRedis
	cfg.Redis.Addr = "127.0.0.1:1"
	if _, _, err := ChatStore(ctx, cfg); err == nil {
		t.Error("ChatStore() succeeded without a reachable redis")
	}
	cfg.Session.Store = "sqlite"
	if _, _, err := ChatStore(ctx, cfg); err == nil {
		t.Error("ChatStore() succeeded with an unknown store")
	}
}
