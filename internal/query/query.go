// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package query answers questions about NBA statistics with a language model.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matthewdargan/nba-chat/internal/nba"
	"github.com/ollama/ollama/api"
	"github.com/pgvector/pgvector-go"
)

// A Retriever finds the documents nearest to an embedding.
type Retriever interface {
	Nearest(ctx context.Context, v pgvector.Vector, k int) ([]nba.Document, error)
}

// A Generator generates text from a prompt. [*api.Client] is a Generator.
type Generator interface {
	Generate(ctx context.Context, req *api.GenerateRequest, fn api.GenerateResponseFunc) error
}

// Config configures an [Engine].
type Config struct {
	Model          string
	EmbeddingModel string
	TopK           int           // documents given to the model, default 2
	Timeout        time.Duration // upper bound on one answer, default 120s
}

const (
	defaultTopK    = 2
	defaultTimeout = 120 * time.Second
)

// A ModelUnavailableError reports a failed or timed out model call.
type ModelUnavailableError struct {
	Op  string
	Err error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model unavailable: %s: %v", e.Op, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// An Engine answers questions using the documents closest to them.
type Engine struct {
	emb nba.Embedder
	gen Generator
	ret Retriever
	cfg Config
}

// New returns an [Engine].
func New(emb nba.Embedder, gen Generator, ret Retriever, cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Engine{emb: emb, gen: gen, ret: ret, cfg: cfg}
}

// Answer answers question. Model failures are reported as
// [*ModelUnavailableError]. Answer does not retry.
func (e *Engine) Answer(ctx context.Context, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	v, err := nba.Embed(ctx, e.emb, e.cfg.EmbeddingModel, question)
	if err != nil {
		return "", unavailable(ctx, "embed", err)
	}
	ds, err := e.ret.Nearest(ctx, v, e.cfg.TopK)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve documents: %w", err)
	}
	stream := false
	req := &api.GenerateRequest{
		Model:  e.cfg.Model,
		Prompt: Prompt(ds, question),
		Stream: &stream,
	}
	var b strings.Builder
	if err := e.gen.Generate(ctx, req, func(r api.GenerateResponse) error {
		b.WriteString(r.Response)
		return nil
	}); err != nil {
		return "", unavailable(ctx, "generate", err)
	}
	ans := strings.TrimSpace(b.String())
	if ans == "" {
		return "", &ModelUnavailableError{Op: "generate", Err: errors.New("empty response")}
	}
	return ans, nil
}

func unavailable(ctx context.Context, op string, err error) error {
	if cerr := ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
		err = fmt.Errorf("%w: %w", cerr, err)
	}
	return &ModelUnavailableError{Op: op, Err: err}
}

// Prompt returns the model prompt for question given context documents.
func Prompt(ds []nba.Document, question string) string {
	cs := make([]string, len(ds))
	for i, d := range ds {
		cs[i] = d.Text
	}
	return "Context information is below.\n" +
		"---------------------\n" +
		strings.Join(cs, "\n\n") + "\n" +
		"---------------------\n" +
		"Given the context information and not prior knowledge, answer the query.\n" +
		"Query: " + question + "\n" +
		"Answer: "
}
