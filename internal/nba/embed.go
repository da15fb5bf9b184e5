// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nba

import (
	"context"
	"errors"
	"fmt"

	"github.com/ollama/ollama/api"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
)

// An Embedder computes embeddings. [*api.Client] is an Embedder.
type Embedder interface {
	Embeddings(ctx context.Context, req *api.EmbeddingRequest) (*api.EmbeddingResponse, error)
}

// Embed returns the embedding of text under model.
func Embed(ctx context.Context, e Embedder, model, text string) (pgvector.Vector, error) {
	resp, err := e.Embeddings(ctx, &api.EmbeddingRequest{Model: model, Prompt: text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(resp.Embedding) == 0 {
		return pgvector.Vector{}, errors.New("empty embedding")
	}
	eb := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		eb[i] = float32(v)
	}
	return pgvector.NewVector(eb), nil
}

// EmbedDocuments sets the embedding of every document, running at most
// concurrency requests at once.
func EmbedDocuments(ctx context.Context, e Embedder, model string, ds []Document, concurrency int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i := range ds {
		g.Go(func() error {
			v, err := Embed(ctx, e, model, ds[i].Text)
			if err != nil {
				return fmt.Errorf("failed to embed row %d: %w", ds[i].Row, err)
			}
			ds[i].Embedding = v
			return nil
		})
	}
	return g.Wait()
}
