// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package index provides an in-memory vector index over documents.
package index

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/matthewdargan/nba-chat/internal/nba"
	"github.com/pgvector/pgvector-go"
)

// An Index answers nearest-neighbor queries over a fixed set of documents.
// It is not modified after [Build] and is safe for concurrent use.
type Index struct {
	docs  []nba.Document
	norms []float64
	dims  int
}

// Build embeds ds and returns an index over them.
func Build(ctx context.Context, e nba.Embedder, model string, ds []nba.Document, concurrency int) (*Index, error) {
	if len(ds) == 0 {
		return nil, errors.New("no documents to index")
	}
	ds = slices.Clone(ds)
	if err := nba.EmbedDocuments(ctx, e, model, ds, concurrency); err != nil {
		return nil, err
	}
	return New(ds)
}

// New returns an index over already embedded documents.
func New(ds []nba.Document) (*Index, error) {
	if len(ds) == 0 {
		return nil, errors.New("no documents to index")
	}
	idx := &Index{
		docs:  ds,
		norms: make([]float64, len(ds)),
		dims:  len(ds[0].Embedding.Slice()),
	}
	for i, d := range ds {
		v := d.Embedding.Slice()
		if len(v) == 0 || len(v) != idx.dims {
			return nil, fmt.Errorf("row %d: embedding size %d, want %d", d.Row, len(v), idx.dims)
		}
		idx.norms[i] = norm(v)
	}
	return idx, nil
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int { return len(idx.docs) }

// Dims returns the embedding size.
func (idx *Index) Dims() int { return idx.dims }

type hit struct {
	i     int
	score float64
}

// Nearest returns the k documents most similar to v by cosine similarity.
// Equal scores keep index order.
func (idx *Index) Nearest(ctx context.Context, v pgvector.Vector, k int) ([]nba.Document, error) {
	q := v.Slice()
	if len(q) != idx.dims {
		return nil, fmt.Errorf("query embedding size %d, want %d", len(q), idx.dims)
	}
	if k <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qn := norm(q)
	hs := make([]hit, len(idx.docs))
	for i, d := range idx.docs {
		hs[i] = hit{i: i, score: cosine(q, d.Embedding.Slice(), qn, idx.norms[i])}
	}
	slices.SortStableFunc(hs, func(a, b hit) int { return cmp.Compare(b.score, a.score) })
	k = min(k, len(hs))
	ds := make([]nba.Document, k)
	for i, h := range hs[:k] {
		ds[i] = idx.docs[h.i]
	}
	return ds, nil
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func cosine(a, b []float32, an, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
