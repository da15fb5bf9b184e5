// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nba

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// A DB runs statements against Postgres. [*pgx.Conn] and
// [*pgxpool.Pool] are both DBs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// A Store keeps documents and their embeddings in a pgvector table.
type Store struct {
	db DB
}

// NewStore returns a [Store] backed by db.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// CreateSchema creates the documents table for embeddings of the given size.
func (s *Store) CreateSchema(ctx context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("invalid embedding size %d", dims)
	}
	if _, err := s.db.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS documents (
    id bigserial PRIMARY KEY,
    row_number integer NOT NULL,
    text text NOT NULL,
    embedding vector(%d) NOT NULL
)`, dims))
	return err
}

// Reset removes all documents.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.Exec(ctx, "TRUNCATE documents")
	return err
}

// InsertDocuments inserts embedded documents.
func (s *Store) InsertDocuments(ctx context.Context, ds []Document) error {
	b := &pgx.Batch{}
	for _, d := range ds {
		if len(d.Embedding.Slice()) == 0 {
			return fmt.Errorf("row %d has no embedding", d.Row)
		}
		b.Queue(`INSERT INTO documents (row_number, text, embedding) VALUES ($1, $2, $3)`,
			d.Row, d.Text, d.Embedding)
	}
	br := s.db.SendBatch(ctx, b)
	for range b.Len() {
		if _, err := br.Exec(); err != nil {
			return errors.Join(err, br.Close())
		}
	}
	return br.Close()
}

// Nearest returns the k documents whose embeddings are closest to v.
func (s *Store) Nearest(ctx context.Context, v pgvector.Vector, k int) ([]Document, error) {
	rows, err := s.db.Query(ctx, `
SELECT row_number, text
FROM documents
ORDER BY embedding <-> $1
LIMIT $2`, v, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ds []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Row, &d.Text); err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return ds, rows.Err()
}
