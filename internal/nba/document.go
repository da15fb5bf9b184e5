// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nba provides facilities for vectorizing NBA statistics.
package nba

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matthewdargan/nba-chat/internal/token"
	"github.com/pgvector/pgvector-go"
	"github.com/xuri/excelize/v2"
)

// A Document is one statistics row rendered as text.
type Document struct {
	Row       int // 1-based data row, header excluded
	Text      string
	Embedding pgvector.Vector
}

// A DataLoadError reports a statistics table that could not be read.
type DataLoadError struct {
	Name string
	Err  error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Name, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// A Loader turns a statistics table into documents.
type Loader struct {
	// Exclude names columns left out of every document.
	Exclude []string
}

// Load reads the named table. Files ending in .xlsx are read from their
// first sheet; everything else is parsed as CSV.
func (l Loader) Load(name string) ([]Document, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		rs, err := readXLSX(name)
		if err != nil {
			return nil, &DataLoadError{Name: name, Err: err}
		}
		return l.documents(name, rs)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, &DataLoadError{Name: name, Err: err}
	}
	defer f.Close()
	return l.read(name, f)
}

// Read parses CSV from r.
func (l Loader) Read(r io.Reader) ([]Document, error) {
	return l.read("csv", r)
}

func (l Loader) read(name string, r io.Reader) ([]Document, error) {
	rs, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, &DataLoadError{Name: name, Err: err}
	}
	return l.documents(name, rs)
}

func readXLSX(name string) ([][]string, error) {
	x, err := excelize.OpenFile(name)
	if err != nil {
		return nil, err
	}
	defer x.Close()
	sheets := x.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rs, err := x.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	// Trailing empty cells are not returned.
	if len(rs) > 0 {
		n := len(rs[0])
		for i, r := range rs {
			for len(r) < n {
				r = append(r, "")
			}
			rs[i] = r
		}
	}
	return rs, nil
}

func (l Loader) documents(name string, rs [][]string) ([]Document, error) {
	if len(rs) == 0 {
		return nil, &DataLoadError{Name: name, Err: errors.New("missing header row")}
	}
	if len(rs) == 1 {
		return nil, &DataLoadError{Name: name, Err: errors.New("no data rows")}
	}
	header := token.Fields(rs[0])
	var keep []int
	for i, h := range header {
		if !slices.Contains(l.Exclude, h) {
			keep = append(keep, i)
		}
	}
	fields := pick(header, keep)
	ds := make([]Document, len(rs)-1)
	for i, r := range rs[1:] {
		if len(r) != len(header) {
			return nil, &DataLoadError{Name: name, Err: fmt.Errorf("row %d: expected %d fields, got %d", i+1, len(header), len(r))}
		}
		ts, err := token.New(fields, pick(r, keep))
		if err != nil {
			return nil, &DataLoadError{Name: name, Err: fmt.Errorf("row %d: %w", i+1, err)}
		}
		ds[i] = Document{Row: i + 1, Text: ts}
	}
	return ds, nil
}

func pick(r []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = r[j]
	}
	return out
}
