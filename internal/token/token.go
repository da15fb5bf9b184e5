// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package token renders table rows as text for embedding.
package token

import (
	"errors"
	"fmt"
	"strings"
)

// Fields returns a normalized copy of a header row.
func Fields(header []string) []string {
	fs := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		fs[i] = strings.TrimSpace(h)
	}
	return fs
}

// New returns tokens for the given fields and row, one "field": value pair
// per line in field order.
func New(fields, row []string) (string, error) {
	if len(fields) == 0 {
		return "", errors.New("empty fields")
	}
	if len(fields) != len(row) {
		return "", fmt.Errorf("fields and row must have the same length: %d != %d", len(fields), len(row))
	}
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%q: %s", f, strings.TrimSpace(row[i]))
	}
	return b.String(), nil
}
