// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chat implements the chatbot's web interface and per-session
// chat history.
package chat

import (
	"context"
	"slices"
)

// A Turn is one question and the bot's reply.
type Turn struct {
	Query          string `json:"query"`
	Response       string `json:"response"`
	PlayerImageURL string `json:"player_image_url,omitempty"`
	// Failed marks a turn whose reply is an apology for a failed answer.
	Failed bool `json:"failed,omitempty"`
}

// A History is a session's turns in the order they were asked.
type History []Turn

// A Store keeps chat histories by session key.
//
// A key with no history is distinct from a key with an empty history.
// Append adds a whole turn or nothing, and never changes earlier turns.
type Store interface {
	// Get returns the history for key and whether one exists.
	Get(ctx context.Context, key string) (History, bool, error)
	// Set replaces the history for key.
	Set(ctx context.Context, key string, h History) error
	// Append adds t to the end of the history for key, creating it if needed.
	Append(ctx context.Context, key string, t Turn) error
	// Clear removes the history for key.
	Clear(ctx context.Context, key string) error
}

func clone(h History) History {
	if h == nil {
		return History{}
	}
	return slices.Clone(h)
}
