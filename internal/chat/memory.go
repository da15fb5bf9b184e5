// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chat

import (
	"context"
	"sync"
	"time"
)

// A MemoryStore is a [Store] held in process memory. Histories expire after
// going unused for the store's TTL.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu sync.Mutex
	m  map[string]*entry
}

type entry struct {
	h       History
	expires time.Time
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, m: make(map[string]*entry)}
}

// lookup returns the live entry for key, refreshing its expiry.
// s.mu must be held.
func (s *MemoryStore) lookup(key string) (*entry, bool) {
	e, ok := s.m[key]
	if !ok {
		return nil, false
	}
	now := s.now()
	if !now.Before(e.expires) {
		delete(s.m, key)
		return nil, false
	}
	e.expires = now.Add(s.ttl)
	return e, true
}

func (s *MemoryStore) Get(_ context.Context, key string) (History, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return clone(e.h), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, h History) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = &entry{h: clone(h), expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Append(_ context.Context, key string, t Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		s.m[key] = &entry{h: History{t}, expires: s.now().Add(s.ttl)}
		return nil
	}
	// Copy so histories handed out by Get never see the new turn.
	h := make(History, len(e.h), len(e.h)+1)
	copy(h, e.h)
	e.h = append(h, t)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// Sweep removes expired histories and reports how many it removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, e := range s.m {
		if !now.Before(e.expires) {
			delete(s.m, k)
			n++
		}
	}
	return n
}

// Run sweeps the store every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
