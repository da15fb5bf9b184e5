// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const appendRetries = 10

// A RedisStore is a [Store] that keeps each history as a JSON value with
// a TTL, so histories are shared by every server using the same Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore returns a [RedisStore] using client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func historyKey(key string) string {
	return "chat:history:" + key
}

func decode(data []byte) (History, error) {
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return clone(h), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (History, bool, error) {
	data, err := s.client.GetEx(ctx, historyKey(key), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	h, err := decode(data)
	if err != nil {
		return nil, false, err
	}
	return h, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, h History) error {
	data, err := json.Marshal(clone(h))
	if err != nil {
		return err
	}
	return s.client.Set(ctx, historyKey(key), data, s.ttl).Err()
}

// Append adds t in an optimistic transaction, retrying when another
// request changes the same history concurrently.
func (s *RedisStore) Append(ctx context.Context, key string, t Turn) error {
	k := historyKey(key)
	txf := func(tx *redis.Tx) error {
		var h History
		data, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if h, err = decode(data); err != nil {
				return err
			}
		}
		data, err = json.Marshal(append(h, t))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, s.ttl)
			return nil
		})
		return err
	}
	for range appendRetries {
		err := s.client.Watch(ctx, txf, k)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("append to %s: %w", k, redis.TxFailedErr)
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, historyKey(key)).Err()
}
