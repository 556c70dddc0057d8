//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package redis provides an execution store backed by Redis. Records are
// stored as JSON values and indexed per agent by start time, so listing
// does not scan the keyspace.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/execution"
)

const (
	executionKeyPrefix = "agentrun:execution:"
	agentIndexPrefix   = "agentrun:agent:executions:"
)

// Store persists execution records in Redis.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL bounds the lifetime of stored records. Zero keeps them
// forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// NewStore connects to the Redis instance named by url, e.g.
// "redis://127.0.0.1:6379/0".
func NewStore(url string, opts ...Option) (*Store, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errdefs.Config("invalid redis url: %v", err)
	}
	s := &Store{client: redis.NewClient(redisOpts)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewStoreWithClient wraps an existing client, for tests and shared
// connection pools.
func NewStoreWithClient(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save implements execution.Store.
func (s *Store) Save(ctx context.Context, exec *execution.Execution) error {
	if exec == nil || exec.ID == "" {
		return errdefs.Config("cannot save execution without id")
	}
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("marshal execution %s: %w", exec.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, executionKeyPrefix+exec.ID, data, s.ttl)
	pipe.ZAdd(ctx, agentIndexPrefix+exec.AgentID, redis.Z{
		Score:  float64(exec.StartedAt.UnixNano()),
		Member: exec.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save execution %s: %w", exec.ID, err)
	}
	return nil
}

// Get implements execution.Store.
func (s *Store) Get(ctx context.Context, id string) (*execution.Execution, error) {
	data, err := s.client.Get(ctx, executionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, errdefs.NotFound("execution", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get execution %s: %w", id, err)
	}
	var exec execution.Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, fmt.Errorf("unmarshal execution %s: %w", id, err)
	}
	return &exec, nil
}

// ListByAgent implements execution.Store. Index entries whose record has
// expired are dropped from the result and pruned from the index.
func (s *Store) ListByAgent(ctx context.Context, agentID string) ([]*execution.Execution, error) {
	ids, err := s.client.ZRevRange(ctx, agentIndexPrefix+agentID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list executions for agent %s: %w", agentID, err)
	}

	var out []*execution.Execution
	var stale []any
	for _, id := range ids {
		exec, err := s.Get(ctx, id)
		if errdefs.IsNotFound(err) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	if len(stale) > 0 {
		s.client.ZRem(ctx, agentIndexPrefix+agentID, stale...)
	}
	return out, nil
}

// Close implements execution.Store.
func (s *Store) Close() error {
	return s.client.Close()
}
