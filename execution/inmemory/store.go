//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package inmemory provides a process-local execution store.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/execution"
)

// Store keeps execution records in process memory. It stores and
// returns clones, so callers cannot alias its state.
type Store struct {
	mu    sync.RWMutex
	execs map[string]*execution.Execution
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{execs: make(map[string]*execution.Execution)}
}

// Save implements execution.Store.
func (s *Store) Save(_ context.Context, exec *execution.Execution) error {
	if exec == nil || exec.ID == "" {
		return errdefs.Config("cannot save execution without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs[exec.ID] = exec.Clone()
	return nil
}

// Get implements execution.Store.
func (s *Store) Get(_ context.Context, id string) (*execution.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.execs[id]
	if !ok {
		return nil, errdefs.NotFound("execution", id)
	}
	return exec.Clone(), nil
}

// ListByAgent implements execution.Store.
func (s *Store) ListByAgent(_ context.Context, agentID string) ([]*execution.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*execution.Execution
	for _, exec := range s.execs {
		if exec.AgentID == agentID {
			out = append(out, exec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// Close implements execution.Store.
func (s *Store) Close() error { return nil }
