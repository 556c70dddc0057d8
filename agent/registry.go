//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openloop/agentrun/errdefs"
)

// Registry holds agent definitions for the engine. It stands in for the
// external management surface: definitions enter fully validated, and
// readers only ever see snapshots.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Put validates and stores a definition, assigning an ID when missing.
// An existing definition with the same ID is replaced; in-flight
// executions keep their earlier snapshot.
func (r *Registry) Put(def *Definition) error {
	if def == nil {
		return errdefs.Config("nil definition")
	}
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	if err := def.Validate(); err != nil {
		return err
	}

	now := time.Now()
	stored := def.Clone()
	stored.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.defs[stored.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	r.defs[stored.ID] = stored
	return nil
}

// Get returns a snapshot of the definition with the given ID.
func (r *Registry) Get(id string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	if !ok {
		return nil, errdefs.NotFound("agent", id)
	}
	return def.Clone(), nil
}

// List returns snapshots of all definitions, unordered.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def.Clone())
	}
	return out
}

// Delete removes a definition. Deleting an unknown ID is a no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defs, id)
}
