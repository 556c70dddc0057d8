//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

package execution

import "context"

// Store persists execution records. Implementations receive snapshots
// from the orchestrator; they never mutate records themselves.
type Store interface {
	// Save writes the record, replacing any earlier version.
	Save(ctx context.Context, exec *Execution) error

	// Get returns the record with the given ID.
	Get(ctx context.Context, id string) (*Execution, error)

	// ListByAgent returns every record for one definition, most recent
	// start first.
	ListByAgent(ctx context.Context, agentID string) ([]*Execution, error)

	// Close releases backend resources.
	Close() error
}
