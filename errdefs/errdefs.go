//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package errdefs defines the error taxonomy shared by the orchestrator,
// the tool protocol client and the LLM port. Callers classify errors with
// the Is* helpers instead of matching concrete types.
package errdefs

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel classes. Errors produced by the engine wrap exactly one of
// these, so callers can branch with errors.Is.
var (
	// ErrConfig marks missing or invalid configuration. Fatal, never
	// retried; an execution never starts (or aborts immediately).
	ErrConfig = errors.New("configuration error")

	// ErrConcurrentExecution marks a start request rejected because an
	// execution for the same agent definition is already running.
	ErrConcurrentExecution = errors.New("execution already running")

	// ErrTransient marks a call failure worth retrying: timeout,
	// connection failure, rate limit or 5xx-equivalent.
	ErrTransient = errors.New("transient call error")

	// ErrNonTransient marks a call failure that retrying cannot fix:
	// authentication, malformed request or a tool-reported business error.
	ErrNonTransient = errors.New("non-transient call error")

	// ErrStepTimeout marks a step that exceeded its overall time budget,
	// including all retry attempts.
	ErrStepTimeout = errors.New("step timeout exceeded")

	// ErrRetrieval marks a retriever failure. Soft by default: workflows
	// proceed with empty context unless the step marks retrieval mandatory.
	ErrRetrieval = errors.New("retrieval error")

	// ErrNotFound marks a lookup for an unknown execution or agent.
	ErrNotFound = errors.New("not found")
)

// Config wraps err as a configuration error.
func Config(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// Concurrent wraps the running execution ID as a concurrency violation.
func Concurrent(agentID, executionID string) error {
	return fmt.Errorf("%w: agent %s has execution %s in flight",
		ErrConcurrentExecution, agentID, executionID)
}

// Transient wraps err as retryable. A nil err returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// NonTransient wraps err as immediately fatal for the step. A nil err
// returns nil.
func NonTransient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrNonTransient, err)
}

// StepTimeout wraps the step identifier as an overall budget violation.
func StepTimeout(step string) error {
	return fmt.Errorf("%w: step %q", ErrStepTimeout, step)
}

// Retrieval wraps err as a retriever failure.
func Retrieval(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRetrieval, err)
}

// NotFound wraps kind and id as an unknown-entity error.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool { return errors.Is(err, ErrConfig) }

// IsConcurrent reports whether err is a concurrency violation.
func IsConcurrent(err error) bool { return errors.Is(err, ErrConcurrentExecution) }

// IsStepTimeout reports whether err exhausted a step's overall budget.
func IsStepTimeout(err error) bool { return errors.Is(err, ErrStepTimeout) }

// IsRetrieval reports whether err came from the retriever.
func IsRetrieval(err error) bool { return errors.Is(err, ErrRetrieval) }

// IsNotFound reports whether err is an unknown-entity error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransient reports whether err should be retried. Per-attempt deadline
// expiry counts as transient; cancellation and everything explicitly
// marked non-transient do not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrNonTransient) || errors.Is(err, ErrConfig) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
