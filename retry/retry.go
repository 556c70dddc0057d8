//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package retry implements the call policy shared by the tool protocol
// client and the LLM port: exponential backoff on transient failures, a
// per-attempt timeout, and an overall per-step budget that wins over any
// remaining retry allowance.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/log"
)

// Default policy values.
const (
	DefaultMaxAttempts     = 3
	DefaultAttemptTimeout  = 30 * time.Second
	DefaultStepTimeout     = 5 * time.Minute
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
)

// Policy bounds one logical call. The zero value is unusable; use
// DefaultPolicy or fill every field.
type Policy struct {
	// MaxAttempts is the total attempt count, including the first.
	MaxAttempts int

	// AttemptTimeout bounds each individual attempt. Zero disables the
	// per-attempt bound.
	AttemptTimeout time.Duration

	// StepTimeout bounds the whole call including backoff waits. Zero
	// disables the overall bound.
	StepTimeout time.Duration

	// InitialInterval and MaxInterval shape the exponential backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy returns the engine-wide default call policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     DefaultMaxAttempts,
		AttemptTimeout:  DefaultAttemptTimeout,
		StepTimeout:     DefaultStepTimeout,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

// Execute runs op under the policy. Transient errors (per errdefs) are
// retried with exponential backoff up to MaxAttempts; non-transient
// errors surface immediately. When the step budget expires the result is
// errdefs.ErrStepTimeout regardless of remaining attempts. step names the
// workflow stage for timeout attribution.
func (p Policy) Execute(ctx context.Context, step string, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	stepCtx := ctx
	cancel := context.CancelFunc(func() {})
	if p.StepTimeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, p.StepTimeout)
	}
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}
	bo.MaxElapsedTime = 0 // the step context owns the overall budget

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		attemptErr := p.runAttempt(stepCtx, op)
		if attemptErr == nil {
			return nil
		}
		if stepCtx.Err() != nil {
			// Out of budget; stop without consuming further attempts.
			return backoff.Permanent(attemptErr)
		}
		if !errdefs.IsTransient(attemptErr) {
			return backoff.Permanent(attemptErr)
		}
		log.Debugf("retry: step %q attempt %d/%d failed: %v", step, attempt, attempts, attemptErr)
		return attemptErr
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), stepCtx))

	if err == nil {
		return nil
	}
	if stepCtx.Err() != nil && ctx.Err() == nil {
		return fmt.Errorf("%w (last error: %v)", errdefs.StepTimeout(step), err)
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// runAttempt applies the per-attempt timeout and normalizes its expiry to
// a transient error so the policy can retry it.
func (p Policy) runAttempt(stepCtx context.Context, op func(ctx context.Context) error) error {
	attemptCtx := stepCtx
	cancel := context.CancelFunc(func() {})
	if p.AttemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(stepCtx, p.AttemptTimeout)
	}
	defer cancel()

	err := op(attemptCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && attemptCtx.Err() != nil && stepCtx.Err() == nil {
		return errdefs.Transient(fmt.Errorf("attempt timed out after %s", p.AttemptTimeout))
	}
	return err
}
