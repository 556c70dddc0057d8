//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

package errdefs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassification(t *testing.T) {
	assert.True(t, IsConfig(Config("missing field %s", "repo")))
	assert.True(t, IsConcurrent(Concurrent("agent-1", "exec-1")))
	assert.True(t, IsStepTimeout(StepTimeout("generate")))
	assert.True(t, IsRetrieval(Retrieval(errors.New("index offline"))))
	assert.True(t, IsNotFound(NotFound("execution", "x")))

	assert.False(t, IsConfig(Transient(errors.New("boom"))))
	assert.False(t, IsConcurrent(Config("nope")))
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("start agent: %w", Concurrent("a", "e"))
	assert.True(t, IsConcurrent(err))

	err = fmt.Errorf("step: %w", StepTimeout("apply"))
	assert.True(t, IsStepTimeout(err))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(Transient(errors.New("connection reset"))))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("call: %w", Transient(errors.New("rate limited")))))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(NonTransient(errors.New("401"))))
	assert.False(t, IsTransient(Config("bad transport")))
	assert.False(t, IsTransient(errors.New("unclassified")))
}

func TestNilErrorsStayNil(t *testing.T) {
	require.NoError(t, Transient(nil))
	require.NoError(t, NonTransient(nil))
	require.NoError(t, Retrieval(nil))
}

func TestMessagesCarryContext(t *testing.T) {
	err := Concurrent("agent-7", "exec-42")
	assert.Contains(t, err.Error(), "agent-7")
	assert.Contains(t, err.Error(), "exec-42")

	err = NotFound("execution", "missing-id")
	assert.Contains(t, err.Error(), "missing-id")
}
