//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

package mcp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/retry"
	"github.com/openloop/agentrun/tool"
)

type countingRecorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *countingRecorder) RecordCall(server string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[server]++
}

// refusingConnector fails every CallTool with a connection-level error.
type refusingConnector struct {
	mu       sync.Mutex
	attempts int
}

func (f *refusingConnector) Initialize(context.Context, *mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{}, nil
}

func (f *refusingConnector) CallTool(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.mu.Lock()
	f.attempts++
	f.mu.Unlock()
	return nil, errors.New("dial tcp 127.0.0.1:9000: connection refused")
}

func (f *refusingConnector) Close() error { return nil }

func TestCallUnknownServerFailsBeforeAccounting(t *testing.T) {
	rec := &countingRecorder{}
	c := NewClient(map[string]tool.ServerConfig{
		"github": {Transport: "streamable", ServerURL: "http://localhost:9000/mcp"},
	}, WithRecorder(rec))
	defer c.Close()

	_, err := c.Call(context.Background(), "nope", "get_repository", nil)
	require.Error(t, err)
	assert.True(t, errdefs.IsConfig(err))
	assert.Empty(t, rec.calls)
}

func TestRetriesExhaustedCountAsOneCall(t *testing.T) {
	rec := &countingRecorder{}
	fake := &refusingConnector{}
	c := NewClient(map[string]tool.ServerConfig{
		"search": {Transport: "streamable", ServerURL: "http://localhost:9000/mcp"},
	}, WithRecorder(rec), WithRetryPolicy(retry.Policy{
		MaxAttempts:     3,
		AttemptTimeout:  time.Second,
		StepTimeout:     5 * time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	}))
	defer c.Close()

	conn := c.servers["search"]
	conn.client = fake
	conn.initialized = true

	_, err := c.Call(context.Background(), "search", "search", map[string]any{"query": "go"})
	require.Error(t, err)
	assert.True(t, errdefs.IsTransient(err))

	// Every attempt hit the transport, but accounting sees one logical call.
	assert.Equal(t, 3, fake.attempts)
	assert.Equal(t, 1, rec.calls["search"])
}

func TestCallAfterClose(t *testing.T) {
	c := NewClient(map[string]tool.ServerConfig{
		"github": {Transport: "streamable", ServerURL: "http://localhost:9000/mcp"},
	})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Call(context.Background(), "github", "get_repository", nil)
	require.Error(t, err)
	assert.False(t, errdefs.IsTransient(err))
}

func TestCreateClientRejectsUnknownTransport(t *testing.T) {
	conn := &serverConn{
		name: "broken",
		cfg:  tool.ServerConfig{Transport: "carrier-pigeon"},
		info: defaultClientInfo,
	}
	_, err := conn.createClient()
	assert.True(t, errdefs.IsConfig(err))
}

func TestClassifyCallError(t *testing.T) {
	assert.True(t, errdefs.IsTransient(classifyCallError("m", context.DeadlineExceeded)))
	assert.True(t, errdefs.IsTransient(classifyCallError("m", errors.New("dial tcp: connection refused"))))
	assert.True(t, errdefs.IsTransient(classifyCallError("m", errors.New("unexpected EOF"))))
	assert.True(t, errdefs.IsTransient(classifyCallError("m", errors.New("session expired"))))

	assert.ErrorIs(t, classifyCallError("m", context.Canceled), context.Canceled)
	assert.False(t, errdefs.IsTransient(classifyCallError("m", errors.New("invalid params"))))
}

func TestDecodeContent(t *testing.T) {
	single := decodeContent([]mcp.Content{mcp.NewTextContent("hello")})
	assert.Equal(t, "hello", single)

	multi := decodeContent([]mcp.Content{
		mcp.NewTextContent("a"),
		mcp.NewTextContent("b"),
	})
	assert.Equal(t, []any{"a", "b"}, multi)
}

func TestContentText(t *testing.T) {
	assert.Equal(t, "tool reported an error", contentText(nil))
	assert.Equal(t, "a; b", contentText([]mcp.Content{
		mcp.NewTextContent("a"),
		mcp.NewTextContent("b"),
	}))
}
