//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openloop/agentrun/agent"
	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/event"
	"github.com/openloop/agentrun/execution"
	"github.com/openloop/agentrun/model"
	"github.com/openloop/agentrun/retry"
	"github.com/openloop/agentrun/tool"
)

// scriptedModel returns canned completions, optionally blocking until
// released so tests can observe a running execution.
type scriptedModel struct {
	mu       sync.Mutex
	response string
	err      error
	block    chan struct{}
}

func (m *scriptedModel) Complete(ctx context.Context, _ *model.Request) (*model.Response, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &model.Response{
		Text:  m.response,
		Model: "scripted",
		Usage: model.Usage{TotalTokens: 30},
	}, nil
}

func (m *scriptedModel) Info() model.Info { return model.Info{Name: "scripted"} }

// recordedTools honors the accounting contract: one recorder bump per
// logical call.
type recordedTools struct {
	recorder tool.Recorder
	mu       sync.Mutex
	calls    []string
	errs     map[string]error
}

func (f *recordedTools) Call(_ context.Context, server, method string, _ map[string]any) (any, error) {
	if f.recorder != nil {
		defer f.recorder.RecordCall(server)
	}
	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.mu.Unlock()
	if err, ok := f.errs[method]; ok {
		return nil, err
	}
	return "done", nil
}

func (f *recordedTools) Close() error { return nil }

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     2,
		AttemptTimeout:  time.Second,
		StepTimeout:     5 * time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func newTestRunner(t *testing.T, mdl model.Model, toolErrs map[string]error) (*Runner, *agent.Registry) {
	t.Helper()
	registry := agent.NewRegistry()
	provider := func(agent.ModelConfig) (model.Model, error) { return mdl, nil }
	factory := func(_ map[string]tool.ServerConfig, rec tool.Recorder, _ retry.Policy) tool.Client {
		return &recordedTools{recorder: rec, errs: toolErrs}
	}
	r, err := NewRunner(registry, provider,
		WithRetryPolicy(fastPolicy()),
		WithToolFactory(factory))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, registry
}

func registerCodeGen(t *testing.T, registry *agent.Registry, active bool) string {
	t.Helper()
	def := &agent.Definition{
		ID:   "agent-codegen",
		Name: "generator",
		Workflow: agent.CodeGeneratorConfig{
			Repo:         "openloop/demo",
			TargetBranch: "agent/changes",
		},
		Model: agent.ModelConfig{Provider: "openai", Model: "gpt-4o"},
		ToolServers: map[string]tool.ServerConfig{
			agent.ServerGitHub: {Transport: "streamable", ServerURL: "http://localhost:9000"},
		},
		Active: active,
	}
	require.NoError(t, registry.Put(def))
	return def.ID
}

func registerTravel(t *testing.T, registry *agent.Registry) string {
	t.Helper()
	def := &agent.Definition{
		ID:       "agent-travel",
		Name:     "travel",
		Workflow: agent.TravelConfig{Mode: agent.TravelModeItinerary},
		Model:    agent.ModelConfig{Model: "gpt-4o"},
		Active:   true,
	}
	require.NoError(t, registry.Put(def))
	return def.ID
}

func drain(t *testing.T, ch <-chan *event.Event) []*event.Event {
	t.Helper()
	var out []*event.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatalf("stream did not close, got %d events", len(out))
		}
	}
}

func waitTerminal(t *testing.T, r *Runner, execID string) *execution.Execution {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		exec, err := r.Get(context.Background(), execID)
		require.NoError(t, err)
		if exec.Status.Terminal() {
			return exec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("execution never reached a terminal state")
	return nil
}

func TestStartUnknownAgent(t *testing.T) {
	r, _ := newTestRunner(t, &scriptedModel{}, nil)
	_, err := r.Start(context.Background(), "missing", nil)
	assert.True(t, errdefs.IsNotFound(err))
}

func TestStartInactiveAgentCreatesNoRecord(t *testing.T) {
	r, registry := newTestRunner(t, &scriptedModel{}, nil)
	agentID := registerCodeGen(t, registry, false)

	_, err := r.Start(context.Background(), agentID, nil)
	require.Error(t, err)
	assert.True(t, errdefs.IsConfig(err))

	execs, err := r.List(context.Background(), agentID)
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestCodeGeneratorExecutionLifecycle(t *testing.T) {
	mdl := &scriptedModel{
		response: `{"files": [{"path": "health.go", "content": "package api\n"}], "summary": "adds healthcheck"}`,
	}
	r, registry := newTestRunner(t, mdl, nil)
	agentID := registerCodeGen(t, registry, true)

	execID, err := r.Start(context.Background(), agentID, map[string]any{"prompt": "add healthcheck"})
	require.NoError(t, err)

	ch, err := r.Subscribe(context.Background(), execID)
	require.NoError(t, err)
	events := drain(t, ch)
	require.NotEmpty(t, events)

	// Sequence numbers are gapless and the stream ends with done.
	for i, e := range events {
		assert.Equal(t, int64(i), e.Seq)
		assert.Equal(t, execID, e.ExecutionID)
	}
	done := events[len(events)-1]
	require.Equal(t, event.TypeDone, done.Type)
	assert.Equal(t, string(execution.StatusCompleted), done.Done.Status)
	assert.Equal(t, 30, done.Done.TokensUsed)
	// get_repository, create_branch and one file write: three logical calls.
	assert.Equal(t, 3, done.Done.MCPCalls["github"])
	assert.Empty(t, done.Done.Error)

	// done is terminal: nothing follows it and there is exactly one.
	for _, e := range events[:len(events)-1] {
		assert.NotEqual(t, event.TypeDone, e.Type)
	}

	// Progress percentages never regress.
	last := -1
	for _, e := range events {
		if e.Type == event.TypeProgress {
			assert.GreaterOrEqual(t, e.Progress.Percent, last)
			last = e.Progress.Percent
		}
	}

	// The result event precedes done.
	require.GreaterOrEqual(t, len(events), 2)
	result := events[len(events)-2]
	require.Equal(t, event.TypeResult, result.Type)
	assert.NotNil(t, result.Result.Data["filesCreated"])

	// First visible activity matches the workflow's opening step.
	assert.Equal(t, event.TypeLog, events[0].Type)
	assert.Contains(t, events[0].Log.Message, "Fetching repository")

	exec := waitTerminal(t, r, execID)
	assert.Equal(t, execution.StatusCompleted, exec.Status)
	require.NotNil(t, exec.CompletedAt)
	assert.Equal(t, 30, exec.TokensUsed)
	assert.Equal(t, 3, exec.MCPCalls["github"])
	assert.NotEmpty(t, exec.Logs)
	assert.NotNil(t, exec.Result)
}

func TestConcurrentStartRejected(t *testing.T) {
	block := make(chan struct{})
	mdl := &scriptedModel{response: "slow", block: block}
	r, registry := newTestRunner(t, mdl, nil)
	agentID := registerTravel(t, registry)

	first, err := r.Start(context.Background(), agentID, map[string]any{"prompt": "plan a trip"})
	require.NoError(t, err)

	_, err = r.Start(context.Background(), agentID, map[string]any{"prompt": "another"})
	require.Error(t, err)
	assert.True(t, errdefs.IsConcurrent(err))
	assert.Contains(t, err.Error(), first)

	close(block)
	waitTerminal(t, r, first)

	// The slot frees after completion.
	second, err := r.Start(context.Background(), agentID, map[string]any{"prompt": "again"})
	require.NoError(t, err)
	waitTerminal(t, r, second)
}

func TestCancelRunningExecution(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	mdl := &scriptedModel{response: "never", block: block}
	r, registry := newTestRunner(t, mdl, nil)
	agentID := registerTravel(t, registry)

	execID, err := r.Start(context.Background(), agentID, map[string]any{"prompt": "plan"})
	require.NoError(t, err)

	ch, err := r.Subscribe(context.Background(), execID)
	require.NoError(t, err)

	// Give the workflow a moment to reach the model call.
	time.Sleep(20 * time.Millisecond)

	status, err := r.Cancel(context.Background(), execID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCancelled, status)

	events := drain(t, ch)
	require.NotEmpty(t, events)
	done := events[len(events)-1]
	require.Equal(t, event.TypeDone, done.Type)
	assert.Equal(t, string(execution.StatusCancelled), done.Done.Status)

	exec := waitTerminal(t, r, execID)
	assert.Equal(t, execution.StatusCancelled, exec.Status)
	require.NotNil(t, exec.CompletedAt)

	// Cancelling again is a no-op reporting the current state.
	status, err = r.Cancel(context.Background(), execID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCancelled, status)

	// The agent slot is free again.
	_, err = r.Start(context.Background(), agentID, map[string]any{"prompt": "retry"})
	require.NoError(t, err)
}

func TestCancelUnknownExecution(t *testing.T) {
	r, _ := newTestRunner(t, &scriptedModel{}, nil)
	_, err := r.Cancel(context.Background(), "missing")
	assert.True(t, errdefs.IsNotFound(err))
}

func TestFailedExecutionRecordsDetail(t *testing.T) {
	r, registry := newTestRunner(t, &scriptedModel{response: "ok"}, map[string]error{
		"get_repository": errdefs.NonTransient(errors.New("repo not found")),
	})
	agentID := registerCodeGen(t, registry, true)

	execID, err := r.Start(context.Background(), agentID, map[string]any{"prompt": "x"})
	require.NoError(t, err)

	ch, err := r.Subscribe(context.Background(), execID)
	require.NoError(t, err)
	events := drain(t, ch)
	done := events[len(events)-1]
	require.Equal(t, event.TypeDone, done.Type)
	assert.Equal(t, string(execution.StatusFailed), done.Done.Status)
	assert.Contains(t, done.Done.Error, "repo not found")

	exec := waitTerminal(t, r, execID)
	assert.Equal(t, execution.StatusFailed, exec.Status)
	assert.Contains(t, exec.Error, "repo not found")
	// The failed call still counts toward accounting, exactly once.
	assert.Equal(t, 1, exec.MCPCalls["github"])
}

func TestSubscribeAfterCompletionReplaysStream(t *testing.T) {
	mdl := &scriptedModel{response: "Day 1: arrive."}
	r, registry := newTestRunner(t, mdl, nil)
	agentID := registerTravel(t, registry)

	execID, err := r.Start(context.Background(), agentID, map[string]any{"prompt": "plan"})
	require.NoError(t, err)
	waitTerminal(t, r, execID)

	ch, err := r.Subscribe(context.Background(), execID)
	require.NoError(t, err)
	events := drain(t, ch)
	require.NotEmpty(t, events)
	assert.Equal(t, event.TypeDone, events[len(events)-1].Type)
	for i, e := range events {
		assert.Equal(t, int64(i), e.Seq)
	}
}

func TestSubscribeStoreOnlyExecutionSynthesizesReplay(t *testing.T) {
	r, _ := newTestRunner(t, &scriptedModel{}, nil)

	// A record that only the store knows, as after a process restart
	// with a persistent store. The stream is rebuilt from the record.
	exec := execution.New("exec-restored", "agent-travel", map[string]any{"prompt": "plan"})
	require.NoError(t, exec.AppendLog("info", "Building itinerary"))
	require.NoError(t, exec.AppendLog("info", "Itinerary ready"))
	exec.AddTokens(30)
	exec.CountCall("search")
	exec.SetResult(map[string]any{"itinerary": "Day 1: arrive."})
	require.NoError(t, exec.Finalize(execution.StatusCompleted, ""))
	require.NoError(t, r.store.Save(context.Background(), exec))

	ch, err := r.Subscribe(context.Background(), "exec-restored")
	require.NoError(t, err)
	events := drain(t, ch)
	require.Len(t, events, 4)

	assert.Equal(t, event.TypeLog, events[0].Type)
	assert.Equal(t, "Building itinerary", events[0].Log.Message)
	assert.Equal(t, event.TypeResult, events[2].Type)
	assert.Equal(t, "Day 1: arrive.", events[2].Result.Data["itinerary"])

	done := events[3]
	require.Equal(t, event.TypeDone, done.Type)
	assert.Equal(t, string(execution.StatusCompleted), done.Done.Status)
	assert.Equal(t, 30, done.Done.TokensUsed)
	assert.Equal(t, 1, done.Done.MCPCalls["search"])
	for i, e := range events {
		assert.Equal(t, int64(i), e.Seq)
	}
}

func TestSubscribeUnknownExecution(t *testing.T) {
	r, _ := newTestRunner(t, &scriptedModel{}, nil)
	_, err := r.Subscribe(context.Background(), "missing")
	assert.True(t, errdefs.IsNotFound(err))
}

func TestListReturnsAgentHistory(t *testing.T) {
	mdl := &scriptedModel{response: "done"}
	r, registry := newTestRunner(t, mdl, nil)
	agentID := registerTravel(t, registry)

	first, err := r.Start(context.Background(), agentID, map[string]any{"prompt": "a"})
	require.NoError(t, err)
	waitTerminal(t, r, first)

	second, err := r.Start(context.Background(), agentID, map[string]any{"prompt": "b"})
	require.NoError(t, err)
	waitTerminal(t, r, second)

	execs, err := r.List(context.Background(), agentID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	for _, exec := range execs {
		assert.Equal(t, execution.StatusCompleted, exec.Status)
	}
}

// stallingTools blocks every call until the workflow context is
// cancelled, bumping the recorder on unwind the way the MCP client does.
type stallingTools struct {
	recorder tool.Recorder
	started  chan struct{}
	once     sync.Once
}

func (b *stallingTools) Call(ctx context.Context, server, _ string, _ map[string]any) (any, error) {
	defer b.recorder.RecordCall(server)
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *stallingTools) Close() error { return nil }

func registerWebSearch(t *testing.T, registry *agent.Registry) string {
	t.Helper()
	def := &agent.Definition{
		ID:       "agent-search",
		Name:     "search",
		Workflow: agent.WebSearchConfig{MaxResults: 3},
		Model:    agent.ModelConfig{Model: "gpt-4o"},
		ToolServers: map[string]tool.ServerConfig{
			agent.ServerSearch: {Transport: "streamable", ServerURL: "http://localhost:9002"},
		},
		Active: true,
	}
	require.NoError(t, registry.Put(def))
	return def.ID
}

func TestRecordIsImmutableAfterCancellation(t *testing.T) {
	registry := agent.NewRegistry()
	provider := func(agent.ModelConfig) (model.Model, error) { return &scriptedModel{}, nil }
	stalling := &stallingTools{started: make(chan struct{})}
	factory := func(_ map[string]tool.ServerConfig, rec tool.Recorder, _ retry.Policy) tool.Client {
		stalling.recorder = rec
		return stalling
	}
	r, err := NewRunner(registry, provider,
		WithRetryPolicy(fastPolicy()),
		WithToolFactory(factory))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	agentID := registerWebSearch(t, registry)
	execID, err := r.Start(context.Background(), agentID, map[string]any{"prompt": "query"})
	require.NoError(t, err)

	ch, err := r.Subscribe(context.Background(), execID)
	require.NoError(t, err)

	select {
	case <-stalling.started:
	case <-time.After(5 * time.Second):
		t.Fatal("workflow never reached the tool call")
	}

	status, err := r.Cancel(context.Background(), execID)
	require.NoError(t, err)
	require.Equal(t, execution.StatusCancelled, status)

	events := drain(t, ch)
	done := events[len(events)-1]
	require.Equal(t, event.TypeDone, done.Type)

	// The cancelled call unwinds and bumps the recorder; the sealed
	// record must not move. Wait for the worker to finish unwinding.
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		exec, err := r.Get(context.Background(), execID)
		require.NoError(t, err)
		assert.Equal(t, done.Done.MCPCalls, exec.MCPCalls)
		assert.Equal(t, done.Done.TokensUsed, exec.TokensUsed)
	}

	exec, err := r.Get(context.Background(), execID)
	require.NoError(t, err)
	assert.Equal(t, 0, exec.MCPCalls[agent.ServerSearch])
	stored, err := r.store.Get(context.Background(), execID)
	require.NoError(t, err)
	assert.Equal(t, exec.MCPCalls, stored.MCPCalls)
}

func TestModelProviderFailureFailsExecution(t *testing.T) {
	registry := agent.NewRegistry()
	provider := func(agent.ModelConfig) (model.Model, error) {
		return nil, errdefs.Config("unknown provider")
	}
	factory := func(_ map[string]tool.ServerConfig, rec tool.Recorder, _ retry.Policy) tool.Client {
		return &recordedTools{recorder: rec}
	}
	r, err := NewRunner(registry, provider,
		WithRetryPolicy(fastPolicy()),
		WithToolFactory(factory))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	agentID := registerTravel(t, registry)
	execID, err := r.Start(context.Background(), agentID, nil)
	require.NoError(t, err)

	exec := waitTerminal(t, r, execID)
	assert.Equal(t, execution.StatusFailed, exec.Status)
	assert.Contains(t, exec.Error, "unknown provider")
}
