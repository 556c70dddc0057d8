//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package runner orchestrates agent executions: it owns the execution
// records, enforces the one-running-execution-per-agent rule, drives
// workflows on a worker pool and seals every event stream with a
// terminal done event.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	semtrace "go.opentelemetry.io/otel/trace"

	"github.com/openloop/agentrun/agent"
	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/event"
	"github.com/openloop/agentrun/execution"
	"github.com/openloop/agentrun/execution/inmemory"
	"github.com/openloop/agentrun/log"
	"github.com/openloop/agentrun/model"
	"github.com/openloop/agentrun/retriever"
	"github.com/openloop/agentrun/retry"
	"github.com/openloop/agentrun/telemetry/trace"
	"github.com/openloop/agentrun/tool"
	mcpclient "github.com/openloop/agentrun/tool/mcp"
	"github.com/openloop/agentrun/workflow"
)

const defaultPoolSize = 64

// ModelProvider builds the LLM port for a definition's model settings.
type ModelProvider func(cfg agent.ModelConfig) (model.Model, error)

// ToolFactory builds the tool protocol client for a definition's server
// map. The recorder must be bumped exactly once per logical call.
type ToolFactory func(servers map[string]tool.ServerConfig, recorder tool.Recorder, policy retry.Policy) tool.Client

// Runner drives agent executions.
type Runner struct {
	registry  *agent.Registry
	store     execution.Store
	models    ModelProvider
	retriever retriever.Retriever
	policy    retry.Policy
	tools     ToolFactory
	pool      *ants.Pool

	mu      sync.Mutex
	running map[string]string     // agent ID -> in-flight execution ID
	runs    map[string]*activeRun // execution ID -> run state
}

// activeRun is the mutable state of one execution. The sink outlives the
// run so late subscribers still get the full replay.
type activeRun struct {
	mu     sync.Mutex
	exec   *execution.Execution
	sink   *event.Sink
	cancel context.CancelFunc

	lastPercent int
}

// Option configures the Runner.
type Option func(*Runner)

// WithStore sets the execution store. Defaults to the in-memory store.
func WithStore(store execution.Store) Option {
	return func(r *Runner) { r.store = store }
}

// WithRetriever sets the knowledge port. Without one, workflows run with
// empty retrieval context.
func WithRetriever(ret retriever.Retriever) Option {
	return func(r *Runner) { r.retriever = ret }
}

// WithRetryPolicy overrides the default call policy for model and tool
// calls.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(r *Runner) { r.policy = policy }
}

// WithToolFactory overrides how tool clients are built, mainly for
// tests.
func WithToolFactory(factory ToolFactory) Option {
	return func(r *Runner) { r.tools = factory }
}

// WithPoolSize bounds concurrent executions across all agents.
func WithPoolSize(size int) Option {
	return func(r *Runner) {
		if size > 0 {
			pool, err := ants.NewPool(size)
			if err == nil {
				r.pool.Release()
				r.pool = pool
			}
		}
	}
}

// NewRunner creates a runner over the given registry and model provider.
func NewRunner(registry *agent.Registry, models ModelProvider, opts ...Option) (*Runner, error) {
	if registry == nil {
		return nil, errdefs.Config("runner requires a registry")
	}
	if models == nil {
		return nil, errdefs.Config("runner requires a model provider")
	}
	pool, err := ants.NewPool(defaultPoolSize)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	r := &Runner{
		registry: registry,
		store:    inmemory.NewStore(),
		models:   models,
		policy:   retry.DefaultPolicy(),
		pool:     pool,
		running:  make(map[string]string),
		runs:     make(map[string]*activeRun),
	}
	r.tools = defaultToolFactory
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func defaultToolFactory(servers map[string]tool.ServerConfig, recorder tool.Recorder, policy retry.Policy) tool.Client {
	return mcpclient.NewClient(servers,
		mcpclient.WithRecorder(recorder),
		mcpclient.WithRetryPolicy(policy))
}

// Start begins an execution of the given agent with the given input. It
// returns the new execution ID once the record exists and the workflow
// has been handed to the pool. Validation failures and the concurrency
// rule reject the start before any record is created.
func (r *Runner) Start(ctx context.Context, agentID string, input map[string]any) (string, error) {
	def, err := r.registry.Get(agentID)
	if err != nil {
		return "", err
	}
	if !def.Active {
		return "", errdefs.Config("agent %s is not active", agentID)
	}
	wf, err := workflow.New(def)
	if err != nil {
		return "", err
	}

	execID := uuid.New().String()
	exec := execution.New(execID, agentID, input)

	r.mu.Lock()
	if inflight, ok := r.running[agentID]; ok {
		r.mu.Unlock()
		return "", errdefs.Concurrent(agentID, inflight)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	run := &activeRun{exec: exec, sink: event.NewSink(), cancel: cancel}
	r.running[agentID] = execID
	r.runs[execID] = run
	r.mu.Unlock()

	if err := r.store.Save(ctx, exec); err != nil {
		cancel()
		r.release(agentID, execID, run, execution.StatusFailed, err.Error())
		return "", err
	}

	if err := r.pool.Submit(func() { r.run(runCtx, run, def, wf) }); err != nil {
		cancel()
		r.release(agentID, execID, run, execution.StatusFailed,
			fmt.Sprintf("submit execution: %v", err))
		return "", fmt.Errorf("submit execution %s: %w", execID, err)
	}

	log.Infof("runner: started execution %s for agent %s (%s)", execID, agentID, def.Type())
	return execID, nil
}

// run drives one workflow to completion on a pool worker.
func (r *Runner) run(ctx context.Context, run *activeRun, def *agent.Definition, wf workflow.Workflow) {
	execID := run.exec.ID

	ctx, span := trace.Tracer.Start(ctx, "execution.run",
		semtrace.WithAttributes(
			attribute.String("agentrun.execution.id", execID),
			attribute.String("agentrun.agent.id", def.ID),
			attribute.String("agentrun.workflow", string(def.Type())),
		))
	defer span.End()

	emitter := &runEmitter{runner: r, run: run}
	mdl, err := r.models(def.Model)
	if err != nil {
		r.finish(run, nil, err)
		return
	}

	tools := r.tools(def.ToolServers, emitter, r.policy)
	defer func() {
		if closeErr := tools.Close(); closeErr != nil {
			log.Warnf("runner: close tool client for %s: %v", execID, closeErr)
		}
	}()

	env := &workflow.Env{
		ExecutionID: execID,
		Definition:  def,
		Input:       run.exec.Input,
		Model:       mdl,
		Retriever:   r.retriever,
		Tools:       tools,
		Policy:      r.policy,
		Emitter:     emitter,
	}

	result, err := wf.Run(ctx, env)
	r.finish(run, result, err)
}

// finish moves the execution to its terminal state, publishes the
// result and done events and seals the sink. Safe to race with Cancel:
// whoever finalizes first wins, the loser is a no-op.
func (r *Runner) finish(run *activeRun, result map[string]any, runErr error) {
	run.mu.Lock()
	if run.exec.Status.Terminal() {
		run.mu.Unlock()
		return
	}

	status := execution.StatusCompleted
	detail := ""
	switch {
	case runErr == nil:
		if result != nil {
			run.exec.SetResult(result)
			run.sink.Publish(event.NewResult(run.exec.ID, result))
		}
	case errors.Is(runErr, context.Canceled):
		status = execution.StatusCancelled
	default:
		status = execution.StatusFailed
		detail = runErr.Error()
	}

	if err := run.exec.Finalize(status, detail); err != nil {
		run.mu.Unlock()
		log.Errorf("runner: finalize execution %s: %v", run.exec.ID, err)
		return
	}
	run.sink.Publish(event.NewDone(run.exec.ID, string(status),
		run.exec.TokensUsed, run.exec.MCPCalls, detail))
	run.sink.Close()
	snapshot := run.exec.Clone()
	run.mu.Unlock()

	if err := r.store.Save(context.Background(), snapshot); err != nil {
		log.Errorf("runner: save execution %s: %v", snapshot.ID, err)
	}

	r.mu.Lock()
	if r.running[snapshot.AgentID] == snapshot.ID {
		delete(r.running, snapshot.AgentID)
	}
	r.mu.Unlock()

	log.Infof("runner: execution %s finished with status %s (tokens=%d)",
		snapshot.ID, status, snapshot.TokensUsed)
}

// release cleans up after a start that never reached the pool.
func (r *Runner) release(agentID, execID string, run *activeRun, status execution.Status, detail string) {
	run.mu.Lock()
	if !run.exec.Status.Terminal() {
		_ = run.exec.Finalize(status, detail)
		run.sink.Publish(event.NewDone(execID, string(status),
			run.exec.TokensUsed, run.exec.MCPCalls, detail))
		run.sink.Close()
	}
	snapshot := run.exec.Clone()
	run.mu.Unlock()

	_ = r.store.Save(context.Background(), snapshot)

	r.mu.Lock()
	if r.running[agentID] == execID {
		delete(r.running, agentID)
	}
	r.mu.Unlock()
}

// Cancel stops a running execution. The record moves to cancelled
// immediately; the workflow sees its context cancelled and unwinds in
// the background, its late events discarded by the sealed sink.
// Cancelling a terminal execution is a no-op that reports the current
// status.
func (r *Runner) Cancel(ctx context.Context, executionID string) (execution.Status, error) {
	r.mu.Lock()
	run, ok := r.runs[executionID]
	r.mu.Unlock()
	if !ok {
		exec, err := r.store.Get(ctx, executionID)
		if err != nil {
			return "", err
		}
		return exec.Status, nil
	}

	run.mu.Lock()
	if run.exec.Status.Terminal() {
		status := run.exec.Status
		run.mu.Unlock()
		return status, nil
	}
	_ = run.exec.Finalize(execution.StatusCancelled, "")
	run.sink.Publish(event.NewDone(executionID, string(execution.StatusCancelled),
		run.exec.TokensUsed, run.exec.MCPCalls, ""))
	run.sink.Close()
	snapshot := run.exec.Clone()
	run.mu.Unlock()

	run.cancel()

	if err := r.store.Save(ctx, snapshot); err != nil {
		log.Errorf("runner: save cancelled execution %s: %v", executionID, err)
	}

	r.mu.Lock()
	if r.running[snapshot.AgentID] == executionID {
		delete(r.running, snapshot.AgentID)
	}
	r.mu.Unlock()

	log.Infof("runner: execution %s cancelled", executionID)
	return execution.StatusCancelled, nil
}

// Get returns a snapshot of the execution record.
func (r *Runner) Get(ctx context.Context, executionID string) (*execution.Execution, error) {
	r.mu.Lock()
	run, ok := r.runs[executionID]
	r.mu.Unlock()
	if ok {
		run.mu.Lock()
		defer run.mu.Unlock()
		return run.exec.Clone(), nil
	}
	return r.store.Get(ctx, executionID)
}

// List returns all executions of one agent, most recent first.
func (r *Runner) List(ctx context.Context, agentID string) ([]*execution.Execution, error) {
	return r.store.ListByAgent(ctx, agentID)
}

// Subscribe attaches to an execution's event stream. The channel first
// replays every event from the beginning, then delivers live events in
// order, and closes after done. Subscribing to a finished execution
// replays the retained stream; executions known only to the store get a
// replay reconstructed from the record.
func (r *Runner) Subscribe(ctx context.Context, executionID string) (<-chan *event.Event, error) {
	r.mu.Lock()
	run, ok := r.runs[executionID]
	r.mu.Unlock()
	if ok {
		return run.sink.Subscribe(ctx), nil
	}
	exec, err := r.store.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}
	return replaySink(exec).Subscribe(ctx), nil
}

// replaySink rebuilds a sealed stream from a stored record. Only the
// record survives a restart, so the replay carries its log entries, the
// result if any and the terminal done event; progress events are not
// retained.
func replaySink(exec *execution.Execution) *event.Sink {
	sink := event.NewSink()
	for _, entry := range exec.Logs {
		sink.Publish(event.NewLog(exec.ID, entry.Level, entry.Message))
	}
	if exec.Result != nil {
		sink.Publish(event.NewResult(exec.ID, exec.Result))
	}
	sink.Publish(event.NewDone(exec.ID, string(exec.Status),
		exec.TokensUsed, exec.MCPCalls, exec.Error))
	sink.Close()
	return sink
}

// Close shuts the runner down: pending executions are cancelled and the
// pool and store released.
func (r *Runner) Close() error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.running))
	for _, id := range r.running {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		if _, err := r.Cancel(context.Background(), id); err != nil {
			log.Warnf("runner: cancel %s on close: %v", id, err)
		}
	}
	r.pool.Release()
	return r.store.Close()
}
