//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package execution defines the auditable record of one agent run and
// its monotonic state machine. Records are mutated only by the
// orchestrator; everyone else reads snapshots.
package execution

import (
	"fmt"
	"time"
)

// Status is the execution state. Transitions are one-directional over
// running < {completed, failed, cancelled}; the three terminal states are
// sinks. An execution that was never started has no record at all.
type Status string

// Execution states.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a sink.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving from s
// to next.
func (s Status) CanTransition(next Status) bool {
	return s == StatusRunning && next.Terminal()
}

// LogEntry is one immutable line of the execution log. Seq is strictly
// increasing and gapless, so a consumer can detect reordering.
type LogEntry struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// Execution is one run of an agent definition.
type Execution struct {
	// ID is the unique identifier of the execution.
	ID string `json:"id"`

	// AgentID references the definition this run was started from.
	AgentID string `json:"agent_id"`

	// Status is the current state-machine position.
	Status Status `json:"status"`

	// Input is the payload the run was started with.
	Input map[string]any `json:"input,omitempty"`

	// Logs is the append-only, ordered execution log.
	Logs []LogEntry `json:"logs"`

	// Result is the workflow's final structured output, when one was
	// produced.
	Result map[string]any `json:"result,omitempty"`

	// TokensUsed accumulates LLM token usage. Never decreases.
	TokensUsed int `json:"tokens_used"`

	// MCPCalls counts logical tool calls per server name. Values never
	// decrease.
	MCPCalls map[string]int `json:"mcp_calls"`

	// Error holds the failure detail. Set only when Status is failed.
	Error string `json:"error,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New creates a running execution for the given definition and input.
func New(id, agentID string, input map[string]any) *Execution {
	return &Execution{
		ID:        id,
		AgentID:   agentID,
		Status:    StatusRunning,
		Input:     input,
		MCPCalls:  make(map[string]int),
		StartedAt: time.Now(),
	}
}

// AppendLog appends one line to the log, assigning the next sequence
// number. Appending to a finalized execution is rejected.
func (e *Execution) AppendLog(level, message string) error {
	if e.Status.Terminal() {
		return fmt.Errorf("execution %s is %s, log is sealed", e.ID, e.Status)
	}
	e.Logs = append(e.Logs, LogEntry{
		Seq:       int64(len(e.Logs)),
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	})
	return nil
}

// AddTokens accumulates LLM token usage. Negative deltas are ignored so
// the counter stays monotonic.
func (e *Execution) AddTokens(n int) {
	if n > 0 {
		e.TokensUsed += n
	}
}

// CountCall increments the logical call counter for a tool server.
func (e *Execution) CountCall(server string) {
	if e.MCPCalls == nil {
		e.MCPCalls = make(map[string]int)
	}
	e.MCPCalls[server]++
}

// SetResult stores the workflow's final output.
func (e *Execution) SetResult(data map[string]any) {
	e.Result = data
}

// Duration returns the elapsed run time: up to finalization for terminal
// executions, up to now otherwise.
func (e *Execution) Duration() time.Duration {
	if e.CompletedAt != nil {
		return e.CompletedAt.Sub(e.StartedAt)
	}
	return time.Since(e.StartedAt)
}

// Finalize moves the execution to a terminal status, stamping
// CompletedAt exactly once. errDetail is recorded only for failures. Any
// transition the state machine forbids is rejected.
func (e *Execution) Finalize(status Status, errDetail string) error {
	if !e.Status.CanTransition(status) {
		return fmt.Errorf("invalid transition %s -> %s for execution %s", e.Status, status, e.ID)
	}
	e.Status = status
	now := time.Now()
	e.CompletedAt = &now
	if status == StatusFailed {
		e.Error = errDetail
	}
	return nil
}

// Clone creates a deep copy of the execution.
func (e *Execution) Clone() *Execution {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Logs = append([]LogEntry(nil), e.Logs...)
	if e.Input != nil {
		clone.Input = make(map[string]any, len(e.Input))
		for k, v := range e.Input {
			clone.Input[k] = v
		}
	}
	if e.Result != nil {
		clone.Result = make(map[string]any, len(e.Result))
		for k, v := range e.Result {
			clone.Result[k] = v
		}
	}
	clone.MCPCalls = make(map[string]int, len(e.MCPCalls))
	for k, v := range e.MCPCalls {
		clone.MCPCalls[k] = v
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		clone.CompletedAt = &t
	}
	return &clone
}
