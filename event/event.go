//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package event provides the typed progress events an execution emits and
// the per-execution sink that streams them to consumers.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of an event.
type Type string

// The four event kinds, in the order a consumer may observe them. A
// stream carries zero or more log/progress events, at most one result,
// and exactly one terminal done event.
const (
	TypeLog      Type = "log"
	TypeProgress Type = "progress"
	TypeResult   Type = "result"
	TypeDone     Type = "done"
)

// Event is a single progress notification emitted by one execution.
// Exactly one payload field is set, matching Type.
type Event struct {
	// ID is the unique identifier of the event.
	ID string `json:"id"`

	// ExecutionID is the execution this event belongs to.
	ExecutionID string `json:"executionId"`

	// Seq is the position of the event within its execution stream.
	// Assigned by the sink, strictly increasing, gapless.
	Seq int64 `json:"seq"`

	// Type is the event kind.
	Type Type `json:"type"`

	// Timestamp is the emission time.
	Timestamp time.Time `json:"timestamp"`

	Log      *LogPayload      `json:"log,omitempty"`
	Progress *ProgressPayload `json:"progress,omitempty"`
	Result   *ResultPayload   `json:"result,omitempty"`
	Done     *DonePayload     `json:"done,omitempty"`
}

// LogPayload is an informational or diagnostic message. It never affects
// the execution state machine.
type LogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ProgressPayload reports advancement through a workflow stage. Percent
// is monotonically non-decreasing within one execution.
type ProgressPayload struct {
	Step    string `json:"step"`
	Percent int    `json:"percent"`
}

// ResultPayload carries the workflow's final structured output. Emitted
// at most once, immediately before done.
type ResultPayload struct {
	Data map[string]any `json:"data"`
}

// DonePayload terminates the stream. Synthesized by the orchestrator,
// never by a workflow.
type DonePayload struct {
	Status     string         `json:"status"`
	TokensUsed int            `json:"tokensUsed"`
	MCPCalls   map[string]int `json:"mcpCalls"`
	Error      string         `json:"error,omitempty"`
}

// NewLog creates a log event for the given execution.
func NewLog(executionID, level, message string) *Event {
	return newEvent(executionID, TypeLog, func(e *Event) {
		e.Log = &LogPayload{Level: level, Message: message}
	})
}

// NewProgress creates a progress event for the given execution.
func NewProgress(executionID, step string, percent int) *Event {
	return newEvent(executionID, TypeProgress, func(e *Event) {
		e.Progress = &ProgressPayload{Step: step, Percent: percent}
	})
}

// NewResult creates a result event for the given execution.
func NewResult(executionID string, data map[string]any) *Event {
	return newEvent(executionID, TypeResult, func(e *Event) {
		e.Result = &ResultPayload{Data: data}
	})
}

// NewDone creates the terminal event for the given execution.
func NewDone(executionID, status string, tokensUsed int, mcpCalls map[string]int, errDetail string) *Event {
	return newEvent(executionID, TypeDone, func(e *Event) {
		calls := make(map[string]int, len(mcpCalls))
		for k, v := range mcpCalls {
			calls[k] = v
		}
		e.Done = &DonePayload{
			Status:     status,
			TokensUsed: tokensUsed,
			MCPCalls:   calls,
			Error:      errDetail,
		}
	})
}

// Payload returns the kind-specific payload matching Type.
func (e *Event) Payload() any {
	switch e.Type {
	case TypeLog:
		return e.Log
	case TypeProgress:
		return e.Progress
	case TypeResult:
		return e.Result
	case TypeDone:
		return e.Done
	}
	return nil
}

func newEvent(executionID string, typ Type, fill func(*Event)) *Event {
	e := &Event{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		Type:        typ,
		Timestamp:   time.Now(),
	}
	fill(e)
	return e
}

// Clone creates a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Log != nil {
		l := *e.Log
		clone.Log = &l
	}
	if e.Progress != nil {
		p := *e.Progress
		clone.Progress = &p
	}
	if e.Result != nil {
		r := ResultPayload{Data: make(map[string]any, len(e.Result.Data))}
		for k, v := range e.Result.Data {
			r.Data[k] = v
		}
		clone.Result = &r
	}
	if e.Done != nil {
		d := *e.Done
		d.MCPCalls = make(map[string]int, len(e.Done.MCPCalls))
		for k, v := range e.Done.MCPCalls {
			d.MCPCalls[k] = v
		}
		clone.Done = &d
	}
	return &clone
}
