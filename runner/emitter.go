//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

package runner

import (
	"context"

	"github.com/openloop/agentrun/event"
	"github.com/openloop/agentrun/execution"
	"github.com/openloop/agentrun/log"
)

// runEmitter connects one workflow to its execution record and event
// sink. It implements workflow.Emitter and tool.Recorder, so the log,
// the stream and the accounting counters always agree.
type runEmitter struct {
	runner *Runner
	run    *activeRun
}

// Log implements workflow.Emitter.
func (e *runEmitter) Log(level, message string) {
	e.run.mu.Lock()
	if err := e.run.exec.AppendLog(level, message); err != nil {
		e.run.mu.Unlock()
		return
	}
	e.run.sink.Publish(event.NewLog(e.run.exec.ID, level, message))
	snapshot := e.run.exec.Clone()
	e.run.mu.Unlock()
	e.save(snapshot)
}

// Progress implements workflow.Emitter. Regressing percentages are
// clamped so the stream stays monotonic even when a variant misreports.
func (e *runEmitter) Progress(step string, percent int) {
	e.run.mu.Lock()
	if e.run.exec.Status.Terminal() {
		e.run.mu.Unlock()
		return
	}
	if percent < e.run.lastPercent {
		percent = e.run.lastPercent
	}
	e.run.lastPercent = percent
	e.run.sink.Publish(event.NewProgress(e.run.exec.ID, step, percent))
	e.run.mu.Unlock()
}

// AddTokens implements workflow.Emitter. Usage reported by a workflow
// unwinding after finalization is dropped: the record is sealed and the
// counters already went out with done.
func (e *runEmitter) AddTokens(n int) {
	e.run.mu.Lock()
	if e.run.exec.Status.Terminal() {
		e.run.mu.Unlock()
		return
	}
	e.run.exec.AddTokens(n)
	snapshot := e.run.exec.Clone()
	e.run.mu.Unlock()
	e.save(snapshot)
}

// RecordCall implements tool.Recorder. Like AddTokens, accounting from
// calls that unwind after finalization is dropped.
func (e *runEmitter) RecordCall(server string) {
	e.run.mu.Lock()
	if e.run.exec.Status.Terminal() {
		e.run.mu.Unlock()
		return
	}
	e.run.exec.CountCall(server)
	snapshot := e.run.exec.Clone()
	e.run.mu.Unlock()
	e.save(snapshot)
}

// save writes the record through to the store. Terminal snapshots are
// skipped; finish owns the final write.
func (e *runEmitter) save(snapshot *execution.Execution) {
	if snapshot.Status.Terminal() {
		return
	}
	if err := e.runner.store.Save(context.Background(), snapshot); err != nil {
		log.Warnf("runner: save execution %s: %v", snapshot.ID, err)
	}
}
