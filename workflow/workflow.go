//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package workflow implements the closed set of workflow variants. A
// variant is selected at compile time by the concrete type of the
// definition's configuration; there is no string-keyed dispatch.
package workflow

import (
	"context"

	"github.com/openloop/agentrun/agent"
	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/model"
	"github.com/openloop/agentrun/retriever"
	"github.com/openloop/agentrun/retry"
	"github.com/openloop/agentrun/tool"
)

// Emitter receives the progress a running workflow reports. Implemented
// by the orchestrator; workflows never talk to the event sink directly.
type Emitter interface {
	// Log emits an informational or diagnostic line.
	Log(level, message string)

	// Progress reports advancement through a named stage. Percent must
	// not decrease within one execution.
	Progress(step string, percent int)

	// AddTokens accumulates LLM token usage.
	AddTokens(n int)
}

// Env carries everything a workflow needs for one run. Built by the
// orchestrator from the definition snapshot; immutable during the run.
type Env struct {
	// ExecutionID identifies the run.
	ExecutionID string

	// Definition is the snapshot the run was started from.
	Definition *agent.Definition

	// Input is the start payload. The conventional "prompt" key carries
	// the user request; variants may read more.
	Input map[string]any

	// Model is the LLM port.
	Model model.Model

	// Retriever is the knowledge port. May be nil when the deployment
	// has no knowledge base.
	Retriever retriever.Retriever

	// Tools is the tool protocol client for the definition's servers.
	Tools tool.Client

	// Policy bounds model calls.
	Policy retry.Policy

	// Emitter receives progress.
	Emitter Emitter
}

// Workflow is one run-capable variant instance.
type Workflow interface {
	// Name identifies the variant.
	Name() agent.WorkflowType

	// Run executes the variant to completion. The returned map is the
	// final structured output; the orchestrator publishes it and seals
	// the stream, so a workflow itself never emits result or done.
	Run(ctx context.Context, env *Env) (map[string]any, error)
}

// New builds the workflow for a definition. The switch is exhaustive
// over the variant configurations; an unknown concrete type means the
// definition was constructed outside the agent package.
func New(def *agent.Definition) (Workflow, error) {
	if def == nil || def.Workflow == nil {
		return nil, errdefs.Config("definition has no workflow configuration")
	}
	switch cfg := def.Workflow.(type) {
	case agent.CodeGeneratorConfig:
		return &codeGenerator{cfg: cfg}, nil
	case agent.BranchReviewConfig:
		return &branchReviewer{cfg: cfg}, nil
	case agent.LegalFiscalConfig:
		return &legalAdvisor{cfg: cfg}, nil
	case agent.AccountingConfig:
		return &accountingAdvisor{cfg: cfg}, nil
	case agent.TravelConfig:
		return &travelAdvisor{cfg: cfg}, nil
	case agent.EmailConfig:
		return &emailAssistant{cfg: cfg}, nil
	case agent.WebSearchConfig:
		return &webSearcher{cfg: cfg}, nil
	default:
		return nil, errdefs.Config("unsupported workflow configuration %T", def.Workflow)
	}
}

// prompt extracts the user request from the start payload.
func (e *Env) prompt() string {
	if s, ok := e.Input["prompt"].(string); ok {
		return s
	}
	return ""
}

// inputString reads an optional string field from the start payload.
func (e *Env) inputString(key string) string {
	if s, ok := e.Input[key].(string); ok {
		return s
	}
	return ""
}

// hasServer reports whether the definition configures a tool server.
func (e *Env) hasServer(name string) bool {
	_, ok := e.Definition.ToolServers[name]
	return ok
}
