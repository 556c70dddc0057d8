//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

package workflow

import (
	"context"
	"fmt"

	"github.com/openloop/agentrun/agent"
	"github.com/openloop/agentrun/model"
)

// advisory is the shared retrieve-then-answer skeleton of the advisor
// variants. Each variant supplies its persona prompt and whether its
// knowledge base is mandatory.
type advisory struct {
	projectID string
	mode      agent.AdvisorMode
	system    string
	mandatory bool
}

func (a advisory) run(ctx context.Context, env *Env) (map[string]any, error) {
	emit := env.Emitter
	emit.Progress("retrieving", 20)
	chunks, err := retrieveContext(ctx, env, a.projectID, env.prompt(), 0, a.mandatory)
	if err != nil {
		return nil, err
	}
	emit.Log("info", fmt.Sprintf("Retrieved %d context chunks", len(chunks)))

	emit.Progress("analyzing", 50)
	messages := []model.Message{model.NewSystemMessage(a.system)}
	if block := contextBlock(chunks); block != "" {
		messages = append(messages, model.NewSystemMessage(block))
	}
	messages = append(messages, model.NewUserMessage(env.prompt()))

	resp, err := generate(ctx, env, "advise", messages)
	if err != nil {
		return nil, err
	}
	emit.Log("info", "Analysis complete")

	return map[string]any{
		"mode":       string(a.mode),
		"answer":     resp.Text,
		"sources":    len(chunks),
		"model_name": resp.Model,
	}, nil
}

// legalAdvisor implements the legal_fiscal variant. Every mode grounds
// its answer in the legal knowledge project; retrieval failures abort.
type legalAdvisor struct {
	cfg agent.LegalFiscalConfig
}

// Name implements Workflow.
func (w *legalAdvisor) Name() agent.WorkflowType { return agent.TypeLegalFiscal }

// Run implements Workflow.
func (w *legalAdvisor) Run(ctx context.Context, env *Env) (map[string]any, error) {
	system := fmt.Sprintf(
		"You are a legal and fiscal advisor performing %s. Ground every statement in the provided context and cite the context entries you used. If the context does not cover the question, say so explicitly.",
		w.cfg.Mode)
	if w.cfg.Domain != "" {
		system += fmt.Sprintf(" Restrict yourself to %s law.", w.cfg.Domain)
	}
	return advisory{
		projectID: w.cfg.ProjectID,
		mode:      w.cfg.Mode,
		system:    system,
		mandatory: true,
	}.run(ctx, env)
}

// accountingAdvisor implements the accounting_finance variant.
type accountingAdvisor struct {
	cfg agent.AccountingConfig
}

// Name implements Workflow.
func (w *accountingAdvisor) Name() agent.WorkflowType { return agent.TypeAccounting }

// Run implements Workflow.
func (w *accountingAdvisor) Run(ctx context.Context, env *Env) (map[string]any, error) {
	return advisory{
		projectID: w.cfg.ProjectID,
		mode:      w.cfg.Mode,
		system: fmt.Sprintf(
			"You are a certified accountant performing %s. Base your answer on the provided context and applicable accounting standards. Show calculations where relevant.",
			w.cfg.Mode),
		mandatory: true,
	}.run(ctx, env)
}

// travelAdvisor implements the travel_expert variant. The knowledge base
// is optional: without one the advisor answers from the model alone.
type travelAdvisor struct {
	cfg agent.TravelConfig
}

// Name implements Workflow.
func (w *travelAdvisor) Name() agent.WorkflowType { return agent.TypeTravel }

// Run implements Workflow.
func (w *travelAdvisor) Run(ctx context.Context, env *Env) (map[string]any, error) {
	return advisory{
		projectID: w.cfg.ProjectID,
		mode:      w.cfg.Mode,
		system: fmt.Sprintf(
			"You are a travel expert performing %s. Give concrete, actionable recommendations with estimated costs where possible.",
			w.cfg.Mode),
		mandatory: false,
	}.run(ctx, env)
}
