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

const defaultMaxResults = 5

// webSearcher implements the websearch variant: query the search tool
// server, optionally pull page content for the hits and synthesize an
// answer with the model.
type webSearcher struct {
	cfg agent.WebSearchConfig
}

// Name implements Workflow.
func (w *webSearcher) Name() agent.WorkflowType { return agent.TypeWebSearch }

// Run implements Workflow.
func (w *webSearcher) Run(ctx context.Context, env *Env) (map[string]any, error) {
	emit := env.Emitter
	maxResults := w.cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	emit.Log("info", fmt.Sprintf("Searching the web for %q", env.prompt()))
	emit.Progress("searching", 20)
	results, err := env.Tools.Call(ctx, agent.ServerSearch, "search", map[string]any{
		"query":       env.prompt(),
		"max_results": maxResults,
	})
	if err != nil {
		return nil, err
	}

	if w.cfg.ExtractContent {
		emit.Progress("extracting", 50)
		extracted, err := env.Tools.Call(ctx, agent.ServerSearch, "extract_content", map[string]any{
			"results": results,
		})
		if err != nil {
			return nil, err
		}
		results = extracted
		emit.Log("info", "Extracted page content for search results")
	}

	emit.Progress("synthesizing", 75)
	resp, err := generate(ctx, env, "synthesize", []model.Message{
		model.NewSystemMessage("You are a research assistant. Answer the question from the search results below. Cite the sources you used by URL. If the results do not answer the question, say so."),
		model.NewUserMessage(fmt.Sprintf("Question: %s\n\nSearch results:\n%s",
			env.prompt(), stringify(results))),
	})
	if err != nil {
		return nil, err
	}
	emit.Log("info", "Synthesis complete")

	return map[string]any{
		"answer":  resp.Text,
		"results": results,
	}, nil
}
