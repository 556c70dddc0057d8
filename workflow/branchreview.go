//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openloop/agentrun/agent"
	"github.com/openloop/agentrun/model"
)

const defaultReviewMaxFiles = 20

const branchReviewSystemPrompt = `You are a meticulous code reviewer. For the diff you are given,
answer with a single JSON object of the form
{"findings": [{"path": "...", "severity": "info|warning|error",
"comment": "..."}], "summary": "..."} and nothing else.`

// branchReviewer implements the branch_code_review variant: fetch the
// branch diff, review it file by file and publish the findings.
type branchReviewer struct {
	cfg agent.BranchReviewConfig
}

// Name implements Workflow.
func (w *branchReviewer) Name() agent.WorkflowType { return agent.TypeBranchReview }

// Run implements Workflow.
func (w *branchReviewer) Run(ctx context.Context, env *Env) (map[string]any, error) {
	emit := env.Emitter
	branch := env.inputString("branch")
	if branch == "" {
		branch = env.prompt()
	}
	base := w.cfg.BaseBranch
	if base == "" {
		base = "main"
	}

	emit.Log("info", fmt.Sprintf("Comparing %s against %s in %s", branch, base, w.cfg.Repo))
	emit.Progress("fetching_diff", 15)
	diff, err := env.Tools.Call(ctx, agent.ServerGitHub, "compare_branches", map[string]any{
		"repo": w.cfg.Repo,
		"base": base,
		"head": branch,
	})
	if err != nil {
		return nil, err
	}

	maxFiles := w.cfg.MaxFiles
	if maxFiles <= 0 {
		maxFiles = defaultReviewMaxFiles
	}

	emit.Progress("reviewing", 40)
	resp, err := generate(ctx, env, "review_diff", []model.Message{
		model.NewSystemMessage(branchReviewSystemPrompt),
		model.NewUserMessage(fmt.Sprintf("Review at most %d files.\n\nDiff:\n%s",
			maxFiles, stringify(diff))),
	})
	if err != nil {
		return nil, err
	}

	var review struct {
		Findings []map[string]any `json:"findings"`
		Summary  string           `json:"summary"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &review); err != nil {
		review.Summary = resp.Text
	}
	emit.Log("info", fmt.Sprintf("Review produced %d findings", len(review.Findings)))

	result := map[string]any{
		"branch":   branch,
		"base":     base,
		"findings": review.Findings,
		"summary":  review.Summary,
	}

	if w.cfg.AutoCreatePR {
		emit.Progress("publishing", 90)
		pr, err := env.Tools.Call(ctx, agent.ServerGitHub, "create_pull_request", map[string]any{
			"repo":  w.cfg.Repo,
			"head":  branch,
			"base":  base,
			"title": fmt.Sprintf("Review: %s", branch),
			"body":  review.Summary,
		})
		if err != nil {
			return nil, err
		}
		emit.Log("info", "Review pull request created")
		result["pullRequest"] = pr
	}

	return result, nil
}

// stringify renders a tool response for prompt embedding.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
