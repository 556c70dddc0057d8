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

const codeGenSystemPrompt = `You are an expert software engineer. Generate the code changes the
user asks for. Answer with a single JSON object of the form
{"files": [{"path": "...", "content": "..."}], "summary": "..."}
and nothing else. Every file content must be complete, not a diff.`

// codeGenerator implements the code_generator variant: retrieve
// repository context, generate files with the model, apply them through
// the github tool server and optionally test, lint and publish.
type codeGenerator struct {
	cfg agent.CodeGeneratorConfig
}

// Name implements Workflow.
func (w *codeGenerator) Name() agent.WorkflowType { return agent.TypeCodeGenerator }

// Run implements Workflow.
func (w *codeGenerator) Run(ctx context.Context, env *Env) (map[string]any, error) {
	emit := env.Emitter
	emit.Log("info", fmt.Sprintf("Fetching repository %s", w.cfg.Repo))
	if _, err := env.Tools.Call(ctx, agent.ServerGitHub, "get_repository", map[string]any{
		"repo": w.cfg.Repo,
	}); err != nil {
		return nil, err
	}

	emit.Progress("retrieving", 10)
	chunks, err := retrieveContext(ctx, env, w.cfg.ProjectID, env.prompt(), w.cfg.MaxContextChunks, false)
	if err != nil {
		return nil, err
	}
	emit.Log("info", fmt.Sprintf("Retrieved %d context chunks", len(chunks)))

	emit.Progress("generating_code", 30)
	messages := []model.Message{
		model.NewSystemMessage(codeGenSystemPrompt),
	}
	if block := contextBlock(chunks); block != "" {
		messages = append(messages, model.NewSystemMessage(block))
	}
	messages = append(messages, model.NewUserMessage(env.prompt()))

	resp, err := generate(ctx, env, "generate_code", messages)
	if err != nil {
		return nil, err
	}
	files, summary := parseGeneratedFiles(resp.Text, "GENERATED.md")
	emit.Log("info", fmt.Sprintf("Generated %d lines across %d files", countLines(files), len(files)))

	emit.Progress("applying_changes", 60)
	branch := w.cfg.TargetBranch
	if branch != "" {
		emit.Log("info", fmt.Sprintf("Creating branch %s", branch))
		if _, err := env.Tools.Call(ctx, agent.ServerGitHub, "create_branch", map[string]any{
			"repo":        w.cfg.Repo,
			"branch":      branch,
			"from_branch": w.cfg.BaseBranch,
		}); err != nil {
			return nil, err
		}
	}

	created := make([]string, 0, len(files))
	for _, file := range files {
		emit.Log("info", fmt.Sprintf("Writing %s", file.Path))
		if _, err := env.Tools.Call(ctx, agent.ServerGitHub, "create_or_update_file", map[string]any{
			"repo":    w.cfg.Repo,
			"branch":  branch,
			"path":    file.Path,
			"content": file.Content,
			"message": fmt.Sprintf("Add %s", file.Path),
		}); err != nil {
			return nil, err
		}
		created = append(created, file.Path)
	}

	result := map[string]any{
		"filesCreated": created,
		"linesWritten": countLines(files),
	}
	if summary != "" {
		result["summary"] = summary
	}
	if branch != "" {
		result["branch"] = branch
	}

	if w.cfg.AutoTest && env.hasServer(agent.ServerTestRunner) {
		emit.Progress("testing", 75)
		out, err := env.Tools.Call(ctx, agent.ServerTestRunner, "run_tests", map[string]any{
			"repo":   w.cfg.Repo,
			"branch": branch,
		})
		if err != nil {
			return nil, err
		}
		emit.Log("info", "Tests completed")
		result["testOutput"] = out
	}

	if w.cfg.AutoLint && env.hasServer(agent.ServerLinter) {
		emit.Progress("linting", 85)
		out, err := env.Tools.Call(ctx, agent.ServerLinter, "run_lint", map[string]any{
			"repo":   w.cfg.Repo,
			"branch": branch,
		})
		if err != nil {
			return nil, err
		}
		emit.Log("info", "Lint completed")
		result["lintOutput"] = out
	}

	if w.cfg.AutoCreatePR && branch != "" {
		emit.Progress("publishing", 95)
		pr, err := env.Tools.Call(ctx, agent.ServerGitHub, "create_pull_request", map[string]any{
			"repo":   w.cfg.Repo,
			"head":   branch,
			"base":   w.cfg.BaseBranch,
			"title":  fmt.Sprintf("Generated changes: %s", truncate(env.prompt(), 72)),
			"body":   summary,
			"labels": []string{"agent-generated"},
		})
		if err != nil {
			return nil, err
		}
		emit.Log("info", "Pull request created")
		result["pullRequest"] = pr
	}

	return result, nil
}

// truncate shortens s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
