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
	"strings"

	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/log"
	"github.com/openloop/agentrun/model"
	"github.com/openloop/agentrun/retriever"
)

const defaultTopK = 5

// retrieveContext fetches knowledge chunks for the query. A retriever
// failure is soft by default: the variant proceeds with empty context.
// When mandatory is set the failure aborts the step instead.
func retrieveContext(ctx context.Context, env *Env, projectID, query string, topK int, mandatory bool) ([]retriever.Chunk, error) {
	if env.Retriever == nil || projectID == "" {
		if mandatory {
			return nil, errdefs.Retrieval(fmt.Errorf("no retriever for project %q", projectID))
		}
		return nil, nil
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	result, err := env.Retriever.Search(ctx, &retriever.Query{
		ProjectID: projectID,
		Text:      query,
		TopK:      topK,
	})
	if err != nil {
		if mandatory {
			return nil, errdefs.Retrieval(err)
		}
		log.Warnf("workflow: retrieval failed for project %s, proceeding without context: %v", projectID, err)
		env.Emitter.Log("warning", "Knowledge retrieval failed, continuing without context")
		return nil, nil
	}
	return result.Chunks, nil
}

// generate performs one chat completion under the call policy and books
// the token usage. The definition's model settings apply to every call.
func generate(ctx context.Context, env *Env, step string, messages []model.Message) (*model.Response, error) {
	req := &model.Request{
		Messages:    messages,
		Temperature: env.Definition.Model.Temperature,
		MaxTokens:   env.Definition.Model.MaxTokens,
	}

	var resp *model.Response
	err := env.Policy.Execute(ctx, step, func(attemptCtx context.Context) error {
		out, callErr := env.Model.Complete(attemptCtx, req)
		if callErr != nil {
			return callErr
		}
		resp = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	env.Emitter.AddTokens(resp.Usage.TotalTokens)
	return resp, nil
}

// contextBlock renders chunks into a prompt section. Empty input yields
// an empty string so the caller can drop the section entirely.
func contextBlock(chunks []retriever.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant context:\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, chunk.Content)
	}
	return b.String()
}

// generatedFile is one file produced by a code-writing variant.
type generatedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// parseGeneratedFiles decodes the model's file list. The model is asked
// for a JSON object {"files": [...], "summary": "..."}; when it answers
// in prose instead, the whole completion becomes a single file so the
// run still produces an artifact.
func parseGeneratedFiles(text, fallbackPath string) ([]generatedFile, string) {
	payload := struct {
		Files   []generatedFile `json:"files"`
		Summary string          `json:"summary"`
	}{}
	if err := json.Unmarshal([]byte(extractJSON(text)), &payload); err == nil && len(payload.Files) > 0 {
		return payload.Files, payload.Summary
	}
	return []generatedFile{{Path: fallbackPath, Content: text}}, ""
}

// extractJSON strips markdown fences and surrounding prose from a model
// completion that should contain one JSON object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if start := strings.Index(text, "```"); start >= 0 {
		rest := text[start+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			return text[start : end+1]
		}
	}
	return text
}

func countLines(files []generatedFile) int {
	total := 0
	for _, f := range files {
		total += strings.Count(f.Content, "\n") + 1
	}
	return total
}
