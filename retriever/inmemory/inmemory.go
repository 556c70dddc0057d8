//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package inmemory provides a small keyword-overlap retriever for tests
// and local runs. It is not a substitute for a vector store.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/openloop/agentrun/retriever"
)

// Retriever stores documents per project and ranks them by token overlap
// with the query text.
type Retriever struct {
	mu   sync.RWMutex
	docs map[string][]doc
}

type doc struct {
	content  string
	metadata map[string]any
	tokens   map[string]struct{}
}

// New creates an empty in-memory retriever.
func New() *Retriever {
	return &Retriever{docs: make(map[string][]doc)}
}

// Add indexes a document under the given project.
func (r *Retriever) Add(projectID, content string, metadata map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[projectID] = append(r.docs[projectID], doc{
		content:  content,
		metadata: metadata,
		tokens:   tokenize(content),
	})
}

// Search implements retriever.Retriever.
func (r *Retriever) Search(ctx context.Context, query *retriever.Query) (*retriever.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	queryTokens := tokenize(query.Text)
	var chunks []retriever.Chunk
	for _, d := range r.docs[query.ProjectID] {
		score := overlap(queryTokens, d.tokens)
		if score <= 0 || score < query.MinScore {
			continue
		}
		chunks = append(chunks, retriever.Chunk{
			Content:  d.content,
			Metadata: d.metadata,
			Score:    score,
		})
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if query.TopK > 0 && len(chunks) > query.TopK {
		chunks = chunks[:query.TopK]
	}
	return &retriever.Result{Chunks: chunks}, nil
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(field, ".,;:!?\"'()[]{}")
		if len(token) > 2 {
			tokens[token] = struct{}{}
		}
	}
	return tokens
}

// overlap scores by the fraction of query tokens present in the document.
func overlap(query, doc map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for token := range query {
		if _, ok := doc[token]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}
