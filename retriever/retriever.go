//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package retriever defines the contract for fetching ranked context
// chunks for a query within a project scope. Indexing and embedding are
// external concerns; the engine only consumes this port.
package retriever

import "context"

// Query represents one retrieval request.
type Query struct {
	// ProjectID scopes the search to one knowledge project.
	ProjectID string

	// Text is the query text for semantic search.
	Text string

	// TopK is the number of chunks to retrieve. Implementations may
	// return fewer.
	TopK int

	// MinScore filters out chunks below this relevance score (0.0 to 1.0).
	MinScore float64
}

// Chunk is one retrieved context fragment with relevance information.
type Chunk struct {
	// Content is the chunk text.
	Content string

	// Metadata carries source attribution (path, title, offsets).
	Metadata map[string]any

	// Score is the relevance score (0.0 to 1.0, higher is more relevant).
	Score float64
}

// Result is an ordered list of chunks, most relevant first.
type Result struct {
	Chunks []Chunk
}

// Retriever finds the most relevant context chunks for a query.
type Retriever interface {
	Search(ctx context.Context, query *Query) (*Result, error)
}
