//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package model provides the interface the engine uses to talk to LLM
// backends. Workflows only ever see this port; concrete gateways live in
// subpackages.
package model

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Request is a chat completion request.
type Request struct {
	// Messages is the ordered conversation to complete.
	Messages []Message `json:"messages"`

	// Temperature overrides the backend default when non-nil.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens bounds the completion length when non-nil.
	MaxTokens *int `json:"max_tokens,omitempty"`
}

// Usage represents token usage information for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed (non-streaming) model response.
type Response struct {
	// Text is the assistant completion.
	Text string `json:"text"`

	// Model is the backend model that produced the completion.
	Model string `json:"model"`

	// Usage contains token accounting. May be zero for backends that do
	// not report usage.
	Usage Usage `json:"usage"`
}

// Info contains basic information about a Model.
type Info struct {
	Name string
}

// Model is the LLM port. Complete blocks until the backend returns the
// full completion; it is one of the engine's suspension points, so it
// must honor ctx cancellation. Transport failures should be classified
// through errdefs before being returned.
type Model interface {
	// Complete performs a chat completion for the given request.
	Complete(ctx context.Context, request *Request) (*Response, error)

	// Info returns basic information about the model.
	Info() Info
}
