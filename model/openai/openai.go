//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package openai provides an OpenAI-compatible implementation of the LLM
// port. Any gateway speaking the chat completions API works through the
// base URL option.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/log"
	"github.com/openloop/agentrun/model"
)

// Model implements model.Model backed by the OpenAI chat completions API.
type Model struct {
	name   string
	client openai.Client
}

// options holds configuration for the Model.
type options struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures the Model.
type Option func(*options)

// WithAPIKey sets the API key for the OpenAI client.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL sets the base URL for the OpenAI client, allowing
// OpenAI-compatible gateways to be used.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// New creates an OpenAI-backed model for the given model name.
func New(name string, opts ...Option) *Model {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var clientOpts []openaiopt.RequestOption
	if o.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, openaiopt.WithHTTPClient(o.httpClient))
	}

	return &Model{
		name:   name,
		client: openai.NewClient(clientOpts...),
	}
}

// Complete implements model.Model.
func (m *Model) Complete(ctx context.Context, request *model.Request) (*model.Response, error) {
	if request == nil {
		return nil, errdefs.NonTransient(errors.New("nil request"))
	}

	chatRequest := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(m.name),
		Messages: convertMessages(request.Messages),
	}
	if request.Temperature != nil {
		chatRequest.Temperature = openai.Float(*request.Temperature)
	}
	if request.MaxTokens != nil {
		chatRequest.MaxCompletionTokens = openai.Int(int64(*request.MaxTokens))
	}

	log.Debugf("openai: completing with model %s (%d messages)", m.name, len(request.Messages))

	chatCompletion, err := m.client.Chat.Completions.New(ctx, chatRequest)
	if err != nil {
		return nil, classify(err)
	}
	if len(chatCompletion.Choices) == 0 {
		return nil, errdefs.NonTransient(errors.New("completion returned no choices"))
	}

	return &model.Response{
		Text:  chatCompletion.Choices[0].Message.Content,
		Model: chatCompletion.Model,
		Usage: model.Usage{
			PromptTokens:     int(chatCompletion.Usage.PromptTokens),
			CompletionTokens: int(chatCompletion.Usage.CompletionTokens),
			TotalTokens:      int(chatCompletion.Usage.TotalTokens),
		},
	}, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name}
}

func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

// classify maps SDK errors onto the engine taxonomy. Rate limits and
// server-side failures are retryable; auth and request validation are not.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return errdefs.Transient(err)
		case apiErr.StatusCode == http.StatusUnauthorized,
			apiErr.StatusCode == http.StatusForbidden,
			apiErr.StatusCode == http.StatusBadRequest:
			return errdefs.NonTransient(err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errdefs.Transient(fmt.Errorf("completion timed out: %w", err))
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Connection-level failures reach here without a structured status.
	return errdefs.Transient(err)
}
