//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package mcp implements the tool protocol client over the Model Context
// Protocol. Each configured server gets a lazily-initialized session;
// methods map to MCP tool names.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/log"
	"github.com/openloop/agentrun/retry"
	"github.com/openloop/agentrun/tool"
)

// Transport names accepted in tool.ServerConfig.
const (
	transportStdio      = "stdio"
	transportSSE        = "sse"
	transportStreamable = "streamable"
)

var defaultClientInfo = mcp.Implementation{
	Name:    "agentrun",
	Version: "1.0.0",
}

// connectionErrorPatterns identify transport-level failures worth a
// retry. Anything else reported by CallTool is surfaced as-is.
var connectionErrorPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"EOF",
	"transport is closed",
	"session expired",
	"session not found",
}

// Client implements tool.Client over MCP sessions.
type Client struct {
	mu       sync.Mutex
	servers  map[string]*serverConn
	recorder tool.Recorder
	policy   retry.Policy
	info     mcp.Implementation
	closed   bool
}

// Option configures the Client.
type Option func(*Client)

// WithRecorder sets the accounting recorder for logical calls.
func WithRecorder(recorder tool.Recorder) Option {
	return func(c *Client) { c.recorder = recorder }
}

// WithRetryPolicy overrides the default call policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) { c.policy = policy }
}

// WithClientInfo overrides the MCP client identity.
func WithClientInfo(info mcp.Implementation) Option {
	return func(c *Client) { c.info = info }
}

// NewClient creates a client for the given server map. Connections are
// established lazily on first call.
func NewClient(servers map[string]tool.ServerConfig, opts ...Option) *Client {
	c := &Client{
		servers: make(map[string]*serverConn, len(servers)),
		policy:  retry.DefaultPolicy(),
		info:    defaultClientInfo,
	}
	for _, opt := range opts {
		opt(c)
	}
	for name, cfg := range servers {
		c.servers[name] = &serverConn{name: name, cfg: cfg, info: c.info}
	}
	return c
}

// Call implements tool.Client. The recorder is bumped exactly once per
// logical call, after any retries, regardless of outcome; an unknown
// server fails before any accounting happens.
func (c *Client) Call(ctx context.Context, server, method string, params map[string]any) (any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errdefs.NonTransient(errors.New("tool client is closed"))
	}
	conn, ok := c.servers[server]
	c.mu.Unlock()
	if !ok {
		return nil, errdefs.Config("tool server %q is not configured", server)
	}

	if c.recorder != nil {
		defer c.recorder.RecordCall(server)
	}

	policy := c.policy
	if conn.cfg.Timeout > 0 {
		policy.AttemptTimeout = conn.cfg.Timeout
	}

	var result any
	err := policy.Execute(ctx, server+"."+method, func(attemptCtx context.Context) error {
		out, callErr := conn.call(attemptCtx, method, params)
		if callErr != nil {
			return callErr
		}
		result = out
		return nil
	})
	if err != nil {
		log.Warnf("mcp: call %s.%s failed: %v", server, method, err)
		return nil, err
	}
	log.Debugf("mcp: call %s.%s completed", server, method)
	return result, nil
}

// Close implements tool.Client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	for name, conn := range c.servers {
		if err := conn.close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close server %s: %w", name, err)
		}
	}
	return firstErr
}

// connector is the slice of mcp.Connector a session actually uses.
type connector interface {
	Initialize(ctx context.Context, req *mcp.InitializeRequest) (*mcp.InitializeResult, error)
	CallTool(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// serverConn owns one MCP session.
type serverConn struct {
	name string
	cfg  tool.ServerConfig
	info mcp.Implementation

	mu          sync.Mutex
	client      connector
	initialized bool
}

// call runs one attempt against the server.
func (s *serverConn) call(ctx context.Context, method string, params map[string]any) (any, error) {
	if err := s.ensureSession(ctx); err != nil {
		return nil, err
	}

	req := &mcp.CallToolRequest{}
	req.Params.Name = method
	req.Params.Arguments = params

	resp, err := s.client.CallTool(ctx, req)
	if err != nil {
		return nil, classifyCallError(method, err)
	}
	if resp.IsError {
		// The server executed the method and reported a business error;
		// retrying cannot change the outcome.
		return nil, errdefs.NonTransient(fmt.Errorf("%s: %s", method, contentText(resp.Content)))
	}
	return decodeContent(resp.Content), nil
}

// ensureSession lazily connects and initializes the MCP session.
func (s *serverConn) ensureSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	if s.client == nil {
		client, err := s.createClient()
		if err != nil {
			return err
		}
		s.client = client
	}

	if _, err := s.client.Initialize(ctx, &mcp.InitializeRequest{}); err != nil {
		return errdefs.Transient(fmt.Errorf("initialize %s: %w", s.name, err))
	}
	log.Debugf("mcp: session initialized for server %s", s.name)
	s.initialized = true
	return nil
}

// createClient builds the transport-appropriate MCP client.
func (s *serverConn) createClient() (connector, error) {
	switch s.cfg.Transport {
	case transportStdio:
		config := mcp.StdioTransportConfig{
			ServerParams: mcp.StdioServerParameters{
				Command: s.cfg.Command,
				Args:    s.cfg.Args,
			},
			Timeout: s.cfg.Timeout,
		}
		return mcp.NewStdioClient(config, s.info)
	case transportSSE:
		return mcp.NewSSEClient(s.cfg.ServerURL, s.info, s.httpOptions()...)
	case transportStreamable, "streamable_http", "":
		return mcp.NewClient(s.cfg.ServerURL, s.info, s.httpOptions()...)
	default:
		return nil, errdefs.Config("server %s: unsupported transport %q", s.name, s.cfg.Transport)
	}
}

func (s *serverConn) httpOptions() []mcp.ClientOption {
	if len(s.cfg.Headers) == 0 {
		return nil
	}
	headers := http.Header{}
	for k, v := range s.cfg.Headers {
		headers.Set(k, v)
	}
	return []mcp.ClientOption{mcp.WithHTTPHeaders(headers)}
}

func (s *serverConn) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.initialized = false
	return err
}

// classifyCallError maps transport errors onto the taxonomy. Deadline
// expiry and connection failures are transient; the rest surfaces
// unchanged so the caller sees the server's own message.
func classifyCallError(method string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errdefs.Transient(fmt.Errorf("%s: %w", method, err))
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	msg := err.Error()
	for _, pattern := range connectionErrorPatterns {
		if strings.Contains(msg, pattern) {
			return errdefs.Transient(fmt.Errorf("%s: %w", method, err))
		}
	}
	return errdefs.NonTransient(fmt.Errorf("%s: %w", method, err))
}

// decodeContent flattens MCP content into a JSON-compatible value. A
// single text block becomes a string; anything else keeps its structure.
func decodeContent(contents []mcp.Content) any {
	if len(contents) == 1 {
		if text, ok := contents[0].(mcp.TextContent); ok {
			return text.Text
		}
	}
	out := make([]any, 0, len(contents))
	for _, content := range contents {
		if text, ok := content.(mcp.TextContent); ok {
			out = append(out, text.Text)
			continue
		}
		out = append(out, content)
	}
	return out
}

func contentText(contents []mcp.Content) string {
	var parts []string
	for _, content := range contents {
		if text, ok := content.(mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	if len(parts) == 0 {
		return "tool reported an error"
	}
	return strings.Join(parts, "; ")
}
