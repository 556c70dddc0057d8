//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package tool defines the uniform contract for calling named external
// tool servers. Every integration (source control, linting, test
// execution, email, search) is reached through Client; the engine never
// speaks a tool server's wire protocol directly.
package tool

import (
	"context"
	"time"
)

// Client invokes a method on a named tool server.
//
// A call is logical: any internal retries count as one call toward the
// execution's accounting. Resolving an unknown server name fails with a
// configuration error before anything is counted.
type Client interface {
	// Call invokes method on the named server with JSON-compatible
	// params and returns the server's result.
	Call(ctx context.Context, server, method string, params map[string]any) (any, error)

	// Close releases all server connections.
	Close() error
}

// Recorder receives accounting callbacks from a Client. Implementations
// must be safe for concurrent use.
type Recorder interface {
	// RecordCall is invoked exactly once per logical call to server,
	// whether it succeeded or failed.
	RecordCall(server string)
}

// ServerConfig describes how to reach one tool server. It lives in the
// agent definition's tool-server map, keyed by server name.
type ServerConfig struct {
	// Transport is one of "stdio", "sse" or "streamable".
	Transport string `json:"transport" yaml:"transport"`

	// ServerURL is the endpoint for sse/streamable transports.
	ServerURL string `json:"server_url,omitempty" yaml:"server_url,omitempty"`

	// Headers carries credentials for HTTP transports.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Command and Args launch a stdio transport server.
	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Timeout bounds each call attempt to this server. Zero uses the
	// engine-wide default.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}
