//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package agent defines agent definitions: the immutable-per-execution
// snapshot of a workflow variant, its typed configuration, the model
// settings and the tool-server connection map.
package agent

import (
	"time"

	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/tool"
)

// WorkflowType names one of the closed set of workflow variants.
type WorkflowType string

// The supported workflow variants.
const (
	TypeCodeGenerator WorkflowType = "code_generator"
	TypeBranchReview  WorkflowType = "branch_code_review"
	TypeLegalFiscal   WorkflowType = "legal_fiscal"
	TypeAccounting    WorkflowType = "accounting_finance"
	TypeTravel        WorkflowType = "travel_expert"
	TypeEmail         WorkflowType = "email_expert"
	TypeWebSearch     WorkflowType = "websearch"
)

// VariantConfig is the typed configuration of one workflow variant. The
// concrete type determines the variant, so a definition cannot name a
// workflow its configuration does not match.
type VariantConfig interface {
	// Type identifies the variant this configuration belongs to.
	Type() WorkflowType

	// Validate checks required fields. Called at definition
	// construction time, never during execution.
	Validate() error

	// RequiredServers lists tool-server names the variant cannot run
	// without.
	RequiredServers() []string
}

// ModelConfig selects the LLM backend for a definition.
type ModelConfig struct {
	// Provider names the gateway ("openai" or an OpenAI-compatible
	// endpoint registered under another name).
	Provider string `json:"provider" yaml:"provider"`

	// Model is the backend model identifier.
	Model string `json:"model" yaml:"model"`

	// Temperature overrides the backend default when non-nil.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// MaxTokens bounds each completion when non-nil.
	MaxTokens *int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// Definition is an agent definition. The engine reads a Clone at
// execution start; later edits never affect an in-flight execution.
type Definition struct {
	// ID is the unique identifier of the definition.
	ID string `json:"id"`

	// Name is the human-readable agent name.
	Name string `json:"name"`

	// Description explains what the agent does.
	Description string `json:"description,omitempty"`

	// Workflow is the typed variant configuration. Its concrete type
	// fixes the workflow variant.
	Workflow VariantConfig `json:"workflow"`

	// Model selects the LLM backend.
	Model ModelConfig `json:"model"`

	// ToolServers maps server names to connection parameters.
	ToolServers map[string]tool.ServerConfig `json:"tool_servers,omitempty"`

	// Active gates execution. Inactive definitions reject starts.
	Active bool `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Type returns the workflow variant of the definition.
func (d *Definition) Type() WorkflowType {
	if d.Workflow == nil {
		return ""
	}
	return d.Workflow.Type()
}

// Validate checks structural validity: identity, a well-formed variant
// configuration and the presence of every tool server the variant
// requires. All failures are configuration errors.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return errdefs.Config("definition has no id")
	}
	if d.Name == "" {
		return errdefs.Config("definition %s has no name", d.ID)
	}
	if d.Workflow == nil {
		return errdefs.Config("definition %s has no workflow configuration", d.ID)
	}
	if err := d.Workflow.Validate(); err != nil {
		return err
	}
	for _, server := range d.Workflow.RequiredServers() {
		if _, ok := d.ToolServers[server]; !ok {
			return errdefs.Config("definition %s (%s) requires tool server %q",
				d.ID, d.Type(), server)
		}
	}
	return nil
}

// Clone creates a deep copy of the definition. Variant configurations
// are value types, so copying the interface value is sufficient.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	clone := *d
	if d.ToolServers != nil {
		clone.ToolServers = make(map[string]tool.ServerConfig, len(d.ToolServers))
		for name, cfg := range d.ToolServers {
			copied := cfg
			if cfg.Headers != nil {
				copied.Headers = make(map[string]string, len(cfg.Headers))
				for k, v := range cfg.Headers {
					copied.Headers[k] = v
				}
			}
			if cfg.Args != nil {
				copied.Args = append([]string(nil), cfg.Args...)
			}
			clone.ToolServers[name] = copied
		}
	}
	if d.Model.Temperature != nil {
		t := *d.Model.Temperature
		clone.Model.Temperature = &t
	}
	if d.Model.MaxTokens != nil {
		m := *d.Model.MaxTokens
		clone.Model.MaxTokens = &m
	}
	return &clone
}
