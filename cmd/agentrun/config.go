//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openloop/agentrun/agent"
	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/tool"
)

// Config is the YAML configuration of the agentrun daemon.
type Config struct {
	// Listen is the HTTP listen address, e.g. ":8080".
	Listen string `yaml:"listen"`

	// LogLevel is one of debug, info, warn, error, fatal.
	LogLevel string `yaml:"log_level"`

	// Model configures the LLM gateway shared by all agents.
	Model ModelBackend `yaml:"model"`

	// RedisURL switches execution persistence to Redis when set.
	RedisURL string `yaml:"redis_url"`

	// Knowledge seeds the local retriever.
	Knowledge []KnowledgeProject `yaml:"knowledge"`

	// Agents are the definitions registered at startup.
	Agents []AgentSpec `yaml:"agents"`
}

// ModelBackend holds gateway credentials. The per-agent definition picks
// the model name; the daemon owns key and endpoint.
type ModelBackend struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// KnowledgeProject seeds one retrieval project with inline documents.
type KnowledgeProject struct {
	ProjectID string     `yaml:"project_id"`
	Documents []Document `yaml:"documents"`
}

// Document is one inline knowledge document.
type Document struct {
	Content  string         `yaml:"content"`
	Metadata map[string]any `yaml:"metadata"`
}

// AgentSpec is the YAML form of an agent definition. The workflow field
// selects the variant and the config node is decoded into that variant's
// typed configuration.
type AgentSpec struct {
	ID          string                       `yaml:"id"`
	Name        string                       `yaml:"name"`
	Description string                       `yaml:"description"`
	Workflow    string                       `yaml:"workflow"`
	Config      yaml.Node                    `yaml:"config"`
	Model       agent.ModelConfig            `yaml:"model"`
	ToolServers map[string]tool.ServerConfig `yaml:"tool_servers"`
	Active      *bool                        `yaml:"active"`
}

// LoadConfig reads and parses the daemon configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.Config("read config %s: %v", path, err)
	}
	cfg := &Config{
		Listen:   ":8080",
		LogLevel: "info",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errdefs.Config("parse config %s: %v", path, err)
	}
	if env := os.Getenv("AGENTRUN_API_KEY"); env != "" {
		cfg.Model.APIKey = env
	}
	return cfg, nil
}

// Definition converts the YAML entry into an agent definition.
func (s AgentSpec) Definition() (*agent.Definition, error) {
	variant, err := s.variant()
	if err != nil {
		return nil, err
	}
	active := true
	if s.Active != nil {
		active = *s.Active
	}
	return &agent.Definition{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Workflow:    variant,
		Model:       s.Model,
		ToolServers: s.ToolServers,
		Active:      active,
	}, nil
}

// variant decodes the config node into the typed configuration named by
// the workflow field.
func (s AgentSpec) variant() (agent.VariantConfig, error) {
	decode := func(out any) error {
		if s.Config.IsZero() {
			return nil
		}
		return s.Config.Decode(out)
	}

	switch agent.WorkflowType(s.Workflow) {
	case agent.TypeCodeGenerator:
		var cfg agent.CodeGeneratorConfig
		err := decode(&cfg)
		return cfg, err
	case agent.TypeBranchReview:
		var cfg agent.BranchReviewConfig
		err := decode(&cfg)
		return cfg, err
	case agent.TypeLegalFiscal:
		var cfg agent.LegalFiscalConfig
		err := decode(&cfg)
		return cfg, err
	case agent.TypeAccounting:
		var cfg agent.AccountingConfig
		err := decode(&cfg)
		return cfg, err
	case agent.TypeTravel:
		var cfg agent.TravelConfig
		err := decode(&cfg)
		return cfg, err
	case agent.TypeEmail:
		var cfg agent.EmailConfig
		err := decode(&cfg)
		return cfg, err
	case agent.TypeWebSearch:
		var cfg agent.WebSearchConfig
		err := decode(&cfg)
		return cfg, err
	default:
		return nil, errdefs.Config("agent %s: unknown workflow %q", s.Name, s.Workflow)
	}
}
