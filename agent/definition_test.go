//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/tool"
)

func validDefinition() *Definition {
	return &Definition{
		ID:   "agent-1",
		Name: "generator",
		Workflow: CodeGeneratorConfig{
			Repo:         "openloop/demo",
			TargetBranch: "agent/changes",
		},
		Model: ModelConfig{Provider: "openai", Model: "gpt-4o"},
		ToolServers: map[string]tool.ServerConfig{
			ServerGitHub: {Transport: "streamable", ServerURL: "http://localhost:9000/mcp"},
		},
		Active: true,
	}
}

func TestValidateAcceptsCompleteDefinition(t *testing.T) {
	require.NoError(t, validDefinition().Validate())
}

func TestValidateRejectsMissingIdentity(t *testing.T) {
	def := validDefinition()
	def.ID = ""
	assert.True(t, errdefs.IsConfig(def.Validate()))

	def = validDefinition()
	def.Name = ""
	assert.True(t, errdefs.IsConfig(def.Validate()))

	def = validDefinition()
	def.Workflow = nil
	assert.True(t, errdefs.IsConfig(def.Validate()))
}

func TestValidateRejectsMissingRequiredServer(t *testing.T) {
	def := validDefinition()
	def.ToolServers = nil
	err := def.Validate()
	require.Error(t, err)
	assert.True(t, errdefs.IsConfig(err))
	assert.Contains(t, err.Error(), ServerGitHub)
}

func TestValidateDelegatesToVariantConfig(t *testing.T) {
	def := validDefinition()
	def.Workflow = CodeGeneratorConfig{}
	assert.True(t, errdefs.IsConfig(def.Validate()))
}

func TestVariantConfigValidation(t *testing.T) {
	assert.NoError(t, LegalFiscalConfig{ProjectID: "legal", Mode: LegalModeResearch}.Validate())
	assert.Error(t, LegalFiscalConfig{ProjectID: "legal", Mode: "nonsense"}.Validate())
	assert.Error(t, LegalFiscalConfig{Mode: LegalModeResearch}.Validate())

	assert.NoError(t, AccountingConfig{ProjectID: "books", Mode: AccountingModeTax}.Validate())
	assert.Error(t, AccountingConfig{ProjectID: "books", Mode: "nonsense"}.Validate())

	assert.NoError(t, TravelConfig{Mode: TravelModeItinerary}.Validate())
	assert.Error(t, TravelConfig{Mode: "teleportation"}.Validate())

	assert.NoError(t, EmailConfig{Tone: "friendly"}.Validate())
	assert.Error(t, EmailConfig{Tone: "aggressive"}.Validate())

	assert.NoError(t, WebSearchConfig{MaxResults: 3}.Validate())
	assert.Error(t, WebSearchConfig{MaxResults: -1}.Validate())

	assert.Error(t, BranchReviewConfig{}.Validate())
}

func TestTypeFollowsConcreteConfig(t *testing.T) {
	def := validDefinition()
	assert.Equal(t, TypeCodeGenerator, def.Type())

	def.Workflow = WebSearchConfig{}
	assert.Equal(t, TypeWebSearch, def.Type())
}

func TestCloneIsolation(t *testing.T) {
	def := validDefinition()
	temp := 0.2
	def.Model.Temperature = &temp

	clone := def.Clone()
	clone.ToolServers[ServerGitHub] = tool.ServerConfig{Transport: "stdio"}
	clone.ToolServers["extra"] = tool.ServerConfig{}
	*clone.Model.Temperature = 0.9

	assert.Equal(t, "streamable", def.ToolServers[ServerGitHub].Transport)
	assert.NotContains(t, def.ToolServers, "extra")
	assert.Equal(t, 0.2, *def.Model.Temperature)
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()

	def := validDefinition()
	def.ID = ""
	require.NoError(t, r.Put(def))
	require.NotEmpty(t, def.ID)

	got, err := r.Get(def.ID)
	require.NoError(t, err)
	assert.Equal(t, "generator", got.Name)
	assert.False(t, got.CreatedAt.IsZero())

	// Mutating the snapshot must not leak into the registry.
	got.Name = "mutated"
	again, err := r.Get(def.ID)
	require.NoError(t, err)
	assert.Equal(t, "generator", again.Name)

	_, err = r.Get("missing")
	assert.True(t, errdefs.IsNotFound(err))

	assert.Len(t, r.List(), 1)
	r.Delete(def.ID)
	assert.Empty(t, r.List())
}

func TestRegistryPreservesCreatedAtOnReplace(t *testing.T) {
	r := NewRegistry()
	def := validDefinition()
	require.NoError(t, r.Put(def))

	first, err := r.Get(def.ID)
	require.NoError(t, err)

	update := validDefinition()
	update.Name = "generator-v2"
	require.NoError(t, r.Put(update))

	second, err := r.Get(def.ID)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "generator-v2", second.Name)
}

func TestRegistryRejectsInvalidDefinition(t *testing.T) {
	r := NewRegistry()
	def := validDefinition()
	def.Workflow = CodeGeneratorConfig{}
	assert.True(t, errdefs.IsConfig(r.Put(def)))
	assert.Empty(t, r.List())
}
