//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

package agent

import "github.com/openloop/agentrun/errdefs"

// Tool-server names the variants depend on.
const (
	ServerGitHub     = "github"
	ServerTestRunner = "test_runner"
	ServerLinter     = "linter"
	ServerEmail      = "email"
	ServerSearch     = "search"
)

// CodeGeneratorConfig configures the code_generator variant: generate
// code changes from a prompt over repository context, optionally test,
// lint and commit them through the github tool server.
type CodeGeneratorConfig struct {
	// Repo is the "owner/name" repository to work on.
	Repo string `json:"repo" yaml:"repo"`

	// ProjectID scopes retrieval to the repository's knowledge project.
	ProjectID string `json:"project_id,omitempty" yaml:"project_id,omitempty"`

	// TargetBranch is the working branch for generated changes.
	TargetBranch string `json:"target_branch,omitempty" yaml:"target_branch,omitempty"`

	// BaseBranch is the branch changes are based on.
	BaseBranch string `json:"base_branch,omitempty" yaml:"base_branch,omitempty"`

	AutoTest     bool `json:"auto_test" yaml:"auto_test"`
	AutoLint     bool `json:"auto_lint" yaml:"auto_lint"`
	AutoCommit   bool `json:"auto_commit" yaml:"auto_commit"`
	AutoCreatePR bool `json:"auto_create_pr" yaml:"auto_create_pr"`

	// MaxContextChunks caps the retrieval context size. Zero means the
	// workflow default.
	MaxContextChunks int `json:"max_context_chunks,omitempty" yaml:"max_context_chunks,omitempty"`
}

// Type implements VariantConfig.
func (CodeGeneratorConfig) Type() WorkflowType { return TypeCodeGenerator }

// Validate implements VariantConfig.
func (c CodeGeneratorConfig) Validate() error {
	if c.Repo == "" {
		return errdefs.Config("code_generator requires repo")
	}
	return nil
}

// RequiredServers implements VariantConfig. Test runner and linter stay
// optional; their steps are skipped when the server is absent.
func (c CodeGeneratorConfig) RequiredServers() []string {
	return []string{ServerGitHub}
}

// BranchReviewConfig configures the branch_code_review variant: analyze
// the diff of a branch, generate fixes and publish a review branch.
type BranchReviewConfig struct {
	Repo string `json:"repo" yaml:"repo"`

	// BaseBranch is the merge base for the diff. Empty means "main".
	BaseBranch string `json:"base_branch,omitempty" yaml:"base_branch,omitempty"`

	// MaxFiles caps how many changed files are reviewed. Zero means the
	// workflow default.
	MaxFiles int `json:"max_files,omitempty" yaml:"max_files,omitempty"`

	// AutoCreatePR publishes the review branch as a pull request.
	AutoCreatePR bool `json:"auto_create_pr" yaml:"auto_create_pr"`
}

// Type implements VariantConfig.
func (BranchReviewConfig) Type() WorkflowType { return TypeBranchReview }

// Validate implements VariantConfig.
func (c BranchReviewConfig) Validate() error {
	if c.Repo == "" {
		return errdefs.Config("branch_code_review requires repo")
	}
	return nil
}

// RequiredServers implements VariantConfig.
func (c BranchReviewConfig) RequiredServers() []string {
	return []string{ServerGitHub}
}

// AdvisorMode selects the analysis mode of an advisor variant.
type AdvisorMode string

// Legal advisor modes.
const (
	LegalModeClaimProcessing  AdvisorMode = "claim_processing"
	LegalModeComplianceCheck  AdvisorMode = "compliance_check"
	LegalModeRiskAssessment   AdvisorMode = "risk_assessment"
	LegalModeDocumentDrafting AdvisorMode = "document_drafting"
	LegalModeResearch         AdvisorMode = "legal_research"
)

// LegalFiscalConfig configures the legal_fiscal variant. Retrieval over
// the legal knowledge project is mandatory for every mode.
type LegalFiscalConfig struct {
	// ProjectID is the legal knowledge project.
	ProjectID string `json:"project_id" yaml:"project_id"`

	// Mode selects the analysis performed.
	Mode AdvisorMode `json:"mode" yaml:"mode"`

	// Domain narrows the legal field (fiscal, labor, corporate).
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// Type implements VariantConfig.
func (LegalFiscalConfig) Type() WorkflowType { return TypeLegalFiscal }

// Validate implements VariantConfig.
func (c LegalFiscalConfig) Validate() error {
	if c.ProjectID == "" {
		return errdefs.Config("legal_fiscal requires project_id")
	}
	switch c.Mode {
	case LegalModeClaimProcessing, LegalModeComplianceCheck, LegalModeRiskAssessment,
		LegalModeDocumentDrafting, LegalModeResearch:
		return nil
	default:
		return errdefs.Config("legal_fiscal: unknown mode %q", c.Mode)
	}
}

// RequiredServers implements VariantConfig.
func (c LegalFiscalConfig) RequiredServers() []string { return nil }

// Accounting advisor modes.
const (
	AccountingModeEntry       AdvisorMode = "accounting_entry"
	AccountingModeStatements  AdvisorMode = "annual_statements"
	AccountingModeTax         AdvisorMode = "tax_optimization"
	AccountingModePayroll     AdvisorMode = "social_payroll"
	AccountingModeAuditReview AdvisorMode = "audit_review"
)

// AccountingConfig configures the accounting_finance variant.
type AccountingConfig struct {
	// ProjectID is the accounting knowledge project.
	ProjectID string `json:"project_id" yaml:"project_id"`

	// Mode selects the analysis performed.
	Mode AdvisorMode `json:"mode" yaml:"mode"`
}

// Type implements VariantConfig.
func (AccountingConfig) Type() WorkflowType { return TypeAccounting }

// Validate implements VariantConfig.
func (c AccountingConfig) Validate() error {
	if c.ProjectID == "" {
		return errdefs.Config("accounting_finance requires project_id")
	}
	switch c.Mode {
	case AccountingModeEntry, AccountingModeStatements, AccountingModeTax,
		AccountingModePayroll, AccountingModeAuditReview:
		return nil
	default:
		return errdefs.Config("accounting_finance: unknown mode %q", c.Mode)
	}
}

// RequiredServers implements VariantConfig.
func (c AccountingConfig) RequiredServers() []string { return nil }

// Travel advisor modes.
const (
	TravelModeDestination AdvisorMode = "destination_search"
	TravelModeItinerary   AdvisorMode = "itinerary_planning"
	TravelModeBudget      AdvisorMode = "budget_optimization"
	TravelModeActivities  AdvisorMode = "activity_recommendations"
)

// TravelConfig configures the travel_expert variant. Retrieval is
// optional: without a project the advisor answers from the model alone.
type TravelConfig struct {
	ProjectID string      `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Mode      AdvisorMode `json:"mode" yaml:"mode"`
}

// Type implements VariantConfig.
func (TravelConfig) Type() WorkflowType { return TypeTravel }

// Validate implements VariantConfig.
func (c TravelConfig) Validate() error {
	switch c.Mode {
	case TravelModeDestination, TravelModeItinerary, TravelModeBudget, TravelModeActivities:
		return nil
	default:
		return errdefs.Config("travel_expert: unknown mode %q", c.Mode)
	}
}

// RequiredServers implements VariantConfig.
func (c TravelConfig) RequiredServers() []string { return nil }

// EmailConfig configures the email_expert variant: analyze an inbox or
// draft and send messages through the email tool server.
type EmailConfig struct {
	// Signature is appended to drafted messages.
	Signature string `json:"signature,omitempty" yaml:"signature,omitempty"`

	// Tone shapes drafted replies: professional, friendly or formal.
	Tone string `json:"tone,omitempty" yaml:"tone,omitempty"`

	// Language is the drafting language code.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// MaxMessages caps inbox analysis. Zero means the workflow default.
	MaxMessages int `json:"max_messages,omitempty" yaml:"max_messages,omitempty"`
}

// Type implements VariantConfig.
func (EmailConfig) Type() WorkflowType { return TypeEmail }

// Validate implements VariantConfig.
func (c EmailConfig) Validate() error {
	switch c.Tone {
	case "", "professional", "friendly", "formal":
		return nil
	default:
		return errdefs.Config("email_expert: unknown tone %q", c.Tone)
	}
}

// RequiredServers implements VariantConfig.
func (c EmailConfig) RequiredServers() []string {
	return []string{ServerEmail}
}

// WebSearchConfig configures the websearch variant.
type WebSearchConfig struct {
	// MaxResults caps returned results. Zero means the workflow default.
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty"`

	// ExtractContent fetches page content for the top results.
	ExtractContent bool `json:"extract_content" yaml:"extract_content"`
}

// Type implements VariantConfig.
func (WebSearchConfig) Type() WorkflowType { return TypeWebSearch }

// Validate implements VariantConfig.
func (c WebSearchConfig) Validate() error {
	if c.MaxResults < 0 {
		return errdefs.Config("websearch: max_results must not be negative")
	}
	return nil
}

// RequiredServers implements VariantConfig.
func (c WebSearchConfig) RequiredServers() []string {
	return []string{ServerSearch}
}
