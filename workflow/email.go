//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openloop/agentrun/agent"
	"github.com/openloop/agentrun/model"
)

const defaultMaxMessages = 10

// emailAssistant implements the email_expert variant: read recent
// messages through the email tool server, let the model decide the
// action and draft replies in the configured tone.
type emailAssistant struct {
	cfg agent.EmailConfig
}

// Name implements Workflow.
func (w *emailAssistant) Name() agent.WorkflowType { return agent.TypeEmail }

// Run implements Workflow.
func (w *emailAssistant) Run(ctx context.Context, env *Env) (map[string]any, error) {
	emit := env.Emitter
	maxMessages := w.cfg.MaxMessages
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}

	emit.Progress("fetching_inbox", 15)
	inbox, err := env.Tools.Call(ctx, agent.ServerEmail, "list_messages", map[string]any{
		"limit": maxMessages,
	})
	if err != nil {
		return nil, err
	}
	emit.Log("info", "Fetched inbox messages")

	tone := w.cfg.Tone
	if tone == "" {
		tone = "professional"
	}
	system := fmt.Sprintf(
		`You are an email assistant. Tone: %s. Answer with a single JSON object
{"action": "reply|compose|none", "to": "...", "subject": "...",
"body": "...", "reasoning": "..."} and nothing else.`, tone)
	if w.cfg.Language != "" {
		system += fmt.Sprintf(" Write in language %q.", w.cfg.Language)
	}

	emit.Progress("drafting", 50)
	resp, err := generate(ctx, env, "draft_email", []model.Message{
		model.NewSystemMessage(system),
		model.NewUserMessage(fmt.Sprintf("Request: %s\n\nInbox:\n%s",
			env.prompt(), stringify(inbox))),
	})
	if err != nil {
		return nil, err
	}

	var draft struct {
		Action    string `json:"action"`
		To        string `json:"to"`
		Subject   string `json:"subject"`
		Body      string `json:"body"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &draft); err != nil {
		draft.Action = "none"
		draft.Reasoning = resp.Text
	}

	result := map[string]any{
		"action":    draft.Action,
		"reasoning": draft.Reasoning,
	}

	if draft.Action == "reply" || draft.Action == "compose" {
		body := draft.Body
		if w.cfg.Signature != "" {
			body += "\n\n" + w.cfg.Signature
		}
		emit.Progress("sending", 85)
		emit.Log("info", fmt.Sprintf("Sending message to %s", draft.To))
		if _, err := env.Tools.Call(ctx, agent.ServerEmail, "send_message", map[string]any{
			"to":      draft.To,
			"subject": draft.Subject,
			"body":    body,
		}); err != nil {
			return nil, err
		}
		result["sent"] = true
		result["to"] = draft.To
		result["subject"] = draft.Subject
	} else {
		emit.Log("info", "No message required")
		result["sent"] = false
	}

	return result, nil
}
