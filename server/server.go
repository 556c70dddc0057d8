//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package server exposes the engine over HTTP: execution lifecycle
// endpoints plus a Server-Sent Events stream per execution.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/openloop/agentrun/agent"
	"github.com/openloop/agentrun/errdefs"
	"github.com/openloop/agentrun/event"
	"github.com/openloop/agentrun/log"
	"github.com/openloop/agentrun/runner"
)

// Server wires the runner and the agent registry into an HTTP handler.
type Server struct {
	runner   *runner.Runner
	registry *agent.Registry
	handler  http.Handler
}

// Option configures the Server.
type Option func(*options)

type options struct {
	allowedOrigins []string
}

// WithAllowedOrigins restricts CORS. The default allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(o *options) { o.allowedOrigins = origins }
}

// New creates the HTTP surface for a runner and registry.
func New(r *runner.Runner, registry *agent.Registry, opts ...Option) *Server {
	o := &options{allowedOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(o)
	}

	s := &Server{runner: r, registry: registry}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/agents", s.listAgents).Methods(http.MethodGet)
	api.HandleFunc("/agents/{agentID}", s.getAgent).Methods(http.MethodGet)
	api.HandleFunc("/agents/{agentID}/executions", s.startExecution).Methods(http.MethodPost)
	api.HandleFunc("/agents/{agentID}/executions", s.listExecutions).Methods(http.MethodGet)
	api.HandleFunc("/executions/{executionID}", s.getExecution).Methods(http.MethodGet)
	api.HandleFunc("/executions/{executionID}/cancel", s.cancelExecution).Methods(http.MethodPost)
	api.HandleFunc("/executions/{executionID}/events", s.streamEvents).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	s.handler = cors.New(cors.Options{
		AllowedOrigins: o.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(router)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.registry.List()})
}

func (s *Server) getAgent(w http.ResponseWriter, r *http.Request) {
	def, err := s.registry.Get(mux.Vars(r)["agentID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// startRequest is the POST body for starting an execution.
type startRequest struct {
	Input map[string]any `json:"input"`
}

func (s *Server) startExecution(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentID"]

	var req startRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errdefs.Config("invalid request body: %v", err))
			return
		}
	}

	execID, err := s.runner.Start(r.Context(), agentID, req.Input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"executionId": execID,
		"status":      "running",
	})
}

func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	execs, err := s.runner.List(r.Context(), mux.Vars(r)["agentID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": execs})
}

func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.runner.Get(r.Context(), mux.Vars(r)["executionID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (s *Server) cancelExecution(w http.ResponseWriter, r *http.Request) {
	status, err := s.runner.Cancel(r.Context(), mux.Vars(r)["executionID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// streamEvents serves the execution's event stream as Server-Sent
// Events. The full history is replayed first, then live events follow in
// order; the connection closes after the terminal done event.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	executionID := mux.Vars(r)["executionID"]

	events, err := s.runner.Subscribe(r.Context(), executionID)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-events:
			if !open {
				return
			}
			if err := writeSSE(w, evt); err != nil {
				log.Debugf("server: drop SSE client for %s: %v", executionID, err)
				return
			}
			flusher.Flush()
		}
	}
}

// sseFrame is the wire shape of one stream event: the kind-specific
// payload always lives under data, keyed off type.
type sseFrame struct {
	ID          string     `json:"id"`
	ExecutionID string     `json:"executionId"`
	Seq         int64      `json:"seq"`
	Type        event.Type `json:"type"`
	Timestamp   time.Time  `json:"timestamp"`
	Data        any        `json:"data"`
}

func writeSSE(w http.ResponseWriter, evt *event.Event) error {
	data, err := json.Marshal(sseFrame{
		ID:          evt.ID,
		ExecutionID: evt.ExecutionID,
		Seq:         evt.Seq,
		Type:        evt.Type,
		Timestamp:   evt.Timestamp,
		Data:        evt.Payload(),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warnf("server: encode response: %v", err)
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errdefs.IsNotFound(err):
		status = http.StatusNotFound
	case errdefs.IsConcurrent(err):
		status = http.StatusConflict
	case errdefs.IsConfig(err):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
