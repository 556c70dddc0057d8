//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Command agentrun runs the agent execution engine as an HTTP daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/openloop/agentrun/agent"
	"github.com/openloop/agentrun/errdefs"
	execredis "github.com/openloop/agentrun/execution/redis"
	"github.com/openloop/agentrun/log"
	"github.com/openloop/agentrun/model"
	"github.com/openloop/agentrun/model/openai"
	retrmem "github.com/openloop/agentrun/retriever/inmemory"
	"github.com/openloop/agentrun/runner"
	"github.com/openloop/agentrun/server"
)

func main() {
	configPath := flag.String("config", "agentrun.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	registry := agent.NewRegistry()
	for _, spec := range cfg.Agents {
		def, err := spec.Definition()
		if err != nil {
			log.Fatalf("agent %s: %v", spec.Name, err)
		}
		if err := registry.Put(def); err != nil {
			log.Fatalf("agent %s: %v", spec.Name, err)
		}
		log.Infof("registered agent %s (%s)", def.Name, def.Type())
	}

	ret := retrmem.New()
	for _, project := range cfg.Knowledge {
		for _, doc := range project.Documents {
			ret.Add(project.ProjectID, doc.Content, doc.Metadata)
		}
	}

	opts := []runner.Option{runner.WithRetriever(ret)}
	if cfg.RedisURL != "" {
		store, err := execredis.NewStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis store: %v", err)
		}
		opts = append(opts, runner.WithStore(store))
		log.Infof("execution store: redis")
	} else {
		log.Infof("execution store: in-memory")
	}

	run, err := runner.NewRunner(registry, modelProvider(cfg.Model), opts...)
	if err != nil {
		log.Fatalf("create runner: %v", err)
	}
	defer func() {
		if err := run.Close(); err != nil {
			log.Warnf("close runner: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(run, registry).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("listening on %s", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("shutdown: %v", err)
	}
}

// modelProvider builds the per-definition LLM port against the
// configured gateway.
func modelProvider(backend ModelBackend) runner.ModelProvider {
	return func(cfg agent.ModelConfig) (model.Model, error) {
		switch cfg.Provider {
		case "", "openai":
			var opts []openai.Option
			if backend.APIKey != "" {
				opts = append(opts, openai.WithAPIKey(backend.APIKey))
			}
			if backend.BaseURL != "" {
				opts = append(opts, openai.WithBaseURL(backend.BaseURL))
			}
			return openai.New(cfg.Model, opts...), nil
		default:
			return nil, errdefs.Config("unknown model provider %q", cfg.Provider)
		}
	}
}
