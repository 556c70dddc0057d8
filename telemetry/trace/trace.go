//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

// Package trace exposes the engine's tracer. Without a registered
// global tracer provider every span is a no-op, so instrumented code
// never needs to guard its spans.
package trace

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentName = "github.com/openloop/agentrun"

// Tracer is the tracer used across the engine.
var Tracer trace.Tracer = otel.Tracer(instrumentName)
