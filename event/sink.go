//
// Copyright (C) 2026 The agentrun Authors. All rights reserved.
//
// agentrun is licensed under the Apache License Version 2.0.
//

package event

import (
	"context"
	"sync"
)

// Sink is the ordered, append-only event channel of one execution.
//
// A single producer (the orchestrator) publishes; any number of consumers
// subscribe. Each consumer gets an independent, order-preserving copy of
// the whole stream: everything published before it attached is replayed
// first, then live events follow. The buffer is unbounded, so Publish
// never blocks on a slow consumer.
type Sink struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []*Event
	seq    int64
	closed bool
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	s := &Sink{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Publish appends e to the stream, assigning its sequence number, and
// wakes all consumers. Publishing after Close is a silent no-op so a
// cancelled execution can simply stop relaying.
func (s *Sink) Publish(e *Event) {
	if e == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	e.Seq = s.seq
	s.seq++
	s.events = append(s.events, e)
	s.cond.Broadcast()
}

// Close marks the stream complete. Consumers drain the remaining events
// and their channels are closed. Close is idempotent.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cond.Broadcast()
}

// Closed reports whether the stream has been completed.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Len returns the number of events appended so far.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Events returns a snapshot of the full stream so far.
func (s *Sink) Events() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Event, len(s.events))
	for i, e := range s.events {
		out[i] = e.Clone()
	}
	return out
}

// Subscribe returns a channel that replays every event appended so far
// and then delivers live events in publish order. The channel closes when
// the sink closes and the replay is drained, or when ctx is cancelled.
func (s *Sink) Subscribe(ctx context.Context) <-chan *Event {
	out := make(chan *Event)
	readerDone := make(chan struct{})
	go func() {
		defer close(out)
		defer close(readerDone)
		cursor := 0
		for {
			s.mu.Lock()
			for cursor >= len(s.events) && !s.closed && ctx.Err() == nil {
				s.cond.Wait()
			}
			if ctx.Err() != nil {
				s.mu.Unlock()
				return
			}
			if cursor >= len(s.events) && s.closed {
				s.mu.Unlock()
				return
			}
			e := s.events[cursor].Clone()
			cursor++
			s.mu.Unlock()

			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Wake waiters when the subscriber context ends, otherwise the
	// goroutine above could sleep on the cond forever.
	go func() {
		select {
		case <-ctx.Done():
			s.cond.Broadcast()
		case <-readerDone:
		}
	}()
	return out
}
