package events

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrStreamClosed indicates a Send after Close.
	ErrStreamClosed = errors.New("event stream closed")

	// ErrTerminalSent indicates a Send after the terminal event.
	ErrTerminalSent = errors.New("terminal event already sent")
)

// DefaultBuffer is the stream capacity used when none is configured.
const DefaultBuffer = 64

// Stream is a bounded, single-producer event channel for one research
// run. The producing side (the orchestrator's drive loop) calls Send and
// finally Close; the consuming side ranges over Events.
//
// Sends block when the buffer is full, which applies backpressure from
// a slow consumer all the way back into the graph's emitting nodes. A
// cancelled context unblocks the sender.
//
// Exactly one terminal payload (complete or error) may be sent; the
// stream rejects everything after it.
type Stream struct {
	ch chan Payload

	mu       sync.Mutex
	closed   bool
	terminal bool
}

// NewStream creates a stream with the given buffer capacity.
// Non-positive capacities fall back to DefaultBuffer.
func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Stream{ch: make(chan Payload, buffer)}
}

// Send delivers p to the consumer, blocking while the buffer is full.
// Returns ctx.Err() if the context ends first, ErrStreamClosed after
// Close, and ErrTerminalSent for anything after the terminal event.
//
// Send and Close must be called from the single producing goroutine.
func (s *Stream) Send(ctx context.Context, p Payload) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	if s.terminal {
		s.mu.Unlock()
		return ErrTerminalSent
	}
	if IsTerminal(p) {
		s.terminal = true
	}
	s.mu.Unlock()

	select {
	case s.ch <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the receive side of the stream. The channel is closed
// by Close after the final event.
func (s *Stream) Events() <-chan Payload {
	return s.ch
}

// Close ends the stream. Safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// TerminalSent reports whether a terminal payload has been accepted.
func (s *Stream) TerminalSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}
