package emit

import "sync"

// Stream implements Emitter by forwarding events to a channel that a single
// consumer ranges over.
//
// The channel is unbuffered by default: Emit blocks until the consumer has
// received the event, so events arrive in emission order and nothing queues
// up beyond the event in flight. Close ends the stream; events emitted after
// Close are discarded. A Stream is single-use.
//
// Example:
//
//	stream := emit.NewStream(0)
//	go func() {
//	    defer stream.Close()
//	    engine.Run(ctx, ...)
//	}()
//	for ev := range stream.Events() {
//	    render(ev)
//	}
type Stream struct {
	ch     chan Event
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewStream creates a stream with the given channel buffer size.
func NewStream(buffer int) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Events returns the receive side of the stream. It is closed by Close.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Emit sends event to the consumer, blocking until it is received or the
// stream is abandoned.
func (s *Stream) Emit(event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}
	select {
	case s.ch <- event:
	case <-s.done:
	}
}

// Abandon unblocks pending and future Emit calls without waiting for the
// consumer. Use it when the consumer stops reading early.
func (s *Stream) Abandon() {
	s.once.Do(func() { close(s.done) })
}

// Close closes the event channel. Safe to call more than once.
func (s *Stream) Close() {
	s.Abandon()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
