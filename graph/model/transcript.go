package model

import "sync"

// Transcript is the append-only conversation history of one workflow run.
//
// All agents of a run share the same transcript, so an agent that receives
// control through a handoff sees everything said before it. Safe for
// concurrent use.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

// NewTranscript creates a transcript seeded with msgs.
func NewTranscript(msgs ...Message) *Transcript {
	t := &Transcript{}
	t.messages = append(t.messages, msgs...)
	return t
}

// Append adds messages to the end of the transcript.
func (t *Transcript) Append(msgs ...Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msgs...)
}

// Messages returns a copy of the history.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
