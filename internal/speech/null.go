package speech

import (
	"context"
	"sync"
)

// NullSpeaker is a no-op Speaker for headless runs and tests. It completes
// every utterance immediately and remembers the last spoken text.
type NullSpeaker struct {
	mu       sync.Mutex
	lastText string
	spoken   int
}

// NewNullSpeaker creates a NullSpeaker.
func NewNullSpeaker() *NullSpeaker {
	return &NullSpeaker{}
}

// Speak records the utterance and fires OnStart/OnEnd immediately.
func (s *NullSpeaker) Speak(_ context.Context, req *Request) error {
	s.mu.Lock()
	s.lastText = req.Text
	s.spoken++
	s.mu.Unlock()

	if req.OnStart != nil {
		req.OnStart()
	}
	if req.OnEnd != nil {
		req.OnEnd()
	}
	return nil
}

// Cancel is a no-op.
func (s *NullSpeaker) Cancel() {}

// LastText returns the most recently spoken text.
func (s *NullSpeaker) LastText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastText
}

// SpokenCount returns how many utterances were dispatched.
func (s *NullSpeaker) SpokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spoken
}
