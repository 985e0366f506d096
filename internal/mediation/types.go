// Package mediation defines the external mediation boundary: converting
// recognized input into the other modality's content. The pipeline treats it
// as an opaque asynchronous operation with a latency and failure contract.
package mediation

import (
	"context"
	"errors"
)

// Common errors.
var (
	// ErrFailed covers an errored call or invalid response data.
	ErrFailed = errors.New("mediation failed")
	// ErrTimeout covers a call that exceeded the caller's ceiling.
	ErrTimeout = errors.New("mediation timed out")
)

// Request carries the recognized input and its conversational framing.
type Request struct {
	// Transcript is the speech transcript, when the input came from the
	// hearing side.
	Transcript string `json:"transcript,omitempty"`
	// Signs is the recognized sign sequence, when the input came from the
	// deaf side.
	Signs []string `json:"signs,omitempty"`
	// Mode is the mediation direction: deaf-to-hearing or hearing-to-deaf.
	Mode string `json:"mode"`
	// Scenario tunes phrasing: hospital, emergency, or default.
	Scenario string `json:"scenario"`
}

// Result is a successful mediation outcome.
type Result struct {
	MediatedText string  `json:"mediatedText"`
	Confidence   float64 `json:"confidence"`
}

// Mediator is implemented by mediation backends.
type Mediator interface {
	Mediate(ctx context.Context, req *Request) (*Result, error)
}

// Func adapts a function to the Mediator interface.
type Func func(ctx context.Context, req *Request) (*Result, error)

// Mediate calls f.
func (f Func) Mediate(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}
