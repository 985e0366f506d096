// Package speech defines the speech output boundary and its default
// providers. Per-scenario speaking rates are fixed here: hospital speech is
// slower and calmer, emergency speech faster and more urgent.
package speech

import "context"

// Scenario rate multipliers over the provider's baseline rate.
const (
	RateHospital  = 0.9
	RateEmergency = 1.1
	RateDefault   = 1.0
)

// RateForScenario returns the rate multiplier for a scenario name.
func RateForScenario(scenario string) float64 {
	switch scenario {
	case "hospital":
		return RateHospital
	case "emergency":
		return RateEmergency
	default:
		return RateDefault
	}
}

// Request is one utterance. Pitch is neutral and volume full for every
// scenario; only the rate varies.
type Request struct {
	Text     string
	Scenario string

	// Lifecycle callbacks. Any of them may be nil.
	OnStart func()
	OnEnd   func()
	OnError func(err error)
}

// Speaker is implemented by speech output providers. Cancel stops the
// current utterance, if any; the pipeline calls it before each fresh cycle.
type Speaker interface {
	Speak(ctx context.Context, req *Request) error
	Cancel()
}
