package pipeline

import "strings"

// Mode is the mediation direction.
type Mode string

const (
	ModeDeafToHearing Mode = "deaf-to-hearing"
	ModeHearingToDeaf Mode = "hearing-to-deaf"
)

// Scenario tunes phrasing and speech rate.
type Scenario string

const (
	ScenarioHospital  Scenario = "hospital"
	ScenarioEmergency Scenario = "emergency"
	ScenarioDefault   Scenario = "default"
)

// Context frames one pipeline invocation. Immutable per invocation.
type Context struct {
	Mode     Mode     `json:"mode"`
	Scenario Scenario `json:"scenario"`
}

// InputEvent is one unit of user input: a speech transcript from the hearing
// side, or a recognized sign sequence (optionally with its source hand pose)
// from the deaf side.
type InputEvent struct {
	Transcript string    `json:"transcript,omitempty"`
	Signs      []string  `json:"signs,omitempty"`
	Pose       []float64 `json:"pose,omitempty"`
}

// DerivedPhrase flattens the event into the phrase checked against the
// emergency and medical tables.
func (e InputEvent) DerivedPhrase() string {
	if e.Transcript != "" {
		return e.Transcript
	}
	return strings.Join(e.Signs, " ")
}

// fallbackText is the degraded output used when mediation fails or times out.
func fallbackText(scenario Scenario) string {
	switch scenario {
	case ScenarioHospital:
		return "I'm sorry, I could not interpret that. Please alert a staff member."
	case ScenarioEmergency:
		return "Emergency assistance is needed. Please call for help."
	default:
		return "Sorry, I could not interpret that. Could you repeat it?"
	}
}
