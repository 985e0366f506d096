package speech

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestRateForScenario(t *testing.T) {
	cases := map[string]float64{
		"hospital":  0.9,
		"emergency": 1.1,
		"default":   1.0,
		"":          1.0,
		"unknown":   1.0,
	}

	for scenario, want := range cases {
		if got := RateForScenario(scenario); got != want {
			t.Errorf("RateForScenario(%q) = %v, want %v", scenario, got, want)
		}
	}
}

func TestNullSpeaker_RecordsAndCallsBack(t *testing.T) {
	s := NewNullSpeaker()

	var started, ended bool
	err := s.Speak(context.Background(), &Request{
		Text:     "hello",
		Scenario: "default",
		OnStart:  func() { started = true },
		OnEnd:    func() { ended = true },
	})
	if err != nil {
		t.Fatalf("Speak returned %v", err)
	}

	if !started || !ended {
		t.Errorf("callbacks: started=%v ended=%v, want both true", started, ended)
	}
	if s.LastText() != "hello" {
		t.Errorf("LastText = %q, want %q", s.LastText(), "hello")
	}
	if s.SpokenCount() != 1 {
		t.Errorf("SpokenCount = %d, want 1", s.SpokenCount())
	}
}

func TestNullSpeaker_NilCallbacksAreFine(t *testing.T) {
	s := NewNullSpeaker()

	if err := s.Speak(context.Background(), &Request{Text: "no callbacks"}); err != nil {
		t.Fatalf("Speak returned %v", err)
	}
	s.Cancel()

	if s.SpokenCount() != 1 {
		t.Errorf("SpokenCount = %d, want 1", s.SpokenCount())
	}
}

func TestCommandSpeaker_RateArgs(t *testing.T) {
	s := NewCommandSpeaker(&CommandConfig{Binary: "espeak", BaseRate: 175}, zerolog.Nop())
	args := s.rateArgs(192)
	if len(args) != 2 || args[0] != "-s" || args[1] != "192" {
		t.Fatalf("unexpected espeak args: %v", args)
	}

	s = NewCommandSpeaker(&CommandConfig{Binary: "say", BaseRate: 175}, zerolog.Nop())
	args = s.rateArgs(157)
	if len(args) != 2 || args[0] != "-r" || args[1] != "157" {
		t.Fatalf("unexpected say args: %v", args)
	}

	s = NewCommandSpeaker(&CommandConfig{Binary: "festival"}, zerolog.Nop())
	if args := s.rateArgs(175); args != nil {
		t.Errorf("unknown binary should produce no rate args, got %v", args)
	}
}
