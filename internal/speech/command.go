package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// CommandConfig holds command speaker configuration.
type CommandConfig struct {
	// Binary is the TTS executable. Empty selects a platform default:
	// "say" on macOS, "espeak" elsewhere.
	Binary string
	// BaseRate is the baseline speaking rate in words per minute.
	BaseRate int
}

// DefaultCommandConfig returns sensible defaults.
func DefaultCommandConfig() *CommandConfig {
	binary := "espeak"
	if runtime.GOOS == "darwin" {
		binary = "say"
	}
	return &CommandConfig{
		Binary:   binary,
		BaseRate: 175,
	}
}

// CommandSpeaker shells out to a system TTS binary. It plays through system
// audio and supports mid-utterance cancellation.
type CommandSpeaker struct {
	config *CommandConfig
	logger zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewCommandSpeaker creates a command-backed speaker.
func NewCommandSpeaker(cfg *CommandConfig, logger zerolog.Logger) *CommandSpeaker {
	if cfg == nil {
		cfg = DefaultCommandConfig()
	}
	return &CommandSpeaker{
		config: cfg,
		logger: logger.With().Str("component", "command-speaker").Logger(),
	}
}

// IsAvailable checks whether the configured binary exists on PATH.
func (s *CommandSpeaker) IsAvailable() bool {
	_, err := exec.LookPath(s.config.Binary)
	return err == nil
}

// Speak synthesizes req.Text through the system binary, blocking until the
// utterance completes or is canceled.
func (s *CommandSpeaker) Speak(ctx context.Context, req *Request) error {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	rate := int(float64(s.config.BaseRate) * RateForScenario(req.Scenario))
	args := s.rateArgs(rate)
	args = append(args, req.Text)

	s.logger.Debug().
		Str("scenario", req.Scenario).
		Int("rate", rate).
		Int("textLen", len(req.Text)).
		Msg("Speaking")

	if req.OnStart != nil {
		req.OnStart()
	}

	cmd := exec.CommandContext(ctx, s.config.Binary, args...)
	err := cmd.Run()

	if ctx.Err() != nil {
		// Canceled utterances are not failures.
		return nil
	}
	if err != nil {
		wrapped := fmt.Errorf("%s command failed: %w", s.config.Binary, err)
		s.logger.Error().Err(wrapped).Msg("Speech synthesis failed")
		if req.OnError != nil {
			req.OnError(wrapped)
		}
		return wrapped
	}

	if req.OnEnd != nil {
		req.OnEnd()
	}
	return nil
}

// Cancel stops the current utterance, if any.
func (s *CommandSpeaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// rateArgs builds the rate flag for the configured binary.
func (s *CommandSpeaker) rateArgs(rate int) []string {
	switch s.config.Binary {
	case "say":
		return []string{"-r", fmt.Sprintf("%d", rate)}
	case "espeak", "espeak-ng":
		return []string{"-s", fmt.Sprintf("%d", rate)}
	default:
		return nil
	}
}

// ErrUnavailable reports a missing TTS binary.
var ErrUnavailable = errors.New("speech provider unavailable")
