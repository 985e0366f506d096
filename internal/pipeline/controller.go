// Package pipeline contains the mediation pipeline controller: it sequences
// input, mediation, and output, with a cache-backed emergency fast path that
// bypasses external mediation entirely.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/signbridge/internal/contentcache"
	"github.com/normanking/signbridge/internal/idle"
	"github.com/normanking/signbridge/internal/mediation"
	"github.com/normanking/signbridge/internal/phrase"
	"github.com/normanking/signbridge/internal/speech"
	"github.com/normanking/signbridge/internal/status"
)

// Config holds the controller's latency budgets.
type Config struct {
	// EmergencyBudget is the fast-path ceiling from input to speaking.
	EmergencyBudget time.Duration
	// FallbackCeiling bounds the slow path even under mediation failure.
	FallbackCeiling time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		EmergencyBudget: 150 * time.Millisecond,
		FallbackCeiling: 2 * time.Second,
	}
}

// Controller orchestrates one input cycle at a time. A new ProcessInput call
// supersedes any cycle still in flight: the old cycle is canceled and its
// observers see no further events.
type Controller struct {
	cfg          Config
	phrases      *phrase.Cache
	recognitions *contentcache.Cache[contentcache.SignRecognition]
	animations   *contentcache.Cache[contentcache.AvatarAnimation]
	mediator     mediation.Mediator
	speaker      speech.Speaker
	idleManager  *idle.Manager
	broadcaster  *status.Broadcaster
	logger       zerolog.Logger

	onError func(err error)

	mu         sync.Mutex
	generation uint64
	cancelPrev context.CancelFunc
}

// New creates a Controller. All collaborators are required except the two
// content caches, which are optional accelerators.
func New(
	cfg Config,
	phrases *phrase.Cache,
	mediator mediation.Mediator,
	speaker speech.Speaker,
	idleManager *idle.Manager,
	broadcaster *status.Broadcaster,
	logger zerolog.Logger,
) *Controller {
	if cfg.EmergencyBudget <= 0 {
		cfg.EmergencyBudget = DefaultConfig().EmergencyBudget
	}
	if cfg.FallbackCeiling <= 0 {
		cfg.FallbackCeiling = DefaultConfig().FallbackCeiling
	}

	return &Controller{
		cfg:         cfg,
		phrases:     phrases,
		mediator:    mediator,
		speaker:     speaker,
		idleManager: idleManager,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "pipeline").Logger(),
	}
}

// SetContentCaches attaches the recognition and animation caches.
func (c *Controller) SetContentCaches(
	recognitions *contentcache.Cache[contentcache.SignRecognition],
	animations *contentcache.Cache[contentcache.AvatarAnimation],
) {
	c.recognitions = recognitions
	c.animations = animations
}

// SetErrorHandler registers a callback surfacing mediation failures to
// observability. The pipeline still recovers with a fallback output.
func (c *Controller) SetErrorHandler(fn func(err error)) {
	c.onError = fn
}

// ProcessInput runs one input cycle: status emissions in the order listening,
// understanding, responding, speaking; an emergency fast path when enabled
// and the derived phrase is cached; otherwise external mediation with a
// bounded fallback. Returns context.Canceled if the cycle was superseded.
func (c *Controller) ProcessInput(ctx context.Context, event InputEvent, pctx Context, emergencyMode bool) error {
	cycle := uuid.New()
	start := time.Now()

	// Supersede any in-flight cycle before emitting anything.
	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancelPrev != nil {
		c.cancelPrev()
	}
	cctx, cancel := context.WithCancel(ctx)
	c.cancelPrev = cancel
	c.mu.Unlock()

	c.speaker.Cancel()

	c.logger.Debug().
		Str("cycle", cycle.String()).
		Str("mode", string(pctx.Mode)).
		Str("scenario", string(pctx.Scenario)).
		Bool("emergencyMode", emergencyMode).
		Msg("Cycle started")

	if !c.emit(gen, cycle, pctx, status.StatusListening, "") {
		return context.Canceled
	}
	if !c.emit(gen, cycle, pctx, status.StatusUnderstanding, "") {
		return context.Canceled
	}

	// Emergency fast path: cache-only resolution, no suspending operation
	// before output dispatch.
	if emergencyMode {
		if res := c.phrases.Lookup(event.DerivedPhrase()); res.Hit {
			c.logger.Info().
				Str("cycle", cycle.String()).
				Float64("lookupMicros", res.LookupMicros()).
				Msg("Emergency fast path hit")
			return c.deliver(cctx, gen, cycle, pctx, res.Entry.MediatedText, "", start)
		}
	}

	c.cacheRecognition(event)

	// Slow path: opportunistic animation cache, then external mediation.
	if text, ok := c.cachedAnimationText(event, pctx); ok {
		return c.deliver(cctx, gen, cycle, pctx, text, "", start)
	}

	mctx, mcancel := context.WithTimeout(cctx, c.cfg.FallbackCeiling)
	defer mcancel()

	result, err := c.mediator.Mediate(mctx, &mediation.Request{
		Transcript: event.Transcript,
		Signs:      event.Signs,
		Mode:       string(pctx.Mode),
		Scenario:   string(pctx.Scenario),
	})

	if cctx.Err() != nil {
		// Superseded mid-mediation: a late result must not reach output.
		c.logger.Debug().Str("cycle", cycle.String()).Msg("Cycle superseded during mediation")
		return context.Canceled
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = mediation.ErrTimeout
		}
		c.logger.Warn().Err(err).Str("cycle", cycle.String()).Msg("Mediation failed, using fallback")
		if c.onError != nil {
			c.onError(err)
		}
		return c.deliver(cctx, gen, cycle, pctx, fallbackText(pctx.Scenario), err.Error(), start)
	}

	c.cacheAnimation(event, pctx, result.MediatedText)

	return c.deliver(cctx, gen, cycle, pctx, result.MediatedText, "", start)
}

// deliver emits responding and speaking, dispatches speech output, and
// couples conversational activity to idle-motion suppression.
func (c *Controller) deliver(ctx context.Context, gen uint64, cycle uuid.UUID, pctx Context, text, errMsg string, start time.Time) error {
	if !c.emit(gen, cycle, pctx, status.StatusResponding, errMsg) {
		return context.Canceled
	}

	req := &speech.Request{
		Text:     text,
		Scenario: string(pctx.Scenario),
		OnError: func(err error) {
			c.logger.Warn().Err(err).Str("cycle", cycle.String()).Msg("Speech output error")
		},
	}
	go func() {
		if err := c.speaker.Speak(ctx, req); err != nil {
			c.logger.Warn().Err(err).Str("cycle", cycle.String()).Msg("Speak dispatch failed")
		}
	}()

	if !c.emit(gen, cycle, pctx, status.StatusSpeaking, errMsg) {
		return context.Canceled
	}
	c.idleManager.SignalActivity()

	c.logger.Info().
		Str("cycle", cycle.String()).
		Dur("elapsed", time.Since(start)).
		Bool("degraded", errMsg != "").
		Msg("Cycle reached speaking")

	return nil
}

// emit publishes a status event iff this cycle is still current. Holding the
// controller mutex across the generation check and the publish keeps
// emissions from two cycles from interleaving.
func (c *Controller) emit(gen uint64, cycle uuid.UUID, pctx Context, st status.Status, errMsg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return false
	}
	c.broadcaster.Publish(status.Event{
		Cycle:    cycle,
		Status:   st,
		Scenario: string(pctx.Scenario),
		Err:      errMsg,
	})
	return true
}

// cacheRecognition records the event's sign recognition under its pose key.
func (c *Controller) cacheRecognition(event InputEvent) {
	if c.recognitions == nil || len(event.Pose) == 0 || len(event.Signs) == 0 {
		return
	}
	key := contentcache.KeyForPose(event.Pose)
	if _, ok := c.recognitions.Get(key); ok {
		return
	}
	c.recognitions.Set(key, contentcache.SignRecognition{
		RecognizedSigns: event.Signs,
		Confidence:      1.0,
	})
}

// cachedAnimationText checks the animation cache for a prior mediation of
// this phrase in hearing-to-deaf mode.
func (c *Controller) cachedAnimationText(event InputEvent, pctx Context) (string, bool) {
	if c.animations == nil || pctx.Mode != ModeHearingToDeaf {
		return "", false
	}
	key := contentcache.KeyForText(event.DerivedPhrase(), string(pctx.Scenario))
	entry, ok := c.animations.Get(key)
	if !ok {
		return "", false
	}
	return joinGlosses(entry.Payload.SignSequence), true
}

// cacheAnimation stores the mediated gloss sequence for reuse.
func (c *Controller) cacheAnimation(event InputEvent, pctx Context, mediatedText string) {
	if c.animations == nil || pctx.Mode != ModeHearingToDeaf {
		return
	}
	key := contentcache.KeyForText(event.DerivedPhrase(), string(pctx.Scenario))
	c.animations.Set(key, contentcache.AvatarAnimation{
		SignSequence: tokenizeGlosses(mediatedText),
	})
}
