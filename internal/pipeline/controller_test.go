package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/signbridge/internal/contentcache"
	"github.com/normanking/signbridge/internal/idle"
	"github.com/normanking/signbridge/internal/mediation"
	"github.com/normanking/signbridge/internal/phrase"
	"github.com/normanking/signbridge/internal/speech"
	"github.com/normanking/signbridge/internal/status"
	"github.com/normanking/signbridge/internal/store"
)

type harness struct {
	controller  *Controller
	speaker     *speech.NullSpeaker
	broadcaster *status.Broadcaster
	idleManager *idle.Manager
	sub         *status.Subscription
}

func newHarness(t *testing.T, cfg Config, mediator mediation.Mediator) *harness {
	t.Helper()

	speaker := speech.NewNullSpeaker()
	broadcaster := status.NewBroadcaster()
	idleManager := idle.NewManager(idle.Config{
		IdleTimeout:        time.Minute,
		TransitionDuration: 10 * time.Millisecond,
	}, zerolog.Nop())
	t.Cleanup(idleManager.Stop)

	controller := New(cfg, phrase.NewCache(zerolog.Nop()), mediator, speaker,
		idleManager, broadcaster, zerolog.Nop())

	sub := broadcaster.Subscribe()
	t.Cleanup(sub.Unsubscribe)

	return &harness{
		controller:  controller,
		speaker:     speaker,
		broadcaster: broadcaster,
		idleManager: idleManager,
		sub:         sub,
	}
}

func (h *harness) collect(t *testing.T, n int) []status.Event {
	t.Helper()
	events := make([]status.Event, 0, n)
	for len(events) < n {
		select {
		case ev := <-h.sub.Events():
			events = append(events, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func statuses(events []status.Event) []status.Status {
	out := make([]status.Status, len(events))
	for i, ev := range events {
		out[i] = ev.Status
	}
	return out
}

func waitForSpoken(t *testing.T, speaker *speech.NullSpeaker, count int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if speaker.SpokenCount() >= count {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("spoke %d utterances, want %d", speaker.SpokenCount(), count)
}

var fullSequence = []status.Status{
	status.StatusListening,
	status.StatusUnderstanding,
	status.StatusResponding,
	status.StatusSpeaking,
}

func TestProcessInput_StatusSequence(t *testing.T) {
	mediator := mediation.Func(func(ctx context.Context, req *mediation.Request) (*mediation.Result, error) {
		return &mediation.Result{MediatedText: "mediated output", Confidence: 0.8}, nil
	})
	h := newHarness(t, Config{}, mediator)

	err := h.controller.ProcessInput(context.Background(), InputEvent{Transcript: "how are you"},
		Context{Mode: ModeDeafToHearing, Scenario: ScenarioDefault}, false)
	require.NoError(t, err)

	events := h.collect(t, 4)
	assert.Equal(t, fullSequence, statuses(events))
	for _, ev := range events {
		assert.Equal(t, events[0].Cycle, ev.Cycle, "all four emissions belong to one cycle")
		assert.Empty(t, ev.Err)
	}

	waitForSpoken(t, h.speaker, 1)
	assert.Equal(t, "mediated output", h.speaker.LastText())
	assert.False(t, h.idleManager.IsIdle(), "output dispatch must signal activity")
}

func TestProcessInput_EmergencyFastPath(t *testing.T) {
	var mediatorCalls atomic.Int32
	mediator := mediation.Func(func(ctx context.Context, req *mediation.Request) (*mediation.Result, error) {
		mediatorCalls.Add(1)
		return &mediation.Result{MediatedText: "should never be used"}, nil
	})
	h := newHarness(t, Config{}, mediator)

	start := time.Now()
	err := h.controller.ProcessInput(context.Background(), InputEvent{Transcript: "chest pain"},
		Context{Mode: ModeDeafToHearing, Scenario: ScenarioEmergency}, true)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Equal(t, int32(0), mediatorCalls.Load(), "fast path must bypass mediation")
	assert.Less(t, elapsed, 150*time.Millisecond, "fast path must beat the emergency budget")

	events := h.collect(t, 4)
	assert.Equal(t, fullSequence, statuses(events))

	waitForSpoken(t, h.speaker, 1)
	assert.NotEmpty(t, h.speaker.LastText())
	assert.NotEqual(t, "should never be used", h.speaker.LastText())
}

func TestProcessInput_EmergencyMissFallsThroughToMediation(t *testing.T) {
	var mediatorCalls atomic.Int32
	mediator := mediation.Func(func(ctx context.Context, req *mediation.Request) (*mediation.Result, error) {
		mediatorCalls.Add(1)
		return &mediation.Result{MediatedText: "mediated anyway"}, nil
	})
	h := newHarness(t, Config{}, mediator)

	err := h.controller.ProcessInput(context.Background(), InputEvent{Transcript: "an uncached sentence"},
		Context{Mode: ModeDeafToHearing, Scenario: ScenarioEmergency}, true)
	require.NoError(t, err)

	assert.Equal(t, int32(1), mediatorCalls.Load(), "a fast-path miss must still mediate")
	waitForSpoken(t, h.speaker, 1)
	assert.Equal(t, "mediated anyway", h.speaker.LastText())
}

func TestProcessInput_MediationFailureUsesFallback(t *testing.T) {
	mediator := mediation.Func(func(ctx context.Context, req *mediation.Request) (*mediation.Result, error) {
		return nil, mediation.ErrFailed
	})
	h := newHarness(t, Config{}, mediator)

	var handlerErr error
	h.controller.SetErrorHandler(func(err error) { handlerErr = err })

	start := time.Now()
	err := h.controller.ProcessInput(context.Background(), InputEvent{Transcript: "something odd"},
		Context{Mode: ModeDeafToHearing, Scenario: ScenarioHospital}, false)
	require.NoError(t, err, "the cycle still completes on the degraded path")
	assert.Less(t, time.Since(start), 2*time.Second)

	events := h.collect(t, 4)
	assert.Equal(t, fullSequence, statuses(events))
	assert.NotEmpty(t, events[2].Err, "responding must carry the failure for observers")
	assert.NotEmpty(t, events[3].Err)

	assert.ErrorIs(t, handlerErr, mediation.ErrFailed)

	waitForSpoken(t, h.speaker, 1)
	assert.Equal(t, fallbackText(ScenarioHospital), h.speaker.LastText())
}

func TestProcessInput_MediationTimeoutUsesFallback(t *testing.T) {
	mediator := mediation.Func(func(ctx context.Context, req *mediation.Request) (*mediation.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := newHarness(t, Config{FallbackCeiling: 80 * time.Millisecond}, mediator)

	start := time.Now()
	err := h.controller.ProcessInput(context.Background(), InputEvent{Transcript: "slow request"},
		Context{Mode: ModeDeafToHearing, Scenario: ScenarioDefault}, false)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "fallback must land near the ceiling, not hang")

	events := h.collect(t, 4)
	assert.Equal(t, fullSequence, statuses(events))
	assert.Contains(t, events[3].Err, "timed out")

	waitForSpoken(t, h.speaker, 1)
	assert.Equal(t, fallbackText(ScenarioDefault), h.speaker.LastText())
}

func TestProcessInput_SupersededCycleGoesSilent(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 2)
	mediator := mediation.Func(func(ctx context.Context, req *mediation.Request) (*mediation.Result, error) {
		started <- struct{}{}
		select {
		case <-block:
			return &mediation.Result{MediatedText: "late result"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	h := newHarness(t, Config{}, mediator)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- h.controller.ProcessInput(context.Background(), InputEvent{Transcript: "first"},
			Context{Mode: ModeDeafToHearing, Scenario: ScenarioDefault}, false)
	}()
	<-started

	// Second input supersedes the blocked first cycle.
	go func() {
		_ = h.controller.ProcessInput(context.Background(), InputEvent{Transcript: "second"},
			Context{Mode: ModeDeafToHearing, Scenario: ScenarioDefault}, false)
	}()
	<-started
	close(block)

	select {
	case err := <-firstDone:
		assert.ErrorIs(t, err, context.Canceled, "superseded cycle reports cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle never returned")
	}

	// listening+understanding from both cycles, responding+speaking only from
	// the winner.
	events := h.collect(t, 6)
	winner := events[len(events)-1].Cycle
	for _, ev := range events {
		if ev.Status == status.StatusResponding || ev.Status == status.StatusSpeaking {
			assert.Equal(t, winner, ev.Cycle, "only the superseding cycle may reach output")
		}
	}

	waitForSpoken(t, h.speaker, 1)
	assert.Equal(t, "late result", h.speaker.LastText())
	assert.Equal(t, 1, h.speaker.SpokenCount(), "the superseded cycle must not speak")
}

func TestProcessInput_AnimationCacheSkipsRepeatMediation(t *testing.T) {
	var mediatorCalls atomic.Int32
	mediator := mediation.Func(func(ctx context.Context, req *mediation.Request) (*mediation.Result, error) {
		mediatorCalls.Add(1)
		return &mediation.Result{MediatedText: "WHERE HURT"}, nil
	})
	h := newHarness(t, Config{}, mediator)

	kv := store.NewMemoryStore()
	recognitions := contentcache.New[contentcache.SignRecognition](contentcache.Config{
		Namespace: "test.recognition",
	}, kv, zerolog.Nop())
	animations := contentcache.New[contentcache.AvatarAnimation](contentcache.Config{
		Namespace: "test.animation",
	}, kv, zerolog.Nop())
	h.controller.SetContentCaches(recognitions, animations)

	event := InputEvent{Transcript: "where does it hurt"}
	pctx := Context{Mode: ModeHearingToDeaf, Scenario: ScenarioHospital}

	require.NoError(t, h.controller.ProcessInput(context.Background(), event, pctx, false))
	require.NoError(t, h.controller.ProcessInput(context.Background(), event, pctx, false))

	assert.Equal(t, int32(1), mediatorCalls.Load(), "second identical input must come from cache")

	waitForSpoken(t, h.speaker, 2)
	assert.Equal(t, "WHERE HURT", h.speaker.LastText())
}

func TestProcessInput_RecordsRecognitionByPose(t *testing.T) {
	mediator := mediation.Func(func(ctx context.Context, req *mediation.Request) (*mediation.Result, error) {
		return &mediation.Result{MediatedText: "hello there"}, nil
	})
	h := newHarness(t, Config{}, mediator)

	recognitions := contentcache.New[contentcache.SignRecognition](contentcache.Config{
		Namespace: "test.recognition",
	}, store.NewMemoryStore(), zerolog.Nop())
	h.controller.SetContentCaches(recognitions, nil)

	pose := []float64{0.12, 0.34, 0.56}
	err := h.controller.ProcessInput(context.Background(),
		InputEvent{Signs: []string{"HELLO"}, Pose: pose},
		Context{Mode: ModeDeafToHearing, Scenario: ScenarioDefault}, false)
	require.NoError(t, err)

	entry, ok := recognitions.Get(contentcache.KeyForPose(pose))
	require.True(t, ok, "the cycle must record its recognition")
	assert.Equal(t, []string{"HELLO"}, entry.Payload.RecognizedSigns)
}

func TestDerivedPhrase(t *testing.T) {
	assert.Equal(t, "chest pain", InputEvent{Transcript: "chest pain"}.DerivedPhrase())
	assert.Equal(t, "HELP ME", InputEvent{Signs: []string{"HELP", "ME"}}.DerivedPhrase())
	assert.Equal(t, "spoken wins", InputEvent{
		Transcript: "spoken wins",
		Signs:      []string{"IGNORED"},
	}.DerivedPhrase())
}

func TestTokenizeGlosses(t *testing.T) {
	assert.Equal(t, []string{"WHERE", "HURT"}, tokenizeGlosses("Where hurt?"))
	assert.Equal(t, "WHERE HURT", joinGlosses(tokenizeGlosses("where, hurt!")))
	assert.Empty(t, tokenizeGlosses(""))
}
