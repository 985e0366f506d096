package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/normanking/signbridge/internal/config"
	"github.com/normanking/signbridge/internal/contentcache"
	"github.com/normanking/signbridge/internal/idle"
	"github.com/normanking/signbridge/internal/logging"
	"github.com/normanking/signbridge/internal/mediation"
	"github.com/normanking/signbridge/internal/phrase"
	"github.com/normanking/signbridge/internal/pipeline"
	"github.com/normanking/signbridge/internal/speech"
	"github.com/normanking/signbridge/internal/status"
	"github.com/normanking/signbridge/internal/store"
	syncx "github.com/normanking/signbridge/internal/sync"
)

const (
	namespaceRecognition = "signbridge.cache.recognition"
	namespaceAnimation   = "signbridge.cache.animation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mediation pipeline and presentation sync server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// inputRequest is the POST /api/input body.
type inputRequest struct {
	Transcript string    `json:"transcript,omitempty"`
	Signs      []string  `json:"signs,omitempty"`
	Pose       []float64 `json:"pose,omitempty"`
	Mode       string    `json:"mode"`
	Scenario   string    `json:"scenario"`
	Emergency  bool      `json:"emergency"`
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(&logging.Config{
		LogDir:  defaultLogDir(),
		Level:   logging.Level(cfg.Log.Level),
		Console: cfg.Log.Console,
	})
	if err != nil {
		return err
	}
	defer logger.Close()

	log := logger.Component("serve")

	kv, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	recognitions := contentcache.New[contentcache.SignRecognition](contentcache.Config{
		Namespace: namespaceRecognition,
		Capacity:  cfg.Cache.RecognitionCapacity,
		TTL:       cfg.Cache.TTL,
	}, kv, logger.Zerolog())
	animations := contentcache.New[contentcache.AvatarAnimation](contentcache.Config{
		Namespace: namespaceAnimation,
		Capacity:  cfg.Cache.AnimationCapacity,
		TTL:       cfg.Cache.TTL,
	}, kv, logger.Zerolog())

	phrases := phrase.NewCache(logger.Zerolog())
	if cfg.Phrase.TermsFile != "" {
		if count, err := phrase.LoadTermsFile(phrases, cfg.Phrase.TermsFile); err == nil {
			log.Info().Int("terms", count).Msg("Medical terms loaded")
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Msg("Failed to load medical terms")
		}
		if cfg.Phrase.WatchTerms {
			watcher, werr := phrase.NewWatcher(phrases, cfg.Phrase.TermsFile, logger.Zerolog())
			if werr != nil {
				log.Warn().Err(werr).Msg("Terms watcher unavailable")
			} else {
				defer watcher.Close()
			}
		}
	}

	idleManager := idle.NewManager(idle.Config{
		IdleTimeout:        cfg.Idle.IdleTimeout,
		TransitionDuration: cfg.Idle.TransitionDuration,
	}, logger.Zerolog())
	defer idleManager.Stop()

	broadcaster := status.NewBroadcaster()

	hub := syncx.NewHub(logger.Zerolog())
	defer hub.Close()

	idleManager.SetCallbacks(idle.Callbacks{
		OnTransitionStart: func() { hub.BroadcastIdleState(string(idle.StateTransitioning)) },
		OnTransitionEnd:   func() { hub.BroadcastIdleState(string(idleManager.State())) },
	})

	hubSub := broadcaster.Subscribe()
	defer hubSub.Unsubscribe()
	go hub.Forward(hubSub)

	mediator := mediation.NewClient(&mediation.ClientConfig{
		ServerURL: cfg.Mediation.ServerURL,
		Timeout:   cfg.Mediation.Timeout,
	}, logger.Zerolog())

	speaker := buildSpeaker(cfg, logger.Zerolog(), log)

	controller := pipeline.New(pipeline.Config{
		EmergencyBudget: cfg.Pipeline.EmergencyBudget,
		FallbackCeiling: cfg.Pipeline.FallbackCeiling,
	}, phrases, mediator, speaker, idleManager, broadcaster, logger.Zerolog())
	controller.SetContentCaches(recognitions, animations)
	controller.SetErrorHandler(func(err error) {
		log.Warn().Err(err).Msg("Mediation degraded to fallback output")
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", hub.HandleWS)
	mux.HandleFunc("POST /api/input", func(w http.ResponseWriter, r *http.Request) {
		var req inputRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		pctx := pipeline.Context{
			Mode:     pipeline.Mode(req.Mode),
			Scenario: pipeline.Scenario(req.Scenario),
		}
		if pctx.Scenario == "" {
			pctx.Scenario = pipeline.ScenarioDefault
		}
		event := pipeline.InputEvent{
			Transcript: req.Transcript,
			Signs:      req.Signs,
			Pose:       req.Pose,
		}
		go func() {
			if err := controller.ProcessInput(context.Background(), event, pctx, req.Emergency); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("Input cycle failed")
			}
		}()
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /api/metrics", func(w http.ResponseWriter, r *http.Request) {
		recM := recognitions.Metrics()
		animM := animations.Metrics()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"phrase":      phrases.Metrics(),
			"recognition": recM,
			"animation":   animM,
			"combined":    contentcache.AggregateMetrics(recM, animM),
		})
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config, log zerolog.Logger) (store.KVStore, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemoryStore(), func() {}, nil
	case "file":
		fs, err := store.NewFileStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	default:
		db, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			// Degrade to in-memory rather than refusing to start.
			log.Warn().Err(err).Msg("SQLite store unavailable, caches will not persist")
			return store.NewMemoryStore(), func() {}, nil
		}
		return db, func() { db.Close() }, nil
	}
}

func buildSpeaker(cfg *config.Config, zlog zerolog.Logger, log zerolog.Logger) speech.Speaker {
	if cfg.Speech.Provider == "null" {
		return speech.NewNullSpeaker()
	}
	speakerCfg := speech.DefaultCommandConfig()
	if cfg.Speech.Binary != "" {
		speakerCfg.Binary = cfg.Speech.Binary
	}
	if cfg.Speech.BaseRate > 0 {
		speakerCfg.BaseRate = cfg.Speech.BaseRate
	}
	cmdSpeaker := speech.NewCommandSpeaker(speakerCfg, zlog)
	if !cmdSpeaker.IsAvailable() {
		log.Warn().Str("binary", speakerCfg.Binary).Msg("TTS binary not found, speech output disabled")
		return speech.NewNullSpeaker()
	}
	return cmdSpeaker
}

func defaultLogDir() string {
	dir, err := config.Dir()
	if err != nil {
		return "logs"
	}
	return dir + "/logs"
}
