package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/normanking/signbridge/internal/config"
	"github.com/normanking/signbridge/internal/contentcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the persisted content caches",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache metrics for both namespaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, anim, cleanup, err := openCaches()
		if err != nil {
			return err
		}
		defer cleanup()

		recM := rec.Metrics()
		animM := anim.Metrics()
		out, err := json.MarshalIndent(map[string]any{
			"recognition": recM,
			"animation":   animM,
			"combined":    contentcache.AggregateMetrics(recM, animM),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty both cache namespaces and their persisted state",
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, anim, cleanup, err := openCaches()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := rec.Clear(); err != nil {
			return err
		}
		if err := anim.Clear(); err != nil {
			return err
		}
		fmt.Println("caches cleared")
		return nil
	},
}

func openCaches() (*contentcache.Cache[contentcache.SignRecognition], *contentcache.Cache[contentcache.AvatarAnimation], func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	kv, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	rec := contentcache.New[contentcache.SignRecognition](contentcache.Config{
		Namespace: namespaceRecognition,
		Capacity:  cfg.Cache.RecognitionCapacity,
		TTL:       cfg.Cache.TTL,
	}, kv, logger)
	anim := contentcache.New[contentcache.AvatarAnimation](contentcache.Config{
		Namespace: namespaceAnimation,
		Capacity:  cfg.Cache.AnimationCapacity,
		TTL:       cfg.Cache.TTL,
	}, kv, logger)

	return rec, anim, closeStore, nil
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
