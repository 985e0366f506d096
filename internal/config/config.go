// Package config provides configuration management for SignBridge.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Phrase    PhraseConfig    `mapstructure:"phrase"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Idle      IdleConfig      `mapstructure:"idle"`
	Speech    SpeechConfig    `mapstructure:"speech"`
	Mediation MediationConfig `mapstructure:"mediation"`
	Store     StoreConfig     `mapstructure:"store"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// PipelineConfig holds the controller's latency budgets.
type PipelineConfig struct {
	EmergencyBudget time.Duration `mapstructure:"emergency_budget"`
	FallbackCeiling time.Duration `mapstructure:"fallback_ceiling"`
}

// PhraseConfig configures the phrase cache.
type PhraseConfig struct {
	// TermsFile is an optional JSON file of medical terms loaded at start
	// and hot-reloaded on change.
	TermsFile  string `mapstructure:"terms_file"`
	WatchTerms bool   `mapstructure:"watch_terms"`
}

// CacheConfig configures the two content cache instances.
type CacheConfig struct {
	RecognitionCapacity int           `mapstructure:"recognition_capacity"`
	AnimationCapacity   int           `mapstructure:"animation_capacity"`
	TTL                 time.Duration `mapstructure:"ttl"`
}

// IdleConfig configures the idle state machine.
type IdleConfig struct {
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	TransitionDuration time.Duration `mapstructure:"transition_duration"`
}

// SpeechConfig configures speech output.
type SpeechConfig struct {
	Provider string `mapstructure:"provider"` // command, null
	Binary   string `mapstructure:"binary"`
	BaseRate int    `mapstructure:"base_rate"` // words per minute
}

// MediationConfig configures the external mediation client.
type MediationConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// StoreConfig configures the durable key-value store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, file, memory
	Path   string `mapstructure:"path"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Pipeline: PipelineConfig{
			EmergencyBudget: 150 * time.Millisecond,
			FallbackCeiling: 2 * time.Second,
		},
		Phrase: PhraseConfig{
			TermsFile:  filepath.Join(home, ".signbridge", "medical_terms.json"),
			WatchTerms: true,
		},
		Cache: CacheConfig{
			RecognitionCapacity: 100,
			AnimationCapacity:   50,
			TTL:                 24 * time.Hour,
		},
		Idle: IdleConfig{
			IdleTimeout:        30 * time.Second,
			TransitionDuration: 800 * time.Millisecond,
		},
		Speech: SpeechConfig{
			Provider: "command",
			Binary:   "",
			BaseRate: 175,
		},
		Mediation: MediationConfig{
			ServerURL: "http://localhost:8080",
			Timeout:   2 * time.Second,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join(home, ".signbridge", "cache.db"),
		},
		Server: ServerConfig{
			Addr: ":8642",
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return cfg, err
	}

	configDir := filepath.Join(homeDir, ".signbridge")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("SIGNBRIDGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, use defaults and create one.
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file.
func Save(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(homeDir, ".signbridge")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("pipeline", cfg.Pipeline)
	viper.Set("phrase", cfg.Phrase)
	viper.Set("cache", cfg.Cache)
	viper.Set("idle", cfg.Idle)
	viper.Set("speech", cfg.Speech)
	viper.Set("mediation", cfg.Mediation)
	viper.Set("store", cfg.Store)
	viper.Set("server", cfg.Server)
	viper.Set("log", cfg.Log)

	return viper.WriteConfigAs(filepath.Join(configDir, "config.yaml"))
}

// Dir returns the configuration directory path.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".signbridge"), nil
}
