// Package config loads engine configuration from defaults and PREPFLOW_*
// environment variables. Secrets (service API keys) come from the
// environment only; a .env file is loaded by main before this runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Server       ServerConfig
	Interview    ServiceConfig
	Grading      ServiceConfig
	Entitlements ServiceConfig
	Storage      StorageConfig
	Speech       SpeechConfig
	Questions    QuestionsConfig
	Log          LogConfig
}

type ServerConfig struct {
	Port     int
	MCPPort  int
	APIToken string
}

// ServiceConfig addresses one external HTTP collaborator.
type ServiceConfig struct {
	BaseURL string
	APIKey  string
}

type StorageConfig struct {
	DataDir string
}

type SpeechConfig struct {
	Enabled    bool
	VoicePrefs []string
}

type QuestionsConfig struct {
	// BankPath optionally overrides the compiled-in question bank.
	BankPath string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4600,
			MCPPort: 4601,
		},
		Interview: ServiceConfig{
			BaseURL: "https://api.prepflow.dev/interview/v1",
		},
		Grading: ServiceConfig{
			BaseURL: "https://api.prepflow.dev/grading/v1",
		},
		Entitlements: ServiceConfig{
			BaseURL: "https://api.prepflow.dev/accounts/v1",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Speech: SpeechConfig{
			Enabled:    true,
			VoicePrefs: []string{"en-US-neural", "en-GB-neural"},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "prepflow")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".prepflow"
	}
	return filepath.Join(home, ".local", "share", "prepflow")
}

// Load builds the configuration from defaults overridden by environment
// variables. Remote API keys may be empty: the engine then runs fully in
// local mode.
func Load() (Config, error) {
	cfg := defaults()

	applyEnv(&cfg.Server.Port, "PREPFLOW_SERVER_PORT")
	applyEnv(&cfg.Server.MCPPort, "PREPFLOW_MCP_PORT")
	applyEnvString(&cfg.Server.APIToken, "PREPFLOW_API_TOKEN")
	applyEnvString(&cfg.Interview.BaseURL, "PREPFLOW_INTERVIEW_BASE_URL")
	applyEnvString(&cfg.Interview.APIKey, "PREPFLOW_INTERVIEW_API_KEY")
	applyEnvString(&cfg.Grading.BaseURL, "PREPFLOW_GRADING_BASE_URL")
	applyEnvString(&cfg.Grading.APIKey, "PREPFLOW_GRADING_API_KEY")
	applyEnvString(&cfg.Entitlements.BaseURL, "PREPFLOW_ENTITLEMENTS_BASE_URL")
	applyEnvString(&cfg.Entitlements.APIKey, "PREPFLOW_ENTITLEMENTS_API_KEY")
	applyEnvString(&cfg.Storage.DataDir, "PREPFLOW_DATA_DIR")
	applyEnvBool(&cfg.Speech.Enabled, "PREPFLOW_SPEECH_ENABLED")
	applyEnvString(&cfg.Questions.BankPath, "PREPFLOW_QUESTION_BANK")
	applyEnvString(&cfg.Log.Level, "PREPFLOW_LOG_LEVEL")

	if v := os.Getenv("PREPFLOW_VOICES"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.Speech.VoicePrefs = parts
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Server.MCPPort <= 0 || cfg.Server.MCPPort > 65535 {
		return fmt.Errorf("invalid MCP port %d", cfg.Server.MCPPort)
	}
	if cfg.Server.MCPPort == cfg.Server.Port {
		return fmt.Errorf("server and MCP ports must differ (both %d)", cfg.Server.Port)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Log.Level)
	}
	return nil
}

func applyEnvString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyEnv(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyEnvBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
