// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	FrontendURL   string
	RoomSpecDir   string
	PostDir       string
	NicknamePath  string
	TranscriptDir string
	DBPath        string
	Lobby         LobbyConfig
	Moderator     ModeratorConfig
}

// LobbyConfig controls the pre-assignment waiting lobby.
type LobbyConfig struct {
	Threshold int
	Wait      time.Duration
}

// ModeratorConfig configures the intervention agent. An empty APIKey
// disables model-generated interventions for the process.
type ModeratorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "5000"),
		FrontendURL:   getEnv("FRONTEND_URL", ""),
		RoomSpecDir:   getEnv("ROOM_SPEC_DIR", "./private/chatPrograms/roomSpecs"),
		PostDir:       getEnv("POST_DIR", "./private/chatPrograms/posts"),
		NicknamePath:  getEnv("NICKNAME_PATH", "./private/nickNames.json"),
		TranscriptDir: getEnv("TRANSCRIPT_DIR", "./private/chatLogs"),
		DBPath:        getEnv("DB_PATH", "./data/chatroom.db"),
		Lobby: LobbyConfig{
			Threshold: getEnvInt("LOBBY_THRESHOLD", 2),
			Wait:      getEnvDuration("LOBBY_WAIT", 2*time.Minute),
		},
		Moderator: ModeratorConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o"),
			Timeout: getEnvDuration("MODERATOR_TIMEOUT", 45*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.RoomSpecDir == "" {
		return fmt.Errorf("ROOM_SPEC_DIR cannot be empty")
	}
	if c.TranscriptDir == "" {
		return fmt.Errorf("TRANSCRIPT_DIR cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Lobby.Threshold < 1 {
		return fmt.Errorf("LOBBY_THRESHOLD must be >= 1")
	}
	if c.Lobby.Wait <= 0 {
		return fmt.Errorf("LOBBY_WAIT must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
