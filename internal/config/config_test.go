package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("FRONTEND_URL", "https://study.example.org")
	t.Setenv("ROOM_SPEC_DIR", "/srv/roomSpecs")
	t.Setenv("LOBBY_THRESHOLD", "3")
	t.Setenv("LOBBY_WAIT", "90s")
	t.Setenv("MODERATOR_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.RoomSpecDir != "/srv/roomSpecs" {
		t.Errorf("RoomSpecDir = %q", cfg.RoomSpecDir)
	}
	if cfg.Lobby.Threshold != 3 {
		t.Errorf("Lobby.Threshold = %d, want 3", cfg.Lobby.Threshold)
	}
	if cfg.Lobby.Wait != 90*time.Second {
		t.Errorf("Lobby.Wait = %v, want 90s", cfg.Lobby.Wait)
	}
	if cfg.Moderator.Timeout != 30*time.Second {
		t.Errorf("Moderator.Timeout = %v, want 30s", cfg.Moderator.Timeout)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	// Empty PORT fails validation rather than silently falling back.
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for empty PORT")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Port:          "5000",
		RoomSpecDir:   "./roomSpecs",
		TranscriptDir: "./chatLogs",
		DBPath:        "./data/chatroom.db",
		Lobby:         LobbyConfig{Threshold: 2, Wait: 2 * time.Minute},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty port", func(c *Config) { c.Port = "" }, "PORT"},
		{"empty spec dir", func(c *Config) { c.RoomSpecDir = "" }, "ROOM_SPEC_DIR"},
		{"empty transcript dir", func(c *Config) { c.TranscriptDir = "" }, "TRANSCRIPT_DIR"},
		{"empty db path", func(c *Config) { c.DBPath = "" }, "DB_PATH"},
		{"zero lobby threshold", func(c *Config) { c.Lobby.Threshold = 0 }, "LOBBY_THRESHOLD"},
		{"zero lobby wait", func(c *Config) { c.Lobby.Wait = 0 }, "LOBBY_WAIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %s", err, tt.wantErr)
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		frontendURL string
		want        bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:3000", true},
		{"https://study.example.org", false},
	}

	for _, tt := range tests {
		cfg := Config{FrontendURL: tt.frontendURL}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment() with FRONTEND_URL=%q = %v, want %v", tt.frontendURL, got, tt.want)
		}
	}
}
