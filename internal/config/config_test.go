package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaults verifies the standard arena settings
func TestDefaults(t *testing.T) {
	srv := DefaultServer()
	if srv.ListenAddr != "0.0.0.0:32571" {
		t.Errorf("Expected 0.0.0.0:32571, got %s", srv.ListenAddr)
	}
	if srv.WireFormat != "framed" {
		t.Errorf("Expected framed, got %s", srv.WireFormat)
	}

	game := DefaultGame()
	if game.TickRate != 24 || game.WorldWidth != 800 || game.WorldHeight != 600 || game.BoxCount != 20 {
		t.Errorf("Unexpected game defaults %+v", game)
	}

	bots := DefaultBots()
	if bots.Tick != 100*time.Millisecond || bots.ShootCooldown != 400*time.Millisecond {
		t.Errorf("Unexpected bot defaults %+v", bots)
	}
}

// TestServerFromEnv verifies overrides and invalid values
func TestServerFromEnv(t *testing.T) {
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("WIRE_FORMAT", "DELIMITED")
	t.Setenv("WRITE_TIMEOUT", "500ms")
	t.Setenv("MAX_PLAYERS", "not-a-number")

	cfg := ServerFromEnv()
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("Expected overridden addr, got %s", cfg.ListenAddr)
	}
	if cfg.WireFormat != "delimited" {
		t.Errorf("Expected delimited, got %s", cfg.WireFormat)
	}
	if cfg.WriteTimeout != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v", cfg.WriteTimeout)
	}
	if cfg.MaxPlayers != DefaultServer().MaxPlayers {
		t.Errorf("Expected default max players on bad input, got %d", cfg.MaxPlayers)
	}
}

// TestGetEnvDuration verifies both accepted formats
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Second},
		{"2s", 2 * time.Second},
		{"250", 250 * time.Millisecond},
		{"-5s", time.Second},
		{"soon", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := getEnvDuration("TEST_DURATION", time.Second); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestBotCountSources verifies BOT_COUNT wins over the bots file
func TestBotCountSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bots.txt")
	if err := os.WriteFile(path, []byte(" 7\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Setenv("BOTS_FILE", path)
	t.Setenv("BOT_COUNT", "")
	if got := BotsFromEnv().Count; got != 7 {
		t.Errorf("Expected 7 from file, got %d", got)
	}

	t.Setenv("BOT_COUNT", "3")
	if got := BotsFromEnv().Count; got != 3 {
		t.Errorf("Expected 3 from env, got %d", got)
	}
}

// TestReadBotCount verifies bad files fall back to zero bots
func TestReadBotCount(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"valid", "12", 12},
		{"whitespace", "\t4 \n", 4},
		{"garbage", "many", 0},
		{"negative", "-2", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			os.WriteFile(path, []byte(tt.content), 0o644)
			if got := ReadBotCount(path); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}

	if got := ReadBotCount(filepath.Join(dir, "missing")); got != 0 {
		t.Errorf("Expected 0 for missing file, got %d", got)
	}
}

// TestAPIFromEnv verifies CORS origin parsing
func TestAPIFromEnv(t *testing.T) {
	t.Setenv("API_ENABLED", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := APIFromEnv()
	if cfg.Enabled {
		t.Error("Expected API to be disabled")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected origins %v", cfg.CORSOrigins)
	}
}
