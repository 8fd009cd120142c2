// Package config provides centralized configuration for the arena server
// and the bot swarm. Every section has a Default* constructor and a *FromEnv
// variant that applies environment overrides.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds TCP game server settings.
type ServerConfig struct {
	ListenAddr   string        // TCP address for game clients
	WireFormat   string        // "framed" or "delimited"
	WriteTimeout time.Duration // Per-client snapshot write deadline, 0 disables
	MaxPlayers   int           // Connection cap, 0 for unlimited
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		ListenAddr:   "0.0.0.0:32571",
		WireFormat:   "framed",
		WriteTimeout: 2 * time.Second,
		MaxPlayers:   64,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if wf := os.Getenv("WIRE_FORMAT"); wf != "" {
		cfg.WireFormat = strings.ToLower(wf)
	}
	cfg.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", cfg.WriteTimeout)
	if mp := getEnvInt("MAX_PLAYERS", -1); mp >= 0 {
		cfg.MaxPlayers = mp
	}

	return cfg
}

// =============================================================================
// GAME CONFIGURATION
// =============================================================================

// GameConfig holds simulation settings.
type GameConfig struct {
	TickRate     int // Simulation and broadcast ticks per second
	WorldWidth   int
	WorldHeight  int
	BoxCount     int
	MaxBullets   int    // Live bullet cap, 0 for none
	EventLogPath string // JSONL event log, empty disables
}

// DefaultGame returns the standard 24 Hz 800x600 arena.
func DefaultGame() GameConfig {
	return GameConfig{
		TickRate:     24,
		WorldWidth:   800,
		WorldHeight:  600,
		BoxCount:     20,
		MaxBullets:   2000,
		EventLogPath: "events.jsonl",
	}
}

// GameFromEnv returns game configuration with environment variable overrides.
func GameFromEnv() GameConfig {
	cfg := DefaultGame()

	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if w := getEnvInt("WORLD_WIDTH", 0); w > 0 {
		cfg.WorldWidth = w
	}
	if h := getEnvInt("WORLD_HEIGHT", 0); h > 0 {
		cfg.WorldHeight = h
	}
	if bc := getEnvInt("BOX_COUNT", -1); bc >= 0 {
		cfg.BoxCount = bc
	}
	if mb := getEnvInt("MAX_BULLETS", -1); mb >= 0 {
		cfg.MaxBullets = mb
	}
	if path, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = path
	}

	return cfg
}

// =============================================================================
// BOT CONFIGURATION
// =============================================================================

// BotConfig holds bot swarm settings.
type BotConfig struct {
	Count         int           // Number of bots to run
	Tick          time.Duration // Decision interval
	ShootCooldown time.Duration
	ServerAddr    string // Address bots dial
}

// DefaultBots returns the default bot configuration with no bots.
func DefaultBots() BotConfig {
	return BotConfig{
		Count:         0,
		Tick:          100 * time.Millisecond,
		ShootCooldown: 400 * time.Millisecond,
		ServerAddr:    "127.0.0.1:32571",
	}
}

// BotsFromEnv returns bot configuration. The count comes from BOT_COUNT, or
// else from the file named by BOTS_FILE (default "bots.txt").
func BotsFromEnv() BotConfig {
	cfg := DefaultBots()

	if raw := os.Getenv("BOT_COUNT"); raw != "" {
		cfg.Count = parseBotCount(raw, "BOT_COUNT")
	} else {
		path := os.Getenv("BOTS_FILE")
		if path == "" {
			path = "bots.txt"
		}
		cfg.Count = ReadBotCount(path)
	}

	cfg.Tick = getEnvDuration("BOT_TICK", cfg.Tick)
	cfg.ShootCooldown = getEnvDuration("BOT_SHOOT_COOLDOWN", cfg.ShootCooldown)
	if addr := os.Getenv("BOT_SERVER_ADDR"); addr != "" {
		cfg.ServerAddr = addr
	}

	return cfg
}

// ReadBotCount parses a bot count from a file holding a single integer.
// A missing file or invalid content yields 0.
func ReadBotCount(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("⚠️ Could not read %s: %v", path, err)
		}
		return 0
	}
	return parseBotCount(string(data), path)
}

func parseBotCount(raw, source string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		log.Printf("⚠️ Invalid bot count %q in %s, running without bots", strings.TrimSpace(raw), source)
		return 0
	}
	return n
}

// =============================================================================
// RATE LIMITS
// =============================================================================

// LimitsConfig holds per-client rate limits.
type LimitsConfig struct {
	CommandRate  float64 // TCP commands per second per player, 0 disables
	CommandBurst int
	HTTPRate     float64 // HTTP requests per second per IP
	HTTPBurst    int
}

// DefaultLimits returns limits comfortably above a 24 Hz client.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		CommandRate:  120,
		CommandBurst: 60,
		HTTPRate:     10,
		HTTPBurst:    20,
	}
}

// LimitsFromEnv returns limits with environment variable overrides.
func LimitsFromEnv() LimitsConfig {
	cfg := DefaultLimits()

	if r := getEnvFloat("CMD_RATE", -1); r >= 0 {
		cfg.CommandRate = r
	}
	if b := getEnvInt("CMD_BURST", 0); b > 0 {
		cfg.CommandBurst = b
	}
	if r := getEnvFloat("HTTP_RATE", 0); r > 0 {
		cfg.HTTPRate = r
	}
	if b := getEnvInt("HTTP_BURST", 0); b > 0 {
		cfg.HTTPBurst = b
	}

	return cfg
}

// =============================================================================
// API CONFIGURATION
// =============================================================================

// APIConfig holds the HTTP spectator API settings.
type APIConfig struct {
	Enabled      bool
	Addr         string
	CORSOrigins  []string // nil keeps the API defaults
	PushInterval time.Duration
	DebugEnabled bool // pprof and /metrics on localhost
}

// DefaultAPI returns the default API configuration.
func DefaultAPI() APIConfig {
	return APIConfig{
		Enabled:      true,
		Addr:         ":8080",
		PushInterval: 100 * time.Millisecond,
		DebugEnabled: true,
	}
}

// APIFromEnv returns API configuration with environment variable overrides.
func APIFromEnv() APIConfig {
	cfg := DefaultAPI()

	if os.Getenv("API_ENABLED") == "false" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	cfg.PushInterval = getEnvDuration("SPECTATOR_INTERVAL", cfg.PushInterval)
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.DebugEnabled = false
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server ServerConfig
	Game   GameConfig
	Bots   BotConfig
	Limits LimitsConfig
	API    APIConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server: ServerFromEnv(),
		Game:   GameFromEnv(),
		Bots:   BotsFromEnv(),
		Limits: LimitsFromEnv(),
		API:    APIFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("250ms") or plain milliseconds
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}
