// Package config centralizes every tunable the server reads from the
// environment. Defaults here are the single source of truth; the rest
// of the codebase takes values from a loaded AppConfig instead of
// calling os.Getenv.
package config

import (
	"os"
	"strconv"
	"strings"
)

// =============================================================================
// MATCH CONFIGURATION
// =============================================================================

// MatchConfig holds the rule set for the match the server hosts.
type MatchConfig struct {
	Mode          string  // Deathmatch, Team Deathmatch, Tag, Hopball
	DurationSecs  int     // playing-phase length
	CountdownSecs int     // pre-match countdown
	TickRate      int     // simulation ticks per second
	MinPlayers    int     // players required to start the countdown
	MaxPlayers    int     // hard session cap
	VoidY         float64 // kill plane height
	SpawnPoints   string  // anchor list, "x,y,z[,yaw];..."
	PodiumAnchors string  // anchor list for the top-three arrangement
	AuditPath     string  // JSONL audit log destination, empty disables

	HopballEnergy    int // hopball starting energy, hopball mode only
	HopballDrainSecs int // clock seconds per energy point drained
}

// DefaultMatch returns the default match configuration.
func DefaultMatch() MatchConfig {
	return MatchConfig{
		Mode:             "Deathmatch",
		DurationSecs:     300,
		CountdownSecs:    5,
		TickRate:         30,
		MinPlayers:       1,
		MaxPlayers:       64,
		VoidY:            -40,
		HopballEnergy:    20,
		HopballDrainSecs: 2,
	}
}

// MatchFromEnv returns match configuration with environment overrides.
func MatchFromEnv() MatchConfig {
	cfg := DefaultMatch()

	if m := os.Getenv("MATCH_MODE"); m != "" {
		cfg.Mode = m
	}
	if d := getEnvInt("MATCH_DURATION", 0); d > 0 {
		cfg.DurationSecs = d
	}
	if c := getEnvInt("MATCH_COUNTDOWN", 0); c > 0 {
		cfg.CountdownSecs = c
	}
	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if mp := getEnvInt("MIN_PLAYERS", 0); mp > 0 {
		cfg.MinPlayers = mp
	}
	if mp := getEnvInt("MAX_PLAYERS", 0); mp > 0 {
		cfg.MaxPlayers = mp
	}
	if v := getEnvFloat("VOID_Y", 0); v != 0 {
		cfg.VoidY = v
	}
	if s := os.Getenv("SPAWN_POINTS"); s != "" {
		cfg.SpawnPoints = s
	}
	if s := os.Getenv("PODIUM_ANCHORS"); s != "" {
		cfg.PodiumAnchors = s
	}
	if p := os.Getenv("AUDIT_LOG_PATH"); p != "" {
		cfg.AuditPath = p
	}
	if e := getEnvInt("HOPBALL_ENERGY", 0); e > 0 {
		cfg.HopballEnergy = e
	}
	if d := getEnvInt("HOPBALL_DRAIN", 0); d > 0 {
		cfg.HopballDrainSecs = d
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP and websocket transport settings.
type ServerConfig struct {
	Port              int
	CORSOrigins       []string // allowed origins, "*" for any
	MaxConns          int      // total concurrent websocket sessions
	MaxConnsPerIP     int      // websocket sessions per client address
	RequestsPerMinute int      // REST rate limit per client address
	ShutdownSecs      int      // graceful shutdown grace period
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:              3000,
		CORSOrigins:       []string{"*"},
		MaxConns:          500,
		MaxConnsPerIP:     10,
		RequestsPerMinute: 120,
		ShutdownSecs:      10,
	}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if o := os.Getenv("CORS_ORIGINS"); o != "" {
		cfg.CORSOrigins = splitList(o)
	}
	if n := getEnvInt("WS_MAX_CONNS", 0); n > 0 {
		cfg.MaxConns = n
	}
	if n := getEnvInt("WS_MAX_CONNS_PER_IP", 0); n > 0 {
		cfg.MaxConnsPerIP = n
	}
	if n := getEnvInt("RATE_LIMIT_PER_MINUTE", 0); n > 0 {
		cfg.RequestsPerMinute = n
	}
	if n := getEnvInt("SHUTDOWN_TIMEOUT", 0); n > 0 {
		cfg.ShutdownSecs = n
	}

	return cfg
}

// =============================================================================
// RESULTS STORAGE
// =============================================================================

// RedisConfig holds the match-results store settings. An empty Addr
// keeps results in process memory only.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	RecentLimit int // finished matches retained in the recent list
}

// DefaultRedis returns the default results-store configuration.
func DefaultRedis() RedisConfig {
	return RedisConfig{
		RecentLimit: 50,
	}
}

// RedisFromEnv returns redis configuration with environment overrides.
func RedisFromEnv() RedisConfig {
	cfg := DefaultRedis()

	if a := os.Getenv("REDIS_ADDR"); a != "" {
		cfg.Addr = a
	}
	if p := os.Getenv("REDIS_PASSWORD"); p != "" {
		cfg.Password = p
	}
	cfg.DB = getEnvInt("REDIS_DB", cfg.DB)
	if n := getEnvInt("RESULTS_RECENT", 0); n > 0 {
		cfg.RecentLimit = n
	}

	return cfg
}

// =============================================================================
// SPECTATOR FEED
// =============================================================================

// FeedConfig holds the local spectator feed settings.
type FeedConfig struct {
	Enabled bool
	Socket  string // endpoint path, empty uses the platform default
	Buffer  int    // frames buffered per subscriber before drop-oldest
}

// DefaultFeed returns the default feed configuration.
func DefaultFeed() FeedConfig {
	return FeedConfig{
		Buffer: 256,
	}
}

// FeedFromEnv returns feed configuration with environment overrides.
func FeedFromEnv() FeedConfig {
	cfg := DefaultFeed()

	cfg.Enabled = getEnvBool("FEED_ENABLED", cfg.Enabled)
	if s := os.Getenv("FEED_SOCKET"); s != "" {
		cfg.Socket = s
	}
	if b := getEnvInt("FEED_BUFFER", 0); b > 0 {
		cfg.Buffer = b
	}

	return cfg
}

// =============================================================================
// DEBUG & LOGGING
// =============================================================================

// DebugConfig holds the localhost pprof server settings.
type DebugConfig struct {
	Enabled bool
	Port    int
}

// DefaultDebug returns the default debug configuration.
func DefaultDebug() DebugConfig {
	return DebugConfig{Port: 6060}
}

// DebugFromEnv returns debug configuration with environment overrides.
func DebugFromEnv() DebugConfig {
	cfg := DefaultDebug()

	cfg.Enabled = getEnvBool("DEBUG_ENABLED", cfg.Enabled)
	if p := getEnvInt("DEBUG_PORT", 0); p > 0 {
		cfg.Port = p
	}

	return cfg
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level       string // debug, info, warn, error
	Development bool   // console encoder with stack traces
}

// DefaultLog returns the default logging configuration.
func DefaultLog() LogConfig {
	return LogConfig{Level: "info"}
}

// LogFromEnv returns logging configuration with environment overrides.
func LogFromEnv() LogConfig {
	cfg := DefaultLog()

	if l := os.Getenv("LOG_LEVEL"); l != "" {
		cfg.Level = strings.ToLower(l)
	}
	cfg.Development = getEnvBool("LOG_DEV", cfg.Development)

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Match  MatchConfig
	Server ServerConfig
	Redis  RedisConfig
	Feed   FeedConfig
	Debug  DebugConfig
	Log    LogConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Match:  MatchFromEnv(),
		Server: ServerFromEnv(),
		Redis:  RedisFromEnv(),
		Feed:   FeedFromEnv(),
		Debug:  DebugFromEnv(),
		Log:    LogFromEnv(),
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

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
