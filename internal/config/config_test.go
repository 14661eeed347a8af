package config

import (
	"reflect"
	"testing"
)

// clearEnv blanks every variable the loader reads so ambient CI
// settings cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"MATCH_MODE", "MATCH_DURATION", "MATCH_COUNTDOWN", "TICK_RATE",
		"MIN_PLAYERS", "MAX_PLAYERS", "VOID_Y", "SPAWN_POINTS",
		"PODIUM_ANCHORS", "AUDIT_LOG_PATH", "HOPBALL_ENERGY", "HOPBALL_DRAIN",
		"PORT", "CORS_ORIGINS", "WS_MAX_CONNS", "WS_MAX_CONNS_PER_IP",
		"RATE_LIMIT_PER_MINUTE", "SHUTDOWN_TIMEOUT",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "RESULTS_RECENT",
		"FEED_ENABLED", "FEED_SOCKET", "FEED_BUFFER",
		"DEBUG_ENABLED", "DEBUG_PORT", "LOG_LEVEL", "LOG_DEV",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if cfg.Match.Mode != "Deathmatch" {
		t.Errorf("match mode = %q, want Deathmatch", cfg.Match.Mode)
	}
	if cfg.Match.DurationSecs != 300 || cfg.Match.CountdownSecs != 5 {
		t.Errorf("clock defaults = %d/%d, want 300/5",
			cfg.Match.DurationSecs, cfg.Match.CountdownSecs)
	}
	if cfg.Match.TickRate != 30 {
		t.Errorf("tick rate = %d, want 30", cfg.Match.TickRate)
	}
	if cfg.Match.VoidY != -40 {
		t.Errorf("void y = %v, want -40", cfg.Match.VoidY)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, []string{"*"}) {
		t.Errorf("cors origins = %v, want [*]", cfg.Server.CORSOrigins)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("redis addr = %q, want empty (in-memory results)", cfg.Redis.Addr)
	}
	if cfg.Redis.RecentLimit != 50 {
		t.Errorf("recent limit = %d, want 50", cfg.Redis.RecentLimit)
	}
	if cfg.Feed.Enabled || cfg.Feed.Buffer != 256 {
		t.Errorf("feed = %+v, want disabled with buffer 256", cfg.Feed)
	}
	if cfg.Log.Level != "info" || cfg.Log.Development {
		t.Errorf("log = %+v, want info/production", cfg.Log)
	}
}

func TestMatchFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MATCH_MODE", "Hopball")
	t.Setenv("MATCH_DURATION", "120")
	t.Setenv("TICK_RATE", "64")
	t.Setenv("MIN_PLAYERS", "4")
	t.Setenv("VOID_Y", "-25.5")
	t.Setenv("SPAWN_POINTS", "0,2,0;12,2,-8,90")
	t.Setenv("HOPBALL_ENERGY", "3")
	t.Setenv("AUDIT_LOG_PATH", "/var/log/match.jsonl")

	cfg := MatchFromEnv()
	if cfg.Mode != "Hopball" {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if cfg.DurationSecs != 120 || cfg.TickRate != 64 || cfg.MinPlayers != 4 {
		t.Errorf("numeric overrides not applied: %+v", cfg)
	}
	if cfg.VoidY != -25.5 {
		t.Errorf("void y = %v, want -25.5", cfg.VoidY)
	}
	if cfg.SpawnPoints != "0,2,0;12,2,-8,90" {
		t.Errorf("spawn points = %q", cfg.SpawnPoints)
	}
	if cfg.HopballEnergy != 3 {
		t.Errorf("hopball energy = %d, want 3", cfg.HopballEnergy)
	}
	if cfg.AuditPath != "/var/log/match.jsonl" {
		t.Errorf("audit path = %q", cfg.AuditPath)
	}
	// untouched fields keep their defaults
	if cfg.CountdownSecs != 5 || cfg.MaxPlayers != 64 {
		t.Errorf("defaults disturbed: %+v", cfg)
	}
}

func TestMalformedValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MATCH_DURATION", "soon")
	t.Setenv("TICK_RATE", "-5")
	t.Setenv("PORT", "not-a-port")
	t.Setenv("VOID_Y", "low")
	t.Setenv("FEED_ENABLED", "maybe")

	match := MatchFromEnv()
	if match.DurationSecs != 300 {
		t.Errorf("duration = %d, want default 300", match.DurationSecs)
	}
	if match.TickRate != 30 {
		t.Errorf("tick rate = %d, want default 30", match.TickRate)
	}
	if match.VoidY != -40 {
		t.Errorf("void y = %v, want default -40", match.VoidY)
	}
	if srv := ServerFromEnv(); srv.Port != 3000 {
		t.Errorf("port = %d, want default 3000", srv.Port)
	}
	if feed := FeedFromEnv(); feed.Enabled {
		t.Error("unparseable FEED_ENABLED flipped the flag")
	}
}

func TestCORSOriginList(t *testing.T) {
	clearEnv(t)
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,,")

	cfg := ServerFromEnv()
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Errorf("origins = %v, want %v", cfg.CORSOrigins, want)
	}
}

func TestBoolFlags(t *testing.T) {
	clearEnv(t)
	for _, v := range []string{"1", "true", "TRUE", "t"} {
		t.Setenv("DEBUG_ENABLED", v)
		if !DebugFromEnv().Enabled {
			t.Errorf("DEBUG_ENABLED=%q not treated as true", v)
		}
	}
	t.Setenv("DEBUG_ENABLED", "0")
	if DebugFromEnv().Enabled {
		t.Error("DEBUG_ENABLED=0 treated as true")
	}
}

func TestRedisFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RESULTS_RECENT", "10")

	cfg := RedisFromEnv()
	if cfg.Addr != "localhost:6379" || cfg.DB != 3 || cfg.RecentLimit != 10 {
		t.Errorf("redis config = %+v", cfg)
	}
}
