// Command server hosts one authoritative match: the engine loop, the
// REST and websocket surface, the local spectator feed and the
// loopback debug endpoint, all torn down together on SIGINT/SIGTERM
// or when the match runs its course.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"hopball-arena/internal/api"
	"hopball-arena/internal/config"
	"hopball-arena/internal/feed"
	"hopball-arena/internal/game"
	"hopball-arena/internal/results"
)

// feedSnapshotInterval is the full-state cadence on the spectator
// feed; deltas ride the change stream in between.
const feedSnapshotInterval = 250 * time.Millisecond

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// .env in the working directory, then the repo root when running
	// from cmd/server.
	if err := godotenv.Load(); err != nil {
		godotenv.Load("../.env")
	}

	cfg := config.Load()

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	spawns, err := game.ParseAnchors(cfg.Match.SpawnPoints)
	if err != nil {
		return fmt.Errorf("SPAWN_POINTS: %w", err)
	}
	podium, err := game.ParseAnchors(cfg.Match.PodiumAnchors)
	if err != nil {
		return fmt.Errorf("PODIUM_ANCHORS: %w", err)
	}

	eventLog := game.NewEventLog(logger)
	if err := eventLog.Start(cfg.Match.AuditPath); err != nil {
		logger.Warn("audit log disabled", zap.Error(err))
	}
	defer eventLog.Stop()

	var store results.Store
	if cfg.Redis.Addr != "" {
		rs, err := results.NewRedisStore(cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer rs.Close()
		store = rs
	} else {
		store = results.NewMemoryStore(cfg.Redis.RecentLimit)
		logger.Info("results kept in process memory; set REDIS_ADDR to persist them")
	}

	var pub *feed.Publisher
	if cfg.Feed.Enabled {
		pub = feed.NewPublisher(cfg.Feed.Socket, cfg.Feed.Buffer, logger)
	}

	limits := game.DefaultLimits()
	if cfg.Match.MaxPlayers > 0 {
		limits.MaxPlayers = cfg.Match.MaxPlayers
	}

	engine := game.NewEngine(game.EngineConfig{
		Mode:          cfg.Match.Mode,
		MatchDuration: cfg.Match.DurationSecs,
		Countdown:     cfg.Match.CountdownSecs,
		TickRate:      cfg.Match.TickRate,
		MinPlayers:    cfg.Match.MinPlayers,
		VoidY:         cfg.Match.VoidY,
		SpawnPoints:   spawns,
		PodiumAnchors: podium,
		Hopball: game.HopballConfig{
			MaxEnergy:     cfg.Match.HopballEnergy,
			DrainInterval: cfg.Match.HopballDrainSecs,
		},
		Limits:   limits,
		Logger:   logger,
		EventLog: eventLog,
		OnTick:   api.RecordTick,
		OnMatchEnd: func(result game.MatchResult) {
			archiveResult(logger, store, pub, result)
		},
	})

	srv := api.NewServer(api.ServerConfig{
		Addr:            fmt.Sprintf(":%d", cfg.Server.Port),
		Engine:          engine,
		Results:         store,
		Logger:          logger,
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimit:       api.RateLimitConfig{PerMinute: cfg.Server.RequestsPerMinute},
		MaxConns:        cfg.Server.MaxConns,
		MaxConnsPerIP:   cfg.Server.MaxConnsPerIP,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownSecs) * time.Second,
	})
	engine.AddBroadcaster(srv.Hub())

	if pub != nil {
		pub.SetHello(feed.HelloFrame{
			MatchID:  engine.MatchID(),
			Mode:     engine.Mode(),
			TickRate: cfg.Match.TickRate,
		})
		if err := pub.Start(); err != nil {
			logger.Warn("spectator feed disabled", zap.Error(err))
			pub = nil
		} else {
			engine.AddBroadcaster(pub)
			defer pub.Stop()
		}
	}

	stopDebug := api.StartDebugServer(api.DebugConfig{
		Enabled:    cfg.Debug.Enabled,
		ListenAddr: fmt.Sprintf("127.0.0.1:%d", cfg.Debug.Port),
	}, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stopDebug(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("match server starting",
		zap.String("match_id", engine.MatchID()),
		zap.String("mode", engine.Mode()),
		zap.Int("port", cfg.Server.Port),
		zap.Int("tick_rate", cfg.Match.TickRate),
		zap.Int("duration_secs", cfg.Match.DurationSecs),
		zap.Int("max_players", limits.MaxPlayers))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error { return srv.Start(ctx) })
	if pub != nil {
		g.Go(func() error { return feedSnapshots(ctx, engine, pub) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// feedSnapshots pushes periodic full snapshots to feed subscribers so
// late joiners converge without replaying the change stream.
func feedSnapshots(ctx context.Context, engine *game.Engine, pub *feed.Publisher) error {
	ticker := time.NewTicker(feedSnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if snap, ok := engine.Snapshot(); ok {
				pub.PublishSnapshot(snap)
			}
		}
	}
}

// archiveResult persists the final standings and hands them to feed
// subscribers.
func archiveResult(logger *zap.Logger, store results.Store, pub *feed.Publisher, result game.MatchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.RecordMatch(ctx, result); err != nil {
		api.RecordResultsError()
		logger.Error("match result not archived",
			zap.String("match_id", result.MatchID), zap.Error(err))
	}
	if pub != nil {
		pub.PublishResult(result)
	}
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
