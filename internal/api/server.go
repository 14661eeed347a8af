package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Engine is the full surface the server needs: the handlers' read
// view plus the hub's intent sink.
type Engine interface {
	EngineView
	EngineSink
}

// ServerConfig assembles the public HTTP surface.
type ServerConfig struct {
	Addr    string
	Engine  Engine
	Results ResultsView
	Logger  *zap.Logger

	CORSOrigins   []string
	RateLimit     RateLimitConfig
	MaxConns      int // websocket cap, total
	MaxConnsPerIP int // websocket cap, per client IP

	// SnapshotInterval is forwarded to the hub; zero means 100ms.
	SnapshotInterval time.Duration

	// ShutdownTimeout bounds graceful drain; zero means 10s.
	ShutdownTimeout time.Duration

	DisableLogging bool
}

// Server ties the router, the websocket hub and the rate limiter
// together. Construction starts no goroutines and opens no listeners;
// that all happens in Start, so tests can build a Server and hit its
// Router with httptest.
type Server struct {
	log      *zap.Logger
	hub      *Hub
	limiter  *IPRateLimiter
	router   *chi.Mux
	httpSrv  *http.Server
	shutdown time.Duration
}

// NewServer wires the HTTP surface. Callers still need to register
// the hub on the engine: engine.AddBroadcaster(srv.Hub()).
func NewServer(cfg ServerConfig) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	limiter := NewIPRateLimiter(cfg.RateLimit)
	hub := NewHub(HubConfig{
		Engine:           cfg.Engine,
		Limiter:          NewConnLimiter(cfg.MaxConns, cfg.MaxConnsPerIP),
		Origins:          NewOriginPolicy(cfg.CORSOrigins),
		Logger:           log,
		SnapshotInterval: cfg.SnapshotInterval,
	})

	router := NewRouter(RouterConfig{
		Engine:         cfg.Engine,
		Results:        cfg.Results,
		Hub:            hub,
		RateLimiter:    limiter,
		CORSOrigins:    cfg.CORSOrigins,
		DisableLogging: cfg.DisableLogging,
	})

	return &Server{
		log:     log,
		hub:     hub,
		limiter: limiter,
		router:  router,
		httpSrv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		shutdown: cfg.ShutdownTimeout,
	}
}

// Router exposes the handler chain for httptest.
func (s *Server) Router() *chi.Mux { return s.router }

// Hub exposes the websocket hub so the caller can register it as an
// engine broadcaster.
func (s *Server) Hub() *Hub { return s.hub }

// Start runs the server until ctx is cancelled or the listener fails,
// then drains gracefully. Always returns a non-nil reason on failure;
// a clean shutdown returns nil.
func (s *Server) Start(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)
	go s.hub.SnapshotLoop(hubCtx)
	defer s.limiter.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpSrv.ListenAndServe() }()
	s.log.Info("api server listening", zap.String("addr", s.httpSrv.Addr))

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// websocket connections are hijacked, so Shutdown does not wait
	// on them; close the hub first, then drain the HTTP side
	stopHub()
	drainCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := s.httpSrv.Shutdown(drainCtx); err != nil {
		return err
	}
	s.log.Info("api server stopped")
	return nil
}
