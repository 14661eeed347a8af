package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries the dependencies the HTTP router needs. Every
// field but Engine is optional; tests usually pass just a stub engine.
type RouterConfig struct {
	// Engine is the match state source (required).
	Engine EngineView

	// Results serves match history; nil yields empty history.
	Results ResultsView

	// Hub serves the /ws route when present.
	Hub *Hub

	// RateLimiter guards the whole router when present. The caller
	// owns its lifecycle.
	RateLimiter *IPRateLimiter

	// CORSOrigins is the allowed origin list; empty means "*".
	CORSOrigins []string

	// DisableLogging silences per-request logs, mainly for tests.
	DisableLogging bool
}

// NewRouter builds the read-side HTTP surface. All mutation flows
// through the websocket; every route here is a GET.
func NewRouter(cfg RouterConfig) *chi.Mux {
	h := &routerHandlers{
		engine:  cfg.Engine,
		results: cfg.Results,
		hub:     cfg.Hub,
		limiter: cfg.RateLimiter,
	}

	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// rate limit before CORS: blocked clients should not get a
	// preflight conversation first
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Use(requestMetrics)

	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleState)
		r.Get("/scoreboard", h.handleScoreboard)
		r.Get("/match", h.handleMatch)
		r.Get("/hopball", h.handleHopball)
		r.Get("/weapons", h.handleWeapons)
		r.Get("/events", h.handleEvents)
		r.Get("/results/recent", h.handleRecentResults)
	})

	if cfg.Hub != nil {
		r.Get("/ws", cfg.Hub.HandleWS)
	}

	return r
}

// requestMetrics records latency and status per chi route pattern.
// The pattern, not the raw path, keeps metric cardinality bounded.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		RecordRequest(r.Method, endpoint, ww.Status(), time.Since(start))
	})
}
