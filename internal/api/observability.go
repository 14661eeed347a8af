package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics with bounded cardinality. No per-player or per-connection
// labels; a hostile client must not be able to grow a label set.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "match_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	matchPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "match_player_count",
		Help: "Current number of sessions in the match",
	})

	matchAlive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "match_alive_count",
		Help: "Current number of living players",
	})

	matchSecondsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "match_seconds_remaining",
		Help: "Whole seconds left on the match clock",
	})

	matchDeaths = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "match_deaths",
		Help: "Total deaths across the current match",
	})

	hopballEnergy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hopball_energy",
		Help: "Current hopball energy; zero outside hopball mode",
	})

	auditLogged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audit_events_logged",
		Help: "Events accepted by the audit log since start",
	})

	auditDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audit_events_dropped",
		Help: "Events shed by audit rate limits or backpressure",
	})

	intentsForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intents_forwarded_total",
		Help: "Client intents accepted into the engine inbox",
	}, []string{"op"}) // bounded: the websocket op vocabulary

	intentsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intents_rejected_total",
		Help: "Client intents refused before reaching the engine",
	}, []string{"reason"}) // bounded: "unbound", "rate", "payload", "inbox_full"

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by limits or origin checks",
	}, []string{"reason"}) // bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the chi route pattern

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active websocket sessions",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Frames written to websocket clients",
	})

	resultsErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "results_store_errors_total",
		Help: "Failed attempts to archive a finished match",
	})
)

// RecordTick feeds the tick histogram; wired to the engine's OnTick.
func RecordTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// UpdateMatchGauges refreshes the coarse match gauges. Called from the
// hub's snapshot loop so scrape values are at most one broadcast stale.
func UpdateMatchGauges(players, alive, secondsRemaining, deaths int) {
	matchPlayers.Set(float64(players))
	matchAlive.Set(float64(alive))
	matchSecondsRemaining.Set(float64(secondsRemaining))
	matchDeaths.Set(float64(deaths))
}

// UpdateHopballGauge tracks the ball's charge. Outside hopball mode the
// snapshot carries no ball and the gauge pins to zero.
func UpdateHopballGauge(present bool, energy int) {
	if !present {
		hopballEnergy.Set(0)
		return
	}
	hopballEnergy.Set(float64(energy))
}

// UpdateAuditGauges mirrors the audit log counters into prometheus.
func UpdateAuditGauges(logged, dropped int64) {
	auditLogged.Set(float64(logged))
	auditDropped.Set(float64(dropped))
}

// RecordIntentForwarded counts an intent accepted into the inbox.
func RecordIntentForwarded(op string) {
	intentsForwarded.WithLabelValues(op).Inc()
}

// RecordIntentRejected counts an intent refused at the transport.
// reason must be one of: "unbound", "rate", "payload", "inbox_full".
func RecordIntentRejected(reason string) {
	intentsRejected.WithLabelValues(reason).Inc()
}

// RecordConnectionRejected counts a refused connection attempt.
// reason must be one of: "rate_limit", "origin", "ws_total_limit",
// "ws_ip_limit".
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records one HTTP request against the route pattern.
func RecordRequest(method, endpoint string, status int, d time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(d.Seconds())
	requestTotal.WithLabelValues(method, endpoint, fmt.Sprintf("%d", status)).Inc()
}

// UpdateWSConnections sets the live websocket session gauge.
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages counts one frame written to a client.
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}

// RecordResultsError counts a match result that could not be archived.
func RecordResultsError() {
	resultsErrors.Inc()
}

// DebugConfig configures the internal observability server.
type DebugConfig struct {
	Enabled    bool
	ListenAddr string // must stay on loopback; pprof is not a public surface
}

// StartDebugServer serves pprof and prometheus on a loopback-only
// listener. Returns a shutdown func; no-op when disabled.
func StartDebugServer(cfg DebugConfig, log *zap.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:6060"
	}
	if host, port, err := net.SplitHostPort(cfg.ListenAddr); err != nil || !isLoopback(host) {
		// pprof exposes heap contents; never bind it to a public interface.
		forced := net.JoinHostPort("127.0.0.1", port)
		if err != nil || port == "" {
			forced = "127.0.0.1:6060"
		}
		log.Warn("debug server address forced to loopback",
			zap.String("requested", cfg.ListenAddr),
			zap.String("using", forced))
		cfg.ListenAddr = forced
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("debug server listening",
			zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("debug server stopped", zap.Error(err))
		}
	}()
	return srv.Shutdown
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
