package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"hopball-arena/internal/game"
)

// EngineView is the read surface the HTTP handlers need. *game.Engine
// satisfies it; tests substitute a stub.
type EngineView interface {
	Snapshot() (*game.GameSnapshot, bool)
	MatchID() string
	Mode() string
	EventStats() map[string]any
	Result() *game.MatchResult
}

// ResultsView serves the match history endpoints.
type ResultsView interface {
	RecentMatches(ctx context.Context, n int) ([]game.MatchResult, error)
}

type routerHandlers struct {
	engine  EngineView
	results ResultsView
	hub     *Hub
	limiter *IPRateLimiter
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"matchId": h.engine.MatchID(),
		"mode":    h.engine.Mode(),
	})
}

// handleState returns the latest published snapshot verbatim. Clients
// polling this instead of holding a websocket get the same shape the
// socket's snapshot frames carry.
func (h *routerHandlers) handleState(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.engine.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *routerHandlers) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.engine.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}

	// copy before sorting; the snapshot's slice is shared with the pool
	players := make([]game.PlayerSnapshot, len(snap.Players))
	copy(players, snap.Players)
	sort.Slice(players, func(i, j int) bool { return players[i].Rank < players[j].Rank })

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":       snap.Mode,
		"tick":       snap.Tick,
		"players":    players,
		"teamScores": snap.TeamScores,
	})
}

func (h *routerHandlers) handleMatch(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.engine.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}
	resp := map[string]any{
		"matchId":     snap.MatchID,
		"mode":        snap.Mode,
		"clock":       snap.Clock,
		"playerCount": snap.PlayerCount,
		"aliveCount":  snap.AliveCount,
	}
	if len(snap.TeamScores) > 0 {
		resp["teamScores"] = snap.TeamScores
	}
	if result := h.engine.Result(); result != nil {
		resp["result"] = result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *routerHandlers) handleHopball(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.engine.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}
	if !snap.Hopball.Present {
		writeError(w, http.StatusNotFound, "no hopball in this mode")
		return
	}
	writeJSON(w, http.StatusOK, snap.Hopball)
}

func (h *routerHandlers) handleWeapons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"weapons": game.GetAllWeaponSpecs(),
	})
}

// handleEvents reports operational counters: audit log stats, rate
// limiter stats and live websocket sessions.
func (h *routerHandlers) handleEvents(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"audit": h.engine.EventStats(),
	}
	if h.limiter != nil {
		total, blocked := h.limiter.Stats()
		resp["requests"] = map[string]int64{"total": total, "blocked": blocked}
	}
	if h.hub != nil {
		resp["websocketClients"] = h.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *routerHandlers) handleRecentResults(w http.ResponseWriter, r *http.Request) {
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}
	if n > 50 {
		n = 50
	}

	if h.results == nil {
		writeJSON(w, http.StatusOK, map[string]any{"matches": []game.MatchResult{}})
		return
	}
	matches, err := h.results.RecentMatches(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "results store unavailable")
		return
	}
	if matches == nil {
		matches = []game.MatchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}
