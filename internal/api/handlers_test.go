package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hopball-arena/internal/game"
)

type stubEngine struct {
	snap   *game.GameSnapshot
	ok     bool
	result *game.MatchResult
}

func (s *stubEngine) Snapshot() (*game.GameSnapshot, bool) { return s.snap, s.ok }
func (s *stubEngine) MatchID() string                      { return "match-under-test" }
func (s *stubEngine) Mode() string                         { return game.ModeDeathmatch }
func (s *stubEngine) Result() *game.MatchResult            { return s.result }
func (s *stubEngine) EventStats() map[string]any {
	return map[string]any{"total": uint64(7), "dropped": uint64(1)}
}

type stubResults struct {
	matches []game.MatchResult
	err     error
}

func (s *stubResults) RecentMatches(ctx context.Context, n int) ([]game.MatchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if n > len(s.matches) {
		n = len(s.matches)
	}
	return s.matches[:n], nil
}

func testSnapshot() *game.GameSnapshot {
	return &game.GameSnapshot{
		Sequence:  3,
		Timestamp: time.Now(),
		Tick:      90,
		MatchID:   "match-under-test",
		Mode:      game.ModeDeathmatch,
		Clock:     game.ClockSnapshot{Phase: "Playing", SecondsRemaining: 240},
		Players: []game.PlayerSnapshot{
			{ID: "p3", Name: "gamma", Rank: 3, Score: 1},
			{ID: "p1", Name: "alpha", Rank: 1, Score: 9},
			{ID: "p2", Name: "beta", Rank: 2, Score: 4},
		},
		PlayerCount: 3,
		AliveCount:  2,
	}
}

func newTestRouter(engine EngineView, results ResultsView) http.Handler {
	return NewRouter(RouterConfig{
		Engine:         engine,
		Results:        results,
		DisableLogging: true,
	})
}

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestRouter(&stubEngine{}, nil)
	rec := doGet(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
	if body["matchId"] != "match-under-test" {
		t.Errorf("matchId = %q", body["matchId"])
	}
}

func TestStateEndpoint(t *testing.T) {
	h := newTestRouter(&stubEngine{snap: testSnapshot(), ok: true}, nil)
	rec := doGet(t, h, "/api/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap game.GameSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Tick != 90 || snap.PlayerCount != 3 {
		t.Errorf("snapshot tick=%d players=%d, want 90 and 3", snap.Tick, snap.PlayerCount)
	}
}

func TestStateEndpointBeforeFirstTick(t *testing.T) {
	h := newTestRouter(&stubEngine{ok: false}, nil)
	rec := doGet(t, h, "/api/state")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestScoreboardSortsByRank(t *testing.T) {
	stub := &stubEngine{snap: testSnapshot(), ok: true}
	h := newTestRouter(stub, nil)
	rec := doGet(t, h, "/api/scoreboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Players []game.PlayerSnapshot `json:"players"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Players) != 3 {
		t.Fatalf("players = %d, want 3", len(body.Players))
	}
	for i, want := range []string{"p1", "p2", "p3"} {
		if body.Players[i].ID != want {
			t.Errorf("players[%d] = %s, want %s", i, body.Players[i].ID, want)
		}
	}

	// the handler must sort a copy, not the snapshot's own slice
	if stub.snap.Players[0].ID != "p3" {
		t.Error("handler reordered the published snapshot slice")
	}
}

func TestMatchEndpoint(t *testing.T) {
	stub := &stubEngine{snap: testSnapshot(), ok: true}
	h := newTestRouter(stub, nil)

	rec := doGet(t, h, "/api/match")
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, present := body["result"]; present {
		t.Error("result reported before the match ended")
	}

	stub.result = &game.MatchResult{MatchID: "match-under-test", Duration: 300}
	rec = doGet(t, h, "/api/match")
	body = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, present := body["result"]; !present {
		t.Error("finished match did not include its result")
	}
}

func TestHopballEndpoint(t *testing.T) {
	snap := testSnapshot()
	h := newTestRouter(&stubEngine{snap: snap, ok: true}, nil)

	rec := doGet(t, h, "/api/hopball")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status without hopball = %d, want 404", rec.Code)
	}

	snap.Hopball = game.HopballSnapshot{Present: true, Phase: "Held", Energy: 12, HolderID: "p1"}
	rec = doGet(t, h, "/api/hopball")
	if rec.Code != http.StatusOK {
		t.Fatalf("status with hopball = %d, want 200", rec.Code)
	}
	var ball game.HopballSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &ball); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ball.Energy != 12 || ball.HolderID != "p1" {
		t.Errorf("hopball = %+v", ball)
	}
}

func TestWeaponsEndpoint(t *testing.T) {
	h := newTestRouter(&stubEngine{}, nil)
	rec := doGet(t, h, "/api/weapons")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Weapons []game.WeaponSpec `json:"weapons"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Weapons) != len(game.GetAllWeaponSpecs()) {
		t.Errorf("weapons = %d, want %d", len(body.Weapons), len(game.GetAllWeaponSpecs()))
	}
	found := false
	for _, w := range body.Weapons {
		if w.ID == game.DefaultWeaponID {
			found = true
		}
	}
	if !found {
		t.Errorf("catalog response missing default weapon %q", game.DefaultWeaponID)
	}
}

func TestEventsEndpoint(t *testing.T) {
	h := newTestRouter(&stubEngine{}, nil)
	rec := doGet(t, h, "/api/events")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	audit, ok := body["audit"].(map[string]any)
	if !ok {
		t.Fatalf("audit block missing: %v", body)
	}
	if audit["total"] != float64(7) {
		t.Errorf("audit total = %v, want 7", audit["total"])
	}
}

func TestRecentResultsEndpoint(t *testing.T) {
	store := &stubResults{matches: []game.MatchResult{
		{MatchID: "m3"}, {MatchID: "m2"}, {MatchID: "m1"},
	}}
	h := newTestRouter(&stubEngine{}, store)

	rec := doGet(t, h, "/api/results/recent?n=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Matches []game.MatchResult `json:"matches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(body.Matches))
	}
	if body.Matches[0].MatchID != "m3" {
		t.Errorf("matches[0] = %s, want m3 (newest first)", body.Matches[0].MatchID)
	}
}

func TestRecentResultsValidation(t *testing.T) {
	h := newTestRouter(&stubEngine{}, &stubResults{})

	for _, bad := range []string{"0", "-3", "abc"} {
		rec := doGet(t, h, "/api/results/recent?n="+bad)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("n=%s status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestRecentResultsWithoutStore(t *testing.T) {
	h := newTestRouter(&stubEngine{}, nil)
	rec := doGet(t, h, "/api/results/recent")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Matches []game.MatchResult `json:"matches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Matches == nil || len(body.Matches) != 0 {
		t.Errorf("matches = %v, want empty list", body.Matches)
	}
}

func TestRecentResultsStoreError(t *testing.T) {
	h := newTestRouter(&stubEngine{}, &stubResults{err: errors.New("redis down")})
	rec := doGet(t, h, "/api/results/recent")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestReadOnlySurface(t *testing.T) {
	h := newTestRouter(&stubEngine{snap: testSnapshot(), ok: true}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/state", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /api/state status = %d, want 405", rec.Code)
	}
}
