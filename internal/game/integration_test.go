package game

import (
	"context"
	"testing"
	"time"
)

// indexOfKind returns the position of the first change of the given
// kind, -1 if absent.
func indexOfKind(changes []Change, kind string) int {
	for i, c := range changes {
		if c.Kind == kind {
			return i
		}
	}
	return -1
}

// TestMatchLifecycle runs a four-player deathmatch from lobby to
// teardown and checks the post-match sequence end to end
func TestMatchLifecycle(t *testing.T) {
	cfg, cast := testEngineConfig(ModeDeathmatch)
	cfg.MatchDuration = 2
	cfg.Podium = PodiumConfig{FadeDuration: 0.5, FadeBuffer: 0.25, HoldDuration: 0.5}
	resultCh := make(chan MatchResult, 1)
	cfg.OnMatchEnd = func(r MatchResult) { resultCh <- r }
	e := NewEngine(cfg)

	alice := joinPlayer(t, e, "alice")
	bob := joinPlayer(t, e, "bob")
	carol := joinPlayer(t, e, "carol")
	dave := joinPlayer(t, e, "dave")
	startMatch(t, e)

	// standings: alice 1 kill, carol 40 damage, bob 20 damage, dave idle
	landHit(t, e, bob, carol)
	landHit(t, e, carol, alice)
	landHit(t, e, carol, alice)
	for i := 0; i < 5; i++ {
		landHit(t, e, alice, bob)
	}
	if !bob.IsDead {
		t.Fatal("setup: bob survived five rifle hits")
	}

	// run out the clock
	for i := 0; i < 1000 && e.clock.Phase != PhasePostMatch; i++ {
		e.step(testDt)
	}
	if e.clock.Phase != PhasePostMatch {
		t.Fatal("match never expired")
	}

	// the sequence owns placement now: respawns are refused
	e.Submit(RespawnIntent{PlayerID: bob.ID})
	e.step(testDt)
	if !bob.IsDead {
		t.Fatal("respawn honored during post-match")
	}
	if len(cast.byKind(ChangeRespawn)) != 0 {
		t.Error("post-match respawn journaled")
	}

	// ...and void falls no longer kill
	e.Submit(MoveIntent{PlayerID: dave.ID, Position: Vec3{Y: -100}})
	e.step(testDt)
	if dave.IsDead {
		t.Error("void fall killed during post-match")
	}

	// drive the sequence through teardown
	for i := 0; i < 500 && !e.podium.Finished(); i++ {
		e.step(testDt)
	}
	if !e.podium.Finished() {
		t.Fatal("podium sequence never finished")
	}
	for i := 0; i < 50; i++ {
		e.step(testDt)
	}

	// the expiry transition fired exactly once
	postMatches := 0
	for _, c := range cast.byKind(ChangeMatchPhase) {
		if c.Data.(MatchPhaseData).Phase == PhasePostMatch {
			postMatches++
		}
	}
	if postMatches != 1 {
		t.Errorf("post-match transitions: got %d, want 1", postMatches)
	}

	// broadcast order: fade out, arrange, reveal, teardown
	fadeOut := indexOfKind(cast.changes, ChangeFadeOut)
	arrange := indexOfKind(cast.changes, ChangePodiumArrange)
	mask := indexOfKind(cast.changes, ChangeVisibilityMask)
	camera := indexOfKind(cast.changes, ChangeCameraSwitch)
	fadeIn := indexOfKind(cast.changes, ChangeFadeIn)
	ready := indexOfKind(cast.changes, ChangePodiumReady)
	teardown := indexOfKind(cast.changes, ChangeTeardown)
	for name, idx := range map[string]int{
		"fade_out": fadeOut, "arrange": arrange, "mask": mask,
		"camera": camera, "fade_in": fadeIn, "ready": ready, "teardown": teardown,
	} {
		if idx < 0 {
			t.Fatalf("missing %s record", name)
		}
	}
	if !(fadeOut < arrange && arrange < mask && mask < camera && camera < fadeIn && fadeIn < ready && ready < teardown) {
		t.Errorf("sequence order: fade_out=%d arrange=%d mask=%d camera=%d fade_in=%d ready=%d teardown=%d",
			fadeOut, arrange, mask, camera, fadeIn, ready, teardown)
	}

	// bob finished third dead; the podium brings him back upright
	if bob.IsDead || bob.Health != MaxHealth {
		t.Errorf("third place not resurrected: dead=%v health=%f", bob.IsDead, bob.Health)
	}
	if bob.Position != (Vec3{Z: 7}) || bob.Velocity != (Vec3{}) {
		t.Errorf("third place placement: pos=%+v vel=%+v", bob.Position, bob.Velocity)
	}
	if alice.Position != (Vec3{Z: 5}) {
		t.Errorf("winner placement: %+v", alice.Position)
	}

	// only dave is hidden
	maskData := cast.changes[mask].Data.(VisibilityMaskData)
	if len(maskData.HiddenIDs) != 1 || maskData.HiddenIDs[0] != dave.ID {
		t.Errorf("hidden: %v, want only dave", maskData.HiddenIDs)
	}

	readyData := cast.changes[ready].Data.(PodiumReadyData)
	if readyData.FirstName != "alice" || readyData.FirstScore != 1 {
		t.Errorf("first line: %+v", readyData)
	}
	if readyData.SecondName != "carol" || readyData.ThirdName != "bob" {
		t.Errorf("lines: %+v", readyData)
	}

	// final result is published and the callback fired
	res := e.Result()
	if res == nil {
		t.Fatal("no result")
	}
	if res.MatchID != e.MatchID() || res.Duration != 2 {
		t.Errorf("result identity: %s/%d", res.MatchID, res.Duration)
	}
	if len(res.Podium) != 3 || res.Podium[0].PlayerID != alice.ID {
		t.Errorf("result podium: %+v", res.Podium)
	}
	if len(res.Players) != 4 {
		t.Errorf("result players: %d", len(res.Players))
	}
	select {
	case got := <-resultCh:
		if got.MatchID != res.MatchID {
			t.Errorf("callback match id: %s", got.MatchID)
		}
	case <-time.After(2 * time.Second):
		t.Error("match end callback never fired")
	}

	if e.clock.Phase != PhaseEnded {
		t.Errorf("clock phase: %q", e.clock.Phase)
	}
	if n := len(cast.byKind(ChangeTeardown)); n != 1 {
		t.Errorf("teardown records: %d", n)
	}
}

// TestMultiplierGraceAndDecayInPlay verifies the speed multiplier
// lifecycle through live engine ticks: snap, hold, linear decay
func TestMultiplierGraceAndDecayInPlay(t *testing.T) {
	cfg, _ := testEngineConfig(ModeDeathmatch)
	e := NewEngine(cfg)
	a := joinPlayer(t, e, "alice")
	b := joinPlayer(t, e, "bob")
	startMatch(t, e)
	w := a.EquippedWeapon()

	e.Submit(MoveIntent{PlayerID: a.ID, Position: a.Position, Velocity: Vec3{X: 30}})
	e.step(testDt)
	if w.Multiplier != 2.5 {
		t.Fatalf("sprint multiplier: %f", w.Multiplier)
	}

	// stop moving; the peak holds through the grace window
	e.Submit(MoveIntent{PlayerID: a.ID, Position: a.Position, Velocity: Vec3{}})
	e.step(testDt)
	for i := 0; i < 18; i++ {
		e.step(testDt)
	}
	if w.Multiplier != 2.5 {
		t.Fatalf("grace hold: %f", w.Multiplier)
	}

	// eight decay ticks at 1.5/s: 2.5 - 8*0.09375 = 1.75
	for i := 0; i < 8; i++ {
		e.step(testDt)
	}
	if w.Multiplier != 1.75 {
		t.Fatalf("mid decay: %f, want 1.75", w.Multiplier)
	}

	// a hit fired mid-decay uses the decayed multiplier: 20 * 1.75 = 35
	e.Submit(DamageIntent{AttackerID: a.ID, TargetID: b.ID})
	e.step(testDt)
	if b.Health != 65 {
		t.Errorf("mid-decay hit: health %f, want 65", b.Health)
	}

	// decay bottoms out at exactly 1
	for i := 0; i < 10; i++ {
		e.step(testDt)
	}
	if w.Multiplier != 1.0 {
		t.Errorf("decay floor: %f", w.Multiplier)
	}
}

// TestTagModeFlow verifies initial designation, transfer on hit, time
// accrual, and the tag passing on a killing blow
func TestTagModeFlow(t *testing.T) {
	cfg, cast := testEngineConfig(ModeTag)
	cfg.MatchDuration = 120
	e := NewEngine(cfg)
	p1 := joinPlayer(t, e, "one")
	p2 := joinPlayer(t, e, "two")
	startMatch(t, e)

	// nobody is it until the designation delay passes
	for i := 0; i < 79; i++ {
		e.step(testDt)
	}
	if p1.IsIt || p2.IsIt {
		t.Fatal("someone is it before the designation delay")
	}
	e.step(testDt) // crosses 5s of play
	var it, other *PlayerSession
	switch {
	case p1.IsIt && !p2.IsIt:
		it, other = p1, p2
	case p2.IsIt && !p1.IsIt:
		it, other = p2, p1
	default:
		t.Fatalf("designation: p1=%v p2=%v", p1.IsIt, p2.IsIt)
	}
	tags := cast.byKind(ChangeTagTransfer)
	if len(tags) != 1 {
		t.Fatalf("tag records: %d", len(tags))
	}
	if d := tags[0].Data.(TagData); d.FromID != "" || d.ToID != it.ID {
		t.Errorf("designation record: %+v", d)
	}
	if it.Tags != 0 || it.Tagged != 0 {
		t.Error("designation counted as a transfer")
	}

	// the designated player accrues a second of tagged time
	for i := 0; i < 16; i++ {
		e.step(testDt)
	}
	if it.TimeTagged != 1 {
		t.Errorf("time tagged: %d, want 1", it.TimeTagged)
	}

	// any landed hit from it passes the tag
	landHit(t, e, it, other)
	if it.IsIt || !other.IsIt {
		t.Fatal("tag did not transfer on hit")
	}
	if it.Tags != 1 || other.Tagged != 1 {
		t.Errorf("counters: tags=%d tagged=%d", it.Tags, other.Tagged)
	}

	// a killing blow still passes the tag and it survives death
	it.Health = 20
	landHit(t, e, other, it)
	if !it.IsDead {
		t.Fatal("setup: hit was not lethal")
	}
	if !it.IsIt || other.IsIt {
		t.Error("tag did not pass on the killing blow")
	}

	// dead players accrue no tagged time
	before := it.TimeTagged
	for i := 0; i < 32; i++ {
		e.step(testDt)
	}
	if it.TimeTagged != before {
		t.Errorf("dead it accrued time: %d -> %d", before, it.TimeTagged)
	}

	// least tagged ranks first
	if e.board.Rank(other.ID) != 1 {
		t.Errorf("rank: other=%d, want 1", e.board.Rank(other.ID))
	}
}

// TestHopballModeFlow verifies pickup, clock-keyed drain with holder
// credit, dissolve on empty, and relocation with restored energy
func TestHopballModeFlow(t *testing.T) {
	cfg, cast := testEngineConfig(ModeHopball)
	cfg.Hopball = HopballConfig{MaxEnergy: 3, DrainInterval: 1}
	e := NewEngine(cfg)
	if e.hopball == nil {
		t.Fatal("no hopball in hopball mode")
	}

	alice := joinPlayer(t, e, "alice")
	bob := joinPlayer(t, e, "bob")

	// park bob away from the ball, stand alice on it
	e.Submit(MoveIntent{PlayerID: bob.ID, Position: Vec3{X: 500, Y: 2}})
	e.Submit(MoveIntent{PlayerID: alice.ID, Position: e.hopball.Position})
	e.step(testDt)
	startMatch(t, e)

	e.step(testDt)
	if e.hopball.Phase != HopballEquipped || e.hopball.HolderID != alice.ID {
		t.Fatalf("pickup: phase=%q holder=%q", e.hopball.Phase, e.hopball.HolderID)
	}
	snap, _ := e.Snapshot()
	if !snap.Hopball.Present || snap.Hopball.HolderID != alice.ID || snap.Hopball.MaxEnergy != 3 {
		t.Errorf("snapshot hopball: %+v", snap.Hopball)
	}

	// one energy drains per whole match second, credited to the holder
	for i := 0; i < 50 && e.hopball.Phase != HopballDissolving; i++ {
		e.step(testDt)
	}
	if e.hopball.Phase != HopballDissolving {
		t.Fatal("ball never dissolved")
	}
	if alice.Score != 3 || e.hopball.Energy != 0 {
		t.Errorf("drain: score=%d energy=%d", alice.Score, e.hopball.Energy)
	}
	if e.hopball.HolderID != alice.ID {
		t.Error("holder cleared at dissolve entry")
	}
	scores := cast.byKind(ChangeScore)
	if len(scores) != 3 {
		t.Errorf("score records: %d, want 3", len(scores))
	}
	if last := scores[len(scores)-1].Data.(ScoreData); last.Score != 3 {
		t.Errorf("last score record: %+v", last)
	}

	// dropping mid-dissolve releases the holder but cannot stop it
	e.Submit(DropBallIntent{PlayerID: alice.ID})
	e.step(testDt)
	if e.hopball.HolderID != "" {
		t.Error("holder kept through drop")
	}
	if e.hopball.Phase != HopballDissolving {
		t.Error("drop cancelled the dissolve")
	}
	e.Submit(MoveIntent{PlayerID: alice.ID, Position: Vec3{X: -500, Y: 2}})
	e.step(testDt)

	// completion relocates the ball with full energy
	for i := 0; i < 60 && e.hopball.Phase != HopballDropped; i++ {
		e.step(testDt)
	}
	if e.hopball.Phase != HopballDropped {
		t.Fatal("ball never relocated")
	}
	if e.hopball.Energy != 3 || e.hopball.DissolveAmount != 0 {
		t.Errorf("relocation: energy=%d dissolve=%f", e.hopball.Energy, e.hopball.DissolveAmount)
	}
	onSpawn := e.hopball.Position == (Vec3{X: -10, Y: 2}) || e.hopball.Position == (Vec3{X: 10, Y: 2})
	if !onSpawn {
		t.Errorf("relocation position: %+v", e.hopball.Position)
	}

	// the dissolve side effect fired exactly once
	energy := e.hopball.Energy
	for i := 0; i < 100; i++ {
		e.step(testDt)
	}
	if e.hopball.Phase != HopballDropped || e.hopball.Energy != energy {
		t.Error("idle ball changed state after relocation")
	}

	// a voluntary drop keeps the remaining energy for the next carrier
	cast.reset()
	e.Submit(MoveIntent{PlayerID: bob.ID, Position: e.hopball.Position})
	e.step(testDt)
	e.step(testDt)
	if e.hopball.HolderID != bob.ID {
		t.Fatalf("second pickup failed: holder=%q", e.hopball.HolderID)
	}
	for i := 0; i < 18 && bob.Score == 0; i++ {
		e.step(testDt)
	}
	if bob.Score != 1 || e.hopball.Energy != 2 {
		t.Fatalf("second carry: score=%d energy=%d", bob.Score, e.hopball.Energy)
	}
	e.Submit(DropBallIntent{PlayerID: bob.ID})
	e.step(testDt)
	if e.hopball.Phase != HopballDropped || e.hopball.Energy != 2 {
		t.Errorf("voluntary drop: phase=%q energy=%d", e.hopball.Phase, e.hopball.Energy)
	}
	drop, ok := cast.lastOfKind(ChangeHopballPhase)
	if !ok {
		t.Fatal("drop not journaled")
	}
	if d := drop.Data.(HopballPhaseData); d.Phase != HopballDropped || d.Energy != 2 || d.HolderID != "" {
		t.Errorf("drop record: %+v", d)
	}
}

// TestTeamScoresInResult verifies team kill totals ride through
// snapshots and the final result
func TestTeamScoresInResult(t *testing.T) {
	cfg, _ := testEngineConfig(ModeTeamDeathmatch)
	cfg.MatchDuration = 2
	cfg.Podium = PodiumConfig{FadeDuration: 0.25, FadeBuffer: 0.25, HoldDuration: 0.25}
	e := NewEngine(cfg)
	a := joinTeamPlayer(t, e, "alice", TeamRed)
	b := joinTeamPlayer(t, e, "bob", TeamBlue)
	startMatch(t, e)

	for i := 0; i < 5; i++ {
		landHit(t, e, a, b)
	}
	if !b.IsDead {
		t.Fatal("setup: bob survived")
	}

	snap, _ := e.Snapshot()
	if snap.TeamScores[TeamRed] != 1 {
		t.Errorf("snapshot team scores: %v", snap.TeamScores)
	}

	for i := 0; i < 1000 && !e.podium.Finished(); i++ {
		e.step(testDt)
	}
	res := e.Result()
	if res == nil {
		t.Fatal("no result")
	}
	if res.TeamScores[TeamRed] != 1 || res.TeamScores[TeamBlue] != 0 {
		t.Errorf("result team scores: %v", res.TeamScores)
	}
}

// TestEngineAuditTrail verifies a started event log receives the
// match's audit events
func TestEngineAuditTrail(t *testing.T) {
	events := NewEventLog(nil)
	if err := events.Start(""); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer events.Stop()

	cfg, _ := testEngineConfig(ModeDeathmatch)
	cfg.EventLog = events
	e := NewEngine(cfg)
	a := joinPlayer(t, e, "alice")
	b := joinPlayer(t, e, "bob")
	startMatch(t, e)
	landHit(t, e, a, b)

	if events.GetTotalCount() < uint64(e.tickCount) {
		t.Errorf("audit total %d below tick count %d", events.GetTotalCount(), e.tickCount)
	}
	stats := e.EventStats()
	if !stats["running"].(bool) {
		t.Error("stats report stopped log")
	}
}

// TestRunLoopLifecycle verifies the real tick loop serves submissions
// and honors stop and context cancellation
func TestRunLoopLifecycle(t *testing.T) {
	cfg, _ := testEngineConfig(ModeDeathmatch)
	cfg.TickRate = 120
	e := NewEngine(cfg)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	reply := make(chan JoinReply, 1)
	if !e.Submit(JoinIntent{Name: "alice", Reply: reply}) {
		t.Fatal("inbox full")
	}
	select {
	case r := <-reply:
		if !r.Ok {
			t.Fatalf("join rejected: %s", r.Reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("join reply never arrived")
	}

	e.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v after stop", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after stop")
	}

	// cancellation path
	e2 := NewEngine(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done2 := make(chan error, 1)
	go func() { done2 <- e2.Run(ctx) }()
	cancel()
	select {
	case err := <-done2:
		if err != context.Canceled {
			t.Errorf("run returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
