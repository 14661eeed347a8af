package game

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTickRate   = 30
	DefaultMinPlayers = 1
	DefaultVoidY      = -40.0

	// Inbox sized so a full tick of intents from every player fits
	// without blocking the transports.
	defaultInboxSize = 4096
)

var defaultLoadout = []string{DefaultWeaponID, "pistol"}

// EngineConfig wires one match. Zero values get sensible defaults.
type EngineConfig struct {
	Mode          string
	MatchDuration int // seconds of play time
	Countdown     int // pre-match countdown seconds
	TickRate      int // simulation ticks per second
	MinPlayers    int // players required to leave the lobby
	VoidY         float64
	Seed          int64 // 0 seeds from the wall clock

	SpawnPoints   []Anchor
	PodiumAnchors []Anchor
	Loadout       []string // weapon IDs granted on join

	Hopball HopballConfig
	Podium  PodiumConfig
	Limits  ResourceLimits

	Logger   *zap.Logger
	EventLog *EventLog

	Broadcasters []Broadcaster

	// OnTick runs on the engine goroutine after every tick; keep it
	// cheap. OnMatchEnd receives the final standings exactly once,
	// on its own goroutine, when the podium is arranged.
	OnTick     func(time.Duration)
	OnMatchEnd func(MatchResult)
}

// MatchResult is the immutable record of a finished match.
type MatchResult struct {
	MatchID    string           `json:"matchId"`
	Mode       string           `json:"mode"`
	EndedAt    time.Time        `json:"endedAt"`
	Duration   int              `json:"duration"`
	Podium     []PodiumEntry    `json:"podium"`
	Players    []PlayerSnapshot `json:"players"`
	TeamScores map[string]int   `json:"teamScores,omitempty"`
}

// Engine owns all match state and runs it on a single goroutine.
// Transports submit intents through the inbox and read published
// snapshots; nothing else touches the maps. That single-writer rule
// is what makes the whole package lock-free.
type Engine struct {
	log     *zap.Logger
	limits  ResourceLimits
	matchID string
	mode    string

	tickRate     int
	minPlayers   int
	voidY        float64
	durationSecs int

	players map[string]*PlayerSession
	order   []string // join order, the deterministic iteration order

	clock     *MatchClock
	hopball   *Hopball // nil in every mode but hopball
	podium    *PodiumSequencer
	podiumCfg PodiumConfig
	board     *Scoreboard
	spawns    *SpawnPool
	anchors   []Anchor
	loadout   []WeaponSpec

	auth    *Authority
	journal *Journal
	casters []Broadcaster
	snaps   *SnapshotPool
	events  *EventLog

	inbox    chan Intent
	stopChan chan struct{}
	stopOnce sync.Once

	tickCount uint64
	now       float64 // engine clock, seconds since Run
	rng       *rand.Rand
	rngSeed   int64

	result *MatchResult
	onTick func(time.Duration)
	onEnd  func(MatchResult)
}

// NewEngine builds a match engine from config. It does not start the
// loop; call Run.
func NewEngine(cfg EngineConfig) *Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if !ValidMode(cfg.Mode) {
		if cfg.Mode != "" {
			log.Warn("unknown game mode, defaulting to deathmatch", zap.String("mode", cfg.Mode))
		}
		cfg.Mode = ModeDeathmatch
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.MinPlayers <= 0 {
		cfg.MinPlayers = DefaultMinPlayers
	}
	if cfg.VoidY == 0 {
		cfg.VoidY = DefaultVoidY
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.MatchDuration <= 0 {
		cfg.MatchDuration = DefaultMatchDuration
	}
	limits := cfg.Limits
	if limits.MaxPlayers <= 0 {
		limits = DefaultLimits()
	}
	if len(cfg.Loadout) == 0 {
		cfg.Loadout = defaultLoadout
	}
	pcfg := cfg.Podium
	if pcfg.FadeDuration <= 0 {
		pcfg.FadeDuration = DefaultPodiumFade
	}
	if pcfg.FadeBuffer <= 0 {
		pcfg.FadeBuffer = DefaultPodiumBuffer
	}
	if pcfg.HoldDuration <= 0 {
		pcfg.HoldDuration = DefaultPodiumHold
	}
	events := cfg.EventLog
	if events == nil {
		events = NewEventLog(log)
	}

	e := &Engine{
		log:          log,
		limits:       limits,
		matchID:      uuid.NewString(),
		mode:         cfg.Mode,
		tickRate:     cfg.TickRate,
		minPlayers:   cfg.MinPlayers,
		voidY:        cfg.VoidY,
		durationSecs: cfg.MatchDuration,
		players:      make(map[string]*PlayerSession, limits.MaxPlayers),
		order:        make([]string, 0, limits.MaxPlayers),
		clock:        NewMatchClock(cfg.MatchDuration, cfg.Countdown),
		podiumCfg:    pcfg,
		board:        NewScoreboard(cfg.Mode, cfg.Seed),
		spawns:       NewSpawnPool(cfg.SpawnPoints),
		anchors:      cfg.PodiumAnchors,
		loadout:      resolveLoadout(cfg.Loadout),
		journal:      NewJournal(limits.MaxPendingChanges),
		casters:      cfg.Broadcasters,
		snaps:        NewSnapshotPool(limits),
		events:       events,
		inbox:        make(chan Intent, defaultInboxSize),
		stopChan:     make(chan struct{}),
		rng:          rand.New(rand.NewSource(cfg.Seed)),
		rngSeed:      cfg.Seed,
		onTick:       cfg.OnTick,
		onEnd:        cfg.OnMatchEnd,
	}
	e.auth = &Authority{e: e}
	e.podium = NewPodiumSequencer(pcfg, PodiumCallbacks{
		FadeOut:  e.podiumFadeOut,
		Arrange:  e.podiumArrange,
		Ready:    e.podiumReady,
		Teardown: e.podiumTeardown,
	}, log)

	if cfg.Mode == ModeHopball {
		ball, ok := NewHopball(cfg.Hopball, e.spawns, e.rng)
		if !ok {
			log.Warn("hopball spawn pool empty, using fallback location")
		}
		e.hopball = ball
	}
	return e
}

// AddBroadcaster registers another change sink. Transports that need
// the engine at their own construction wire themselves in here. Must
// be called before Run.
func (e *Engine) AddBroadcaster(b Broadcaster) {
	if b != nil {
		e.casters = append(e.casters, b)
	}
}

// Run drives the tick loop until the context is cancelled or the
// match tears itself down after the podium.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(e.tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dt := interval.Seconds()
	e.log.Info("engine started",
		zap.String("match_id", e.matchID),
		zap.String("mode", e.mode),
		zap.Int("tick_rate", e.tickRate))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stopChan:
			return nil
		case <-ticker.C:
			start := time.Now()
			e.step(dt)
			if e.onTick != nil {
				e.onTick(time.Since(start))
			}
		}
	}
}

// Stop ends the loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
}

// Submit queues an intent for the next tick. Returns false when the
// inbox is full; callers drop on the floor rather than block.
func (e *Engine) Submit(in Intent) bool {
	select {
	case e.inbox <- in:
		return true
	default:
		return false
	}
}

// step advances the whole simulation by dt seconds. Everything the
// match does happens in here, in a fixed order, on one goroutine.
func (e *Engine) step(dt float64) {
	e.tickCount++
	e.now += dt

	// Advance the seed first so every random draw this tick is
	// reproducible from the audit record alone.
	e.rngSeed = e.rng.Int63()
	e.rng.Seed(e.rngSeed)
	e.events.EmitSimple(EventTypeTick, e.tickCount, "", TickPayload{
		DurationMicros: int64(dt * 1e6),
		Players:        len(e.players),
		RNGSeed:        e.rngSeed,
	})

	e.drainInbox()
	e.advanceWeapons(dt)

	if e.clock.Phase == PhaseWaiting && len(e.players) >= e.minPlayers {
		if e.clock.BeginCountdown() {
			e.journal.Record(e.tickCount, ChangeMatchPhase, "", MatchPhaseData{
				Phase:         PhaseCountdown,
				CountdownLeft: e.clock.CountdownLeft,
			})
		}
	}

	ev := e.clock.Advance(dt)
	if ev.CountdownChanged && e.clock.Phase == PhaseCountdown {
		e.journal.Record(e.tickCount, ChangeMatchPhase, "", MatchPhaseData{
			Phase:         PhaseCountdown,
			CountdownLeft: e.clock.CountdownLeft,
		})
	}
	if ev.MatchStarted {
		e.journal.Record(e.tickCount, ChangeMatchPhase, "", MatchPhaseData{Phase: PhasePlaying})
		e.journal.Record(e.tickCount, ChangeMatchTime, "", MatchTimeData{
			SecondsRemaining: e.clock.SecondsRemaining,
		})
		e.events.EmitSimple(EventTypeMatchStart, e.tickCount, "", nil)
		e.log.Info("match started",
			zap.String("mode", e.mode),
			zap.Int("duration_secs", e.clock.SecondsRemaining))
	}
	for i := 0; i < ev.SecondsTicked; i++ {
		e.onClockSecond()
	}
	if ev.TagCheckDue && e.mode == ModeTag {
		e.auth.DesignateInitialIt()
	}
	if ev.Expired {
		e.journal.Record(e.tickCount, ChangeMatchPhase, "", MatchPhaseData{Phase: PhasePostMatch})
		e.podium.Start()
	}

	if e.hopball != nil {
		if e.clock.Phase == PhasePlaying {
			e.scanPickup()
		}
		relocated, spawnOK := e.hopball.Advance(dt, e.spawns, e.rng)
		if relocated {
			if !spawnOK {
				e.log.Warn("hopball spawn pool empty, using fallback")
			}
			e.journal.Record(e.tickCount, ChangeHopballPhase, "", e.hopballPhaseData())
			e.events.EmitSimple(EventTypeHopballRespawn, e.tickCount, "", nil)
		}
		if vis, changed := e.hopball.VisualChanged(); changed {
			e.journal.Record(e.tickCount, ChangeHopballVisual, "", vis)
		}
	}

	e.checkVoidFalls()
	e.podium.Advance(dt)
	e.flushChanges()
	e.publishSnapshot()
}

// drainInbox applies queued intents up to the per-tick budget.
// Whatever is left waits for the next tick.
func (e *Engine) drainInbox() {
	for i := 0; i < e.limits.MaxIntentsPerTick; i++ {
		select {
		case in := <-e.inbox:
			e.handleIntent(in)
		default:
			return
		}
	}
}

func (e *Engine) handleIntent(in Intent) {
	switch m := in.(type) {
	case JoinIntent:
		e.handleJoin(m)
	case LeaveIntent:
		e.removePlayer(m.PlayerID)
	case MoveIntent:
		e.handleMove(m)
	case DamageIntent:
		e.handleDamage(m)
	case RespawnIntent:
		if p := e.players[m.PlayerID]; p != nil {
			e.auth.Respawn(p)
		}
	case ReloadIntent:
		if p := e.players[m.PlayerID]; p != nil {
			e.auth.BeginReload(p)
		}
	case FireModeIntent:
		if p := e.players[m.PlayerID]; p != nil {
			e.auth.SetFireMode(p, m.Mode)
		}
	case SwitchWeaponIntent:
		if p := e.players[m.PlayerID]; p != nil {
			e.auth.SwitchWeapon(p, m.Slot)
		}
	case DropBallIntent:
		if p := e.players[m.PlayerID]; p != nil {
			e.auth.DropBall(p)
		}
	}
}

func (e *Engine) handleJoin(m JoinIntent) {
	reply := func(r JoinReply) {
		if m.Reply != nil {
			select {
			case m.Reply <- r:
			default:
			}
		}
	}

	if len(e.players) >= e.limits.MaxPlayers {
		e.log.Warn("player limit reached, rejecting join",
			zap.Int("limit", e.limits.MaxPlayers))
		reply(JoinReply{Reason: "server full"})
		return
	}

	name := sanitizeName(m.Name, e.limits.MaxNameLength)
	team := ""
	if ModeUsesTeams(e.mode) {
		team = m.Team
		if team != TeamRed && team != TeamBlue {
			team = e.smallerTeam()
		}
	}
	loadout := e.loadout
	if len(m.Loadout) > 0 {
		loadout = resolveLoadout(m.Loadout)
	}

	p := NewPlayerSession(name, team, loadout, e.now)
	anchor, ok := e.spawns.Next()
	if !ok {
		e.log.Warn("no spawn points configured, using fallback spawn")
	}
	p.Position = anchor.Position

	e.players[p.ID] = p
	e.order = append(e.order, p.ID)
	e.board.Update(p)

	e.journal.Record(e.tickCount, ChangePlayerJoined, p.ID, PlayerJoinedData{
		Name:     p.Name,
		Team:     p.Team,
		Position: p.Position,
	})
	e.events.EmitSimple(EventTypePlayerJoin, e.tickCount, p.ID, nil)
	e.log.Info("player joined",
		zap.String("player_id", p.ID),
		zap.String("name", p.Name),
		zap.String("team", p.Team))

	reply(JoinReply{PlayerID: p.ID, Ok: true})
}

// smallerTeam balances auto-assignment, red on ties.
func (e *Engine) smallerTeam() string {
	red, blue := 0, 0
	for _, p := range e.players {
		switch p.Team {
		case TeamRed:
			red++
		case TeamBlue:
			blue++
		}
	}
	if blue < red {
		return TeamBlue
	}
	return TeamRed
}

func (e *Engine) handleMove(m MoveIntent) {
	p := e.players[m.PlayerID]
	if p == nil || p.IsDead {
		return
	}
	p.Position = m.Position
	p.Velocity = m.Velocity
	p.Speed = math.Min(m.Velocity.Length(), e.limits.MaxSpeed)
}

// handleDamage validates a hit claim and runs it through the damage
// pipeline. The server recomputes the amount from the equipped weapon;
// the claimed amount can only lower the base (partial pellet hits).
func (e *Engine) handleDamage(m DamageIntent) {
	if e.clock.Phase != PhasePlaying {
		return
	}
	attacker := e.players[m.AttackerID]
	target := e.players[m.TargetID]
	if attacker == nil || target == nil || attacker == target {
		return
	}
	if attacker.IsDead || target.IsDead {
		return
	}
	if ModeUsesTeams(e.mode) && attacker.Team == target.Team {
		return
	}
	w := attacker.EquippedWeapon()
	if w == nil || !w.TryFire(e.now) {
		return
	}
	e.journal.Record(e.tickCount, ChangeAmmo, attacker.ID, AmmoData{
		Slot:      attacker.Equipped,
		Ammo:      w.Ammo,
		Reloading: w.Reloading,
	})

	base := w.Spec.Damage
	if m.Amount > 0 && m.Amount < base {
		base = m.Amount
	}
	amount := math.Min(base*w.Multiplier, w.Spec.DamageCap)
	e.auth.ApplyDamage(target, amount, m.Point, m.Normal, attacker.ID, w.Spec.ID, base, w.Multiplier)
}

func (e *Engine) removePlayer(id string) {
	p := e.players[id]
	if p == nil {
		return
	}
	if e.hopball != nil && e.hopball.HolderID == id {
		e.dropBallAt(id, p.Position)
	}
	delete(e.players, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.board.Remove(id)

	e.journal.Record(e.tickCount, ChangePlayerLeft, id, nil)
	e.events.EmitSimple(EventTypePlayerLeave, e.tickCount, id, nil)
	e.log.Info("player left",
		zap.String("player_id", id),
		zap.String("name", p.Name))
}

// advanceWeapons steps reload timers and speed multipliers for the
// equipped weapon of every living player.
func (e *Engine) advanceWeapons(dt float64) {
	for _, id := range e.order {
		p := e.players[id]
		if p == nil || p.IsDead {
			continue
		}
		w := p.EquippedWeapon()
		if w == nil {
			continue
		}
		if w.Advance(dt) {
			e.journal.Record(e.tickCount, ChangeAmmo, p.ID, AmmoData{
				Slot:      p.Equipped,
				Ammo:      w.Ammo,
				Reloading: false,
			})
		}
		w.UpdateMultiplier(p.Speed, e.now, dt)
	}
}

// onClockSecond runs once per whole match-clock second while playing.
func (e *Engine) onClockSecond() {
	e.journal.Record(e.tickCount, ChangeMatchTime, "", MatchTimeData{
		SecondsRemaining: e.clock.SecondsRemaining,
	})

	if e.mode == ModeTag {
		for _, id := range e.order {
			p := e.players[id]
			if p != nil && p.IsIt && !p.IsDead {
				p.TimeTagged++
				e.board.Update(p)
				e.journal.Record(e.tickCount, ChangeScore, p.ID, ScoreData{
					Score: displayScore(e.mode, p),
				})
			}
		}
	}

	if e.hopball == nil {
		return
	}
	holderID := e.hopball.HolderID
	drained := e.hopball.OnClockSecond()
	if drained == 0 {
		return
	}
	if holder := e.players[holderID]; holder != nil {
		holder.Score += drained
		e.board.Update(holder)
		e.journal.Record(e.tickCount, ChangeScore, holder.ID, ScoreData{Score: holder.Score})
	}
	e.journal.Record(e.tickCount, ChangeHopballPhase, holderID, e.hopballPhaseData())
	if e.hopball.Phase == HopballDissolving {
		e.events.EmitSimple(EventTypeHopballDissolve, e.tickCount, holderID, nil)
	}
}

// scanPickup hands the dropped ball to the first living player in
// range, in join order so ties resolve the same way every run.
func (e *Engine) scanPickup() {
	if e.hopball.Phase != HopballDropped {
		return
	}
	for _, id := range e.order {
		p := e.players[id]
		if p == nil || p.IsDead {
			continue
		}
		if e.hopball.TryPickup(p) {
			e.journal.Record(e.tickCount, ChangeHopballPhase, p.ID, e.hopballPhaseData())
			e.events.EmitSimple(EventTypeHopballPickup, e.tickCount, p.ID, nil)
			return
		}
	}
}

func (e *Engine) dropBallAt(playerID string, at Vec3) {
	if e.hopball == nil || !e.hopball.Drop(at) {
		return
	}
	e.journal.Record(e.tickCount, ChangeHopballPhase, playerID, e.hopballPhaseData())
	e.events.EmitSimple(EventTypeHopballDrop, e.tickCount, playerID, nil)
}

func (e *Engine) hopballPhaseData() HopballPhaseData {
	return HopballPhaseData{
		Phase:    e.hopball.Phase,
		Energy:   e.hopball.Energy,
		Position: e.hopball.Position,
		HolderID: e.hopball.HolderID,
	}
}

// checkVoidFalls kills anyone below the void plane with lethal
// self-damage so death bookkeeping stays on the one pipeline.
func (e *Engine) checkVoidFalls() {
	switch e.clock.Phase {
	case PhasePostMatch, PhaseEnded:
		return
	}
	for _, id := range e.order {
		p := e.players[id]
		if p == nil || p.IsDead || p.Position.Y >= e.voidY {
			continue
		}
		e.auth.ApplyDamage(p, p.Health, p.Position, Up, p.ID, "", p.Health, 1)
	}
}

// onDeath finishes a kill: death broadcast with the inverted hit
// normal, credit, assists, and the ball drop if the victim held it.
func (e *Engine) onDeath(victim, killer *PlayerSession, point, normal Vec3, weapon string) {
	killerID := ""
	if killer != nil {
		killerID = killer.ID
	}
	void := killer == nil || killer == victim

	e.journal.Record(e.tickCount, ChangeDeath, victim.ID, DeathData{
		HitPoint:  point,
		HitNormal: normal.Negate(),
		KillerID:  killerID,
	})

	if killer != nil && killer != victim {
		killer.Kills++
		e.board.Update(killer)
		if ModeUsesTeams(e.mode) {
			e.board.AddTeamKill(killer.Team)
		}
	}
	assists := victim.assistCandidates(killerID, e.now)
	for _, id := range assists {
		if p := e.players[id]; p != nil {
			p.Assists++
			e.board.Update(p)
		}
	}

	if e.hopball != nil && e.hopball.HolderID == victim.ID {
		e.dropBallAt(victim.ID, victim.Position)
	}

	e.events.EmitSimple(EventTypeKill, e.tickCount, victim.ID, KillPayload{
		VictimID: victim.ID,
		Weapon:   weapon,
		Assists:  assists,
		Void:     void,
	})
	e.log.Info("player died",
		zap.String("player_id", victim.ID),
		zap.String("killer_id", killerID))
}

func (e *Engine) transferTag(from, to *PlayerSession) {
	from.IsIt = false
	to.IsIt = true
	from.Tags++
	to.Tagged++
	e.board.Update(from)
	e.board.Update(to)

	e.journal.Record(e.tickCount, ChangeTagTransfer, to.ID, TagData{
		FromID: from.ID,
		ToID:   to.ID,
	})
	e.events.EmitSimple(EventTypeTagTransfer, e.tickCount, from.ID, nil)
}

// Podium sequence hooks, invoked by the sequencer on the engine
// goroutine.

func (e *Engine) podiumFadeOut() {
	e.journal.Record(e.tickCount, ChangeFadeOut, "", FadeData{
		DurationSecs: e.podiumCfg.FadeDuration,
	})
}

// podiumArrange computes the top three, brings dead winners back
// upright without the respawn path, and places them on the anchors.
func (e *Engine) podiumArrange() []PodiumEntry {
	ids := e.board.TopIDs(3)
	top := make([]PodiumEntry, 0, len(ids))
	topSet := make(map[string]bool, len(ids))

	for i, id := range ids {
		p := e.players[id]
		if p == nil {
			continue
		}
		topSet[id] = true
		top = append(top, PodiumEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    displayScore(e.mode, p),
		})

		p.resurrectForPodium()

		if i >= len(e.anchors) {
			e.log.Warn("podium anchor missing, skipping slot",
				zap.Int("slot", i+1),
				zap.String("player_id", p.ID))
			continue
		}
		a := e.anchors[i]
		p.Position = a.Position
		p.Velocity = Vec3{}
		p.Speed = 0
		e.journal.Record(e.tickCount, ChangePodiumArrange, p.ID, PodiumArrangeData{
			Position:     a.Position,
			Yaw:          a.Yaw,
			ZeroVelocity: true,
		})
	}

	hidden := make([]string, 0, len(e.order))
	for _, id := range e.order {
		if !topSet[id] {
			hidden = append(hidden, id)
		}
	}
	e.journal.Record(e.tickCount, ChangeVisibilityMask, "", VisibilityMaskData{HiddenIDs: hidden})
	e.journal.Record(e.tickCount, ChangeCameraSwitch, "", CameraSwitchData{Camera: "podium"})
	return top
}

func (e *Engine) podiumReady(top []PodiumEntry) {
	e.journal.Record(e.tickCount, ChangeFadeIn, "", FadeData{
		DurationSecs: e.podiumCfg.FadeDuration,
	})

	var data PodiumReadyData
	if len(top) > 0 {
		data.FirstName, data.FirstScore = top[0].Name, top[0].Score
	}
	if len(top) > 1 {
		data.SecondName, data.SecondScore = top[1].Name, top[1].Score
	}
	if len(top) > 2 {
		data.ThirdName, data.ThirdScore = top[2].Name, top[2].Score
	}
	e.journal.Record(e.tickCount, ChangePodiumReady, "", data)

	e.result = e.buildResult(top)
	e.events.EmitSimple(EventTypeMatchEnd, e.tickCount, "", MatchEndPayload{
		MatchID: e.matchID,
		Mode:    e.mode,
		Podium:  top,
	})
	if e.onEnd != nil {
		go e.onEnd(*e.result)
	}
}

func (e *Engine) podiumTeardown() {
	e.clock.Finish()
	e.journal.Record(e.tickCount, ChangeTeardown, "", nil)
	e.log.Info("match complete",
		zap.String("match_id", e.matchID),
		zap.String("mode", e.mode))
	e.Stop()
}

func (e *Engine) buildResult(top []PodiumEntry) *MatchResult {
	res := &MatchResult{
		MatchID:  e.matchID,
		Mode:     e.mode,
		EndedAt:  time.Now().UTC(),
		Duration: e.durationSecs,
		Podium:   top,
		Players:  make([]PlayerSnapshot, 0, len(e.order)),
	}
	for _, id := range e.order {
		if p := e.players[id]; p != nil {
			res.Players = append(res.Players, e.snapshotPlayer(p))
		}
	}
	if ModeUsesTeams(e.mode) {
		res.TeamScores = e.board.TeamScores()
	}
	return res
}

func (e *Engine) flushChanges() {
	batch := e.journal.Drain()
	if len(batch) == 0 {
		return
	}
	for _, c := range e.casters {
		c.PublishChanges(batch)
	}
}

// publishSnapshot stages a fresh snapshot and swaps it in whole.
// Consumers never see a partial write.
func (e *Engine) publishSnapshot() {
	snap := e.snaps.AcquireWrite()
	snap.Tick = e.tickCount
	snap.RNGSeed = e.rngSeed
	snap.MatchID = e.matchID
	snap.Mode = e.mode
	snap.Clock = ClockSnapshot{
		Phase:            e.clock.Phase,
		SecondsRemaining: e.clock.SecondsRemaining,
		CountdownLeft:    e.clock.CountdownLeft,
	}

	alive := 0
	for _, id := range e.order {
		p := e.players[id]
		if p == nil {
			continue
		}
		if !p.IsDead {
			alive++
		}
		if len(snap.Players) >= e.limits.MaxPlayers {
			continue
		}
		snap.Players = append(snap.Players, e.snapshotPlayer(p))
	}

	if e.hopball != nil {
		snap.Hopball = HopballSnapshot{
			Present:        true,
			Phase:          e.hopball.Phase,
			Energy:         e.hopball.Energy,
			MaxEnergy:      e.hopball.MaxEnergy(),
			HolderID:       e.hopball.HolderID,
			Position:       e.hopball.Position,
			DissolveAmount: e.hopball.DissolveAmount,
		}
	}
	if ModeUsesTeams(e.mode) {
		snap.TeamScores = e.board.TeamScores()
	}
	snap.PlayerCount = len(e.players)
	snap.AliveCount = alive
	e.snaps.PublishWrite()
}

func (e *Engine) snapshotPlayer(p *PlayerSession) PlayerSnapshot {
	ps := PlayerSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		Team:        p.Team,
		Position:    p.Position,
		Health:      p.Health,
		IsDead:      p.IsDead,
		Kills:       p.Kills,
		Deaths:      p.Deaths,
		Assists:     p.Assists,
		DamageDealt: p.DamageDealt,
		IsIt:        p.IsIt,
		Tags:        p.Tags,
		Tagged:      p.Tagged,
		TimeTagged:  p.TimeTagged,
		Score:       displayScore(e.mode, p),
		Rank:        e.board.Rank(p.ID),
	}
	if w := p.EquippedWeapon(); w != nil {
		ps.Weapon = w.Spec.ID
		ps.Ammo = w.Ammo
		ps.Reloading = w.Reloading
		ps.Multiplier = w.Multiplier
	}
	return ps
}

// Snapshot returns the latest published state, lock-free. ok is false
// before the first tick.
func (e *Engine) Snapshot() (*GameSnapshot, bool) {
	return e.snaps.AcquireRead()
}

// MatchID is fixed at construction.
func (e *Engine) MatchID() string { return e.matchID }

// Mode is fixed at construction.
func (e *Engine) Mode() string { return e.mode }

// EventStats exposes audit log counters for monitoring.
func (e *Engine) EventStats() map[string]any { return e.events.GetStats() }

// Result returns the final standings, nil until the post-match
// sequence has arranged the podium. Read it after Run returns.
func (e *Engine) Result() *MatchResult { return e.result }
