package game

import (
	"sync/atomic"
	"time"
)

// ResourceLimits bounds per-tick work and memory so a hostile client
// cannot grow server state or starve the tick.
type ResourceLimits struct {
	MaxPlayers        int     // hard cap on concurrent sessions
	MaxIntentsPerTick int     // inbox drain budget per tick
	MaxPendingChanges int     // journal cap between drains
	MaxNameLength     int     // display name truncation
	MaxSpeed          float64 // reported speeds clamp here before damage scaling
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxPlayers:        64,
		MaxIntentsPerTick: 1024,
		MaxPendingChanges: 1024,
		MaxNameLength:     24,
		MaxSpeed:          60,
	}
}

// PlayerSnapshot is a value copy of one session, safe to read off the
// engine goroutine.
type PlayerSnapshot struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Team        string  `json:"team,omitempty"`
	Position    Vec3    `json:"position"`
	Health      float64 `json:"health"`
	IsDead      bool    `json:"isDead"`
	Kills       int     `json:"kills"`
	Deaths      int     `json:"deaths"`
	Assists     int     `json:"assists"`
	DamageDealt float64 `json:"damageDealt"`
	IsIt        bool    `json:"isIt"`
	Tags        int     `json:"tags"`
	Tagged      int     `json:"tagged"`
	TimeTagged  int     `json:"timeTagged"`
	Score       int     `json:"score"`
	Rank        int     `json:"rank"`
	Weapon      string  `json:"weapon"`
	Ammo        int     `json:"ammo"`
	Reloading   bool    `json:"reloading"`
	Multiplier  float64 `json:"multiplier"`
}

// HopballSnapshot mirrors the objective state. Present is false in
// every mode but hopball.
type HopballSnapshot struct {
	Present        bool    `json:"present"`
	Phase          string  `json:"phase,omitempty"`
	Energy         int     `json:"energy"`
	MaxEnergy      int     `json:"maxEnergy,omitempty"`
	HolderID       string  `json:"holderId,omitempty"`
	Position       Vec3    `json:"position"`
	DissolveAmount float64 `json:"dissolveAmount"`
}

// ClockSnapshot mirrors the match clock.
type ClockSnapshot struct {
	Phase            string `json:"phase"`
	SecondsRemaining int    `json:"secondsRemaining"`
	CountdownLeft    int    `json:"countdownLeft"`
}

// GameSnapshot is the complete public state published once per tick.
// The players slice is pre-allocated and capped.
type GameSnapshot struct {
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Tick      uint64    `json:"tick"`
	RNGSeed   int64     `json:"rngSeed"` // seed for deterministic replay

	MatchID string        `json:"matchId"`
	Mode    string        `json:"mode"`
	Clock   ClockSnapshot `json:"clock"`

	Players    []PlayerSnapshot `json:"players"`
	Hopball    HopballSnapshot  `json:"hopball"`
	TeamScores map[string]int   `json:"teamScores,omitempty"`

	PlayerCount int `json:"playerCount"`
	AliveCount  int `json:"aliveCount"`
}

// SnapshotPool hands immutable snapshots from the engine to its
// transports through an atomic pointer. Every write is a fresh
// allocation; once published, a snapshot is never touched again, so a
// consumer can hold one across ticks (JSON encode to a slow client,
// deferred gob encode on the feed) without racing the next write.
type SnapshotPool struct {
	maxPlayers int
	sequence   uint64
	staged     *GameSnapshot // write in progress, engine goroutine only
	published  atomic.Pointer[GameSnapshot]
}

// NewSnapshotPool creates a pool sized to the player limit.
func NewSnapshotPool(limits ResourceLimits) *SnapshotPool {
	return &SnapshotPool{maxPlayers: limits.MaxPlayers}
}

// AcquireWrite stages the next snapshot (producer only, called from
// the engine tick). The staged snapshot is invisible to readers until
// PublishWrite.
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	p.sequence++
	p.staged = &GameSnapshot{
		Sequence:  p.sequence,
		Timestamp: time.Now(),
		Players:   make([]PlayerSnapshot, 0, p.maxPlayers),
	}
	return p.staged
}

// PublishWrite swaps the staged snapshot in as the latest, freezing it.
func (p *SnapshotPool) PublishWrite() {
	if p.staged != nil {
		p.published.Store(p.staged)
		p.staged = nil
	}
}

// AcquireRead gets the latest published snapshot (consumers only).
// ok is false before the first publish. The snapshot is frozen; hold
// it as long as needed.
func (p *SnapshotPool) AcquireRead() (*GameSnapshot, bool) {
	snap := p.published.Load()
	return snap, snap != nil
}
