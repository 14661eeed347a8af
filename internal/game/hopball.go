package game

import (
	"math"
	"math/rand"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Hopball phases.
const (
	HopballDropped    = "Dropped"
	HopballEquipped   = "Equipped"
	HopballDissolving = "Dissolving"
)

// Hopball tuning.
const (
	DefaultHopballEnergy = 20
	DefaultDrainInterval = 2 // match-clock seconds between drains

	HopballPickupRadius = 1.6 // metres
	HopballDissolveTime = 2.5 // seconds for progress 0 -> 1

	// HopballSettleTime masks pickups after a drop. Without it the
	// dropper, still standing inside the pickup radius, re-equips the
	// ball on the very tick they released it.
	HopballSettleTime = 0.5 // seconds

	// hopballDissolveDone is the completion threshold. Progress is
	// snapped to 1.0 on crossing it so the check never stalls on
	// float equality.
	hopballDissolveDone = 0.99

	// hopballVisualEpsilon is the rebroadcast threshold: visual state
	// within this of the last broadcast is not resent.
	hopballVisualEpsilon = 0.01
)

// HopballConfig is the tunable part of the objective.
type HopballConfig struct {
	MaxEnergy     int
	DrainInterval int // integer match-clock seconds between drains
}

// Hopball is the single objective entity for hopball mode. Energy
// drains while the ball is held, keyed to the authoritative match
// countdown so every observer agrees on when drains land. At zero
// energy the ball dissolves and relocates with full energy.
//
// All mutation happens on the engine goroutine. HolderID is set while
// Equipped and may persist into Dissolving until the holder drops the
// ball or the dissolve completes.
type Hopball struct {
	cfg HopballConfig

	Phase    string `json:"phase"`
	Energy   int    `json:"energy"`
	HolderID string `json:"holderId,omitempty"`
	Position Vec3   `json:"position"`

	// drainCountdown counts integer clock seconds until the next
	// drain while the ball is held.
	drainCountdown int

	// settleRemaining masks pickups for HopballSettleTime after a
	// drop.
	settleRemaining float64

	// DissolveAmount rises 0 -> 1 while Dissolving, eased so the
	// shader ramp accelerates out of the gate and settles softly.
	DissolveAmount float64 `json:"dissolveAmount"`
	dissolve       *gween.Tween
	dissolveDone   bool // latch: relocation already fired for this dissolve

	lastVisual HopballVisualData
	visualSent bool
}

// NewHopball spawns the objective at a random anchor with full energy.
// ok is false when the pool was empty and the fallback position was
// used.
func NewHopball(cfg HopballConfig, spawns *SpawnPool, rng *rand.Rand) (*Hopball, bool) {
	if cfg.MaxEnergy <= 0 {
		cfg.MaxEnergy = DefaultHopballEnergy
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = DefaultDrainInterval
	}
	anchor, ok := spawns.Random(rng)
	return &Hopball{
		cfg:      cfg,
		Phase:    HopballDropped,
		Energy:   cfg.MaxEnergy,
		Position: anchor.Position,
	}, ok
}

// MaxEnergy reports the configured energy ceiling.
func (b *Hopball) MaxEnergy() int { return b.cfg.MaxEnergy }

// TryPickup equips the ball to a player standing within reach. Only a
// dropped, settled ball is collectible; a dissolving ball is already
// spent.
func (b *Hopball) TryPickup(p *PlayerSession) bool {
	if b.Phase != HopballDropped || b.settleRemaining > 0 || p.IsDead {
		return false
	}
	if p.Position.DistanceTo(b.Position) > HopballPickupRadius {
		return false
	}
	b.Phase = HopballEquipped
	b.HolderID = p.ID
	b.drainCountdown = b.cfg.DrainInterval
	return true
}

// Drop releases the ball at the given point, keeping whatever energy
// remains. The ball settles for HopballSettleTime before it can be
// collected again. A dissolve in flight keeps running; the relocation
// at completion is not cancellable.
func (b *Hopball) Drop(at Vec3) bool {
	if b.HolderID == "" {
		return false
	}
	b.HolderID = ""
	b.Position = at
	b.settleRemaining = HopballSettleTime
	if b.Phase == HopballEquipped {
		b.Phase = HopballDropped
	}
	return true
}

// OnClockSecond advances drain bookkeeping by one authoritative match
// second and returns the energy units drained (0 or 1) so the engine
// can credit the holder. Entering Dissolving happens here when the
// last unit drains.
func (b *Hopball) OnClockSecond() int {
	if b.Phase != HopballEquipped {
		return 0
	}
	b.drainCountdown--
	if b.drainCountdown > 0 {
		return 0
	}
	b.drainCountdown = b.cfg.DrainInterval
	if b.Energy <= 0 {
		return 0
	}
	b.Energy--
	if b.Energy <= 0 {
		b.enterDissolve()
	}
	return 1
}

// enterDissolve is the one-way transition out of play, guarded so a
// drain and a drop landing on the same tick cannot start two
// dissolves.
func (b *Hopball) enterDissolve() {
	if b.Phase == HopballDissolving {
		return
	}
	b.Phase = HopballDissolving
	b.DissolveAmount = 0
	b.dissolve = gween.New(0, 1, HopballDissolveTime, ease.OutQuad)
	b.dissolveDone = false
}

// Advance progresses the settle timer and the dissolve by one tick.
// relocated is true on the single tick the completion side effect
// fired; spawnOK is false when the relocation had to use the fallback
// position.
func (b *Hopball) Advance(dt float64, spawns *SpawnPool, rng *rand.Rand) (relocated, spawnOK bool) {
	if b.settleRemaining > 0 {
		b.settleRemaining -= dt
	}
	if b.Phase != HopballDissolving || b.dissolve == nil {
		return false, true
	}

	v, _ := b.dissolve.Update(float32(dt))
	b.DissolveAmount = float64(v)
	if b.DissolveAmount < hopballDissolveDone {
		return false, true
	}
	b.DissolveAmount = 1
	if b.dissolveDone {
		return false, true
	}
	b.dissolveDone = true

	anchor, ok := spawns.Random(rng)
	b.HolderID = ""
	b.Phase = HopballDropped
	b.Position = anchor.Position
	b.Energy = b.cfg.MaxEnergy
	b.DissolveAmount = 0
	b.dissolve = nil
	b.settleRemaining = 0 // a fresh spawn is collectible at once
	return true, ok
}

// VisualState derives the replicated presentation parameters. Effect
// intensity tracks remaining energy; the locator indicator shows only
// while the ball sits collectible on the ground.
func (b *Hopball) VisualState() HopballVisualData {
	frac := 0.0
	if b.cfg.MaxEnergy > 0 {
		frac = float64(b.Energy) / float64(b.cfg.MaxEnergy)
	}
	return HopballVisualData{
		EffectScale:       0.5 + 0.5*frac,
		LightIntensity:    2.0 * frac,
		EmissionIntensity: 1.0 + 3.0*frac,
		DissolveAmount:    b.DissolveAmount,
		IndicatorEnabled:  b.Phase == HopballDropped,
	}
}

// VisualChanged returns the current visual state and whether it moved
// beyond the rebroadcast epsilon since the last send.
func (b *Hopball) VisualChanged() (HopballVisualData, bool) {
	v := b.VisualState()
	if b.visualSent && !v.differs(b.lastVisual, hopballVisualEpsilon) {
		return v, false
	}
	b.lastVisual = v
	b.visualSent = true
	return v, true
}

// differs reports whether any component moved beyond eps or the
// indicator flag flipped.
func (v HopballVisualData) differs(o HopballVisualData, eps float64) bool {
	return math.Abs(v.EffectScale-o.EffectScale) > eps ||
		math.Abs(v.LightIntensity-o.LightIntensity) > eps ||
		math.Abs(v.EmissionIntensity-o.EmissionIntensity) > eps ||
		math.Abs(v.DissolveAmount-o.DissolveAmount) > eps ||
		v.IndicatorEnabled != o.IndicatorEnabled
}
