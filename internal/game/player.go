package game

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// Session defaults and limits.
const (
	MaxHealth = 100.0

	// DamagerMemorySecs is the assist window: anyone who damaged the
	// victim this recently, other than the killer, earns an assist.
	DamagerMemorySecs = 10.0

	// MaxLoadoutSlots caps how many weapons a join request may carry.
	MaxLoadoutSlots = 3
)

// PlayerSession is the authoritative record for one connected player.
// Every field is owned by the engine goroutine; other goroutines only
// ever see copies taken from published snapshots.
type PlayerSession struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Team string `json:"team,omitempty"`

	// Client-reported kinematics. The server trusts position for
	// spawn and void checks and speed for damage scaling; speed is
	// clamped against ResourceLimits before it reaches a weapon.
	Position Vec3    `json:"position"`
	Velocity Vec3    `json:"velocity"`
	Speed    float64 `json:"speed"`

	Health float64 `json:"health"`
	IsDead bool    `json:"isDead"`

	Kills       int     `json:"kills"`
	Deaths      int     `json:"deaths"`
	Assists     int     `json:"assists"`
	DamageDealt float64 `json:"damageDealt"`

	// Tag mode counters. IsIt survives death; a tagged player
	// respawns still tagged.
	IsIt       bool `json:"isIt"`
	Tags       int  `json:"tags"`
	Tagged     int  `json:"tagged"`
	TimeTagged int  `json:"timeTagged"` // whole seconds spent as "it" while alive

	// Hopball mode score: energy units banked while holding the ball.
	Score int `json:"score"`

	// Hit context for the next death visual. Overwritten on every hit.
	LastHitPoint  Vec3 `json:"-"`
	LastHitNormal Vec3 `json:"-"`

	Weapons  []*WeaponState `json:"weapons"`
	Equipped int            `json:"equipped"` // index into Weapons

	// recentDamagers maps attacker ID to the engine-clock time of
	// their last hit, for assist credit.
	recentDamagers map[string]float64

	JoinedAt float64 `json:"-"` // engine clock seconds
}

// NewPlayerSession creates a session with full health and fresh
// magazines for the given loadout.
func NewPlayerSession(name, team string, loadout []WeaponSpec, now float64) *PlayerSession {
	weapons := make([]*WeaponState, 0, len(loadout))
	for _, spec := range loadout {
		weapons = append(weapons, NewWeaponState(spec))
	}
	return &PlayerSession{
		ID:             uuid.NewString(),
		Name:           name,
		Team:           team,
		Health:         MaxHealth,
		Weapons:        weapons,
		recentDamagers: make(map[string]float64),
		JoinedAt:       now,
	}
}

// applyDamage runs the damage transition and reports whether this hit
// killed the player, plus the health value before it. Damage against a
// dead player is dropped: death was already handled and repeating it
// would double-count. The death transition itself fires at most once
// per life.
func (p *PlayerSession) applyDamage(amount float64, point, normal Vec3, attackerID string, now float64) (died bool, oldHealth float64) {
	oldHealth = p.Health
	if p.IsDead || amount <= 0 {
		return false, oldHealth
	}

	p.Health = math.Max(0, p.Health-amount)
	p.LastHitPoint = point
	p.LastHitNormal = normal
	if attackerID != "" && attackerID != p.ID {
		p.recentDamagers[attackerID] = now
	}

	if p.Health <= 0 && !p.IsDead {
		p.IsDead = true
		p.Deaths++
		return true, oldHealth
	}
	return false, oldHealth
}

// assistCandidates returns attackers who hit this player within the
// assist window, excluding the killer, and clears the ledger for the
// next life.
func (p *PlayerSession) assistCandidates(killerID string, now float64) []string {
	var ids []string
	for id, at := range p.recentDamagers {
		if id != killerID && now-at <= DamagerMemorySecs {
			ids = append(ids, id)
		}
	}
	clear(p.recentDamagers)
	return ids
}

// respawn resets the session to a fresh-spawn state at the given
// point. Scoreboard counters survive; transient combat state does not,
// and every magazine comes back full.
func (p *PlayerSession) respawn(at Vec3, now float64) {
	p.Health = MaxHealth
	p.IsDead = false
	p.Position = at
	p.Velocity = Vec3{}
	p.Speed = 0
	clear(p.recentDamagers)
	for _, w := range p.Weapons {
		w.CancelReload()
		w.ResetMultiplier(now)
		w.Ammo = w.Spec.MagSize
	}
}

// resurrectForPodium revives a winner for podium display only. No
// spawn point is chosen and no death visuals are cleared; the podium
// sequencer teleports the player straight to an anchor. Counters stay
// untouched.
func (p *PlayerSession) resurrectForPodium() {
	if !p.IsDead {
		return
	}
	p.IsDead = false
	p.Health = MaxHealth
}

// EquippedWeapon returns the active loadout slot, or nil for an empty
// loadout.
func (p *PlayerSession) EquippedWeapon() *WeaponState {
	if len(p.Weapons) == 0 {
		return nil
	}
	if p.Equipped < 0 || p.Equipped >= len(p.Weapons) {
		return p.Weapons[0]
	}
	return p.Weapons[p.Equipped]
}

// switchWeapon changes the equipped slot. The outgoing slot loses its
// speed multiplier and any reload in flight; ammo persists.
func (p *PlayerSession) switchWeapon(slot int, now float64) bool {
	if slot == p.Equipped || slot < 0 || slot >= len(p.Weapons) {
		return false
	}
	if w := p.EquippedWeapon(); w != nil {
		w.CancelReload()
		w.ResetMultiplier(now)
	}
	p.Equipped = slot
	return true
}

// sanitizeName trims and truncates a requested display name. Empty
// names fall back to a generic handle.
func sanitizeName(name string, maxLen int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "player"
	}
	runes := []rune(name)
	if maxLen > 0 && len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return name
}

// resolveLoadout maps requested weapon IDs onto specs, capping slots
// and falling back to the default weapon for unknown IDs.
func resolveLoadout(ids []string) []WeaponSpec {
	if len(ids) > MaxLoadoutSlots {
		ids = ids[:MaxLoadoutSlots]
	}
	specs := make([]WeaponSpec, 0, len(ids))
	for _, id := range ids {
		specs = append(specs, GetWeaponSpec(id))
	}
	return specs
}
