package game

import "go.uber.org/zap"

// Authority is the only path to authoritative gameplay mutations:
// damage, death, respawn, weapon state, tag designation. The engine
// constructs exactly one and hands it to nothing; transports can only
// submit intents. There is no public constructor on purpose.
type Authority struct {
	e *Engine
}

// ApplyDamage runs the full damage pipeline on target: floor health at
// zero, remember the hit for the death broadcast, credit the attacker,
// latch death exactly once. Damage against a dead player is dropped.
// base and multiplier are recorded for the audit trail only.
func (a *Authority) ApplyDamage(target *PlayerSession, amount float64, point, normal Vec3, attackerID, weapon string, base, multiplier float64) bool {
	if target == nil || target.IsDead {
		return false
	}

	died, old := target.applyDamage(amount, point, normal, attackerID, a.e.now)
	if !died && target.Health == old {
		return false
	}

	e := a.e
	e.journal.Record(e.tickCount, ChangeHealth, target.ID, HealthChangedData{
		Old: old,
		New: target.Health,
	})

	attacker := e.players[attackerID]
	if attacker != nil && attacker != target {
		attacker.DamageDealt += old - target.Health
		e.board.Update(attacker)
	}

	e.events.EmitSimple(EventTypeDamage, e.tickCount, target.ID, DamagePayload{
		AttackerID: attackerID,
		Weapon:     weapon,
		Base:       base,
		Multiplier: multiplier,
		Amount:     amount,
		HealthOld:  old,
		HealthNew:  target.Health,
	})

	// In tag mode any landed hit from "it" passes the tag, even a
	// killing blow. IsIt survives death.
	if e.mode == ModeTag && attacker != nil && attacker != target && attacker.IsIt {
		e.transferTag(attacker, target)
	}

	if died {
		e.onDeath(target, attacker, point, normal, weapon)
	}
	return true
}

// Respawn honors a respawn request. Valid only while dead and only
// before the post-match sequence owns player placement.
func (a *Authority) Respawn(p *PlayerSession) bool {
	e := a.e
	if p == nil || !p.IsDead {
		return false
	}
	if e.clock.Phase == PhasePostMatch || e.clock.Phase == PhaseEnded {
		return false
	}

	anchor, ok := e.spawns.Next()
	if !ok {
		e.log.Warn("no spawn points configured, using fallback spawn",
			zap.String("player_id", p.ID))
	}
	p.respawn(anchor.Position, e.now)

	e.journal.Record(e.tickCount, ChangeRespawn, p.ID, RespawnData{
		Position: anchor.Position,
		Yaw:      anchor.Yaw,
	})
	e.events.EmitSimple(EventTypeRespawn, e.tickCount, p.ID, nil)
	return true
}

// BeginReload starts a reload on the equipped weapon.
func (a *Authority) BeginReload(p *PlayerSession) bool {
	if p == nil || p.IsDead {
		return false
	}
	w := p.EquippedWeapon()
	if w == nil || !w.BeginReload() {
		return false
	}
	a.e.journal.Record(a.e.tickCount, ChangeAmmo, p.ID, AmmoData{
		Slot:      p.Equipped,
		Ammo:      w.Ammo,
		Reloading: true,
	})
	return true
}

// SwitchWeapon equips a loadout slot. The outgoing weapon loses any
// reload in progress and its speed multiplier.
func (a *Authority) SwitchWeapon(p *PlayerSession, slot int) bool {
	if p == nil || p.IsDead || !p.switchWeapon(slot, a.e.now) {
		return false
	}
	w := p.EquippedWeapon()
	a.e.journal.Record(a.e.tickCount, ChangeWeaponSwitch, p.ID, WeaponSwitchData{
		Slot:   p.Equipped,
		Weapon: w.Spec.ID,
	})
	return true
}

// SetFireMode switches the equipped weapon's fire mode.
func (a *Authority) SetFireMode(p *PlayerSession, mode string) bool {
	if p == nil || p.IsDead {
		return false
	}
	w := p.EquippedWeapon()
	if w == nil || !w.SetFireMode(mode) {
		return false
	}
	a.e.journal.Record(a.e.tickCount, ChangeFireMode, p.ID, FireModeData{Mode: mode})
	return true
}

// DropBall releases the hopball voluntarily. The ball keeps its
// remaining energy and re-enables its pickup indicator.
func (a *Authority) DropBall(p *PlayerSession) bool {
	e := a.e
	if p == nil || e.hopball == nil || e.hopball.HolderID != p.ID {
		return false
	}
	e.dropBallAt(p.ID, p.Position)
	return true
}

// DesignateInitialIt picks the first "it" at random among living
// players. Fires at most once per match: any existing "it" or any
// recorded tag activity stands it down.
func (a *Authority) DesignateInitialIt() {
	e := a.e
	for _, p := range e.players {
		if p.IsIt || p.Tags > 0 || p.Tagged > 0 {
			return
		}
	}

	var alive []*PlayerSession
	for _, id := range e.order {
		if p := e.players[id]; p != nil && !p.IsDead {
			alive = append(alive, p)
		}
	}
	if len(alive) == 0 {
		e.log.Warn("tag designation skipped, nobody alive")
		return
	}

	pick := alive[e.rng.Intn(len(alive))]
	pick.IsIt = true

	e.journal.Record(e.tickCount, ChangeTagTransfer, pick.ID, TagData{ToID: pick.ID})
	e.events.EmitSimple(EventTypeTagTransfer, e.tickCount, pick.ID, nil)
	e.log.Info("initial it designated", zap.String("player_id", pick.ID))
}
