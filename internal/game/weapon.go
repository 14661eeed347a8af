package game

import "math"

// WeaponState is the live firing state for one loadout slot. Ammo
// persists across weapon swaps; the speed multiplier does not.
type WeaponState struct {
	Spec WeaponSpec `json:"spec"`

	Ammo            int     `json:"ammo"`
	Reloading       bool    `json:"reloading"`
	ReloadRemaining float64 `json:"-"`
	FireMode        string  `json:"fireMode"`

	// Multiplier is the current speed-scaling factor in
	// [1, Spec.MaxMultiplier]. peak and peakAt implement the
	// grace-period hold before decay.
	Multiplier float64 `json:"multiplier"`
	peak       float64
	peakAt     float64 // engine clock seconds at the last peak

	lastShot float64 // engine clock seconds, fire-rate gate
}

// NewWeaponState returns a fresh slot with a full magazine and the
// spec's first fire mode selected.
func NewWeaponState(spec WeaponSpec) *WeaponState {
	mode := ""
	if len(spec.FireModes) > 0 {
		mode = spec.FireModes[0]
	}
	return &WeaponState{
		Spec:       spec,
		Ammo:       spec.MagSize,
		FireMode:   mode,
		Multiplier: 1,
		peak:       1,
		lastShot:   math.Inf(-1), // a fresh weapon can always fire
	}
}

// UpdateMultiplier advances the speed-scaling multiplier by one tick.
//
// Rising speed snaps the multiplier up with no ramp delay and records
// a new peak. After a peak the value holds for the grace window so
// brief speed dips are not punished, then walks linearly back toward
// the target. The result always stays in [1, MaxMultiplier].
func (w *WeaponState) UpdateMultiplier(speed, now, dt float64) {
	target := 1.0
	if speed >= w.Spec.MinSpeed {
		t := inverseLerp(w.Spec.MinSpeed, w.Spec.MaxSpeed, speed)
		target = 1 + t*(w.Spec.MaxMultiplier-1)
	}

	switch {
	case target >= w.Multiplier:
		w.Multiplier = target
		w.peak = target
		w.peakAt = now
	case now-w.peakAt < w.Spec.PeakGrace:
		w.Multiplier = w.peak
	default:
		w.Multiplier = moveToward(w.Multiplier, target, w.Spec.DecayRate*dt)
	}

	w.Multiplier = clamp(w.Multiplier, 1, w.Spec.MaxMultiplier)
}

// ScaledDamage applies the current multiplier to the base damage and
// enforces the per-weapon ceiling.
func (w *WeaponState) ScaledDamage() float64 {
	return math.Min(w.Spec.Damage*w.Multiplier, w.Spec.DamageCap)
}

// TryFire spends one round if the weapon can shoot right now. Empty
// magazines and reloads in progress drop the shot, and shots arriving
// faster than the weapon cycles are dropped by the fire-rate window.
func (w *WeaponState) TryFire(now float64) bool {
	if w.Reloading || w.Ammo <= 0 {
		return false
	}
	if w.Spec.FireRate > 0 && now-w.lastShot < 1/w.Spec.FireRate {
		return false
	}
	w.lastShot = now
	w.Ammo--
	return true
}

// BeginReload starts a reload unless one is already running or the
// magazine is full. A full-magazine reload is an expected race with
// server state and is silently ignored.
func (w *WeaponState) BeginReload() bool {
	if w.Reloading || w.Ammo >= w.Spec.MagSize {
		return false
	}
	w.Reloading = true
	w.ReloadRemaining = w.Spec.ReloadTime
	return true
}

// CancelReload drops an in-flight reload. No ammo was committed, so
// there is nothing to roll back.
func (w *WeaponState) CancelReload() {
	w.Reloading = false
	w.ReloadRemaining = 0
}

// Advance progresses the reload timer and reports whether a reload
// completed this tick. Completion fills the magazine.
func (w *WeaponState) Advance(dt float64) bool {
	if !w.Reloading {
		return false
	}
	w.ReloadRemaining -= dt
	if w.ReloadRemaining > 0 {
		return false
	}
	w.Reloading = false
	w.ReloadRemaining = 0
	w.Ammo = w.Spec.MagSize
	return true
}

// SetFireMode switches firing mode if the weapon supports it.
func (w *WeaponState) SetFireMode(mode string) bool {
	if mode == w.FireMode {
		return false
	}
	for _, m := range w.Spec.FireModes {
		if m == mode {
			w.FireMode = mode
			return true
		}
	}
	return false
}

// ResetMultiplier clears speed-scaling state. Called on weapon swap and
// respawn; the multiplier never survives either, ammo does survive a
// swap.
func (w *WeaponState) ResetMultiplier(now float64) {
	w.Multiplier = 1
	w.peak = 1
	w.peakAt = now
}
