package game

// Intent is a player request submitted to the engine inbox. Intents
// are validated on the engine goroutine; invalid ones are dropped
// without a reply (except join, which always answers its channel).
type Intent interface {
	intent()
}

// JoinIntent asks for a session slot. Reply receives exactly one
// JoinReply; it should be buffered so a slow caller cannot stall the
// tick.
type JoinIntent struct {
	Name    string
	Team    string
	Loadout []string
	Reply   chan JoinReply
}

// JoinReply reports the outcome of a JoinIntent.
type JoinReply struct {
	PlayerID string
	Ok       bool
	Reason   string
}

// LeaveIntent removes a player session.
type LeaveIntent struct {
	PlayerID string
}

// MoveIntent reports client position and velocity for one player.
type MoveIntent struct {
	PlayerID string
	Position Vec3
	Velocity Vec3
}

// DamageIntent is a hit claim from the attacker's client. The engine
// re-derives the damage amount from the equipped weapon; Amount only
// caps it lower.
type DamageIntent struct {
	AttackerID string
	TargetID   string
	Amount     float64
	Point      Vec3
	Normal     Vec3
}

// RespawnIntent asks to respawn. Honored only while dead.
type RespawnIntent struct {
	PlayerID string
}

// ReloadIntent starts a reload on the equipped weapon.
type ReloadIntent struct {
	PlayerID string
}

// FireModeIntent switches the equipped weapon's fire mode.
type FireModeIntent struct {
	PlayerID string
	Mode     string
}

// SwitchWeaponIntent equips a different loadout slot.
type SwitchWeaponIntent struct {
	PlayerID string
	Slot     int
}

// DropBallIntent voluntarily releases the hopball.
type DropBallIntent struct {
	PlayerID string
}

func (JoinIntent) intent()         {}
func (LeaveIntent) intent()        {}
func (MoveIntent) intent()         {}
func (DamageIntent) intent()       {}
func (RespawnIntent) intent()      {}
func (ReloadIntent) intent()       {}
func (FireModeIntent) intent()     {}
func (SwitchWeaponIntent) intent() {}
func (DropBallIntent) intent()     {}
