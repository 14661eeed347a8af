package game

// Change kinds, one per observable transition. Every payload fully
// describes the resulting state rather than patching it, so observers
// can apply records redundantly (at-least-once delivery) without
// drifting.
const (
	ChangePlayerJoined   = "player_joined"
	ChangePlayerLeft     = "player_left"
	ChangeHealth         = "health_changed"
	ChangeDeath          = "death"
	ChangeRespawn        = "respawn_visuals_cleared"
	ChangeAmmo           = "ammo_changed"
	ChangeWeaponSwitch   = "weapon_switched"
	ChangeFireMode       = "fire_mode_changed"
	ChangeScore          = "score_changed"
	ChangeTagTransfer    = "tag_changed"
	ChangeHopballPhase   = "hopball_phase"
	ChangeHopballVisual  = "hopball_visual"
	ChangeMatchPhase     = "match_phase"
	ChangeMatchTime      = "match_time"
	ChangeFadeOut        = "fade_out"
	ChangeFadeIn         = "fade_in"
	ChangePodiumArrange  = "podium_arrange"
	ChangeVisibilityMask = "visibility_mask"
	ChangeCameraSwitch   = "camera_switch"
	ChangePodiumReady    = "podium_ready"
	ChangeTeardown       = "session_teardown"
)

// DefaultMaxPendingChanges bounds the journal between drains.
const DefaultMaxPendingChanges = 1024

// Change is one replication record. Seq is globally monotonic for the
// life of the engine; Tick groups records produced by the same step.
type Change struct {
	Seq      uint64 `json:"seq"`
	Tick     uint64 `json:"tick"`
	Kind     string `json:"kind"`
	PlayerID string `json:"playerId,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// Typed change payloads.

type PlayerJoinedData struct {
	Name     string `json:"name"`
	Team     string `json:"team,omitempty"`
	Position Vec3   `json:"position"`
}

type HealthChangedData struct {
	Old float64 `json:"old"`
	New float64 `json:"new"`
}

// DeathData parameterizes the client-side ragdoll. HitNormal is the
// inverted surface normal, pointing away from the impact.
type DeathData struct {
	HitPoint  Vec3   `json:"hitPoint"`
	HitNormal Vec3   `json:"hitNormal"`
	KillerID  string `json:"killerId,omitempty"`
}

// RespawnData tells the owning client where to teleport and everyone
// else to clear death visuals.
type RespawnData struct {
	Position Vec3    `json:"position"`
	Yaw      float64 `json:"yaw"`
}

type AmmoData struct {
	Slot      int  `json:"slot"`
	Ammo      int  `json:"ammo"`
	Reloading bool `json:"reloading"`
}

type WeaponSwitchData struct {
	Slot   int    `json:"slot"`
	Weapon string `json:"weapon"`
}

type FireModeData struct {
	Mode string `json:"mode"`
}

type ScoreData struct {
	Score int `json:"score"`
}

type TagData struct {
	FromID string `json:"fromId,omitempty"` // empty for the initial designation
	ToID   string `json:"toId"`
}

type HopballPhaseData struct {
	Phase    string `json:"phase"`
	Energy   int    `json:"energy"`
	Position Vec3   `json:"position"`
	HolderID string `json:"holderId,omitempty"`
}

// HopballVisualData mirrors the presentation parameters clients feed
// straight into the ball's effects rig.
type HopballVisualData struct {
	EffectScale       float64 `json:"effectScale"`
	LightIntensity    float64 `json:"lightIntensity"`
	EmissionIntensity float64 `json:"emissionIntensity"`
	DissolveAmount    float64 `json:"dissolveAmount"`
	IndicatorEnabled  bool    `json:"indicatorEnabled"`
}

type MatchPhaseData struct {
	Phase         string `json:"phase"`
	CountdownLeft int    `json:"countdownLeft,omitempty"`
}

type MatchTimeData struct {
	SecondsRemaining int `json:"secondsRemaining"`
}

// FadeData carries the screen fade duration for fade_out and fade_in.
type FadeData struct {
	DurationSecs float64 `json:"durationSecs"`
}

// PodiumArrangeData teleports one winner onto an anchor with velocity
// zeroed so there is no residual drift on arrival.
type PodiumArrangeData struct {
	Position     Vec3    `json:"position"`
	Yaw          float64 `json:"yaw"`
	ZeroVelocity bool    `json:"zeroVelocity"`
}

type VisibilityMaskData struct {
	HiddenIDs []string `json:"hiddenIds"`
}

type CameraSwitchData struct {
	Camera string `json:"camera"`
}

type PodiumReadyData struct {
	FirstName   string `json:"firstName"`
	FirstScore  int    `json:"firstScore"`
	SecondName  string `json:"secondName"`
	SecondScore int    `json:"secondScore"`
	ThirdName   string `json:"thirdName"`
	ThirdScore  int    `json:"thirdScore"`
}

// Journal accumulates change records during a tick. The engine is the
// only writer; Drain happens at the end of the same tick, so no
// locking is needed.
type Journal struct {
	seq     uint64
	pending []Change
	max     int
	dropped uint64
}

// NewJournal returns a journal bounded at maxPending records between
// drains.
func NewJournal(maxPending int) *Journal {
	if maxPending <= 0 {
		maxPending = DefaultMaxPendingChanges
	}
	return &Journal{
		max:     maxPending,
		pending: make([]Change, 0, 64),
	}
}

// Record appends one change. When a tick produces more records than
// the cap, the oldest are shed first; observers recover because every
// payload carries complete state.
func (j *Journal) Record(tick uint64, kind, playerID string, data any) {
	j.seq++
	if len(j.pending) >= j.max {
		copy(j.pending, j.pending[1:])
		j.pending = j.pending[:len(j.pending)-1]
		j.dropped++
	}
	j.pending = append(j.pending, Change{
		Seq:      j.seq,
		Tick:     tick,
		Kind:     kind,
		PlayerID: playerID,
		Data:     data,
	})
}

// Drain returns the buffered batch and resets the journal. The batch
// is a fresh slice; callers may hold it past the tick.
func (j *Journal) Drain() []Change {
	if len(j.pending) == 0 {
		return nil
	}
	out := make([]Change, len(j.pending))
	copy(out, j.pending)
	j.pending = j.pending[:0]
	return out
}

// Pending reports how many records are buffered.
func (j *Journal) Pending() int { return len(j.pending) }

// Dropped reports how many records were shed to the cap.
func (j *Journal) Dropped() uint64 { return j.dropped }

// Broadcaster delivers drained change batches to observers. The engine
// is transport-agnostic: the WebSocket hub and the local feed socket
// both implement this.
type Broadcaster interface {
	PublishChanges(batch []Change)
}
