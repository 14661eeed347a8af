package game

import (
	"encoding/json"
	"time"
)

// EventType enum for audit event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // tick boundary with RNG seed
	EventTypePlayerJoin
	EventTypePlayerLeave
	EventTypeDamage
	EventTypeKill
	EventTypeRespawn
	EventTypeTagTransfer
	EventTypeHopballPickup
	EventTypeHopballDrop
	EventTypeHopballDissolve
	EventTypeHopballRespawn
	EventTypeMatchStart
	EventTypeMatchEnd
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core record of the audit log
type Event struct {
	Version   uint8     `json:"version"`   // Schema version
	Type      EventType `json:"type"`      // Event type
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`  // Monotonic sequence
	TickNum   uint64    `json:"tickNum"`   // Game tick this occurred in
	PlayerID  string    `json:"playerId"`  // Source player (for rate limiting)
	Payload   []byte    `json:"payload"`   // JSON-encoded payload
}

// NewEvent builds an event stamped with the current wall clock. The
// log assigns Sequence at emit time.
func NewEvent(eventType EventType, tickNum uint64, playerID string, payload any) Event {
	ev := Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		PlayerID:  playerID,
	}
	if payload != nil {
		ev.Payload = EncodePayload(payload)
	}
	return ev
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypePlayerJoin:
		return "player_join"
	case EventTypePlayerLeave:
		return "player_leave"
	case EventTypeDamage:
		return "damage"
	case EventTypeKill:
		return "kill"
	case EventTypeRespawn:
		return "respawn"
	case EventTypeTagTransfer:
		return "tag_transfer"
	case EventTypeHopballPickup:
		return "hopball_pickup"
	case EventTypeHopballDrop:
		return "hopball_drop"
	case EventTypeHopballDissolve:
		return "hopball_dissolve"
	case EventTypeHopballRespawn:
		return "hopball_respawn"
	case EventTypeMatchStart:
		return "match_start"
	case EventTypeMatchEnd:
		return "match_end"
	default:
		return "unknown"
	}
}

// EncodePayload marshals a payload for embedding in an event. Returns
// nil on failure; a payload-less event beats a lost one.
func EncodePayload(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// Typed audit payloads.

// TickPayload records per-tick audit data. The advanced RNG seed makes
// every tick's randomness reproducible from the trail alone.
type TickPayload struct {
	DurationMicros int64 `json:"durUs"`
	Players        int   `json:"players"`
	RNGSeed        int64 `json:"rngSeed"`
}

type DamagePayload struct {
	AttackerID string  `json:"attackerId,omitempty"`
	Weapon     string  `json:"weapon,omitempty"`
	Base       float64 `json:"base"`
	Multiplier float64 `json:"multiplier"`
	Amount     float64 `json:"amount"`
	HealthOld  float64 `json:"healthOld"`
	HealthNew  float64 `json:"healthNew"`
}

type KillPayload struct {
	VictimID string   `json:"victimId"`
	Weapon   string   `json:"weapon,omitempty"`
	Assists  []string `json:"assists,omitempty"`
	Void     bool     `json:"void,omitempty"` // fell below the world floor
}

type MatchEndPayload struct {
	MatchID string        `json:"matchId"`
	Mode    string        `json:"mode"`
	Podium  []PodiumEntry `json:"podium"`
}
