package game

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Anchor is a fixed world transform used for spawn points and podium
// slots.
type Anchor struct {
	Position Vec3    `json:"position"`
	Yaw      float64 `json:"yaw"` // facing, degrees
}

// FallbackSpawn is used when a pool has no points configured. Spawning
// somewhere fixed beats rejecting the respawn; the caller logs the
// misconfiguration.
var FallbackSpawn = Anchor{Position: Vec3{X: 0, Y: 2, Z: 0}}

// SpawnPool hands out spawn anchors round-robin for respawns, or
// uniformly at random for objective placement.
type SpawnPool struct {
	points []Anchor
	next   int
}

func NewSpawnPool(points []Anchor) *SpawnPool {
	return &SpawnPool{points: points}
}

// Next returns the next anchor round-robin. ok is false when the pool
// is empty and the fallback was used.
func (s *SpawnPool) Next() (Anchor, bool) {
	if len(s.points) == 0 {
		return FallbackSpawn, false
	}
	a := s.points[s.next]
	s.next = (s.next + 1) % len(s.points)
	return a, true
}

// Random returns a uniformly random anchor, used for hopball drops.
func (s *SpawnPool) Random(rng *rand.Rand) (Anchor, bool) {
	if len(s.points) == 0 {
		return FallbackSpawn, false
	}
	return s.points[rng.Intn(len(s.points))], true
}

// Len reports how many anchors are configured.
func (s *SpawnPool) Len() int { return len(s.points) }

// ParseAnchors reads a semicolon-separated anchor list from
// configuration. Each anchor is "x,y,z" with an optional fourth yaw
// component, e.g. "0,2,0;12,2,-8,90".
func ParseAnchors(raw string) ([]Anchor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var anchors []Anchor
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) != 3 && len(fields) != 4 {
			return nil, fmt.Errorf("anchor %q: want x,y,z or x,y,z,yaw", part)
		}
		vals := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("anchor %q: %w", part, err)
			}
			vals[i] = v
		}
		a := Anchor{Position: Vec3{X: vals[0], Y: vals[1], Z: vals[2]}}
		if len(vals) == 4 {
			a.Yaw = vals[3]
		}
		anchors = append(anchors, a)
	}
	return anchors, nil
}
