package game

import (
	"math/rand"
	"testing"
)

// TestSpawnPoolRoundRobin verifies anchors cycle in order and wrap
func TestSpawnPoolRoundRobin(t *testing.T) {
	points := []Anchor{
		{Position: Vec3{X: 1}},
		{Position: Vec3{X: 2}},
		{Position: Vec3{X: 3}},
	}
	pool := NewSpawnPool(points)

	want := []float64{1, 2, 3, 1, 2}
	for i, x := range want {
		a, ok := pool.Next()
		if !ok {
			t.Fatalf("draw %d: pool reported empty", i)
		}
		if a.Position.X != x {
			t.Errorf("draw %d: got x=%f, want %f", i, a.Position.X, x)
		}
	}
}

// TestSpawnPoolEmptyFallback verifies an unconfigured pool still hands
// out a usable anchor
func TestSpawnPoolEmptyFallback(t *testing.T) {
	pool := NewSpawnPool(nil)
	a, ok := pool.Next()
	if ok {
		t.Error("empty pool claimed a configured anchor")
	}
	if a != FallbackSpawn {
		t.Errorf("got %+v, want fallback %+v", a, FallbackSpawn)
	}
	if _, ok := pool.Random(rand.New(rand.NewSource(1))); ok {
		t.Error("empty pool claimed a random anchor")
	}
}

// TestSpawnPoolRandomStaysInSet verifies random draws only return
// configured anchors
func TestSpawnPoolRandomStaysInSet(t *testing.T) {
	points := []Anchor{
		{Position: Vec3{X: 1}},
		{Position: Vec3{X: 2}},
	}
	pool := NewSpawnPool(points)
	rng := rand.New(rand.NewSource(7))

	seen := map[float64]bool{}
	for i := 0; i < 50; i++ {
		a, ok := pool.Random(rng)
		if !ok {
			t.Fatal("pool reported empty")
		}
		if a.Position.X != 1 && a.Position.X != 2 {
			t.Fatalf("draw outside set: %+v", a)
		}
		seen[a.Position.X] = true
	}
	if len(seen) != 2 {
		t.Error("50 draws never hit both anchors")
	}
}

// TestParseAnchors verifies the config format, including optional yaw
// and sloppy whitespace
func TestParseAnchors(t *testing.T) {
	anchors, err := ParseAnchors(" 0,2,0 ; 12, 2, -8, 90 ;")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(anchors) != 2 {
		t.Fatalf("got %d anchors, want 2", len(anchors))
	}
	if anchors[0].Position != (Vec3{X: 0, Y: 2, Z: 0}) || anchors[0].Yaw != 0 {
		t.Errorf("anchor 0: %+v", anchors[0])
	}
	if anchors[1].Position != (Vec3{X: 12, Y: 2, Z: -8}) || anchors[1].Yaw != 90 {
		t.Errorf("anchor 1: %+v", anchors[1])
	}
}

// TestParseAnchorsRejectsMalformed verifies bad field counts and
// non-numeric values error out
func TestParseAnchorsRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"1,2", "1,2,3,4,5", "a,b,c"} {
		if _, err := ParseAnchors(raw); err == nil {
			t.Errorf("%q: want error, got nil", raw)
		}
	}
	if anchors, err := ParseAnchors("   "); err != nil || anchors != nil {
		t.Errorf("blank input: got %v, %v", anchors, err)
	}
}
