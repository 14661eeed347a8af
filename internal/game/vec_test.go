package game

import (
	"math"
	"testing"
)

// TestInverseLerpClamps verifies values outside the range pin to 0 and 1
func TestInverseLerpClamps(t *testing.T) {
	if got := inverseLerp(15, 30, 10); got != 0 {
		t.Errorf("below range: got %f, want 0", got)
	}
	if got := inverseLerp(15, 30, 45); got != 1 {
		t.Errorf("above range: got %f, want 1", got)
	}
	if got := inverseLerp(15, 30, 22.5); got != 0.5 {
		t.Errorf("midpoint: got %f, want 0.5", got)
	}
}

// TestInverseLerpDegenerateRange verifies a zero-width range returns 0
func TestInverseLerpDegenerateRange(t *testing.T) {
	if got := inverseLerp(10, 10, 10); got != 0 {
		t.Errorf("degenerate range: got %f, want 0", got)
	}
}

// TestMoveTowardStopsAtTarget verifies no overshoot in either direction
func TestMoveTowardStopsAtTarget(t *testing.T) {
	if got := moveToward(2.0, 1.0, 5.0); got != 1.0 {
		t.Errorf("downward overshoot: got %f, want 1.0", got)
	}
	if got := moveToward(1.0, 2.0, 5.0); got != 2.0 {
		t.Errorf("upward overshoot: got %f, want 2.0", got)
	}
	if got := moveToward(2.0, 1.0, 0.25); got != 1.75 {
		t.Errorf("partial step: got %f, want 1.75", got)
	}
}

// TestNegateInvertsAllComponents verifies hit normal inversion
func TestNegateInvertsAllComponents(t *testing.T) {
	n := Vec3{X: 1, Y: -2, Z: 0.5}.Negate()
	if n.X != -1 || n.Y != 2 || n.Z != -0.5 {
		t.Errorf("Negate returned %+v", n)
	}
}

// TestLengthAndDistance verifies the basic magnitude helpers
func TestLengthAndDistance(t *testing.T) {
	v := Vec3{X: 3, Y: 4, Z: 0}
	if got := v.Length(); got != 5 {
		t.Errorf("Length: got %f, want 5", got)
	}
	a := Vec3{X: 1, Y: 1, Z: 1}
	b := Vec3{X: 1, Y: 1, Z: 3}
	if got := a.DistanceTo(b); math.Abs(got-2) > 1e-12 {
		t.Errorf("DistanceTo: got %f, want 2", got)
	}
}
