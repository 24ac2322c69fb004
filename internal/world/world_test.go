package world

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	got := Normalize(Vec2{X: 3, Y: 4})
	if math.Abs(got.X-0.6) > 1e-12 || math.Abs(got.Y-0.8) > 1e-12 {
		t.Fatalf("Normalize(3,4) = %v", got)
	}
	if got := Normalize(Vec2{X: 0.0005, Y: 0.0005}); got != (Vec2{}) {
		t.Fatalf("expected zero vector for near-coincident points, got %v", got)
	}
	if got := Normalize(Vec2{}); got != (Vec2{}) {
		t.Fatalf("expected zero vector for zero input, got %v", got)
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(Vec2{X: 1, Y: 1}, Vec2{X: 4, Y: 5}); d != 5 {
		t.Fatalf("Distance = %v, want 5", d)
	}
}

func TestHitTestBoundaryIsInclusive(t *testing.T) {
	center := Vec2{X: 1, Y: 0}
	if !HitTest(center, 0.5, Vec2{X: 1.5, Y: 0}) {
		t.Fatal("point on the rim should hit")
	}
	if HitTest(center, 0.5, Vec2{X: 1.51, Y: 0}) {
		t.Fatal("point outside the rim should miss")
	}
}

func TestFieldDeterministicAndBounded(t *testing.T) {
	cfg := DefaultFieldConfig()
	cfg.Seed = 42
	a := NewField(cfg)
	b := NewField(cfg)
	for i := 0; i < 50; i++ {
		p := Vec2{X: float64(i) * 0.37, Y: float64(i) * -0.21}
		va, vb := a.Sample(p), b.Sample(p)
		if va != vb {
			t.Fatalf("same seed sampled differently at %v: %v vs %v", p, va, vb)
		}
		if va < 0 || va > 1 {
			t.Fatalf("sample out of [0,1] at %v: %v", p, va)
		}
	}
}
