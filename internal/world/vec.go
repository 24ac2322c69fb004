// Package world provides the 2D geometry shared by scenario members:
// vectors, distances, hit testing, and scalar noise fields over the plane.
package world

import (
	"fmt"
	"math"
)

// minLength is the length below which a vector has no usable direction.
const minLength = 0.001

// Vec2 is a point or direction on the scenario plane.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v * s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Length returns |v|.
func (v Vec2) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

func (v Vec2) String() string {
	return fmt.Sprintf("{X=%.3f, Y=%.3f}", v.X, v.Y)
}

// Normalize returns the unit vector along v, or the zero vector when
// |v| < 0.001 so coincident points never divide by a near-zero length.
func Normalize(v Vec2) Vec2 {
	length := v.Length()
	if length < minLength {
		return Vec2{}
	}
	inv := 1 / length
	return Vec2{X: v.X * inv, Y: v.Y * inv}
}

// Distance returns the straight-line distance between a and b.
func Distance(a, b Vec2) float64 {
	return b.Sub(a).Length()
}

// HitTest reports whether pt lies within radius of center (d² <= r²).
func HitTest(center Vec2, radius float64, pt Vec2) bool {
	dx := pt.X - center.X
	dy := pt.Y - center.Y
	return dx*dx+dy*dy <= radius*radius
}
