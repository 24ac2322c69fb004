// Package curve provides response curves that map a normalized input to a
// utility score. Every family shares the same four coefficients
// (slope, exponent, vertical shift, horizontal shift) and is defined for every
// finite input, including the points where a naive formula would divide by
// zero or take the logarithm of zero.
package curve

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// Type tags a curve family.
type Type uint8

const (
	Linear     Type = iota // y = m(x-c) + b
	Polynomial             // y = m(x-c)^k + b
	Logistic               // y = k / (1 + e^(-m(x-c))) + b
	Logit                  // y = m ln(u/(1-u)) / k + b, u = x-c clamped to (0,1)
	Normal                 // y = m e^(-k(x-c)^2) + b
	Sine                   // y = m sin(k pi (x-c)) + b
	Step                   // y = b + m when x >= c, else b
)

var typeNames = [...]string{
	Linear:     "linear",
	Polynomial: "polynomial",
	Logistic:   "logistic",
	Logit:      "logit",
	Normal:     "normal",
	Sine:       "sine",
	Step:       "step",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("curve(%d)", uint8(t))
}

// ParseType maps a family name (case-insensitive) to its Type.
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return Linear, fmt.Errorf("unknown curve type %q", s)
}

// MarshalText encodes the family by name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a family name.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Curve is a response curve: a family tag plus its coefficients.
type Curve struct {
	Type     Type    `json:"type" yaml:"type"`
	Slope    float64 `json:"slope" yaml:"slope"`
	Exponent float64 `json:"exponent" yaml:"exponent"`
	VShift   float64 `json:"vshift" yaml:"vshift"`
	HShift   float64 `json:"hshift" yaml:"hshift"`
}

// New returns a curve of the given family.
func New(t Type, slope, exponent, vshift, hshift float64) Curve {
	return Curve{Type: t, Slope: slope, Exponent: exponent, VShift: vshift, HShift: hshift}
}

// Identity is the default curve for a fresh consideration: y = x.
func Identity() Curve {
	return New(Linear, 1, 1, 0, 0)
}

// Evaluate computes y for x using the default registry. No clamping is done.
func (c Curve) Evaluate(x float64) float64 {
	return defaultRegistry.Evaluate(c, x)
}

func (c Curve) String() string {
	return fmt.Sprintf("%s(m=%g k=%g b=%g c=%g)", c.Type, c.Slope, c.Exponent, c.VShift, c.HShift)
}

// Func evaluates one curve family.
type Func func(c Curve, x float64) float64

// Registry maps curve families to their evaluators.
type Registry struct {
	mu    sync.RWMutex
	funcs map[Type]Func
}

// NewRegistry returns a registry preloaded with the built-in families.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[Type]Func)}
	r.funcs[Linear] = linear
	r.funcs[Polynomial] = polynomial
	r.funcs[Logistic] = logistic
	r.funcs[Logit] = logit
	r.funcs[Normal] = normal
	r.funcs[Sine] = sine
	r.funcs[Step] = step
	return r
}

// Register installs or replaces the evaluator for a family.
func (r *Registry) Register(t Type, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[t] = fn
}

// Evaluate runs the family evaluator for c. Unknown families fall back to linear.
func (r *Registry) Evaluate(c Curve, x float64) float64 {
	r.mu.RLock()
	fn, ok := r.funcs[c.Type]
	r.mu.RUnlock()
	if !ok {
		fn = linear
	}
	return fn(c, x)
}

var defaultRegistry = NewRegistry()

// Register replaces a family evaluator in the package default registry.
func Register(t Type, fn Func) {
	defaultRegistry.Register(t, fn)
}

// Clamp01 limits v to [0, 1]. NaN is returned as 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
