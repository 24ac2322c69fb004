package utility

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/utility-sim/internal/curve"
)

// ErrDegenerateNormalization is returned by Consideration.Validate when a
// parameter set would divide by zero during normalization.
var ErrDegenerateNormalization = errors.New("degenerate normalization parameters")

// InputParameterValue is the concrete value a consideration chose for one of
// its axis parameters.
type InputParameterValue struct {
	Parameter *InputParameter
	Value     float64
}

// Score is the outcome of one consideration for one context.
type Score struct {
	InputValue float64 `json:"input_value"` // Normalized input
	FinalScore float64 `json:"final_score"` // Curve output
}

// Consideration binds an input axis to a response curve and the parameter
// values used to normalize the raw input.
type Consideration struct {
	Name            string
	Input           *InputAxis
	Curve           curve.Curve
	ParameterValues []*InputParameterValue

	changed Notifier
	unbind  func()
}

// NewConsideration creates an unbound consideration with an identity curve.
func NewConsideration(name string) *Consideration {
	return &Consideration{Name: name, Curve: curve.Identity()}
}

func (c *Consideration) String() string {
	return c.Name
}

// Rename changes the consideration name and notifies dependents.
func (c *Consideration) Rename(name string) {
	c.Name = name
	c.changed.Notify()
}

// OnChange subscribes to structural changes of the consideration.
func (c *Consideration) OnChange(fn func()) (cancel func()) {
	return c.changed.Subscribe(fn)
}

// SetInput binds the consideration to axis. Parameter values are rebuilt now
// and again whenever the axis reports a change.
func (c *Consideration) SetInput(axis *InputAxis) {
	if c.unbind != nil {
		c.unbind()
		c.unbind = nil
	}
	c.Input = axis
	if axis != nil {
		c.unbind = axis.OnChange(func() {
			c.RebuildParameterValues()
			c.changed.Notify()
		})
	}
	c.RebuildParameterValues()
	c.changed.Notify()
}

// RebuildParameterValues resynchronizes ParameterValues with the bound axis.
// A value survives when the same parameter still occupies its position;
// otherwise the first slot is seeded from the parameter minimum and later
// slots from the parameter maximum.
func (c *Consideration) RebuildParameterValues() {
	old := c.ParameterValues
	c.ParameterValues = nil
	if c.Input == nil {
		return
	}

	for i, p := range c.Input.Parameters {
		if i < len(old) && old[i].Parameter == p {
			c.ParameterValues = append(c.ParameterValues, old[i])
			continue
		}
		seed := p.Min
		if len(c.ParameterValues) > 0 {
			seed = p.Max
		}
		c.ParameterValues = append(c.ParameterValues, &InputParameterValue{Parameter: p, Value: seed})
	}
}

// SetParameterValue sets the value at position i.
func (c *Consideration) SetParameterValue(i int, v float64) error {
	if i < 0 || i >= len(c.ParameterValues) {
		return fmt.Errorf("consideration %q: parameter index %d out of range (%d values)", c.Name, i, len(c.ParameterValues))
	}
	c.ParameterValues[i].Value = v
	return nil
}

// Validate rejects parameter sets that cannot normalize.
func (c *Consideration) Validate() error {
	switch len(c.ParameterValues) {
	case 1:
		if c.ParameterValues[0].Value == 0 {
			return fmt.Errorf("consideration %q: divisor is zero: %w", c.Name, ErrDegenerateNormalization)
		}
	case 2:
		if c.ParameterValues[0].Value == c.ParameterValues[1].Value {
			return fmt.Errorf("consideration %q: min equals max (%g): %w",
				c.Name, c.ParameterValues[0].Value, ErrDegenerateNormalization)
		}
	}
	return nil
}

// Normalize maps a raw input onto the curve domain:
//   - one parameter p: raw / p
//   - two parameters min, max: (raw - min) / (max - min)
//   - otherwise: raw clamped to [0, 1]
//
// The one- and two-parameter forms are not clamped. A zero divisor yields 0.
func (c *Consideration) Normalize(raw float64) float64 {
	switch len(c.ParameterValues) {
	case 1:
		p := c.ParameterValues[0].Value
		if p == 0 {
			return 0
		}
		return raw / p
	case 2:
		lo := c.ParameterValues[0].Value
		hi := c.ParameterValues[1].Value
		if hi == lo {
			return 0
		}
		return (raw - lo) / (hi - lo)
	default:
		return curve.Clamp01(raw)
	}
}

// Score reads the raw input through broker, normalizes it and runs it
// through the curve. A NaN curve output scores 0.
func (c *Consideration) Score(broker InputBroker, ctx *Context) Score {
	raw := 0.0
	if c.Input != nil && broker != nil {
		raw = broker.InputValue(c.Input, ctx)
	}
	s := Score{InputValue: c.Normalize(raw)}
	s.FinalScore = c.Curve.Evaluate(s.InputValue)
	if math.IsNaN(s.FinalScore) {
		s.FinalScore = 0
	}
	return s
}
