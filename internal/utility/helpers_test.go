package utility

import "github.com/talgya/utility-sim/internal/world"

type stubMember struct {
	name   string
	pos    world.Vec2
	radius float64
	props  map[string]float64
}

func (m *stubMember) Name() string                 { return m.name }
func (m *stubMember) Position() world.Vec2         { return m.pos }
func (m *stubMember) Radius() float64              { return m.radius }
func (m *stubMember) Property(name string) float64 { return m.props[name] }

// distanceBroker mirrors the scenario broker closely enough for unit tests.
type distanceBroker struct{}

func (distanceBroker) InputValue(axis *InputAxis, ctx *Context) float64 {
	switch axis.Origin {
	case OriginPropertyOfSelf:
		return ctx.Agent.Property(axis.RecordName())
	case OriginPropertyOfTarget:
		if ctx.Target == nil {
			return 0
		}
		return ctx.Target.Property(axis.RecordName())
	default:
		if ctx.Target == nil {
			return 0
		}
		return world.Distance(ctx.Agent.Position(), ctx.Target.Position())
	}
}

// constBroker returns the same raw value for every axis.
type constBroker float64

func (b constBroker) InputValue(*InputAxis, *Context) float64 { return float64(b) }

func boundConsideration(name string, params ...*InputParameter) *Consideration {
	axis := NewInputAxis(name+" axis", OriginComputed, nil)
	axis.SetParameters(params...)
	c := NewConsideration(name)
	c.SetInput(axis)
	return c
}
