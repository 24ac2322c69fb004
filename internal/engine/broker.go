package engine

import (
	"github.com/talgya/utility-sim/internal/utility"
	"github.com/talgya/utility-sim/internal/world"
)

// ComputedDistance names the straight-line distance input. It is also used
// for computed axes with no record or an unregistered one.
const ComputedDistance = "distance"

// ComputedFunc derives a raw input value from a decision context.
type ComputedFunc func(ctx *utility.Context) float64

// RegisterComputed makes a computed input available under name.
func (s *Scenario) RegisterComputed(name string, fn ComputedFunc) {
	s.computed[name] = fn
}

// RegisterField exposes a noise field, sampled at the thinking agent's
// position, as a computed input.
func (s *Scenario) RegisterField(name string, f *world.Field) {
	s.RegisterComputed(name, func(ctx *utility.Context) float64 {
		return f.Sample(ctx.Agent.Position())
	})
}

// InputValue implements utility.InputBroker.
func (s *Scenario) InputValue(axis *utility.InputAxis, ctx *utility.Context) float64 {
	switch axis.Origin {
	case utility.OriginPropertyOfSelf:
		return ctx.Agent.Property(axis.RecordName())

	case utility.OriginPropertyOfTarget:
		if ctx.Target == nil {
			return 0
		}
		return ctx.Target.Property(axis.RecordName())

	default:
		fn, ok := s.computed[axis.RecordName()]
		if !ok {
			fn = s.computed[ComputedDistance]
		}
		return fn(ctx)
	}
}

func distanceInput(ctx *utility.Context) float64 {
	if ctx.Target == nil {
		return 0
	}
	return world.Distance(ctx.Agent.Position(), ctx.Target.Position())
}
