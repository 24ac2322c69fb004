package engine

import (
	"github.com/talgya/utility-sim/internal/agents"
	"github.com/talgya/utility-sim/internal/entropy"
	"github.com/talgya/utility-sim/internal/utility"
	"github.com/talgya/utility-sim/internal/world"
)

// EscapeJitter bounds the random offset added when an escape clamp triggers.
const EscapeJitter = 0.04

// execute applies the winning behavior to the agent.
func (s *Scenario) execute(a *agents.Agent, ctx *utility.Context, dt float64) {
	a.Stalled = false

	switch ctx.Behavior.Action {
	case utility.ActionIdle:

	case utility.ActionMoveToTarget:
		if ctx.Target == nil {
			return
		}
		pos := a.Pos
		limit := ctx.Target.Position()
		dir := world.Normalize(limit.Sub(pos))
		step := s.Speed * dt
		a.Pos = world.Vec2{
			X: ClampToArrival(pos.X, limit.X, pos.X+step*dir.X),
			Y: ClampToArrival(pos.Y, limit.Y, pos.Y+step*dir.Y),
		}

	case utility.ActionMoveAwayFromTarget:
		if ctx.Target == nil {
			return
		}
		pos := a.Pos
		limit := ctx.Target.Position()
		dir := world.Normalize(limit.Sub(pos))
		step := s.Speed * dt
		a.Pos = world.Vec2{
			X: ClampToEscape(s.rng, pos.X, limit.X, pos.X-step*dir.X),
			Y: ClampToEscape(s.rng, pos.Y, limit.Y, pos.Y-step*dir.Y),
		}

	case utility.ActionTalk, utility.ActionCustom:
		s.customActions = append(s.customActions, ctx)
	}
}

// ClampToArrival keeps a coordinate moving toward limit from overshooting it.
// When start == limit the low side wins: anything above limit is capped.
func ClampToArrival(start, limit, desired float64) float64 {
	if start <= limit {
		if desired > limit {
			return limit
		}
		return desired
	}
	if desired < limit {
		return limit
	}
	return desired
}

// ClampToEscape keeps a coordinate moving away from limit from crossing back
// over it. When the clamp triggers the result is limit plus a jitter in
// [-EscapeJitter, +EscapeJitter] so the agent does not pin to the boundary.
func ClampToEscape(rng entropy.Source, start, limit, desired float64) float64 {
	if start <= limit {
		if desired > limit {
			return limit + entropy.Jitter(rng, EscapeJitter)
		}
		return desired
	}
	if desired < limit {
		return limit + entropy.Jitter(rng, EscapeJitter)
	}
	return desired
}
