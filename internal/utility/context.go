package utility

import (
	"fmt"
	"strings"

	"github.com/talgya/utility-sim/internal/world"
)

// Member is anything that can take part in a scenario: an agent that thinks,
// or a passive location. Targets are Members.
type Member interface {
	Name() string
	Position() world.Vec2
	Radius() float64
	Property(name string) float64
}

// InputBroker supplies raw input values for an axis in a given context.
type InputBroker interface {
	InputValue(axis *InputAxis, ctx *Context) float64
}

// ConsiderationScores is the full scoring breakdown of one candidate.
type ConsiderationScores struct {
	Considerations map[*Consideration]Score
	Order          []*Consideration // Scoring order, for stable output
	InitialWeight  float64
	Combined       float64 // Combined consideration scores before weighting
	Momentum       float64 // Multiplier applied for repeating the last choice
	FinalScore     float64
}

func (s *ConsiderationScores) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Initial weight: %g\nFinal score: %g\n\n", s.InitialWeight, s.FinalScore)
	if s.Momentum != 1 {
		fmt.Fprintf(&b, "Momentum bonus: x%g\n\n", s.Momentum)
	}
	for _, c := range s.Order {
		sc := s.Considerations[c]
		input := "(none)"
		if c.Input != nil {
			input = c.Input.Name
		}
		fmt.Fprintf(&b, "%s\nInput %q = %g, score = %g\n\n", c.Name, input, sc.InputValue, sc.FinalScore)
	}
	return b.String()
}

// Context is one (agent, target, behavior) combination under evaluation.
// Target is nil for untargeted behaviors.
type Context struct {
	Agent    Member
	Target   Member
	Behavior *Behavior
	Scores   *ConsiderationScores
}

// FinalScore returns the candidate score, or 0 before scoring.
func (c *Context) FinalScore() float64 {
	if c.Scores == nil {
		return 0
	}
	return c.Scores.FinalScore
}

// TargetName returns the target's name, or "(none)".
func (c *Context) TargetName() string {
	if c.Target == nil {
		return "(none)"
	}
	return c.Target.Name()
}

func (c *Context) String() string {
	scores := ""
	if c.Scores != nil {
		scores = c.Scores.String()
	}
	return fmt.Sprintf("Target: %s\nBehavior: %s [%s]\n%s", c.TargetName(), c.Behavior.Name, c.Behavior.Action, scores)
}

// Choice remembers which behavior and target an agent last acted on.
type Choice struct {
	Behavior *Behavior
	Target   Member
}

// DecisionHistory records every context scored for one agent in one tick and
// the winner, which is nil when the agent stalled.
type DecisionHistory struct {
	Scored []*Context
	Winner *Context
}

// Stalled reports whether no candidate won.
func (h *DecisionHistory) Stalled() bool {
	return h.Winner == nil
}

func (h *DecisionHistory) String() string {
	if h.Winner == nil {
		return "[Stalled]"
	}
	return h.Winner.String()
}
