package engine

import (
	"fmt"

	"github.com/talgya/utility-sim/internal/world"
)

// Inspection describes the member under a point and its latest decision.
type Inspection struct {
	Kind     string     `json:"kind"` // "agent" or "location"
	Name     string     `json:"name"`
	Position world.Vec2 `json:"position"`
	Radius   float64    `json:"radius"`
	Stalled  bool       `json:"stalled,omitempty"`
	Text     string     `json:"text"`
}

// Inspect returns the first agent, then the first location, whose disc
// covers pt.
func (s *Scenario) Inspect(pt world.Vec2) (Inspection, bool) {
	for _, a := range s.Agents {
		if !world.HitTest(a.Pos, a.Size, pt) {
			continue
		}
		decision := "[Stalled]"
		if h := s.decisions[a]; h != nil && h.Winner != nil {
			decision = h.Winner.String()
		}
		return Inspection{
			Kind:     "agent",
			Name:     a.Name(),
			Position: a.Pos,
			Radius:   a.Size,
			Stalled:  a.Stalled,
			Text:     fmt.Sprintf("Agent: %s\n\n%s R:%g\n%s", a.Name(), a.Pos, a.Size, decision),
		}, true
	}

	for _, l := range s.Locations {
		if !world.HitTest(l.Pos, l.Size, pt) {
			continue
		}
		return Inspection{
			Kind:     "location",
			Name:     l.Name(),
			Position: l.Pos,
			Radius:   l.Size,
			Text:     fmt.Sprintf("Location: %s\n%s R:%g", l.Name(), l.Pos, l.Size),
		}, true
	}

	return Inspection{}, false
}
