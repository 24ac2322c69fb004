// Package agents provides the scenario members: agents that think and act
// each tick, and passive locations they can target.
package agents

import (
	"sort"

	"github.com/talgya/utility-sim/internal/utility"
	"github.com/talgya/utility-sim/internal/world"
)

// Properties is a member's named numeric property store. Missing names read 0.
type Properties map[string]float64

// Get returns the named value, or 0.
func (p Properties) Get(name string) float64 {
	return p[name]
}

// Names returns the property names in sorted order.
func (p Properties) Names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Agent is a scenario member that chooses and executes a behavior every tick.
type Agent struct {
	Label   string     `json:"name"`
	Pos     world.Vec2 `json:"position"`
	Size    float64    `json:"radius"`
	Stalled bool       `json:"stalled"` // No legal candidate last tick
	Props   Properties `json:"properties,omitempty"`

	Behaviors []*utility.Behavior `json:"-"`

	// LastChoice is the winner of the most recent non-stalled tick.
	LastChoice *utility.Choice `json:"-"`
}

// NewAgent creates an agent at pos.
func NewAgent(name string, pos world.Vec2, radius float64) *Agent {
	return &Agent{Label: name, Pos: pos, Size: radius, Props: Properties{}}
}

// Name implements utility.Member.
func (a *Agent) Name() string { return a.Label }

// Position implements utility.Member.
func (a *Agent) Position() world.Vec2 { return a.Pos }

// Radius implements utility.Member.
func (a *Agent) Radius() float64 { return a.Size }

// Property implements utility.Member.
func (a *Agent) Property(name string) float64 { return a.Props.Get(name) }

// SetProperty stores a named value on the agent.
func (a *Agent) SetProperty(name string, v float64) {
	if a.Props == nil {
		a.Props = Properties{}
	}
	a.Props[name] = v
}

// Location is a passive scenario member. It never decides anything.
type Location struct {
	Label string     `json:"name"`
	Pos   world.Vec2 `json:"position"`
	Size  float64    `json:"radius"`
	Props Properties `json:"properties,omitempty"`
}

// NewLocation creates a location at pos.
func NewLocation(name string, pos world.Vec2, radius float64) *Location {
	return &Location{Label: name, Pos: pos, Size: radius, Props: Properties{}}
}

// Name implements utility.Member.
func (l *Location) Name() string { return l.Label }

// Position implements utility.Member.
func (l *Location) Position() world.Vec2 { return l.Pos }

// Radius implements utility.Member.
func (l *Location) Radius() float64 { return l.Size }

// Property implements utility.Member.
func (l *Location) Property(name string) float64 { return l.Props.Get(name) }

// SetProperty stores a named value on the location.
func (l *Location) SetProperty(name string, v float64) {
	if l.Props == nil {
		l.Props = Properties{}
	}
	l.Props[name] = v
}
