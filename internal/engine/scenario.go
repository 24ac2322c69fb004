// Package engine advances a scenario one tick at a time: every agent decides,
// the winning behavior is applied, and observers receive the decision history.
package engine

import (
	"context"
	"log/slog"

	"github.com/talgya/utility-sim/internal/agents"
	"github.com/talgya/utility-sim/internal/entropy"
	"github.com/talgya/utility-sim/internal/logging"
	"github.com/talgya/utility-sim/internal/utility"
)

// DefaultSpeed is the distance an agent covers per unit of dt.
const DefaultSpeed = 1.0

// TickReport is delivered to observers once per Advance.
type TickReport struct {
	Tick          uint64
	DeltaTime     float64
	Decisions     map[*agents.Agent]*utility.DecisionHistory
	Order         []*agents.Agent    // Agents in processing order
	CustomActions []*utility.Context // Talk and custom winners, in order
}

// Scenario owns the agents and locations of one simulation and the transient
// state of the most recent tick.
type Scenario struct {
	Name      string
	Agents    []*agents.Agent
	Locations []*agents.Location
	Policy    utility.Policy
	Speed     float64

	rng      entropy.Source
	computed map[string]ComputedFunc
	tick     uint64
	changed  utility.Notifier

	nextObserver int
	observers    []tickObserver

	// Per-tick state, recreated by every Advance.
	active        map[*agents.Agent]bool
	decisions     map[*agents.Agent]*utility.DecisionHistory
	customActions []*utility.Context
}

type tickObserver struct {
	id int
	fn func(TickReport)
}

// NewScenario creates an empty scenario. Jitter is drawn from rng; a nil rng
// falls back to a non-reproducible crypto source.
func NewScenario(name string, rng entropy.Source) *Scenario {
	if rng == nil {
		rng = entropy.Crypto()
	}
	s := &Scenario{
		Name:     name,
		Policy:   utility.DefaultPolicy(),
		Speed:    DefaultSpeed,
		rng:      rng,
		computed: make(map[string]ComputedFunc),
	}
	s.RegisterComputed(ComputedDistance, distanceInput)
	return s
}

// AddAgent appends an agent; agents are processed in insertion order.
func (s *Scenario) AddAgent(a ...*agents.Agent) {
	s.Agents = append(s.Agents, a...)
}

// AddLocation appends a location.
func (s *Scenario) AddLocation(l ...*agents.Location) {
	s.Locations = append(s.Locations, l...)
}

// Agent finds an agent by name.
func (s *Scenario) Agent(name string) *agents.Agent {
	for _, a := range s.Agents {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// Location finds a location by name.
func (s *Scenario) Location(name string) *agents.Location {
	for _, l := range s.Locations {
		if l.Name() == name {
			return l
		}
	}
	return nil
}

// Rename changes the scenario name and notifies dependents.
func (s *Scenario) Rename(name string) {
	s.Name = name
	s.changed.Notify()
}

// OnChange subscribes to structural changes of the scenario.
func (s *Scenario) OnChange(fn func()) (cancel func()) {
	return s.changed.Subscribe(fn)
}

// Subscribe registers a tick observer. Observers run synchronously at the
// end of Advance, in subscription order.
func (s *Scenario) Subscribe(fn func(TickReport)) (cancel func()) {
	s.nextObserver++
	id := s.nextObserver
	s.observers = append(s.observers, tickObserver{id: id, fn: fn})
	return func() {
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Tick returns the number of completed Advance calls.
func (s *Scenario) Tick() uint64 {
	return s.tick
}

// SetTick restores the tick counter, e.g. after loading saved state.
func (s *Scenario) SetTick(t uint64) {
	s.tick = t
}

// Members returns every agent followed by every location.
func (s *Scenario) Members() []utility.Member {
	members := make([]utility.Member, 0, len(s.Agents)+len(s.Locations))
	for _, a := range s.Agents {
		members = append(members, a)
	}
	for _, l := range s.Locations {
		members = append(members, l)
	}
	return members
}

// Advance runs one tick of duration dt. Agents are processed in list order
// and move immediately, so later agents see earlier agents' new positions.
func (s *Scenario) Advance(dt float64) TickReport {
	s.active = make(map[*agents.Agent]bool, len(s.Agents))
	s.decisions = make(map[*agents.Agent]*utility.DecisionHistory, len(s.Agents))
	s.customActions = nil
	s.tick++

	targets := s.Members()
	order := make([]*agents.Agent, 0, len(s.Agents))

	for _, a := range s.Agents {
		history := utility.Decide(utility.Decision{
			Agent:     a,
			Behaviors: a.Behaviors,
			Targets:   targets,
			Broker:    s,
			Policy:    s.Policy,
			Last:      a.LastChoice,
		})
		traceCandidates(a, history)

		if history.Winner != nil {
			s.active[a] = true
			s.execute(a, history.Winner, dt)
			a.LastChoice = &utility.Choice{Behavior: history.Winner.Behavior, Target: history.Winner.Target}
		} else {
			a.Stalled = true
			slog.Debug("agent stalled", "agent", a.Name(), "tick", s.tick, "behaviors", len(a.Behaviors))
		}

		s.decisions[a] = history
		order = append(order, a)
	}

	report := TickReport{
		Tick:          s.tick,
		DeltaTime:     dt,
		Decisions:     s.decisions,
		Order:         order,
		CustomActions: s.customActions,
	}
	for _, o := range append([]tickObserver(nil), s.observers...) {
		o.fn(report)
	}
	return report
}

// Decisions returns the decision histories of the most recent tick.
// Only valid until the next Advance.
func (s *Scenario) Decisions() map[*agents.Agent]*utility.DecisionHistory {
	return s.decisions
}

// Decision returns one agent's decision history of the most recent tick.
func (s *Scenario) Decision(a *agents.Agent) *utility.DecisionHistory {
	return s.decisions[a]
}

// ActiveThisTick reports whether a acted during the most recent tick.
func (s *Scenario) ActiveThisTick(a *agents.Agent) bool {
	return s.active[a]
}

// CustomActions returns the talk and custom winners of the most recent tick.
func (s *Scenario) CustomActions() []*utility.Context {
	return s.customActions
}

func traceCandidates(a *agents.Agent, h *utility.DecisionHistory) {
	ctx := context.Background()
	if !slog.Default().Enabled(ctx, logging.LevelTrace) {
		return
	}
	for _, c := range h.Scored {
		slog.Log(ctx, logging.LevelTrace, "candidate scored",
			"agent", a.Name(),
			"behavior", c.Behavior.Name,
			"target", c.TargetName(),
			"score", c.FinalScore(),
			"winner", c == h.Winner,
		)
	}
}
