package engine

import (
	"math"
	"testing"

	"github.com/talgya/utility-sim/internal/agents"
	"github.com/talgya/utility-sim/internal/entropy"
	"github.com/talgya/utility-sim/internal/utility"
	"github.com/talgya/utility-sim/internal/world"
)

// distanceConsideration normalizes distance by a single divisor through an
// identity curve.
func distanceConsideration(divisor float64) *utility.Consideration {
	axis := utility.NewInputAxis("Distance", utility.OriginComputed, &utility.Record{Name: ComputedDistance, Computed: true})
	axis.SetParameters(&utility.InputParameter{Name: "Range", Min: divisor, Max: divisor})
	c := utility.NewConsideration("distance")
	c.SetInput(axis)
	return c
}

func singleBehaviorScenario(action utility.ActionKind, seed int64) (*Scenario, *agents.Agent, *agents.Location) {
	s := NewScenario("test", entropy.NewSeeded(seed))
	b := utility.NewBehavior("go", action)
	b.CanTargetOthers = true
	b.Considerations = []*utility.Consideration{distanceConsideration(1.0)}

	a := agents.NewAgent("agent", world.Vec2{X: 0, Y: 0}, 0.1)
	a.Behaviors = []*utility.Behavior{b}
	loc := agents.NewLocation("spot", world.Vec2{X: 1, Y: 0}, 0.1)
	s.AddAgent(a)
	s.AddLocation(loc)
	return s, a, loc
}

func TestMoveToTargetArrivesExactly(t *testing.T) {
	s, a, loc := singleBehaviorScenario(utility.ActionMoveToTarget, 1)
	s.Advance(1.0)

	if a.Pos != (world.Vec2{X: 1, Y: 0}) {
		t.Fatalf("agent at %v, want (1,0)", a.Pos)
	}
	h := s.Decision(a)
	if h == nil || h.Winner == nil || h.Winner.Target != loc {
		t.Fatalf("expected location to win, got %+v", h)
	}
	if !s.ActiveThisTick(a) || a.Stalled {
		t.Fatalf("expected active, non-stalled agent")
	}

	// Further ticks never overshoot.
	for i := 0; i < 5; i++ {
		s.Advance(1.0)
	}
	if a.Pos.X != 1 || a.Pos.Y != 0 {
		t.Fatalf("agent drifted to %v", a.Pos)
	}
}

func TestMoveToTargetPartialStep(t *testing.T) {
	s, a, _ := singleBehaviorScenario(utility.ActionMoveToTarget, 1)
	s.Advance(0.25)
	if math.Abs(a.Pos.X-0.25) > 1e-12 || a.Pos.Y != 0 {
		t.Fatalf("agent at %v, want (0.25,0)", a.Pos)
	}
}

func TestMoveAwayNeverRecrossesTarget(t *testing.T) {
	s, a, loc := singleBehaviorScenario(utility.ActionMoveAwayFromTarget, 3)
	prev := a.Pos.X
	for i := 0; i < 20; i++ {
		s.Advance(0.5)
		if a.Pos.X > loc.Pos.X {
			t.Fatalf("tick %d: agent crossed target: %v", i, a.Pos)
		}
		if a.Pos.X > prev {
			t.Fatalf("tick %d: agent moved toward target: %v -> %v", i, prev, a.Pos.X)
		}
		prev = a.Pos.X
	}
	if math.Abs(a.Pos.X+10) > 1e-9 || a.Pos.Y != 0 {
		t.Fatalf("agent at %v, want (-10,0) after 20 half steps", a.Pos)
	}
}

func TestIdleOnlyAgentNeverMovesOrStalls(t *testing.T) {
	s := NewScenario("idle", entropy.NewSeeded(1))
	a := agents.NewAgent("sitter", world.Vec2{X: 2, Y: 3}, 0.1)
	a.Behaviors = []*utility.Behavior{utility.NewBehavior("wait", utility.ActionIdle)}
	s.AddAgent(a)

	for i := 0; i < 10; i++ {
		s.Advance(1)
		if a.Stalled {
			t.Fatalf("tick %d: idle agent stalled", i)
		}
		if a.Pos != (world.Vec2{X: 2, Y: 3}) {
			t.Fatalf("tick %d: idle agent moved to %v", i, a.Pos)
		}
	}
	if s.Decision(a).Winner.Target != nil {
		t.Fatal("idle winner should have no target")
	}
}

func TestStallWithoutCandidates(t *testing.T) {
	s := NewScenario("stall", entropy.NewSeeded(1))
	b := utility.NewBehavior("approach", utility.ActionMoveToTarget)
	b.CanTargetOthers = true
	a := agents.NewAgent("lonely", world.Vec2{X: 5, Y: 5}, 0.1)
	a.Behaviors = []*utility.Behavior{b}
	s.AddAgent(a)

	report := s.Advance(1)
	if !a.Stalled {
		t.Fatal("expected agent to stall")
	}
	if a.Pos != (world.Vec2{X: 5, Y: 5}) {
		t.Fatalf("stalled agent moved to %v", a.Pos)
	}
	if s.ActiveThisTick(a) {
		t.Fatal("stalled agent marked active")
	}
	if h := report.Decisions[a]; h == nil || h.Winner != nil {
		t.Fatalf("expected recorded stall, got %+v", h)
	}

	// A location appears: the agent recovers.
	s.AddLocation(agents.NewLocation("beacon", world.Vec2{X: 6, Y: 5}, 0.1))
	s.Advance(1)
	if a.Stalled {
		t.Fatal("agent should recover once a target exists")
	}
}

func TestLaterAgentsSeeEarlierMoves(t *testing.T) {
	s := NewScenario("order", entropy.NewSeeded(1))

	// The leader walks to the flag; the follower targets the leader.
	lead := utility.NewBehavior("to flag", utility.ActionMoveToTarget)
	lead.CanTargetOthers = true
	follow := utility.NewBehavior("follow", utility.ActionMoveToTarget)
	follow.CanTargetOthers = true

	leader := agents.NewAgent("leader", world.Vec2{X: 0, Y: 0}, 0.1)
	leader.Behaviors = []*utility.Behavior{lead}
	follower := agents.NewAgent("follower", world.Vec2{X: 0, Y: -4}, 0.1)
	follower.Behaviors = []*utility.Behavior{follow}
	flag := agents.NewLocation("flag", world.Vec2{X: 4, Y: 0}, 0.1)

	// Leader only scores the flag; follower only scores the leader.
	lead.Considerations = []*utility.Consideration{propertyGate("flag")}
	follow.Considerations = []*utility.Consideration{propertyGate("leader")}
	flag.SetProperty("flag", 1)
	leader.SetProperty("leader", 1)

	s.AddAgent(leader, follower)
	s.AddLocation(flag)
	s.Advance(1)

	if leader.Pos != (world.Vec2{X: 1, Y: 0}) {
		t.Fatalf("leader at %v, want (1,0)", leader.Pos)
	}
	// Direction computed from the leader's new position (1,0), not (0,0).
	want := world.Normalize(world.Vec2{X: 1, Y: 4})
	if math.Abs(follower.Pos.X-want.X) > 1e-12 || math.Abs(follower.Pos.Y-(-4+want.Y)) > 1e-12 {
		t.Fatalf("follower at %v, want toward leader's updated position", follower.Pos)
	}
}

func propertyGate(name string) *utility.Consideration {
	axis := utility.NewInputAxis(name, utility.OriginPropertyOfTarget, &utility.Record{Name: name})
	c := utility.NewConsideration(name)
	c.SetInput(axis)
	return c
}

func TestAdvanceIsDeterministicForSeed(t *testing.T) {
	run := func() ([]world.Vec2, []string) {
		s := NewScenario("det", entropy.NewSeeded(11))
		approach := utility.NewBehavior("approach", utility.ActionMoveToTarget)
		approach.CanTargetOthers = true
		approach.Considerations = []*utility.Consideration{distanceConsideration(10)}
		flee := utility.NewBehavior("flee", utility.ActionMoveAwayFromTarget)
		flee.CanTargetOthers = true
		flee.Weight = 0.5
		flee.Considerations = []*utility.Consideration{distanceConsideration(5)}

		for i := 0; i < 4; i++ {
			a := agents.NewAgent(string(rune('a'+i)), world.Vec2{X: float64(i), Y: float64(i % 2)}, 0.1)
			a.Behaviors = []*utility.Behavior{approach, flee}
			s.AddAgent(a)
		}
		s.AddLocation(agents.NewLocation("home", world.Vec2{X: 2, Y: 2}, 0.2))

		var winners []string
		for tick := 0; tick < 15; tick++ {
			r := s.Advance(0.3)
			for _, a := range r.Order {
				w := r.Decisions[a].Winner
				winners = append(winners, a.Name()+":"+w.Behavior.Name+"->"+w.TargetName())
			}
		}
		var pos []world.Vec2
		for _, a := range s.Agents {
			pos = append(pos, a.Pos)
		}
		return pos, winners
	}

	p1, w1 := run()
	p2, w2 := run()
	if len(w1) != len(w2) {
		t.Fatalf("winner count differs: %d vs %d", len(w1), len(w2))
	}
	for i := range w1 {
		if w1[i] != w2[i] {
			t.Fatalf("winner %d differs: %s vs %s", i, w1[i], w2[i])
		}
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("agent %d position differs: %v vs %v", i, p1[i], p2[i])
		}
	}
}

func TestTalkAndCustomAreQueued(t *testing.T) {
	s := NewScenario("talk", entropy.NewSeeded(1))
	talk := utility.NewBehavior("greet", utility.ActionTalk)
	talk.Payload = "hello"
	talk.CanTargetOthers = true
	shout := utility.NewBehavior("shout", utility.ActionCustom)
	shout.Payload = "hey!"

	a := agents.NewAgent("a", world.Vec2{}, 0.1)
	a.Behaviors = []*utility.Behavior{talk}
	b := agents.NewAgent("b", world.Vec2{X: 1}, 0.1)
	b.Behaviors = []*utility.Behavior{shout}
	s.AddAgent(a, b)

	report := s.Advance(1)
	if len(report.CustomActions) != 2 {
		t.Fatalf("expected 2 custom actions, got %d", len(report.CustomActions))
	}
	if report.CustomActions[0].Target != b || report.CustomActions[0].Behavior.Payload != "hello" {
		t.Fatalf("unexpected first custom action: %v", report.CustomActions[0])
	}
	if report.CustomActions[1].Target != nil {
		t.Fatal("untargeted custom action should have no target")
	}
	if a.Pos != (world.Vec2{}) || b.Pos != (world.Vec2{X: 1}) {
		t.Fatal("talk and custom actions must not move agents")
	}

	// Transient state is rebuilt each tick.
	a.Behaviors = []*utility.Behavior{utility.NewBehavior("rest", utility.ActionIdle)}
	b.Behaviors = a.Behaviors
	s.Advance(1)
	if len(s.CustomActions()) != 0 {
		t.Fatalf("custom actions leaked across ticks: %d", len(s.CustomActions()))
	}
}

func TestObserversReceiveEveryTick(t *testing.T) {
	s, a, _ := singleBehaviorScenario(utility.ActionMoveToTarget, 1)
	var got []TickReport
	cancel := s.Subscribe(func(r TickReport) { got = append(got, r) })

	s.Advance(0.5)
	s.Advance(0.25)
	cancel()
	s.Advance(0.25)

	if len(got) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(got))
	}
	if got[0].Tick != 1 || got[0].DeltaTime != 0.5 || got[1].Tick != 2 || got[1].DeltaTime != 0.25 {
		t.Fatalf("unexpected reports: %+v %+v", got[0], got[1])
	}
	if got[0].Decisions[a] == nil {
		t.Fatal("report missing agent decision")
	}
	if s.Tick() != 3 {
		t.Fatalf("Tick() = %d, want 3", s.Tick())
	}
}

func TestRenameNotifies(t *testing.T) {
	s := NewScenario("old", nil)
	calls := 0
	s.OnChange(func() { calls++ })
	s.Rename("new")
	if s.Name != "new" || calls != 1 {
		t.Fatalf("name=%q calls=%d", s.Name, calls)
	}
}

func TestComputedInputs(t *testing.T) {
	s := NewScenario("inputs", entropy.NewSeeded(1))
	a := agents.NewAgent("a", world.Vec2{X: 1, Y: 1}, 0.1)
	a.SetProperty("hunger", 0.4)
	tgt := agents.NewLocation("t", world.Vec2{X: 4, Y: 5}, 0.1)
	tgt.SetProperty("food", 3)
	ctx := &utility.Context{Agent: a, Target: tgt}

	dist := utility.NewInputAxis("d", utility.OriginComputed, nil)
	if v := s.InputValue(dist, ctx); v != 5 {
		t.Fatalf("distance = %v, want 5", v)
	}
	self := utility.NewInputAxis("h", utility.OriginPropertyOfSelf, &utility.Record{Name: "hunger"})
	if v := s.InputValue(self, ctx); v != 0.4 {
		t.Fatalf("self property = %v, want 0.4", v)
	}
	target := utility.NewInputAxis("f", utility.OriginPropertyOfTarget, &utility.Record{Name: "food"})
	if v := s.InputValue(target, ctx); v != 3 {
		t.Fatalf("target property = %v, want 3", v)
	}
	if v := s.InputValue(target, &utility.Context{Agent: a}); v != 0 {
		t.Fatalf("target property without target = %v, want 0", v)
	}

	s.RegisterComputed("x", func(ctx *utility.Context) float64 { return ctx.Agent.Position().X })
	custom := utility.NewInputAxis("x", utility.OriginComputed, &utility.Record{Name: "x", Computed: true})
	if v := s.InputValue(custom, ctx); v != 1 {
		t.Fatalf("custom computed = %v, want 1", v)
	}

	cfg := world.DefaultFieldConfig()
	cfg.Seed = 5
	field := world.NewField(cfg)
	s.RegisterField("elevation", field)
	elev := utility.NewInputAxis("e", utility.OriginComputed, &utility.Record{Name: "elevation", Computed: true})
	if v := s.InputValue(elev, ctx); v != field.Sample(a.Pos) {
		t.Fatalf("elevation = %v, want %v", v, field.Sample(a.Pos))
	}
}
