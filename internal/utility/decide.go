package utility

// Candidate is one legal (behavior, target) pair. Target is nil for
// untargeted behaviors.
type Candidate struct {
	Behavior *Behavior
	Target   Member
}

// Candidates enumerates every legal pair for agent, behaviors first, then
// targets in the order given.
func Candidates(agent Member, behaviors []*Behavior, targets []Member) []Candidate {
	var out []Candidate
	for _, b := range behaviors {
		if b == nil {
			continue
		}
		if !b.Targeted() {
			out = append(out, Candidate{Behavior: b})
			continue
		}
		for _, t := range targets {
			if b.CanTarget(agent, t) {
				out = append(out, Candidate{Behavior: b, Target: t})
			}
		}
	}
	return out
}

// Decision is the input to one agent's decision for one tick.
type Decision struct {
	Agent     Member
	Behaviors []*Behavior
	Targets   []Member
	Broker    InputBroker
	Policy    Policy
	Last      *Choice // Previous winner, for the momentum bonus
}

// Decide scores every candidate and picks the one with the strictly greatest
// final score; the first candidate wins ties. With no candidates the history
// has no winner and the agent stalls.
func Decide(d Decision) *DecisionHistory {
	h := &DecisionHistory{}
	for _, cand := range Candidates(d.Agent, d.Behaviors, d.Targets) {
		repeat := d.Last != nil && d.Last.Behavior == cand.Behavior && d.Last.Target == cand.Target
		ctx := cand.Behavior.Evaluate(d.Broker, d.Agent, cand.Target, d.Policy, repeat)
		h.Scored = append(h.Scored, ctx)
		if h.Winner == nil || ctx.FinalScore() > h.Winner.FinalScore() {
			h.Winner = ctx
		}
	}
	return h
}
