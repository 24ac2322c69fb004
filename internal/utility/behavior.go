package utility

import (
	"fmt"
	"math"
	"strings"
)

// ActionKind is what an agent does when a behavior wins.
type ActionKind uint8

const (
	ActionIdle               ActionKind = iota // Do nothing
	ActionMoveToTarget                         // Step toward the target
	ActionMoveAwayFromTarget                   // Step away from the target
	ActionTalk                                 // Say the payload
	ActionCustom                               // Hand the payload to external consumers
)

var actionNames = [...]string{
	ActionIdle:               "idle",
	ActionMoveToTarget:       "move-to-target",
	ActionMoveAwayFromTarget: "move-away-from-target",
	ActionTalk:               "talk",
	ActionCustom:             "custom",
}

func (a ActionKind) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseActionKind maps an action name to its ActionKind.
func ParseActionKind(s string) (ActionKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range actionNames {
		if n == name {
			return ActionKind(i), nil
		}
	}
	return ActionIdle, fmt.Errorf("unknown action %q", s)
}

// MarshalText encodes the action by name.
func (a ActionKind) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes an action name.
func (a *ActionKind) UnmarshalText(b []byte) error {
	parsed, err := ParseActionKind(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Behavior is an action archetype with targeting rules, a base weight and
// the considerations that score it.
type Behavior struct {
	Name            string
	Action          ActionKind
	CanTargetSelf   bool
	CanTargetOthers bool
	Payload         string // Text for talk and custom actions
	Weight          float64
	Considerations  []*Consideration
}

// NewBehavior creates a behavior with weight 1.
func NewBehavior(name string, action ActionKind) *Behavior {
	return &Behavior{Name: name, Action: action, Weight: 1}
}

func (b *Behavior) String() string {
	return b.Name
}

// RequiresTarget reports whether the action cannot run without a target.
func (b *Behavior) RequiresTarget() bool {
	return b.Action == ActionMoveToTarget || b.Action == ActionMoveAwayFromTarget
}

// Targeted reports whether the behavior is scored against targets. Idle never
// is; talk and custom are only when a targeting flag is set.
func (b *Behavior) Targeted() bool {
	switch b.Action {
	case ActionIdle:
		return false
	case ActionMoveToTarget, ActionMoveAwayFromTarget:
		return true
	default:
		return b.CanTargetSelf || b.CanTargetOthers
	}
}

// CanTarget reports whether target is a legal target for agent. A nil target
// is legal only for untargeted behaviors.
func (b *Behavior) CanTarget(agent, target Member) bool {
	if target == nil {
		return !b.Targeted()
	}
	if !b.Targeted() {
		return false
	}
	if target == agent {
		return b.CanTargetSelf
	}
	return b.CanTargetOthers
}

// Evaluate scores the behavior for agent acting on target and returns the
// scored context. repeat marks a candidate that matches the agent's previous
// choice, for the momentum bonus.
func (b *Behavior) Evaluate(broker InputBroker, agent, target Member, policy Policy, repeat bool) *Context {
	ctx := &Context{Agent: agent, Target: target, Behavior: b}

	scores := &ConsiderationScores{
		Considerations: make(map[*Consideration]Score, len(b.Considerations)),
		Order:          make([]*Consideration, 0, len(b.Considerations)),
		InitialWeight:  b.Weight,
		Momentum:       1,
	}
	finals := make([]float64, 0, len(b.Considerations))
	for _, c := range b.Considerations {
		s := c.Score(broker, ctx)
		scores.Considerations[c] = s
		scores.Order = append(scores.Order, c)
		finals = append(finals, s.FinalScore)
	}

	scores.Combined = policy.combiner().Combine(finals)
	if repeat && policy.MomentumBonus != 0 {
		scores.Momentum = 1 + policy.MomentumBonus
	}
	scores.FinalScore = scores.Combined * b.Weight * scores.Momentum
	if math.IsNaN(scores.FinalScore) {
		scores.FinalScore = 0
	}

	ctx.Scores = scores
	return ctx
}

// Score is Evaluate without the context wrapper.
func (b *Behavior) Score(broker InputBroker, agent, target Member, policy Policy) *ConsiderationScores {
	return b.Evaluate(broker, agent, target, policy, false).Scores
}
