package utility

import (
	"math"
	"strings"
	"testing"
)

func TestCompensatedCombiner(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{"empty", nil, 1},
		{"single is unchanged", []float64{0.6}, 0.6},
		{"veto", []float64{0.9, 0, 0.8}, 0},
		{"two", []float64{0.5, 0.5}, 0.25 + 0.75*0.25*0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Compensated{}).Combine(tt.scores); math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("Combine(%v) = %v, want %v", tt.scores, got, tt.want)
			}
		})
	}
}

func TestCompensationRaisesProduct(t *testing.T) {
	scores := []float64{0.9, 0.9, 0.9, 0.9}
	p := Product{}.Combine(scores)
	c := Compensated{}.Combine(scores)
	if c <= p || c > 1 {
		t.Fatalf("compensated %v should lie in (%v, 1]", c, p)
	}
}

func TestBehaviorScoreAppliesWeight(t *testing.T) {
	b := NewBehavior("approach", ActionMoveToTarget)
	b.Weight = 2.5
	c := boundConsideration("dist", &InputParameter{Name: "Range", Min: 1, Max: 1})
	b.Considerations = append(b.Considerations, c)

	agent := &stubMember{name: "a"}
	target := &stubMember{name: "b"}
	target.pos.X = 0.5

	scores := b.Score(distanceBroker{}, agent, target, NewPolicy(false, 0))
	if got := scores.Considerations[c].FinalScore; got != 0.5 {
		t.Fatalf("consideration score = %v, want 0.5", got)
	}
	if scores.FinalScore != 1.25 {
		t.Fatalf("FinalScore = %v, want 1.25", scores.FinalScore)
	}
	if scores.InitialWeight != 2.5 {
		t.Fatalf("InitialWeight = %v, want 2.5", scores.InitialWeight)
	}
}

func TestBehaviorWithoutConsiderationsScoresItsWeight(t *testing.T) {
	b := NewBehavior("idle", ActionIdle)
	b.Weight = 0.3
	scores := b.Score(nil, &stubMember{name: "a"}, nil, DefaultPolicy())
	if scores.FinalScore != 0.3 {
		t.Fatalf("FinalScore = %v, want 0.3", scores.FinalScore)
	}
}

func TestMomentumBonus(t *testing.T) {
	b := NewBehavior("idle", ActionIdle)
	agent := &stubMember{name: "a"}
	policy := NewPolicy(true, 0.25)
	plain := b.Evaluate(nil, agent, nil, policy, false)
	repeat := b.Evaluate(nil, agent, nil, policy, true)
	if plain.FinalScore() != 1 || repeat.FinalScore() != 1.25 {
		t.Fatalf("scores plain=%v repeat=%v, want 1 and 1.25", plain.FinalScore(), repeat.FinalScore())
	}
}

func TestTargetingEligibility(t *testing.T) {
	self := &stubMember{name: "self"}
	other := &stubMember{name: "other"}

	tests := []struct {
		name      string
		action    ActionKind
		self, oth bool
		targeted  bool
		nilOK     bool
		selfOK    bool
		otherOK   bool
	}{
		{"idle ignores flags", ActionIdle, true, true, false, true, false, false},
		{"move to others", ActionMoveToTarget, false, true, true, false, false, true},
		{"move to self", ActionMoveToTarget, true, false, true, false, true, false},
		{"move without flags", ActionMoveAwayFromTarget, false, false, true, false, false, false},
		{"untargeted talk", ActionTalk, false, false, false, true, false, false},
		{"targeted talk", ActionTalk, false, true, true, false, false, true},
		{"custom on self", ActionCustom, true, false, true, false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBehavior(tt.name, tt.action)
			b.CanTargetSelf = tt.self
			b.CanTargetOthers = tt.oth
			if b.Targeted() != tt.targeted {
				t.Fatalf("Targeted() = %v, want %v", b.Targeted(), tt.targeted)
			}
			if got := b.CanTarget(self, nil); got != tt.nilOK {
				t.Fatalf("CanTarget(nil) = %v, want %v", got, tt.nilOK)
			}
			if got := b.CanTarget(self, self); got != tt.selfOK {
				t.Fatalf("CanTarget(self) = %v, want %v", got, tt.selfOK)
			}
			if got := b.CanTarget(self, other); got != tt.otherOK {
				t.Fatalf("CanTarget(other) = %v, want %v", got, tt.otherOK)
			}
		})
	}
}

func TestParseActionKind(t *testing.T) {
	for i := range actionNames {
		a := ActionKind(i)
		got, err := ParseActionKind(a.String())
		if err != nil || got != a {
			t.Fatalf("ParseActionKind(%q) = %v, %v", a, got, err)
		}
	}
	if _, err := ParseActionKind("dance"); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestContextStringIncludesBreakdown(t *testing.T) {
	b := NewBehavior("approach", ActionMoveToTarget)
	b.CanTargetOthers = true
	c := boundConsideration("closeness", &InputParameter{Name: "Range", Min: 2, Max: 2})
	b.Considerations = append(b.Considerations, c)
	target := &stubMember{name: "well"}
	ctx := b.Evaluate(distanceBroker{}, &stubMember{name: "a"}, target, DefaultPolicy(), false)
	out := ctx.String()
	for _, want := range []string{"Target: well", "Behavior: approach [move-to-target]", "closeness", "Initial weight: 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}
