package utility

// Combiner folds the individual consideration scores of a behavior into one
// number in the same range, before the behavior weight is applied.
type Combiner interface {
	Combine(scores []float64) float64
}

// CombinerFunc adapts a plain function to Combiner.
type CombinerFunc func(scores []float64) float64

// Combine calls f.
func (f CombinerFunc) Combine(scores []float64) float64 {
	return f(scores)
}

// Product multiplies all scores together; a single zero vetoes the behavior.
// No scores combine to 1.
type Product struct{}

// Combine returns the product of scores.
func (Product) Combine(scores []float64) float64 {
	p := 1.0
	for _, s := range scores {
		p *= s
	}
	return p
}

// Compensated is Product with a makeup term that offsets the attenuation of
// multiplying many sub-unity scores:
//
//	p + (1 - p) * p * (1 - 1/n)
type Compensated struct{}

// Combine returns the compensated product of scores.
func (Compensated) Combine(scores []float64) float64 {
	p := Product{}.Combine(scores)
	n := len(scores)
	if n == 0 {
		return p
	}
	return p + (1-p)*p*(1-1/float64(n))
}

// Policy controls how behavior scores are combined.
type Policy struct {
	Combiner Combiner

	// MomentumBonus adds to the multiplier of a candidate that repeats the
	// agent's previous winning behavior and target. 0 disables it.
	MomentumBonus float64
}

// DefaultPolicy uses the compensated product and no momentum bonus.
func DefaultPolicy() Policy {
	return Policy{Combiner: Compensated{}}
}

// NewPolicy builds a policy from the two authoring toggles.
func NewPolicy(compensate bool, momentumBonus float64) Policy {
	p := Policy{Combiner: Product{}, MomentumBonus: momentumBonus}
	if compensate {
		p.Combiner = Compensated{}
	}
	return p
}

func (p Policy) combiner() Combiner {
	if p.Combiner == nil {
		return Compensated{}
	}
	return p.Combiner
}
