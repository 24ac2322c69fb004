package curve

import "math"

// logitEpsilon keeps the logit argument inside the open unit interval.
const logitEpsilon = 1e-6

func linear(c Curve, x float64) float64 {
	if c.Slope == 0 {
		return c.VShift
	}
	return c.Slope*(x-c.HShift) + c.VShift
}

func polynomial(c Curve, x float64) float64 {
	if c.Slope == 0 {
		return c.VShift
	}
	return c.Slope*signedPow(x-c.HShift, c.Exponent) + c.VShift
}

func logistic(c Curve, x float64) float64 {
	e := math.Exp(-c.Slope * (x - c.HShift))
	// e may overflow to +Inf, giving a clean 0 contribution.
	return c.Exponent/(1+e) + c.VShift
}

func logit(c Curve, x float64) float64 {
	if math.IsNaN(x) {
		return x
	}
	u := x - c.HShift
	u = math.Max(logitEpsilon, math.Min(1-logitEpsilon, u))
	k := c.Exponent
	if k == 0 {
		k = 1
	}
	return c.Slope*math.Log(u/(1-u))/k + c.VShift
}

func normal(c Curve, x float64) float64 {
	d := x - c.HShift
	return c.Slope*math.Exp(-c.Exponent*d*d) + c.VShift
}

func sine(c Curve, x float64) float64 {
	if math.IsInf(x, 0) {
		return c.VShift
	}
	return c.Slope*math.Sin(c.Exponent*math.Pi*(x-c.HShift)) + c.VShift
}

func step(c Curve, x float64) float64 {
	if math.IsNaN(x) {
		return x
	}
	if x >= c.HShift {
		return c.VShift + c.Slope
	}
	return c.VShift
}

// signedPow is math.Pow with two changes: a negative base with a fractional
// exponent keeps the sign of the base instead of producing NaN, and 0 raised
// to a negative exponent is 0.
func signedPow(base, exp float64) float64 {
	if base == 0 {
		if exp < 0 {
			return 0
		}
		return math.Pow(0, exp)
	}
	if base < 0 && exp != math.Trunc(exp) {
		return -math.Pow(-base, exp)
	}
	return math.Pow(base, exp)
}
