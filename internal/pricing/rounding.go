package pricing

import "math"

// ApplyRounding rounds a consumer price under policy. Unknown policies fall
// back to rounding to the nearest whole unit.
func ApplyRounding(policy RoundingPolicy, x float64) float64 {
	switch policy {
	case RoundNearest10:
		return math.Round(x/10) * 10
	case RoundNearest5:
		return math.Round(x/5) * 5
	case RoundCeil10:
		return math.Ceil(x/10) * 10
	case RoundNone:
		return x
	default:
		return math.Round(x)
	}
}
