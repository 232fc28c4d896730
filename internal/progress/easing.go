package progress

import (
	"fmt"
	"math"
)

// Easing is the curve used to map elapsed time into the shown percentage.
type Easing string

const (
	EasingLinear Easing = "linear"
	// EasingQuad is a quadratic ease in-out.
	EasingQuad Easing = "quad"
	// EasingCubic is a cubic ease in-out, slow at the start and the end.
	EasingCubic Easing = "cubic"
)

// ParseEasing returns the easing for a name.
func ParseEasing(s string) (Easing, error) {
	e := Easing(s)
	if !e.Valid() {
		return "", fmt.Errorf("unknown easing %q", s)
	}
	return e, nil
}

func (e Easing) Valid() bool {
	switch e {
	case EasingLinear, EasingQuad, EasingCubic:
		return true
	}
	return false
}

// Apply maps t in [0,1] to [0,1], values outside the range are clamped.
func (e Easing) Apply(t float64) float64 {
	t = clamp(t, 0, 1)

	switch e {
	case EasingLinear:
		return t
	case EasingQuad:
		if t < 0.5 {
			return 2 * t * t
		}
		return 1 - math.Pow(-2*t+2, 2)/2
	default:
		if t < 0.5 {
			return 4 * t * t * t
		}
		return 1 - math.Pow(-2*t+2, 3)/2
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
