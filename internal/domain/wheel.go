package domain

import (
	"math"
	"math/rand/v2"
)

const (
	// BaseSpinDegrees is the five full turns every spin travels before the random part.
	BaseSpinDegrees = 1800.0
	// PointerDegrees is where the fixed pointer sits: top of the wheel, with slice 0
	// starting at 3 o'clock and angles increasing clockwise.
	PointerDegrees = 270.0
)

// DrawSource abstracts the random part of a spin for deterministic testing.
type DrawSource interface {
	// Draw returns a value in [0, 360).
	Draw() float64
}

// DrawFunc adapts a plain function to DrawSource.
type DrawFunc func() float64

func (f DrawFunc) Draw() float64 { return f() }

// RandSource draws uniformly from a math/rand/v2 generator.
type RandSource struct {
	r *rand.Rand
}

// NewRandSource wraps r. A nil r uses the auto-seeded global generator.
func NewRandSource(r *rand.Rand) *RandSource {
	return &RandSource{r: r}
}

func (s *RandSource) Draw() float64 {
	if s.r == nil {
		return rand.Float64() * 360
	}
	return s.r.Float64() * 360
}

// SpinOutcome is the result of one pure spin computation.
type SpinOutcome struct {
	TargetRotation float64 `json:"target_rotation"`
	SliceAngle     float64 `json:"slice_angle"`
	WinningIndex   int     `json:"winning_index"`
}

// SliceAngle returns the angular width of one slice.
func SliceAngle(count int) (float64, error) {
	if count <= 0 {
		return 0, ErrInvalidState
	}
	return 360 / float64(count), nil
}

// TargetRotation adds the fixed baseline and the draw to the current rotation.
func TargetRotation(current, draw float64) float64 {
	return current + BaseSpinDegrees + draw
}

// ResolveWinner returns the index of the slice under the pointer once the
// wheel has come to rest at target degrees. Only target mod 360 matters.
func ResolveWinner(target float64, count int) int {
	if count <= 0 {
		return 0
	}
	slice := 360 / float64(count)
	actual := normalizeDegrees(target)
	pointer := normalizeDegrees(PointerDegrees - actual)
	idx := int(math.Floor(pointer / slice))
	if idx < 0 {
		return 0
	}
	if idx > count-1 {
		return count - 1
	}
	return idx
}

// ComputeSpin maps (currentRotation, optionCount, draw) to an outcome.
// It is pure: identical inputs always give identical outputs.
func ComputeSpin(current float64, count int, draw float64) (SpinOutcome, error) {
	if err := ValidateOptionCount(count); err != nil {
		return SpinOutcome{}, err
	}
	slice, err := SliceAngle(count)
	if err != nil {
		return SpinOutcome{}, err
	}
	target := TargetRotation(current, normalizeDraw(draw))
	return SpinOutcome{
		TargetRotation: target,
		SliceAngle:     slice,
		WinningIndex:   ResolveWinner(target, count),
	}, nil
}

// ValidateOptionCount reports whether a wheel with count options may spin.
func ValidateOptionCount(count int) error {
	switch {
	case count < MinOptions:
		return ErrTooFewOptions
	case count > MaxOptions:
		return ErrTooManyOptions
	}
	return nil
}

// normalizeDegrees maps any angle into [0, 360).
func normalizeDegrees(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	// math.Mod of a tiny negative can round back up to 360.
	if d >= 360 {
		d = 0
	}
	return d
}

// normalizeDraw keeps injected draws inside [0, 360) and rejects NaN.
func normalizeDraw(draw float64) float64 {
	if math.IsNaN(draw) || math.IsInf(draw, 0) {
		return 0
	}
	return normalizeDegrees(draw)
}
