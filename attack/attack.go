package attack

import (
	"github.com/mastercactapus/emfi/coord"
)

// Spec is the immutable per-run configuration an attack implementation
// supplies at construction.
type Spec struct {
	Start    coord.Point
	End      coord.Point
	StepSize float64

	// MaxTargetTemp pauses the run while the target is above it.
	MaxTargetTemp float64

	// Cooling is the target cooling fan fraction (0-1).
	Cooling float64

	// Repetitions is the number of shouts per position.
	Repetitions int
}

// DefaultSpec fills in the defaults an implementation usually wants:
// 40°C thermal limit, no cooling, one shout per position.
func DefaultSpec(start, end coord.Point, step float64) Spec {
	return Spec{
		Start:         start,
		End:           end,
		StepSize:      step,
		MaxTargetTemp: 40,
		Repetitions:   1,
	}
}

// An Attack is one fault-injection procedure swept across the target.
// The executor calls Init once, then per repetition ResetTarget, Shout,
// WasSuccessful and CriticalCheck, and finally Shutdown. CriticalCheck
// returning false aborts the whole run without calling Shutdown.
type Attack interface {
	Spec() Spec

	Init() error
	Shout() error
	WasSuccessful() bool
	ResetTarget() error
	CriticalCheck() bool
	Shutdown() error
}
