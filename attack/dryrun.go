package attack

import (
	"github.com/mastercactapus/emfi/coord"
)

// DryRun sweeps the stage across a small grid without firing a pulse.
// Useful to verify travel, safe height and thermal monitoring before
// attaching the injection hardware.
type DryRun struct {
	spec Spec
}

const DryRunName = "Dry Run"

func NewDryRun() (Attack, error) {
	return &DryRun{
		spec: DefaultSpec(coord.Point{}, coord.Point{X: 5, Y: 5}, 1),
	}, nil
}

func (d *DryRun) Spec() Spec          { return d.spec }
func (d *DryRun) Init() error         { return nil }
func (d *DryRun) Shout() error        { return nil }
func (d *DryRun) WasSuccessful() bool { return false }
func (d *DryRun) ResetTarget() error  { return nil }
func (d *DryRun) CriticalCheck() bool { return true }
func (d *DryRun) Shutdown() error     { return nil }
