package attack

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mastercactapus/emfi/coord"
)

// Stage is the subset of motion control the executor drives.
type Stage interface {
	Move(x, y, z *float64, feedRate float64) error
	Home(x, y, z bool) error
	SetFanSpeed(speed int) error
}

// TemperatureSource reports the most recent target temperature.
type TemperatureSource interface {
	LastTemperature() float64
}

const (
	// sweepFeedRate is used for position-to-position moves during a run.
	sweepFeedRate = 100
	// approachFeedRate is used for the initial move to the start corner.
	approachFeedRate = 5

	defaultCooldown = 20 * time.Second
)

// Worker executes a loaded attack across the planned sweep. A run holds
// the stage exclusively; the station's task slot guarantees that.
type Worker struct {
	log   *logrus.Logger
	stage Stage
	temp  TemperatureSource
	reg   *Registry

	runLog   runLog
	cooldown time.Duration

	running atomic.Bool

	mx       sync.Mutex
	attack   Attack
	progress float64
	position coord.Point
}

func NewWorker(reg *Registry, stage Stage, temp TemperatureSource, logDir string, log *logrus.Logger) *Worker {
	return &Worker{
		log:      log,
		stage:    stage,
		temp:     temp,
		reg:      reg,
		runLog:   runLog{dir: logDir},
		cooldown: defaultCooldown,
	}
}

// Load constructs the named attack for the next run. On failure the
// worker keeps its previous state and the run cannot start.
func (w *Worker) Load(name string) error {
	a, err := w.reg.New(name)
	if err != nil {
		return err
	}
	w.mx.Lock()
	w.attack = a
	w.mx.Unlock()
	w.runLog.setName(name)
	return nil
}

// AttackNames lists the attacks available for Load.
func (w *Worker) AttackNames() []string { return w.reg.Names() }

// Running reports whether a run is in flight.
func (w *Worker) Running() bool { return w.running.Load() }

// Stop requests a cooperative stop. It is observed at repetition
// boundaries only; a shout is never interrupted mid-flight.
func (w *Worker) Stop() { w.running.Store(false) }

// Progress returns the progress of the current run as a 0-1 fraction.
func (w *Worker) Progress() float64 {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.progress
}

// Position returns the sweep position last moved to.
func (w *Worker) Position() coord.Point {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.position
}

func (w *Worker) setProgress(p float64) {
	w.mx.Lock()
	w.progress = p
	w.mx.Unlock()
}

func (w *Worker) setPosition(p coord.Point) {
	w.mx.Lock()
	w.position = p
	w.mx.Unlock()
}

func fmtPos(p coord.Point) string {
	return fmt.Sprintf("(%g, %g, %g)", p.X, p.Y, p.Z)
}

// Run executes the loaded attack across its sweep. Stage errors are
// fatal and end the run uncontrolled; a failed critical check is a
// designed abort (no Shutdown call); a temperature breach pauses the
// run for the cooldown interval and is not an error.
func (w *Worker) Run() error {
	w.mx.Lock()
	a := w.attack
	w.mx.Unlock()
	if a == nil {
		return errors.New("no attack loaded")
	}
	spec := a.Spec()

	w.setProgress(0)
	w.running.Store(true)
	defer w.running.Store(false)

	if err := w.runLog.create(); err != nil {
		w.log.Errorf("attack log: %v", err)
	}
	w.runLog.log("Starting attack...")

	fan := int(spec.Cooling * 255)
	if fan > 255 {
		fan = 255
	}
	if err := w.stage.SetFanSpeed(fan); err != nil {
		return err
	}

	positions := coord.SweepPositions(spec.Start, spec.End, spec.StepSize)
	if err := a.Init(); err != nil {
		return err
	}
	if err := w.moveToStart(spec.Start); err != nil {
		return err
	}

	total := float64(len(positions) * spec.Repetitions)
	for i, pos := range positions {
		if err := w.stage.Move(&pos.X, &pos.Y, &pos.Z, sweepFeedRate); err != nil {
			return err
		}
		w.setPosition(pos)
		for j := 0; j < spec.Repetitions; j++ {
			w.setProgress(float64(i*spec.Repetitions+j) / total)
			if !w.running.Load() {
				return nil
			}
			if err := a.ResetTarget(); err != nil {
				return err
			}
			if err := a.Shout(); err != nil {
				return err
			}
			if a.WasSuccessful() {
				w.log.Warnf("Successful at %s", fmtPos(pos))
				w.runLog.log("Successful at " + fmtPos(pos))
			} else {
				w.runLog.log("Unsuccessful at " + fmtPos(pos))
			}
			if !a.CriticalCheck() {
				w.log.Error("Critical attack check failed.")
				return nil
			}
			if temp := w.temp.LastTemperature(); temp > spec.MaxTargetTemp {
				w.log.Errorf("Target temperature too high: %.2f", temp)
				time.Sleep(w.cooldown)
			}
		}
	}

	if err := a.Shutdown(); err != nil {
		return err
	}
	w.runLog.log("Stopping attack...")
	w.runLog.close()
	return nil
}

// moveToStart homes Z before X/Y so the probe head cannot collide with
// the target, then approaches the start corner one axis at a time.
func (w *Worker) moveToStart(start coord.Point) error {
	if err := w.stage.Home(false, false, true); err != nil {
		return err
	}
	if err := w.stage.Home(true, true, false); err != nil {
		return err
	}
	if err := w.stage.Move(&start.X, nil, nil, approachFeedRate); err != nil {
		return err
	}
	if err := w.stage.Move(nil, &start.Y, nil, approachFeedRate); err != nil {
		return err
	}
	return w.stage.Move(nil, nil, &start.Z, approachFeedRate)
}
