package station

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mastercactapus/emfi/coord"
)

// Motion is the subset of stage control the station dispatches to.
type Motion interface {
	Move(x, y, z *float64, feedRate float64) error
	RelativeMove(x, y, z *float64, feedRate float64) error
	Home(x, y, z bool) error
	Position() (coord.Point, error)
	SetSafeHeight(z float64)
	SafeHeight() float64
	Emergency() error
	StopJog()
}

// Executor runs attacks across the sweep.
type Executor interface {
	Load(name string) error
	Run() error
	Stop()
	Progress() float64
	Position() coord.Point
	AttackNames() []string
}

// TemperatureSource reports the latest target temperature.
type TemperatureSource interface {
	LastTemperature() float64
}

// A Joystick session translates device input into stage motion until
// the stop channel closes. The button/axis mapping is external.
type Joystick interface {
	Run(stop <-chan struct{})
}

// JoystickFactory opens a joystick session. It fails when no device is
// attached.
type JoystickFactory func(feedRate, step float64) (Joystick, error)

// Mode is the station's operating mode. Exactly one is active at any
// time; transitions are gated on no task running.
type Mode string

const (
	ModeManual   Mode = "Manual"
	ModeJoystick Mode = "Joystick"
	ModeAttack   Mode = "Attack"
)

var errBusy = errors.New("another task is still running")

// task is the single live unit of background work.
type task struct {
	done chan struct{}
}

func (t *task) alive() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Station owns the operating mode and the single task slot. Every
// hardware-affecting request is admitted here first: a new task is
// refused while one is alive, which is what keeps the serial port
// single-owner.
type Station struct {
	log         *logrus.Logger
	stage       Motion
	worker      Executor
	temp        TemperatureSource
	newJoystick JoystickFactory

	mx       sync.Mutex
	mode     Mode
	task     *task
	joyStop  chan struct{}
	safeZ    float64
	position coord.Point
}

func New(stage Motion, worker Executor, temp TemperatureSource, joy JoystickFactory, log *logrus.Logger) *Station {
	return &Station{
		log:         log,
		stage:       stage,
		worker:      worker,
		temp:        temp,
		newJoystick: joy,
		mode:        ModeManual,
		safeZ:       stage.SafeHeight(),
	}
}

func (s *Station) busyLocked() bool {
	return s.task != nil && s.task.alive()
}

// Busy reports whether a background task is alive.
func (s *Station) Busy() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.busyLocked()
}

func (s *Station) Mode() Mode {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.mode
}

// admitManualLocked gates requests that need manual mode and a free
// task slot.
func (s *Station) admitManualLocked() error {
	if s.mode != ModeManual {
		return fmt.Errorf("not available in %s mode", s.mode)
	}
	if s.busyLocked() {
		return errBusy
	}
	return nil
}

// dispatchLocked starts fn as the background task. Admission must have
// succeeded under the same lock.
func (s *Station) dispatchLocked(name string, fn func() error) {
	t := &task{done: make(chan struct{})}
	s.task = t
	go func() {
		defer close(t.done)
		if err := fn(); err != nil {
			s.log.Errorf("%s: %v", name, err)
		}
	}()
}

// Step dispatches a relative move. Admission only succeeds in manual
// mode with no task running; the move itself runs in the background.
func (s *Station) Step(speed, x, y, z float64) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.admitManualLocked(); err != nil {
		return err
	}
	s.dispatchLocked("step", func() error {
		return s.stage.RelativeMove(&x, &y, &z, speed)
	})
	return nil
}

// Move dispatches an absolute move.
func (s *Station) Move(speed, x, y, z float64) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.admitManualLocked(); err != nil {
		return err
	}
	s.dispatchLocked("move", func() error {
		return s.stage.Move(&x, &y, &z, speed)
	})
	return nil
}

// Home dispatches homing of the requested axes.
func (s *Station) Home(x, y, z bool) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.admitManualLocked(); err != nil {
		return err
	}
	s.dispatchLocked("home", func() error {
		return s.stage.Home(x, y, z)
	})
	return nil
}

// EnableJoystick opens a joystick session and switches to joystick
// mode.
func (s *Station) EnableJoystick(speed, step float64) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.admitManualLocked(); err != nil {
		return err
	}
	if s.newJoystick == nil {
		return errors.New("joystick is unavailable")
	}
	joy, err := s.newJoystick(speed, step)
	if err != nil {
		s.log.Errorf("Joystick is unavailable: %v", err)
		return errors.New("joystick is unavailable")
	}
	stop := make(chan struct{})
	s.joyStop = stop
	s.dispatchLocked("joystick", func() error {
		joy.Run(stop)
		return nil
	})
	s.mode = ModeJoystick
	return nil
}

// DisableJoystick ends the joystick session, joins it and returns to
// manual mode.
func (s *Station) DisableJoystick() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.mode != ModeJoystick {
		return errors.New("joystick is not enabled")
	}
	close(s.joyStop)
	s.joyStop = nil
	<-s.task.done
	s.stage.StopJog()
	s.mode = ModeManual
	return nil
}

// StartAttack loads the named attack and dispatches its run. Load
// failure refuses the start and leaves the station in manual mode.
func (s *Station) StartAttack(name string) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.admitManualLocked(); err != nil {
		return err
	}
	if err := s.worker.Load(name); err != nil {
		return fmt.Errorf("load attack: %w", err)
	}
	s.dispatchLocked("attack", s.worker.Run)
	s.mode = ModeAttack
	return nil
}

// StopAttack requests a cooperative stop of the running attack and
// waits for it.
func (s *Station) StopAttack() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.mode != ModeAttack {
		return errors.New("no attack is running")
	}
	s.worker.Stop()
	<-s.task.done
	s.mode = ModeManual
	return nil
}

// SetSafeZ updates the Z ceiling. Always admitted.
func (s *Station) SetSafeZ(z float64) error {
	s.stage.SetSafeHeight(z)
	s.mx.Lock()
	s.safeZ = z
	s.mx.Unlock()
	return nil
}

// Emergency halts motion immediately. It bypasses task admission
// entirely and is permitted in every mode.
func (s *Station) Emergency() error {
	return s.stage.Emergency()
}

// Shutdown stops whatever is running so the process can exit without
// leaving the stage mid-command.
func (s *Station) Shutdown() {
	switch s.Mode() {
	case ModeJoystick:
		if err := s.DisableJoystick(); err != nil {
			s.log.Errorf("shutdown: %v", err)
		}
	case ModeAttack:
		if err := s.StopAttack(); err != nil {
			s.log.Errorf("shutdown: %v", err)
		}
	default:
		s.mx.Lock()
		t := s.task
		s.mx.Unlock()
		if t != nil {
			<-t.done
		}
	}
}
