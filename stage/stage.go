package stage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mastercactapus/emfi/coord"
	"github.com/mastercactapus/emfi/serial"
)

// Controller responses. The board is expected to emit a busy keepalive
// about once per second while a command executes (HOST_KEEPALIVE_FEATURE)
// and a terminal "ok" when it completes.
const (
	busyMsg = "echo:busy: processing\n"
	okMsg   = "ok\n"
)

const (
	defaultSafeHeight = 100
	defaultAckTries   = 10
	ackInterval       = 250 * time.Millisecond
)

// ErrAckTimeout is returned when the controller stops responding while a
// command is in flight. It is fatal to the task that issued the command.
var ErrAckTimeout = errors.New("timeout waiting for command to be completed")

// Stage drives the motorized XYZ stage through a Marlin-based controller
// board. All methods block until the board acknowledges the command; the
// caller owns the serial port for the duration of each call.
type Stage struct {
	log  *logrus.Logger
	port serial.Port

	quantum  time.Duration
	maxTries int

	mx         sync.Mutex
	safeHeight float64

	jogMx sync.Mutex
	jog   *jogTask
}

func New(port serial.Port, log *logrus.Logger) *Stage {
	return &Stage{
		log:        log,
		port:       port,
		quantum:    ackInterval,
		maxTries:   defaultAckTries,
		safeHeight: defaultSafeHeight,
	}
}

// Close tears down any jog task and closes the serial port.
func (s *Stage) Close() error {
	s.StopJog()
	return s.port.Close()
}

func (s *Stage) cmd(b block) error {
	return s.port.Send(b.String())
}

// waitAck polls for responses until the board reports "ok". A busy
// keepalive resets the try counter; maxTries consecutive silent polls
// fail with ErrAckTimeout.
func (s *Stage) waitAck() ([]byte, error) {
	var msg []byte
	var tries int
	for {
		res, err := s.port.Read()
		if err != nil {
			return msg, err
		}
		msg = append(msg, res...)
		if string(res) == busyMsg {
			tries = 0
		}
		if string(res) == okMsg {
			break
		}
		time.Sleep(s.quantum)
		tries++
		if tries > s.maxTries {
			return msg, fmt.Errorf("%w: %q", ErrAckTimeout, msg)
		}
	}
	// pick up any trailing diagnostic line
	res, err := s.port.Read()
	if err == nil {
		msg = append(msg, res...)
	}
	return msg, nil
}

// waitMoveDone issues the M400 barrier and waits for it, so motion has
// physically stopped when it returns.
func (s *Stage) waitMoveDone() error {
	if err := s.port.Clear(); err != nil {
		return err
	}
	if err := s.cmd(block{argW('M', 400)}); err != nil {
		return err
	}
	_, err := s.waitAck()
	return err
}

func fmtAxis(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatFloat(*v)
}

// Move moves to the given position and blocks until motion stops. Nil
// axes are left where they are. A target Z above the safe height is
// rejected and logged without touching the hardware.
func (s *Stage) Move(x, y, z *float64, feedRate float64) error {
	if z != nil && !s.IsSafeHeight(*z) {
		s.log.Errorf("Moving to position (%s, %s, %s) is not safe. Aborting.", fmtAxis(x), fmtAxis(y), fmtAxis(z))
		return nil
	}
	b := block{argW('G', 0), argW('F', feedRate*60)}
	if x != nil {
		b = append(b, argW('X', *x))
	}
	if y != nil {
		b = append(b, argW('Y', *y))
	}
	if z != nil {
		b = append(b, argW('Z', *z))
	}
	if err := s.cmd(b); err != nil {
		return err
	}
	s.log.Infof("Moving to X=%s, Y=%s, Z=%s.", fmtAxis(x), fmtAxis(y), fmtAxis(z))
	if _, err := s.waitAck(); err != nil {
		return err
	}
	return s.waitMoveDone()
}

// RelativeMove moves by the given per-axis distances. The resulting Z is
// validated against the safe height before anything is issued.
func (s *Stage) RelativeMove(x, y, z *float64, feedRate float64) error {
	pos, err := s.Position()
	if err != nil {
		return err
	}
	if z != nil && !s.IsSafeHeight(pos.Z+*z) {
		s.log.Error("Moving to this position is not safe. Aborting.")
		return nil
	}
	if err = s.setRelativeMode(true); err != nil {
		return err
	}
	err = s.Move(x, y, z, feedRate)
	if rerr := s.setRelativeMode(false); err == nil {
		err = rerr
	}
	return err
}

func (s *Stage) setRelativeMode(enable bool) error {
	mode := argW('G', 90)
	if enable {
		mode = argW('G', 91)
	}
	if err := s.cmd(block{mode}); err != nil {
		return err
	}
	_, err := s.waitAck()
	return err
}

// Home homes the requested axes (G28). No-op when none are requested.
func (s *Stage) Home(x, y, z bool) error {
	if !x && !y && !z {
		return nil
	}
	b := block{argW('G', 28)}
	if x {
		b = append(b, flagW('X'))
	}
	if y {
		b = append(b, flagW('Y'))
	}
	if z {
		b = append(b, flagW('Z'))
	}
	if err := s.port.Clear(); err != nil {
		return err
	}
	if err := s.cmd(b); err != nil {
		return err
	}
	s.log.Infof("Homing axes: %s", b.String())
	_, err := s.waitAck()
	return err
}

// Position queries the board for its current position (M114). A reply
// that cannot be parsed is logged and reported as the origin; it never
// fails the caller.
func (s *Stage) Position() (coord.Point, error) {
	if err := s.cmd(block{argW('M', 114)}); err != nil {
		return coord.Point{}, err
	}
	msg, err := s.waitAck()
	if err != nil {
		return coord.Point{}, err
	}
	p, ok := parsePosition(msg)
	if !ok {
		s.log.Error("Could not retrieve position.")
		return coord.Point{}, nil
	}
	return p, nil
}

// Emergency halts all motion immediately (M410) but leaves the board
// responsive. It is always permitted, regardless of task state.
func (s *Stage) Emergency() error {
	if err := s.cmd(block{argW('M', 410)}); err != nil {
		return err
	}
	s.log.Error("Emergency stop initiated.")
	_, err := s.waitAck()
	return err
}

// Kill shuts the board down hard (M112). A reboot is required afterwards;
// use only on unrecoverable protocol failure.
func (s *Stage) Kill() error {
	if err := s.cmd(block{argW('M', 112)}); err != nil {
		return err
	}
	s.log.Error("Killing controller. Reboot necessary.")
	_, err := s.waitAck()
	return err
}

// SetAcceleration sets the starting acceleration in mm/s/s (M204).
func (s *Stage) SetAcceleration(accel int) error {
	if err := s.cmd(block{argW('M', 204), argW('T', float64(accel))}); err != nil {
		return err
	}
	_, err := s.waitAck()
	return err
}

// SetFanSpeed sets the target cooling fan speed (0-255). The fan sits in
// slot 2 of the controller board.
func (s *Stage) SetFanSpeed(speed int) error {
	if err := s.cmd(block{argW('M', 106), argW('P', 2), argW('S', float64(speed))}); err != nil {
		return err
	}
	_, err := s.waitAck()
	return err
}

// SavePosition stores the current position in the given slot (G60).
func (s *Stage) SavePosition(slot int) error {
	if err := s.cmd(block{argW('G', 60), argW('S', float64(slot))}); err != nil {
		return err
	}
	_, err := s.waitAck()
	return err
}

// RestorePosition moves the requested axes back to a saved slot (G61).
func (s *Stage) RestorePosition(x, y, z bool, slot int) error {
	b := block{argW('G', 61)}
	if x {
		b = append(b, flagW('X'))
	}
	if y {
		b = append(b, flagW('Y'))
	}
	if z {
		b = append(b, flagW('Z'))
	}
	b = append(b, argW('S', float64(slot)))
	if err := s.cmd(b); err != nil {
		return err
	}
	_, err := s.waitAck()
	return err
}

// SetSafeHeight sets the Z ceiling for all further motion.
func (s *Stage) SetSafeHeight(z float64) {
	s.log.Infof("Set safe z height to: %s", formatFloat(z))
	s.mx.Lock()
	s.safeHeight = z
	s.mx.Unlock()
}

func (s *Stage) SafeHeight() float64 {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.safeHeight
}

func (s *Stage) IsSafeHeight(z float64) bool {
	return z <= s.SafeHeight()
}
