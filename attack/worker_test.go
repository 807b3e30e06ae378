package attack

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/emfi/coord"
)

type fakeStage struct {
	calls   []string
	moveErr func(n int) error
	moves   int
}

func axis(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}

func (s *fakeStage) Move(x, y, z *float64, feedRate float64) error {
	s.moves++
	s.calls = append(s.calls, fmt.Sprintf("move %s %s %s f%g", axis(x), axis(y), axis(z), feedRate))
	if s.moveErr != nil {
		return s.moveErr(s.moves)
	}
	return nil
}

func (s *fakeStage) Home(x, y, z bool) error {
	s.calls = append(s.calls, fmt.Sprintf("home %t %t %t", x, y, z))
	return nil
}

func (s *fakeStage) SetFanSpeed(speed int) error {
	s.calls = append(s.calls, fmt.Sprintf("fan %d", speed))
	return nil
}

type fakeTemp struct{ temp float64 }

func (f *fakeTemp) LastTemperature() float64 { return f.temp }

// scriptAttack records executor calls and scripts per-shout outcomes.
type scriptAttack struct {
	spec     Spec
	shouts   int
	calls    []string
	onShout  func(n int)
	critical func(n int) bool
	success  func(n int) bool
}

func (a *scriptAttack) Spec() Spec { return a.spec }
func (a *scriptAttack) Init() error {
	a.calls = append(a.calls, "init")
	return nil
}
func (a *scriptAttack) Shout() error {
	a.shouts++
	a.calls = append(a.calls, "shout")
	if a.onShout != nil {
		a.onShout(a.shouts)
	}
	return nil
}
func (a *scriptAttack) WasSuccessful() bool {
	if a.success == nil {
		return false
	}
	return a.success(a.shouts)
}
func (a *scriptAttack) ResetTarget() error {
	a.calls = append(a.calls, "reset")
	return nil
}
func (a *scriptAttack) CriticalCheck() bool {
	if a.critical == nil {
		return true
	}
	return a.critical(a.shouts)
}
func (a *scriptAttack) Shutdown() error {
	a.calls = append(a.calls, "shutdown")
	return nil
}

func newTestWorker(t *testing.T, a *scriptAttack, stage *fakeStage, temp *fakeTemp) *Worker {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	reg := NewRegistry()
	require.NoError(t, reg.Register("Script", func() (Attack, error) { return a, nil }))

	w := NewWorker(reg, stage, temp, "", log)
	w.cooldown = 0
	require.NoError(t, w.Load("Script"))
	return w
}

func testSpec(reps int) Spec {
	s := DefaultSpec(coord.Point{}, coord.Point{X: 1, Y: 1}, 1)
	s.Repetitions = reps
	s.Cooling = 0.5
	return s
}

func TestWorker_Run(t *testing.T) {
	a := &scriptAttack{spec: testSpec(2)}
	stage := &fakeStage{}
	temp := &fakeTemp{temp: 25}
	w := newTestWorker(t, a, stage, temp)

	require.NoError(t, w.Run())

	// 4 serpentine positions x 2 repetitions
	assert.Equal(t, 8, a.shouts)
	assert.Equal(t, "shutdown", a.calls[len(a.calls)-1])

	assert.Equal(t, []string{
		"fan 127",
		"home false false true",
		"home true true false",
		"move 0 - - f5",
		"move - 0 - f5",
		"move - - 0 f5",
		"move 0 0 0 f100",
		"move 0 1 0 f100",
		"move 1 1 0 f100",
		"move 1 0 0 f100",
	}, stage.calls)

	assert.False(t, w.Running())
	assert.Equal(t, coord.Point{X: 1, Y: 0, Z: 0}, w.Position())
	// last repetition of the last position: (3*2+1)/8
	assert.InDelta(t, 0.875, w.Progress(), 1e-9)
}

func TestWorker_Run_CriticalAbort(t *testing.T) {
	a := &scriptAttack{spec: testSpec(1)}
	a.critical = func(n int) bool { return n < 3 }
	stage := &fakeStage{}
	w := newTestWorker(t, a, stage, &fakeTemp{})

	require.NoError(t, w.Run())

	assert.Equal(t, 3, a.shouts)
	assert.NotContains(t, a.calls, "shutdown", "abort path must not call shutdown")
	assert.False(t, w.Running())
}

func TestWorker_Stop(t *testing.T) {
	a := &scriptAttack{spec: testSpec(3)}
	stage := &fakeStage{}
	w := newTestWorker(t, a, stage, &fakeTemp{})

	// stop request lands mid-shout, observed at the next repetition
	a.onShout = func(n int) {
		if n == 1 {
			w.Stop()
		}
	}
	require.NoError(t, w.Run())

	assert.Equal(t, 1, a.shouts)
	assert.NotContains(t, a.calls, "shutdown")
}

func TestWorker_Run_TempPause(t *testing.T) {
	a := &scriptAttack{spec: testSpec(1)}
	temp := &fakeTemp{temp: 90}
	w := newTestWorker(t, a, &fakeStage{}, temp)

	// over the limit the whole time: the run pauses but still completes
	require.NoError(t, w.Run())
	assert.Equal(t, 4, a.shouts)
	assert.Contains(t, a.calls, "shutdown")
}

func TestWorker_Run_StageError(t *testing.T) {
	a := &scriptAttack{spec: testSpec(1)}
	boom := errors.New("ack timeout")
	stage := &fakeStage{moveErr: func(n int) error {
		if n == 5 { // second sweep position
			return boom
		}
		return nil
	}}
	w := newTestWorker(t, a, &fakeStage{}, &fakeTemp{})
	w.stage = stage

	err := w.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.NotContains(t, a.calls, "shutdown")
	assert.False(t, w.Running())
}

func TestWorker_Run_NoAttack(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	w := NewWorker(NewRegistry(), &fakeStage{}, &fakeTemp{}, "", log)
	assert.Error(t, w.Run())
}

func TestWorker_Load_Unknown(t *testing.T) {
	a := &scriptAttack{spec: testSpec(1)}
	w := newTestWorker(t, a, &fakeStage{}, &fakeTemp{})
	assert.Error(t, w.Load("missing"))
}
