package sensor

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestRing_DropOldest(t *testing.T) {
	var r ring
	assert.Nil(t, r.last())

	for i := byte(0); i < 7; i++ {
		r.push([]byte{i})
	}
	assert.Equal(t, []byte{6}, r.last())
	assert.Len(t, r.frames, ringCap)
	assert.Equal(t, []byte{2}, r.frames[0], "oldest frames are dropped")
}

func TestThermal_Process(t *testing.T) {
	th := NewThermal(nil, testLog())

	raw := make([]float64, thermalW*thermalH)
	for i := range raw {
		raw[i] = 20
	}
	raw[100] = 37.5
	th.process(raw)

	assert.Equal(t, 37.5, th.LastTemperature())
	frame := th.LastFrame()
	require.NotEmpty(t, frame)
	assert.True(t, bytes.HasPrefix(frame, []byte{0xff, 0xd8}), "frame must be a JPEG")
	assert.NotEqual(t, placeholderFrame(), frame)
}

func TestThermal_SkipsColdFrames(t *testing.T) {
	th := NewThermal(nil, testLog())

	raw := make([]float64, thermalW*thermalH)
	raw[0] = 30 // min stays 0: sensor not ready
	th.process(raw)

	assert.Zero(t, th.LastTemperature())
	assert.Equal(t, placeholderFrame(), th.LastFrame())
}

func TestThermal_CaptureLoop(t *testing.T) {
	th := NewThermal(&SimThermalSource{}, testLog())
	th.interval = time.Millisecond
	th.Start()
	defer th.Stop()

	deadline := time.Now().Add(time.Second)
	for th.LastTemperature() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.InDelta(t, 35, th.LastTemperature(), 1)
}

type stubGrabber struct {
	frames chan []byte
}

func (g *stubGrabber) Grab() ([]byte, error) {
	f, ok := <-g.frames
	if !ok {
		return nil, errors.New("closed")
	}
	return f, nil
}

func TestCamera_StartStop(t *testing.T) {
	g := &stubGrabber{frames: make(chan []byte, 1)}
	cam := NewCamera(g, testLog())

	assert.Equal(t, placeholderFrame(), cam.LastFrame())

	cam.Start()
	cam.Start() // idempotent

	g.frames <- []byte("frame-1")
	deadline := time.Now().Add(time.Second)
	for bytes.Equal(cam.LastFrame(), placeholderFrame()) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, []byte("frame-1"), cam.LastFrame())

	close(g.frames)
	cam.Stop()
	cam.Stop() // idempotent
}

func TestCamera_NoGrabber(t *testing.T) {
	cam := NewCamera(nil, testLog())
	cam.Start() // must not spin up a loop
	cam.Stop()
	assert.Equal(t, placeholderFrame(), cam.LastFrame())
}
