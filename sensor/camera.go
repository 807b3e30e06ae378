package sensor

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// A FrameGrabber captures one encoded camera frame, blocking until the
// next frame is available. Device discovery, raw capture and overlay
// drawing all live behind this interface.
type FrameGrabber interface {
	Grab() ([]byte, error)
}

// Camera runs a capture loop into a bounded frame buffer. It is started
// when the first network client connects and stopped when the last one
// leaves, so an idle station does not burn cycles on capture.
type Camera struct {
	log  *logrus.Logger
	grab FrameGrabber

	ring ring

	mx     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

func NewCamera(grab FrameGrabber, log *logrus.Logger) *Camera {
	return &Camera{log: log, grab: grab}
}

// Start launches the capture loop; no-op if already running or no
// grabber is attached.
func (c *Camera) Start() {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.stopCh != nil || c.grab == nil {
		return
	}
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	go c.captureLoop(c.stopCh, c.done)
}

// Stop ends the capture loop and waits for it; no-op if not running.
func (c *Camera) Stop() {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	<-c.done
	c.stopCh, c.done = nil, nil
}

func (c *Camera) captureLoop(stopCh, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stopCh:
			return
		default:
		}
		frame, err := c.grab.Grab()
		if err != nil {
			c.log.Debugf("camera capture: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		c.ring.push(frame)
	}
}

// LastFrame returns the most recent frame, or the placeholder when the
// camera is unavailable or has not produced one yet.
func (c *Camera) LastFrame() []byte {
	if f := c.ring.last(); f != nil {
		return f
	}
	return placeholderFrame()
}
