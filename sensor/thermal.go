package sensor

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Raw frame dimensions of the MLX90640 sensor.
const (
	thermalW = 32
	thermalH = 24
)

const thermalInterval = 500 * time.Millisecond

// output resolution of rendered thermal frames
const (
	renderW = 640
	renderH = 480
)

// A ThermalSource produces one raw temperature frame per call,
// row-major, thermalW*thermalH values in °C. The I2C plumbing to a real
// sensor lives behind this interface.
type ThermalSource interface {
	Frame() ([]float64, error)
}

// Thermal captures temperature frames for the life of the process,
// tracks the hottest spot of the latest frame and renders each frame to
// a colormapped JPEG.
type Thermal struct {
	log *logrus.Logger
	src ThermalSource

	interval time.Duration
	ring     ring

	mx       sync.Mutex
	lastTemp float64

	stopCh chan struct{}
	done   chan struct{}
}

func NewThermal(src ThermalSource, log *logrus.Logger) *Thermal {
	return &Thermal{
		log:      log,
		src:      src,
		interval: thermalInterval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the capture loop. Without a source it returns at once
// and LastFrame serves the placeholder image.
func (t *Thermal) Start() {
	go t.captureLoop()
}

// Stop ends the capture loop and waits for it.
func (t *Thermal) Stop() {
	close(t.stopCh)
	<-t.done
}

func (t *Thermal) captureLoop() {
	defer close(t.done)
	if t.src == nil {
		return
	}
	for {
		select {
		case <-t.stopCh:
			return
		case <-time.After(t.interval):
		}
		raw, err := t.src.Frame()
		if err != nil {
			t.log.Errorf("Could not retrieve raw image: %v", err)
			continue
		}
		t.process(raw)
	}
}

func (t *Thermal) process(raw []float64) {
	if len(raw) != thermalW*thermalH {
		t.log.Errorf("thermal frame has %d values, want %d", len(raw), thermalW*thermalH)
		return
	}
	min, max := raw[0], raw[0]
	for _, v := range raw[1:] {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	if min == 0 {
		// sensor not warmed up yet
		return
	}

	t.mx.Lock()
	t.lastTemp = max
	t.mx.Unlock()

	frame, err := renderThermal(raw, min, max)
	if err != nil {
		t.log.Errorf("render thermal frame: %v", err)
		return
	}
	t.ring.push(frame)
}

// LastFrame returns the most recent rendered frame, or the placeholder
// when none was captured yet.
func (t *Thermal) LastFrame() []byte {
	if f := t.ring.last(); f != nil {
		return f
	}
	return placeholderFrame()
}

// LastTemperature returns the hottest spot of the latest frame.
func (t *Thermal) LastTemperature() float64 {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.lastTemp
}

// renderThermal normalizes a raw frame, applies the jet colormap,
// upscales nearest-neighbor to renderW x renderH and mirrors it to
// match the camera orientation.
func renderThermal(raw []float64, min, max float64) ([]byte, error) {
	span := max - min
	if span == 0 {
		span = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, renderW, renderH))
	for y := 0; y < renderH; y++ {
		sy := y * thermalH / renderH
		for x := 0; x < renderW; x++ {
			sx := x * thermalW / renderW
			v := raw[sy*thermalW+sx]
			c := jetColor(uint8((v - min) * 255 / span))
			// horizontal mirror
			img.SetRGBA(renderW-1-x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// jetColor maps 0-255 onto the blue-to-red jet gradient.
func jetColor(v uint8) color.RGBA {
	t := float64(v) / 255
	ch := func(f float64) uint8 {
		f = math.Min(1, math.Max(0, f))
		return uint8(f * 255)
	}
	return color.RGBA{
		R: ch(1.5 - math.Abs(4*t-3)),
		G: ch(1.5 - math.Abs(4*t-2)),
		B: ch(1.5 - math.Abs(4*t-1)),
		A: 255,
	}
}

var (
	placeholderOnce sync.Once
	placeholder     []byte
)

// placeholderFrame is the "camera unavailable" image: a flat dark gray
// frame generated once.
func placeholderFrame() []byte {
	placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, renderW, renderH))
		gray := color.RGBA{R: 40, G: 40, B: 40, A: 255}
		for y := 0; y < renderH; y++ {
			for x := 0; x < renderW; x++ {
				img.SetRGBA(x, y, gray)
			}
		}
		var buf bytes.Buffer
		jpeg.Encode(&buf, img, nil)
		placeholder = buf.Bytes()
	})
	return placeholder
}
