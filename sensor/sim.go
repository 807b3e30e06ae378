package sensor

import (
	"math"
	"time"
)

// SimThermalSource synthesizes frames of a warm spot drifting over a
// cool background, so the thermal stream and the temperature watchdog
// can be exercised without an attached sensor.
type SimThermalSource struct {
	Ambient float64 // background temperature, default 22
	Peak    float64 // hot spot temperature, default 35

	tick int
}

func (s *SimThermalSource) Frame() ([]float64, error) {
	ambient, peak := s.Ambient, s.Peak
	if ambient == 0 {
		ambient = 22
	}
	if peak == 0 {
		peak = 35
	}
	s.tick++
	cx := float64(thermalW)/2 + 6*math.Sin(float64(s.tick)/10)
	cy := float64(thermalH) / 2

	raw := make([]float64, thermalW*thermalH)
	for y := 0; y < thermalH; y++ {
		for x := 0; x < thermalW; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			raw[y*thermalW+x] = ambient + (peak-ambient)*math.Exp(-(dx*dx+dy*dy)/18)
		}
	}
	return raw, nil
}

// SimGrabber serves the placeholder frame at roughly camera rate.
type SimGrabber struct{}

func (SimGrabber) Grab() ([]byte, error) {
	time.Sleep(50 * time.Millisecond)
	return placeholderFrame(), nil
}
