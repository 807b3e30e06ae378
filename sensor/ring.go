package sensor

import (
	"sync"
)

// ringCap bounds every capture buffer. Producers drop the oldest frame
// when full, so a stalled consumer never blocks capture.
const ringCap = 5

type ring struct {
	mx     sync.Mutex
	frames [][]byte
}

func (r *ring) push(frame []byte) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if len(r.frames) == ringCap {
		r.frames = r.frames[1:]
	}
	r.frames = append(r.frames, frame)
}

// last returns the most recent frame, or nil when nothing was captured.
func (r *ring) last() []byte {
	r.mx.Lock()
	defer r.mx.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}
