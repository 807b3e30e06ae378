package stage

import (
	"sync"
)

// jogFeedRate is the fixed feed rate for continuous jog moves, in mm/s.
const jogFeedRate = 1

// jogTask keeps the stage moving in the directions set by update until
// every axis is halted. It owns the serial port while it runs; the mode
// invariant in the station guarantees nothing else talks to the board.
type jogTask struct {
	stage *Stage

	mx     sync.Mutex
	active [3]float64

	stopCh chan struct{}
	done   chan struct{}
}

func newJogTask(s *Stage) *jogTask {
	return &jogTask{
		stage:  s,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// ContinuousUpdate starts or adjusts the background jog task. Per axis:
// nil leaves the current direction unchanged, 0 halts it, ±1 moves it at
// the jog feed rate. When all three axes are halted the task is torn
// down automatically.
func (s *Stage) ContinuousUpdate(x, y, z *float64) {
	s.jogMx.Lock()
	defer s.jogMx.Unlock()
	if s.jog == nil {
		jog := newJogTask(s)
		if !jog.update(x, y, z) {
			return
		}
		s.jog = jog
		go jog.run()
		return
	}
	if !s.jog.update(x, y, z) {
		s.jog.stop()
		s.jog = nil
	}
}

// StopJog halts any running jog task and waits for it to finish.
func (s *Stage) StopJog() {
	s.jogMx.Lock()
	defer s.jogMx.Unlock()
	if s.jog == nil {
		return
	}
	s.jog.stop()
	s.jog = nil
}

// update adjusts the axis directions and reports whether any axis is
// still moving.
func (j *jogTask) update(x, y, z *float64) bool {
	j.mx.Lock()
	defer j.mx.Unlock()
	if x != nil {
		j.active[0] = *x
	}
	if y != nil {
		j.active[1] = *y
	}
	if z != nil {
		j.active[2] = *z
	}
	return j.active != [3]float64{}
}

func (j *jogTask) stop() {
	close(j.stopCh)
	<-j.done
}

func (j *jogTask) run() {
	defer close(j.done)
	if err := j.stage.setRelativeMode(true); err != nil {
		j.stage.log.Errorf("jog: enable relative mode: %v", err)
		return
	}
	for {
		select {
		case <-j.stopCh:
			if err := j.stage.setRelativeMode(false); err != nil {
				j.stage.log.Errorf("jog: restore absolute mode: %v", err)
			}
			return
		default:
		}
		j.mx.Lock()
		active := j.active
		j.mx.Unlock()
		if err := j.jogMove(active); err != nil {
			j.stage.log.Errorf("jog: move: %v", err)
		}
	}
}

// jogMove issues one relative move in the active directions and waits
// for it to finish, so direction changes take effect within one step.
func (j *jogTask) jogMove(active [3]float64) error {
	b := block{argW('G', 0), argW('F', jogFeedRate*60)}
	for i, w := range []byte{'X', 'Y', 'Z'} {
		if active[i] != 0 {
			b = append(b, argW(w, active[i]))
		}
	}
	if err := j.stage.cmd(b); err != nil {
		return err
	}
	return j.stage.waitMoveDone()
}
