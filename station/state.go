package station

import (
	"encoding/json"
	"fmt"

	"github.com/mastercactapus/emfi/coord"
)

// Snapshot is the pollable station state sent to clients.
type Snapshot struct {
	Mode        Mode
	Position    coord.Point
	Temperature float64
	Attacks     []string
	Progress    float64 // 0-1
	SafeZ       float64
}

// MarshalJSON renders the wire form: position as three fixed-point
// numbers, temperature fixed-point, progress as a 0-100 percentage.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Mode        Mode     `json:"mode"`
		Position    string   `json:"position"`
		Temperature string   `json:"temperature"`
		Attacks     []string `json:"attacks"`
		Progress    string   `json:"progress"`
		SafeZ       float64  `json:"safe_z"`
	}{
		Mode:        s.Mode,
		Position:    fmt.Sprintf("%.6f %.6f %.6f", s.Position.X, s.Position.Y, s.Position.Z),
		Temperature: fmt.Sprintf("%.2f", s.Temperature),
		Attacks:     s.Attacks,
		Progress:    fmt.Sprintf("%.2f", s.Progress*100),
		SafeZ:       s.SafeZ,
	})
}

// Snapshot aggregates the current state. In attack mode progress and
// position come from the executor; otherwise the live position is
// queried from the controller, but only while no task is running, so
// the query never races an active move. A finished attack task flips
// the mode back to manual here.
func (s *Station) Snapshot() Snapshot {
	s.mx.Lock()
	defer s.mx.Unlock()

	snap := Snapshot{
		Mode:        s.mode,
		Temperature: s.temp.LastTemperature(),
		Attacks:     s.worker.AttackNames(),
		SafeZ:       s.safeZ,
	}

	if s.mode == ModeAttack {
		snap.Progress = s.worker.Progress()
		s.position = s.worker.Position()
		if !s.busyLocked() {
			s.mode = ModeManual
			snap.Mode = ModeManual
		}
	} else if !s.busyLocked() {
		pos, err := s.stage.Position()
		if err != nil {
			s.log.Errorf("query position: %v", err)
		} else {
			s.position = pos
		}
	}

	snap.Position = s.position
	return snap
}
