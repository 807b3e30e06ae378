package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mastercactapus/emfi/station"
)

type stateMessage struct {
	Type  string           `json:"type"`
	State station.Snapshot `json:"state"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type frameMessage struct {
	Type  string `json:"type"`
	Image string `json:"image"`
}

// number accepts both JSON numbers and numeric strings; browser
// clients send form values without converting them first.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*n = number(v)
	return nil
}

type envelope struct {
	Type string `json:"type"`
	Cmd  string `json:"cmd"`
}

type joystickArgs struct {
	Speed number `json:"speed"`
	Step  number `json:"step"`
}

type moveArgs struct {
	Speed number `json:"speed"`
	X     number `json:"x"`
	Y     number `json:"y"`
	Z     number `json:"z"`
}

type homeArgs struct {
	X bool `json:"x"`
	Y bool `json:"y"`
	Z bool `json:"z"`
}

type attackArgs struct {
	Name string `json:"name"`
}

type safeZArgs struct {
	Z number `json:"z"`
}

func (s *server) handleCommand(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parse message: %w", err)
	}
	if env.Type != "command" {
		return fmt.Errorf("unknown message type %q", env.Type)
	}

	switch env.Cmd {
	case "enableJoystick":
		var a joystickArgs
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		return s.station.EnableJoystick(float64(a.Speed), float64(a.Step))
	case "disableJoystick":
		return s.station.DisableJoystick()
	case "step":
		var a moveArgs
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		return s.station.Step(float64(a.Speed), float64(a.X), float64(a.Y), float64(a.Z))
	case "move":
		var a moveArgs
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		return s.station.Move(float64(a.Speed), float64(a.X), float64(a.Y), float64(a.Z))
	case "home":
		var a homeArgs
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		return s.station.Home(a.X, a.Y, a.Z)
	case "startAttack":
		var a attackArgs
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		return s.station.StartAttack(a.Name)
	case "stopAttack":
		return s.station.StopAttack()
	case "safeZ":
		var a safeZArgs
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		return s.station.SetSafeZ(float64(a.Z))
	case "emergency":
		return s.station.Emergency()
	default:
		return fmt.Errorf("unknown command %q", env.Cmd)
	}
}
