package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumberUnmarshal(t *testing.T) {
	var a moveArgs
	err := json.Unmarshal([]byte(`{"speed":"2.5","x":1,"y":"-3","z":null}`), &a)
	assert.Nil(t, err)
	assert.Equal(t, number(2.5), a.Speed)
	assert.Equal(t, number(1), a.X)
	assert.Equal(t, number(-3), a.Y)
	assert.Equal(t, number(0), a.Z)

	err = json.Unmarshal([]byte(`{"speed":"fast"}`), &a)
	assert.NotNil(t, err)
}

func TestHandleCommandRejectsUnknown(t *testing.T) {
	s := &server{}

	err := s.handleCommand([]byte(`{"type":"state"}`))
	assert.NotNil(t, err)

	err = s.handleCommand([]byte(`{"type":"command","cmd":"reboot"}`))
	assert.NotNil(t, err)

	err = s.handleCommand([]byte(`not json`))
	assert.NotNil(t, err)
}
