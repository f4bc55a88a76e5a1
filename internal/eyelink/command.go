package eyelink

import (
	"fmt"

	"github.com/bnema/geye/internal/eyetracker"
)

type commandType int

const (
	cmdStop commandType = iota
	cmdConnect
	cmdDisconnect
	cmdStartTracking
	cmdStopTracking
	cmdStartRecording
	cmdStopRecording
	cmdStartSetup
	cmdStopSetup
	cmdInjectKey
	cmdCalibrate
	cmdValidate
	cmdSetImageCallback
)

var commandNames = [...]string{
	cmdStop:             "stop",
	cmdConnect:          "connect",
	cmdDisconnect:       "disconnect",
	cmdStartTracking:    "start-tracking",
	cmdStopTracking:     "stop-tracking",
	cmdStartRecording:   "start-recording",
	cmdStopRecording:    "stop-recording",
	cmdStartSetup:       "start-setup",
	cmdStopSetup:        "stop-setup",
	cmdInjectKey:        "inject-key",
	cmdCalibrate:        "calibrate",
	cmdValidate:         "validate",
	cmdSetImageCallback: "set-image-callback",
}

func (c commandType) String() string {
	if int(c) >= 0 && int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// command is created by the facade and consumed once by the worker
type command struct {
	typ   commandType
	key   uint16 // vendor key code, cmdInjectKey
	mods  uint16 // vendor modifier bits, cmdInjectKey
	image eyetracker.ImageFunc
}

// entersSetup reports whether the worker runs a blocking setup call for c
func (c command) entersSetup() bool {
	switch c.typ {
	case cmdStartSetup, cmdCalibrate, cmdValidate:
		return true
	}
	return false
}

// actionableInSetup reports whether the input hook can handle c without
// leaving the blocking setup call
func (c command) actionableInSetup() bool {
	switch c.typ {
	case cmdInjectKey, cmdStopSetup, cmdSetImageCallback:
		return true
	}
	return false
}
