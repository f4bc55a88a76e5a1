package eyetracker

import (
	"errors"
	"fmt"
)

var (
	// ErrUnableToConnect is the parent of every connection failure
	ErrUnableToConnect = errors.New("unable to connect to the eyetracker")
	// ErrConnectTimeout is returned when the device did not answer in time
	ErrConnectTimeout = fmt.Errorf("%w: connection timed out", ErrUnableToConnect)
	// ErrWrongVersion is returned when the link protocol versions differ
	ErrWrongVersion = fmt.Errorf("%w: wrong link protocol version", ErrUnableToConnect)
	// ErrLinkInit is returned when the link could not be initialized
	ErrLinkInit = fmt.Errorf("%w: link initialization failed", ErrUnableToConnect)

	// ErrIncorrectMode is returned when an operation requires a connected
	// or disconnected state that is not currently held
	ErrIncorrectMode = errors.New("incorrect mode")

	// ErrSDK is the generic vendor failure category
	ErrSDK = errors.New("eyetracker SDK failure")
)
