package eyelink

import (
	"errors"
	"fmt"

	"github.com/bnema/geye/internal/eyetracker"
	"github.com/bnema/geye/internal/sdk"
)

// ErrClosed is returned by operations on a closed tracker
var ErrClosed = errors.New("tracker closed")

// connectError maps a failed open to the connection taxonomy
func connectError(r sdk.Result) error {
	switch r {
	case sdk.ConnectTimeout:
		return eyetracker.ErrConnectTimeout
	case sdk.WrongLinkVersion:
		return eyetracker.ErrWrongVersion
	case sdk.LinkInitFailed:
		return eyetracker.ErrLinkInit
	default:
		return fmt.Errorf("%w: %s (%d)", eyetracker.ErrUnableToConnect, r, int(r))
	}
}

// sdkError wraps a vendor failure during op
func sdkError(op string, r sdk.Result) error {
	return fmt.Errorf("%w: %s: %s (%d)", eyetracker.ErrSDK, op, r, int(r))
}
