package eyelink

import (
	"github.com/bnema/geye/internal/eyetracker"
	"github.com/bnema/geye/internal/sdk"
)

var keyMap = map[eyetracker.Key]uint16{
	eyetracker.KeyF1:       sdk.KeyF1,
	eyetracker.KeyF2:       sdk.KeyF2,
	eyetracker.KeyF3:       sdk.KeyF3,
	eyetracker.KeyF4:       sdk.KeyF4,
	eyetracker.KeyF5:       sdk.KeyF5,
	eyetracker.KeyF6:       sdk.KeyF6,
	eyetracker.KeyF7:       sdk.KeyF7,
	eyetracker.KeyF8:       sdk.KeyF8,
	eyetracker.KeyF9:       sdk.KeyF9,
	eyetracker.KeyF10:      sdk.KeyF10,
	eyetracker.KeyF11:      sdk.KeyF11,
	eyetracker.KeyF12:      sdk.KeyF12,
	eyetracker.KeyReturn:   sdk.KeyEnter,
	eyetracker.KeyKPEnter:  sdk.KeyEnter,
	eyetracker.KeyEscape:   sdk.KeyEscape,
	eyetracker.KeyUp:       sdk.KeyCursorUp,
	eyetracker.KeyDown:     sdk.KeyCursorDn,
	eyetracker.KeyLeft:     sdk.KeyCursorL,
	eyetracker.KeyRight:    sdk.KeyCursorR,
	eyetracker.KeyPageUp:   sdk.KeyPageUp,
	eyetracker.KeyPageDown: sdk.KeyPageDown,
}

// translateKey maps a host key to a vendor key code. Printable ASCII is
// passed through unchanged.
func translateKey(k eyetracker.Key) (uint16, bool) {
	if code, ok := keyMap[k]; ok {
		return code, true
	}
	if k >= 0x20 && k < 0x7f {
		return uint16(k), true
	}
	return 0, false
}

func translateModifiers(m eyetracker.Modifier) uint16 {
	var out uint16
	if m&eyetracker.ModShift != 0 {
		out |= sdk.ModLShift
	}
	if m&eyetracker.ModControl != 0 {
		out |= sdk.ModLCtrl
	}
	if m&eyetracker.ModAlt != 0 {
		out |= sdk.ModLAlt
	}
	return out
}
