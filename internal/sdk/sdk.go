// Package sdk describes the vendor eyetracker SDK as seen by the bridge: a
// blocking, single-threaded link to the tracker host with a hook mechanism
// for driving calibration displays.
//
// A Link must only be used from the goroutine that opened it.
package sdk

import "fmt"

// Result is a vendor return code
type Result int

const (
	OK               Result = 0
	Failed           Result = -1
	LinkInitFailed   Result = -200
	ConnectTimeout   Result = -201
	WrongLinkVersion Result = -202
	TrackerBusy      Result = -203

	// CalNoReply is reported by CalResult while no calibration outcome
	// is pending
	CalNoReply Result = 1000
	// CalAborted is the outcome of a calibration cancelled with ESC
	CalAborted Result = 27
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case Failed:
		return "failed"
	case LinkInitFailed:
		return "link initialization failed"
	case ConnectTimeout:
		return "connection timed out"
	case WrongLinkVersion:
		return "wrong link version"
	case TrackerBusy:
		return "tracker busy"
	case CalNoReply:
		return "no reply"
	case CalAborted:
		return "aborted"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Mode selects how Open connects
type Mode int

const (
	// ModeInit only initializes the library so that an address can be set
	ModeInit Mode = -1
	// ModeLink connects to the tracker host over the network
	ModeLink Mode = 0
	// ModeDummy opens a simulated session without hardware
	ModeDummy Mode = 1
)

// Eye indices as reported by EyeAvailable and used to index FloatSample
const (
	EyeNone      = -1
	EyeLeft      = 0
	EyeRight     = 1
	EyeBinocular = 2
)

// MissingData marks a gaze coordinate the tracker could not compute
const MissingData = -32768.0

// DataType is the kind of the next record in the link data queue
type DataType int

const (
	DataNone       DataType = 0
	DataStartBlink DataType = 3
	DataEndBlink   DataType = 4
	DataStartFix   DataType = 7
	DataEndFix     DataType = 8
	DataSample     DataType = 200
)

// FloatSample is a gaze sample with per-eye coordinates. Time is in
// milliseconds on the tracker clock.
type FloatSample struct {
	Time float64
	GX   [2]float64
	GY   [2]float64
}

// Vendor key codes
const (
	KeyEnter     uint16 = 0x0D
	KeyEscape    uint16 = 0x1B
	KeySpace     uint16 = 0x20
	KeyF1        uint16 = 0x3B00
	KeyF2        uint16 = 0x3C00
	KeyF3        uint16 = 0x3D00
	KeyF4        uint16 = 0x3E00
	KeyF5        uint16 = 0x3F00
	KeyF6        uint16 = 0x4000
	KeyF7        uint16 = 0x4100
	KeyF8        uint16 = 0x4200
	KeyF9        uint16 = 0x4300
	KeyF10       uint16 = 0x4400
	KeyF11       uint16 = 0x8500
	KeyF12       uint16 = 0x8600
	KeyCursorUp  uint16 = 0x4800
	KeyCursorDn  uint16 = 0x5000
	KeyCursorL   uint16 = 0x4B00
	KeyCursorR   uint16 = 0x4D00
	KeyPageUp    uint16 = 0x4900
	KeyPageDown  uint16 = 0x5100
	KeyTerminate uint16 = 0x7FFF
)

// Vendor modifier bits
const (
	ModLShift uint16 = 0x0001
	ModLCtrl  uint16 = 0x0040
	ModLAlt   uint16 = 0x0100
)

// KeyState is passed to SendKeybutton
type KeyState int

const (
	KeyRelease KeyState = -1
	KeyRepeat  KeyState = 1
	KeyPress   KeyState = 10
)

// KeyInput is a keystroke handed to the SDK by the input hook
type KeyInput struct {
	Key      uint16
	Modifier uint16
}

// Hooks are invoked synchronously by DoTrackerSetup on the calling
// goroutine. Nil hooks are skipped.
type Hooks struct {
	SetupCalDisplay   func()
	ClearCalDisplay   func()
	DrawCalTarget     func(x, y float64)
	EraseCalTarget    func()
	SetupImageDisplay func(width, height int)
	// DrawImage receives a frame in BGRA byte order. The slice is only
	// valid during the call.
	DrawImage        func(width, height int, pix []byte)
	ExitImageDisplay func()
	// InputKey is polled repeatedly while setup is active. It returns
	// false when no key is available.
	InputKey func() (KeyInput, bool)
}

// Link is the vendor session
type Link interface {
	Open(mode Mode) Result
	SetAddress(addr string) Result
	Close()
	TrackerVersion() (int, string)

	// StartRecording sets the four data flags: samples and events
	// written to the tracker's file, samples and events sent over the link.
	StartRecording(fileSamples, fileEvents, linkSamples, linkEvents bool) Result
	StopRecording()

	EyeAvailable() int
	NextData() DataType
	FloatData() FloatSample

	// Command sends a configuration command to the tracker host.
	Command(format string, args ...any) Result

	SetupHooks(h Hooks)
	// DoTrackerSetup runs the interactive setup menu and only returns
	// when it is exited through the input hook.
	DoTrackerSetup() Result
	ExitCalibration()
	CalResult() Result
	CalMessage() string
	SendKeybutton(code, mods uint16, state KeyState) Result
}
