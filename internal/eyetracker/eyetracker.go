// Package eyetracker defines the capability contract every eyetracker
// implementation offers to applications, together with the values that
// travel across it: gaze samples, calibration notifications, camera images,
// host key codes and the error taxonomy.
//
// Implementations own the hardware session on a goroutine of their own.
// Methods on Eyetracker never block on the device: they validate, enqueue a
// command and return. Outcomes that can only be known once the device has
// answered are reported through events.
package eyetracker

// CalibrationFunc is invoked when the calibration display is set up or
// cleared, and when a calibration point is erased.
type CalibrationFunc func(et Eyetracker)

// CalpointStartFunc is invoked when a calibration target must be drawn at
// (x, y) in display pixels.
type CalpointStartFunc func(et Eyetracker, x, y float64)

// ImageFunc is invoked for every camera frame delivered by the device. The
// image is a copy owned by the callee.
type ImageFunc func(et Eyetracker, img *Image)

// EventHandler receives events on the application's event loop.
type EventHandler func(ev Event)

// Eyetracker is the polymorphic capability interface.
type Eyetracker interface {
	// Connect asks the implementation to open the device. The result
	// arrives as an EventConnected (and an EventError on failure).
	Connect() error
	// Disconnect closes the device. A no-op when not connected.
	Disconnect()

	StartTracking() error
	StopTracking()
	StartRecording() error
	StopRecording()

	// StartSetup enters the device's interactive setup mode.
	StartSetup() error
	// StopSetup leaves setup, calibration or validation.
	StopSetup()
	Calibrate() error
	Validate() error

	NumCalPoints() int
	SetNumCalPoints(n int)

	// SendKeyPress forwards a host key press into an active setup,
	// calibration or validation session. It reports whether the key was
	// accepted for delivery.
	SendKeyPress(key Key, mods Modifier) bool

	Connected() bool
	Tracking() bool
	Recording() bool

	SetCalibrationStartCallback(fn CalibrationFunc)
	SetCalibrationStopCallback(fn CalibrationFunc)
	SetCalpointStartCallback(fn CalpointStartFunc)
	SetCalpointStopCallback(fn CalibrationFunc)
	SetImageCallback(fn ImageFunc)

	// Subscribe registers an event handler and returns a function that
	// removes it.
	Subscribe(fn EventHandler) (unsubscribe func())

	// Close stops the implementation's goroutine, disconnecting first if
	// needed, and waits for it to exit.
	Close() error
}
