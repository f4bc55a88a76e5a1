package ui

import (
	"github.com/bnema/geye/internal/eyetracker"
)

// fakeTracker records the commands the monitor issues
type fakeTracker struct {
	calls     []string
	keys      []eyetracker.Key
	mods      []eyetracker.Modifier
	tracking  bool
	recording bool
	inSetup   bool
	numCal    int
	connErr   error
	acceptKey bool
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{numCal: 9, acceptKey: true}
}

func (f *fakeTracker) Connect() error {
	f.calls = append(f.calls, "connect")
	return f.connErr
}
func (f *fakeTracker) Disconnect() { f.calls = append(f.calls, "disconnect") }
func (f *fakeTracker) StartTracking() error {
	f.calls = append(f.calls, "start-tracking")
	f.tracking = true
	return nil
}
func (f *fakeTracker) StopTracking() {
	f.calls = append(f.calls, "stop-tracking")
	f.tracking = false
}
func (f *fakeTracker) StartRecording() error {
	f.calls = append(f.calls, "start-recording")
	f.recording = true
	return nil
}
func (f *fakeTracker) StopRecording() {
	f.calls = append(f.calls, "stop-recording")
	f.recording = false
}
func (f *fakeTracker) StartSetup() error {
	f.calls = append(f.calls, "start-setup")
	f.inSetup = true
	return nil
}
func (f *fakeTracker) StopSetup() { f.calls = append(f.calls, "stop-setup") }
func (f *fakeTracker) Calibrate() error {
	f.calls = append(f.calls, "calibrate")
	f.inSetup = true
	return nil
}
func (f *fakeTracker) Validate() error {
	f.calls = append(f.calls, "validate")
	f.inSetup = true
	return nil
}
func (f *fakeTracker) NumCalPoints() int       { return f.numCal }
func (f *fakeTracker) SetNumCalPoints(n int)   { f.numCal = n }
func (f *fakeTracker) Connected() bool         { return true }
func (f *fakeTracker) Tracking() bool          { return f.tracking }
func (f *fakeTracker) Recording() bool         { return f.recording }
func (f *fakeTracker) InSetup() bool           { return f.inSetup }
func (f *fakeTracker) DisplaySize() (int, int) { return 800, 600 }
func (f *fakeTracker) SendKeyPress(k eyetracker.Key, m eyetracker.Modifier) bool {
	f.keys = append(f.keys, k)
	f.mods = append(f.mods, m)
	return f.acceptKey
}

func (f *fakeTracker) SetCalibrationStartCallback(eyetracker.CalibrationFunc) {}
func (f *fakeTracker) SetCalibrationStopCallback(eyetracker.CalibrationFunc)  {}
func (f *fakeTracker) SetCalpointStartCallback(eyetracker.CalpointStartFunc)  {}
func (f *fakeTracker) SetCalpointStopCallback(eyetracker.CalibrationFunc)     {}
func (f *fakeTracker) SetImageCallback(eyetracker.ImageFunc)                  {}
func (f *fakeTracker) Subscribe(eyetracker.EventHandler) func()               { return func() {} }
func (f *fakeTracker) Close() error                                           { return nil }
