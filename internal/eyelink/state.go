package eyelink

import (
	"sync"

	"github.com/bnema/geye/internal/eyetracker"
)

// session holds the state shared between the facade and the worker. The
// worker is the only writer of the connection flags. The lock is never held
// across a vendor call.
type session struct {
	mu sync.RWMutex

	connected bool
	tracking  bool
	recording bool
	inSetup   bool

	simulated bool
	ipAddress string
	info      string

	numCalPoints  int
	displayWidth  int
	displayHeight int

	callbacks userCallbacks
}

// userCallbacks run synchronously on the worker goroutine
type userCallbacks struct {
	calibrationStart eyetracker.CalibrationFunc
	calibrationStop  eyetracker.CalibrationFunc
	calpointStart    eyetracker.CalpointStartFunc
	calpointStop     eyetracker.CalibrationFunc
}

// clampCalPoints snaps n to a supported calibration layout
func clampCalPoints(n int) int {
	switch {
	case n <= 3:
		return 3
	case n <= 5:
		return 5
	case n <= 9:
		return 9
	default:
		return 13
	}
}

func (s *session) isConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *session) isTracking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracking
}

// dataFlags returns the two independent streaming axes
func (s *session) dataFlags() (tracking, recording bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracking, s.recording
}

func (s *session) setTracking(v bool) {
	s.mu.Lock()
	s.tracking = v
	s.mu.Unlock()
}

func (s *session) setRecording(v bool) {
	s.mu.Lock()
	s.recording = v
	s.mu.Unlock()
}

func (s *session) setConnected(info string) {
	s.mu.Lock()
	s.connected = true
	s.info = info
	s.mu.Unlock()
}

func (s *session) setDisconnected() {
	s.mu.Lock()
	s.connected = false
	s.tracking = false
	s.recording = false
	s.info = ""
	s.mu.Unlock()
}

// connectParams snapshots what the worker needs to open a session
func (s *session) connectParams() (simulated bool, ipAddress string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.simulated, s.ipAddress
}

// calibrationParams snapshots what the worker sends before calibrating
func (s *session) calibrationParams() (points, width, height int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.numCalPoints, s.displayWidth, s.displayHeight
}

func (s *session) userCallbacks() userCallbacks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callbacks
}
