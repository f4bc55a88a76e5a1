package eyelink

import (
	"fmt"
	"runtime"
	"time"

	"github.com/bnema/geye/internal/eyetracker"
	"github.com/bnema/geye/internal/sdk"
	"github.com/charmbracelet/log"
)

// worker owns the vendor session. Every sdk call happens on its goroutine.
type worker struct {
	t      *Tracker
	link   sdk.Link
	logger *log.Logger

	commands *queue[command]
	setup    *queue[command]
	poll     time.Duration

	// private to the worker goroutine
	stopThread  bool
	quitHooks   bool
	calibrating bool
	image       eyetracker.ImageFunc
	buf         imageBuffer
	deferred    []command
}

func (w *worker) run() {
	// the vendor library keeps per-thread state
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.t.done)
	w.t.workerGID.Store(goroutineID())

	w.link.SetupHooks(w.hooks())
	w.logger.Debug("Worker started")

	for !w.stopThread {
		busy := false
		if w.t.state.isTracking() {
			busy = w.drainData()
		}

		var (
			cmd command
			ok  bool
		)
		if busy {
			cmd, ok = w.commands.TryPop()
		} else {
			cmd, ok = w.commands.PopTimeout(w.poll)
		}
		if ok {
			w.handle(cmd)
		}
	}

	w.logger.Debug("Worker stopped")
}

func (w *worker) handle(cmd command) {
	w.logger.Debug("Handling command", "command", cmd.typ)

	switch cmd.typ {
	case cmdStop:
		w.stopThread = true
		if w.t.state.isConnected() {
			w.disconnect()
		}
	case cmdConnect:
		if w.t.state.isConnected() {
			w.logger.Warn("Connect requested while already connected")
			return
		}
		w.connect()
	case cmdDisconnect:
		if !w.t.state.isConnected() {
			w.logger.Debug("Disconnect requested while not connected")
			return
		}
		w.disconnect()
	case cmdStartTracking, cmdStopTracking:
		w.setTracking(cmd.typ == cmdStartTracking)
	case cmdStartRecording, cmdStopRecording:
		w.setRecording(cmd.typ == cmdStartRecording)
	case cmdStartSetup:
		w.runSetup(0)
	case cmdCalibrate:
		w.runSetup('c')
	case cmdValidate:
		w.runSetup('v')
	case cmdStopSetup, cmdInjectKey:
		w.logger.Debug("Ignoring setup command outside of setup", "command", cmd.typ)
	case cmdSetImageCallback:
		w.image = cmd.image
	default:
		w.logger.Warn("Unexpected command", "command", cmd.typ)
	}
}

func (w *worker) connect() {
	simulated, ip := w.t.state.connectParams()

	if ip != "" {
		// the library must be initialized before an address can be set
		if r := w.link.Open(sdk.ModeInit); r != sdk.OK {
			w.logger.Warn("Unable to initialize the library", "result", r)
		}
		if r := w.link.SetAddress(ip); r != sdk.OK {
			w.logger.Warn("Invalid ip address", "address", ip, "result", r)
		}
	}

	mode := sdk.ModeLink
	if simulated {
		mode = sdk.ModeDummy
	}

	if r := w.link.Open(mode); r != sdk.OK {
		err := connectError(r)
		w.logger.Error("Unable to connect", "error", err)
		w.emitError(err)
		w.emit(eyetracker.Event{Type: eyetracker.EventConnected, Connected: false})
		return
	}

	_, info := w.link.TrackerVersion()
	w.t.state.setConnected(info)
	w.logger.Info("Connected", "tracker", info, "simulated", simulated)
	w.emit(eyetracker.Event{Type: eyetracker.EventConnected, Connected: true})
}

func (w *worker) disconnect() {
	if tracking, recording := w.t.state.dataFlags(); tracking || recording {
		w.link.StopRecording()
	}
	w.link.Close()
	w.t.state.setDisconnected()
	w.logger.Info("Disconnected")
	w.emit(eyetracker.Event{Type: eyetracker.EventConnected, Connected: false})
}

func (w *worker) setTracking(on bool) {
	if !w.requireConnected(fmt.Sprintf("tracking=%t", on)) {
		return
	}
	w.t.state.setTracking(on)
	if r := w.applyDataFlags(); r != sdk.OK {
		w.t.state.setTracking(!on)
		w.emitError(sdkError("set tracking", r))
	}
}

func (w *worker) setRecording(on bool) {
	if !w.requireConnected(fmt.Sprintf("recording=%t", on)) {
		return
	}
	w.t.state.setRecording(on)
	if r := w.applyDataFlags(); r != sdk.OK {
		w.t.state.setRecording(!on)
		w.emitError(sdkError("set recording", r))
	}
}

// applyDataFlags combines the tracking and recording axes into one vendor
// call. Tracking streams over the link, recording writes to the tracker's
// file.
func (w *worker) applyDataFlags() sdk.Result {
	tracking, recording := w.t.state.dataFlags()
	if !tracking && !recording {
		w.link.StopRecording()
		return sdk.OK
	}
	return w.link.StartRecording(recording, recording, tracking, tracking)
}

// requireConnected catches commands that were valid when queued but reach
// the worker after a disconnect
func (w *worker) requireConnected(op string) bool {
	if w.t.state.isConnected() {
		return true
	}
	w.logger.Warn("Command requires a connection", "op", op)
	w.emitError(fmt.Errorf("%w: %s while disconnected", eyetracker.ErrIncorrectMode, op))
	return false
}

// drainData delivers every pending link record. It reports whether any
// record was read.
func (w *worker) drainData() bool {
	received := false
	for {
		typ := w.link.NextData()
		if typ == sdk.DataNone {
			return received
		}
		received = true
		if typ != sdk.DataSample {
			w.logger.Debug("Ignoring link event", "type", int(typ))
			continue
		}
		if s, ok := toSample(w.link.FloatData(), w.link.EyeAvailable()); ok {
			w.emit(eyetracker.Event{Type: eyetracker.EventSample, Sample: s})
		}
	}
}

// toSample reduces a vendor record to a single gaze position. Binocular
// records are averaged over the eyes with valid data.
func toSample(fs sdk.FloatSample, eye int) (eyetracker.Sample, bool) {
	valid := func(i int) bool {
		return fs.GX[i] != sdk.MissingData && fs.GY[i] != sdk.MissingData
	}

	switch eye {
	case sdk.EyeLeft, sdk.EyeRight:
		if !valid(eye) {
			return eyetracker.Sample{}, false
		}
		e := eyetracker.EyeLeft
		if eye == sdk.EyeRight {
			e = eyetracker.EyeRight
		}
		return eyetracker.Sample{Eye: e, Time: fs.Time, X: fs.GX[eye], Y: fs.GY[eye]}, true
	case sdk.EyeBinocular:
		l, r := valid(sdk.EyeLeft), valid(sdk.EyeRight)
		switch {
		case l && r:
			return eyetracker.Sample{
				Eye:  eyetracker.EyeAvg,
				Time: fs.Time,
				X:    (fs.GX[0] + fs.GX[1]) / 2,
				Y:    (fs.GY[0] + fs.GY[1]) / 2,
			}, true
		case l:
			return toSample(fs, sdk.EyeLeft)
		case r:
			return toSample(fs, sdk.EyeRight)
		}
	}
	return eyetracker.Sample{}, false
}

// runSetup enters the blocking vendor setup call. A non-zero menuKey is
// sent first so that calibration or validation starts immediately and
// setup is left once its result has been read.
func (w *worker) runSetup(menuKey uint16) {
	if !w.requireConnected("setup") {
		w.leaveSetup()
		return
	}

	if menuKey != 0 {
		points, width, height := w.t.state.calibrationParams()
		if r := w.link.Command("calibration_type = HV%d", points); r != sdk.OK {
			panic(fmt.Sprintf("tracker rejected calibration_type HV%d: %s", points, r))
		}
		if r := w.link.Command("screen_pixel_coords = %d %d %d %d", 0, 0, width-1, height-1); r != sdk.OK {
			w.logger.Warn("Tracker rejected display size", "width", width, "height", height, "result", r)
			w.emitError(sdkError("screen_pixel_coords", r))
			w.leaveSetup()
			return
		}
		w.link.SendKeybutton(menuKey, 0, sdk.KeyPress)
		w.calibrating = true
	}

	// setup needs the data flags off; they are restored afterwards
	tracking, recording := w.t.state.dataFlags()
	if tracking || recording {
		w.link.StopRecording()
	}

	// discard an outcome left behind by an interrupted session
	if w.link.CalResult() != sdk.CalNoReply {
		w.link.ExitCalibration()
	}

	w.quitHooks = false
	w.t.state.mu.Lock()
	w.t.state.inSetup = true
	w.t.state.mu.Unlock()

	w.logger.Debug("Entering setup", "calibrating", w.calibrating)
	r := w.link.DoTrackerSetup()
	w.logger.Debug("Left setup", "result", r)

	w.quitHooks = false
	w.calibrating = false
	w.leaveSetup()

	if r != sdk.OK {
		w.emitError(sdkError("tracker setup", r))
	}
	if tracking || recording {
		if r := w.applyDataFlags(); r != sdk.OK {
			w.emitError(sdkError("resume data", r))
		}
	}
}

// leaveSetup clears the setup flag and moves everything still waiting in
// the setup channel to the front of the command queue, in order.
func (w *worker) leaveSetup() {
	// no facade routes to the setup channel once the flag is cleared
	w.t.state.mu.Lock()
	w.t.state.inSetup = false
	w.t.state.mu.Unlock()

	for {
		cmd, ok := w.setup.TryPop()
		if !ok {
			break
		}
		if cmd.typ == cmdSetImageCallback {
			w.image = cmd.image
			continue
		}
		w.deferred = append(w.deferred, cmd)
	}

	if len(w.deferred) > 0 {
		w.logger.Debug("Requeueing commands received during setup", "count", len(w.deferred))
		w.commands.PushFront(w.deferred...)
		w.deferred = nil
	}
}

func (w *worker) emit(ev eyetracker.Event) {
	w.t.emit(ev)
}

func (w *worker) emitError(err error) {
	w.t.emit(eyetracker.Event{Type: eyetracker.EventError, Err: err, Message: err.Error()})
}
