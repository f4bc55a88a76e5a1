package eyelink

import (
	"github.com/bnema/geye/internal/eyetracker"
	"github.com/bnema/geye/internal/sdk"
)

// hooks are installed once for the life of the worker. The vendor calls
// them from inside DoTrackerSetup, on the worker goroutine.
func (w *worker) hooks() sdk.Hooks {
	return sdk.Hooks{
		SetupCalDisplay:   w.setupCalDisplay,
		ClearCalDisplay:   w.clearCalDisplay,
		DrawCalTarget:     w.drawCalTarget,
		EraseCalTarget:    w.eraseCalTarget,
		SetupImageDisplay: w.setupImageDisplay,
		DrawImage:         w.drawImage,
		ExitImageDisplay:  w.exitImageDisplay,
		InputKey:          w.inputKey,
	}
}

func (w *worker) setupCalDisplay() {
	if cb := w.t.state.userCallbacks().calibrationStart; cb != nil {
		cb(w.t)
	}
	w.emit(eyetracker.Event{Type: eyetracker.EventCalibrationStart})
}

func (w *worker) clearCalDisplay() {
	if cb := w.t.state.userCallbacks().calibrationStop; cb != nil {
		cb(w.t)
	}
	w.emit(eyetracker.Event{Type: eyetracker.EventCalibrationStop})
}

func (w *worker) drawCalTarget(x, y float64) {
	if cb := w.t.state.userCallbacks().calpointStart; cb != nil {
		cb(w.t, x, y)
	}
	w.emit(eyetracker.Event{Type: eyetracker.EventCalpointStart, X: x, Y: y})
}

// eraseCalTarget reports the dot as cleared; no coordinates are sent
func (w *worker) eraseCalTarget() {
	if cb := w.t.state.userCallbacks().calpointStop; cb != nil {
		cb(w.t)
	}
	w.emit(eyetracker.Event{Type: eyetracker.EventCalpointStop})
}

func (w *worker) setupImageDisplay(width, height int) {
	w.logger.Debug("Camera image display", "width", width, "height", height)
	w.buf.resize(width, height)
}

func (w *worker) drawImage(width, height int, pix []byte) {
	size := width * height * 4
	if width <= 0 || height <= 0 || len(pix) < size {
		w.logger.Warn("Short camera frame", "width", width, "height", height, "bytes", len(pix))
		return
	}
	w.buf.resize(width, height)
	convertBGRA(w.buf.pix, pix[:size])

	img := &eyetracker.Image{Width: width, Height: height, Pix: w.buf.pix}
	if w.image != nil {
		// the working buffer is never handed out
		w.image(w.t, img.Clone())
	}
	w.emit(eyetracker.Event{Type: eyetracker.EventImage, Image: img.Clone()})
}

func (w *worker) exitImageDisplay() {
	w.logger.Debug("Camera image display closed")
}

var cancelKey = sdk.KeyInput{Key: sdk.KeyEscape}

// inputKey is polled by the vendor while setup is active. It is the only
// point where the worker sees the outside world during a setup call.
func (w *worker) inputKey() (sdk.KeyInput, bool) {
	if w.quitHooks {
		return cancelKey, true
	}

	if r := w.link.CalResult(); r != sdk.CalNoReply {
		w.link.ExitCalibration()
		msg := w.link.CalMessage()
		w.logger.Info("Calibration finished", "result", r, "message", msg)
		w.emit(eyetracker.Event{Type: eyetracker.EventCalibrationResult, Message: msg})
		if w.calibrating {
			w.quitHooks = true
		}
	}

	if cmd, ok := w.setup.TryPop(); ok {
		switch cmd.typ {
		case cmdInjectKey:
			w.link.SendKeybutton(cmd.key, cmd.mods, sdk.KeyPress)
		case cmdStopSetup:
			w.quitHooks = true
		case cmdSetImageCallback:
			w.image = cmd.image
		default:
			w.logger.Debug("Deferring command until setup returns", "command", cmd.typ)
			w.deferred = append(w.deferred, cmd)
			w.quitHooks = true
		}
	}

	if w.quitHooks {
		return cancelKey, true
	}
	return sdk.KeyInput{}, false
}
