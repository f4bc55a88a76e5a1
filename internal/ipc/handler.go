package ipc

import (
	"fmt"

	"github.com/bnema/geye/internal/eyelink"
	"github.com/bnema/geye/internal/eyetracker"
)

// TrackerHandler serves IPC requests from a tracker
type TrackerHandler struct {
	tracker *eyelink.Tracker
}

// NewTrackerHandler creates a handler for t
func NewTrackerHandler(t *eyelink.Tracker) *TrackerHandler {
	return &TrackerHandler{tracker: t}
}

// HandleStatusQuery reports the tracker state
func (h *TrackerHandler) HandleStatusQuery() (*Status, error) {
	t := h.tracker
	w, ht := t.DisplaySize()
	return &Status{
		TrackerID:     t.ID().String(),
		Connected:     t.Connected(),
		Tracking:      t.Tracking(),
		Recording:     t.Recording(),
		InSetup:       t.InSetup(),
		Simulated:     t.Simulated(),
		Info:          t.Info(),
		NumCalPoints:  t.NumCalPoints(),
		DisplayWidth:  w,
		DisplayHeight: ht,
	}, nil
}

// HandleControl maps a request onto the tracker
func (h *TrackerHandler) HandleControl(c *Control) (bool, error) {
	t := h.tracker
	switch c.Type {
	case RequestConnect:
		return true, t.Connect()
	case RequestDisconnect:
		accepted := t.Connected()
		t.Disconnect()
		return accepted, nil
	case RequestStartTracking:
		return true, t.StartTracking()
	case RequestStopTracking:
		accepted := t.Connected()
		t.StopTracking()
		return accepted, nil
	case RequestStartRecording:
		return true, t.StartRecording()
	case RequestStopRecording:
		accepted := t.Connected()
		t.StopRecording()
		return accepted, nil
	case RequestStartSetup:
		return true, t.StartSetup()
	case RequestStopSetup:
		accepted := t.Connected()
		t.StopSetup()
		return accepted, nil
	case RequestCalibrate:
		return true, t.Calibrate()
	case RequestValidate:
		return true, t.Validate()
	case RequestSetCalPoints:
		t.SetNumCalPoints(c.CalPoints)
		return true, nil
	case RequestSetDisplay:
		return true, t.SetDisplaySize(c.Width, c.Height)
	case RequestKey:
		return t.SendKeyPress(eyetracker.Key(c.Key), eyetracker.Modifier(c.Modifiers)), nil
	default:
		return false, fmt.Errorf("unsupported request %q", c.Type)
	}
}
