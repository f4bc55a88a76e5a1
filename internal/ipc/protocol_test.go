package ipc

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestControlMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ctrl Control
	}{
		{"connect", Control{Type: RequestConnect}},
		{"disconnect", Control{Type: RequestDisconnect}},
		{"calibrate", Control{Type: RequestCalibrate}},
		{"set calpoints", Control{Type: RequestSetCalPoints, CalPoints: 13}},
		{"set display", Control{Type: RequestSetDisplay, Width: 1920, Height: 1080}},
		{"key", Control{Type: RequestKey, Key: 0xff0d, Modifiers: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewControlMessage(tt.ctrl)
			if err != nil {
				t.Fatalf("NewControlMessage() error = %v", err)
			}

			if got := MessageType(msg); got != string(tt.ctrl.Type) {
				t.Errorf("Expected message type %s, got %s", tt.ctrl.Type, got)
			}

			got, err := GetControl(msg)
			if err != nil {
				t.Fatalf("GetControl() error = %v", err)
			}
			if diff := cmp.Diff(tt.ctrl, *got); diff != "" {
				t.Errorf("GetControl() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewControlMessageUnknownType(t *testing.T) {
	if _, err := NewControlMessage(Control{Type: "switch"}); err == nil {
		t.Error("Expected error for unknown request type")
	}
}

func TestGetControlErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"missing type", map[string]any{}},
		{"response instead of request", map[string]any{"type": ResponseAck}},
		{"calpoints missing", map[string]any{"type": "set_calpoints"}},
		{"key missing", map[string]any{"type": "key"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := structpb.NewStruct(tt.fields)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := GetControl(msg); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestStatusResponseRoundTrip(t *testing.T) {
	want := Status{
		TrackerID:     "5b0c2c9e-3f1f-4a57-9a43-0f1e5f8b9d11",
		Connected:     true,
		Tracking:      true,
		InSetup:       false,
		Simulated:     true,
		Info:          "EYELINK DUMMY",
		NumCalPoints:  9,
		DisplayWidth:  800,
		DisplayHeight: 600,
	}

	msg, err := NewStatusResponseMessage(want)
	if err != nil {
		t.Fatalf("NewStatusResponseMessage() error = %v", err)
	}

	got, err := GetStatusResponse(msg)
	if err != nil {
		t.Fatalf("GetStatusResponse() error = %v", err)
	}
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}

	if _, err := GetErrorResponse(msg); err == nil {
		t.Error("Expected error when reading a status response as error")
	}
}

func TestAckAndErrorMessages(t *testing.T) {
	ack, err := NewAckMessage(false)
	if err != nil {
		t.Fatal(err)
	}
	accepted, err := GetAccepted(ack)
	if err != nil {
		t.Fatalf("GetAccepted() error = %v", err)
	}
	if accepted {
		t.Error("Expected accepted to be false")
	}

	msg, err := NewErrorMessage("boom")
	if err != nil {
		t.Fatal(err)
	}
	text, err := GetErrorResponse(msg)
	if err != nil {
		t.Fatalf("GetErrorResponse() error = %v", err)
	}
	if text != "boom" {
		t.Errorf("Expected error text 'boom', got %q", text)
	}
	if _, err := GetAccepted(msg); err == nil {
		t.Error("Expected error when reading an error response as ack")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in, _ := NewControlMessage(Control{Type: RequestSetDisplay, Width: 10, Height: 20})
	if err := WriteFrame(&buf, in); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	if got := buf.Bytes()[:4]; got[0] != 0 || got[1] != 0 {
		t.Errorf("Expected small big-endian length prefix, got %v", got)
	}

	var out structpb.Struct
	if err := ReadFrame(&buf, &out); err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if MessageType(&out) != string(RequestSetDisplay) {
		t.Errorf("Expected set_display, got %s", MessageType(&out))
	}
}

func TestReadFrameRejectsOversized(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff})
	var out structpb.Struct
	if err := ReadFrame(buf, &out); err == nil {
		t.Error("Expected error for oversized frame")
	}
}
