package ipc

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Messages are protobuf Structs with a "type" field naming the request or
// response, plus type-specific fields.

// RequestType names a control request
type RequestType string

const (
	RequestStatus         RequestType = "status"
	RequestConnect        RequestType = "connect"
	RequestDisconnect     RequestType = "disconnect"
	RequestStartTracking  RequestType = "start_tracking"
	RequestStopTracking   RequestType = "stop_tracking"
	RequestStartRecording RequestType = "start_recording"
	RequestStopRecording  RequestType = "stop_recording"
	RequestStartSetup     RequestType = "start_setup"
	RequestStopSetup      RequestType = "stop_setup"
	RequestCalibrate      RequestType = "calibrate"
	RequestValidate       RequestType = "validate"
	RequestSetCalPoints   RequestType = "set_calpoints"
	RequestSetDisplay     RequestType = "set_display"
	RequestKey            RequestType = "key"
)

// Response types
const (
	ResponseStatus = "status_response"
	ResponseAck    = "ack"
	ResponseError  = "error"
)

var knownRequests = map[RequestType]bool{
	RequestStatus: true, RequestConnect: true, RequestDisconnect: true,
	RequestStartTracking: true, RequestStopTracking: true,
	RequestStartRecording: true, RequestStopRecording: true,
	RequestStartSetup: true, RequestStopSetup: true,
	RequestCalibrate: true, RequestValidate: true,
	RequestSetCalPoints: true, RequestSetDisplay: true, RequestKey: true,
}

// Control is a parsed control request
type Control struct {
	Type      RequestType
	CalPoints int    // RequestSetCalPoints
	Width     int    // RequestSetDisplay
	Height    int    // RequestSetDisplay
	Key       uint32 // RequestKey, host keysym
	Modifiers uint32 // RequestKey
}

// Status describes the daemon's tracker
type Status struct {
	TrackerID     string
	Connected     bool
	Tracking      bool
	Recording     bool
	InSetup       bool
	Simulated     bool
	Info          string
	NumCalPoints  int
	DisplayWidth  int
	DisplayHeight int
}

// MessageType returns the type tag of msg
func MessageType(msg *structpb.Struct) string {
	if msg == nil {
		return ""
	}
	return msg.GetFields()["type"].GetStringValue()
}

// NewControlMessage creates a request message for c
func NewControlMessage(c Control) (*structpb.Struct, error) {
	if !knownRequests[c.Type] {
		return nil, fmt.Errorf("unknown request type %q", c.Type)
	}
	fields := map[string]any{"type": string(c.Type)}
	switch c.Type {
	case RequestSetCalPoints:
		fields["calpoints"] = c.CalPoints
	case RequestSetDisplay:
		fields["width"] = c.Width
		fields["height"] = c.Height
	case RequestKey:
		fields["key"] = c.Key
		fields["modifiers"] = c.Modifiers
	}
	return structpb.NewStruct(fields)
}

// NewStatusMessage creates a status query
func NewStatusMessage() (*structpb.Struct, error) {
	return NewControlMessage(Control{Type: RequestStatus})
}

// GetControl parses a request message
func GetControl(msg *structpb.Struct) (*Control, error) {
	typ := RequestType(MessageType(msg))
	if !knownRequests[typ] {
		return nil, fmt.Errorf("message is not a control request: %q", typ)
	}
	f := msg.GetFields()
	c := &Control{Type: typ}
	switch typ {
	case RequestSetCalPoints:
		if _, ok := f["calpoints"]; !ok {
			return nil, fmt.Errorf("set_calpoints without calpoints")
		}
		c.CalPoints = int(f["calpoints"].GetNumberValue())
	case RequestSetDisplay:
		c.Width = int(f["width"].GetNumberValue())
		c.Height = int(f["height"].GetNumberValue())
	case RequestKey:
		if _, ok := f["key"]; !ok {
			return nil, fmt.Errorf("key request without key")
		}
		c.Key = uint32(f["key"].GetNumberValue())
		c.Modifiers = uint32(f["modifiers"].GetNumberValue())
	}
	return c, nil
}

// NewStatusResponseMessage creates a status response
func NewStatusResponseMessage(st Status) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"type":           ResponseStatus,
		"tracker_id":     st.TrackerID,
		"connected":      st.Connected,
		"tracking":       st.Tracking,
		"recording":      st.Recording,
		"in_setup":       st.InSetup,
		"simulated":      st.Simulated,
		"info":           st.Info,
		"num_calpoints":  st.NumCalPoints,
		"display_width":  st.DisplayWidth,
		"display_height": st.DisplayHeight,
	})
}

// GetStatusResponse extracts the status from a response
func GetStatusResponse(msg *structpb.Struct) (*Status, error) {
	if MessageType(msg) != ResponseStatus {
		return nil, fmt.Errorf("message is not a status response")
	}
	f := msg.GetFields()
	return &Status{
		TrackerID:     f["tracker_id"].GetStringValue(),
		Connected:     f["connected"].GetBoolValue(),
		Tracking:      f["tracking"].GetBoolValue(),
		Recording:     f["recording"].GetBoolValue(),
		InSetup:       f["in_setup"].GetBoolValue(),
		Simulated:     f["simulated"].GetBoolValue(),
		Info:          f["info"].GetStringValue(),
		NumCalPoints:  int(f["num_calpoints"].GetNumberValue()),
		DisplayWidth:  int(f["display_width"].GetNumberValue()),
		DisplayHeight: int(f["display_height"].GetNumberValue()),
	}, nil
}

// NewAckMessage creates an acknowledgement. accepted is false when a
// request was valid but had no effect, such as a key outside of setup.
func NewAckMessage(accepted bool) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"type":     ResponseAck,
		"accepted": accepted,
	})
}

// GetAccepted reads the accepted flag of an acknowledgement
func GetAccepted(msg *structpb.Struct) (bool, error) {
	if MessageType(msg) != ResponseAck {
		return false, fmt.Errorf("message is not an acknowledgement")
	}
	return msg.GetFields()["accepted"].GetBoolValue(), nil
}

// NewErrorMessage creates a new error message
func NewErrorMessage(errMsg string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"type":  ResponseError,
		"error": errMsg,
	})
}

// GetErrorResponse extracts the error text of an error response
func GetErrorResponse(msg *structpb.Struct) (string, error) {
	if MessageType(msg) != ResponseError {
		return "", fmt.Errorf("message is not an error response")
	}
	return msg.GetFields()["error"].GetStringValue(), nil
}
