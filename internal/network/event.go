package network

import (
	"fmt"

	"github.com/bnema/geye/internal/eyetracker"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeEvent converts ev into a stream frame. Camera frames are reduced to
// their dimensions; the pixels never leave the host.
func EncodeEvent(ev eyetracker.Event) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"type":       ev.Type.String(),
		"tracker_id": ev.TrackerID.String(),
	}

	switch ev.Type {
	case eyetracker.EventConnected:
		fields["connected"] = ev.Connected
	case eyetracker.EventCalpointStart, eyetracker.EventCalpointStop:
		fields["x"] = ev.X
		fields["y"] = ev.Y
	case eyetracker.EventSample:
		fields["eye"] = ev.Sample.Eye.String()
		fields["time"] = ev.Sample.Time
		fields["x"] = ev.Sample.X
		fields["y"] = ev.Sample.Y
	case eyetracker.EventImage:
		if ev.Image != nil {
			fields["width"] = ev.Image.Width
			fields["height"] = ev.Image.Height
		}
	case eyetracker.EventCalibrationResult:
		fields["message"] = ev.Message
	case eyetracker.EventError:
		fields["message"] = ev.Message
		if ev.Err != nil {
			fields["error"] = ev.Err.Error()
		}
	}

	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
	}
	return msg, nil
}

// DecodeEvent is the inverse of EncodeEvent. The returned event has no
// Source, image events carry an Image without pixels and error events carry
// the remote error text in Err.
func DecodeEvent(msg *structpb.Struct) (eyetracker.Event, error) {
	f := msg.GetFields()

	typ, ok := eyetracker.ParseEventType(f["type"].GetStringValue())
	if !ok {
		return eyetracker.Event{}, fmt.Errorf("unknown event type %q", f["type"].GetStringValue())
	}

	ev := eyetracker.Event{Type: typ}
	if id := f["tracker_id"].GetStringValue(); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return eyetracker.Event{}, fmt.Errorf("invalid tracker id: %w", err)
		}
		ev.TrackerID = parsed
	}

	switch typ {
	case eyetracker.EventConnected:
		ev.Connected = f["connected"].GetBoolValue()
	case eyetracker.EventCalpointStart, eyetracker.EventCalpointStop:
		ev.X = f["x"].GetNumberValue()
		ev.Y = f["y"].GetNumberValue()
	case eyetracker.EventSample:
		eye, err := parseEye(f["eye"].GetStringValue())
		if err != nil {
			return eyetracker.Event{}, err
		}
		ev.Sample = eyetracker.Sample{
			Eye:  eye,
			Time: f["time"].GetNumberValue(),
			X:    f["x"].GetNumberValue(),
			Y:    f["y"].GetNumberValue(),
		}
	case eyetracker.EventImage:
		ev.Image = &eyetracker.Image{
			Width:  int(f["width"].GetNumberValue()),
			Height: int(f["height"].GetNumberValue()),
		}
	case eyetracker.EventCalibrationResult:
		ev.Message = f["message"].GetStringValue()
	case eyetracker.EventError:
		ev.Message = f["message"].GetStringValue()
		if text := f["error"].GetStringValue(); text != "" {
			ev.Err = &RemoteError{Text: text}
		}
	}
	return ev, nil
}

// RemoteError carries the text of an error raised on the streaming host
type RemoteError struct {
	Text string
}

func (e *RemoteError) Error() string {
	return e.Text
}

func parseEye(name string) (eyetracker.Eye, error) {
	for _, eye := range []eyetracker.Eye{eyetracker.EyeLeft, eyetracker.EyeRight, eyetracker.EyeAvg} {
		if eye.String() == name {
			return eye, nil
		}
	}
	return 0, fmt.Errorf("unknown eye %q", name)
}
