package eyetracker

import (
	"fmt"
	"image"

	"github.com/google/uuid"
)

// EventType identifies the kind of an Event
type EventType int

const (
	EventConnected EventType = iota
	EventCalibrationStart
	EventCalibrationStop
	EventCalpointStart
	EventCalpointStop
	EventCalibrationResult
	EventSample
	EventImage
	EventError
)

var eventTypeNames = map[EventType]string{
	EventConnected:         "connected",
	EventCalibrationStart:  "calibration-start",
	EventCalibrationStop:   "calibration-stop",
	EventCalpointStart:     "calpoint-start",
	EventCalpointStop:      "calpoint-stop",
	EventCalibrationResult: "calibration-result",
	EventSample:            "sample",
	EventImage:             "image",
	EventError:             "error",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// ParseEventType is the inverse of EventType.String
func ParseEventType(name string) (EventType, bool) {
	for t, n := range eventTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// Eye tells which eye, or which combination of eyes, a sample describes
type Eye int

const (
	EyeLeft Eye = iota
	EyeRight
	EyeAvg
)

func (e Eye) String() string {
	switch e {
	case EyeLeft:
		return "left"
	case EyeRight:
		return "right"
	case EyeAvg:
		return "avg"
	default:
		return fmt.Sprintf("eye(%d)", int(e))
	}
}

// Sample is a single gaze position. Time is in milliseconds on the
// device clock.
type Sample struct {
	Eye  Eye
	Time float64
	X    float64
	Y    float64
}

// Image is a camera frame in RGBA byte order, four bytes per pixel.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// Size returns the number of bytes the frame occupies.
func (img *Image) Size() int {
	return img.Width * img.Height * 4
}

// Clone returns a deep copy that does not alias img.
func (img *Image) Clone() *Image {
	pix := make([]byte, img.Size())
	copy(pix, img.Pix)
	return &Image{Width: img.Width, Height: img.Height, Pix: pix}
}

// RGBA wraps the frame as an image.RGBA sharing the pixel buffer.
func (img *Image) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    img.Pix[:img.Size()],
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
}

// Event is a notification from an eyetracker. Only the fields relevant to
// Type are set.
type Event struct {
	Type EventType
	// Source is the tracker the event belongs to.
	Source Eyetracker
	// TrackerID identifies Source across process boundaries.
	TrackerID uuid.UUID

	Connected bool    // EventConnected
	X, Y      float64 // EventCalpointStart; zero on EventCalpointStop
	Sample    Sample  // EventSample
	Image     *Image  // EventImage, owned by the receiver
	Message   string  // EventCalibrationResult, EventError
	Err       error   // EventError
}
