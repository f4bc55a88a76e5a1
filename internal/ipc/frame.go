package ipc

import (
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"
)

// MaxFrameSize bounds a single frame on the wire
const MaxFrameSize = 4 << 20

// WriteFrame writes m as a 4-byte big-endian length followed by its
// protobuf encoding
func WriteFrame(w io.Writer, m proto.Message) error {
	data, err := proto.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("message too large: %d bytes", len(data))
	}

	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data))) //nolint:gosec // bounded by MaxFrameSize
	copy(buf[4:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// ReadFrame reads one frame written by WriteFrame into m
func ReadFrame(r io.Reader, m proto.Message) error {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return fmt.Errorf("failed to read message length: %w", err)
	}
	if length > MaxFrameSize {
		return fmt.Errorf("message too large: %d bytes", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("failed to read message data: %w", err)
	}

	if err := proto.Unmarshal(data, m); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return nil
}
