package eyelink

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns the id of the calling goroutine, read from the first
// line of its stack trace ("goroutine 42 [running]:"). It returns 0 if the
// line cannot be parsed.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	line := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(line, ' '); i > 0 {
		line = line[:i]
	}
	id, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// onGoroutine reports whether the caller runs on the goroutine with the
// given id
func onGoroutine(id int64) bool {
	return id != 0 && goroutineID() == id
}
