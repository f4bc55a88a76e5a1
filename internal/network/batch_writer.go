package network

import (
	"io"
	"sync"
	"time"
)

// batchWriter coalesces small writes into larger ones. Data is written
// through when the batch would exceed maxSize, or maxDelay after the first
// write of a batch. The first write error is latched and returned from every
// later call.
type batchWriter struct {
	w        io.Writer
	maxDelay time.Duration
	maxSize  int

	mu    sync.Mutex
	buf   []byte
	err   error
	timer *time.Timer
}

func newBatchWriter(w io.Writer, maxDelay time.Duration, maxSize int) *batchWriter {
	bw := &batchWriter{
		w:        w,
		maxDelay: maxDelay,
		maxSize:  maxSize,
		buf:      make([]byte, 0, maxSize),
	}
	bw.timer = time.AfterFunc(maxDelay, func() { _ = bw.Flush() })
	bw.timer.Stop()
	return bw
}

func (bw *batchWriter) Write(p []byte) (int, error) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if bw.err != nil {
		return 0, bw.err
	}
	if len(bw.buf)+len(p) > bw.maxSize {
		if err := bw.flushLocked(); err != nil {
			return 0, err
		}
	}
	if len(p) >= bw.maxSize {
		if _, err := bw.w.Write(p); err != nil {
			bw.err = err
			return 0, err
		}
		return len(p), nil
	}

	if len(bw.buf) == 0 {
		bw.timer.Reset(bw.maxDelay)
	}
	bw.buf = append(bw.buf, p...)
	return len(p), nil
}

// Flush writes any pending data immediately
func (bw *batchWriter) Flush() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.flushLocked()
}

func (bw *batchWriter) flushLocked() error {
	if bw.err != nil {
		return bw.err
	}
	if len(bw.buf) == 0 {
		return nil
	}
	bw.timer.Stop()
	_, err := bw.w.Write(bw.buf)
	bw.buf = bw.buf[:0]
	if err != nil {
		bw.err = err
	}
	return err
}

// Close flushes pending data and stops the flush timer
func (bw *batchWriter) Close() error {
	err := bw.Flush()
	bw.timer.Stop()
	return err
}
