// Package samplelog persists tracker events to a SQLite database
package samplelog

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/geye/internal/eyetracker"
	"github.com/bnema/geye/internal/logger"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// schema.sql defines one table per persisted event kind. Every row carries
// the id of the tracker that produced it.
//
//go:embed schema.sql
var schemaSQL string

// DefaultBatchSize is the number of samples written per transaction when
// none is given
const DefaultBatchSize = 250

// ErrClosed is returned by writes after Close
var ErrClosed = errors.New("sample log closed")

// Log buffers gaze samples and writes them in batches. Calibration results,
// errors and connection changes are written as they arrive.
type Log struct {
	db        *sql.DB
	batchSize int
	logger    *log.Logger

	mu      sync.Mutex
	pending []sampleRow
	closed  bool
}

type sampleRow struct {
	trackerID uuid.UUID
	sample    eyetracker.Sample
}

// CalibrationRecord is a stored calibration or validation outcome
type CalibrationRecord struct {
	TrackerID uuid.UUID
	Message   string
}

// Open creates or opens the database at path
func Open(path string, batchSize int) (*Log, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise sample log schema: %w", err)
	}

	l := &Log{
		db:        db,
		batchSize: batchSize,
		logger:    logger.WithPrefix("samplelog"),
		pending:   make([]sampleRow, 0, batchSize),
	}
	l.logger.Info("Sample log opened", "path", path, "batch", batchSize)
	return l, nil
}

// Handle records ev. It matches eyetracker.EventHandler so a Log can
// subscribe to a tracker directly. Failures are logged, not returned.
func (l *Log) Handle(ev eyetracker.Event) {
	var err error
	switch ev.Type {
	case eyetracker.EventSample:
		err = l.RecordSample(ev.TrackerID, ev.Sample)
	case eyetracker.EventCalibrationResult:
		err = l.RecordCalibration(ev.TrackerID, ev.Message)
	case eyetracker.EventError:
		err = l.RecordError(ev.TrackerID, ev.Message, ev.Err)
	case eyetracker.EventConnected:
		err = l.RecordConnection(ev.TrackerID, ev.Connected)
	}
	if err != nil && !errors.Is(err, ErrClosed) {
		l.logger.Warn("Failed to record event", "type", ev.Type, "err", err)
	}
}

// RecordSample queues s and writes the batch once it is full
func (l *Log) RecordSample(trackerID uuid.UUID, s eyetracker.Sample) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.pending = append(l.pending, sampleRow{trackerID: trackerID, sample: s})
	if len(l.pending) < l.batchSize {
		return nil
	}
	return l.flushLocked()
}

// RecordCalibration stores a calibration or validation result message
func (l *Log) RecordCalibration(trackerID uuid.UUID, message string) error {
	return l.exec("INSERT INTO calibration_results (tracker_id, message) VALUES (?, ?)",
		trackerID.String(), message)
}

// RecordError stores an error reported by the tracker
func (l *Log) RecordError(trackerID uuid.UUID, message string, cause error) error {
	var text sql.NullString
	if cause != nil {
		text = sql.NullString{String: cause.Error(), Valid: true}
	}
	return l.exec("INSERT INTO errors (tracker_id, message, error) VALUES (?, ?, ?)",
		trackerID.String(), message, text)
}

// RecordConnection stores a change of connection state
func (l *Log) RecordConnection(trackerID uuid.UUID, connected bool) error {
	return l.exec("INSERT INTO connections (tracker_id, connected) VALUES (?, ?)",
		trackerID.String(), connected)
}

func (l *Log) exec(query string, args ...interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if _, err := l.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Flush writes any queued samples
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	return l.flushLocked()
}

// flushLocked writes the queued samples in one transaction. The queue is
// emptied whether or not the write succeeds, so a failing database cannot
// grow it without bound.
func (l *Log) flushLocked() error {
	if len(l.pending) == 0 {
		return nil
	}

	count := len(l.pending)
	err := l.writeBatch()
	l.pending = l.pending[:0]
	if err != nil {
		l.logger.Warn("Dropped sample batch", "count", count, "err", err)
		return err
	}
	l.logger.Debug("Wrote sample batch", "count", count)
	return nil
}

func (l *Log) writeBatch() error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin sample batch: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO samples (tracker_id, eye, device_time, x, y) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range l.pending {
		s := row.sample
		if _, err := stmt.Exec(row.trackerID.String(), s.Eye.String(), s.Time, s.X, s.Y); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sample batch: %w", err)
	}
	return nil
}

// Close writes queued samples and closes the database. Further writes
// return ErrClosed.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	flushErr := l.flushLocked()
	l.closed = true
	if err := l.db.Close(); err != nil {
		return err
	}
	return flushErr
}

// Samples returns the stored samples of a tracker in device-time order
func (l *Log) Samples(trackerID uuid.UUID) ([]eyetracker.Sample, error) {
	rows, err := l.db.Query(
		"SELECT eye, device_time, x, y FROM samples WHERE tracker_id = ? ORDER BY device_time, id",
		trackerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []eyetracker.Sample
	for rows.Next() {
		var (
			eye string
			s   eyetracker.Sample
		)
		if err := rows.Scan(&eye, &s.Time, &s.X, &s.Y); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		s.Eye = parseEye(eye)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// CalibrationResults returns the stored results of a tracker, oldest first
func (l *Log) CalibrationResults(trackerID uuid.UUID) ([]CalibrationRecord, error) {
	rows, err := l.db.Query(
		"SELECT message FROM calibration_results WHERE tracker_id = ? ORDER BY id",
		trackerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query calibration results: %w", err)
	}
	defer rows.Close()

	var records []CalibrationRecord
	for rows.Next() {
		rec := CalibrationRecord{TrackerID: trackerID}
		if err := rows.Scan(&rec.Message); err != nil {
			return nil, fmt.Errorf("failed to scan calibration result: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of rows in table for trackerID. table must be
// one of the schema's tables.
func (l *Log) Count(table string, trackerID uuid.UUID) (int, error) {
	switch table {
	case "samples", "calibration_results", "errors", "connections":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}

	var n int
	err := l.db.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE tracker_id = ?", trackerID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func parseEye(name string) eyetracker.Eye {
	switch name {
	case eyetracker.EyeLeft.String():
		return eyetracker.EyeLeft
	case eyetracker.EyeRight.String():
		return eyetracker.EyeRight
	default:
		return eyetracker.EyeAvg
	}
}
