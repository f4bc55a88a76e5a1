// Package eyelink bridges the vendor eyetracker SDK to applications. A
// Tracker owns one worker goroutine that is the only caller of the SDK;
// public methods validate and enqueue commands, and outcomes come back as
// events on the application's event loop.
package eyelink

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/geye/internal/config"
	"github.com/bnema/geye/internal/eyetracker"
	"github.com/bnema/geye/internal/logger"
	"github.com/bnema/geye/internal/sdk"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// DefaultPollInterval is how long an idle worker waits for a command
// before polling the link again
const DefaultPollInterval = time.Millisecond

// Tracker implements eyetracker.Eyetracker on top of an sdk.Link
type Tracker struct {
	id     uuid.UUID
	logger *log.Logger
	state  session

	commands *queue[command]
	setup    *queue[command]
	worker   *worker
	done     chan struct{}

	invoker Invoker
	loop    *Loop // owned loop, nil when the application provides an Invoker

	subsMu  sync.Mutex
	subs    []subscription
	nextSub int

	closeMu sync.Mutex
	closed  bool

	// goroutines that must not wait for the worker
	workerGID   atomic.Int64
	dispatchGID atomic.Int64
}

type subscription struct {
	id int
	fn eyetracker.EventHandler
}

var _ eyetracker.Eyetracker = (*Tracker)(nil)

type options struct {
	link    sdk.Link
	invoker Invoker
	logger  *log.Logger
	poll    time.Duration

	simulated     bool
	ipAddress     string
	numCalPoints  int
	width, height int
}

// Option configures a Tracker at construction
type Option func(*options)

// WithLink sets the vendor session. The default is an sdk.Simulator.
func WithLink(l sdk.Link) Option {
	return func(o *options) { o.link = l }
}

// WithInvoker delivers events through inv instead of a private Loop.
func WithInvoker(inv Invoker) Option {
	return func(o *options) { o.invoker = inv }
}

// WithLogger sets the logger used by the worker.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPollInterval sets the idle wait of the worker.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.poll = d }
}

// WithSimulated selects the vendor's dummy mode.
func WithSimulated(v bool) Option {
	return func(o *options) { o.simulated = v }
}

// WithIPAddress overrides the tracker host address.
func WithIPAddress(addr string) Option {
	return func(o *options) { o.ipAddress = addr }
}

// WithNumCalPoints sets the calibration layout, clamped to 3, 5, 9 or 13.
func WithNumCalPoints(n int) Option {
	return func(o *options) { o.numCalPoints = n }
}

// WithDisplaySize sets the display used to place calibration targets.
func WithDisplaySize(width, height int) Option {
	return func(o *options) { o.width, o.height = width, height }
}

// FromConfig turns the tracker section of the configuration into options
func FromConfig(c config.TrackerConfig) []Option {
	opts := []Option{
		WithSimulated(c.Simulated),
		WithIPAddress(c.IPAddress),
		WithDisplaySize(c.DisplayWidth, c.DisplayHeight),
	}
	if c.NumCalPoints > 0 {
		opts = append(opts, WithNumCalPoints(c.NumCalPoints))
	}
	if c.PollInterval > 0 {
		opts = append(opts, WithPollInterval(c.PollInterval))
	}
	return opts
}

// New creates a tracker and starts its worker
func New(opts ...Option) *Tracker {
	o := options{
		poll:         DefaultPollInterval,
		numCalPoints: 9,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.link == nil {
		o.link = sdk.NewSimulator()
	}
	if o.logger == nil {
		o.logger = logger.WithPrefix("eyelink")
	}

	t := &Tracker{
		id:       uuid.New(),
		logger:   o.logger,
		commands: newQueue[command](),
		setup:    newQueue[command](),
		done:     make(chan struct{}),
		invoker:  o.invoker,
	}
	if t.invoker == nil {
		t.loop = NewLoop()
		t.invoker = t.loop
	}

	t.state.simulated = o.simulated
	t.state.ipAddress = o.ipAddress
	t.state.numCalPoints = clampCalPoints(o.numCalPoints)
	t.state.displayWidth = o.width
	t.state.displayHeight = o.height

	t.worker = &worker{
		t:        t,
		link:     o.link,
		logger:   o.logger,
		commands: t.commands,
		setup:    t.setup,
		poll:     o.poll,
	}
	go t.worker.run()

	return t
}

// ID identifies this tracker in events and across processes
func (t *Tracker) ID() uuid.UUID {
	return t.id
}

// send routes cmd to the setup channel while a setup call is active or
// about to start, and to the command queue otherwise.
func (t *Tracker) send(cmd command) {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if t.state.inSetup {
		t.setup.Push(cmd)
	} else {
		t.commands.Push(cmd)
	}
	if cmd.entersSetup() {
		t.state.inSetup = true
	}
}

func (t *Tracker) isClosed() bool {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	return t.closed
}

func (t *Tracker) requireConnected(op string) error {
	if t.isClosed() {
		return ErrClosed
	}
	if !t.Connected() {
		return fmt.Errorf("%w: %s requires a connected tracker", eyetracker.ErrIncorrectMode, op)
	}
	return nil
}

// Connect asks the worker to open the session. The outcome is reported
// with EventConnected.
func (t *Tracker) Connect() error {
	if t.isClosed() {
		return ErrClosed
	}
	if t.Connected() {
		return fmt.Errorf("%w: already connected", eyetracker.ErrIncorrectMode)
	}
	t.send(command{typ: cmdConnect})
	return nil
}

// Disconnect closes the session. It does nothing when not connected.
func (t *Tracker) Disconnect() {
	if t.isClosed() || !t.Connected() {
		return
	}
	t.send(command{typ: cmdDisconnect})
}

// StartTracking turns on link samples. It fails with ErrIncorrectMode when
// not connected.
func (t *Tracker) StartTracking() error {
	if err := t.requireConnected("start tracking"); err != nil {
		return err
	}
	t.send(command{typ: cmdStartTracking})
	return nil
}

// StopTracking turns off link samples
func (t *Tracker) StopTracking() {
	if t.requireConnected("stop tracking") == nil {
		t.send(command{typ: cmdStopTracking})
	}
}

// StartRecording turns on recording to the tracker's data file. It fails
// with ErrIncorrectMode when not connected.
func (t *Tracker) StartRecording() error {
	if err := t.requireConnected("start recording"); err != nil {
		return err
	}
	t.send(command{typ: cmdStartRecording})
	return nil
}

// StopRecording turns off file recording
func (t *Tracker) StopRecording() {
	if t.requireConnected("stop recording") == nil {
		t.send(command{typ: cmdStopRecording})
	}
}

// StartSetup enters camera setup. Data flags are paused until setup ends.
func (t *Tracker) StartSetup() error {
	if err := t.requireConnected("setup"); err != nil {
		return err
	}
	t.send(command{typ: cmdStartSetup})
	return nil
}

// StopSetup leaves camera setup and restores the data flags
func (t *Tracker) StopSetup() {
	if t.requireConnected("stop setup") == nil {
		t.send(command{typ: cmdStopSetup})
	}
}

// Calibrate runs a calibration. It needs a connection and a display size.
func (t *Tracker) Calibrate() error {
	if err := t.requireCalibration("calibrate"); err != nil {
		return err
	}
	t.send(command{typ: cmdCalibrate})
	return nil
}

// Validate runs a validation of the current calibration. It needs a
// connection and a display size.
func (t *Tracker) Validate() error {
	if err := t.requireCalibration("validate"); err != nil {
		return err
	}
	t.send(command{typ: cmdValidate})
	return nil
}

func (t *Tracker) requireCalibration(op string) error {
	if err := t.requireConnected(op); err != nil {
		return err
	}
	if w, h := t.DisplaySize(); w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %s requires the display size", eyetracker.ErrIncorrectMode, op)
	}
	return nil
}

func (t *Tracker) NumCalPoints() int {
	t.state.mu.RLock()
	defer t.state.mu.RUnlock()
	return t.state.numCalPoints
}

// SetNumCalPoints sets the calibration layout; n snaps to 3, 5, 9 or 13.
func (t *Tracker) SetNumCalPoints(n int) {
	t.state.mu.Lock()
	t.state.numCalPoints = clampCalPoints(n)
	t.state.mu.Unlock()
}

// DisplaySize returns the display used for calibration, in pixels
func (t *Tracker) DisplaySize() (width, height int) {
	t.state.mu.RLock()
	defer t.state.mu.RUnlock()
	return t.state.displayWidth, t.state.displayHeight
}

func (t *Tracker) SetDisplaySize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid display size %dx%d", width, height)
	}
	t.state.mu.Lock()
	t.state.displayWidth, t.state.displayHeight = width, height
	t.state.mu.Unlock()
	return nil
}

func (t *Tracker) Simulated() bool {
	t.state.mu.RLock()
	defer t.state.mu.RUnlock()
	return t.state.simulated
}

// SetSimulated selects dummy mode for the next connection
func (t *Tracker) SetSimulated(v bool) error {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if t.state.connected {
		return fmt.Errorf("%w: simulated mode cannot change while connected", eyetracker.ErrIncorrectMode)
	}
	t.state.simulated = v
	return nil
}

func (t *Tracker) IPAddress() string {
	t.state.mu.RLock()
	defer t.state.mu.RUnlock()
	return t.state.ipAddress
}

// SetIPAddress overrides the host address for the next connection. An
// empty address restores the vendor's default.
func (t *Tracker) SetIPAddress(addr string) error {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if t.state.connected {
		return fmt.Errorf("%w: address cannot change while connected", eyetracker.ErrIncorrectMode)
	}
	t.state.ipAddress = addr
	return nil
}

// Info returns the tracker version string of the open session
func (t *Tracker) Info() string {
	t.state.mu.RLock()
	defer t.state.mu.RUnlock()
	return t.state.info
}

func (t *Tracker) Connected() bool {
	return t.state.isConnected()
}

func (t *Tracker) Tracking() bool {
	return t.state.isTracking()
}

func (t *Tracker) Recording() bool {
	t.state.mu.RLock()
	defer t.state.mu.RUnlock()
	return t.state.recording
}

// InSetup reports whether a setup, calibration or validation is active or
// queued
func (t *Tracker) InSetup() bool {
	t.state.mu.RLock()
	defer t.state.mu.RUnlock()
	return t.state.inSetup
}

// SendKeyPress forwards a host key into an active setup. Keys without a
// vendor equivalent are rejected.
func (t *Tracker) SendKeyPress(key eyetracker.Key, mods eyetracker.Modifier) bool {
	if t.isClosed() || !t.Connected() || !t.InSetup() {
		return false
	}
	code, ok := translateKey(key)
	if !ok {
		return false
	}
	t.send(command{typ: cmdInjectKey, key: code, mods: translateModifiers(mods)})
	return true
}

func (t *Tracker) SetCalibrationStartCallback(fn eyetracker.CalibrationFunc) {
	t.state.mu.Lock()
	t.state.callbacks.calibrationStart = fn
	t.state.mu.Unlock()
}

func (t *Tracker) SetCalibrationStopCallback(fn eyetracker.CalibrationFunc) {
	t.state.mu.Lock()
	t.state.callbacks.calibrationStop = fn
	t.state.mu.Unlock()
}

func (t *Tracker) SetCalpointStartCallback(fn eyetracker.CalpointStartFunc) {
	t.state.mu.Lock()
	t.state.callbacks.calpointStart = fn
	t.state.mu.Unlock()
}

func (t *Tracker) SetCalpointStopCallback(fn eyetracker.CalibrationFunc) {
	t.state.mu.Lock()
	t.state.callbacks.calpointStop = fn
	t.state.mu.Unlock()
}

// SetImageCallback hands fn to the worker, which owns the image buffer
func (t *Tracker) SetImageCallback(fn eyetracker.ImageFunc) {
	if t.isClosed() {
		return
	}
	t.send(command{typ: cmdSetImageCallback, image: fn})
}

// Subscribe registers fn for every event. Handlers run on the event loop
// in subscription order.
func (t *Tracker) Subscribe(fn eyetracker.EventHandler) func() {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.subs = append(t.subs, subscription{id: id, fn: fn})

	return func() {
		t.subsMu.Lock()
		defer t.subsMu.Unlock()
		for i, s := range t.subs {
			if s.id == id {
				t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
				return
			}
		}
	}
}

// emit stamps ev with this tracker's identity and hands it to the event
// loop. Called on the worker goroutine.
func (t *Tracker) emit(ev eyetracker.Event) {
	ev.Source = t
	ev.TrackerID = t.id
	t.invoker.Invoke(func() {
		prev := t.dispatchGID.Swap(goroutineID())
		defer t.dispatchGID.Store(prev)

		t.subsMu.Lock()
		subs := make([]subscription, len(t.subs))
		copy(subs, t.subs)
		t.subsMu.Unlock()

		for _, s := range subs {
			s.fn(ev)
		}
	})
}

// Close stops the worker, disconnecting first, and waits for it. Events
// emitted on the way out are delivered before Close returns when the
// tracker owns its loop.
//
// Called from an event handler or a user callback, Close only requests
// the stop and returns. The worker exits once the caller has returned.
func (t *Tracker) Close() error {
	t.closeMu.Lock()
	if t.closed {
		t.closeMu.Unlock()
		return nil
	}
	t.closed = true
	t.closeMu.Unlock()

	t.send(command{typ: cmdStop})

	if onGoroutine(t.workerGID.Load()) || onGoroutine(t.dispatchGID.Load()) {
		go t.join()
		return nil
	}
	t.join()
	return nil
}

func (t *Tracker) join() {
	<-t.done
	if t.loop != nil {
		t.loop.Close()
	}
}
