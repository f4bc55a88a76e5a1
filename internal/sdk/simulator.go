package sdk

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bnema/geye/internal/logger"
	"github.com/charmbracelet/log"
)

const (
	sampleIntervalMs    = 2.0 // 500 Hz
	maxSampleBacklogMs  = 1000.0
	defaultScreenWidth  = 1024
	defaultScreenHeight = 768
)

// Simulator is an in-process Link. In dummy mode it behaves like the vendor
// library without hardware; with WithAttachedTracker it also accepts
// ModeLink connections. The setup menu is driven entirely through the
// InputKey hook and SendKeybutton.
type Simulator struct {
	logger *log.Logger

	step          time.Duration
	frameInterval time.Duration
	autoAccept    int
	frameW        int
	frameH        int
	attached      bool
	openResult    Result
	versionText   string

	initialized bool
	open        bool
	mode        Mode
	address     string
	hooks       Hooks
	injected    []KeyInput

	calType    int
	screen     [4]float64
	calPending bool
	calResult  Result
	calMessage string
	exitCal    bool

	fileSamples, fileEvents bool
	linkSamples, linkEvents bool

	epoch      time.Time
	nextSample float64
	current    FloatSample
	frame      []byte
	frameNo    int
	lastFrame  time.Time

	mu       sync.Mutex
	commands []string
}

// SimulatorOption configures a Simulator
type SimulatorOption func(*Simulator)

// WithStepInterval sets how long the setup loop sleeps between idle polls.
func WithStepInterval(d time.Duration) SimulatorOption {
	return func(s *Simulator) {
		s.step = d
	}
}

// WithFrameInterval sets the minimum time between camera frames.
func WithFrameInterval(d time.Duration) SimulatorOption {
	return func(s *Simulator) {
		s.frameInterval = d
	}
}

// WithAutoAccept sets the number of idle polls after which a calibration
// target is accepted without a key press. Zero disables it.
func WithAutoAccept(polls int) SimulatorOption {
	return func(s *Simulator) {
		s.autoAccept = polls
	}
}

// WithFrameSize sets the camera frame dimensions.
func WithFrameSize(width, height int) SimulatorOption {
	return func(s *Simulator) {
		s.frameW = width
		s.frameH = height
	}
}

// WithAttachedTracker emulates tracker hardware so that ModeLink succeeds.
func WithAttachedTracker() SimulatorOption {
	return func(s *Simulator) {
		s.attached = true
	}
}

// WithOpenResult forces every Open to return r.
func WithOpenResult(r Result) SimulatorOption {
	return func(s *Simulator) {
		s.openResult = r
	}
}

// NewSimulator creates a simulator with a 9 point calibration and a
// 1024x768 display.
func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		logger:        logger.WithPrefix("sdk-sim"),
		step:          time.Millisecond,
		frameInterval: time.Second / 30,
		autoAccept:    50,
		frameW:        192,
		frameH:        160,
		calType:       9,
		calResult:     CalNoReply,
		screen:        [4]float64{0, 0, defaultScreenWidth - 1, defaultScreenHeight - 1},
		epoch:         time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects in the given mode
func (s *Simulator) Open(mode Mode) Result {
	if s.openResult != OK {
		return s.openResult
	}
	switch mode {
	case ModeInit:
		s.initialized = true
		return OK
	case ModeDummy:
		s.versionText = "EYELINK DUMMY"
	case ModeLink:
		if !s.attached {
			return LinkInitFailed
		}
		s.versionText = "EYELINK CL 4.56 (simulated)"
	default:
		return Failed
	}
	s.initialized = true
	s.open = true
	s.mode = mode
	s.calResult = CalNoReply
	s.calPending = false
	s.logger.Debug("Session opened", "mode", mode, "address", s.address)
	return OK
}

// SetAddress sets the tracker host address used by ModeLink
func (s *Simulator) SetAddress(addr string) Result {
	if !s.initialized {
		return Failed
	}
	if net.ParseIP(addr) == nil {
		return Failed
	}
	s.address = addr
	return OK
}

// Address returns the host address set with SetAddress
func (s *Simulator) Address() string {
	return s.address
}

// Close ends the session
func (s *Simulator) Close() {
	s.open = false
	s.StopRecording()
	s.injected = nil
}

// TrackerVersion returns the tracker generation and its version string.
// Dummy sessions report generation 0.
func (s *Simulator) TrackerVersion() (int, string) {
	if !s.open {
		return 0, ""
	}
	if s.mode == ModeDummy {
		return 0, s.versionText
	}
	return 3, s.versionText
}

// StartRecording sets the data flags
func (s *Simulator) StartRecording(fileSamples, fileEvents, linkSamples, linkEvents bool) Result {
	if !s.open {
		return Failed
	}
	if linkSamples && !s.linkSamples {
		s.nextSample = math.Ceil(s.now()/sampleIntervalMs) * sampleIntervalMs
	}
	s.fileSamples, s.fileEvents = fileSamples, fileEvents
	s.linkSamples, s.linkEvents = linkSamples, linkEvents
	return OK
}

// StopRecording clears all data flags
func (s *Simulator) StopRecording() {
	s.fileSamples, s.fileEvents = false, false
	s.linkSamples, s.linkEvents = false, false
}

// Recording reports the current data flags
func (s *Simulator) Recording() (fileSamples, fileEvents, linkSamples, linkEvents bool) {
	return s.fileSamples, s.fileEvents, s.linkSamples, s.linkEvents
}

// EyeAvailable reports binocular tracking while open
func (s *Simulator) EyeAvailable() int {
	if !s.open {
		return EyeNone
	}
	return EyeBinocular
}

// NextData advances the link data queue. Samples are produced up to the
// current wall clock time.
func (s *Simulator) NextData() DataType {
	if !s.open || !s.linkSamples {
		return DataNone
	}
	now := s.now()
	if now-s.nextSample > maxSampleBacklogMs {
		s.nextSample = math.Floor(now/sampleIntervalMs) * sampleIntervalMs
	}
	if s.nextSample > now {
		return DataNone
	}
	s.current = s.gaze(s.nextSample)
	s.nextSample += sampleIntervalMs
	return DataSample
}

// FloatData returns the record last produced by NextData
func (s *Simulator) FloatData() FloatSample {
	return s.current
}

func (s *Simulator) gaze(t float64) FloatSample {
	w := s.screen[2] - s.screen[0] + 1
	h := s.screen[3] - s.screen[1] + 1
	sec := t / 1000
	x := s.screen[0] + w/2 + 0.4*w*math.Sin(2*math.Pi*0.25*sec)
	y := s.screen[1] + h/2 + 0.4*h*math.Sin(2*math.Pi*0.33*sec)
	return FloatSample{
		Time: t,
		GX:   [2]float64{x - 4, x + 4},
		GY:   [2]float64{y, y},
	}
}

func (s *Simulator) now() float64 {
	return float64(time.Since(s.epoch).Microseconds()) / 1000
}

// Command parses "name = value" configuration commands. Unknown names are
// accepted and ignored.
func (s *Simulator) Command(format string, args ...any) Result {
	line := fmt.Sprintf(format, args...)
	s.mu.Lock()
	s.commands = append(s.commands, line)
	s.mu.Unlock()

	if !s.open {
		return Failed
	}

	name, value, ok := strings.Cut(line, "=")
	if !ok {
		return Failed
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)

	switch name {
	case "calibration_type":
		n, err := strconv.Atoi(strings.TrimPrefix(value, "HV"))
		if err != nil || !strings.HasPrefix(value, "HV") {
			return Failed
		}
		switch n {
		case 3, 5, 9, 13:
			s.calType = n
		default:
			return Failed
		}
	case "screen_pixel_coords":
		fields := strings.Fields(value)
		if len(fields) != 4 {
			return Failed
		}
		var coords [4]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Failed
			}
			coords[i] = v
		}
		if coords[2] <= coords[0] || coords[3] <= coords[1] {
			return Failed
		}
		s.screen = coords
	}
	return OK
}

// Commands returns every command line received so far
func (s *Simulator) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// SetupHooks installs the display and input hooks
func (s *Simulator) SetupHooks(h Hooks) {
	s.hooks = h
}

// SendKeybutton queues a keystroke for the setup menu. Releases are
// ignored.
func (s *Simulator) SendKeybutton(code, mods uint16, state KeyState) Result {
	if !s.open {
		return Failed
	}
	if state == KeyRelease {
		return OK
	}
	s.injected = append(s.injected, KeyInput{Key: code, Modifier: mods})
	return OK
}

// CalResult returns the pending calibration outcome, or CalNoReply
func (s *Simulator) CalResult() Result {
	if !s.calPending {
		return CalNoReply
	}
	return s.calResult
}

// CalMessage returns the text of the last calibration outcome
func (s *Simulator) CalMessage() string {
	return s.calMessage
}

// ExitCalibration leaves the calibration result screen and consumes the
// pending outcome
func (s *Simulator) ExitCalibration() {
	s.exitCal = true
	s.calPending = false
}

// DoTrackerSetup runs the setup menu until ESC is read.
//
// Menu keys: c calibrates, v validates, ENTER shows the camera image.
func (s *Simulator) DoTrackerSetup() Result {
	if !s.open {
		return Failed
	}
	// keys sent for this session do not leak into the next one
	defer func() { s.injected = nil }()

	for {
		key, ok := s.poll()
		if !ok {
			s.idle()
			continue
		}
		switch key.Key {
		case KeyEscape, KeyTerminate:
			return OK
		case KeyEnter:
			if s.runImage() {
				return OK
			}
		case 'c', 'C':
			s.runCalibration(false)
		case 'v', 'V':
			s.runCalibration(true)
		}
	}
}

// poll calls the input hook first so it sees every iteration, then falls
// back to keys sent with SendKeybutton.
func (s *Simulator) poll() (KeyInput, bool) {
	if s.hooks.InputKey != nil {
		if key, ok := s.hooks.InputKey(); ok {
			return key, true
		}
	}
	if len(s.injected) > 0 {
		key := s.injected[0]
		s.injected = s.injected[1:]
		return key, true
	}
	return KeyInput{}, false
}

func (s *Simulator) idle() {
	if s.step > 0 {
		time.Sleep(s.step)
	}
}

// runImage streams camera frames until ENTER or ESC. It reports whether
// setup itself should end.
func (s *Simulator) runImage() bool {
	if s.hooks.SetupImageDisplay != nil {
		s.hooks.SetupImageDisplay(s.frameW, s.frameH)
	}
	defer func() {
		if s.hooks.ExitImageDisplay != nil {
			s.hooks.ExitImageDisplay()
		}
	}()

	for {
		if key, ok := s.poll(); ok {
			switch key.Key {
			case KeyEnter:
				return false
			case KeyEscape, KeyTerminate:
				return key.Key == KeyTerminate
			}
		}
		if s.hooks.DrawImage != nil && time.Since(s.lastFrame) >= s.frameInterval {
			s.lastFrame = time.Now()
			s.hooks.DrawImage(s.frameW, s.frameH, s.nextFrame())
		}
		s.idle()
	}
}

// nextFrame renders a moving gradient in BGRA order with a zero alpha
// channel, as the hardware delivers it.
func (s *Simulator) nextFrame() []byte {
	size := s.frameW * s.frameH * 4
	if cap(s.frame) < size {
		s.frame = make([]byte, size)
	}
	s.frame = s.frame[:size]
	for y := 0; y < s.frameH; y++ {
		for x := 0; x < s.frameW; x++ {
			i := (y*s.frameW + x) * 4
			s.frame[i] = byte(x + s.frameNo) // B
			s.frame[i+1] = byte(y)           // G
			s.frame[i+2] = byte(x ^ y)       // R
			s.frame[i+3] = 0                 // A
		}
	}
	s.frameNo++
	return s.frame
}

type point struct{ x, y float64 }

// calibrationLayout returns target positions as fractions of the display.
func calibrationLayout(n int) []point {
	switch n {
	case 3:
		return []point{{0.5, 0.1}, {0.1, 0.9}, {0.9, 0.9}}
	case 5:
		return []point{{0.5, 0.5}, {0.5, 0.1}, {0.5, 0.9}, {0.1, 0.5}, {0.9, 0.5}}
	case 13:
		return append(calibrationLayout(9),
			point{0.3, 0.3}, point{0.7, 0.3}, point{0.3, 0.7}, point{0.7, 0.7})
	default:
		return []point{
			{0.5, 0.5}, {0.5, 0.1}, {0.5, 0.9},
			{0.1, 0.5}, {0.9, 0.5}, {0.1, 0.1},
			{0.9, 0.1}, {0.1, 0.9}, {0.9, 0.9},
		}
	}
}

// targets maps the active layout into screen pixels
func (s *Simulator) targets() []point {
	layout := calibrationLayout(s.calType)
	w := s.screen[2] - s.screen[0]
	h := s.screen[3] - s.screen[1]
	out := make([]point, len(layout))
	for i, p := range layout {
		out[i] = point{
			x: math.Round(s.screen[0] + p.x*w),
			y: math.Round(s.screen[1] + p.y*h),
		}
	}
	return out
}

func (s *Simulator) runCalibration(validate bool) {
	kind := "calibration"
	if validate {
		kind = "validation"
	}
	s.calPending = false
	s.exitCal = false

	if s.hooks.SetupCalDisplay != nil {
		s.hooks.SetupCalDisplay()
	}

	aborted := false
	points := s.targets()
	for _, p := range points {
		if s.hooks.DrawCalTarget != nil {
			s.hooks.DrawCalTarget(p.x, p.y)
		}
		aborted = !s.awaitAccept()
		if s.hooks.EraseCalTarget != nil {
			s.hooks.EraseCalTarget()
		}
		if aborted {
			break
		}
	}

	if s.hooks.ClearCalDisplay != nil {
		s.hooks.ClearCalDisplay()
	}

	if aborted {
		s.finishCalibration(CalAborted, fmt.Sprintf("%s aborted", kind))
		return
	}

	s.finishCalibration(OK, fmt.Sprintf("%s HV%d GOOD avg 0.%02d max 0.%02d",
		kind, s.calType, 20+s.calType, 50+s.calType))

	// Result screen: wait for the host to exit calibration or for a key
	for !s.exitCal {
		key, ok := s.poll()
		if ok && (key.Key == KeyEnter || key.Key == KeyEscape || key.Key == KeyTerminate) {
			s.calPending = false
			if key.Key == KeyTerminate {
				s.injected = append([]KeyInput{key}, s.injected...)
			}
			return
		}
		if !ok {
			s.idle()
		}
	}
}

func (s *Simulator) finishCalibration(r Result, msg string) {
	s.calResult = r
	s.calMessage = msg
	s.calPending = true
	s.logger.Debug("Calibration finished", "result", r, "message", msg)
}

// awaitAccept waits for a target to be accepted. It returns false when
// the calibration is aborted.
func (s *Simulator) awaitAccept() bool {
	polls := 0
	for {
		key, ok := s.poll()
		if ok {
			switch key.Key {
			case KeyEnter, KeySpace:
				return true
			case KeyEscape:
				return false
			case KeyTerminate:
				s.injected = append([]KeyInput{key}, s.injected...)
				return false
			}
			continue
		}
		polls++
		if s.autoAccept > 0 && polls >= s.autoAccept {
			return true
		}
		s.idle()
	}
}
