package eyelink

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/geye/internal/eyetracker"
	"github.com/bnema/geye/internal/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)
	f.flush()

	connected := f.events.ofType(eyetracker.EventConnected)
	require.Len(t, connected, 1)
	assert.True(t, connected[0].Connected)
	assert.Equal(t, f.tracker.ID(), connected[0].TrackerID)
	assert.Same(t, f.tracker, connected[0].Source)
	assert.Zero(t, f.events.count(eyetracker.EventError))
	assert.Equal(t, "EYELINK DUMMY", f.tracker.Info())

	err := f.tracker.Connect()
	assert.ErrorIs(t, err, eyetracker.ErrIncorrectMode)
}

func TestConnectFailures(t *testing.T) {
	tests := []struct {
		name string
		link sdk.Link
		want error
	}{
		{"no hardware attached", sdk.NewSimulator(), eyetracker.ErrLinkInit},
		{"timeout", sdk.NewSimulator(sdk.WithOpenResult(sdk.ConnectTimeout)), eyetracker.ErrConnectTimeout},
		{"version mismatch", sdk.NewSimulator(sdk.WithOpenResult(sdk.WrongLinkVersion)), eyetracker.ErrWrongVersion},
		{"busy", sdk.NewSimulator(sdk.WithOpenResult(sdk.TrackerBusy)), eyetracker.ErrUnableToConnect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.link, WithSimulated(false))
			require.NoError(t, f.tracker.Connect())

			require.Eventually(t, func() bool {
				return f.events.count(eyetracker.EventError) == 1
			}, waitFor, tick)

			ev := f.events.ofType(eyetracker.EventError)[0]
			assert.ErrorIs(t, ev.Err, tt.want)
			assert.ErrorIs(t, ev.Err, eyetracker.ErrUnableToConnect)
			assert.NotEmpty(t, ev.Message)
			assert.False(t, f.tracker.Connected())
		})
	}
}

func TestConnectWithAddress(t *testing.T) {
	sim := sdk.NewSimulator(sdk.WithAttachedTracker())
	f := newFixture(t, sim, WithSimulated(false), WithIPAddress("100.1.1.1"))
	f.connect(t)

	assert.Equal(t, "100.1.1.1", sim.Address())
	assert.Contains(t, f.tracker.Info(), "simulated")
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	f.tracker.Disconnect()
	require.Eventually(t, func() bool { return !f.tracker.Connected() }, waitFor, tick)
	f.flush()

	disconnected := 0
	for _, ev := range f.events.ofType(eyetracker.EventConnected) {
		if !ev.Connected {
			disconnected++
		}
	}
	assert.Equal(t, 1, disconnected)

	t.Run("no-op when already disconnected", func(t *testing.T) {
		before := len(f.events.all())
		f.tracker.Disconnect()
		assert.Zero(t, f.tracker.commands.Len())
		time.Sleep(10 * time.Millisecond)
		f.flush()
		assert.Len(t, f.events.all(), before)
	})
}

func TestSetNumCalPoints(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		in, want int
	}{
		{-5, 3}, {0, 3}, {1, 3}, {3, 3},
		{4, 5}, {5, 5},
		{6, 9}, {9, 9},
		{10, 13}, {13, 13}, {50, 13},
	}
	for _, tt := range tests {
		f.tracker.SetNumCalPoints(tt.in)
		assert.Equal(t, tt.want, f.tracker.NumCalPoints(), "n=%d", tt.in)

		f.tracker.SetNumCalPoints(f.tracker.NumCalPoints())
		assert.Equal(t, tt.want, f.tracker.NumCalPoints(), "idempotent for n=%d", tt.in)
	}
}

func TestIncorrectMode(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("disconnected", func(t *testing.T) {
		ops := map[string]func() error{
			"start tracking":  f.tracker.StartTracking,
			"start recording": f.tracker.StartRecording,
			"start setup":     f.tracker.StartSetup,
			"calibrate":       f.tracker.Calibrate,
			"validate":        f.tracker.Validate,
		}
		for name, op := range ops {
			assert.ErrorIs(t, op(), eyetracker.ErrIncorrectMode, name)
		}
		assert.False(t, f.tracker.Tracking())
		assert.False(t, f.tracker.SendKeyPress(eyetracker.KeyReturn, 0))
		assert.Zero(t, f.tracker.commands.Len())
	})

	t.Run("connected", func(t *testing.T) {
		f.connect(t)
		assert.ErrorIs(t, f.tracker.SetSimulated(false), eyetracker.ErrIncorrectMode)
		assert.ErrorIs(t, f.tracker.SetIPAddress("100.1.1.1"), eyetracker.ErrIncorrectMode)
		assert.True(t, f.tracker.Simulated())
	})

	t.Run("calibration without display size", func(t *testing.T) {
		g := newFixture(t, nil, WithDisplaySize(0, 0))
		g.connect(t)
		assert.ErrorIs(t, g.tracker.Calibrate(), eyetracker.ErrIncorrectMode)
		assert.ErrorIs(t, g.tracker.Validate(), eyetracker.ErrIncorrectMode)
		assert.Error(t, g.tracker.SetDisplaySize(0, 10))

		require.NoError(t, g.tracker.SetDisplaySize(1024, 768))
		assert.NoError(t, g.tracker.Validate())
	})
}

func TestTracking(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	require.NoError(t, f.tracker.StartTracking())
	require.Eventually(t, f.tracker.Tracking, waitFor, tick)
	require.Eventually(t, func() bool {
		return f.events.count(eyetracker.EventSample) > 5
	}, waitFor, tick)

	f.tracker.StopTracking()
	require.Eventually(t, func() bool { return !f.tracker.Tracking() }, waitFor, tick)
	f.flush()

	assert.Zero(t, f.events.count(eyetracker.EventError))

	samples := f.events.ofType(eyetracker.EventSample)
	for i, ev := range samples {
		assert.Equal(t, eyetracker.EyeAvg, ev.Sample.Eye)
		assert.Equal(t, f.tracker.ID(), ev.TrackerID)
		if i > 0 {
			assert.Greater(t, ev.Sample.Time, samples[i-1].Sample.Time)
		}
	}
}

func TestDataFlags(t *testing.T) {
	spy := &spyLink{Simulator: sdk.NewSimulator()}
	f := newFixture(t, spy)
	f.connect(t)

	steps := []struct {
		name string
		op   func()
		want string
	}{
		{"start recording", func() { require.NoError(t, f.tracker.StartRecording()) }, "1100"},
		{"start tracking", func() { require.NoError(t, f.tracker.StartTracking()) }, "1111"},
		{"stop recording", f.tracker.StopRecording, "0011"},
		{"stop tracking", f.tracker.StopTracking, "stop"},
	}
	for _, step := range steps {
		step.op()
		require.Eventually(t, func() bool { return spy.lastCall() == step.want }, waitFor, tick, step.name)
	}

	assert.False(t, f.tracker.Tracking())
	assert.False(t, f.tracker.Recording())
}

func TestCalibrate(t *testing.T) {
	sim := sdk.NewSimulator(sdk.WithAutoAccept(2))
	f := newFixture(t, sim, WithNumCalPoints(5))
	f.connect(t)

	var userStarts atomic.Int32
	f.tracker.SetCalpointStartCallback(func(et eyetracker.Eyetracker, x, y float64) {
		assert.Same(t, f.tracker, et)
		userStarts.Add(1)
	})

	require.NoError(t, f.tracker.Calibrate())
	require.Eventually(t, func() bool {
		return f.events.count(eyetracker.EventCalibrationResult) == 1
	}, waitFor, tick)
	require.Eventually(t, func() bool { return !f.tracker.InSetup() }, waitFor, tick)
	f.flush()

	assert.Contains(t, sim.Commands(), "calibration_type = HV5")
	assert.Contains(t, sim.Commands(), "screen_pixel_coords = 0 0 799 599")
	assert.Equal(t, int32(5), userStarts.Load())

	// calibration-start, then start/stop per point, then calibration-stop
	var seq []eyetracker.EventType
	for _, ev := range f.events.all() {
		switch ev.Type {
		case eyetracker.EventCalibrationStart, eyetracker.EventCalibrationStop,
			eyetracker.EventCalpointStart, eyetracker.EventCalpointStop:
			seq = append(seq, ev.Type)
			assert.Same(t, f.tracker, ev.Source)
			assert.Equal(t, f.tracker.ID(), ev.TrackerID)
		}
	}
	want := []eyetracker.EventType{eyetracker.EventCalibrationStart}
	for range 5 {
		want = append(want, eyetracker.EventCalpointStart, eyetracker.EventCalpointStop)
	}
	want = append(want, eyetracker.EventCalibrationStop)
	assert.Equal(t, want, seq)

	for _, ev := range f.events.ofType(eyetracker.EventCalpointStop) {
		assert.Zero(t, ev.X)
		assert.Zero(t, ev.Y)
	}
	first := f.events.ofType(eyetracker.EventCalpointStart)[0]
	assert.Equal(t, 400.0, first.X)
	assert.Equal(t, 300.0, first.Y)

	result := f.events.ofType(eyetracker.EventCalibrationResult)[0]
	assert.Contains(t, result.Message, "calibration HV5")
	assert.Zero(t, f.events.count(eyetracker.EventError))
}

func TestStopSetupUnwinds(t *testing.T) {
	sim := sdk.NewSimulator(sdk.WithAutoAccept(0))
	f := newFixture(t, sim)
	f.connect(t)

	require.NoError(t, f.tracker.Calibrate())
	require.Eventually(t, func() bool {
		return f.events.count(eyetracker.EventCalpointStart) == 1
	}, waitFor, tick)

	start := time.Now()
	f.tracker.StopSetup()
	require.Eventually(t, func() bool { return !f.tracker.InSetup() }, time.Second, tick)
	assert.Less(t, time.Since(start), time.Second)
	f.flush()

	assert.Equal(t, 1, f.events.count(eyetracker.EventConnected))
	assert.Zero(t, f.events.count(eyetracker.EventSample))
	assert.Zero(t, f.events.count(eyetracker.EventError))
	assert.True(t, f.tracker.Connected())
	assert.False(t, f.tracker.Tracking())
}

func TestCommandsDuringSetupAreDeferred(t *testing.T) {
	sim := sdk.NewSimulator(sdk.WithAutoAccept(0))
	f := newFixture(t, sim)
	f.connect(t)

	require.NoError(t, f.tracker.StartSetup())
	require.NoError(t, f.tracker.Calibrate())
	require.Eventually(t, func() bool {
		return f.events.count(eyetracker.EventCalpointStart) == 1
	}, waitFor, tick)

	// leaves the calibration and then runs once setup has returned
	f.tracker.Disconnect()
	require.Eventually(t, func() bool { return !f.tracker.Connected() }, waitFor, tick)
	f.flush()

	assert.False(t, f.tracker.InSetup())
	connected := f.events.ofType(eyetracker.EventConnected)
	require.Len(t, connected, 2)
	assert.False(t, connected[1].Connected)
}

func TestSendKeyPress(t *testing.T) {
	sim := sdk.NewSimulator(sdk.WithAutoAccept(0))
	f := newFixture(t, sim, WithNumCalPoints(3))
	f.connect(t)

	assert.False(t, f.tracker.SendKeyPress(eyetracker.KeyReturn, 0), "not in setup")

	require.NoError(t, f.tracker.Calibrate())
	assert.False(t, f.tracker.SendKeyPress(eyetracker.Key(0xffe1), 0), "shift has no vendor code")

	for i := 1; i <= 3; i++ {
		require.Eventually(t, func() bool {
			return f.events.count(eyetracker.EventCalpointStart) == i
		}, waitFor, tick)
		key := eyetracker.KeyReturn
		if i == 2 {
			key = eyetracker.Key(' ')
		}
		require.True(t, f.tracker.SendKeyPress(key, 0))
	}

	require.Eventually(t, func() bool {
		return f.events.count(eyetracker.EventCalibrationResult) == 1
	}, waitFor, tick)
	require.Eventually(t, func() bool { return !f.tracker.InSetup() }, waitFor, tick)
}

func TestImageCallback(t *testing.T) {
	sim := sdk.NewSimulator(sdk.WithFrameSize(16, 8), sdk.WithFrameInterval(0))
	f := newFixture(t, sim)
	f.connect(t)

	type frame struct {
		width, height, size int
		ok                  bool
	}
	frames := make(chan frame, 64)
	f.tracker.SetImageCallback(func(et eyetracker.Eyetracker, img *eyetracker.Image) {
		ok := true
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				i := (y*img.Width + x) * 4
				// the simulator renders R = x^y and G = y
				if img.Pix[i] != byte(x^y) || img.Pix[i+1] != byte(y) || img.Pix[i+3] != 0xff {
					ok = false
				}
			}
		}
		select {
		case frames <- frame{img.Width, img.Height, len(img.Pix), ok}:
		default:
		}
	})

	require.NoError(t, f.tracker.StartSetup())
	require.True(t, f.tracker.SendKeyPress(eyetracker.KeyReturn, 0))

	select {
	case fr := <-frames:
		assert.Equal(t, 16, fr.width)
		assert.Equal(t, 8, fr.height)
		assert.Equal(t, 16*8*4, fr.size)
		assert.True(t, fr.ok, "channels swapped and alpha forced")
	case <-time.After(waitFor):
		t.Fatal("no image delivered")
	}

	f.tracker.StopSetup()
	require.Eventually(t, func() bool { return !f.tracker.InSetup() }, waitFor, tick)
	f.flush()

	images := f.events.ofType(eyetracker.EventImage)
	require.NotEmpty(t, images)
	assert.Equal(t, 16, images[0].Image.Width)
	assert.Len(t, images[0].Image.Pix, 16*8*4)
}

func TestClose(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	require.NoError(t, f.tracker.Close())
	assert.False(t, f.tracker.Connected())

	connected := f.events.ofType(eyetracker.EventConnected)
	require.Len(t, connected, 2)
	assert.False(t, connected[1].Connected)

	assert.NoError(t, f.tracker.Close())
	assert.ErrorIs(t, f.tracker.Connect(), ErrClosed)
	assert.ErrorIs(t, f.tracker.StartTracking(), ErrClosed)
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture(t, nil)
	other := &recorder{}
	unsubscribe := f.tracker.Subscribe(other.handle)

	f.connect(t)
	f.flush()
	require.Equal(t, 1, other.count(eyetracker.EventConnected))

	unsubscribe()
	f.tracker.Disconnect()
	require.Eventually(t, func() bool { return !f.tracker.Connected() }, waitFor, tick)
	f.flush()
	assert.Equal(t, 1, other.count(eyetracker.EventConnected))
	assert.Equal(t, 2, f.events.count(eyetracker.EventConnected))
}

func TestCustomInvoker(t *testing.T) {
	var calls atomic.Int32
	inv := InvokerFunc(func(fn func()) {
		calls.Add(1)
		fn()
	})
	f := newFixture(t, nil, WithInvoker(inv))
	assert.Nil(t, f.tracker.loop)

	require.NoError(t, f.tracker.Connect())
	require.Eventually(t, func() bool {
		return f.events.count(eyetracker.EventConnected) == 1
	}, waitFor, tick)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSetupPausesDataFlags(t *testing.T) {
	spy := &spyLink{Simulator: sdk.NewSimulator()}
	f := newFixture(t, spy)
	f.connect(t)

	require.NoError(t, f.tracker.StartTracking())
	require.Eventually(t, func() bool { return spy.lastCall() == "0011" }, waitFor, tick)

	require.NoError(t, f.tracker.StartSetup())
	require.Eventually(t, func() bool { return spy.lastCall() == "stop" }, waitFor, tick)
	assert.True(t, f.tracker.Tracking())

	f.tracker.StopSetup()
	require.Eventually(t, func() bool {
		return !f.tracker.InSetup() && spy.lastCall() == "0011"
	}, waitFor, tick)
	f.flush()

	before := f.events.count(eyetracker.EventSample)
	require.Eventually(t, func() bool {
		return f.events.count(eyetracker.EventSample) > before+5
	}, waitFor, tick)
	assert.True(t, f.tracker.Tracking())
	assert.Zero(t, f.events.count(eyetracker.EventError))
}

// awaitClose fails the test unless a Close result arrives on ch
func awaitClose(t *testing.T, ch <-chan error) {
	t.Helper()
	select {
	case err := <-ch:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Close did not return")
	}
}

// awaitWorker fails the test unless the worker goroutine exits
func awaitWorker(t *testing.T, tr *Tracker) {
	t.Helper()
	select {
	case <-tr.done:
	case <-time.After(waitFor):
		t.Fatal("worker did not exit")
	}
}

func TestCloseFromHandler(t *testing.T) {
	f := newFixture(t, nil)
	closed := make(chan error, 1)
	f.tracker.Subscribe(func(ev eyetracker.Event) {
		if ev.Type == eyetracker.EventConnected && ev.Connected {
			closed <- f.tracker.Close()
		}
	})

	require.NoError(t, f.tracker.Connect())
	awaitClose(t, closed)
	awaitWorker(t, f.tracker)

	require.Eventually(t, func() bool {
		return f.events.count(eyetracker.EventConnected) == 2
	}, waitFor, tick)
	assert.False(t, f.tracker.Connected())
	assert.ErrorIs(t, f.tracker.StartTracking(), ErrClosed)
}

func TestCloseFromUserCallback(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	closed := make(chan error, 1)
	f.tracker.SetCalibrationStartCallback(func(et eyetracker.Eyetracker) {
		closed <- et.Close()
	})

	require.NoError(t, f.tracker.Calibrate())
	awaitClose(t, closed)
	awaitWorker(t, f.tracker)

	assert.False(t, f.tracker.Connected())
	assert.False(t, f.tracker.InSetup())
}

// appLoop runs submitted functions on one goroutine. Invoke blocks until
// the loop takes the function, like a UI program's Send.
type appLoop struct {
	calls chan func()
	quit  chan struct{}
}

func newAppLoop(t *testing.T) *appLoop {
	a := &appLoop{calls: make(chan func()), quit: make(chan struct{})}
	go func() {
		for {
			select {
			case fn := <-a.calls:
				fn()
			case <-a.quit:
				return
			}
		}
	}()
	t.Cleanup(func() { close(a.quit) })
	return a
}

func (a *appLoop) Invoke(fn func()) {
	select {
	case a.calls <- fn:
	case <-a.quit:
	}
}

func TestCloseFromHandlerOnBlockingLoop(t *testing.T) {
	f := newFixture(t, nil, WithInvoker(newAppLoop(t)))
	closed := make(chan error, 1)
	f.tracker.Subscribe(func(ev eyetracker.Event) {
		if ev.Type == eyetracker.EventConnected && ev.Connected {
			closed <- f.tracker.Close()
		}
	})

	require.NoError(t, f.tracker.Connect())
	awaitClose(t, closed)
	awaitWorker(t, f.tracker)

	require.Eventually(t, func() bool {
		return f.events.count(eyetracker.EventConnected) == 2
	}, waitFor, tick)
}

func TestDrawImageHandsOutCopies(t *testing.T) {
	f := newFixture(t, nil)
	w := f.tracker.worker

	var got *eyetracker.Image
	w.image = func(_ eyetracker.Eyetracker, img *eyetracker.Image) {
		got = img
		for i := range img.Pix {
			img.Pix[i] = 0
		}
	}

	pix := make([]byte, 2*2*4)
	for i := range pix {
		pix[i] = 0x40
	}
	w.drawImage(2, 2, pix)
	f.flush()

	require.NotNil(t, got)
	assert.NotSame(t, &w.buf.pix[0], &got.Pix[0])
	assert.Equal(t, byte(0x40), w.buf.pix[0], "callback writes stay in its copy")

	images := f.events.ofType(eyetracker.EventImage)
	require.Len(t, images, 1)
	assert.Equal(t, byte(0x40), images[0].Image.Pix[0])
	assert.Equal(t, byte(0xff), images[0].Image.Pix[3])
}

func TestDrawImageRejectsBadFrames(t *testing.T) {
	f := newFixture(t, nil)
	w := f.tracker.worker

	called := false
	w.image = func(eyetracker.Eyetracker, *eyetracker.Image) { called = true }

	tests := []struct {
		name          string
		width, height int
		pix           []byte
	}{
		{"negative width", -1, 4, nil},
		{"negative height", 4, -2, make([]byte, 64)},
		{"both negative", -2, -2, make([]byte, 64)},
		{"zero size", 0, 0, nil},
		{"short buffer", 4, 4, make([]byte, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() { w.drawImage(tt.width, tt.height, tt.pix) })
		})
	}

	f.flush()
	assert.False(t, called)
	assert.Zero(t, f.events.count(eyetracker.EventImage))
}
