package eyelink

import (
	"sync"
	"testing"
	"time"

	"github.com/bnema/geye/internal/eyetracker"
	"github.com/bnema/geye/internal/sdk"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

// recorder collects events delivered on the tracker's loop
type recorder struct {
	mu     sync.Mutex
	events []eyetracker.Event
}

func (r *recorder) handle(ev eyetracker.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []eyetracker.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]eyetracker.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) ofType(typ eyetracker.EventType) []eyetracker.Event {
	var out []eyetracker.Event
	for _, ev := range r.all() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) count(typ eyetracker.EventType) int {
	return len(r.ofType(typ))
}

// spyLink records the data flag calls made on the embedded simulator
type spyLink struct {
	*sdk.Simulator

	mu    sync.Mutex
	calls []string
}

func (s *spyLink) StartRecording(fileSamples, fileEvents, linkSamples, linkEvents bool) sdk.Result {
	s.mu.Lock()
	s.calls = append(s.calls, flagString(fileSamples, fileEvents, linkSamples, linkEvents))
	s.mu.Unlock()
	return s.Simulator.StartRecording(fileSamples, fileEvents, linkSamples, linkEvents)
}

func (s *spyLink) StopRecording() {
	s.mu.Lock()
	s.calls = append(s.calls, "stop")
	s.mu.Unlock()
	s.Simulator.StopRecording()
}

func (s *spyLink) lastCall() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return ""
	}
	return s.calls[len(s.calls)-1]
}

func flagString(flags ...bool) string {
	out := make([]byte, len(flags))
	for i, f := range flags {
		out[i] = '0'
		if f {
			out[i] = '1'
		}
	}
	return string(out)
}

type fixture struct {
	tracker *Tracker
	events  *recorder
}

func newFixture(t *testing.T, link sdk.Link, opts ...Option) *fixture {
	t.Helper()
	if link == nil {
		link = sdk.NewSimulator(sdk.WithAutoAccept(2))
	}
	opts = append([]Option{
		WithLink(link),
		WithSimulated(true),
		WithDisplaySize(800, 600),
	}, opts...)

	f := &fixture{tracker: New(opts...), events: &recorder{}}
	f.tracker.Subscribe(f.events.handle)
	t.Cleanup(func() { _ = f.tracker.Close() })
	return f
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, f.tracker.Connect())
	require.Eventually(t, f.tracker.Connected, waitFor, tick)
	require.Eventually(t, func() bool {
		return f.events.count(eyetracker.EventConnected) >= 1
	}, waitFor, tick)
}

// flush waits for every event emitted so far to reach the recorder
func (f *fixture) flush() {
	f.tracker.loop.Flush()
}
