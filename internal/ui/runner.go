package ui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// invokeMsg carries a function to run on the program's event loop
type invokeMsg func()

// invokerModel runs invokeMsg functions before handing every other message
// to the wrapped model
type invokerModel struct {
	inner tea.Model
}

func (m invokerModel) Init() tea.Cmd {
	return m.inner.Init()
}

func (m invokerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if fn, ok := msg.(invokeMsg); ok {
		fn()
		return m, nil
	}
	var cmd tea.Cmd
	m.inner, cmd = m.inner.Update(msg)
	return m, cmd
}

func (m invokerModel) View() string {
	return m.inner.View()
}

// Runner owns a Bubble Tea program and doubles as the tracker's event-loop
// invoker: functions passed to Invoke run inside the program's Update, in
// submission order.
type Runner struct {
	mu      sync.Mutex
	program *tea.Program

	started   chan struct{}
	done      chan struct{}
	startOnce sync.Once
}

// NewRunner creates a runner. Invoke blocks until Run has started the
// program and returns immediately once it has exited.
func NewRunner() *Runner {
	return &Runner{
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Invoke queues fn on the program's event loop. Functions submitted after
// the program exited are dropped.
func (r *Runner) Invoke(fn func()) {
	select {
	case <-r.done:
		return
	default:
	}
	select {
	case <-r.done:
		return
	case <-r.started:
	}
	r.program.Send(invokeMsg(fn))
}

// Send delivers msg to the running program
func (r *Runner) Send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Quit asks the program to exit
func (r *Runner) Quit() {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Quit()
	}
}

// Done is closed once the program has exited
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Run starts model and blocks until it quits or ctx is cancelled. A runner
// runs one program.
func (r *Runner) Run(ctx context.Context, model tea.Model, opts ...tea.ProgramOption) error {
	defer close(r.done)

	p := tea.NewProgram(invokerModel{inner: model}, opts...)
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()
	r.startOnce.Do(func() { close(r.started) })

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		p.Quit()
		select {
		case err := <-errCh:
			return err
		case <-time.After(2 * time.Second):
			p.Kill()
			<-errCh
			return ctx.Err()
		}
	}
}
