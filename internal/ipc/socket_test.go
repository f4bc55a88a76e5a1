package ipc

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// MockHandler implements MessageHandler for testing
type MockHandler struct {
	mu       sync.Mutex
	controls []Control
	status   Status
	err      error
	accepted bool
}

func (m *MockHandler) HandleStatusQuery() (*Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	st := m.status
	return &st, nil
}

func (m *MockHandler) HandleControl(c *Control) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controls = append(m.controls, *c)
	if m.err != nil {
		return false, m.err
	}
	return m.accepted, nil
}

func startServer(t *testing.T, handler MessageHandler) *SocketServer {
	t.Helper()
	server, err := NewSocketServer(filepath.Join(t.TempDir(), "test.sock"), handler)
	if err != nil {
		t.Fatalf("NewSocketServer() error = %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(server.Stop)
	return server
}

func TestNewSocketServer(t *testing.T) {
	handler := &MockHandler{}
	server, err := NewSocketServer("/tmp/geye-test.sock", handler)
	if err != nil {
		t.Fatalf("NewSocketServer() error = %v", err)
	}
	if server.handler != handler {
		t.Error("Handler not set correctly")
	}
	if server.SocketPath() != "/tmp/geye-test.sock" {
		t.Errorf("Unexpected socket path %s", server.SocketPath())
	}

	if _, err := NewSocketServer("", handler); err == nil {
		t.Error("Expected error for empty socket path")
	}
}

func TestSocketServerStartStop(t *testing.T) {
	server, err := NewSocketServer(filepath.Join(t.TempDir(), "test.sock"), &MockHandler{})
	if err != nil {
		t.Fatalf("NewSocketServer() error = %v", err)
	}

	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := os.Stat(server.socketPath); os.IsNotExist(err) {
		t.Error("Socket file was not created")
	}

	// Starting again should not error
	if err := server.Start(); err != nil {
		t.Errorf("Start() on running server error = %v", err)
	}

	server.Stop()

	if _, err := os.Stat(server.socketPath); !os.IsNotExist(err) {
		t.Error("Socket file was not cleaned up")
	}

	// Stopping again should not panic
	server.Stop()
}

func TestSocketServerCleanupExistingSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sock")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create dummy socket file: %v", err)
	}
	file.Close()

	server, err := NewSocketServer(path, &MockHandler{})
	if err != nil {
		t.Fatal(err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	server.Stop()
}

func TestClientStatus(t *testing.T) {
	handler := &MockHandler{status: Status{Connected: true, NumCalPoints: 5, Info: "EYELINK DUMMY"}}
	server := startServer(t, handler)

	client := NewClient(server.SocketPath())
	st, err := client.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !st.Connected || st.NumCalPoints != 5 || st.Info != "EYELINK DUMMY" {
		t.Errorf("Unexpected status %+v", st)
	}
	if !client.IsRunning() {
		t.Error("Expected IsRunning to be true")
	}
}

func TestClientSend(t *testing.T) {
	handler := &MockHandler{accepted: true}
	server := startServer(t, handler)
	client := NewClient(server.SocketPath())

	accepted, err := client.Send(Control{Type: RequestSetDisplay, Width: 1024, Height: 768})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !accepted {
		t.Error("Expected request to be accepted")
	}

	handler.mu.Lock()
	got := handler.controls
	handler.mu.Unlock()
	if len(got) != 1 || got[0].Width != 1024 || got[0].Height != 768 {
		t.Errorf("Handler received %+v", got)
	}
}

func TestClientServerError(t *testing.T) {
	handler := &MockHandler{err: errors.New("incorrect mode")}
	server := startServer(t, handler)
	client := NewClient(server.SocketPath())

	if _, err := client.Send(Control{Type: RequestStartTracking}); err == nil || err.Error() != "server error: incorrect mode" {
		t.Errorf("Expected server error, got %v", err)
	}
	if _, err := client.Status(); err == nil {
		t.Error("Expected status error")
	}
}

func TestClientNotRunning(t *testing.T) {
	client := NewClientWithTimeout(filepath.Join(t.TempDir(), "missing.sock"), 100*time.Millisecond)
	_, err := client.Status()
	if !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning, got %v", err)
	}
	if client.IsRunning() {
		t.Error("Expected IsRunning to be false")
	}
}

func TestSocketServerStopWithIdleClient(t *testing.T) {
	server := startServer(t, &MockHandler{})

	conn, err := netDial(server.SocketPath())
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		server.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Error("Stop() took too long")
	}
}

func netDial(path string) (net.Conn, error) {
	return net.DialTimeout("unix", path, time.Second)
}
