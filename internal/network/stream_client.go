package network

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bnema/geye/internal/eyetracker"
	"github.com/bnema/geye/internal/ipc"
	"golang.org/x/crypto/ssh"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrNotConnected is returned when reading from a client that has no session
var ErrNotConnected = errors.New("not connected")

const handshakeTimeout = 10 * time.Second

// StreamClient receives tracker events from a StreamServer
type StreamClient struct {
	client  *ssh.Client
	session *ssh.Session
	reader  *bufio.Reader

	mu        sync.Mutex
	connected bool

	privateKeyPath string
}

// NewStreamClient creates a client authenticating with the key at
// privateKeyPath, or with the user's default SSH key when empty
func NewStreamClient(privateKeyPath string) *StreamClient {
	if privateKeyPath == "" {
		homeDir, _ := os.UserHomeDir()
		for _, path := range []string{
			filepath.Join(homeDir, ".ssh", "id_ed25519"),
			filepath.Join(homeDir, ".ssh", "id_rsa"),
		} {
			if _, err := os.Stat(path); err == nil {
				privateKeyPath = path
				break
			}
		}
	}

	return &StreamClient{privateKeyPath: privateKeyPath}
}

// Connect opens a stream session on the server at serverAddr
func (c *StreamClient) Connect(ctx context.Context, serverAddr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected")
	}

	key, err := os.ReadFile(c.privateKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	cfg := &ssh.ClientConfig{
		User:            "geye",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // TODO: pin the host key in stream.known_hosts
		Timeout:         handshakeTimeout,
	}

	dialer := &net.Dialer{Timeout: handshakeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, serverAddr, cfg)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SSH handshake failed: %w", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to create SSH session: %w", err)
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("failed to start SSH session: %w", err)
	}

	reader := bufio.NewReader(stdout)
	line, err := reader.ReadString('\n')
	if err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("failed to read greeting: %w", err)
	}
	if strings.TrimSpace(line) != Greeting {
		session.Close()
		client.Close()
		return fmt.Errorf("unexpected greeting %q", strings.TrimSpace(line))
	}
	_ = conn.SetDeadline(time.Time{})

	c.client = client
	c.session = session
	c.reader = reader
	c.connected = true
	return nil
}

// Next blocks until the next event arrives
func (c *StreamClient) Next() (eyetracker.Event, error) {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()

	if reader == nil {
		return eyetracker.Event{}, ErrNotConnected
	}

	var msg structpb.Struct
	if err := ipc.ReadFrame(reader, &msg); err != nil {
		return eyetracker.Event{}, err
	}
	return DecodeEvent(&msg)
}

// Stream calls fn for every received event until ctx is cancelled or the
// session ends. A session closed by the server returns nil.
func (c *StreamClient) Stream(ctx context.Context, fn func(eyetracker.Event)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Disconnect()
		case <-done:
		}
	}()

	for {
		ev, err := c.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		fn(ev)
	}
}

// Disconnect closes the session
func (c *StreamClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false

	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	return nil
}

// IsConnected returns true while a session is open
func (c *StreamClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
