// Package network serves tracker events to remote viewers over SSH
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/geye/internal/config"
	"github.com/bnema/geye/internal/eyetracker"
	"github.com/bnema/geye/internal/ipc"
	"github.com/bnema/geye/internal/logger"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	gossh "golang.org/x/crypto/ssh"
	"google.golang.org/protobuf/types/known/structpb"
)

// Greeting is the first line a stream session writes before any frame
const Greeting = "geye event stream"

const (
	flushDelay = 5 * time.Millisecond
	batchSize  = 32 << 10
)

// StreamServer publishes tracker events to SSH sessions as length-prefixed
// protobuf frames
type StreamServer struct {
	addr        string
	hostKeyPath string
	buffer      int

	sshServer *ssh.Server
	listener  net.Listener

	mu       sync.Mutex
	sessions map[string]*streamSession // sessionID -> session

	dropped atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	OnClientConnected    func(addr, fingerprint string)
	OnClientDisconnected func(addr string)
	OnAuthRequest        func(addr, fingerprint string) bool // Returns approval
}

type streamSession struct {
	addr        string
	fingerprint string
	events      chan *structpb.Struct
	dropping    bool // guarded by StreamServer.mu
}

// NewStreamServer creates a server that will listen on addr. buffer bounds
// the number of frames queued per session.
func NewStreamServer(addr, hostKeyPath string, buffer int) *StreamServer {
	if buffer <= 0 {
		buffer = config.DefaultConfig.Stream.Buffer
	}
	return &StreamServer{
		addr:        addr,
		hostKeyPath: hostKeyPath,
		buffer:      buffer,
		sessions:    make(map[string]*streamSession),
		stop:        make(chan struct{}),
	}
}

// Start begins listening for SSH connections
func (s *StreamServer) Start(ctx context.Context) error {
	server, err := wish.NewServer(
		wish.WithAddress(s.addr),
		wish.WithHostKeyPath(s.hostKeyPath),
		wish.WithPublicKeyAuth(s.publicKeyAuth),
		wish.WithMiddleware(
			s.streamHandler(),
			s.loggingMiddleware(),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create SSH server: %w", err)
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.sshServer = server
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		logger.Infof("Event stream listening on %s", ln.Addr())
		if err := server.Serve(ln); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			logger.Errorf("Event stream server error: %v", err)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stop:
		}
	}()

	return nil
}

// Stop shuts down the server and ends every session
func (s *StreamServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)

		if s.sshServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.sshServer.Shutdown(ctx); err != nil {
				_ = s.sshServer.Close()
			}
		}

		s.wg.Wait()
	})
}

// Addr returns the address the server is listening on, or the configured
// address before Start
func (s *StreamServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Clients returns the number of attached sessions
func (s *StreamServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Dropped returns how many frames were discarded because a session's
// buffer was full
func (s *StreamServer) Dropped() int64 {
	return s.dropped.Load()
}

// Publish queues ev for every attached session. It never blocks: a session
// whose buffer is full loses the frame.
func (s *StreamServer) Publish(ev eyetracker.Event) {
	msg, err := EncodeEvent(ev)
	if err != nil {
		logger.Warn("Dropping unencodable event", "type", ev.Type, "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		select {
		case sess.events <- msg:
			sess.dropping = false
		default:
			s.dropped.Add(1)
			if !sess.dropping {
				sess.dropping = true
				logger.Warn("Stream channel full, dropping event", "addr", sess.addr, "type", ev.Type)
			}
		}
	}
}

func (s *StreamServer) publicKeyAuth(ctx ssh.Context, key ssh.PublicKey) bool {
	fingerprint := gossh.FingerprintSHA256(key)
	addr := ctx.RemoteAddr().String()

	logger.Debug("Stream authentication attempt", "addr", addr, "user", ctx.User(), "key", fingerprint)

	if config.IsStreamKeyWhitelisted(fingerprint) {
		return true
	}

	if !config.Get().Stream.WhitelistOnly {
		return true
	}

	if s.OnAuthRequest != nil {
		if s.OnAuthRequest(addr, fingerprint) {
			if err := config.AddStreamKey(fingerprint); err != nil {
				logger.Errorf("Failed to add key to whitelist: %v", err)
			}
			logger.Info("Stream key approved", "key", fingerprint, "addr", addr)
			return true
		}
		logger.Info("Stream key denied", "key", fingerprint, "addr", addr)
		return false
	}

	logger.Info("Stream key denied (not whitelisted)", "key", fingerprint, "addr", addr)
	return false
}

func (s *StreamServer) loggingMiddleware() wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			logger.Debugf("Stream session started: user=%s addr=%s", sess.User(), sess.RemoteAddr())
			h(sess)
			logger.Debugf("Stream session ended: addr=%s", sess.RemoteAddr())
		}
	}
}

func (s *StreamServer) streamHandler() wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			client := &streamSession{
				addr:   sess.RemoteAddr().String(),
				events: make(chan *structpb.Struct, s.buffer),
			}
			if sess.PublicKey() != nil {
				client.fingerprint = gossh.FingerprintSHA256(sess.PublicKey())
			}

			id := sess.Context().SessionID()
			s.mu.Lock()
			s.sessions[id] = client
			s.mu.Unlock()

			if s.OnClientConnected != nil {
				s.OnClientConnected(client.addr, client.fingerprint)
			}

			defer func() {
				s.mu.Lock()
				delete(s.sessions, id)
				s.mu.Unlock()

				if s.OnClientDisconnected != nil {
					s.OnClientDisconnected(client.addr)
				}
			}()

			if _, err := fmt.Fprintln(sess, Greeting); err != nil {
				return
			}
			s.pump(sess, client)
			h(sess)
		}
	}
}

// pump writes queued frames to sess until the session or the server ends
func (s *StreamServer) pump(sess ssh.Session, client *streamSession) {
	w := newBatchWriter(sess, flushDelay, batchSize)
	defer w.Close()

	for {
		select {
		case <-s.stop:
			return
		case <-sess.Context().Done():
			return
		case msg := <-client.events:
			if err := ipc.WriteFrame(w, msg); err != nil {
				logger.Debug("Stream write failed", "addr", client.addr, "err", err)
				return
			}
		}
	}
}
