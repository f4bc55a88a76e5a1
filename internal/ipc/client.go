package ipc

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/bnema/geye/internal/logger"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrNotRunning is returned when no daemon listens on the socket
var ErrNotRunning = errors.New("geye daemon is not running")

// Client handles IPC communication with a running geye daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// NewClientWithTimeout creates a new IPC client with custom timeout
func NewClientWithTimeout(socketPath string, timeout time.Duration) *Client {
	c := NewClient(socketPath)
	c.timeout = timeout
	return c
}

// Status queries the daemon's tracker state
func (c *Client) Status() (*Status, error) {
	msg, err := NewStatusMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to create status message: %w", err)
	}

	response, err := c.sendMessage(msg)
	if err != nil {
		return nil, err
	}

	switch MessageType(response) {
	case ResponseStatus:
		return GetStatusResponse(response)
	case ResponseError:
		errText, _ := GetErrorResponse(response)
		return nil, fmt.Errorf("server error: %s", errText)
	default:
		return nil, fmt.Errorf("unexpected response type: %q", MessageType(response))
	}
}

// Send issues a control request. It reports whether the daemon applied it.
func (c *Client) Send(ctrl Control) (bool, error) {
	msg, err := NewControlMessage(ctrl)
	if err != nil {
		return false, fmt.Errorf("failed to create %s message: %w", ctrl.Type, err)
	}

	response, err := c.sendMessage(msg)
	if err != nil {
		return false, err
	}

	switch MessageType(response) {
	case ResponseAck:
		return GetAccepted(response)
	case ResponseError:
		errText, _ := GetErrorResponse(response)
		return false, fmt.Errorf("server error: %s", errText)
	default:
		return false, fmt.Errorf("unexpected response type: %q", MessageType(response))
	}
}

// IsRunning checks if a daemon answers on the socket
func (c *Client) IsRunning() bool {
	_, err := c.Status()
	return err == nil
}

// sendMessage sends a message and returns the response
func (c *Client) sendMessage(msg *structpb.Struct) (*structpb.Struct, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if isConnectionRefused(err) {
			return nil, ErrNotRunning
		}
		return nil, fmt.Errorf("failed to connect to geye daemon: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Errorf("Failed to close IPC connection: %v", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		logger.Warnf("Failed to set connection deadline: %v", err)
	}

	if err := WriteFrame(conn, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	var response structpb.Struct
	if err := ReadFrame(conn, &response); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &response, nil
}

// isConnectionRefused checks if the error is a connection refused error
func isConnectionRefused(err error) bool {
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return netErr.Op == "dial"
	}
	return false
}
