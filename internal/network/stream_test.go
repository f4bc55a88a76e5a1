package network

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/geye/internal/config"
	"github.com/bnema/geye/internal/eyetracker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func connectClient(t *testing.T, server *StreamServer, keyPath string) *StreamClient {
	t.Helper()

	client := NewStreamClient(keyPath)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx, server.Addr()))
	t.Cleanup(func() { _ = client.Disconnect() })
	return client
}

func TestStreamDeliversEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping SSH loopback test in short mode")
	}
	useStreamConfig(t, config.StreamConfig{})

	server := startServer(t, 16)
	keyPath, _ := generateClientKey(t)
	client := connectClient(t, server, keyPath)

	assert.True(t, client.IsConnected())
	assert.Equal(t, 1, server.Clients())

	id := uuid.New()
	sent := []eyetracker.Event{
		{Type: eyetracker.EventConnected, TrackerID: id, Connected: true},
		{Type: eyetracker.EventSample, TrackerID: id, Sample: eyetracker.Sample{Eye: eyetracker.EyeLeft, Time: 2, X: 1, Y: 3}},
		{Type: eyetracker.EventCalpointStart, TrackerID: id, X: 80, Y: 60},
	}
	for _, ev := range sent {
		server.Publish(ev)
	}

	for _, want := range sent {
		got, err := client.Next()
		require.NoError(t, err)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, id, got.TrackerID)
		assert.Equal(t, want.Sample, got.Sample)
		assert.Equal(t, want.X, got.X)
		assert.Equal(t, want.Connected, got.Connected)
	}

	require.NoError(t, client.Disconnect())
	assert.False(t, client.IsConnected())
	require.Eventually(t, func() bool { return server.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamEndsWhenServerStops(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping SSH loopback test in short mode")
	}
	useStreamConfig(t, config.StreamConfig{})

	server := startServer(t, 16)
	keyPath, _ := generateClientKey(t)
	client := connectClient(t, server, keyPath)

	var received atomic.Int32
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Stream(context.Background(), func(eyetracker.Event) { received.Add(1) })
	}()

	server.Publish(eyetracker.Event{Type: eyetracker.EventCalibrationStart})
	require.Eventually(t, func() bool { return received.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	server.Stop()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after server stop")
	}
}

func TestStreamWhitelist(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping SSH loopback test in short mode")
	}

	t.Run("whitelisted key is accepted", func(t *testing.T) {
		keyPath, fingerprint := generateClientKey(t)
		useStreamConfig(t, config.StreamConfig{WhitelistOnly: true, Whitelist: []string{fingerprint}})

		server := startServer(t, 4)
		connectClient(t, server, keyPath)
	})

	t.Run("unknown key is rejected without an approver", func(t *testing.T) {
		keyPath, _ := generateClientKey(t)
		useStreamConfig(t, config.StreamConfig{WhitelistOnly: true})

		server := startServer(t, 4)
		client := NewStreamClient(keyPath)
		err := client.Connect(context.Background(), server.Addr())
		assert.Error(t, err)
		assert.False(t, client.IsConnected())
	})

	t.Run("approved key is added to the whitelist", func(t *testing.T) {
		keyPath, fingerprint := generateClientKey(t)
		useStreamConfig(t, config.StreamConfig{WhitelistOnly: true})

		server := startServer(t, 4)
		var asked atomic.Int32
		server.OnAuthRequest = func(addr, fp string) bool {
			asked.Add(1)
			return fp == fingerprint
		}

		connectClient(t, server, keyPath)
		assert.GreaterOrEqual(t, asked.Load(), int32(1))
		assert.True(t, config.IsStreamKeyWhitelisted(fingerprint))
	})

	t.Run("denied key is rejected", func(t *testing.T) {
		keyPath, _ := generateClientKey(t)
		useStreamConfig(t, config.StreamConfig{WhitelistOnly: true})

		server := startServer(t, 4)
		server.OnAuthRequest = func(addr, fp string) bool { return false }

		client := NewStreamClient(keyPath)
		assert.Error(t, client.Connect(context.Background(), server.Addr()))
	})
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	server := NewStreamServer("127.0.0.1:0", "", 2)
	slow := &streamSession{addr: "slow", events: make(chan *structpb.Struct, 2)}
	server.sessions["slow"] = slow

	for i := 0; i < 5; i++ {
		server.Publish(eyetracker.Event{Type: eyetracker.EventSample})
	}

	assert.Len(t, slow.events, 2)
	assert.Equal(t, int64(3), server.Dropped())
	assert.True(t, slow.dropping)

	<-slow.events
	server.Publish(eyetracker.Event{Type: eyetracker.EventSample})
	assert.False(t, slow.dropping)
	assert.Equal(t, int64(3), server.Dropped())
}

func TestClientWithoutSession(t *testing.T) {
	client := NewStreamClient("/nonexistent/key")

	_, err := client.Next()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, client.Disconnect())
	assert.Error(t, client.Connect(context.Background(), "127.0.0.1:1"))
}
