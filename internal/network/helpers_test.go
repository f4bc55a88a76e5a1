package network

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/geye/internal/config"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// generateClientKey writes an ed25519 private key in OpenSSH format and
// returns its path and SHA256 fingerprint
func generateClientKey(t *testing.T) (string, string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "geye-test")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return path, ssh.FingerprintSHA256(sshPub)
}

// useStreamConfig installs stream settings for the duration of the test
func useStreamConfig(t *testing.T, stream config.StreamConfig) {
	t.Helper()
	config.SetConfigPath(filepath.Join(t.TempDir(), "geye.toml"))
	config.Set(&config.Config{Stream: stream})
	t.Cleanup(func() {
		config.Set(nil)
		config.SetConfigPath("")
	})
}

// startServer runs a stream server on a loopback port
func startServer(t *testing.T, buffer int) *StreamServer {
	t.Helper()

	server := NewStreamServer("127.0.0.1:0", filepath.Join(t.TempDir(), "host_key"), buffer)
	require.NoError(t, server.Start(t.Context()))
	t.Cleanup(server.Stop)
	return server
}
