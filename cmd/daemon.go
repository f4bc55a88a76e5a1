package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/geye/internal/config"
	"github.com/bnema/geye/internal/eyelink"
	"github.com/bnema/geye/internal/eyetracker"
	"github.com/bnema/geye/internal/ipc"
	"github.com/bnema/geye/internal/logger"
	"github.com/bnema/geye/internal/network"
	"github.com/bnema/geye/internal/samplelog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var daemonConnect bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run a tracker controlled over a Unix socket",
	Long: `Run a tracker in the background. Other geye commands control it through
the daemon socket. With --stream the daemon also publishes its events to
SSH viewers, and with --samples it records them to a SQLite database.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonConnect, "connect", false, "Connect to the tracker on startup")
	daemonCmd.Flags().String("socket", "", "Control socket path")
	daemonCmd.Flags().Bool("stream", false, "Publish events over SSH")
	daemonCmd.Flags().IntP("port", "p", 0, "Event stream port")
	daemonCmd.Flags().Bool("samples", false, "Record events to the sample log")

	// Bind flags to viper
	viper.BindPFlag("daemon.socket_path", daemonCmd.Flags().Lookup("socket"))
	viper.BindPFlag("stream.enabled", daemonCmd.Flags().Lookup("stream"))
	viper.BindPFlag("stream.port", daemonCmd.Flags().Lookup("port"))
	viper.BindPFlag("samplelog.enabled", daemonCmd.Flags().Lookup("samples"))

	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	client := ipc.NewClient(cfg.Daemon.SocketPath)
	if client.IsRunning() {
		return fmt.Errorf("a daemon is already listening on %s", cfg.Daemon.SocketPath)
	}

	tracker := eyelink.New(eyelink.FromConfig(cfg.Tracker)...)
	var samples *samplelog.Log
	defer func() {
		tracker.Close()
		// closed after the tracker so samples emitted on the way out are kept
		if samples != nil {
			if err := samples.Close(); err != nil {
				logger.Errorf("Failed to close sample log: %v", err)
			}
		}
	}()

	tracker.Subscribe(logEvent)

	// Create a context that we'll cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.SampleLog.Enabled {
		var err error
		samples, err = samplelog.Open(cfg.SampleLog.Path, cfg.SampleLog.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to open sample log: %w", err)
		}
		tracker.Subscribe(samples.Handle)
	}

	if cfg.Stream.Enabled {
		stream := network.NewStreamServer(fmt.Sprintf(":%d", cfg.Stream.Port), cfg.Stream.HostKeyPath, cfg.Stream.Buffer)
		stream.OnClientConnected = func(addr, fingerprint string) {
			logger.Info("Viewer connected", "addr", addr, "key", fingerprint)
		}
		stream.OnClientDisconnected = func(addr string) {
			logger.Info("Viewer disconnected", "addr", addr)
		}
		if err := stream.Start(ctx); err != nil {
			return fmt.Errorf("failed to start event stream: %w", err)
		}
		defer stream.Stop()
		tracker.Subscribe(stream.Publish)
	}

	server, err := ipc.NewSocketServer(cfg.Daemon.SocketPath, ipc.NewTrackerHandler(tracker))
	if err != nil {
		return fmt.Errorf("failed to create control socket: %w", err)
	}
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start control socket: %w", err)
	}
	defer server.Stop()

	logger.Infof("geye daemon %s listening on %s", tracker.ID(), server.SocketPath())
	if cfg.Tracker.Simulated {
		logger.Info("Using the simulated tracker")
	}

	if daemonConnect {
		if err := tracker.Connect(); err != nil {
			logger.Warnf("Connect refused: %v", err)
		}
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Infof("Received %s, shutting down", sig)
	case <-ctx.Done():
	}
	return nil
}

// logEvent reports tracker events. Samples and camera frames are not logged.
func logEvent(ev eyetracker.Event) {
	switch ev.Type {
	case eyetracker.EventConnected:
		if ev.Connected {
			logger.Info("Tracker connected")
		} else {
			logger.Info("Tracker disconnected")
		}
	case eyetracker.EventCalibrationResult:
		logger.Info("Calibration result", "message", ev.Message)
	case eyetracker.EventError:
		if ev.Err != nil {
			logger.Error(ev.Message, "err", ev.Err)
		} else {
			logger.Error(ev.Message)
		}
	case eyetracker.EventSample, eyetracker.EventImage:
	default:
		logger.Debug("Tracker event", "type", ev.Type)
	}
}
