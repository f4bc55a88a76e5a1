package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/geye/internal/config"
	"github.com/bnema/geye/internal/eyelink"
	"github.com/bnema/geye/internal/logger"
	"github.com/bnema/geye/internal/samplelog"
	"github.com/bnema/geye/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	monitorConnect bool
	monitorSamples bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Drive a tracker from an interactive terminal view",
	Long: `Run a tracker in this process and show its state full screen. Tracker
events are delivered on the terminal UI's event loop. Press ? for the key
bindings; while camera setup is active every key goes to the tracker.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorConnect, "connect", false, "Connect to the tracker on startup")
	monitorCmd.Flags().BoolVar(&monitorSamples, "samples", false, "Record events to the sample log")

	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	// The terminal belongs to the UI from here on
	if cfg.Logging.FileLogging {
		logFile, err := logger.SetupFileLogging("monitor")
		if err != nil {
			return fmt.Errorf("failed to set up file logging: %w", err)
		}
		defer logFile.Close()
	}

	runner := ui.NewRunner()
	tracker := eyelink.New(append(eyelink.FromConfig(cfg.Tracker), eyelink.WithInvoker(runner))...)

	model := ui.NewMonitorModel(tracker)
	tracker.Subscribe(model.HandleEvent)

	var samples *samplelog.Log
	if monitorSamples || cfg.SampleLog.Enabled {
		var err error
		samples, err = samplelog.Open(cfg.SampleLog.Path, cfg.SampleLog.BatchSize)
		if err != nil {
			tracker.Close()
			return fmt.Errorf("failed to open sample log: %w", err)
		}
		tracker.Subscribe(samples.Handle)
	}

	if monitorConnect {
		if err := tracker.Connect(); err != nil {
			logger.Warnf("Connect refused: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := runner.Run(ctx, model, tea.WithAltScreen())

	// The program has exited, so events emitted while closing are dropped
	// by the runner instead of blocking the worker.
	tracker.Close()
	if samples != nil {
		if err := samples.Close(); err != nil {
			logger.Errorf("Failed to close sample log: %v", err)
		}
	}

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("monitor failed: %w", runErr)
	}
	return nil
}
