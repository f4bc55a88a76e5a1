package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/geye/internal/eyetracker"
	"github.com/bnema/geye/internal/network"
	"github.com/bnema/geye/internal/ui"
	"github.com/spf13/cobra"
)

var (
	watchKeyPath string
	watchSamples bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <host:port>",
	Short: "Print the event stream of a remote daemon",
	Long: `Connect to a daemon started with --stream and print its events as they
arrive. Gaze samples are hidden unless --samples is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := network.NewStreamClient(watchKeyPath)
		if err := client.Connect(ctx, args[0]); err != nil {
			return err
		}
		defer client.Disconnect()

		fmt.Println(ui.FormatResult(true, "Watching "+args[0]))
		err := client.Stream(ctx, func(ev eyetracker.Event) {
			if ev.Type == eyetracker.EventSample && !watchSamples {
				return
			}
			fmt.Println(formatEvent(ev))
		})
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("stream ended: %w", err)
		}
		fmt.Println(ui.SubtleStyle.Render("Stream closed"))
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchKeyPath, "key", "k", "", "SSH private key (default ~/.ssh/id_ed25519 or id_rsa)")
	watchCmd.Flags().BoolVar(&watchSamples, "samples", false, "Print gaze samples")

	rootCmd.AddCommand(watchCmd)
}

// formatEvent renders one event as a single line
func formatEvent(ev eyetracker.Event) string {
	name := ui.InfoStyle.Render(fmt.Sprintf("%-18s", ev.Type))
	switch ev.Type {
	case eyetracker.EventConnected:
		return name + " " + ui.FormatStatus(ev.Connected, yesNo(ev.Connected))
	case eyetracker.EventCalpointStart:
		return name + " " + fmt.Sprintf("target at (%.0f, %.0f)", ev.X, ev.Y)
	case eyetracker.EventCalibrationResult:
		return name + " " + ev.Message
	case eyetracker.EventSample:
		s := ev.Sample
		return name + " " + fmt.Sprintf("%s t=%.0f (%.1f, %.1f)", s.Eye, s.Time, s.X, s.Y)
	case eyetracker.EventImage:
		if ev.Image != nil {
			return name + " " + fmt.Sprintf("%dx%d", ev.Image.Width, ev.Image.Height)
		}
		return name
	case eyetracker.EventError:
		text := ev.Message
		if ev.Err != nil {
			text += ": " + ev.Err.Error()
		}
		return name + " " + ui.ErrorStyle.Render(text)
	default:
		return name
	}
}
