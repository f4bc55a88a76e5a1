package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/geye/internal/config"
	"github.com/bnema/geye/internal/ipc"
	"github.com/bnema/geye/internal/ui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the daemon's tracker",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ipc.NewClient(config.Get().Daemon.SocketPath)

		status, err := client.Status()
		if errors.Is(err, ipc.ErrNotRunning) {
			fmt.Println("geye daemon is not running")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get daemon status: %w", err)
		}

		fmt.Print(formatStatus(status))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func formatStatus(st *ipc.Status) string {
	var out strings.Builder

	state := "Disconnected"
	if st.Connected {
		state = "Connected"
		if st.Info != "" {
			state += " (" + st.Info + ")"
		}
	}
	out.WriteString(ui.HeaderStyle.Render("TRACKER STATUS"))
	out.WriteString("\n")
	out.WriteString(ui.FormatStatus(st.Connected, state))
	out.WriteString("\n")
	out.WriteString(ui.CreateSeparator(40, ""))
	out.WriteString("\n")

	display := "unset"
	if st.DisplayWidth > 0 && st.DisplayHeight > 0 {
		display = fmt.Sprintf("%dx%d", st.DisplayWidth, st.DisplayHeight)
	}

	for _, f := range []struct {
		label string
		value interface{}
	}{
		{"Tracker", st.TrackerID},
		{"Simulated", yesNo(st.Simulated)},
		{"Tracking", yesNo(st.Tracking)},
		{"Recording", yesNo(st.Recording)},
		{"Camera setup", yesNo(st.InSetup)},
		{"Cal points", st.NumCalPoints},
		{"Display", display},
	} {
		out.WriteString(ui.FormatField(f.label, f.value))
		out.WriteString("\n")
	}
	return out.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
