package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bnema/geye/internal/config"
	"github.com/bnema/geye/internal/eyetracker"
	"github.com/bnema/geye/internal/ipc"
	"github.com/bnema/geye/internal/ui"
	"github.com/spf13/cobra"
)

// sendControl forwards c to the daemon and prints whether it was applied
func sendControl(c ipc.Control, what string) error {
	client := ipc.NewClient(config.Get().Daemon.SocketPath)
	accepted, err := client.Send(c)
	if err != nil {
		return err
	}
	if accepted {
		fmt.Println(ui.FormatResult(true, what))
	} else {
		fmt.Println(ui.FormatResult(false, what+" refused in the current state"))
	}
	return nil
}

func simpleControl(use, short string, typ ipc.RequestType, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendControl(ipc.Control{Type: typ}, done)
		},
	}
}

// toggleControl builds a command taking "on" or "off"
func toggleControl(use, short string, on, off ipc.RequestType, what string) *cobra.Command {
	return &cobra.Command{
		Use:       use + " on|off",
		Short:     short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "on":
				return sendControl(ipc.Control{Type: on}, what+" started")
			case "off":
				return sendControl(ipc.Control{Type: off}, what+" stopped")
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
		},
	}
}

var cameraCmd = &cobra.Command{
	Use:       "camera start|stop",
	Short:     "Enter or leave camera setup",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"start", "stop"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "start":
			return sendControl(ipc.Control{Type: ipc.RequestStartSetup}, "Camera setup requested")
		case "stop":
			return sendControl(ipc.Control{Type: ipc.RequestStopSetup}, "Camera setup stop requested")
		default:
			return fmt.Errorf("expected start or stop, got %q", args[0])
		}
	},
}

var calpointsCmd = &cobra.Command{
	Use:   "calpoints <n>",
	Short: "Set the number of calibration points (3, 5, 9 or 13)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid point count %q", args[0])
		}
		return sendControl(ipc.Control{Type: ipc.RequestSetCalPoints, CalPoints: n}, "Calibration points set")
	},
}

var displayCmd = &cobra.Command{
	Use:   "display <width> <height>",
	Short: "Set the display size used for calibration targets",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := strconv.Atoi(args[0])
		if err != nil || w <= 0 {
			return fmt.Errorf("invalid width %q", args[0])
		}
		h, err := strconv.Atoi(args[1])
		if err != nil || h <= 0 {
			return fmt.Errorf("invalid height %q", args[1])
		}
		return sendControl(ipc.Control{Type: ipc.RequestSetDisplay, Width: w, Height: h},
			fmt.Sprintf("Display set to %dx%d", w, h))
	},
}

var keyCmd = &cobra.Command{
	Use:   "key <name>",
	Short: "Send a key press to the tracker during camera setup",
	Long: `Send a key press to the tracker. Only accepted while the tracker is in
camera setup. Names: enter, esc, up, down, left, right, pageup, pagedown,
home, end, tab, backspace, space, f1 to f12, or a single character.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseKeyName(args[0])
		if err != nil {
			return err
		}

		var mods eyetracker.Modifier
		if shift, _ := cmd.Flags().GetBool("shift"); shift {
			mods |= eyetracker.ModShift
		}
		if ctrl, _ := cmd.Flags().GetBool("ctrl"); ctrl {
			mods |= eyetracker.ModControl
		}
		if alt, _ := cmd.Flags().GetBool("alt"); alt {
			mods |= eyetracker.ModAlt
		}

		return sendControl(ipc.Control{Type: ipc.RequestKey, Key: uint32(key), Modifiers: uint32(mods)},
			fmt.Sprintf("Key %s sent", args[0]))
	},
}

var namedKeys = map[string]eyetracker.Key{
	"enter":     eyetracker.KeyReturn,
	"return":    eyetracker.KeyReturn,
	"kpenter":   eyetracker.KeyKPEnter,
	"esc":       eyetracker.KeyEscape,
	"escape":    eyetracker.KeyEscape,
	"up":        eyetracker.KeyUp,
	"down":      eyetracker.KeyDown,
	"left":      eyetracker.KeyLeft,
	"right":     eyetracker.KeyRight,
	"pageup":    eyetracker.KeyPageUp,
	"pagedown":  eyetracker.KeyPageDown,
	"home":      eyetracker.KeyHome,
	"end":       eyetracker.KeyEnd,
	"tab":       eyetracker.KeyTab,
	"backspace": eyetracker.KeyBackSpace,
	"space":     eyetracker.Key(' '),
}

// parseKeyName maps a key name or a single character to a host key code
func parseKeyName(name string) (eyetracker.Key, error) {
	if utf8.RuneCountInString(name) == 1 {
		r, _ := utf8.DecodeRuneInString(name)
		if r >= 0x20 && r < 0x7f {
			return eyetracker.Key(r), nil
		}
		return 0, fmt.Errorf("unsupported key %q", name)
	}

	lower := strings.ToLower(name)
	if k, ok := namedKeys[lower]; ok {
		return k, nil
	}
	if strings.HasPrefix(lower, "f") {
		if n, err := strconv.Atoi(lower[1:]); err == nil && n >= 1 && n <= 12 {
			return eyetracker.KeyF1 + eyetracker.Key(n-1), nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

func init() {
	keyCmd.Flags().Bool("shift", false, "Hold shift")
	keyCmd.Flags().Bool("ctrl", false, "Hold control")
	keyCmd.Flags().Bool("alt", false, "Hold alt")

	rootCmd.AddCommand(
		simpleControl("connect", "Connect the daemon's tracker", ipc.RequestConnect, "Connect requested"),
		simpleControl("disconnect", "Disconnect the daemon's tracker", ipc.RequestDisconnect, "Disconnect requested"),
		simpleControl("calibrate", "Run a calibration (camera setup must be active)", ipc.RequestCalibrate, "Calibration requested"),
		simpleControl("validate", "Run a validation (camera setup must be active)", ipc.RequestValidate, "Validation requested"),
		toggleControl("track", "Start or stop tracking", ipc.RequestStartTracking, ipc.RequestStopTracking, "Tracking"),
		toggleControl("record", "Start or stop recording", ipc.RequestStartRecording, ipc.RequestStopRecording, "Recording"),
		cameraCmd,
		calpointsCmd,
		displayCmd,
		keyCmd,
	)
}
