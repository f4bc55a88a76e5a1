package cmd

import (
	"fmt"
	"net"
	"strconv"

	"github.com/bnema/geye/internal/config"
	"github.com/bnema/geye/internal/ui"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively configure the tracker",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	current := config.Get().Tracker

	simulated := current.Simulated
	ipAddress := current.IPAddress
	calPoints := current.NumCalPoints
	width := strconv.Itoa(current.DisplayWidth)
	height := strconv.Itoa(current.DisplayHeight)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Use the simulated tracker?").
				Description("The simulator produces synthetic samples without hardware").
				Value(&simulated),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Tracker IP address").
				Description("Leave empty to use the vendor default").
				Value(&ipAddress).
				Validate(validateIP),
		).WithHideFunc(func() bool { return simulated }),
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Calibration points").
				Options(
					huh.NewOption("3 points", 3),
					huh.NewOption("5 points", 5),
					huh.NewOption("9 points", 9),
					huh.NewOption("13 points", 13),
				).
				Value(&calPoints),
			huh.NewInput().
				Title("Display width").
				Value(&width).
				Validate(validateDimension),
			huh.NewInput().
				Title("Display height").
				Value(&height).
				Validate(validateDimension),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	w, _ := strconv.Atoi(width)
	h, _ := strconv.Atoi(height)
	current.Simulated = simulated
	current.IPAddress = ipAddress
	current.NumCalPoints = calPoints
	current.DisplayWidth = w
	current.DisplayHeight = h

	if err := config.UpdateTracker(current); err != nil {
		return err
	}

	fmt.Println(ui.FormatResult(true, "Tracker configuration saved"))
	fmt.Println(ui.FormatField("Config file", config.GetConfigPath()))
	return nil
}

func validateIP(s string) error {
	if s == "" || net.ParseIP(s) != nil {
		return nil
	}
	return fmt.Errorf("not an IP address")
}

func validateDimension(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("enter a size in pixels, or 0 to leave unset")
	}
	return nil
}
