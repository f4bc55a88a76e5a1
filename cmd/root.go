package cmd

import (
	"github.com/bnema/geye/internal/config"
	"github.com/bnema/geye/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "geye",
		Short: "geye - eyetracker session control",
		Long: `geye drives an eyetracker from a dedicated worker thread and relays
its events to local and remote consumers. It can run as a daemon controlled
over a Unix socket, as an interactive terminal monitor, or as a viewer of a
remote daemon's event stream.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				config.SetConfigPath(configFile)
			}
			if err := config.Init(); err != nil {
				return err
			}
			if level := config.Get().Logging.LogLevel; level != "" {
				logger.SetLevel(level)
			}
			return nil
		},
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default $HOME/.config/geye/geye.toml)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("simulated", false, "Use the simulated tracker instead of hardware")
	flags.String("ip-address", "", "Tracker IP address")
	flags.Int("calpoints", 0, "Number of calibration points (3, 5, 9 or 13)")
	flags.Int("width", 0, "Display width in pixels")
	flags.Int("height", 0, "Display height in pixels")

	// Bind flags to viper
	viper.BindPFlag("logging.log_level", flags.Lookup("log-level"))
	viper.BindPFlag("tracker.simulated", flags.Lookup("simulated"))
	viper.BindPFlag("tracker.ip_address", flags.Lookup("ip-address"))
	viper.BindPFlag("tracker.num_calpoints", flags.Lookup("calpoints"))
	viper.BindPFlag("tracker.display_width", flags.Lookup("width"))
	viper.BindPFlag("tracker.display_height", flags.Lookup("height"))
}
