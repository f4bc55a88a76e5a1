package cmd

import (
	"os"

	"github.com/bnema/geye/internal/config"
	"github.com/bnema/geye/internal/logger"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage geye configuration",
	Long:  `Manage geye configuration including tracker settings and the stream whitelist.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		logger.Info("Current Configuration:")
		logger.Infof("Config file: %s\n", config.GetConfigPath())

		logger.Info("[Tracker]")
		logger.Infof("  Simulated: %v", cfg.Tracker.Simulated)
		if cfg.Tracker.IPAddress != "" {
			logger.Infof("  IP Address: %s", cfg.Tracker.IPAddress)
		} else {
			logger.Info("  IP Address: vendor default")
		}
		logger.Infof("  Calibration Points: %d", cfg.Tracker.NumCalPoints)
		logger.Infof("  Display: %dx%d", cfg.Tracker.DisplayWidth, cfg.Tracker.DisplayHeight)
		logger.Infof("  Poll Interval: %s", cfg.Tracker.PollInterval)

		logger.Info("\n[Daemon]")
		logger.Infof("  Socket: %s", cfg.Daemon.SocketPath)

		logger.Info("\n[Stream]")
		logger.Infof("  Enabled: %v", cfg.Stream.Enabled)
		logger.Infof("  Port: %d", cfg.Stream.Port)
		logger.Infof("  Host Key: %s", cfg.Stream.HostKeyPath)
		logger.Infof("  Buffer: %d events", cfg.Stream.Buffer)
		logger.Infof("  Whitelist Only: %v", cfg.Stream.WhitelistOnly)
		if len(cfg.Stream.Whitelist) > 0 {
			logger.Info("  Whitelist:")
			for _, fp := range cfg.Stream.Whitelist {
				logger.Infof("    - %s", fp)
			}
		}

		logger.Info("\n[Sample Log]")
		logger.Infof("  Enabled: %v", cfg.SampleLog.Enabled)
		logger.Infof("  Path: %s", cfg.SampleLog.Path)
		logger.Infof("  Batch Size: %d", cfg.SampleLog.BatchSize)

		logger.Info("\n[Logging]")
		logger.Infof("  File Logging: %v", cfg.Logging.FileLogging)
		if cfg.Logging.LogLevel != "" {
			logger.Infof("  Log Level: %s", cfg.Logging.LogLevel)
		}

		return nil
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save current configuration to file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Save(); err != nil {
			return err
		}
		logger.Infof("Configuration saved to: %s", config.GetConfigPath())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Check if config already exists
		configPath := config.GetConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			logger.Infof("Configuration file already exists at: %s", configPath)
			logger.Info("Use --force to overwrite")

			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return nil
			}
		}

		// Save default configuration
		if err := config.Save(); err != nil {
			return err
		}

		logger.Infof("Configuration initialized at: %s", configPath)
		logger.Info("\nYou can now:")
		logger.Info("  - Edit the configuration file directly")
		logger.Info("  - Use 'geye setup' to configure the tracker")
		logger.Info("  - Use 'geye config show' to view current settings")

		return nil
	},
}

var configStreamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Manage the event stream whitelist",
}

var configStreamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List whitelisted SSH keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		if len(cfg.Stream.Whitelist) == 0 {
			logger.Info("No SSH keys in whitelist")
		} else {
			logger.Info("Whitelisted SSH Keys:")
			for i, fp := range cfg.Stream.Whitelist {
				logger.Infof("%d. %s", i+1, fp)
			}
		}

		if cfg.Stream.WhitelistOnly {
			logger.Info("\nWhitelist-only mode is ENABLED")
		} else {
			logger.Info("\nWhitelist-only mode is DISABLED")
			logger.Info("All SSH keys are accepted")
		}
		return nil
	},
}

var configStreamRemoveCmd = &cobra.Command{
	Use:   "remove <fingerprint>",
	Short: "Remove SSH key from whitelist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fingerprint := args[0]

		if err := config.RemoveStreamKey(fingerprint); err != nil {
			return err
		}

		logger.Infof("Removed SSH key from whitelist: %s", fingerprint)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSaveCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configStreamCmd)

	configStreamCmd.AddCommand(configStreamListCmd)
	configStreamCmd.AddCommand(configStreamRemoveCmd)

	configInitCmd.Flags().Bool("force", false, "Force overwrite existing configuration")

	rootCmd.AddCommand(configCmd)
}
