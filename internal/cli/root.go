package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/config"
	"github.com/lazypower/keepstreak/internal/logging"
)

var (
	configPath string

	// Populated by the root PersistentPreRunE.
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "keepstreak",
	Short: "Habit streak keeper with freezes and inactivity nudges",
	Long: "KeepStreak tracks daily habits, spends monthly streak freezes to cover " +
		"missed days and nudges you when a habit goes quiet.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(habitCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(tokenCmd)
}
