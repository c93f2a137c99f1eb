// Command tnpcheck rebuilds feature scripts and reports every shape
// reference that no longer resolves cleanly as a JSON envelope.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chazu/toponame/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	dbPath     string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tnpcheck",
	Short: "Check shape references of a feature script across rebuilds",
	Long: `tnpcheck evaluates a feature script, rebuilds it against the
configured geometry kernel and prints one JSON envelope per feature whose
shape references drifted, broke or were blocked by an upstream failure.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Store.Path = dbPath
			cfg.Store.InMemory = false
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		logger, err = cfg.Logger()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults are embedded)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "badger directory for saved bindings and status")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(rebuildCmd, watchCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
