// Command selfheal runs UI scenarios with self-healing locators and manages
// the model and training corpus behind them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"selfheal/internal/config"
	"selfheal/internal/logging"
	"selfheal/internal/predictor"
	"selfheal/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "selfheal",
	Short: "Self-healing locator resolution for UI test automation",
	Long: `selfheal keeps UI tests running when page markup drifts.

Each element is located through a fallback chain: the primary locator, then
ordered backups, then a locator predicted by the model. Every successful
prediction is appended to the training corpus so the model can be retrained.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		if err := logging.Initialize(loaded.Logging); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if _, err := os.Stat(configPath); err != nil {
			logging.BootWarn("No config at %s; using defaults", configPath)
		} else {
			logging.Boot("Loaded config from %s", configPath)
		}
		cfg = loaded
		logger = logging.Base().Named("cli")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Overall operation timeout")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(corpusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext bounds a command by --timeout and cancels it on SIGINT/SIGTERM.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// openCorpus opens the configured training store.
func openCorpus(ctx context.Context) (store.TrainingStore, error) {
	corpus, err := store.Open(ctx, cfg.Training)
	if err != nil {
		return nil, fmt.Errorf("failed to open training store: %w", err)
	}
	return corpus, nil
}

// openPredictor creates the predictor over the configured corpus. Callers
// close both.
func openPredictor(ctx context.Context) (*predictor.Predictor, store.TrainingStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	corpus, err := openCorpus(ctx)
	if err != nil {
		return nil, nil, err
	}
	pred, err := predictor.New(cfg.Predictor, corpus)
	if err != nil {
		_ = corpus.Close()
		return nil, nil, err
	}
	return pred, corpus, nil
}
