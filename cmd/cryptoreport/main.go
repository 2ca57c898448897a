// cryptoreport: CoinMarketCap performance report for tracked crypto tokens.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/cryptoreport/internal/config"
	"github.com/seenimoa/cryptoreport/internal/infra"
	"github.com/seenimoa/cryptoreport/internal/logging"
	"github.com/seenimoa/cryptoreport/internal/metrics"
	"github.com/seenimoa/cryptoreport/internal/provider"
	"github.com/seenimoa/cryptoreport/internal/providers/coinmarketcap"
	"github.com/seenimoa/cryptoreport/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global state, set up in PersistentPreRunE.
var (
	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, config.ErrConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cryptoreport",
	Short: "cryptoreport — crypto token performance reports from CoinMarketCap",
	Long: `cryptoreport fetches quotes for configured token groups from CoinMarketCap,
computes 7d/30d/90d/1y price changes, ranks the top-100 market-cap universe,
and writes dated JSON, CSV and SVG reports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyFlags(cmd)

		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
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
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format override (console, json)")
	rootCmd.PersistentFlags().Int("rate-limit", 0, "provider calls per minute override")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(statusCmd)
}

// applyFlags layers command-line overrides on top of the loaded config.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	if v, _ := flags.GetInt("rate-limit"); flags.Changed("rate-limit") {
		cfg.Provider.RateLimit = v
	}
	if flags.Lookup("symbols") != nil && flags.Changed("symbols") {
		symbols, _ := flags.GetStringSlice("symbols")
		cfg.SetSymbols(symbols)
	}
	if flags.Lookup("rank-by") != nil && flags.Changed("rank-by") {
		cfg.Report.RankBy, _ = flags.GetString("rank-by")
	}
	if flags.Lookup("output-dir") != nil && flags.Changed("output-dir") {
		cfg.Report.OutputDir, _ = flags.GetString("output-dir")
	}
	if flags.Lookup("concurrency") != nil && flags.Changed("concurrency") {
		cfg.Fetch.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Lookup("batch-size") != nil && flags.Changed("batch-size") {
		cfg.Fetch.BatchSize, _ = flags.GetInt("batch-size")
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newClient builds the CoinMarketCap client with one rate limiter shared
// by every request of the process.
func newClient(m *metrics.Metrics) (*coinmarketcap.Provider, error) {
	limiter := infra.NewPerMinute(cfg.Provider.RateLimit)
	shared := provider.NewShared("coinmarketcap", limiter, provider.CallPolicy{
		MaxRetries:      cfg.Provider.MaxRetries,
		InitialBackoff:  cfg.Provider.RetryBackoff,
		BreakerFailures: cfg.Provider.BreakerFailures,
		BreakerTimeout:  cfg.Provider.BreakerTimeout,
	}, m, logger.Named("coinmarketcap"))

	client := coinmarketcap.New(coinmarketcap.Options{
		BaseURL: cfg.Provider.BaseURL,
		Timeout: cfg.Provider.Timeout,
		Shared:  shared,
	})
	if err := client.Init(map[string]string{"api_key": cfg.Provider.APIKey}); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	return client, nil
}

// keyError marks a rejected API key as a config error so main exits 2.
func keyError(err error) error {
	if provider.IsInvalidCredentials(err) {
		return fmt.Errorf("%w: %w", config.ErrConfig, err)
	}
	return err
}

// parseHorizonFlag reads a horizon flag, falling back to the config.
func parseHorizonFlag(cmd *cobra.Command, name string) (models.Horizon, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return cfg.RankBy(), nil
	}
	h, err := models.ParseHorizon(v)
	if err != nil {
		return "", fmt.Errorf("%w: --%s: %v", config.ErrConfig, name, err)
	}
	return h, nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cryptoreport %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}
