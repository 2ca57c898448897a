package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/cryptoreport/internal/config"
	"github.com/seenimoa/cryptoreport/internal/metrics"
	"github.com/seenimoa/cryptoreport/internal/pipeline"
	"github.com/seenimoa/cryptoreport/internal/provider"
	"github.com/seenimoa/cryptoreport/internal/ranking"
	"github.com/seenimoa/cryptoreport/internal/report"
	"github.com/seenimoa/cryptoreport/pkg/models"
	"github.com/seenimoa/cryptoreport/pkg/utils"
)

// --- Report Command ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Fetch all tracked tokens and write the dated report",
	Long: `Fetch quotes for every configured token group, rank the top market-cap
universe by the configured horizon, print a summary and write
crypto_report_YYYYMMDD.{json,csv} and crypto_performance_YYYYMMDD.{csv,svg}.

Examples:
  cryptoreport report
  cryptoreport report --symbols BTC,ETH,SOL --rank-by 30d
  cryptoreport report --stdout --no-save | jq .top5_best`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		m := metrics.New()
		client, err := newClient(m)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		runner := pipeline.New(pipeline.OptionsFromConfig(cfg), client, logger, m)
		rep, err := runner.Run(ctx)
		if err != nil {
			return err
		}

		toStdout, _ := cmd.Flags().GetBool("stdout")
		if toStdout {
			if err := report.WriteJSON(os.Stdout, rep); err != nil {
				return err
			}
		} else if err := report.WriteText(os.Stdout, rep); err != nil {
			return err
		}

		noSave, _ := cmd.Flags().GetBool("no-save")
		if !noSave {
			files, err := report.Save(cfg.Report.OutputDir, rep)
			if err != nil {
				return fmt.Errorf("save report: %w", err)
			}
			logger.Info("report saved",
				zap.String("json", files.JSON),
				zap.String("csv", files.CSV),
				zap.String("performance_csv", files.PerformanceCSV),
				zap.String("chart", files.Chart))
		}

		if cfg.Metrics.Textfile != "" {
			if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logger.Warn("failed to write metrics textfile", zap.Error(err))
			}
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringSlice("symbols", nil, "track these symbols instead of the configured groups")
	reportCmd.Flags().String("rank-by", "", "ranking horizon (7d, 30d, 90d, 1y)")
	reportCmd.Flags().String("output-dir", "", "directory for report files")
	reportCmd.Flags().Int("concurrency", 0, "parallel quote requests")
	reportCmd.Flags().Int("batch-size", 0, "symbols per quote request")
	reportCmd.Flags().Bool("stdout", false, "print the JSON report instead of the summary")
	reportCmd.Flags().Bool("no-save", false, "do not write report files")
}

// --- Quote Command ---

var quoteCmd = &cobra.Command{
	Use:   "quote [symbols...]",
	Short: "Look up latest quotes for one or more symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.SetSymbols(args)
		if err := cfg.Validate(); err != nil {
			return err
		}
		client, err := newClient(nil)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		records := client.FetchQuotes(ctx, utils.UniqueSymbols(args))
		for _, rec := range records {
			if provider.IsInvalidCredentials(rec.Err) {
				return keyError(rec.Err)
			}
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "    ")
			return enc.Encode(records)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tNAME\tRANK\tPRICE\t7D\t30D\t90D\t1Y\tSTATUS")
		for _, rec := range records {
			if !rec.OK() {
				fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t-\t%s (%s)\n", rec.Symbol, rec.Status, rec.Error)
				continue
			}
			q := rec.Quote
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				rec.Symbol, q.Name, rankString(q), utils.FormatUSD(q.PriceUSD),
				pctString(q, models.Horizon7d), pctString(q, models.Horizon30d),
				pctString(q, models.Horizon90d), pctString(q, models.Horizon1y), rec.Status)
		}
		return tw.Flush()
	},
}

func init() {
	quoteCmd.Flags().Bool("json", false, "print records as JSON")
}

// --- Top Command ---

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank the top market-cap tokens by price change",
	Long: `Fetch the market-cap listing and show the best and worst performers
over a horizon, without fetching the tracked token groups.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		h, err := parseHorizonFlag(cmd, "horizon")
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = cfg.Report.Universe
		}
		size, _ := cmd.Flags().GetInt("size")
		if size <= 0 {
			size = cfg.Report.TopN
		}

		client, err := newClient(nil)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		listing, err := client.FetchTop(ctx, limit)
		if err != nil {
			return keyError(err)
		}
		result := ranking.New(limit, size).Rank(ranking.RecordsFromListing(listing), h)

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "    ")
			return enc.Encode(map[string]any{
				"horizon": result.Horizon,
				"best":    result.Best,
				"worst":   result.Worst,
			})
		}

		fmt.Printf("Top %d by market cap, %s change (%d listed)\n", limit, h, len(listing))
		printEntries("Best", result.Best)
		printEntries("Worst", result.Worst)
		return nil
	},
}

func init() {
	topCmd.Flags().Int("limit", 0, "market-cap universe size (default: report.universe)")
	topCmd.Flags().Int("size", 0, "entries per list (default: report.top_n)")
	topCmd.Flags().String("horizon", "", "ranking horizon (default: report.rank_by)")
	topCmd.Flags().Bool("json", false, "print the ranking as JSON")
}

func printEntries(title string, entries []models.RankingEntry) {
	fmt.Printf("\n  %s:\n", title)
	if len(entries) == 0 {
		fmt.Println("    (none)")
		return
	}
	for i, e := range entries {
		fmt.Printf("    %d. %-8s #%-4d %s\n", i+1, e.Symbol, e.Rank, utils.FormatPct(e.ChangePct))
	}
}

func rankString(q *models.TokenQuote) string {
	if r, ok := q.MarketCapRank(); ok {
		return fmt.Sprintf("#%d", r)
	}
	return "-"
}

func pctString(q *models.TokenQuote, h models.Horizon) string {
	if v, ok := q.Change(h); ok {
		return utils.FormatPct(v)
	}
	return "n/a"
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and API key status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  cryptoreport — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (UTC):    %s\n", time.Now().UTC().Format(time.RFC3339))
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    Provider:      %s\n", cfg.Provider.BaseURL)
		fmt.Printf("    Rate limit:    %d calls/min (timeout %s, retries %d)\n",
			cfg.Provider.RateLimit, cfg.Provider.Timeout, cfg.Provider.MaxRetries)
		fmt.Printf("    Tracked:       %d symbols in %d groups\n", len(cfg.Symbols()), len(cfg.Report.Groups))
		fmt.Printf("    Ranking:       %s over top %d, %d per list\n", cfg.Report.RankBy, cfg.Report.Universe, cfg.Report.TopN)
		fmt.Printf("    Fetch:         concurrency %d, batch %d\n", cfg.Fetch.Concurrency, cfg.Fetch.BatchSize)
		fmt.Printf("    Output:        %s\n", cfg.Report.OutputDir)
		if err := cfg.Validate(); err != nil {
			fmt.Printf("    Problems:      %v\n", err)
		}
		fmt.Println()

		// API keys status
		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		ping, _ := cmd.Flags().GetBool("ping")
		if ping {
			fmt.Println()
			fmt.Println("  Connectivity:")
			if err := pingProvider(); err != nil {
				fmt.Printf("    ❌ %v\n", err)
			}
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("ping", false, "check the API key against CoinMarketCap")
}

func pingProvider() error {
	client, err := newClient(nil)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	start := time.Now()
	info, err := client.KeyInfo(ctx)
	if err != nil {
		return keyError(err)
	}
	fmt.Printf("    ✅ reachable in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("    Plan limit:    %d calls/min, %d credits/month\n", info.RateLimitMinute, info.CreditLimitMonthly)
	fmt.Printf("    Usage:         %d credits today, %d this month, %d left\n",
		info.CreditsUsedDay, info.CreditsUsedMonth, info.CreditsLeftMonth)
	if info.RateLimitMinute > 0 && cfg.Provider.RateLimit > info.RateLimitMinute {
		fmt.Printf("    ⚠️  rate_limit %d exceeds the plan's %d calls/min\n", cfg.Provider.RateLimit, info.RateLimitMinute)
	}
	return nil
}
