// Package pipeline runs one report: fetch the tracked tokens, rank the
// market-cap universe and assemble the result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/cryptoreport/internal/config"
	"github.com/seenimoa/cryptoreport/internal/metrics"
	"github.com/seenimoa/cryptoreport/internal/provider"
	"github.com/seenimoa/cryptoreport/internal/ranking"
	"github.com/seenimoa/cryptoreport/internal/report"
	"github.com/seenimoa/cryptoreport/pkg/models"
	"github.com/seenimoa/cryptoreport/pkg/utils"
)

// Options controls a run.
type Options struct {
	Groups      []config.GroupConfig
	Horizons    []models.Horizon
	RankBy      models.Horizon
	Universe    int
	TopN        int
	Concurrency int // parallel quote requests; 1 is sequential
	BatchSize   int // symbols per quote request
}

// OptionsFromConfig builds run options from a validated config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Groups:      cfg.Report.Groups,
		Horizons:    cfg.Horizons(),
		RankBy:      cfg.RankBy(),
		Universe:    cfg.Report.Universe,
		TopN:        cfg.Report.TopN,
		Concurrency: cfg.Fetch.Concurrency,
		BatchSize:   cfg.Fetch.BatchSize,
	}
}

// Runner wires the market-data client, ranking engine and assembler.
type Runner struct {
	opts    Options
	client  provider.MarketDataClient
	engine  *ranking.Engine
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Runner. logger and m may be nil.
func New(opts Options, client provider.MarketDataClient, logger *zap.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if len(opts.Horizons) == 0 {
		opts.Horizons = models.AllHorizons()
	}
	if opts.RankBy == "" {
		opts.RankBy = models.Horizon7d
	}
	return &Runner{
		opts:    opts,
		client:  client,
		engine:  ranking.New(opts.Universe, opts.TopN),
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Run produces one report. Per-token failures are recorded in the report;
// a failed market-cap listing leaves the rankings empty and is logged as a
// warning. Run fails when there is nothing to track, when the provider
// rejects the API key (a config error), or when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (*models.Report, error) {
	log := r.logger.With(zap.String("run_id", uuid.NewString()))

	symbols := r.symbols()
	if len(symbols) == 0 {
		return nil, report.ErrNoTrackedTokens
	}

	start := time.Now()
	log.Info("fetching quotes",
		zap.Int("symbols", len(symbols)),
		zap.Int("batch_size", r.opts.BatchSize),
		zap.Int("concurrency", r.opts.Concurrency))

	fetched, err := r.fetchAll(ctx, symbols)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled: %w", err)
	}
	tracked := r.tracked(fetched, log)

	result, err := r.rank(ctx, log)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled: %w", err)
	}

	rep, err := report.Assemble(tracked, result, r.opts.Horizons, r.now())
	if err != nil {
		return nil, err
	}
	r.metrics.MarkRun(rep.GeneratedAt)

	counts := rep.StatusCounts()
	log.Info("report assembled",
		zap.Int("tracked", len(rep.TrackedTokens)),
		zap.Int("ok", counts[models.StatusOK]),
		zap.Int("not_found", counts[models.StatusNotFound]),
		zap.Int("rate_limited", counts[models.StatusRateLimited]),
		zap.Int("provider_error", counts[models.StatusProviderError]),
		zap.Int("best", len(rep.Top5Best)),
		zap.Int("worst", len(rep.Top5Worst)),
		zap.Duration("elapsed", time.Since(start)))
	return rep, nil
}

// symbols returns each tracked symbol once, in configured order.
func (r *Runner) symbols() []string {
	var all []string
	for _, g := range r.opts.Groups {
		all = append(all, g.Symbols...)
	}
	return utils.UniqueSymbols(all)
}

// fetchAll looks up every symbol, batch by batch. With Concurrency > 1
// batches run on a bounded pool; all workers share the client's limiter.
// A rejected API key stops the fetch: remaining batches are not sent.
func (r *Runner) fetchAll(ctx context.Context, symbols []string) (map[string]models.TokenRecord, error) {
	batches := utils.Chunk(symbols, r.opts.BatchSize)
	results := make([][]models.TokenRecord, len(batches))

	if r.opts.Concurrency == 1 {
		for i, batch := range batches {
			results[i] = r.client.FetchQuotes(ctx, batch)
			if err := rejectedKey(results[i]); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.Concurrency)
		for i, batch := range batches {
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				results[i] = r.client.FetchQuotes(gctx, batch)
				// other per-token failures live on the records
				return rejectedKey(results[i])
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := make(map[string]models.TokenRecord, len(symbols))
	for i, batch := range batches {
		if results[i] == nil {
			continue // skipped after cancellation
		}
		for j, s := range batch {
			out[s] = results[i][j]
		}
	}
	return out, nil
}

// rejectedKey returns a config error when any record failed because the
// provider refused the API key.
func rejectedKey(records []models.TokenRecord) error {
	for _, rec := range records {
		if provider.IsInvalidCredentials(rec.Err) {
			return fmt.Errorf("%w: provider rejected the API key: %w", models.ErrConfig, rec.Err)
		}
	}
	return nil
}

// tracked lays the fetched records out per group, in configured order.
// A symbol listed in two groups appears under both.
func (r *Runner) tracked(fetched map[string]models.TokenRecord, log *zap.Logger) []models.TokenRecord {
	var out []models.TokenRecord
	for _, g := range r.opts.Groups {
		for _, s := range utils.UniqueSymbols(g.Symbols) {
			rec := fetched[s]
			rec.Symbol = s
			rec.Group = g.Name

			r.metrics.ObserveToken(string(rec.Status))
			if rec.Status != models.StatusOK {
				log.Warn("token lookup failed",
					zap.String("group", g.Name),
					zap.String("symbol", s),
					zap.String("status", string(rec.Status)),
					zap.String("error", rec.Error))
			}
			out = append(out, rec)
		}
	}
	return out
}

// rank fetches the market-cap universe and ranks it. A failed listing
// degrades to empty rankings unless the API key was rejected.
func (r *Runner) rank(ctx context.Context, log *zap.Logger) (ranking.Result, error) {
	listing, err := r.client.FetchTop(ctx, r.engine.Universe())
	if provider.IsInvalidCredentials(err) {
		return ranking.Result{}, fmt.Errorf("%w: provider rejected the API key: %w", models.ErrConfig, err)
	}
	if err != nil {
		log.Warn("top-N listing failed, report will have no rankings",
			zap.Int("universe", r.engine.Universe()),
			zap.String("status", string(provider.Classify(err))),
			zap.Error(err))
		r.metrics.RankingDegraded()
		return ranking.Result{
			Horizon: r.opts.RankBy,
			Best:    []models.RankingEntry{},
			Worst:   []models.RankingEntry{},
		}, nil
	}

	result := r.engine.Rank(ranking.RecordsFromListing(listing), r.opts.RankBy)
	log.Debug("ranked universe",
		zap.Int("listed", len(listing)),
		zap.String("horizon", string(r.opts.RankBy)))
	return result, nil
}
