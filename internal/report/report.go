// Package report assembles the per-run Report and renders it as JSON, CSV
// and a console summary.
package report

import (
	"fmt"
	"time"

	"github.com/seenimoa/cryptoreport/internal/ranking"
	"github.com/seenimoa/cryptoreport/pkg/models"
)

// ErrNoTrackedTokens is returned by Assemble when there is nothing to report.
var ErrNoTrackedTokens = fmt.Errorf("%w: no tracked tokens", models.ErrConfig)

// Assemble merges tracked token records and a ranking result into a
// Report. It is deterministic for fixed inputs and now (truncated to the
// second so every output format carries the same timestamp), and the returned
// Report shares no memory with its arguments.
func Assemble(tracked []models.TokenRecord, result ranking.Result, horizons []models.Horizon, now time.Time) (*models.Report, error) {
	if len(tracked) == 0 {
		return nil, ErrNoTrackedTokens
	}

	rep := &models.Report{
		GeneratedAt:   now.UTC().Truncate(time.Second),
		Horizons:      append([]models.Horizon(nil), horizons...),
		RankedBy:      result.Horizon,
		TrackedTokens: make([]models.TokenRecord, len(tracked)),
		Top5Best:      append([]models.RankingEntry{}, result.Best...),
		Top5Worst:     append([]models.RankingEntry{}, result.Worst...),
	}
	for i, rec := range tracked {
		rep.TrackedTokens[i] = copyRecord(rec)
	}
	return rep, nil
}

func copyRecord(rec models.TokenRecord) models.TokenRecord {
	if rec.Quote == nil {
		return rec
	}
	q := *rec.Quote
	q.Rank = clonePtr(q.Rank)
	q.Change7d = clonePtr(q.Change7d)
	q.Change30d = clonePtr(q.Change30d)
	q.Change90d = clonePtr(q.Change90d)
	q.Change1y = clonePtr(q.Change1y)
	rec.Quote = &q
	return rec
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
