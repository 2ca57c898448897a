// Package ranking selects the best and worst performers of the market-cap
// universe over one horizon.
package ranking

import (
	"sort"

	"github.com/seenimoa/cryptoreport/pkg/models"
)

const (
	// DefaultUniverse is the market-cap rank cut-off for eligibility.
	DefaultUniverse = 100
	// DefaultTopN is the length of each performer list.
	DefaultTopN = 5
)

// Result holds both performer lists for one horizon.
type Result struct {
	Horizon models.Horizon
	Best    []models.RankingEntry // change_pct descending
	Worst   []models.RankingEntry // change_pct ascending
}

// Engine ranks token records. The zero value is not usable; use New.
type Engine struct {
	universe int
	topN     int
}

// New creates an engine for the given universe size and list length.
// Non-positive values fall back to the defaults.
func New(universe, topN int) *Engine {
	if universe <= 0 {
		universe = DefaultUniverse
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Engine{universe: universe, topN: topN}
}

// Universe returns the market-cap rank cutoff for eligibility.
func (e *Engine) Universe() int { return e.universe }

// TopN returns the maximum length of each list.
func (e *Engine) TopN() int { return e.topN }

// Rank ranks records with the default universe and list length.
func Rank(records []models.TokenRecord, h models.Horizon) Result {
	return New(DefaultUniverse, DefaultTopN).Rank(records, h)
}

// candidate is an eligible record with its input position.
type candidate struct {
	symbol string
	rank   int
	change float64
}

// Rank returns the best and worst performers over h.
//
// Only OK records with a market-cap rank inside the universe and a known
// change for h are eligible. Ties keep input order. The two lists never
// share a symbol: when fewer than 2*topN records are eligible, the best
// list takes the upper half (rounded up) and the worst list the rest.
// Lists are never padded.
func (e *Engine) Rank(records []models.TokenRecord, h models.Horizon) Result {
	res := Result{
		Horizon: h,
		Best:    []models.RankingEntry{},
		Worst:   []models.RankingEntry{},
	}

	eligible := e.eligible(records, h)
	n := len(eligible)
	if n == 0 {
		return res
	}

	bestN, worstN := e.topN, e.topN
	if n < 2*e.topN {
		bestN = (n + 1) / 2
		worstN = n - bestN
	}

	desc := make([]candidate, n)
	copy(desc, eligible)
	sort.SliceStable(desc, func(i, j int) bool { return desc[i].change > desc[j].change })

	asc := make([]candidate, n)
	copy(asc, eligible)
	sort.SliceStable(asc, func(i, j int) bool { return asc[i].change < asc[j].change })

	picked := make(map[string]bool, bestN)
	for _, c := range desc[:bestN] {
		picked[c.symbol] = true
		res.Best = append(res.Best, entry(c, h))
	}
	for _, c := range asc {
		if len(res.Worst) == worstN {
			break
		}
		if picked[c.symbol] {
			continue
		}
		res.Worst = append(res.Worst, entry(c, h))
	}
	return res
}

func (e *Engine) eligible(records []models.TokenRecord, h models.Horizon) []candidate {
	seen := make(map[string]bool, len(records))
	out := make([]candidate, 0, len(records))
	for _, rec := range records {
		if seen[rec.Symbol] {
			continue
		}
		seen[rec.Symbol] = true
		if !rec.OK() {
			continue
		}
		r, ok := rec.Quote.MarketCapRank()
		if !ok || r > e.universe {
			continue
		}
		v, ok := rec.Quote.Change(h)
		if !ok {
			continue
		}
		out = append(out, candidate{symbol: rec.Symbol, rank: r, change: v})
	}
	return out
}

func entry(c candidate, h models.Horizon) models.RankingEntry {
	return models.RankingEntry{
		Symbol:    c.symbol,
		Rank:      c.rank,
		ChangePct: c.change,
		Horizon:   h,
	}
}

// RecordsFromListing wraps listing quotes as OK records so they can be
// ranked alongside tracked tokens.
func RecordsFromListing(quotes []models.TokenQuote) []models.TokenRecord {
	out := make([]models.TokenRecord, 0, len(quotes))
	for i := range quotes {
		q := quotes[i]
		out = append(out, models.TokenRecord{
			Symbol: q.Symbol,
			Quote:  &q,
			Status: models.StatusOK,
		})
	}
	return out
}
