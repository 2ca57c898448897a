package models

import "time"

// Report is the complete output of one run. It is assembled once and not
// modified after it is handed to the writers.
type Report struct {
	GeneratedAt   time.Time      `json:"generated_at"`
	Horizons      []Horizon      `json:"horizons"`
	RankedBy      Horizon        `json:"ranked_by"`
	TrackedTokens []TokenRecord  `json:"tracked_tokens"`
	Top5Best      []RankingEntry `json:"top5_best"`
	Top5Worst     []RankingEntry `json:"top5_worst"`
}

// StatusCounts tallies tracked tokens by fetch status.
func (r *Report) StatusCounts() map[FetchStatus]int {
	counts := make(map[FetchStatus]int, 4)
	for _, rec := range r.TrackedTokens {
		counts[rec.Status]++
	}
	return counts
}
