package models

import "encoding/json"

// TokenQuote is a normalized quote for one token from one fetch.
// Optional values are nil when the provider did not supply them; a nil
// change is "unknown", which is different from a 0% change.
type TokenQuote struct {
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	Rank      *int     `json:"rank"`
	PriceUSD  float64  `json:"price_usd"`
	Change7d  *float64 `json:"pct_change_7d"`
	Change30d *float64 `json:"pct_change_30d"`
	Change90d *float64 `json:"pct_change_90d"`
	Change1y  *float64 `json:"pct_change_1y"`
}

// Change returns the percentage change for h and whether it is known.
func (q TokenQuote) Change(h Horizon) (float64, bool) {
	var v *float64
	switch h {
	case Horizon7d:
		v = q.Change7d
	case Horizon30d:
		v = q.Change30d
	case Horizon90d:
		v = q.Change90d
	case Horizon1y:
		v = q.Change1y
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// MarketCapRank returns the market-cap rank and whether it is known.
func (q TokenQuote) MarketCapRank() (int, bool) {
	if q.Rank == nil {
		return 0, false
	}
	return *q.Rank, true
}

// TokenRecord is the result of looking up one requested symbol.
// Quote is only set when Status is StatusOK.
type TokenRecord struct {
	Symbol string
	Group  string
	Quote  *TokenQuote
	Status FetchStatus
	Error  string

	// Err is the lookup failure behind a non-OK status. Not serialized.
	Err error
}

// OK reports whether the lookup succeeded.
func (r TokenRecord) OK() bool {
	return r.Status == StatusOK && r.Quote != nil
}

// trackedTokenJSON is the flat wire shape of a TokenRecord. Every optional
// field is emitted as null when absent.
type trackedTokenJSON struct {
	Symbol    string      `json:"symbol"`
	Name      *string     `json:"name"`
	Group     string      `json:"group,omitempty"`
	Status    FetchStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
	Rank      *int        `json:"rank"`
	PriceUSD  *float64    `json:"price_usd"`
	Change7d  *float64    `json:"pct_change_7d"`
	Change30d *float64    `json:"pct_change_30d"`
	Change90d *float64    `json:"pct_change_90d"`
	Change1y  *float64    `json:"pct_change_1y"`
}

// MarshalJSON flattens the quote into the record.
func (r TokenRecord) MarshalJSON() ([]byte, error) {
	out := trackedTokenJSON{
		Symbol: r.Symbol,
		Group:  r.Group,
		Status: r.Status,
		Error:  r.Error,
	}
	if q := r.Quote; q != nil {
		name := q.Name
		price := q.PriceUSD
		out.Name = &name
		out.Rank = q.Rank
		out.PriceUSD = &price
		out.Change7d = q.Change7d
		out.Change30d = q.Change30d
		out.Change90d = q.Change90d
		out.Change1y = q.Change1y
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the flat wire shape produced by MarshalJSON.
func (r *TokenRecord) UnmarshalJSON(data []byte) error {
	var in trackedTokenJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = TokenRecord{
		Symbol: in.Symbol,
		Group:  in.Group,
		Status: in.Status,
		Error:  in.Error,
	}
	if in.PriceUSD != nil {
		q := &TokenQuote{
			Symbol:    in.Symbol,
			Rank:      in.Rank,
			PriceUSD:  *in.PriceUSD,
			Change7d:  in.Change7d,
			Change30d: in.Change30d,
			Change90d: in.Change90d,
			Change1y:  in.Change1y,
		}
		if in.Name != nil {
			q.Name = *in.Name
		}
		r.Quote = q
	}
	return nil
}

// RankingEntry is one row of a best/worst performer list.
type RankingEntry struct {
	Symbol    string  `json:"symbol"`
	Rank      int     `json:"rank"`
	ChangePct float64 `json:"change_pct"`
	Horizon   Horizon `json:"horizon"`
}
