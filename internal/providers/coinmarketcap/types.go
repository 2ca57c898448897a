package coinmarketcap

import (
	"encoding/json"

	"github.com/seenimoa/cryptoreport/internal/change"
)

// --- CoinMarketCap API response types ---

// cmcStatus is the status block every CoinMarketCap response carries,
// including error responses.
type cmcStatus struct {
	Timestamp    string `json:"timestamp"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Elapsed      int    `json:"elapsed"`
	CreditCount  int    `json:"credit_count"`
}

// cmcEnvelope is the outer shape of every response. Data is decoded by
// the caller because its shape differs per endpoint.
type cmcEnvelope struct {
	Status cmcStatus       `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// cmcCoin is one entry of quotes/latest or listings/latest. Rank and the
// quote members stay raw so a single bad field does not sink the entry.
type cmcCoin struct {
	ID      int                                   `json:"id"`
	Name    string                                `json:"name"`
	Symbol  string                                `json:"symbol"`
	Slug    string                                `json:"slug"`
	CMCRank json.RawMessage                       `json:"cmc_rank"`
	Quote   map[string]map[string]json.RawMessage `json:"quote"`
}

// raw converts the entry into the calculator's input using the quote in
// the given currency.
func (c cmcCoin) raw(convert string) change.RawQuote {
	return change.RawQuote{
		Symbol: c.Symbol,
		Name:   c.Name,
		Rank:   c.CMCRank,
		Quote:  c.Quote[convert],
	}
}

// cmcKeyInfo is the data block of /v1/key/info.
type cmcKeyInfo struct {
	Plan struct {
		CreditLimitMonthly      int    `json:"credit_limit_monthly"`
		CreditLimitMonthlyReset string `json:"credit_limit_monthly_reset"`
		RateLimitMinute         int    `json:"rate_limit_minute"`
	} `json:"plan"`
	Usage struct {
		CurrentMinute struct {
			RequestsMade int `json:"requests_made"`
			RequestsLeft int `json:"requests_left"`
		} `json:"current_minute"`
		CurrentDay struct {
			CreditsUsed int `json:"credits_used"`
		} `json:"current_day"`
		CurrentMonth struct {
			CreditsUsed int `json:"credits_used"`
			CreditsLeft int `json:"credits_left"`
		} `json:"current_month"`
	} `json:"usage"`
}

// KeyInfo summarizes the API key's plan and usage.
type KeyInfo struct {
	RateLimitMinute    int    `json:"rate_limit_minute"`
	CreditLimitMonthly int    `json:"credit_limit_monthly"`
	MonthlyReset       string `json:"credit_limit_monthly_reset"`
	RequestsLeftMinute int    `json:"requests_left_minute"`
	CreditsUsedDay     int    `json:"credits_used_day"`
	CreditsUsedMonth   int    `json:"credits_used_month"`
	CreditsLeftMonth   int    `json:"credits_left_month"`
}

func (k cmcKeyInfo) summary() KeyInfo {
	return KeyInfo{
		RateLimitMinute:    k.Plan.RateLimitMinute,
		CreditLimitMonthly: k.Plan.CreditLimitMonthly,
		MonthlyReset:       k.Plan.CreditLimitMonthlyReset,
		RequestsLeftMinute: k.Usage.CurrentMinute.RequestsLeft,
		CreditsUsedDay:     k.Usage.CurrentDay.CreditsUsed,
		CreditsUsedMonth:   k.Usage.CurrentMonth.CreditsUsed,
		CreditsLeftMonth:   k.Usage.CurrentMonth.CreditsLeft,
	}
}
