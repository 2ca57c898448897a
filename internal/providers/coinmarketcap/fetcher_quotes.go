package coinmarketcap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/cryptoreport/internal/change"
	"github.com/seenimoa/cryptoreport/internal/provider"
	"github.com/seenimoa/cryptoreport/pkg/models"
	"github.com/seenimoa/cryptoreport/pkg/utils"
)

// maxSymbolsPerRequest caps the symbols sent in one quotes request.
const maxSymbolsPerRequest = 100

// --- CryptoQuote fetcher ---

type quotesFetcher struct {
	provider.BaseFetcher
	api *apiClient
}

func newQuotesFetcher(api *apiClient, shared *provider.Shared, cacheTTL time.Duration) *quotesFetcher {
	return &quotesFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelCryptoQuote,
			"Latest quotes by symbol from CoinMarketCap",
			[]string{provider.ParamSymbol},
			[]string{provider.ParamConvert},
			shared, cacheTTL,
		),
		api: api,
	}
}

// Fetch returns one models.TokenRecord per distinct symbol in the
// comma-separated symbol parameter. Per-symbol failures are recorded on
// the records, not returned.
func (f *quotesFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	convert := params[provider.ParamConvert]
	if convert == "" {
		convert = convertUSD
	}
	symbols := utils.UniqueSymbols(strings.Split(params[provider.ParamSymbol], ","))
	if len(symbols) == 0 {
		return nil, &provider.ErrMissingParam{Param: provider.ParamSymbol}
	}

	found := make(map[string]models.TokenRecord, len(symbols))
	var missing []string
	for _, s := range symbols {
		if cached, ok := f.CacheGet(f.cacheKey(s, convert)); ok {
			found[s] = cached.(models.TokenRecord)
			continue
		}
		missing = append(missing, s)
	}

	for start := 0; start < len(missing); start += maxSymbolsPerRequest {
		end := min(start+maxSymbolsPerRequest, len(missing))
		for s, rec := range f.fetchBatch(ctx, missing[start:end], convert) {
			found[s] = rec
			if rec.Status == models.StatusOK || rec.Status == models.StatusNotFound {
				f.CacheSet(f.cacheKey(s, convert), rec)
			}
		}
	}

	records := make([]models.TokenRecord, len(symbols))
	for i, s := range symbols {
		records[i] = found[s]
	}
	return newResult(f.ModelType(), records, len(missing) == 0), nil
}

func (f *quotesFetcher) cacheKey(symbol, convert string) string {
	return provider.CacheKey(f.ModelType(), provider.QueryParams{
		provider.ParamSymbol:  symbol,
		provider.ParamConvert: convert,
	})
}

// fetchBatch issues one request for symbols. If the API rejects the whole
// batch because one symbol is unknown, each symbol is retried alone.
func (f *quotesFetcher) fetchBatch(ctx context.Context, symbols []string, convert string) map[string]models.TokenRecord {
	out := make(map[string]models.TokenRecord, len(symbols))

	var data map[string]json.RawMessage
	err := f.Call(ctx, func(ctx context.Context) error {
		data = nil
		return f.api.get(ctx, pathQuotes, url.Values{
			"symbol":       {strings.Join(symbols, ",")},
			"convert":      {convert},
			"skip_invalid": {"true"},
		}, &data)
	})
	if err != nil {
		if len(symbols) > 1 && errors.Is(err, provider.ErrNotFound) {
			f.Logger().Debug("batch rejected for unknown symbol, fetching individually",
				zap.Strings("symbols", symbols))
			for _, s := range symbols {
				for k, rec := range f.fetchBatch(ctx, []string{s}, convert) {
					out[k] = rec
				}
			}
			return out
		}
		for _, s := range symbols {
			out[s] = provider.FailedRecord(s, err)
		}
		return out
	}

	entries := make(map[string]json.RawMessage, len(data))
	for k, v := range data {
		entries[utils.NormalizeSymbol(k)] = v
	}
	for _, s := range symbols {
		entry, ok := entries[s]
		if !ok || isJSONNull(entry) {
			out[s] = provider.FailedRecord(s, fmt.Errorf("%w: %s", provider.ErrNotFound, s))
			continue
		}
		out[s] = recordFromEntry(s, entry, convert)
	}
	return out
}

// recordFromEntry decodes one data entry. The v1 API returns an object
// per symbol; an array (several coins sharing a ticker) resolves to its
// first element.
func recordFromEntry(symbol string, entry json.RawMessage, convert string) models.TokenRecord {
	var coin cmcCoin
	if trimmed := bytes.TrimSpace(entry); len(trimmed) > 0 && trimmed[0] == '[' {
		var coins []cmcCoin
		if err := json.Unmarshal(entry, &coins); err != nil {
			return provider.FailedRecord(symbol, fmt.Errorf("decode %s: %w", symbol, err))
		}
		if len(coins) == 0 {
			return provider.FailedRecord(symbol, fmt.Errorf("%w: %s", provider.ErrNotFound, symbol))
		}
		coin = coins[0]
	} else if err := json.Unmarshal(entry, &coin); err != nil {
		return provider.FailedRecord(symbol, fmt.Errorf("decode %s: %w", symbol, err))
	}

	raw := coin.raw(convert)
	if raw.Symbol == "" {
		raw.Symbol = symbol
	}
	if err := change.Validate(raw); err != nil {
		return provider.FailedRecord(symbol, err)
	}

	q := change.Compute(raw)
	return models.TokenRecord{
		Symbol: symbol,
		Quote:  &q,
		Status: models.StatusOK,
	}
}

func isJSONNull(b json.RawMessage) bool {
	return string(bytes.TrimSpace(b)) == "null"
}
