package coinmarketcap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/seenimoa/cryptoreport/internal/change"
	"github.com/seenimoa/cryptoreport/internal/provider"
	"github.com/seenimoa/cryptoreport/pkg/models"
)

// maxListingLimit is the largest page the listings endpoint serves.
const maxListingLimit = 5000

// --- CryptoListing fetcher ---

type listingsFetcher struct {
	provider.BaseFetcher
	api *apiClient
}

func newListingsFetcher(api *apiClient, shared *provider.Shared) *listingsFetcher {
	return &listingsFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelCryptoListing,
			"Market-cap ordered listing from CoinMarketCap",
			[]string{provider.ParamLimit},
			[]string{provider.ParamConvert},
			shared, 0,
		),
		api: api,
	}
}

// Fetch returns []models.TokenQuote sorted ascending by rank, unranked
// entries last, at most limit long.
func (f *listingsFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	limit, err := strconv.Atoi(params[provider.ParamLimit])
	if err != nil || limit < 1 || limit > maxListingLimit {
		return nil, fmt.Errorf("invalid %s %q: want 1..%d", provider.ParamLimit, params[provider.ParamLimit], maxListingLimit)
	}
	convert := params[provider.ParamConvert]
	if convert == "" {
		convert = convertUSD
	}

	var data []json.RawMessage
	err = f.Call(ctx, func(ctx context.Context) error {
		data = nil
		return f.api.get(ctx, pathListings, url.Values{
			"start":   {"1"},
			"limit":   {strconv.Itoa(limit)},
			"sort":    {"market_cap"},
			"convert": {convert},
		}, &data)
	})
	if err != nil {
		return nil, err
	}

	quotes := make([]models.TokenQuote, 0, len(data))
	for i, entry := range data {
		var coin cmcCoin
		if err := json.Unmarshal(entry, &coin); err != nil {
			logDecodeFailure(f.Logger(), fmt.Sprintf("listing[%d]", i), err)
			continue
		}
		raw := coin.raw(convert)
		if err := change.Validate(raw); err != nil {
			logDecodeFailure(f.Logger(), fmt.Sprintf("listing[%d]", i), err)
			continue
		}
		quotes = append(quotes, change.Compute(raw))
	}

	sortByRank(quotes)
	if len(quotes) > limit {
		quotes = quotes[:limit]
	}
	return newResult(f.ModelType(), quotes, false), nil
}

// sortByRank orders quotes ascending by rank, keeping the response order
// for equal ranks and putting unranked quotes last.
func sortByRank(quotes []models.TokenQuote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		ri, iok := quotes[i].MarketCapRank()
		rj, jok := quotes[j].MarketCapRank()
		if iok != jok {
			return iok
		}
		return iok && ri < rj
	})
}
