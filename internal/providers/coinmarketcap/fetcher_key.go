package coinmarketcap

import (
	"context"

	"github.com/seenimoa/cryptoreport/internal/provider"
)

// --- KeyInfo fetcher ---

type keyInfoFetcher struct {
	provider.BaseFetcher
	api *apiClient
}

func newKeyInfoFetcher(api *apiClient, shared *provider.Shared) *keyInfoFetcher {
	return &keyInfoFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelKeyInfo,
			"API key plan and usage from CoinMarketCap",
			nil, nil,
			shared, 0,
		),
		api: api,
	}
}

// Fetch returns the key's KeyInfo.
func (f *keyInfoFetcher) Fetch(ctx context.Context, _ provider.QueryParams) (*provider.FetchResult, error) {
	var info cmcKeyInfo
	err := f.Call(ctx, func(ctx context.Context) error {
		return f.api.get(ctx, pathKeyInfo, nil, &info)
	})
	if err != nil {
		return nil, err
	}
	return newResult(f.ModelType(), info.summary(), false), nil
}
