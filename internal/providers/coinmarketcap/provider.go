// Package coinmarketcap implements the CoinMarketCap Pro data provider.
// It serves latest USD quotes by symbol, the market-cap ordered listing and
// API key usage over a REST API authenticated by a single API key.
//
// Basic plan: 30 requests/minute, 10k credits/month.
// Docs: https://coinmarketcap.com/api/documentation/v1/
package coinmarketcap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/cryptoreport/internal/infra"
	"github.com/seenimoa/cryptoreport/internal/provider"
	"github.com/seenimoa/cryptoreport/pkg/models"
	"github.com/seenimoa/cryptoreport/pkg/utils"
)

const (
	providerName = "coinmarketcap"
	credAPIKey   = "api_key"
	headerAPIKey = "X-CMC_PRO_API_KEY"
	convertUSD   = "USD"

	// DefaultBaseURL is the production Pro API endpoint.
	DefaultBaseURL = "https://pro-api.coinmarketcap.com"
	// DefaultTimeout bounds every HTTP request.
	DefaultTimeout = 30 * time.Second
	// DefaultQuoteCacheTTL keeps quotes for the length of a run so a
	// symbol tracked in two groups is fetched once.
	DefaultQuoteCacheTTL = 5 * time.Minute

	pathQuotes   = "/v1/cryptocurrency/quotes/latest"
	pathListings = "/v1/cryptocurrency/listings/latest"
	pathKeyInfo  = "/v1/key/info"
)

// CoinMarketCap status codes that mean the caller is over quota.
const (
	codeKeyInvalid         = 1001
	codeKeyMissing         = 1002
	codeKeyPlanRequired    = 1003
	codeRateLimitMinute    = 1008
	codeRateLimitDaily     = 1009
	codeRateLimitMonthly   = 1010
	codeRateLimitIPAddress = 1011
)

// Options configures a Provider. Zero values select the defaults.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	QuoteCacheTTL time.Duration
	// Shared carries the rate limiter, call policy, metrics and logger.
	// When nil the provider gets its own limiter at the Basic plan quota.
	Shared *provider.Shared
}

// Provider implements provider.MarketDataClient for CoinMarketCap.
type Provider struct {
	provider.BaseProvider
	api *apiClient

	quotes   *quotesFetcher
	listings *listingsFetcher
	keyInfo  *keyInfoFetcher
}

var _ provider.MarketDataClient = (*Provider)(nil)

// New creates a CoinMarketCap provider. Call Init with the API key before
// fetching.
func New(opts Options) *Provider {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.QuoteCacheTTL <= 0 {
		opts.QuoteCacheTTL = DefaultQuoteCacheTTL
	}
	shared := opts.Shared
	if shared == nil {
		shared = provider.NewShared(providerName, infra.NewPerMinute(30), provider.CallPolicy{}, nil, nil)
	}

	api := &apiClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    &http.Client{Timeout: opts.Timeout},
	}

	return &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"CoinMarketCap - cryptocurrency quotes and market-cap rankings",
			"https://coinmarketcap.com/api",
			[]provider.ProviderCredential{
				{
					Name:        credAPIKey,
					Description: "CoinMarketCap Pro API key",
					Required:    true,
					EnvVar:      "CMC_API_KEY",
				},
			},
			provider.ModelCryptoQuote,
			provider.ModelCryptoListing,
			provider.ModelKeyInfo,
		),
		api:      api,
		quotes:   newQuotesFetcher(api, shared, opts.QuoteCacheTTL),
		listings: newListingsFetcher(api, shared),
		keyInfo:  newKeyInfoFetcher(api, shared),
	}
}

// Init stores the API key.
func (p *Provider) Init(credentials map[string]string) error {
	if err := p.BaseProvider.Init(credentials); err != nil {
		return err
	}
	p.api.apiKey = strings.TrimSpace(credentials[credAPIKey])
	return nil
}

// Fetcher returns the fetcher serving model, or nil.
func (p *Provider) Fetcher(model provider.ModelType) provider.Fetcher {
	switch model {
	case provider.ModelCryptoQuote:
		return p.quotes
	case provider.ModelCryptoListing:
		return p.listings
	case provider.ModelKeyInfo:
		return p.keyInfo
	}
	return nil
}

// FetchQuote looks up one symbol. It never fails: the outcome is recorded
// in the returned record's Status.
func (p *Provider) FetchQuote(ctx context.Context, symbol string) models.TokenRecord {
	return p.FetchQuotes(ctx, []string{symbol})[0]
}

// FetchQuotes looks up symbols in as few requests as possible and returns
// one record per input symbol, in input order.
func (p *Provider) FetchQuotes(ctx context.Context, symbols []string) []models.TokenRecord {
	out := make([]models.TokenRecord, len(symbols))
	if len(symbols) == 0 {
		return out
	}

	unique := utils.UniqueSymbols(symbols)
	bySymbol := make(map[string]models.TokenRecord, len(unique))
	if len(unique) > 0 {
		res, err := p.quotes.Fetch(ctx, provider.QueryParams{
			provider.ParamSymbol:  strings.Join(unique, ","),
			provider.ParamConvert: convertUSD,
		})
		if err != nil {
			for _, s := range unique {
				bySymbol[s] = provider.FailedRecord(s, err)
			}
		} else {
			for _, rec := range res.Data.([]models.TokenRecord) {
				bySymbol[rec.Symbol] = rec
			}
		}
	}

	for i, s := range symbols {
		norm := utils.NormalizeSymbol(s)
		rec, ok := bySymbol[norm]
		if !ok {
			rec = provider.FailedRecord(s, fmt.Errorf("%w: empty symbol", provider.ErrNotFound))
		}
		out[i] = rec
	}
	return out
}

// FetchTop returns up to limit tokens from the market-cap listing, sorted
// ascending by rank.
func (p *Provider) FetchTop(ctx context.Context, limit int) ([]models.TokenQuote, error) {
	res, err := p.listings.Fetch(ctx, provider.QueryParams{
		provider.ParamLimit:   fmt.Sprint(limit),
		provider.ParamConvert: convertUSD,
	})
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap listings: %w", err)
	}
	return res.Data.([]models.TokenQuote), nil
}

// KeyInfo reports the API key's plan limits and current usage.
func (p *Provider) KeyInfo(ctx context.Context) (KeyInfo, error) {
	res, err := p.keyInfo.Fetch(ctx, provider.QueryParams{})
	if err != nil {
		return KeyInfo{}, fmt.Errorf("coinmarketcap key info: %w", err)
	}
	return res.Data.(KeyInfo), nil
}

// Ping checks connectivity and that the API key is accepted.
func (p *Provider) Ping(ctx context.Context) error {
	if _, err := p.KeyInfo(ctx); err != nil {
		return fmt.Errorf("coinmarketcap ping: %w", err)
	}
	return nil
}

// --- Shared helpers ---

// apiClient issues authenticated GETs and unwraps the response envelope.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// get requests path and decodes the envelope's data block into dest.
func (c *apiClient) get(ctx context.Context, path string, query url.Values, dest any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	body, status, err := infra.DoGetWith(ctx, c.http, u, map[string]string{headerAPIKey: c.apiKey})
	if err != nil {
		return mapHTTPError(err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env cmcEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parse CoinMarketCap JSON: %w", err)
	}
	if env.Status.ErrorCode != 0 {
		return classifyAPIError(&provider.ErrAPI{
			Provider:   providerName,
			HTTPStatus: status,
			Code:       env.Status.ErrorCode,
			Message:    env.Status.ErrorMessage,
		})
	}
	if dest == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("parse CoinMarketCap data: %w", err)
	}
	return nil
}

// mapHTTPError turns a non-2xx response into a provider error, using the
// status block of the body when there is one.
func mapHTTPError(err error) error {
	var httpErr *infra.ErrHTTP
	if !errors.As(err, &httpErr) {
		return err
	}

	var env cmcEnvelope
	if json.Unmarshal(httpErr.Body, &env) == nil && env.Status.ErrorCode != 0 {
		return classifyAPIError(&provider.ErrAPI{
			Provider:   providerName,
			HTTPStatus: httpErr.StatusCode,
			Code:       env.Status.ErrorCode,
			Message:    env.Status.ErrorMessage,
		})
	}
	if httpErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", provider.ErrRateLimited, err)
	}
	return err
}

func classifyAPIError(apiErr *provider.ErrAPI) error {
	switch {
	case apiErr.HTTPStatus == http.StatusTooManyRequests,
		apiErr.Code >= codeRateLimitMinute && apiErr.Code <= codeRateLimitIPAddress:
		return fmt.Errorf("%w: %w", provider.ErrRateLimited, apiErr)
	case apiErr.Code == codeKeyInvalid, apiErr.Code == codeKeyMissing, apiErr.Code == codeKeyPlanRequired,
		apiErr.HTTPStatus == http.StatusUnauthorized:
		return &provider.ErrInvalidCredentials{Provider: providerName, Detail: apiErr.Message}
	case apiErr.HTTPStatus == http.StatusBadRequest && isInvalidSymbol(apiErr.Message):
		return fmt.Errorf("%w: %w", provider.ErrNotFound, apiErr)
	}
	return apiErr
}

// isInvalidSymbol matches messages like `Invalid value for "symbol": "XYZ"`.
func isInvalidSymbol(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "invalid value") && strings.Contains(msg, "symbol")
}

// newResult creates a FetchResult.
func newResult(model provider.ModelType, data any, cached bool) *provider.FetchResult {
	return &provider.FetchResult{
		Model:     model,
		Data:      data,
		FetchedAt: time.Now(),
		Cached:    cached,
	}
}

func logDecodeFailure(logger *zap.Logger, what string, err error) {
	logger.Debug("skipping malformed CoinMarketCap entry", zap.String("entry", what), zap.Error(err))
}
