// Package provider defines the market-data client contract used by the
// report pipeline, along with the shared fetcher plumbing (rate limiting,
// caching, retries, circuit breaking) that concrete providers embed.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/seenimoa/cryptoreport/internal/infra"
	"github.com/seenimoa/cryptoreport/pkg/models"
)

// ProviderCredential describes a required credential for a provider.
type ProviderCredential struct {
	Name        string `json:"name"`        // e.g., "api_key"
	Description string `json:"description"` // e.g., "CoinMarketCap Pro API key"
	Required    bool   `json:"required"`
	EnvVar      string `json:"env_var"` // e.g., "CMC_API_KEY"
}

// ProviderInfo holds metadata about a provider.
type ProviderInfo struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Website     string               `json:"website"`
	Credentials []ProviderCredential `json:"credentials"`
	Models      []ModelType          `json:"models"`
}

// MarketDataClient is what the pipeline needs from a market-data provider.
//
// FetchQuote and FetchQuotes never fail as a whole: every requested symbol
// comes back as a TokenRecord whose Status says what happened. FetchTop is
// a single request and returns its error to the caller.
type MarketDataClient interface {
	Info() ProviderInfo
	FetchQuote(ctx context.Context, symbol string) models.TokenRecord
	FetchQuotes(ctx context.Context, symbols []string) []models.TokenRecord
	FetchTop(ctx context.Context, limit int) ([]models.TokenQuote, error)
	Ping(ctx context.Context) error
}

// QueryParams is the generic query parameter map passed to fetchers.
type QueryParams map[string]string

// QueryParamKey constants for commonly used query parameters.
const (
	ParamSymbol  = "symbol" // comma-separated for batch quotes
	ParamLimit   = "limit"
	ParamStart   = "start"
	ParamConvert = "convert"
	ParamSortBy  = "sort_by"
	ParamSortDir = "sort_dir"
)

// FetchResult wraps a fetcher result with metadata.
type FetchResult struct {
	Model     ModelType `json:"model"`
	Data      any       `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
	Cached    bool      `json:"cached"`
}

// Fetcher is the interface for fetching a specific data type.
type Fetcher interface {
	ModelType() ModelType
	Description() string
	RequiredParams() []string
	OptionalParams() []string
	Fetch(ctx context.Context, params QueryParams) (*FetchResult, error)
}

// --- Errors ---

var (
	// ErrNotFound is returned when the provider does not know a symbol.
	ErrNotFound = errors.New("symbol not found")
	// ErrRateLimited is returned when the provider rejected the call for quota reasons.
	ErrRateLimited = errors.New("rate limited by provider")
)

// ErrMissingParam is returned when a required query parameter is missing.
type ErrMissingParam struct {
	Param string
}

func (e *ErrMissingParam) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Param)
}

// ErrInvalidCredentials is returned when provider credentials are invalid.
type ErrInvalidCredentials struct {
	Provider string
	Detail   string
}

func (e *ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("invalid credentials for provider %q: %s", e.Provider, e.Detail)
}

// ErrAPI is an error reported inside a provider's response envelope.
type ErrAPI struct {
	Provider   string
	HTTPStatus int
	Code       int
	Message    string
}

func (e *ErrAPI) Error() string {
	return fmt.Sprintf("%s API error %d (HTTP %d): %s", e.Provider, e.Code, e.HTTPStatus, e.Message)
}

// ValidateParams checks that all required parameters are present in params.
func ValidateParams(params QueryParams, required []string) error {
	for _, key := range required {
		if v, ok := params[key]; !ok || v == "" {
			return &ErrMissingParam{Param: key}
		}
	}
	return nil
}

// Classify maps a fetch error to the per-token status recorded in reports.
func Classify(err error) models.FetchStatus {
	if err == nil {
		return models.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return models.StatusNotFound
	}
	if errors.Is(err, ErrRateLimited) {
		return models.StatusRateLimited
	}
	var httpErr *infra.ErrHTTP
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return models.StatusRateLimited
	}
	return models.StatusProviderError
}

// FailedRecord builds the record for a symbol whose lookup failed.
func FailedRecord(symbol string, err error) models.TokenRecord {
	return models.TokenRecord{
		Symbol: symbol,
		Status: Classify(err),
		Error:  err.Error(),
		Err:    err,
	}
}

// IsInvalidCredentials reports whether err means the provider rejected
// the API key. No later request can succeed after such an error.
func IsInvalidCredentials(err error) bool {
	var credErr *ErrInvalidCredentials
	return errors.As(err, &credErr)
}
