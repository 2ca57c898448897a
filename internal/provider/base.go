package provider

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seenimoa/cryptoreport/internal/infra"
	"github.com/seenimoa/cryptoreport/internal/metrics"
)

// CallPolicy controls how a fetcher issues provider requests. The zero
// value makes a single attempt with no circuit breaker.
type CallPolicy struct {
	// MaxRetries is the number of extra attempts after a retryable failure.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// BreakerFailures opens the circuit after this many consecutive
	// failed requests. Zero disables the breaker.
	BreakerFailures int
	// BreakerTimeout is how long the circuit stays open before probing.
	BreakerTimeout time.Duration
}

// Shared holds what every fetcher of one provider instance shares: the
// rate limiter (one quota per API key), the circuit breaker, metrics and
// the logger.
type Shared struct {
	Limiter *infra.RateLimiter
	Policy  CallPolicy
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	breaker *gobreaker.CircuitBreaker
}

// NewShared builds the shared call plumbing for a provider.
func NewShared(name string, limiter *infra.RateLimiter, policy CallPolicy, m *metrics.Metrics, logger *zap.Logger) *Shared {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Shared{
		Limiter: limiter,
		Policy:  policy,
		Metrics: m,
		Logger:  logger,
	}
	if policy.BreakerFailures > 0 {
		timeout := policy.BreakerTimeout
		if timeout <= 0 {
			timeout = time.Minute
		}
		threshold := uint32(policy.BreakerFailures)
		s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
				m.SetBreakerOpen(name, to == gobreaker.StateOpen)
			},
		})
	}
	return s
}

// BaseFetcher provides common functionality for fetcher implementations.
// Embed this in concrete fetchers to get caching, rate limiting, retries
// and circuit breaking.
type BaseFetcher struct {
	model       ModelType
	description string
	required    []string
	optional    []string
	cache       *infra.Cache
	shared      *Shared
}

// NewBaseFetcher creates a base fetcher. cacheTTL of zero disables caching.
func NewBaseFetcher(model ModelType, desc string, required, optional []string, shared *Shared, cacheTTL time.Duration) BaseFetcher {
	b := BaseFetcher{
		model:       model,
		description: desc,
		required:    required,
		optional:    optional,
		shared:      shared,
	}
	if cacheTTL > 0 {
		b.cache = infra.NewCache(cacheTTL)
	}
	return b
}

func (b *BaseFetcher) ModelType() ModelType     { return b.model }
func (b *BaseFetcher) Description() string      { return b.description }
func (b *BaseFetcher) RequiredParams() []string { return b.required }
func (b *BaseFetcher) OptionalParams() []string { return b.optional }

// Logger returns the provider's logger.
func (b *BaseFetcher) Logger() *zap.Logger { return b.shared.Logger }

// CacheGet retrieves a value from the fetcher's cache.
func (b *BaseFetcher) CacheGet(key string) (any, bool) {
	if b.cache == nil {
		return nil, false
	}
	return b.cache.Get(key)
}

// CacheSet stores a value in the fetcher's cache.
func (b *BaseFetcher) CacheSet(key string, value any) {
	if b.cache == nil {
		return
	}
	b.cache.Set(key, value)
}

// Call runs one provider request under the fetcher's policy. Every attempt
// first waits for a rate limiter slot, so a retried request is paced like
// any other. NotFound and non-429 client errors are never retried.
func (b *BaseFetcher) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := func() error {
		err := b.attempt(ctx, fn)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if b.shared.Policy.MaxRetries <= 0 {
		return unwrapPermanent(attempt())
	}

	bo := backoff.NewExponentialBackOff()
	if b.shared.Policy.InitialBackoff > 0 {
		bo.InitialInterval = b.shared.Policy.InitialBackoff
	}
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(b.shared.Policy.MaxRetries)), ctx)

	return backoff.RetryNotify(attempt, policy, func(err error, d time.Duration) {
		b.shared.Logger.Info("provider request failed, retrying",
			zap.String("model", string(b.model)),
			zap.Duration("backoff", d),
			zap.Error(err))
	})
}

func (b *BaseFetcher) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	// An open circuit rejects without sending, so it must not spend a slot.
	if b.shared.breaker != nil && b.shared.breaker.State() == gobreaker.StateOpen {
		return gobreaker.ErrOpenState
	}

	waitStart := time.Now()
	if err := b.shared.Limiter.Wait(ctx); err != nil {
		return err
	}
	b.shared.Metrics.ObserveLimiterWait(time.Since(waitStart))

	start := time.Now()
	var err error
	if b.shared.breaker == nil {
		err = fn(ctx)
	} else {
		err = b.runBreaker(ctx, fn)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return err
	}
	b.shared.Metrics.ObserveRequest(string(b.model), string(Classify(err)), time.Since(start))
	return err
}

// runBreaker executes fn inside the circuit breaker. An unknown symbol is
// a successful round trip as far as the breaker is concerned.
func (b *BaseFetcher) runBreaker(ctx context.Context, fn func(ctx context.Context) error) error {
	res, err := b.shared.breaker.Execute(func() (interface{}, error) {
		err := fn(ctx)
		if errors.Is(err, ErrNotFound) {
			return err, nil
		}
		return nil, err
	})
	if err != nil {
		return err
	}
	if notFound, ok := res.(error); ok {
		return notFound
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *ErrAPI
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus >= 500
	}
	var httpErr *infra.ErrHTTP
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return !IsInvalidCredentials(err)
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// CacheKey builds a cache key from model type and query parameters.
func CacheKey(model ModelType, params QueryParams) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(string(model))
	for _, k := range keys {
		sb.WriteString(":" + k + "=" + params[k])
	}
	return sb.String()
}

// BaseProvider provides common functionality for provider implementations.
type BaseProvider struct {
	info        ProviderInfo
	credentials map[string]string
}

// NewBaseProvider creates a base provider.
func NewBaseProvider(name, description, website string, creds []ProviderCredential, models ...ModelType) BaseProvider {
	return BaseProvider{
		info: ProviderInfo{
			Name:        name,
			Description: description,
			Website:     website,
			Credentials: creds,
			Models:      models,
		},
		credentials: make(map[string]string),
	}
}

func (bp *BaseProvider) Info() ProviderInfo { return bp.info }

// Init validates and stores credentials.
func (bp *BaseProvider) Init(credentials map[string]string) error {
	for _, cred := range bp.info.Credentials {
		if cred.Required {
			val, ok := credentials[cred.Name]
			if !ok || strings.TrimSpace(val) == "" {
				return &ErrInvalidCredentials{
					Provider: bp.info.Name,
					Detail:   "missing required credential: " + cred.Name,
				}
			}
		}
	}
	bp.credentials = credentials
	return nil
}

// Credential returns a stored credential value.
func (bp *BaseProvider) Credential(name string) string {
	return bp.credentials[name]
}
