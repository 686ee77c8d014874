package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/config"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/metrics"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/regime"
)

// contextPayload is the context provider's wire shape
type contextPayload struct {
	VolatilityIndex float64   `json:"volatility_index"`
	Trend           string    `json:"trend"`
	Bias            float64   `json:"bias"`
	Regime          string    `json:"regime"`
	Timestamp       time.Time `json:"timestamp"`
}

// HTTPContextProvider fetches the current market context from one HTTP
// endpoint through the shared fetch client
type HTTPContextProvider struct {
	name   string
	url    string
	client *fetchClient
}

// NewHTTPContextProvider creates a context provider for the given endpoint
func NewHTTPContextProvider(name, url string, cfg *config.ProviderConfig, registry *metrics.Registry) *HTTPContextProvider {
	return &HTTPContextProvider{
		name:   name,
		url:    url,
		client: newFetchClient(name, cfg, registry),
	}
}

// FetchContext retrieves and validates one market context snapshot
func (p *HTTPContextProvider) FetchContext(ctx context.Context) (*domain.ContextData, error) {
	var payload contextPayload
	if err := p.client.getJSON(ctx, p.url, &payload); err != nil {
		return nil, err
	}

	trend, err := parseTrend(payload.Trend)
	if err != nil {
		return nil, newProviderError(p.name, CodeDecode, err)
	}
	regime, err := parseRegime(payload.Regime)
	if err != nil {
		return nil, newProviderError(p.name, CodeDecode, err)
	}

	data := &domain.ContextData{
		VolatilityIndex: payload.VolatilityIndex,
		Trend:           trend,
		Bias:            payload.Bias,
		Regime:          regime,
		Timestamp:       payload.Timestamp,
	}
	if data.Timestamp.IsZero() {
		data.Timestamp = time.Now()
	}
	return data, nil
}

func parseTrend(raw string) (domain.Trend, error) {
	switch domain.Trend(strings.ToLower(raw)) {
	case domain.TrendBullish:
		return domain.TrendBullish, nil
	case domain.TrendBearish:
		return domain.TrendBearish, nil
	case domain.TrendNeutral:
		return domain.TrendNeutral, nil
	default:
		return "", fmt.Errorf("unrecognized trend %q", raw)
	}
}

func parseRegime(raw string) (domain.VolRegime, error) {
	switch domain.VolRegime(strings.ToLower(raw)) {
	case domain.RegimeLow:
		return domain.RegimeLow, nil
	case domain.RegimeNormal:
		return domain.RegimeNormal, nil
	case domain.RegimeHigh:
		return domain.RegimeHigh, nil
	default:
		return "", fmt.Errorf("unrecognized regime %q", raw)
	}
}

// ContextFallbackChain tries an ordered list of context providers and
// returns the first success. All failures aggregate into one error carrying
// the last cause.
type ContextFallbackChain struct {
	providers []namedFetcher
}

type namedFetcher struct {
	name    string
	fetcher regime.ContextFetcher
}

// NewContextFallbackChain builds the chain in priority order
func NewContextFallbackChain() *ContextFallbackChain {
	return &ContextFallbackChain{}
}

// Add appends a provider to the end of the chain
func (c *ContextFallbackChain) Add(name string, fetcher regime.ContextFetcher) *ContextFallbackChain {
	c.providers = append(c.providers, namedFetcher{name: name, fetcher: fetcher})
	return c
}

// FetchContext tries each provider in order and returns the first success
func (c *ContextFallbackChain) FetchContext(ctx context.Context) (*domain.ContextData, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("no context providers configured")
	}

	var lastErr error
	for _, p := range c.providers {
		data, err := p.fetcher.FetchContext(ctx)
		if err == nil {
			return data, nil
		}
		lastErr = err
		log.Warn().
			Str("provider", p.name).
			Err(err).
			Msg("context provider failed, trying next in chain")
	}
	return nil, fmt.Errorf("all %d context providers failed: %w", len(c.providers), lastErr)
}
