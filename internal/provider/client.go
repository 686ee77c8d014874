package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/config"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/metrics"
)

// fetchClient wraps an HTTP client with the shared external-fetch behavior:
// per-attempt timeout, token-bucket rate limiting, a circuit breaker per
// provider and bounded exponential backoff retry. Every provider
// implementation in this package fetches through it.
type fetchClient struct {
	name     string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	attempts int
	backoff  time.Duration
	metrics  *metrics.Registry

	sleep func(context.Context, time.Duration) error // injectable for tests
}

func newFetchClient(name string, cfg *config.ProviderConfig, registry *metrics.Registry) *fetchClient {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit state changed")
		},
	}

	return &fetchClient{
		name:     name,
		http:     &http.Client{Timeout: cfg.Timeout()},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
		breaker:  gobreaker.NewCircuitBreaker(settings),
		attempts: cfg.RetryAttempts,
		backoff:  cfg.BackoffBase(),
		metrics:  registry,
		sleep:    sleepCtx,
	}
}

// getJSON fetches the URL and decodes the JSON body into out, retrying with
// exponential backoff. On exhaustion the last attempt's typed error is
// wrapped under CodeExhausted so callers see both the classification and the
// root cause.
func (c *fetchClient) getJSON(ctx context.Context, url string, out interface{}) error {
	var lastErr error

	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			if err := c.sleep(ctx, delay); err != nil {
				return newProviderError(c.name, CodeTimeout, err)
			}
		}

		err := c.fetchOnce(ctx, url, out)
		if err == nil {
			c.recordAttempt("success")
			return nil
		}
		lastErr = err
		c.recordAttempt("failure")

		// An open circuit will not recover within the retry budget.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return newProviderError(c.name, CodeCircuitOpen, err)
		}

		log.Debug().
			Str("provider", c.name).
			Int("attempt", attempt+1).
			Err(err).
			Msg("provider fetch attempt failed")
	}

	return newProviderError(c.name, CodeExhausted, lastErr)
}

func (c *fetchClient) fetchOnce(ctx context.Context, url string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return newProviderError(c.name, CodeRateLimited, err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, newProviderError(c.name, CodeTimeout, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return nil, newProviderError(c.name, CodeHTTPStatus,
				fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, newProviderError(c.name, CodeDecode, err)
		}
		return nil, nil
	})
	return err
}

func (c *fetchClient) recordAttempt(result string) {
	if c.metrics != nil {
		c.metrics.RecordProviderAttempt(c.name, result)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
