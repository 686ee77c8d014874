package provider

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/config"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/metrics"
)

// gexPayload is the GEX provider's wire shape, one reading per element
type gexPayload struct {
	Readings []gexReading `json:"readings"`
}

type gexReading struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Direction string    `json:"direction"`
	Strength  float64   `json:"strength"`
	Timestamp time.Time `json:"timestamp"`
}

// HTTPGEXReader fetches gamma-exposure readings over HTTP. It guarantees the
// most-recent-first ordering the GEX service expects regardless of how the
// upstream orders its response.
type HTTPGEXReader struct {
	name    string
	baseURL string
	client  *fetchClient
}

// NewHTTPGEXReader creates a GEX reader for the given endpoint
func NewHTTPGEXReader(baseURL string, cfg *config.ProviderConfig, registry *metrics.Registry) *HTTPGEXReader {
	const name = "gex"
	return &HTTPGEXReader{
		name:    name,
		baseURL: baseURL,
		client:  newFetchClient(name, cfg, registry),
	}
}

// GetSignals returns the readings for a symbol/timeframe, newest first
func (r *HTTPGEXReader) GetSignals(ctx context.Context, symbol, timeframe string) ([]domain.GEXSignal, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("timeframe", timeframe)

	var payload gexPayload
	if err := r.client.getJSON(ctx, r.baseURL+"?"+query.Encode(), &payload); err != nil {
		return nil, err
	}

	signals := make([]domain.GEXSignal, 0, len(payload.Readings))
	for _, reading := range payload.Readings {
		direction, err := parseGEXDirection(reading.Direction)
		if err != nil {
			return nil, newProviderError(r.name, CodeDecode, err)
		}
		signals = append(signals, domain.GEXSignal{
			Symbol:    reading.Symbol,
			Timeframe: reading.Timeframe,
			Direction: direction,
			Strength:  reading.Strength,
			Timestamp: reading.Timestamp,
		})
	}

	sort.Slice(signals, func(i, j int) bool {
		return signals[i].Timestamp.After(signals[j].Timestamp)
	})
	return signals, nil
}

func parseGEXDirection(raw string) (domain.Direction, error) {
	switch strings.ToUpper(raw) {
	case "CALL", "BULLISH":
		return domain.DirectionCall, nil
	case "PUT", "BEARISH":
		return domain.DirectionPut, nil
	default:
		return "", fmt.Errorf("unrecognized GEX direction %q", raw)
	}
}
