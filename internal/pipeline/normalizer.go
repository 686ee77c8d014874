package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
)

// RawPayload is the wire shape of an inbound signal before normalization.
// Upstream senders disagree on details (timestamp encoding, direction
// vocabulary), so the fields stay loose here and the normalizer coerces them.
type RawPayload struct {
	Source    string                 `json:"source"`
	Symbol    string                 `json:"symbol"`
	Direction string                 `json:"direction"`
	Timeframe string                 `json:"timeframe"`
	Timestamp json.RawMessage        `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Normalizer coerces heterogeneous upstream payloads into the canonical
// Signal type and rejects payloads missing required fields
type Normalizer struct {
	newTrackingID func() string
}

// NewNormalizer creates a signal normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{newTrackingID: uuid.NewString}
}

// Normalize validates and converts a raw payload into a Signal, assigning
// the tracking ID that follows the signal through every stage
func (n *Normalizer) Normalize(raw *RawPayload) (*domain.Signal, error) {
	source := domain.SignalSource(strings.ToLower(strings.TrimSpace(raw.Source)))
	if source == "" {
		return nil, fmt.Errorf("missing required field %q", "source")
	}
	if !source.Valid() {
		return nil, fmt.Errorf("unknown source %q", raw.Source)
	}

	symbol := strings.ToUpper(strings.TrimSpace(raw.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("missing required field %q", "symbol")
	}

	if strings.TrimSpace(raw.Direction) == "" {
		return nil, fmt.Errorf("missing required field %q", "direction")
	}
	direction, err := parseDirection(raw.Direction)
	if err != nil {
		return nil, err
	}

	timeframe := strings.TrimSpace(raw.Timeframe)
	if timeframe == "" {
		return nil, fmt.Errorf("missing required field %q", "timeframe")
	}

	if len(raw.Timestamp) == 0 {
		return nil, fmt.Errorf("missing required field %q", "timestamp")
	}
	timestamp, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return nil, err
	}

	return &domain.Signal{
		TrackingID: n.newTrackingID(),
		Source:     source,
		Symbol:     symbol,
		Direction:  direction,
		Timeframe:  timeframe,
		Timestamp:  timestamp,
		Metadata:   parseMetadata(raw.Metadata),
	}, nil
}

// parseDirection maps the upstream direction vocabulary onto the two
// canonical values. Bullish words mean calls, bearish words mean puts.
func parseDirection(raw string) (domain.Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CALL", "BUY", "LONG", "BULLISH":
		return domain.DirectionCall, nil
	case "PUT", "SELL", "SHORT", "BEARISH":
		return domain.DirectionPut, nil
	default:
		return "", fmt.Errorf("unrecognized direction %q", raw)
	}
}

// parseTimestamp accepts an RFC3339 string or a unix-seconds number, the two
// encodings observed from upstream senders
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		ts, err := time.Parse(time.RFC3339, asString)
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable timestamp %q: %w", asString, err)
		}
		return ts, nil
	}

	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		sec := int64(asNumber)
		nsec := int64((asNumber - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unparseable timestamp %s", string(raw))
}

// parseMetadata extracts the recognized metadata keys, ignoring everything
// else the sender attached. Absent or mistyped values stay nil.
func parseMetadata(bag map[string]interface{}) domain.SignalMetadata {
	var meta domain.SignalMetadata
	if bag == nil {
		return meta
	}

	if v, ok := asFloat(bag["confluence_score"]); ok {
		meta.ConfluenceScore = &v
	}
	if v, ok := bag["mtf_aligned"].(bool); ok {
		meta.MTFAligned = &v
	}
	if v, ok := asFloat(bag["strength"]); ok {
		meta.Strength = &v
	}
	return meta
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
