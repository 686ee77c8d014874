package provider

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

// scriptedConn yields a fixed sequence of ticks then an error
type scriptedConn struct {
	mu    sync.Mutex
	ticks []priceTick
}

func (c *scriptedConn) ReadJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ticks) == 0 {
		return errors.New("connection closed")
	}
	tick := c.ticks[0]
	c.ticks = c.ticks[1:]

	b, _ := json.Marshal(tick)
	return json.Unmarshal(b, v)
}

func (c *scriptedConn) Close() error { return nil }

func TestPriceStream_RecordsLatestAndNotifiesListener(t *testing.T) {
	var notified []string
	stream := NewPriceStream("ws://unused", func(symbol string, price float64) {
		notified = append(notified, symbol)
	})

	conn := &scriptedConn{ticks: []priceTick{
		{Symbol: "SPY", Price: 4.10},
		{Symbol: "QQQ", Price: 2.50},
		{Symbol: "SPY", Price: 4.25},
		{Symbol: "", Price: 9.99},  // malformed, skipped
		{Symbol: "IWM", Price: -1}, // malformed, skipped
	}}

	stream.readLoop(context.Background(), conn)

	price, err := stream.LatestPrice(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 4.25 {
		t.Errorf("SPY price = %.2f, want the most recent tick 4.25", price)
	}

	if len(notified) != 3 {
		t.Errorf("listener saw %d ticks, want 3 (malformed ticks dropped)", len(notified))
	}

	if _, err := stream.LatestPrice(context.Background(), "IWM"); err == nil {
		t.Error("symbol with no valid tick must report no price")
	}
}

func TestPriceStream_UnknownSymbol(t *testing.T) {
	stream := NewPriceStream("ws://unused", nil)
	if _, err := stream.LatestPrice(context.Background(), "TSLA"); err == nil {
		t.Error("expected error before any tick arrives")
	}
}
