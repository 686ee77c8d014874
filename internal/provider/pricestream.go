package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// priceTick is one message on the price feed
type priceTick struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// PriceListener receives every tick the stream decodes, typically the
// position manager's price refresh
type PriceListener func(symbol string, price float64)

// PriceStream maintains a websocket connection to the price feed and keeps
// the last observed price per symbol. It reconnects with backoff until its
// context is cancelled.
type PriceStream struct {
	url      string
	listener PriceListener

	mu     sync.RWMutex
	latest map[string]float64

	dial func(ctx context.Context, url string) (wsConn, error)
}

// wsConn is the subset of *websocket.Conn the stream uses, substitutable in
// tests
type wsConn interface {
	ReadJSON(v interface{}) error
	Close() error
}

// NewPriceStream creates a price stream for the given websocket URL. The
// listener may be nil.
func NewPriceStream(url string, listener PriceListener) *PriceStream {
	return &PriceStream{
		url:      url,
		listener: listener,
		latest:   make(map[string]float64),
		dial: func(ctx context.Context, url string) (wsConn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	}
}

// Run connects and consumes ticks until ctx is cancelled, reconnecting with
// capped backoff after connection loss
func (s *PriceStream) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dial(ctx, s.url)
		if err != nil {
			log.Warn().Str("url", s.url).Err(err).Msg("price stream dial failed")
			if !sleepOrDone(ctx, backoff) {
				return
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}

		log.Info().Str("url", s.url).Msg("price stream connected")
		backoff = time.Second
		s.readLoop(ctx, conn)
	}
}

func (s *PriceStream) readLoop(ctx context.Context, conn wsConn) {
	defer conn.Close()
	for {
		if ctx.Err() != nil {
			return
		}
		var tick priceTick
		if err := conn.ReadJSON(&tick); err != nil {
			log.Warn().Err(err).Msg("price stream read failed, reconnecting")
			return
		}
		if tick.Symbol == "" || tick.Price <= 0 {
			continue
		}
		s.record(tick.Symbol, tick.Price)
	}
}

func (s *PriceStream) record(symbol string, price float64) {
	s.mu.Lock()
	s.latest[symbol] = price
	s.mu.Unlock()

	if s.listener != nil {
		s.listener(symbol, price)
	}
}

// LatestPrice returns the last observed price for the symbol. It fails when
// the stream has not yet seen the symbol; callers treat that as "no fill
// price available".
func (s *PriceStream) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	price, ok := s.latest[symbol]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("no price observed for %s", symbol)
	}
	return price, nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
