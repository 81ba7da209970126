// Package pricefeed supplies streaming reference prices with a gateway
// fallback when the stream is stale or has never ticked.
package pricefeed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"ladder_maker/internal/config"
	"ladder_maker/internal/core"
	"ladder_maker/pkg/websocket"
)

type tick struct {
	price decimal.Decimal
	at    time.Time
}

// Feed consumes a market data stream and caches the latest mid price per
// pair. GetReferencePrice serves from the cache while it is fresh and falls
// back to the slower gateway query when it is not, so a dead stream degrades
// the loop instead of stopping it.
type Feed struct {
	ws       *websocket.Client
	fallback core.PriceSource
	maxAge   time.Duration
	logger   core.ILogger

	mu    sync.RWMutex
	ticks map[string]tick
	subs  map[string]subscribeMessage

	// Collapses concurrent fallback queries for the same pair into one
	// gateway round trip when the stream is down across a whole cycle.
	fallbackGroup singleflight.Group
}

type subscribeMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
	Selling string `json:"selling"`
	Buying  string `json:"buying"`
}

type tickMessage struct {
	Channel string `json:"channel"`
	Selling string `json:"selling"`
	Buying  string `json:"buying"`
	Mid     string `json:"mid"`
}

func NewFeed(cfg config.PriceFeedConfig, fallback core.PriceSource, logger core.ILogger) *Feed {
	maxAge := time.Duration(cfg.StaleSeconds) * time.Second
	if maxAge == 0 {
		maxAge = 30 * time.Second
	}

	f := &Feed{
		fallback: fallback,
		maxAge:   maxAge,
		logger:   logger.WithField("component", "price_feed"),
		ticks:    make(map[string]tick),
		subs:     make(map[string]subscribeMessage),
	}
	f.ws = websocket.NewClient(cfg.URL, f.handleMessage, logger)
	f.ws.SetOnConnected(f.resubscribe)
	return f
}

// Start begins the streaming connection.
func (f *Feed) Start() {
	f.ws.Start()
}

// Stop closes the streaming connection.
func (f *Feed) Stop() {
	f.ws.Stop()
}

// Subscribe registers interest in a pair's mid price. Safe to call before
// Start; subscriptions replay on every reconnect.
func (f *Feed) Subscribe(pair core.AssetPair) {
	msg := subscribeMessage{
		Action:  "subscribe",
		Channel: "mid_price",
		Selling: pair.Selling.String(),
		Buying:  pair.Buying.String(),
	}

	f.mu.Lock()
	f.subs[pair.String()] = msg
	f.mu.Unlock()

	if err := f.ws.Send(msg); err != nil {
		// Not connected yet; resubscribe covers it on connect.
		f.logger.Debug("Subscribe deferred until connect", "pair", pair.String())
	}
}

// GetReferencePrice serves the cached stream price when fresh, otherwise the
// fallback source.
func (f *Feed) GetReferencePrice(ctx context.Context, pair core.AssetPair) (decimal.Decimal, error) {
	f.mu.RLock()
	t, ok := f.ticks[pair.String()]
	f.mu.RUnlock()

	if ok && time.Since(t.at) <= f.maxAge {
		return t.price, nil
	}
	if ok {
		f.logger.Warn("Stream price stale, falling back to gateway",
			"pair", pair.String(), "age", time.Since(t.at))
	}

	v, err, _ := f.fallbackGroup.Do(pair.String(), func() (interface{}, error) {
		return f.fallback.GetReferencePrice(ctx, pair)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

func (f *Feed) resubscribe() {
	f.mu.RLock()
	msgs := make([]subscribeMessage, 0, len(f.subs))
	for _, msg := range f.subs {
		msgs = append(msgs, msg)
	}
	f.mu.RUnlock()

	for _, msg := range msgs {
		if err := f.ws.Send(msg); err != nil {
			f.logger.Warn("Resubscribe failed", "channel", msg.Channel, "error", err)
		}
	}
}

func (f *Feed) handleMessage(message []byte) {
	var msg tickMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		f.logger.Warn("Dropping unparseable stream message", "error", err)
		return
	}
	if msg.Channel != "mid_price" || msg.Mid == "" {
		return
	}

	price, err := decimal.NewFromString(msg.Mid)
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		f.logger.Warn("Dropping invalid stream price", "mid", msg.Mid)
		return
	}

	key := msg.Selling + "/" + msg.Buying
	f.mu.Lock()
	f.ticks[key] = tick{price: price, at: time.Now()}
	f.mu.Unlock()
}

var _ core.PriceSource = (*Feed)(nil)
