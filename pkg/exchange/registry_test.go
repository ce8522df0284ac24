package exchange

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/perpx/unified/pkg/unified"
)

type stubAdapter struct{ cfg Config }

func (s *stubAdapter) Initialize(ctx context.Context) error       { return nil }
func (s *stubAdapter) Disconnect() error                           { return nil }
func (s *stubAdapter) Capabilities() unified.CapabilityMap          { return unified.CapabilityMap{} }
func (s *stubAdapter) FetchMarkets(ctx context.Context) ([]unified.Market, error) {
	return nil, nil
}
func (s *stubAdapter) FetchTicker(ctx context.Context, symbol string) (unified.Ticker, error) {
	return unified.Ticker{}, nil
}
func (s *stubAdapter) FetchOrderBook(ctx context.Context, symbol string, depth int) (unified.OrderBook, error) {
	return unified.OrderBook{}, nil
}
func (s *stubAdapter) FetchTrades(ctx context.Context, symbol string, limit int) ([]unified.Trade, error) {
	return nil, nil
}
func (s *stubAdapter) FetchOHLCV(ctx context.Context, symbol string, interval unified.CandleInterval, limit int) ([]unified.Candle, error) {
	return nil, nil
}
func (s *stubAdapter) FetchFundingRate(ctx context.Context, symbol string) (unified.FundingRate, error) {
	return unified.FundingRate{}, nil
}
func (s *stubAdapter) FetchFundingRateHistory(ctx context.Context, symbol string, limit int) ([]unified.FundingRate, error) {
	return nil, nil
}
func (s *stubAdapter) FetchPositions(ctx context.Context, symbols []string) ([]unified.Position, error) {
	return nil, nil
}
func (s *stubAdapter) FetchBalance(ctx context.Context) ([]unified.Balance, error) { return nil, nil }
func (s *stubAdapter) FetchOpenOrders(ctx context.Context, symbol string) ([]unified.Order, error) {
	return nil, nil
}
func (s *stubAdapter) FetchOrderHistory(ctx context.Context, symbol string, limit int) ([]unified.Order, error) {
	return nil, nil
}
func (s *stubAdapter) FetchMyTrades(ctx context.Context, symbol string, limit int) ([]unified.Trade, error) {
	return nil, nil
}
func (s *stubAdapter) CreateOrder(ctx context.Context, req unified.CreateOrderRequest) (unified.Order, error) {
	return unified.Order{}, nil
}
func (s *stubAdapter) CancelOrder(ctx context.Context, id, symbol string) error     { return nil }
func (s *stubAdapter) CancelAllOrders(ctx context.Context, symbol string) error     { return nil }
func (s *stubAdapter) SetLeverage(ctx context.Context, symbol string, leverage decimal.Decimal) error {
	return nil
}
func (s *stubAdapter) WatchTicker(ctx context.Context, symbol string) (<-chan unified.Ticker, error) {
	return nil, nil
}
func (s *stubAdapter) WatchOrderBook(ctx context.Context, symbol string) (<-chan unified.OrderBook, error) {
	return nil, nil
}
func (s *stubAdapter) WatchTrades(ctx context.Context, symbol string) (<-chan unified.Trade, error) {
	return nil, nil
}
func (s *stubAdapter) WatchPositions(ctx context.Context) (<-chan unified.Position, error) {
	return nil, nil
}
func (s *stubAdapter) WatchOrders(ctx context.Context) (<-chan unified.Order, error) { return nil, nil }
func (s *stubAdapter) WatchBalance(ctx context.Context) (<-chan unified.Balance, error) {
	return nil, nil
}

func TestRegisterAndCreateExchange(t *testing.T) {
	RegisterVenue("stubvenue", func(cfg Config) (Adapter, error) {
		return &stubAdapter{cfg: cfg}, nil
	})

	a, err := CreateExchange("stubvenue", Config{Timeout: 0})
	if err != nil {
		t.Fatalf("CreateExchange: %v", err)
	}
	stub, ok := a.(*stubAdapter)
	if !ok {
		t.Fatal("expected *stubAdapter")
	}
	if stub.cfg.Venue != "stubvenue" {
		t.Errorf("cfg.Venue = %q, want stubvenue (set by CreateExchange)", stub.cfg.Venue)
	}
}

func TestCreateExchangeUnknownVenue(t *testing.T) {
	_, err := CreateExchange("does-not-exist", Config{})
	if err == nil {
		t.Fatal("expected error for unregistered venue")
	}
}

func TestRegisterVenueDuplicatePanics(t *testing.T) {
	RegisterVenue("dup-venue", func(cfg Config) (Adapter, error) { return &stubAdapter{}, nil })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterVenue("dup-venue", func(cfg Config) (Adapter, error) { return &stubAdapter{}, nil })
}

func TestConfigValidateRequiresVenue(t *testing.T) {
	cfg := Config{Timeout: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing venue")
	}
}
