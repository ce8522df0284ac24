// Package exchange is the public surface: the Adapter contract every venue
// implementation satisfies, the venue-agnostic Config record, and the
// static registry callers use to instantiate one by venue id.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/perpx/unified/pkg/unified"
)

// Adapter is the polymorphic contract every venue implementation satisfies.
// Every operation either returns a unified record/list or a lazy sequence;
// inputs validate before any network I/O. Any operation other than
// Initialize/Disconnect called on a non-Ready adapter fails with
// NotInitialized; any operation whose capability is false in Capabilities
// fails with NotSupported regardless of state.
type Adapter interface {
	// Lifecycle
	Initialize(ctx context.Context) error
	Disconnect() error
	Capabilities() unified.CapabilityMap

	// Market data
	FetchMarkets(ctx context.Context) ([]unified.Market, error)
	FetchTicker(ctx context.Context, symbol string) (unified.Ticker, error)
	FetchOrderBook(ctx context.Context, symbol string, depth int) (unified.OrderBook, error)
	FetchTrades(ctx context.Context, symbol string, limit int) ([]unified.Trade, error)
	FetchOHLCV(ctx context.Context, symbol string, interval unified.CandleInterval, limit int) ([]unified.Candle, error)
	FetchFundingRate(ctx context.Context, symbol string) (unified.FundingRate, error)
	FetchFundingRateHistory(ctx context.Context, symbol string, limit int) ([]unified.FundingRate, error)

	// Account
	FetchPositions(ctx context.Context, symbols []string) ([]unified.Position, error)
	FetchBalance(ctx context.Context) ([]unified.Balance, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]unified.Order, error)
	FetchOrderHistory(ctx context.Context, symbol string, limit int) ([]unified.Order, error)
	FetchMyTrades(ctx context.Context, symbol string, limit int) ([]unified.Trade, error)

	// Trading
	CreateOrder(ctx context.Context, req unified.CreateOrderRequest) (unified.Order, error)
	CancelOrder(ctx context.Context, id, symbol string) error
	CancelAllOrders(ctx context.Context, symbol string) error
	SetLeverage(ctx context.Context, symbol string, leverage decimal.Decimal) error

	// Streams — each returns a lazy, infinite, non-restartable sequence of
	// unified records; cancelling ctx releases the underlying subscription.
	WatchTicker(ctx context.Context, symbol string) (<-chan unified.Ticker, error)
	WatchOrderBook(ctx context.Context, symbol string) (<-chan unified.OrderBook, error)
	WatchTrades(ctx context.Context, symbol string) (<-chan unified.Trade, error)
	WatchPositions(ctx context.Context) (<-chan unified.Position, error)
	WatchOrders(ctx context.Context) (<-chan unified.Order, error)
	WatchBalance(ctx context.Context) (<-chan unified.Balance, error)
}
