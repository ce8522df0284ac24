// Package unified defines the vocabulary every venue adapter speaks: market
// metadata, order book and trade snapshots, orders, positions, balances,
// funding rates, and the framework-level entities (capability maps,
// subscriptions, request envelopes) the adapter base and transport layers
// pass around. It has no dependency on any other package in this module, so
// it can be imported from anywhere.
//
// Monetary and size fields use decimal.Decimal rather than float64: venue
// wire formats hand back prices and sizes as strings specifically to avoid
// floating-point precision loss, and this package preserves that all the
// way to the caller. No record in this package uses a float field.
package unified

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or position.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// PositionSide distinguishes a long holding from a short one.
type PositionSide string

const (
	Long  PositionSide = "long"
	Short PositionSide = "short"
)

// OrderType enumerates the order lifecycles the contract recognizes.
type OrderType string

const (
	OrderTypeMarket      OrderType = "market"
	OrderTypeLimit       OrderType = "limit"
	OrderTypeStopMarket  OrderType = "stopMarket"
	OrderTypeStopLimit   OrderType = "stopLimit"
	OrderTypeTakeProfit  OrderType = "takeProfit"
)

// OrderStatus is the lifecycle state of a normalized Order.
type OrderStatus string

const (
	OrderOpen            OrderStatus = "open"
	OrderPartiallyFilled OrderStatus = "partiallyFilled"
	OrderFilled          OrderStatus = "filled"
	OrderCanceled        OrderStatus = "canceled"
	OrderRejected        OrderStatus = "rejected"
)

// TimeInForce controls how long a resting order remains eligible to fill.
type TimeInForce string

const (
	GTC      TimeInForce = "GTC"
	IOC      TimeInForce = "IOC"
	FOK      TimeInForce = "FOK"
	PostOnly TimeInForce = "PostOnly"
)

// MarginMode is whether a position's margin is shared or segregated.
type MarginMode string

const (
	Cross    MarginMode = "cross"
	Isolated MarginMode = "isolated"
)

// Market is a venue's perpetual (or spot) instrument, preloaded on
// Initialize and cached by the adapter base with a TTL (one minute by
// default). The unified symbol is
// "BASE/QUOTE:SETTLE" for perpetuals (e.g. "BTC/USDT:USDT") or "BASE/QUOTE"
// for spot.
type Market struct {
	Symbol   string // unified symbol, e.g. "BTC/USDT:USDT"
	Venue    string
	VenueID  string // venue-native instrument identifier
	Base     string
	Quote    string
	Settle   string // settlement currency; empty for spot markets
	Active   bool

	PricePrecision  int32 // tick size, as decimal places
	AmountPrecision int32 // step size, as decimal places
	MaxLeverage     int

	FundingIntervalHours int
}

// Ticker is a transient snapshot of a market's recent trading activity.
type Ticker struct {
	Symbol    string
	Venue     string
	Last      decimal.Decimal
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Volume    decimal.Decimal
	Timestamp time.Time
}

// PriceLevel is a single resting quantity at a price.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBook is a transient snapshot of one market's resting liquidity. Bids
// are sorted descending by price, asks ascending. Streamed order books
// replace the prior snapshot wholesale; callers must not attempt to merge
// two OrderBook values.
type OrderBook struct {
	Symbol    string
	Venue     string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// Trade is a single execution, either public tape or one of the caller's
// own fills (FetchMyTrades/WatchTrades overload this type for both).
type Trade struct {
	ID        string
	Symbol    string
	Venue     string
	Side      Side
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Cost      decimal.Decimal // Price * Amount
	OrderID   string          // empty when not linked to one of the caller's orders
	Timestamp time.Time
}

// Order is the normalized view of a resting or completed order. Remaining
// is always RequestedAmount - FilledAmount; Status == OrderFilled implies
// Remaining is zero (within rounding tolerance enforced by the normalizer).
type Order struct {
	ID              string
	ClientOrderID   string // optional caller-assigned correlation id
	Symbol          string
	Venue           string
	Type            OrderType
	Side            Side
	RequestedAmount decimal.Decimal
	Price           decimal.Decimal // zero for market orders
	FilledAmount    decimal.Decimal
	RemainingAmount decimal.Decimal
	AverageFillPrice decimal.Decimal
	Status          OrderStatus
	PostOnly        bool
	ReduceOnly      bool
	TimeInForce     TimeInForce
	Timestamp       time.Time
}

// Position is a venue's current exposure in one market.
type Position struct {
	Symbol           string
	Venue            string
	Side             PositionSide
	Size             decimal.Decimal // always >= 0; direction lives in Side
	EntryPrice       decimal.Decimal
	MarkPrice        decimal.Decimal
	LiquidationPrice *decimal.Decimal // nil when the venue has none or position is fully hedged
	UnrealizedPnL    decimal.Decimal
	Leverage         decimal.Decimal
	MarginMode       MarginMode
}

// Balance is a single currency's accounting on a venue.
// Invariant: Total == Free + Used, within rounding tolerance.
type Balance struct {
	Currency  string
	Venue     string
	Total     decimal.Decimal
	Free      decimal.Decimal
	Used      decimal.Decimal
	USDValue  *decimal.Decimal // nil when the venue doesn't price non-USD collateral
}

// FundingRate is a perpetual market's current and upcoming funding state.
type FundingRate struct {
	Symbol              string
	Venue               string
	Rate                decimal.Decimal
	FundingTimestamp    time.Time
	NextFundingTimestamp time.Time
	MarkPrice           decimal.Decimal
	IndexPrice          decimal.Decimal
	IntervalHours       int
}

// CandleInterval names an OHLCV bucket width understood across venues.
type CandleInterval string

const (
	Interval1m  CandleInterval = "1m"
	Interval5m  CandleInterval = "5m"
	Interval15m CandleInterval = "15m"
	Interval1h  CandleInterval = "1h"
	Interval4h  CandleInterval = "4h"
	Interval1d  CandleInterval = "1d"
)

// Candle is one OHLCV bucket.
type Candle struct {
	Symbol    string
	Venue     string
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	Timestamp time.Time
}

// CreateOrderRequest is what a caller hands to Adapter.CreateOrder.
type CreateOrderRequest struct {
	Symbol        string
	Type          OrderType
	Side          Side
	Amount        decimal.Decimal
	Price         decimal.Decimal // required for limit-family types
	ClientOrderID string
	PostOnly      bool
	ReduceOnly    bool
	TimeInForce   TimeInForce
	BuilderCode   string // optional revenue-share tag, see RequestEnvelope.BuilderCode
}

// ————————————————————————————————————————————————————————————————————————
// Adapter-framework entities
// ————————————————————————————————————————————————————————————————————————

// Capability names one operation an adapter may or may not support.
type Capability string

const (
	CapFetchMarkets             Capability = "fetchMarkets"
	CapFetchTicker              Capability = "fetchTicker"
	CapFetchOrderBook           Capability = "fetchOrderBook"
	CapFetchTrades              Capability = "fetchTrades"
	CapFetchOHLCV               Capability = "fetchOHLCV"
	CapFetchFundingRate         Capability = "fetchFundingRate"
	CapFetchFundingRateHistory  Capability = "fetchFundingRateHistory"
	CapFetchPositions           Capability = "fetchPositions"
	CapFetchBalance             Capability = "fetchBalance"
	CapFetchOpenOrders          Capability = "fetchOpenOrders"
	CapFetchOrderHistory        Capability = "fetchOrderHistory"
	CapFetchMyTrades            Capability = "fetchMyTrades"
	CapCreateOrder              Capability = "createOrder"
	CapCancelOrder              Capability = "cancelOrder"
	CapCancelAllOrders          Capability = "cancelAllOrders"
	CapSetLeverage              Capability = "setLeverage"
	CapWatchTicker              Capability = "watchTicker"
	CapWatchOrderBook           Capability = "watchOrderBook"
	CapWatchTrades              Capability = "watchTrades"
	CapWatchPositions           Capability = "watchPositions"
	CapWatchOrders              Capability = "watchOrders"
	CapWatchBalance             Capability = "watchBalance"
	CapBuilderCodes             Capability = "builderCodes"
)

// Support is the fixed-key capability value: an operation is fully
// supported, entirely absent, or emulated (supported but via a workaround
// that may have different performance/consistency characteristics than a
// native implementation).
type Support string

const (
	Supported  Support = "true"
	Unsupported Support = "false"
	Emulated   Support = "emulated"
)

// CapabilityMap is consulted before every dispatch. Capability gating never
// makes network calls: an Unsupported entry fails fast with NotSupported.
type CapabilityMap map[Capability]Support

// Enabled reports whether op may be dispatched at all (Supported or
// Emulated); callers that care about emulation quality can inspect the map
// directly.
func (m CapabilityMap) Enabled(op Capability) bool {
	switch m[op] {
	case Supported, Emulated:
		return true
	default:
		return false
	}
}

// RequestEnvelope is what a caller-facing operation builds before handing
// it to an auth.Strategy for opaque signing.
type RequestEnvelope struct {
	Method         string
	Path           string
	Headers        map[string]string
	Body           []byte
	Timestamp      time.Time
	IdempotencyKey string
	BuilderCode    string // optional revenue-share tag attached where the venue supports it
}

// SignedRequest is an envelope after authentication has decorated it. Its
// shape beyond round-tripping through the transport layer is intentionally
// unconstrained — different auth strategies attach different things.
type SignedRequest struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

// Subscription identifies one logical, caller-owned WebSocket channel.
type Subscription struct {
	ChannelKey        string
	SubscribePayload  []byte
	UnsubscribePayload []byte // nil if the venue has no explicit unsubscribe
}
