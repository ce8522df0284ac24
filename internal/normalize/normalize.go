// Package normalize holds the pure, stateless venue-native ↔ unified
// record conversions every adapter calls directly. No I/O, no
// mutable state beyond injected static symbol maps — every function is
// deterministic and total over its declared input domain. Invalid input
// always produces a BadResponse error rather than a fabricated value,
// adapted from the teacher's buildOrderPayload/PriceToAmounts string-in,
// precision-preserving conversions.
package normalize

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/perpx/unified/pkg/unified"
)

// MarketUniverseEntry is the shape a Hyperliquid-style venue's
// `{universe:[...]}` metadata response carries per instrument.
type MarketUniverseEntry struct {
	Name          string
	SzDecimals    int32
	MaxLeverage   int
	OnlyIsolated  bool
}

// Market converts one venue universe entry into a unified Market.
// Concrete scenario: {name:"BTC-PERP",szDecimals:3,maxLeverage:50} ->
// symbol="BTC/USDT:USDT", base="BTC", quote="USDT", maxLeverage=50,
// amountPrecision=3.
func Market(venue string, e MarketUniverseEntry, settle string) (unified.Market, error) {
	if e.Name == "" {
		return unified.Market{}, unified.New(unified.CategoryBadResponse, venue, "market entry missing name")
	}

	base, err := baseFromVenueName(e.Name)
	if err != nil {
		return unified.Market{}, unified.Wrap(unified.CategoryBadResponse, venue, err)
	}
	quote := "USDT"
	if settle == "" {
		settle = quote
	}

	return unified.Market{
		Symbol:               fmt.Sprintf("%s/%s:%s", base, quote, settle),
		Venue:                venue,
		VenueID:              e.Name,
		Base:                 base,
		Quote:                quote,
		Settle:               settle,
		Active:               true,
		AmountPrecision:      e.SzDecimals,
		PricePrecision:       pricePrecisionFromSize(e.SzDecimals),
		MaxLeverage:          e.MaxLeverage,
		FundingIntervalHours: 1,
	}, nil
}

// baseFromVenueName strips the venue's "-PERP" suffix convention to
// recover the base asset symbol.
func baseFromVenueName(name string) (string, error) {
	const suffix = "-PERP"
	if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
		return name, nil // spot symbols carry no perp suffix
	}
	return name[:len(name)-len(suffix)], nil
}

// pricePrecisionFromSize mirrors Hyperliquid's convention that price
// decimals are derived from size decimals (MAX_DECIMALS - szDecimals for
// perps, clamped at zero); this is a display/quoting convenience, not a
// hard wire requirement, so adapters may override per-market.
func pricePrecisionFromSize(szDecimals int32) int32 {
	const maxDecimals = 6
	p := maxDecimals - szDecimals
	if p < 0 {
		return 0
	}
	return p
}

// PriceLevelPair is a raw [price, size] pair as most venues wire order
// book levels.
type PriceLevelPair [2]string

// OrderBook converts raw [price, size] levels into a unified OrderBook.
// Concrete scenario: bids=[["50000","0.5"]], asks=[["50100","0.3"]].
func OrderBook(venue, symbol string, bidLevels, askLevels []PriceLevelPair) (unified.OrderBook, error) {
	bids, err := priceLevels(venue, bidLevels)
	if err != nil {
		return unified.OrderBook{}, err
	}
	asks, err := priceLevels(venue, askLevels)
	if err != nil {
		return unified.OrderBook{}, err
	}
	return unified.OrderBook{Symbol: symbol, Venue: venue, Bids: bids, Asks: asks}, nil
}

func priceLevels(venue string, raw []PriceLevelPair) ([]unified.PriceLevel, error) {
	out := make([]unified.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			return nil, unified.Wrap(unified.CategoryBadResponse, venue, fmt.Errorf("parse price %q: %w", lvl[0], err))
		}
		size, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return nil, unified.Wrap(unified.CategoryBadResponse, venue, fmt.Errorf("parse size %q: %w", lvl[1], err))
		}
		out = append(out, unified.PriceLevel{Price: price, Size: size})
	}
	return out, nil
}

// OrderStatusResponse is the shape a Hyperliquid-style venue's order
// placement acknowledgement carries.
type OrderStatusResponse struct {
	Status   string
	RestingOID  *int64
	FilledOID   *int64
	FilledSize  string
	FilledPrice string
	ErrorMsg    string
}

// OrderFromCreate converts an order-placement response into a unified
// Order. Concrete scenario: {status:"ok",response:{data:{statuses:[{resting:{oid:12345}}]}}}
// with req{symbol,amount:0.1,price:50000} -> Order{id:"12345",status:"open",filled:0,remaining:0.1}.
func OrderFromCreate(venue string, req unified.CreateOrderRequest, resp OrderStatusResponse) (unified.Order, error) {
	if resp.Status != "ok" && resp.Status != "" {
		return unified.Order{}, unified.New(unified.CategoryOrderRejected, venue, resp.ErrorMsg)
	}

	order := unified.Order{
		Symbol:          req.Symbol,
		Venue:           venue,
		Type:            req.Type,
		Side:            req.Side,
		RequestedAmount: req.Amount,
		Price:           req.Price,
		PostOnly:        req.PostOnly,
		ReduceOnly:      req.ReduceOnly,
		TimeInForce:     req.TimeInForce,
	}

	switch {
	case resp.RestingOID != nil:
		order.ID = fmt.Sprintf("%d", *resp.RestingOID)
		order.Status = unified.OrderOpen
		order.FilledAmount = decimal.Zero
		order.RemainingAmount = req.Amount
	case resp.FilledOID != nil:
		filled, err := decimal.NewFromString(resp.FilledSize)
		if err != nil {
			return unified.Order{}, unified.Wrap(unified.CategoryBadResponse, venue, fmt.Errorf("parse filled size: %w", err))
		}
		order.ID = fmt.Sprintf("%d", *resp.FilledOID)
		order.FilledAmount = filled
		order.RemainingAmount = req.Amount.Sub(filled)
		if order.RemainingAmount.IsZero() {
			order.Status = unified.OrderFilled
		} else {
			order.Status = unified.OrderPartiallyFilled
		}
		if resp.FilledPrice != "" {
			avg, err := decimal.NewFromString(resp.FilledPrice)
			if err != nil {
				return unified.Order{}, unified.Wrap(unified.CategoryBadResponse, venue, fmt.Errorf("parse filled price: %w", err))
			}
			order.AverageFillPrice = avg
		}
	default:
		return unified.Order{}, unified.New(unified.CategoryBadResponse, venue, "order response carries neither resting nor filled status")
	}

	return order, nil
}

// RawPosition is the shape a Hyperliquid-style venue returns per open
// position.
type RawPosition struct {
	Symbol       string
	Szi          string // signed size; negative is short
	EntryPx      string
	MarkPx       string
	MarginType   string // "isolated" or "cross"
	LeverageVal  int
	LiqPx        string // empty if none
	UnrealizedPnL string
}

// Position converts a raw signed-size position into a unified Position.
// Concrete scenario: {szi:"-2.5",entryPx:"3000",leverage:{type:"isolated",value:5}}
// -> side:"short", size:2.5, marginMode:"isolated", leverage:5.
func Position(venue string, raw RawPosition) (unified.Position, error) {
	szi, err := decimal.NewFromString(raw.Szi)
	if err != nil {
		return unified.Position{}, unified.Wrap(unified.CategoryBadResponse, venue, fmt.Errorf("parse szi: %w", err))
	}
	entry, err := decimal.NewFromString(raw.EntryPx)
	if err != nil {
		return unified.Position{}, unified.Wrap(unified.CategoryBadResponse, venue, fmt.Errorf("parse entryPx: %w", err))
	}

	side := unified.Long
	if szi.IsNegative() {
		side = unified.Short
	}
	size := szi.Abs()

	marginMode := unified.Cross
	if raw.MarginType == "isolated" {
		marginMode = unified.Isolated
	}

	pos := unified.Position{
		Symbol:     raw.Symbol,
		Venue:      venue,
		Side:       side,
		Size:       size,
		EntryPrice: entry,
		MarginMode: marginMode,
		Leverage:   decimal.NewFromInt(int64(raw.LeverageVal)),
	}

	if raw.MarkPx != "" {
		mark, err := decimal.NewFromString(raw.MarkPx)
		if err != nil {
			return unified.Position{}, unified.Wrap(unified.CategoryBadResponse, venue, fmt.Errorf("parse markPx: %w", err))
		}
		pos.MarkPrice = mark
	}
	if raw.LiqPx != "" {
		liq, err := decimal.NewFromString(raw.LiqPx)
		if err != nil {
			return unified.Position{}, unified.Wrap(unified.CategoryBadResponse, venue, fmt.Errorf("parse liqPx: %w", err))
		}
		pos.LiquidationPrice = &liq
	}
	if raw.UnrealizedPnL != "" {
		pnl, err := decimal.NewFromString(raw.UnrealizedPnL)
		if err != nil {
			return unified.Position{}, unified.Wrap(unified.CategoryBadResponse, venue, fmt.Errorf("parse unrealizedPnl: %w", err))
		}
		pos.UnrealizedPnL = pnl
	}

	return pos, nil
}

// RawFundingHistory is a venue's funding-rate-history response; an empty
// Entries slice means the venue returned no data.
type RawFundingHistory struct {
	Entries []RawFundingEntry
}

// RawFundingEntry is one historical funding observation.
type RawFundingEntry struct {
	FundingRate string
	Premium     string
	Time        int64
}

// FundingRate converts the most recent entry of a funding history response
// into a unified FundingRate. Concrete scenario: an empty history response
// must fail with BadResponse describing missing data — it must never
// fabricate a rate.
func FundingRate(venue, symbol string, hist RawFundingHistory, intervalHours int) (unified.FundingRate, error) {
	if len(hist.Entries) == 0 {
		return unified.FundingRate{}, unified.New(unified.CategoryBadResponse, venue, "funding rate history is empty, no rate to report")
	}

	latest := hist.Entries[len(hist.Entries)-1]
	rate, err := decimal.NewFromString(latest.FundingRate)
	if err != nil {
		return unified.FundingRate{}, unified.Wrap(unified.CategoryBadResponse, venue, fmt.Errorf("parse fundingRate: %w", err))
	}

	return unified.FundingRate{
		Symbol:        symbol,
		Venue:         venue,
		Rate:          rate,
		IntervalHours: intervalHours,
	}, nil
}
