// Package hmacspot is a second thin Adapter instance, proving the
// framework against a REST/WebSocket shape common to centralized
// HMAC-authenticated venues: concatenated "BASEQUOTE" symbols, a
// GET-params order book, single-order placement by symbol+clientOrderId,
// and an HMAC-SHA256 signed header scheme instead of on-chain signing.
package hmacspot

import (
	"strings"

	"github.com/perpx/unified/internal/normalize"
)

type wireMarket struct {
	Symbol          string `json:"symbol"`
	BaseAsset       string `json:"baseAsset"`
	QuoteAsset      string `json:"quoteAsset"`
	PricePrecision  int32  `json:"pricePrecision"`
	AmountPrecision int32  `json:"quantityPrecision"`
	MaxLeverage     int    `json:"maxLeverage"`
}

type marketsResponse struct {
	Symbols []wireMarket `json:"symbols"`
}

type wireBookLevel [2]string // [price, size]

type orderBookResponse struct {
	Bids []wireBookLevel `json:"bids"`
	Asks []wireBookLevel `json:"asks"`
}

func bookPairs(levels []wireBookLevel) []normalize.PriceLevelPair {
	out := make([]normalize.PriceLevelPair, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, normalize.PriceLevelPair{lvl[0], lvl[1]})
	}
	return out
}

type wirePosition struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"` // signed
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	LiquidationPrice string `json:"liquidationPrice"`
	MarginType       string `json:"marginType"` // "isolated" or "cross"
	Leverage         string `json:"leverage"`
	UnrealizedProfit string `json:"unRealizedProfit"`
}

func (p wirePosition) toRaw(symbol string) normalize.RawPosition {
	return normalize.RawPosition{
		Symbol:        symbol,
		Szi:           p.PositionAmt,
		EntryPx:       p.EntryPrice,
		MarkPx:        p.MarkPrice,
		MarginType:    p.MarginType,
		LeverageVal:   atoiOrZero(p.Leverage),
		LiqPx:         p.LiquidationPrice,
		UnrealizedPnL: p.UnrealizedProfit,
	}
}

func atoiOrZero(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

type wireBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type wireOpenOrder struct {
	OrderID       int64  `json:"orderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"` // "BUY" or "SELL"
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	Status        string `json:"status"`
	ClientOrderID string `json:"clientOrderId"`
}

type wireFundingEntry struct {
	Symbol      string `json:"symbol"`
	FundingRate string `json:"fundingRate"`
	FundingTime int64  `json:"fundingTime"`
}

type createOrderRequest struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Quantity      string `json:"quantity"`
	Price         string `json:"price,omitempty"`
	ReduceOnly    bool   `json:"reduceOnly"`
	ClientOrderID string `json:"newClientOrderId"`
}

type orderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
	ExecutedQty   string `json:"executedQty"`
	AvgPrice      string `json:"avgPrice"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	Msg           string `json:"msg,omitempty"`
}

func (r orderResponse) toStatusResponse() normalize.OrderStatusResponse {
	status := "ok"
	resp := normalize.OrderStatusResponse{Status: status, ErrorMsg: r.Msg}
	if r.Msg != "" {
		resp.Status = "error"
		return resp
	}
	switch r.Status {
	case "FILLED":
		oid := r.OrderID
		resp.FilledOID = &oid
		resp.FilledSize = r.ExecutedQty
		resp.FilledPrice = r.AvgPrice
	default:
		oid := r.OrderID
		resp.RestingOID = &oid
	}
	return resp
}

// venueSymbol converts a unified perp symbol ("BTC/USDT:USDT") to this
// venue's Binance-style concatenated form ("BTCUSDT").
func venueSymbol(symbol string) (string, error) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 {
		return "", errBadSymbol(symbol)
	}
	quoteSettle := strings.SplitN(parts[1], ":", 2)
	if len(quoteSettle) != 2 {
		return "", errBadSymbol(symbol)
	}
	return parts[0] + quoteSettle[0], nil
}

// unifiedSymbol converts a concatenated venue symbol back to the unified
// "BASE/QUOTE:SETTLE" form, assuming USDT quote/settlement — every market
// this venue exposes trades against USDT.
func unifiedSymbol(venueSym string) (string, error) {
	const quote = "USDT"
	if !strings.HasSuffix(venueSym, quote) || len(venueSym) <= len(quote) {
		return "", errBadSymbol(venueSym)
	}
	base := strings.TrimSuffix(venueSym, quote)
	return base + "/" + quote + ":" + quote, nil
}
