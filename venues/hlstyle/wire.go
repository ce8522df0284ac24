package hlstyle

import (
	"strings"

	"github.com/perpx/unified/internal/normalize"
)

// This file holds the venue's wire JSON shapes, matching a Hyperliquid-
// style info/exchange API: a single POST /info endpoint dispatches on a
// "type" field, and POST /exchange carries a signed action envelope.

type infoRequest struct {
	Type      string `json:"type"`
	Coin      string `json:"coin,omitempty"`
	User      string `json:"user,omitempty"`
	StartTime int64  `json:"startTime,omitempty"`
}

type metaResponse struct {
	Universe []universeEntry `json:"universe"`
}

type universeEntry struct {
	Name         string `json:"name"`
	SzDecimals   int32  `json:"szDecimals"`
	MaxLeverage  int    `json:"maxLeverage"`
	OnlyIsolated bool   `json:"onlyIsolated"`
}

type l2BookResponse struct {
	Coin   string            `json:"coin"`
	Levels [2][]wireBookLevel `json:"levels"` // [0]=bids, [1]=asks
}

type wireBookLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
}

func (r l2BookResponse) bidPairs() []normalize.PriceLevelPair {
	return levelPairs(r.Levels[0])
}

func (r l2BookResponse) askPairs() []normalize.PriceLevelPair {
	return levelPairs(r.Levels[1])
}

func levelPairs(levels []wireBookLevel) []normalize.PriceLevelPair {
	out := make([]normalize.PriceLevelPair, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, normalize.PriceLevelPair{lvl.Px, lvl.Sz})
	}
	return out
}

type clearinghouseStateResponse struct {
	AssetPositions []assetPositionEntry `json:"assetPositions"`
	MarginSummary  wireMarginSummary    `json:"marginSummary"`
	Withdrawable   string               `json:"withdrawable"`
}

type wireMarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

type assetPositionEntry struct {
	Position wirePosition `json:"position"`
}

type wirePosition struct {
	Coin          string        `json:"coin"`
	Szi           string        `json:"szi"`
	EntryPx       string        `json:"entryPx"`
	MarkPx        string        `json:"markPx"`
	LiquidationPx string        `json:"liquidationPx"`
	UnrealizedPnl string        `json:"unrealizedPnl"`
	Leverage      wireLeverage  `json:"leverage"`
}

type wireLeverage struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

func (p wirePosition) toRaw(symbol string) normalize.RawPosition {
	return normalize.RawPosition{
		Symbol:        symbol,
		Szi:           p.Szi,
		EntryPx:       p.EntryPx,
		MarkPx:        p.MarkPx,
		MarginType:    p.Leverage.Type,
		LeverageVal:   p.Leverage.Value,
		LiqPx:         p.LiquidationPx,
		UnrealizedPnL: p.UnrealizedPnl,
	}
}

type wireFundingEntry struct {
	Coin        string `json:"coin"`
	FundingRate string `json:"fundingRate"`
	Premium     string `json:"premium"`
	Time        int64  `json:"time"`
}

type wireOpenOrder struct {
	Coin    string `json:"coin"`
	OID     int64  `json:"oid"`
	Side    string `json:"side"` // "B" or "A"
	LimitPx string `json:"limitPx"`
	Sz      string `json:"sz"`
	OrigSz  string `json:"origSz"`
}

type orderAction struct {
	Type   string      `json:"type"`
	Orders []orderSpec `json:"orders"`
}

type orderSpec struct {
	Coin       string `json:"coin"`
	IsBuy      bool   `json:"isBuy"`
	LimitPx    string `json:"limitPx"`
	Sz         string `json:"sz"`
	ReduceOnly bool   `json:"reduceOnly"`
	OrderType  string `json:"orderType"`
}

type exchangeEnvelope struct {
	Action    any    `json:"action"`
	Nonce     int64  `json:"nonce"`
	Signature string `json:"signature,omitempty"`
}

type exchangeResponse struct {
	Status   string                  `json:"status"`
	Response exchangeResponsePayload `json:"response"`
}

type exchangeResponsePayload struct {
	Data exchangeResponseData `json:"data"`
}

type exchangeResponseData struct {
	Statuses []orderStatusEntry `json:"statuses"`
}

type orderStatusEntry struct {
	Resting *struct {
		OID int64 `json:"oid"`
	} `json:"resting,omitempty"`
	Filled *struct {
		OID int64  `json:"oid"`
		Sz  string `json:"totalSz"`
		Px  string `json:"avgPx"`
	} `json:"filled,omitempty"`
	Error string `json:"error,omitempty"`
}

func (e orderStatusEntry) toStatusResponse(status string) normalize.OrderStatusResponse {
	resp := normalize.OrderStatusResponse{Status: status, ErrorMsg: e.Error}
	if e.Resting != nil {
		oid := e.Resting.OID
		resp.RestingOID = &oid
	}
	if e.Filled != nil {
		oid := e.Filled.OID
		resp.FilledOID = &oid
		resp.FilledSize = e.Filled.Sz
		resp.FilledPrice = e.Filled.Px
	}
	return resp
}

// venueCoin converts a unified perp symbol ("BTC/USDT:USDT") to this
// venue's "-PERP" suffixed coin name.
func venueCoin(symbol string) (string, error) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 {
		return "", errBadSymbol(symbol)
	}
	base := parts[0]
	return base + "-PERP", nil
}

// unifiedSymbol converts a "-PERP" suffixed coin name back to the unified
// "BASE/QUOTE:SETTLE" form, assuming USDT settlement per this venue.
func unifiedSymbol(coin string) (string, error) {
	const suffix = "-PERP"
	if !strings.HasSuffix(coin, suffix) {
		return "", errBadSymbol(coin)
	}
	base := strings.TrimSuffix(coin, suffix)
	return base + "/USDT:USDT", nil
}
