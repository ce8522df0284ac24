package hlstyle

import (
	"testing"

	"github.com/perpx/unified/pkg/unified"
)

func TestVenueCoinRoundTrips(t *testing.T) {
	cases := []string{"BTC/USDT:USDT", "ETH/USDT:USDT", "SOL/USDT:USDT"}
	for _, symbol := range cases {
		coin, err := venueCoin(symbol)
		if err != nil {
			t.Fatalf("venueCoin(%q): %v", symbol, err)
		}
		back, err := unifiedSymbol(coin)
		if err != nil {
			t.Fatalf("unifiedSymbol(%q): %v", coin, err)
		}
		if back != symbol {
			t.Errorf("round trip: %q -> %q -> %q, want back = %q", symbol, coin, back, symbol)
		}
	}
}

func TestVenueCoinRejectsMissingSlash(t *testing.T) {
	if _, err := venueCoin("BTCUSDT"); err == nil {
		t.Fatal("expected errBadSymbol for a symbol with no slash")
	}
}

func TestUnifiedSymbolRejectsMissingSuffix(t *testing.T) {
	if _, err := unifiedSymbol("BTC"); err == nil {
		t.Fatal("expected errBadSymbol for a coin with no -PERP suffix")
	}
}

func TestCapabilitiesDeclareEmulatedTickerAndCancelAll(t *testing.T) {
	caps := capabilities()
	if caps[unified.CapFetchTicker] != unified.Emulated {
		t.Errorf("CapFetchTicker = %v, want Emulated (derived from the book mid)", caps[unified.CapFetchTicker])
	}
	if caps[unified.CapCancelAllOrders] != unified.Emulated {
		t.Errorf("CapCancelAllOrders = %v, want Emulated (fetch-then-cancel-each)", caps[unified.CapCancelAllOrders])
	}
	if caps[unified.CapFetchOrderBook] != unified.Supported {
		t.Errorf("CapFetchOrderBook = %v, want Supported", caps[unified.CapFetchOrderBook])
	}
	if caps[unified.CapFetchTrades] != unified.Unsupported {
		t.Errorf("CapFetchTrades = %v, want Unsupported", caps[unified.CapFetchTrades])
	}
	if caps[unified.CapFetchBalance] != unified.Emulated {
		t.Errorf("CapFetchBalance = %v, want Emulated (derived from clearinghouse margin summary)", caps[unified.CapFetchBalance])
	}
}

func TestRouteByChannelAndCoinKeysOnCoinWhenPresent(t *testing.T) {
	key, ok := routeByChannelAndCoin([]byte(`{"channel":"l2Book","data":{"coin":"BTC-PERP"}}`))
	if !ok {
		t.Fatal("expected a routable key")
	}
	if key != "l2Book:BTC-PERP" {
		t.Errorf("key = %q, want l2Book:BTC-PERP", key)
	}
}

func TestRouteByChannelAndCoinFallsBackToChannelOnly(t *testing.T) {
	key, ok := routeByChannelAndCoin([]byte(`{"channel":"allMids","data":{}}`))
	if !ok {
		t.Fatal("expected a routable key")
	}
	if key != "allMids" {
		t.Errorf("key = %q, want allMids", key)
	}
}

func TestRouteByChannelAndCoinRejectsMalformedFrame(t *testing.T) {
	if _, ok := routeByChannelAndCoin([]byte(`not json`)); ok {
		t.Fatal("expected ok=false for a malformed frame")
	}
	if _, ok := routeByChannelAndCoin([]byte(`{}`)); ok {
		t.Fatal("expected ok=false for a frame with no channel")
	}
}

func TestOrderStatusEntryToStatusResponseRestingAndFilled(t *testing.T) {
	resting := orderStatusEntry{Resting: &struct {
		OID int64 `json:"oid"`
	}{OID: 12345}}
	resp := resting.toStatusResponse("ok")
	if resp.RestingOID == nil || *resp.RestingOID != 12345 {
		t.Fatalf("RestingOID = %v, want 12345", resp.RestingOID)
	}

	filled := orderStatusEntry{Filled: &struct {
		OID int64  `json:"oid"`
		Sz  string `json:"totalSz"`
		Px  string `json:"avgPx"`
	}{OID: 777, Sz: "0.1", Px: "50000"}}
	resp = filled.toStatusResponse("ok")
	if resp.FilledOID == nil || *resp.FilledOID != 777 {
		t.Fatalf("FilledOID = %v, want 777", resp.FilledOID)
	}
	if resp.FilledSize != "0.1" || resp.FilledPrice != "50000" {
		t.Errorf("FilledSize/FilledPrice = %q/%q, want 0.1/50000", resp.FilledSize, resp.FilledPrice)
	}
}

func TestL2BookResponseBidAskPairs(t *testing.T) {
	r := l2BookResponse{
		Coin: "BTC-PERP",
		Levels: [2][]wireBookLevel{
			{{Px: "50000", Sz: "0.5"}},
			{{Px: "50100", Sz: "0.3"}},
		},
	}
	bids := r.bidPairs()
	asks := r.askPairs()
	if len(bids) != 1 || bids[0][0] != "50000" || bids[0][1] != "0.5" {
		t.Errorf("bidPairs = %v, want [[50000 0.5]]", bids)
	}
	if len(asks) != 1 || asks[0][0] != "50100" || asks[0][1] != "0.3" {
		t.Errorf("askPairs = %v, want [[50100 0.3]]", asks)
	}
}

func TestWirePositionToRaw(t *testing.T) {
	p := wirePosition{
		Coin:          "BTC-PERP",
		Szi:           "-2.5",
		EntryPx:       "3000",
		MarkPx:        "2950",
		LiquidationPx: "3500",
		UnrealizedPnl: "125",
		Leverage:      wireLeverage{Type: "isolated", Value: 5},
	}
	raw := p.toRaw("BTC/USDT:USDT")
	if raw.Symbol != "BTC/USDT:USDT" || raw.MarginType != "isolated" || raw.LeverageVal != 5 {
		t.Errorf("toRaw = %+v, unexpected shape", raw)
	}
}
