// Package hlstyle is a thin Adapter instance proving the framework against
// a Hyperliquid-shaped wire protocol: a single POST /info endpoint
// dispatching on a "type" field for reads, a POST /exchange endpoint
// carrying an EIP-712-signed action envelope for writes, and a WebSocket
// feed keyed by {"channel":...,"data":{"coin":...}}. Individual venues are
// out of scope as subjects; this exists to exercise the contract end to
// end, not to be a complete Hyperliquid client.
package hlstyle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"github.com/perpx/unified/internal/adapterbase"
	"github.com/perpx/unified/internal/auth"
	"github.com/perpx/unified/internal/normalize"
	"github.com/perpx/unified/internal/ratelimit"
	"github.com/perpx/unified/internal/transport"
	"github.com/perpx/unified/internal/wsengine"
	"github.com/perpx/unified/pkg/exchange"
	"github.com/perpx/unified/pkg/unified"
)

const venueID = "hlstyle"

func init() {
	exchange.RegisterVenue(venueID, NewAdapter)
}

// Adapter composes adapterbase.Base with the wire-format glue this venue
// needs; every Adapter method here is a capability/readiness gate followed
// by a request/normalize pair.
type Adapter struct {
	base     *adapterbase.Base
	eip712   *auth.EIP712Strategy
	wsURL    string
	wsOnce   sync.Once
	wsConErr error
}

// NewAdapter builds an Adapter from a venue-agnostic Config; it satisfies
// exchange.Constructor and is registered under "hlstyle" in init().
func NewAdapter(cfg exchange.Config) (exchange.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := "https://api.hlstyle.example"
	wsURL := "wss://api.hlstyle.example/ws"
	if cfg.Testnet {
		baseURL = "https://api.testnet.hlstyle.example"
		wsURL = "wss://api.testnet.hlstyle.example/ws"
	}

	httpClient := transport.New(transport.Config{
		BaseURL: baseURL,
		Venue:   venueID,
		Timeout: cfg.Timeout,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxTokens: maxInt(cfg.RateLimit.MaxTokens, 20),
		WindowMs:  maxInt64(cfg.RateLimit.WindowMs, 1000),
		Weights: map[string]float64{
			string(unified.CapCreateOrder):     1,
			string(unified.CapCancelOrder):     1,
			string(unified.CapCancelAllOrders): 2,
			string(unified.CapFetchOrderBook):  0.5,
		},
		Venue: venueID,
	})

	a := &Adapter{wsURL: wsURL}

	eip712, err := auth.NewEIP712Strategy(venueID, cfg.PrivateKeyHex, cfg.ChainID, a.buildActionMessage)
	if err != nil {
		return nil, fmt.Errorf("hlstyle: %w", err)
	}
	a.eip712 = eip712

	a.base = adapterbase.New(adapterbase.Config{
		Venue:        venueID,
		Transport:    httpClient,
		Limiter:      limiter,
		Auth:         eip712,
		Capabilities: capabilities(),
		ToVenue:      venueCoin,
		FromVenue:    unifiedSymbol,
		NewWSManager: a.newWSManager,
	})

	return a, nil
}

func capabilities() unified.CapabilityMap {
	return unified.CapabilityMap{
		unified.CapFetchMarkets:            unified.Supported,
		unified.CapFetchTicker:             unified.Emulated, // derived from the L2 book mid
		unified.CapFetchOrderBook:          unified.Supported,
		unified.CapFetchTrades:             unified.Unsupported,
		unified.CapFetchOHLCV:              unified.Unsupported,
		unified.CapFetchFundingRate:        unified.Supported,
		unified.CapFetchFundingRateHistory: unified.Supported,
		unified.CapFetchPositions:          unified.Supported,
		unified.CapFetchBalance:            unified.Emulated, // derived from clearinghouse margin summary
		unified.CapFetchOpenOrders:         unified.Supported,
		unified.CapFetchOrderHistory:       unified.Unsupported,
		unified.CapFetchMyTrades:           unified.Unsupported,
		unified.CapCreateOrder:             unified.Supported,
		unified.CapCancelOrder:             unified.Supported,
		unified.CapCancelAllOrders:         unified.Emulated, // fetch open orders, cancel each
		unified.CapSetLeverage:             unified.Supported,
		unified.CapWatchTicker:             unified.Unsupported,
		unified.CapWatchOrderBook:          unified.Supported,
		unified.CapWatchTrades:             unified.Unsupported,
		unified.CapWatchPositions:          unified.Unsupported,
		unified.CapWatchOrders:             unified.Unsupported,
		unified.CapWatchBalance:            unified.Unsupported,
		unified.CapBuilderCodes:            unified.Supported, // CreateOrder attaches no builder code to the order action
	}
}

func (a *Adapter) newWSManager() *wsengine.Manager {
	return wsengine.NewManager(wsengine.Config{
		URL:    a.wsURL,
		Venue:  venueID,
		Logger: a.base.Logger(),
	}, routeByChannelAndCoin, 1024)
}

type wsWrapper struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

func routeByChannelAndCoin(raw []byte) (string, bool) {
	var w wsWrapper
	if err := json.Unmarshal(raw, &w); err != nil || w.Channel == "" {
		return "", false
	}
	var coin struct {
		Coin string `json:"coin"`
	}
	_ = json.Unmarshal(w.Data, &coin)
	if coin.Coin == "" {
		return w.Channel, true
	}
	return w.Channel + ":" + coin.Coin, true
}

// Initialize / Disconnect / Capabilities

func (a *Adapter) Initialize(ctx context.Context) error {
	return a.base.Initialize(ctx, a.fetchMarketsRaw)
}

func (a *Adapter) Disconnect() error {
	return a.base.Disconnect()
}

func (a *Adapter) Capabilities() unified.CapabilityMap {
	return a.base.Caps
}

// guard runs the capability gate (regardless of lifecycle state) followed
// by the readiness gate every non-lifecycle operation needs.
func (a *Adapter) guard(op unified.Capability) error {
	if err := a.base.RequireCapability(op); err != nil {
		return err
	}
	return a.base.MustBeReady()
}

func (a *Adapter) doInfo(ctx context.Context, req infoRequest, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return unified.Wrap(unified.CategoryBadRequest, venueID, err)
	}
	return a.base.Transport.Post(ctx, unified.SignedRequest{Path: "/info", Body: body}, out)
}

func (a *Adapter) doExchange(ctx context.Context, action any, out any) error {
	body, err := json.Marshal(exchangeEnvelope{Action: action, Nonce: time.Now().UnixMilli()})
	if err != nil {
		return unified.Wrap(unified.CategoryBadRequest, venueID, err)
	}
	signed, err := a.eip712.Sign(ctx, unified.RequestEnvelope{Method: "POST", Path: "/exchange", Body: body, Timestamp: time.Now()})
	if err != nil {
		return err
	}
	return a.base.Transport.Post(ctx, signed, out)
}

// buildActionMessage is the EIP712Strategy.BuildMessage hook: it wraps
// whatever JSON action body the caller already built (env.Body) in the
// typed-data envelope this venue expects agent wallets to sign.
func (a *Adapter) buildActionMessage(env unified.RequestEnvelope, address common.Address, chainID *big.Int) (auth.TypedDataMessage, error) {
	return auth.TypedDataMessage{
		Domain: apitypes.TypedDataDomain{
			Name:    "HLStyle",
			Version: "1",
			ChainId: auth.ChainIDHex(chainID),
		},
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Agent": {
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Message: apitypes.TypedDataMessage{
			"source":       "a",
			"connectionId": crypto.Keccak256Hash(env.Body).Hex(),
		},
	}, nil
}

// Market data

func (a *Adapter) fetchMarketsRaw(ctx context.Context) ([]unified.Market, error) {
	var meta metaResponse
	if err := a.doInfo(ctx, infoRequest{Type: "meta"}, &meta); err != nil {
		return nil, err
	}
	markets := make([]unified.Market, 0, len(meta.Universe))
	for _, e := range meta.Universe {
		m, err := normalize.Market(venueID, normalize.MarketUniverseEntry{
			Name: e.Name, SzDecimals: e.SzDecimals, MaxLeverage: e.MaxLeverage, OnlyIsolated: e.OnlyIsolated,
		}, "USDT")
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func (a *Adapter) FetchMarkets(ctx context.Context) ([]unified.Market, error) {
	if err := a.guard(unified.CapFetchMarkets); err != nil {
		return nil, err
	}
	return a.base.FetchMarkets(func() ([]unified.Market, error) { return a.fetchMarketsRaw(ctx) })
}

func (a *Adapter) FetchTicker(ctx context.Context, symbol string) (unified.Ticker, error) {
	if err := a.guard(unified.CapFetchTicker); err != nil {
		return unified.Ticker{}, err
	}
	return a.base.FetchTicker(symbol, func() (unified.Ticker, error) {
		book, err := a.fetchOrderBookRaw(ctx, symbol)
		if err != nil {
			return unified.Ticker{}, err
		}
		t := unified.Ticker{Symbol: symbol, Venue: venueID, Timestamp: time.Now()}
		if len(book.Bids) > 0 {
			t.Bid = book.Bids[0].Price
		}
		if len(book.Asks) > 0 {
			t.Ask = book.Asks[0].Price
		}
		if len(book.Bids) > 0 && len(book.Asks) > 0 {
			t.Last = t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
		}
		return t, nil
	})
}

func (a *Adapter) fetchOrderBookRaw(ctx context.Context, symbol string) (unified.OrderBook, error) {
	coin, err := a.base.ToVenueSymbol(symbol)
	if err != nil {
		return unified.OrderBook{}, err
	}
	var resp l2BookResponse
	if err := a.doInfo(ctx, infoRequest{Type: "l2Book", Coin: coin}, &resp); err != nil {
		return unified.OrderBook{}, err
	}
	return normalize.OrderBook(venueID, symbol, resp.bidPairs(), resp.askPairs())
}

func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, depth int) (unified.OrderBook, error) {
	if err := a.guard(unified.CapFetchOrderBook); err != nil {
		return unified.OrderBook{}, err
	}
	book, err := a.fetchOrderBookRaw(ctx, symbol)
	if err != nil {
		return unified.OrderBook{}, err
	}
	if depth > 0 {
		if len(book.Bids) > depth {
			book.Bids = book.Bids[:depth]
		}
		if len(book.Asks) > depth {
			book.Asks = book.Asks[:depth]
		}
	}
	return book, nil
}

func (a *Adapter) FetchTrades(ctx context.Context, symbol string, limit int) ([]unified.Trade, error) {
	if err := a.guard(unified.CapFetchTrades); err != nil {
		return nil, err
	}
	return nil, unified.New(unified.CategoryNotSupported, venueID, "fetchTrades not supported")
}

func (a *Adapter) FetchOHLCV(ctx context.Context, symbol string, interval unified.CandleInterval, limit int) ([]unified.Candle, error) {
	if err := a.guard(unified.CapFetchOHLCV); err != nil {
		return nil, err
	}
	return nil, unified.New(unified.CategoryNotSupported, venueID, "fetchOHLCV not supported")
}

func (a *Adapter) fetchFundingHistoryRaw(ctx context.Context, symbol string, limit int) ([]wireFundingEntry, error) {
	coin, err := a.base.ToVenueSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var entries []wireFundingEntry
	if err := a.doInfo(ctx, infoRequest{Type: "fundingHistory", Coin: coin}, &entries); err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (a *Adapter) FetchFundingRate(ctx context.Context, symbol string) (unified.FundingRate, error) {
	if err := a.guard(unified.CapFetchFundingRate); err != nil {
		return unified.FundingRate{}, err
	}
	entries, err := a.fetchFundingHistoryRaw(ctx, symbol, 0)
	if err != nil {
		return unified.FundingRate{}, err
	}
	return normalize.FundingRate(venueID, symbol, toRawFundingHistory(entries), 1)
}

func (a *Adapter) FetchFundingRateHistory(ctx context.Context, symbol string, limit int) ([]unified.FundingRate, error) {
	if err := a.guard(unified.CapFetchFundingRateHistory); err != nil {
		return nil, err
	}
	entries, err := a.fetchFundingHistoryRaw(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	out := make([]unified.FundingRate, 0, len(entries))
	for i := range entries {
		fr, err := normalize.FundingRate(venueID, symbol, toRawFundingHistory(entries[i:i+1]), 1)
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, nil
}

func toRawFundingHistory(entries []wireFundingEntry) normalize.RawFundingHistory {
	out := make([]normalize.RawFundingEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, normalize.RawFundingEntry{FundingRate: e.FundingRate, Premium: e.Premium, Time: e.Time})
	}
	return normalize.RawFundingHistory{Entries: out}
}

// Account

func (a *Adapter) FetchPositions(ctx context.Context, symbols []string) ([]unified.Position, error) {
	if err := a.guard(unified.CapFetchPositions); err != nil {
		return nil, err
	}
	if err := a.base.RequireAuth(); err != nil {
		return nil, err
	}

	addr := ""
	if addressable, ok := a.base.Auth.(auth.Addressable); ok {
		addr = addressable.Address()
	}

	var resp clearinghouseStateResponse
	if err := a.doInfo(ctx, infoRequest{Type: "clearinghouseState", User: addr}, &resp); err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}

	positions := make([]unified.Position, 0, len(resp.AssetPositions))
	for _, ap := range resp.AssetPositions {
		sym, err := a.base.FromVenueSymbol(ap.Position.Coin)
		if err != nil {
			continue
		}
		if len(want) > 0 && !want[sym] {
			continue
		}
		pos, err := normalize.Position(venueID, ap.Position.toRaw(sym))
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// FetchBalance emulates a unified balance view from the clearinghouse
// margin summary: there is no separate wallet-balance endpoint, only total
// account value and how much of it is currently free to withdraw.
func (a *Adapter) FetchBalance(ctx context.Context) ([]unified.Balance, error) {
	if err := a.guard(unified.CapFetchBalance); err != nil {
		return nil, err
	}
	if err := a.base.RequireAuth(); err != nil {
		return nil, err
	}

	addr := ""
	if addressable, ok := a.base.Auth.(auth.Addressable); ok {
		addr = addressable.Address()
	}

	var resp clearinghouseStateResponse
	if err := a.doInfo(ctx, infoRequest{Type: "clearinghouseState", User: addr}, &resp); err != nil {
		return nil, err
	}

	total, err := decimal.NewFromString(resp.MarginSummary.AccountValue)
	if err != nil {
		return nil, unified.Wrap(unified.CategoryBadResponse, venueID, fmt.Errorf("parse accountValue: %w", err))
	}
	free, err := decimal.NewFromString(resp.Withdrawable)
	if err != nil {
		return nil, unified.Wrap(unified.CategoryBadResponse, venueID, fmt.Errorf("parse withdrawable: %w", err))
	}

	return []unified.Balance{{
		Currency: "USDC",
		Venue:    venueID,
		Total:    total,
		Free:     free,
		Used:     total.Sub(free),
	}}, nil
}

func (a *Adapter) fetchOpenOrdersRaw(ctx context.Context) ([]wireOpenOrder, error) {
	if err := a.base.RequireAuth(); err != nil {
		return nil, err
	}
	addr := ""
	if addressable, ok := a.base.Auth.(auth.Addressable); ok {
		addr = addressable.Address()
	}
	var orders []wireOpenOrder
	if err := a.doInfo(ctx, infoRequest{Type: "openOrders", User: addr}, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string) ([]unified.Order, error) {
	if err := a.guard(unified.CapFetchOpenOrders); err != nil {
		return nil, err
	}
	raw, err := a.fetchOpenOrdersRaw(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]unified.Order, 0, len(raw))
	for _, o := range raw {
		sym, err := a.base.FromVenueSymbol(o.Coin)
		if err != nil {
			continue
		}
		if symbol != "" && sym != symbol {
			continue
		}
		side := unified.Buy
		if o.Side == "A" {
			side = unified.Sell
		}
		price, _ := decimal.NewFromString(o.LimitPx)
		origSz, _ := decimal.NewFromString(o.OrigSz)
		remaining, _ := decimal.NewFromString(o.Sz)
		out = append(out, unified.Order{
			ID:              strconv.FormatInt(o.OID, 10),
			Symbol:          sym,
			Venue:           venueID,
			Type:            unified.OrderTypeLimit,
			Side:            side,
			RequestedAmount: origSz,
			Price:           price,
			FilledAmount:    origSz.Sub(remaining),
			RemainingAmount: remaining,
			Status:          unified.OrderOpen,
		})
	}
	return out, nil
}

func (a *Adapter) FetchOrderHistory(ctx context.Context, symbol string, limit int) ([]unified.Order, error) {
	if err := a.guard(unified.CapFetchOrderHistory); err != nil {
		return nil, err
	}
	return nil, unified.New(unified.CategoryNotSupported, venueID, "fetchOrderHistory not supported")
}

func (a *Adapter) FetchMyTrades(ctx context.Context, symbol string, limit int) ([]unified.Trade, error) {
	if err := a.guard(unified.CapFetchMyTrades); err != nil {
		return nil, err
	}
	return nil, unified.New(unified.CategoryNotSupported, venueID, "fetchMyTrades not supported")
}

// Trading

func (a *Adapter) CreateOrder(ctx context.Context, req unified.CreateOrderRequest) (unified.Order, error) {
	if err := a.guard(unified.CapCreateOrder); err != nil {
		return unified.Order{}, err
	}
	if err := a.base.RequireAuth(); err != nil {
		return unified.Order{}, err
	}
	if err := a.base.Limiter.Acquire(ctx, string(unified.CapCreateOrder), nil); err != nil {
		return unified.Order{}, unified.Wrap(unified.CategoryCanceled, venueID, err)
	}

	coin, err := a.base.ToVenueSymbol(req.Symbol)
	if err != nil {
		return unified.Order{}, err
	}

	action := orderAction{
		Type: "order",
		Orders: []orderSpec{{
			Coin:       coin,
			IsBuy:      req.Side == unified.Buy,
			LimitPx:    req.Price.String(),
			Sz:         req.Amount.String(),
			ReduceOnly: req.ReduceOnly,
			OrderType:  string(req.Type),
		}},
	}

	var resp exchangeResponse
	if err := a.doExchange(ctx, action, &resp); err != nil {
		return unified.Order{}, err
	}
	if len(resp.Response.Data.Statuses) == 0 {
		return unified.Order{}, unified.New(unified.CategoryBadResponse, venueID, "order response carried no status entries")
	}
	return normalize.OrderFromCreate(venueID, req, resp.Response.Data.Statuses[0].toStatusResponse(resp.Status))
}

func (a *Adapter) CancelOrder(ctx context.Context, id, symbol string) error {
	if err := a.guard(unified.CapCancelOrder); err != nil {
		return err
	}
	if err := a.base.RequireAuth(); err != nil {
		return err
	}
	if err := a.base.Limiter.Acquire(ctx, string(unified.CapCancelOrder), nil); err != nil {
		return unified.Wrap(unified.CategoryCanceled, venueID, err)
	}

	coin, err := a.base.ToVenueSymbol(symbol)
	if err != nil {
		return err
	}
	oid, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return unified.Wrap(unified.CategoryBadRequest, venueID, err)
	}

	action := struct {
		Type    string `json:"type"`
		Cancels []struct {
			Coin string `json:"coin"`
			OID  int64  `json:"oid"`
		} `json:"cancels"`
	}{Type: "cancel"}
	action.Cancels = append(action.Cancels, struct {
		Coin string `json:"coin"`
		OID  int64  `json:"oid"`
	}{Coin: coin, OID: oid})

	var resp exchangeResponse
	return a.doExchange(ctx, action, &resp)
}

func (a *Adapter) CancelAllOrders(ctx context.Context, symbol string) error {
	if err := a.guard(unified.CapCancelAllOrders); err != nil {
		return err
	}
	orders, err := a.fetchOpenOrdersRaw(ctx)
	if err != nil {
		return err
	}
	for _, o := range orders {
		sym, err := a.base.FromVenueSymbol(o.Coin)
		if err != nil {
			continue
		}
		if symbol != "" && sym != symbol {
			continue
		}
		if err := a.CancelOrder(ctx, strconv.FormatInt(o.OID, 10), sym); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) SetLeverage(ctx context.Context, symbol string, leverage decimal.Decimal) error {
	if err := a.guard(unified.CapSetLeverage); err != nil {
		return err
	}
	if err := a.base.RequireAuth(); err != nil {
		return err
	}
	coin, err := a.base.ToVenueSymbol(symbol)
	if err != nil {
		return err
	}

	action := struct {
		Type     string `json:"type"`
		Coin     string `json:"coin"`
		Leverage int    `json:"leverage"`
	}{Type: "updateLeverage", Coin: coin, Leverage: int(leverage.IntPart())}

	var resp exchangeResponse
	return a.doExchange(ctx, action, &resp)
}

// Streams

func (a *Adapter) ensureWSConnected(ctx context.Context) (*wsengine.Manager, error) {
	mgr, err := a.base.WSManager()
	if err != nil {
		return nil, err
	}
	a.wsOnce.Do(func() {
		a.wsConErr = mgr.Connect(ctx)
	})
	if a.wsConErr != nil {
		return nil, unified.Wrap(unified.CategoryWebSocketDisconnected, venueID, a.wsConErr)
	}
	return mgr, nil
}

func (a *Adapter) WatchOrderBook(ctx context.Context, symbol string) (<-chan unified.OrderBook, error) {
	if err := a.guard(unified.CapWatchOrderBook); err != nil {
		return nil, err
	}
	coin, err := a.base.ToVenueSymbol(symbol)
	if err != nil {
		return nil, err
	}
	mgr, err := a.ensureWSConnected(ctx)
	if err != nil {
		return nil, err
	}

	subPayload, _ := json.Marshal(map[string]any{"method": "subscribe", "subscription": map[string]string{"type": "l2Book", "coin": coin}})
	unsubPayload, _ := json.Marshal(map[string]any{"method": "unsubscribe", "subscription": map[string]string{"type": "l2Book", "coin": coin}})

	raw, err := mgr.Watch(ctx, unified.Subscription{
		ChannelKey:         "l2Book:" + coin,
		SubscribePayload:   subPayload,
		UnsubscribePayload: unsubPayload,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan unified.OrderBook, 64)
	go func() {
		defer close(out)
		for msg := range raw {
			var w wsWrapper
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			var book l2BookResponse
			if err := json.Unmarshal(w.Data, &book); err != nil {
				continue
			}
			ob, err := normalize.OrderBook(venueID, symbol, book.bidPairs(), book.askPairs())
			if err != nil {
				continue
			}
			select {
			case out <- ob:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (a *Adapter) WatchTicker(ctx context.Context, symbol string) (<-chan unified.Ticker, error) {
	if err := a.guard(unified.CapWatchTicker); err != nil {
		return nil, err
	}
	return nil, unified.New(unified.CategoryNotSupported, venueID, "watchTicker not supported")
}

func (a *Adapter) WatchTrades(ctx context.Context, symbol string) (<-chan unified.Trade, error) {
	if err := a.guard(unified.CapWatchTrades); err != nil {
		return nil, err
	}
	return nil, unified.New(unified.CategoryNotSupported, venueID, "watchTrades not supported")
}

func (a *Adapter) WatchPositions(ctx context.Context) (<-chan unified.Position, error) {
	if err := a.guard(unified.CapWatchPositions); err != nil {
		return nil, err
	}
	return nil, unified.New(unified.CategoryNotSupported, venueID, "watchPositions not supported")
}

func (a *Adapter) WatchOrders(ctx context.Context) (<-chan unified.Order, error) {
	if err := a.guard(unified.CapWatchOrders); err != nil {
		return nil, err
	}
	return nil, unified.New(unified.CategoryNotSupported, venueID, "watchOrders not supported")
}

func (a *Adapter) WatchBalance(ctx context.Context) (<-chan unified.Balance, error) {
	if err := a.guard(unified.CapWatchBalance); err != nil {
		return nil, err
	}
	return nil, unified.New(unified.CategoryNotSupported, venueID, "watchBalance not supported")
}

func maxInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func maxInt64(v, fallback int64) int64 {
	if v <= 0 {
		return fallback
	}
	return v
}
