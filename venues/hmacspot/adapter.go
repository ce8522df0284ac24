package hmacspot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
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

const venueID = "hmacspot"

func init() {
	exchange.RegisterVenue(venueID, NewAdapter)
}

// Adapter proves the framework against an HMAC-signed, Binance-shaped REST
// and WebSocket API — deliberately thin, since individual venues exist
// only to exercise the adapter contract end to end.
type Adapter struct {
	base *adapterbase.Base
	hmac *auth.HMACStrategy
	wsURL string
}

func NewAdapter(cfg exchange.Config) (exchange.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := "https://fapi.hmacspot.example"
	wsURL := "wss://fstream.hmacspot.example/ws"
	if cfg.Testnet {
		baseURL = "https://testnet.fapi.hmacspot.example"
		wsURL = "wss://testnet.fstream.hmacspot.example/ws"
	}

	httpClient := transport.New(transport.Config{
		BaseURL: baseURL,
		Venue:   venueID,
		Timeout: cfg.Timeout,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxTokens: maxInt(cfg.RateLimit.MaxTokens, 40),
		WindowMs:  maxInt64(cfg.RateLimit.WindowMs, 1000),
		Weights: map[string]float64{
			string(unified.CapCreateOrder): 1,
			string(unified.CapCancelOrder): 1,
		},
		Venue: venueID,
	})

	hmacStrategy := auth.NewHMACStrategy(venueID, auth.HMACCredentials{
		APIKey:     cfg.APIKey,
		Secret:     cfg.APISecret,
		Passphrase: cfg.Passphrase,
	}, auth.DefaultHMACHeaderNames())

	a := &Adapter{hmac: hmacStrategy, wsURL: wsURL}

	a.base = adapterbase.New(adapterbase.Config{
		Venue:        venueID,
		Transport:    httpClient,
		Limiter:      limiter,
		Auth:         hmacStrategy,
		Capabilities: capabilities(),
		ToVenue:      venueSymbol,
		FromVenue:    unifiedSymbol,
		NewWSManager: a.newWSManager,
	})

	return a, nil
}

func capabilities() unified.CapabilityMap {
	return unified.CapabilityMap{
		unified.CapFetchMarkets:            unified.Supported,
		unified.CapFetchTicker:             unified.Supported,
		unified.CapFetchOrderBook:          unified.Supported,
		unified.CapFetchTrades:             unified.Unsupported,
		unified.CapFetchOHLCV:              unified.Unsupported,
		unified.CapFetchFundingRate:        unified.Supported,
		unified.CapFetchFundingRateHistory: unified.Unsupported,
		unified.CapFetchPositions:          unified.Supported,
		unified.CapFetchBalance:            unified.Supported,
		unified.CapFetchOpenOrders:         unified.Supported,
		unified.CapFetchOrderHistory:       unified.Unsupported,
		unified.CapFetchMyTrades:           unified.Unsupported,
		unified.CapCreateOrder:             unified.Supported,
		unified.CapCancelOrder:             unified.Supported,
		unified.CapCancelAllOrders:         unified.Emulated,
		unified.CapSetLeverage:             unified.Unsupported,
		unified.CapWatchTicker:             unified.Supported,
		unified.CapWatchOrderBook:          unified.Supported,
		unified.CapWatchTrades:             unified.Unsupported,
		unified.CapWatchPositions:          unified.Unsupported,
		unified.CapWatchOrders:             unified.Unsupported,
		unified.CapWatchBalance:            unified.Unsupported,
		unified.CapBuilderCodes:            unified.Unsupported,
	}
}

type wsStreamFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

func routeByStream(raw []byte) (string, bool) {
	var f wsStreamFrame
	if err := json.Unmarshal(raw, &f); err != nil || f.Stream == "" {
		return "", false
	}
	return f.Stream, true
}

func (a *Adapter) newWSManager() *wsengine.Manager {
	return wsengine.NewManager(wsengine.Config{
		URL:    a.wsURL,
		Venue:  venueID,
		Logger: a.base.Logger(),
	}, routeByStream, 1024)
}

func (a *Adapter) Initialize(ctx context.Context) error {
	return a.base.Initialize(ctx, a.fetchMarketsRaw)
}

func (a *Adapter) Disconnect() error       { return a.base.Disconnect() }
func (a *Adapter) Capabilities() unified.CapabilityMap { return a.base.Caps }

func (a *Adapter) guard(op unified.Capability) error {
	if err := a.base.RequireCapability(op); err != nil {
		return err
	}
	return a.base.MustBeReady()
}

func (a *Adapter) get(ctx context.Context, path string, query map[string]string, out any) error {
	return a.base.Transport.Get(ctx, path, query, out)
}

func (a *Adapter) signedGet(ctx context.Context, path string, query map[string]string, out any) error {
	env := unified.RequestEnvelope{Method: "GET", Path: path, Timestamp: time.Now()}
	signed, err := a.hmac.Sign(ctx, env)
	if err != nil {
		return err
	}
	_, err = a.base.Transport.Do(ctx, transport.Request{
		Method:  http.MethodGet,
		Path:    signed.Path,
		Headers: signed.Headers,
		Query:   query,
		Result:  out,
	})
	return err
}

func (a *Adapter) signedPost(ctx context.Context, path string, body []byte, out any) error {
	env := unified.RequestEnvelope{Method: "POST", Path: path, Body: body, Timestamp: time.Now()}
	signed, err := a.hmac.Sign(ctx, env)
	if err != nil {
		return err
	}
	return a.base.Transport.Post(ctx, signed, out)
}

func (a *Adapter) signedDelete(ctx context.Context, path string, body []byte, out any) error {
	env := unified.RequestEnvelope{Method: "DELETE", Path: path, Body: body, Timestamp: time.Now()}
	signed, err := a.hmac.Sign(ctx, env)
	if err != nil {
		return err
	}
	return a.base.Transport.Delete(ctx, signed, out)
}

func (a *Adapter) fetchMarketsRaw(ctx context.Context) ([]unified.Market, error) {
	var resp marketsResponse
	if err := a.get(ctx, "/fapi/v1/exchangeInfo", nil, &resp); err != nil {
		return nil, err
	}
	markets := make([]unified.Market, 0, len(resp.Symbols))
	for _, m := range resp.Symbols {
		symbol, err := unifiedSymbol(m.Symbol)
		if err != nil {
			continue
		}
		markets = append(markets, unified.Market{
			Symbol:               symbol,
			Venue:                venueID,
			VenueID:              m.Symbol,
			Base:                 m.BaseAsset,
			Quote:                m.QuoteAsset,
			Settle:               m.QuoteAsset,
			Active:               true,
			PricePrecision:       m.PricePrecision,
			AmountPrecision:      m.AmountPrecision,
			MaxLeverage:          m.MaxLeverage,
			FundingIntervalHours: 8,
		})
	}
	return markets, nil
}

func (a *Adapter) FetchMarkets(ctx context.Context) ([]unified.Market, error) {
	if err := a.guard(unified.CapFetchMarkets); err != nil {
		return nil, err
	}
	return a.base.FetchMarkets(func() ([]unified.Market, error) { return a.fetchMarketsRaw(ctx) })
}

func (a *Adapter) fetchOrderBookRaw(ctx context.Context, symbol string) (unified.OrderBook, error) {
	venueSym, err := a.base.ToVenueSymbol(symbol)
	if err != nil {
		return unified.OrderBook{}, err
	}
	var resp orderBookResponse
	if err := a.get(ctx, "/fapi/v1/depth", map[string]string{"symbol": venueSym}, &resp); err != nil {
		return unified.OrderBook{}, err
	}
	return normalize.OrderBook(venueID, symbol, bookPairs(resp.Bids), bookPairs(resp.Asks))
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

func (a *Adapter) FetchFundingRate(ctx context.Context, symbol string) (unified.FundingRate, error) {
	if err := a.guard(unified.CapFetchFundingRate); err != nil {
		return unified.FundingRate{}, err
	}
	venueSym, err := a.base.ToVenueSymbol(symbol)
	if err != nil {
		return unified.FundingRate{}, err
	}
	var entry wireFundingEntry
	if err := a.get(ctx, "/fapi/v1/premiumIndex", map[string]string{"symbol": venueSym}, &entry); err != nil {
		return unified.FundingRate{}, err
	}
	return normalize.FundingRate(venueID, symbol, normalize.RawFundingHistory{
		Entries: []normalize.RawFundingEntry{{FundingRate: entry.FundingRate, Time: entry.FundingTime}},
	}, 8)
}

func (a *Adapter) FetchFundingRateHistory(ctx context.Context, symbol string, limit int) ([]unified.FundingRate, error) {
	if err := a.guard(unified.CapFetchFundingRateHistory); err != nil {
		return nil, err
	}
	return nil, unified.New(unified.CategoryNotSupported, venueID, "fetchFundingRateHistory not supported")
}

func (a *Adapter) FetchPositions(ctx context.Context, symbols []string) ([]unified.Position, error) {
	if err := a.guard(unified.CapFetchPositions); err != nil {
		return nil, err
	}
	if err := a.base.RequireAuth(); err != nil {
		return nil, err
	}

	var raw []wirePosition
	if err := a.signedGet(ctx, "/fapi/v2/positionRisk", nil, &raw); err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}

	positions := make([]unified.Position, 0, len(raw))
	for _, p := range raw {
		sym, err := a.base.FromVenueSymbol(p.Symbol)
		if err != nil {
			continue
		}
		if len(want) > 0 && !want[sym] {
			continue
		}
		pos, err := normalize.Position(venueID, p.toRaw(sym))
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (a *Adapter) FetchBalance(ctx context.Context) ([]unified.Balance, error) {
	if err := a.guard(unified.CapFetchBalance); err != nil {
		return nil, err
	}
	if err := a.base.RequireAuth(); err != nil {
		return nil, err
	}

	var raw []wireBalance
	if err := a.signedGet(ctx, "/fapi/v2/balance", nil, &raw); err != nil {
		return nil, err
	}

	balances := make([]unified.Balance, 0, len(raw))
	for _, b := range raw {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, unified.Wrap(unified.CategoryBadResponse, venueID, fmt.Errorf("parse free balance: %w", err))
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			return nil, unified.Wrap(unified.CategoryBadResponse, venueID, fmt.Errorf("parse locked balance: %w", err))
		}
		balances = append(balances, unified.Balance{
			Currency: b.Asset,
			Venue:    venueID,
			Total:    free.Add(locked),
			Free:     free,
			Used:     locked,
		})
	}
	return balances, nil
}

func (a *Adapter) fetchOpenOrdersRaw(ctx context.Context) ([]wireOpenOrder, error) {
	if err := a.base.RequireAuth(); err != nil {
		return nil, err
	}
	var orders []wireOpenOrder
	if err := a.signedGet(ctx, "/fapi/v1/openOrders", nil, &orders); err != nil {
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
		sym, err := a.base.FromVenueSymbol(o.Symbol)
		if err != nil {
			continue
		}
		if symbol != "" && sym != symbol {
			continue
		}
		side := unified.Buy
		if o.Side == "SELL" {
			side = unified.Sell
		}
		price, _ := decimal.NewFromString(o.Price)
		origQty, _ := decimal.NewFromString(o.OrigQty)
		executed, _ := decimal.NewFromString(o.ExecutedQty)
		out = append(out, unified.Order{
			ID:              strconv.FormatInt(o.OrderID, 10),
			ClientOrderID:   o.ClientOrderID,
			Symbol:          sym,
			Venue:           venueID,
			Type:            unified.OrderTypeLimit,
			Side:            side,
			RequestedAmount: origQty,
			Price:           price,
			FilledAmount:    executed,
			RemainingAmount: origQty.Sub(executed),
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

	venueSym, err := a.base.ToVenueSymbol(req.Symbol)
	if err != nil {
		return unified.Order{}, err
	}

	clientOrderID := req.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = uuid.New().String()
	}

	side := "BUY"
	if req.Side == unified.Sell {
		side = "SELL"
	}

	wireReq := createOrderRequest{
		Symbol:        venueSym,
		Side:          side,
		Type:          "LIMIT",
		Quantity:      req.Amount.String(),
		Price:         req.Price.String(),
		ReduceOnly:    req.ReduceOnly,
		ClientOrderID: clientOrderID,
	}
	body, err := json.Marshal(wireReq)
	if err != nil {
		return unified.Order{}, unified.Wrap(unified.CategoryBadRequest, venueID, err)
	}

	var resp orderResponse
	if err := a.signedPost(ctx, "/fapi/v1/order", body, &resp); err != nil {
		return unified.Order{}, err
	}

	order, err := normalize.OrderFromCreate(venueID, req, resp.toStatusResponse())
	if err != nil {
		return unified.Order{}, err
	}
	order.ClientOrderID = clientOrderID
	return order, nil
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

	venueSym, err := a.base.ToVenueSymbol(symbol)
	if err != nil {
		return err
	}
	body, err := json.Marshal(struct {
		Symbol  string `json:"symbol"`
		OrderID string `json:"orderId"`
	}{Symbol: venueSym, OrderID: id})
	if err != nil {
		return unified.Wrap(unified.CategoryBadRequest, venueID, err)
	}

	var resp orderResponse
	return a.signedDelete(ctx, "/fapi/v1/order", body, &resp)
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
		sym, err := a.base.FromVenueSymbol(o.Symbol)
		if err != nil {
			continue
		}
		if symbol != "" && sym != symbol {
			continue
		}
		if err := a.CancelOrder(ctx, strconv.FormatInt(o.OrderID, 10), sym); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) SetLeverage(ctx context.Context, symbol string, leverage decimal.Decimal) error {
	if err := a.guard(unified.CapSetLeverage); err != nil {
		return err
	}
	return unified.New(unified.CategoryNotSupported, venueID, "setLeverage not supported")
}

func (a *Adapter) watchStream(ctx context.Context, capability unified.Capability, streamSuffix, channelKey string) (<-chan []byte, error) {
	if err := a.guard(capability); err != nil {
		return nil, err
	}
	mgr, err := a.base.WSManager()
	if err != nil {
		return nil, err
	}
	if mgr.State() == wsengine.Disconnected {
		if err := mgr.Connect(ctx); err != nil {
			return nil, unified.Wrap(unified.CategoryWebSocketDisconnected, venueID, err)
		}
	}

	subPayload, _ := json.Marshal(map[string]any{"method": "SUBSCRIBE", "params": []string{streamSuffix}, "id": 1})
	return mgr.Watch(ctx, unified.Subscription{ChannelKey: channelKey, SubscribePayload: subPayload})
}

func (a *Adapter) WatchTicker(ctx context.Context, symbol string) (<-chan unified.Ticker, error) {
	venueSym, err := a.base.ToVenueSymbol(symbol)
	if err != nil {
		return nil, err
	}
	stream := lowerSymbol(venueSym) + "@ticker"
	raw, err := a.watchStream(ctx, unified.CapWatchTicker, stream, stream)
	if err != nil {
		return nil, err
	}
	out := make(chan unified.Ticker, 64)
	go func() {
		defer close(out)
		for msg := range raw {
			var frame wsStreamFrame
			if err := json.Unmarshal(msg, &frame); err != nil {
				continue
			}
			var tick struct {
				LastPrice string `json:"c"`
				BidPrice  string `json:"b"`
				AskPrice  string `json:"a"`
			}
			if err := json.Unmarshal(frame.Data, &tick); err != nil {
				continue
			}
			last, _ := decimal.NewFromString(tick.LastPrice)
			bid, _ := decimal.NewFromString(tick.BidPrice)
			ask, _ := decimal.NewFromString(tick.AskPrice)
			select {
			case out <- unified.Ticker{Symbol: symbol, Venue: venueID, Last: last, Bid: bid, Ask: ask, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (a *Adapter) WatchOrderBook(ctx context.Context, symbol string) (<-chan unified.OrderBook, error) {
	venueSym, err := a.base.ToVenueSymbol(symbol)
	if err != nil {
		return nil, err
	}
	stream := lowerSymbol(venueSym) + "@depth"
	raw, err := a.watchStream(ctx, unified.CapWatchOrderBook, stream, stream)
	if err != nil {
		return nil, err
	}
	out := make(chan unified.OrderBook, 64)
	go func() {
		defer close(out)
		for msg := range raw {
			var frame wsStreamFrame
			if err := json.Unmarshal(msg, &frame); err != nil {
				continue
			}
			var depth orderBookResponse
			if err := json.Unmarshal(frame.Data, &depth); err != nil {
				continue
			}
			ob, err := normalize.OrderBook(venueID, symbol, bookPairs(depth.Bids), bookPairs(depth.Asks))
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

func lowerSymbol(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
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
