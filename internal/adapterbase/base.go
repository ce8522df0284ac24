// Package adapterbase provides the shared lifecycle plumbing every venue
// adapter composes: the Uninitialized/Ready/Disconnected state machine,
// capability gating, symbol-translation bijection helpers, and the
// TTL+single-flight markets/price caches. It owns exactly one
// *transport.Client, one lazily-built *wsengine.Manager, one
// *ratelimit.Limiter and one auth.Strategy per adapter instance, mirroring
// the teacher's engine.go component-ownership shape at adapter scope
// instead of bot scope.
package adapterbase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/perpx/unified/internal/auth"
	"github.com/perpx/unified/internal/ratelimit"
	"github.com/perpx/unified/internal/transport"
	"github.com/perpx/unified/internal/wsengine"
	"github.com/perpx/unified/pkg/unified"
)

// LifecycleState is the adapter-wide Uninitialized -> Ready -> Disconnected
// state machine. It never moves backwards from Disconnected.
type LifecycleState int32

const (
	Uninitialized LifecycleState = iota
	Ready
	Disconnected
)

func (s LifecycleState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

const (
	defaultMarketsTTL = time.Minute
	defaultPriceTTL   = 5 * time.Second
	marketsCacheKey   = "markets"
)

// Config wires one adapter instance's owned components.
type Config struct {
	Venue        string
	Transport    *transport.Client
	Limiter      *ratelimit.Limiter
	Auth         auth.Strategy
	Capabilities unified.CapabilityMap

	// ToVenue/FromVenue are the venue-supplied symbol translation hooks;
	// both must be deterministic and bijective for markets the venue offers.
	ToVenue   func(symbol string) (string, error)
	FromVenue func(venueSymbol string) (string, error)

	// NewWSManager lazily constructs the WebSocket manager on first use by
	// a watch* call. Nil if the venue offers no streaming capability.
	NewWSManager func() *wsengine.Manager

	MarketsTTL time.Duration
	PriceTTL   time.Duration

	Logger *slog.Logger
}

// Base is the shared concrete struct every Adapter implementation embeds.
type Base struct {
	venue  string
	state  atomic.Int32
	logger *slog.Logger

	Transport *transport.Client
	Limiter   *ratelimit.Limiter
	Auth      auth.Strategy
	Caps      unified.CapabilityMap

	toVenue   func(symbol string) (string, error)
	fromVenue func(venueSymbol string) (string, error)

	newWSManager func() *wsengine.Manager
	wsMu         sync.Mutex
	wsMgr        *wsengine.Manager

	markets *keyedTTLCache[[]unified.Market]
	prices  *keyedTTLCache[unified.Ticker]
}

// New builds a Base from Config. The adapter starts Uninitialized; callers
// must call Initialize before any non-lifecycle operation.
func New(cfg Config) *Base {
	marketsTTL := cfg.MarketsTTL
	if marketsTTL <= 0 {
		marketsTTL = defaultMarketsTTL
	}
	priceTTL := cfg.PriceTTL
	if priceTTL <= 0 {
		priceTTL = defaultPriceTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Base{
		venue:        cfg.Venue,
		logger:       logger.With("component", "adapterbase", "venue", cfg.Venue),
		Transport:    cfg.Transport,
		Limiter:      cfg.Limiter,
		Auth:         cfg.Auth,
		Caps:         cfg.Capabilities,
		toVenue:      cfg.ToVenue,
		fromVenue:    cfg.FromVenue,
		newWSManager: cfg.NewWSManager,
		markets:      newKeyedTTLCache[[]unified.Market](marketsTTL),
		prices:       newKeyedTTLCache[unified.Ticker](priceTTL),
	}
	return b
}

// State returns the current lifecycle state.
func (b *Base) State() LifecycleState {
	return LifecycleState(b.state.Load())
}

func (b *Base) setState(s LifecycleState) {
	b.state.Store(int32(s))
}

// Venue returns the venue tag this Base was constructed for.
func (b *Base) Venue() string {
	return b.venue
}

// Initialize verifies connectivity by invoking probe (typically the
// adapter's fetchMarkets implementation), seeds the markets cache with its
// result, and transitions Uninitialized -> Ready. Idempotent: calling it
// again while already Ready is a no-op. Connectivity failure maps to
// ExchangeUnavailable rather than the probe's native error category.
func (b *Base) Initialize(ctx context.Context, probe func(ctx context.Context) ([]unified.Market, error)) error {
	if b.State() == Ready {
		return nil
	}
	markets, err := probe(ctx)
	if err != nil {
		return unified.Wrap(unified.CategoryExchangeUnavailable, b.venue, err)
	}
	b.markets.set(marketsCacheKey, markets)
	b.setState(Ready)
	b.logger.Info("adapter ready", "markets", len(markets))
	return nil
}

// Disconnect releases the WebSocket manager (if constructed), clears both
// caches, and transitions to Disconnected. Safe to call repeatedly.
func (b *Base) Disconnect() error {
	b.wsMu.Lock()
	mgr := b.wsMgr
	b.wsMgr = nil
	b.wsMu.Unlock()

	if mgr != nil {
		if err := mgr.Disconnect(); err != nil {
			b.logger.Warn("error disconnecting ws manager", "error", err)
		}
	}

	b.markets.clear()
	b.prices.clear()
	b.setState(Disconnected)
	return nil
}

// MustBeReady guards every non-lifecycle operation: any call other than
// Initialize/Disconnect on a non-Ready adapter fails with NotInitialized.
func (b *Base) MustBeReady() error {
	if b.State() != Ready {
		return unified.New(unified.CategoryNotInitialized, b.venue, "adapter is not initialized; call Initialize first")
	}
	return nil
}

// RequireCapability gates op before any network traffic.
func (b *Base) RequireCapability(op unified.Capability) error {
	return RequireCapability(b.Caps, b.venue, op)
}

// RequireAuth delegates to the owned Auth strategy, or fails with
// MissingCredentials if no strategy was configured.
func (b *Base) RequireAuth() error {
	if b.Auth == nil {
		return unified.New(unified.CategoryMissingCredentials, b.venue, "adapter has no authentication strategy configured")
	}
	return b.Auth.RequireAuth()
}

// ToVenueSymbol translates a unified symbol to its venue-native form.
func (b *Base) ToVenueSymbol(symbol string) (string, error) {
	if b.toVenue == nil {
		return "", unified.New(unified.CategoryBadRequest, b.venue, "no symbol translation configured")
	}
	return b.toVenue(symbol)
}

// FromVenueSymbol translates a venue-native symbol back to unified form.
func (b *Base) FromVenueSymbol(venueSymbol string) (string, error) {
	if b.fromVenue == nil {
		return "", unified.New(unified.CategoryBadRequest, b.venue, "no symbol translation configured")
	}
	return b.fromVenue(venueSymbol)
}

// CheckBijection verifies toVenue/fromVenue round-trip to the identity for
// every symbol given. Used by adapter tests, not by production call paths.
func (b *Base) CheckBijection(symbols []string) error {
	for _, sym := range symbols {
		venueSym, err := b.ToVenueSymbol(sym)
		if err != nil {
			return fmt.Errorf("toVenue(%q): %w", sym, err)
		}
		back, err := b.FromVenueSymbol(venueSym)
		if err != nil {
			return fmt.Errorf("fromVenue(%q): %w", venueSym, err)
		}
		if back != sym {
			return fmt.Errorf("symbol translation not bijective: %q -> %q -> %q", sym, venueSym, back)
		}
	}
	return nil
}

// WSManager returns the lazily-constructed WebSocket manager, building it
// on first call. Returns NotSupported if the adapter was configured
// without a WS manager factory (no streaming capability).
func (b *Base) WSManager() (*wsengine.Manager, error) {
	b.wsMu.Lock()
	defer b.wsMu.Unlock()

	if b.wsMgr != nil {
		return b.wsMgr, nil
	}
	if b.newWSManager == nil {
		return nil, unified.New(unified.CategoryNotSupported, b.venue, "adapter has no streaming transport configured")
	}
	b.wsMgr = b.newWSManager()
	return b.wsMgr, nil
}

// FetchMarkets returns the cached market list if fresh, otherwise calls fn
// under the markets cache's single-flight discipline and repopulates it.
func (b *Base) FetchMarkets(fn func() ([]unified.Market, error)) ([]unified.Market, error) {
	return b.markets.fetch(marketsCacheKey, fn)
}

// FetchTicker returns the cached ticker for symbol if fresh, otherwise
// calls fn under the price cache's single-flight discipline.
func (b *Base) FetchTicker(symbol string, fn func() (unified.Ticker, error)) (unified.Ticker, error) {
	return b.prices.fetch(symbol, fn)
}

// Logger returns the component-scoped logger for use by composing adapters.
func (b *Base) Logger() *slog.Logger {
	return b.logger
}
