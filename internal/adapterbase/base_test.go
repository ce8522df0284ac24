package adapterbase

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/perpx/unified/pkg/unified"
)

func testBase(t *testing.T, caps unified.CapabilityMap) *Base {
	t.Helper()
	return New(Config{
		Venue:        "test",
		Capabilities: caps,
		ToVenue: func(symbol string) (string, error) {
			return strings.TrimSuffix(strings.Replace(symbol, "/", "-", 1), ":USDT") + "-PERP", nil
		},
		FromVenue: func(venueSymbol string) (string, error) {
			base := strings.TrimSuffix(venueSymbol, "-PERP")
			return strings.Replace(base, "-", "/", 1) + ":USDT", nil
		},
	})
}

func TestMustBeReadyGatesBeforeInitialize(t *testing.T) {
	t.Parallel()
	b := testBase(t, unified.CapabilityMap{})

	err := b.MustBeReady()
	if err == nil {
		t.Fatal("expected NotInitialized before Initialize")
	}
	uerr, ok := err.(*unified.Error)
	if !ok || uerr.Category != unified.CategoryNotInitialized {
		t.Fatalf("expected NotInitialized, got %v", err)
	}
}

func TestInitializeTransitionsToReady(t *testing.T) {
	t.Parallel()
	b := testBase(t, unified.CapabilityMap{})

	called := 0
	probe := func(ctx context.Context) ([]unified.Market, error) {
		called++
		return []unified.Market{{Symbol: "BTC/USDT:USDT"}}, nil
	}

	if err := b.Initialize(context.Background(), probe); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if b.State() != Ready {
		t.Errorf("State() = %v, want Ready", b.State())
	}
	if err := b.MustBeReady(); err != nil {
		t.Errorf("MustBeReady() after Initialize: %v", err)
	}

	// Idempotent: a second call must not re-probe.
	if err := b.Initialize(context.Background(), probe); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if called != 1 {
		t.Errorf("probe called %d times, want 1 (idempotent)", called)
	}
}

func TestInitializeFailureMapsToExchangeUnavailable(t *testing.T) {
	t.Parallel()
	b := testBase(t, unified.CapabilityMap{})

	probe := func(ctx context.Context) ([]unified.Market, error) {
		return nil, unified.New(unified.CategoryNetwork, "test", "connection refused")
	}

	err := b.Initialize(context.Background(), probe)
	if err == nil {
		t.Fatal("expected error")
	}
	uerr, ok := err.(*unified.Error)
	if !ok || uerr.Category != unified.CategoryExchangeUnavailable {
		t.Fatalf("expected ExchangeUnavailable, got %v", err)
	}
	if b.State() != Uninitialized {
		t.Errorf("State() = %v, want Uninitialized after failed probe", b.State())
	}
}

func TestDisconnectIsSafeToCallRepeatedly(t *testing.T) {
	t.Parallel()
	b := testBase(t, unified.CapabilityMap{})
	_ = b.Initialize(context.Background(), func(ctx context.Context) ([]unified.Market, error) {
		return nil, nil
	})

	if err := b.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := b.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
	if b.State() != Disconnected {
		t.Errorf("State() = %v, want Disconnected", b.State())
	}
}

func TestCapabilityGateBlocksWithoutNetworkCall(t *testing.T) {
	t.Parallel()
	b := testBase(t, unified.CapabilityMap{unified.CapSetLeverage: unified.Unsupported})

	called := false
	op := func() error {
		if err := b.RequireCapability(unified.CapSetLeverage); err != nil {
			return err
		}
		called = true
		return nil
	}

	if err := op(); err == nil {
		t.Fatal("expected NotSupported")
	}
	if called {
		t.Error("operation body ran despite NotSupported capability")
	}
}

func TestCapabilityGateAllowsEmulated(t *testing.T) {
	t.Parallel()
	b := testBase(t, unified.CapabilityMap{unified.CapFetchOHLCV: unified.Emulated})

	if err := b.RequireCapability(unified.CapFetchOHLCV); err != nil {
		t.Errorf("expected emulated capability to pass gate, got %v", err)
	}
}

func TestRequireAuthWithoutStrategy(t *testing.T) {
	t.Parallel()
	b := testBase(t, unified.CapabilityMap{})

	if err := b.RequireAuth(); err == nil {
		t.Fatal("expected MissingCredentials with no auth strategy configured")
	}
}

func TestSymbolTranslationBijection(t *testing.T) {
	t.Parallel()
	b := testBase(t, unified.CapabilityMap{})

	if err := b.CheckBijection([]string{"BTC/USDT:USDT", "ETH/USDT:USDT"}); err != nil {
		t.Errorf("CheckBijection: %v", err)
	}
}

func TestWSManagerNotSupportedWithoutFactory(t *testing.T) {
	t.Parallel()
	b := testBase(t, unified.CapabilityMap{})

	_, err := b.WSManager()
	if err == nil {
		t.Fatal("expected NotSupported without a WS manager factory")
	}
}

func TestFetchMarketsSingleFlightCollapsesConcurrentMisses(t *testing.T) {
	t.Parallel()
	b := testBase(t, unified.CapabilityMap{})

	var calls atomic.Int64
	fetch := func() ([]unified.Market, error) {
		calls.Add(1)
		return []unified.Market{{Symbol: "BTC/USDT:USDT"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.FetchMarkets(fetch); err != nil {
				t.Errorf("FetchMarkets: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("upstream fetch called %d times, want 1 (single-flight)", calls.Load())
	}
}

func TestFetchTickerCachesPerSymbol(t *testing.T) {
	t.Parallel()
	b := testBase(t, unified.CapabilityMap{})

	btcCalls, ethCalls := 0, 0
	btc := func() (unified.Ticker, error) {
		btcCalls++
		return unified.Ticker{Symbol: "BTC/USDT:USDT"}, nil
	}
	eth := func() (unified.Ticker, error) {
		ethCalls++
		return unified.Ticker{Symbol: "ETH/USDT:USDT"}, nil
	}

	for i := 0; i < 3; i++ {
		if _, err := b.FetchTicker("BTC/USDT:USDT", btc); err != nil {
			t.Fatalf("FetchTicker btc: %v", err)
		}
		if _, err := b.FetchTicker("ETH/USDT:USDT", eth); err != nil {
			t.Fatalf("FetchTicker eth: %v", err)
		}
	}

	if btcCalls != 1 || ethCalls != 1 {
		t.Errorf("btcCalls=%d ethCalls=%d, want 1/1 (cached within TTL)", btcCalls, ethCalls)
	}
}
