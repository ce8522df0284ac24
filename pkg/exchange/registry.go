package exchange

import (
	"fmt"
	"sync"
)

// Constructor builds one venue's Adapter from Config. Venue packages
// register a Constructor in their own init() via RegisterVenue — the
// module never imports venue packages directly, so only venues the caller
// actually imports end up in the table.
type Constructor func(cfg Config) (Adapter, error)

// registry is the static venueID -> constructor table, grounded on
// arcSignv2's ProviderRegistry.RegisterProvider pattern. Unlike that
// registry, this one never caches constructed instances — every
// CreateExchange call gets a fresh Adapter, since two callers of the same
// venue may hold entirely different credentials.
var registry = struct {
	mu    sync.RWMutex
	table map[string]Constructor
}{table: make(map[string]Constructor)}

// RegisterVenue registers ctor under venueID. Intended to be called from a
// venue package's init(); panics on a duplicate registration since that
// indicates two venue packages claiming the same id at link time.
func RegisterVenue(venueID string, ctor Constructor) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if venueID == "" {
		panic("exchange: venue id must not be empty")
	}
	if ctor == nil {
		panic("exchange: constructor must not be nil")
	}
	if _, exists := registry.table[venueID]; exists {
		panic(fmt.Sprintf("exchange: venue %q already registered", venueID))
	}
	registry.table[venueID] = ctor
}

// CreateExchange instantiates the Adapter registered for venueID. The
// returned Adapter is Uninitialized — callers must call Initialize before
// issuing any other operation.
func CreateExchange(venueID string, cfg Config) (Adapter, error) {
	registry.mu.RLock()
	ctor, ok := registry.table[venueID]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("exchange: no venue registered under %q", venueID)
	}
	cfg.Venue = venueID
	return ctor(cfg)
}

// RegisteredVenues lists every venue id currently registered, for
// discovery/debugging.
func RegisteredVenues() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	ids := make([]string, 0, len(registry.table))
	for id := range registry.table {
		ids = append(ids, id)
	}
	return ids
}
