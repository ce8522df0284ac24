package adapterbase

import "github.com/perpx/unified/pkg/unified"

// RequireCapability gates op against m without any network traffic,
// returning NotSupported when the venue hasn't declared it supported or
// emulated.
func RequireCapability(m unified.CapabilityMap, venue string, op unified.Capability) error {
	if m.Enabled(op) {
		return nil
	}
	return unified.New(unified.CategoryNotSupported, venue, string(op)+" is not supported by this venue")
}
