// Package auth implements the authentication-strategy polymorphism venues
// need: HMAC request signing, EIP-712 typed-data signing, and Ed25519
// message signing, all behind one Strategy interface so the transport and
// adapter layers never branch on which scheme a venue uses.
package auth

import (
	"context"

	"github.com/perpx/unified/pkg/unified"
)

// Strategy signs an outgoing request envelope into venue-ready headers and
// body. Each venue adapter owns exactly one Strategy instance for its
// lifetime.
type Strategy interface {
	// Sign decorates env with whatever the venue's auth scheme requires —
	// headers, a signed body, or both — and returns the result ready to
	// hand to transport.Client.
	Sign(ctx context.Context, env unified.RequestEnvelope) (unified.SignedRequest, error)

	// RequireAuth returns a MissingCredentials error if this strategy was
	// constructed without the credentials it needs to sign, nil otherwise.
	// Adapters call this before dispatching any authenticated operation so
	// the failure is immediate and makes no network call.
	RequireAuth() error
}

// Addressable is implemented by strategies that derive an on-chain address
// from their signing key (EIP-712, Ed25519). Adapters that need to report
// "which wallet is this client trading as" type-assert for it.
type Addressable interface {
	Address() string
}

// NonceSource is implemented by strategies whose venue requires a
// monotonically increasing nonce per signed request.
type NonceSource interface {
	NextNonce() uint64
	ResetNonce()
}
