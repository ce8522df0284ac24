package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/perpx/unified/pkg/unified"
)

// Ed25519Strategy signs raw message bytes with an Ed25519 keypair, the
// scheme Solana-settled perps venues use. New relative to the teacher
// (which only ever dealt with ECDSA wallets); grounded on arcSignv2's
// provider-keyed signing style and gagliardetto/solana-go's key type.
type Ed25519Strategy struct {
	venue string
	key   solana.PrivateKey // zero value (nil) means "no credentials configured"
	nonce atomic.Uint64

	// BuildMessage produces the exact byte sequence this venue expects
	// signed for env — typically timestamp/method/path/body concatenated
	// in a venue-specific order.
	BuildMessage func(env unified.RequestEnvelope, nonce uint64) []byte
}

// NewEd25519Strategy parses a base58-encoded Ed25519 private key. An empty
// key string constructs a strategy with no signing capability;
// RequireAuth reports it.
func NewEd25519Strategy(venue, base58Key string, buildMessage func(unified.RequestEnvelope, uint64) []byte) (*Ed25519Strategy, error) {
	if base58Key == "" {
		return &Ed25519Strategy{venue: venue, BuildMessage: buildMessage}, nil
	}

	key, err := solana.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return nil, fmt.Errorf("parse ed25519 private key: %w", err)
	}

	return &Ed25519Strategy{venue: venue, key: key, BuildMessage: buildMessage}, nil
}

func (s *Ed25519Strategy) RequireAuth() error {
	if len(s.key) == 0 {
		return unified.New(unified.CategoryMissingCredentials, s.venue, "Ed25519 signing key not configured")
	}
	return nil
}

// Address returns the base58-encoded public key this strategy signs as.
func (s *Ed25519Strategy) Address() string {
	if len(s.key) == 0 {
		return ""
	}
	return s.key.PublicKey().String()
}

// NextNonce returns a monotonically increasing per-instance counter.
func (s *Ed25519Strategy) NextNonce() uint64 {
	return s.nonce.Add(1)
}

func (s *Ed25519Strategy) ResetNonce() {
	s.nonce.Store(0)
}

func (s *Ed25519Strategy) Sign(ctx context.Context, env unified.RequestEnvelope) (unified.SignedRequest, error) {
	if err := s.RequireAuth(); err != nil {
		return unified.SignedRequest{}, err
	}

	ts := env.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	nonce := s.NextNonce()

	payload := s.BuildMessage(env, nonce)
	sig, err := s.key.Sign(payload)
	if err != nil {
		return unified.SignedRequest{}, unified.Wrap(unified.CategoryInvalidSignature, s.venue, err)
	}

	headers := make(map[string]string, len(env.Headers)+3)
	for k, v := range env.Headers {
		headers[k] = v
	}
	headers["X-Signature"] = base64.StdEncoding.EncodeToString(sig[:])
	headers["X-Public-Key"] = s.key.PublicKey().String()
	headers["X-Timestamp"] = strconv.FormatInt(ts.Unix(), 10)
	headers["X-Nonce"] = strconv.FormatUint(nonce, 10)

	return unified.SignedRequest{Method: env.Method, Path: env.Path, Headers: headers, Body: env.Body}, nil
}
