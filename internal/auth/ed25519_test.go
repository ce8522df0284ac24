package auth

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/perpx/unified/pkg/unified"
)

func testEd25519Message(env unified.RequestEnvelope, nonce uint64) []byte {
	return []byte(env.Method + env.Path + string(rune(nonce)))
}

func TestEd25519StrategyRequireAuthWithoutKey(t *testing.T) {
	t.Parallel()
	s, err := NewEd25519Strategy("test", "", testEd25519Message)
	if err != nil {
		t.Fatalf("NewEd25519Strategy: %v", err)
	}
	if err := s.RequireAuth(); err == nil {
		t.Fatal("expected MissingCredentials with no key configured")
	}
}

func TestEd25519StrategySignsAndDerivesAddress(t *testing.T) {
	t.Parallel()
	key := solana.NewWallet().PrivateKey
	s, err := NewEd25519Strategy("test", key.String(), testEd25519Message)
	if err != nil {
		t.Fatalf("NewEd25519Strategy: %v", err)
	}
	if err := s.RequireAuth(); err != nil {
		t.Fatalf("RequireAuth: %v", err)
	}
	if s.Address() == "" {
		t.Error("expected non-empty Address()")
	}

	signed, err := s.Sign(context.Background(), unified.RequestEnvelope{Method: "POST", Path: "/orders"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if signed.Headers["X-Signature"] == "" {
		t.Error("expected non-empty signature header")
	}
	if signed.Headers["X-Public-Key"] != s.Address() {
		t.Errorf("public key header = %q, want %q", signed.Headers["X-Public-Key"], s.Address())
	}
}

func TestEd25519StrategyNonceMonotonic(t *testing.T) {
	t.Parallel()
	key := solana.NewWallet().PrivateKey
	s, err := NewEd25519Strategy("test", key.String(), testEd25519Message)
	if err != nil {
		t.Fatalf("NewEd25519Strategy: %v", err)
	}

	n1 := s.NextNonce()
	n2 := s.NextNonce()
	if n2 <= n1 {
		t.Errorf("expected increasing nonce, got %d then %d", n1, n2)
	}
}
