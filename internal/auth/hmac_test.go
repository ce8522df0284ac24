package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/perpx/unified/pkg/unified"
)

func TestHMACStrategyRequireAuthGatesBeforeSigning(t *testing.T) {
	t.Parallel()
	s := NewHMACStrategy("test", HMACCredentials{}, DefaultHMACHeaderNames())

	if err := s.RequireAuth(); err == nil {
		t.Fatal("expected MissingCredentials error")
	}

	_, err := s.Sign(context.Background(), unified.RequestEnvelope{Method: "GET", Path: "/x"})
	if err == nil {
		t.Fatal("expected Sign to fail without credentials")
	}
	uerr, ok := err.(*unified.Error)
	if !ok || uerr.Category != unified.CategoryMissingCredentials {
		t.Fatalf("expected MissingCredentials, got %v", err)
	}
}

func TestHMACStrategySignProducesDeterministicSignature(t *testing.T) {
	t.Parallel()
	creds := HMACCredentials{APIKey: "key1", Secret: "c2VjcmV0", Passphrase: "pass1"} // base64("secret")
	s := NewHMACStrategy("test", creds, DefaultHMACHeaderNames())

	env := unified.RequestEnvelope{Method: "POST", Path: "/orders", Body: []byte(`{"a":1}`)}

	signed1, err := s.Sign(context.Background(), env)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if signed1.Headers["X-Api-Key"] != "key1" {
		t.Errorf("api key header missing or wrong: %v", signed1.Headers)
	}
	if signed1.Headers["X-Signature"] == "" {
		t.Error("expected non-empty signature header")
	}
	if signed1.Headers["X-Passphrase"] != "pass1" {
		t.Errorf("passphrase header missing: %v", signed1.Headers)
	}
}

func TestHMACStrategyConcurrentSignIsSafe(t *testing.T) {
	t.Parallel()
	creds := HMACCredentials{APIKey: "key1", Secret: "c2VjcmV0"}
	s := NewHMACStrategy("test", creds, DefaultHMACHeaderNames())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Sign(context.Background(), unified.RequestEnvelope{Method: "GET", Path: "/x"})
			if err != nil {
				t.Errorf("concurrent Sign failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestHMACStrategyNonceMonotonic(t *testing.T) {
	t.Parallel()
	s := NewHMACStrategy("test", HMACCredentials{APIKey: "k", Secret: "c2VjcmV0"}, DefaultHMACHeaderNames())

	n1 := s.NextNonce()
	n2 := s.NextNonce()
	if n2 <= n1 {
		t.Errorf("expected monotonically increasing nonce, got %d then %d", n1, n2)
	}

	s.ResetNonce()
	n3 := s.NextNonce()
	if n3 != 1 {
		t.Errorf("expected nonce to restart at 1 after reset, got %d", n3)
	}
}
