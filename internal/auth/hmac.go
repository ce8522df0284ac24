package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/perpx/unified/pkg/unified"
)

// HMACCredentials is the key/secret/passphrase triplet an HMAC venue
// issues, the same shape the teacher's Credentials held for L2 auth.
type HMACCredentials struct {
	APIKey     string
	Secret     string // base64-encoded, any of the four common alphabets
	Passphrase string
}

// HMACStrategy signs "timestamp + method + path [+ body]" with
// HMAC-SHA256, adapted from the teacher's buildHMAC. Many spot/L2-style
// venues (the hmacspot instance adapter among them) use exactly this
// scheme with venue-specific header names supplied via HeaderNames.
type HMACStrategy struct {
	venue   string
	creds   HMACCredentials
	headers HMACHeaderNames
	nonce   atomic.Uint64
}

// HMACHeaderNames lets each venue name its own headers while reusing the
// same signing algorithm — e.g. Polymarket's POLY_* headers versus another
// venue's X-MBX-* headers.
type HMACHeaderNames struct {
	Address    string // optional, empty to omit
	Signature  string
	Timestamp  string
	APIKey     string
	Passphrase string // optional, empty to omit
}

// DefaultHMACHeaderNames returns generic X-* header names (X-Signature,
// X-Timestamp, X-Api-Key, X-Passphrase) and no address header.
func DefaultHMACHeaderNames() HMACHeaderNames {
	return HMACHeaderNames{
		Signature:  "X-Signature",
		Timestamp:  "X-Timestamp",
		APIKey:     "X-Api-Key",
		Passphrase: "X-Passphrase",
	}
}

// NewHMACStrategy constructs an HMACStrategy. creds with an empty APIKey or
// Secret still constructs successfully; RequireAuth reports the gap.
func NewHMACStrategy(venue string, creds HMACCredentials, headers HMACHeaderNames) *HMACStrategy {
	return &HMACStrategy{venue: venue, creds: creds, headers: headers}
}

func (s *HMACStrategy) RequireAuth() error {
	if s.creds.APIKey == "" || s.creds.Secret == "" {
		return unified.New(unified.CategoryMissingCredentials, s.venue, "HMAC API key/secret not configured")
	}
	return nil
}

// NextNonce returns a monotonically increasing per-instance counter, for
// venues that require one in addition to the timestamp.
func (s *HMACStrategy) NextNonce() uint64 {
	return s.nonce.Add(1)
}

func (s *HMACStrategy) ResetNonce() {
	s.nonce.Store(0)
}

func (s *HMACStrategy) Sign(ctx context.Context, env unified.RequestEnvelope) (unified.SignedRequest, error) {
	if err := s.RequireAuth(); err != nil {
		return unified.SignedRequest{}, err
	}

	ts := env.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	timestamp := strconv.FormatInt(ts.Unix(), 10)

	sig, err := s.sign(timestamp, env.Method, env.Path, string(env.Body))
	if err != nil {
		return unified.SignedRequest{}, unified.Wrap(unified.CategoryInvalidSignature, s.venue, err)
	}

	headers := make(map[string]string, len(env.Headers)+4)
	for k, v := range env.Headers {
		headers[k] = v
	}
	headers[s.headers.Signature] = sig
	headers[s.headers.Timestamp] = timestamp
	if s.headers.APIKey != "" {
		headers[s.headers.APIKey] = s.creds.APIKey
	}
	if s.headers.Passphrase != "" && s.creds.Passphrase != "" {
		headers[s.headers.Passphrase] = s.creds.Passphrase
	}

	return unified.SignedRequest{Method: env.Method, Path: env.Path, Headers: headers, Body: env.Body}, nil
}

// sign computes the HMAC-SHA256 signature over timestamp+method+path[+body],
// base64-decoding the secret first — the teacher tries four base64
// alphabets since venues are inconsistent about which one they issue
// secrets in.
func (s *HMACStrategy) sign(timestamp, method, path, body string) (string, error) {
	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}

	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(s.creds.Secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	message := timestamp + method + path + body

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}
