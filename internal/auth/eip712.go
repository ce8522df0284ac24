package auth

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/perpx/unified/pkg/unified"
)

// TypedDataMessage lets a caller describe the EIP-712 message to sign
// without depending on apitypes directly, generalizing the teacher's
// hardcoded "ClobAuth" type into an adapter-supplied shape.
type TypedDataMessage struct {
	Domain      apitypes.TypedDataDomain
	Types       apitypes.Types
	PrimaryType string
	Message     apitypes.TypedDataMessage
}

// EIP712Strategy signs typed-data messages with an ECDSA wallet key, the
// scheme on-chain perps venues (Hyperliquid-style) use for order placement
// and withdrawal authorization. Adapted from the teacher's
// signClobAuth/SignTypedData, generalized beyond the hardcoded ClobAuth type.
type EIP712Strategy struct {
	venue      string
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int

	// BuildMessage turns a RequestEnvelope into the typed-data structure
	// this venue expects to sign — the part that's genuinely venue-specific.
	BuildMessage func(env unified.RequestEnvelope, address common.Address, chainID *big.Int) (TypedDataMessage, error)
}

// NewEIP712Strategy parses a hex-encoded ECDSA private key (with or
// without the 0x prefix) and constructs a strategy for chainID.
func NewEIP712Strategy(venue, privateKeyHex string, chainID int64, buildMessage func(unified.RequestEnvelope, common.Address, *big.Int) (TypedDataMessage, error)) (*EIP712Strategy, error) {
	keyHex := privateKeyHex
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}
	if keyHex == "" {
		return &EIP712Strategy{venue: venue, chainID: big.NewInt(chainID), BuildMessage: buildMessage}, nil
	}

	pk, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &EIP712Strategy{
		venue:        venue,
		privateKey:   pk,
		address:      crypto.PubkeyToAddress(pk.PublicKey),
		chainID:      big.NewInt(chainID),
		BuildMessage: buildMessage,
	}, nil
}

func (s *EIP712Strategy) RequireAuth() error {
	if s.privateKey == nil {
		return unified.New(unified.CategoryMissingCredentials, s.venue, "EIP-712 signing key not configured")
	}
	return nil
}

// Address returns the wallet address this strategy signs as.
func (s *EIP712Strategy) Address() string {
	return s.address.Hex()
}

func (s *EIP712Strategy) Sign(ctx context.Context, env unified.RequestEnvelope) (unified.SignedRequest, error) {
	if err := s.RequireAuth(); err != nil {
		return unified.SignedRequest{}, err
	}

	td, err := s.BuildMessage(env, s.address, s.chainID)
	if err != nil {
		return unified.SignedRequest{}, unified.Wrap(unified.CategoryBadRequest, s.venue, err)
	}

	sig, err := s.signTypedData(td)
	if err != nil {
		return unified.SignedRequest{}, unified.Wrap(unified.CategoryInvalidSignature, s.venue, err)
	}

	body := env.Body
	if body == nil {
		signed := struct {
			Message   apitypes.TypedDataMessage `json:"message"`
			Signature string                    `json:"signature"`
		}{Message: td.Message, Signature: sig}
		body, err = json.Marshal(signed)
		if err != nil {
			return unified.SignedRequest{}, unified.Wrap(unified.CategoryBadRequest, s.venue, err)
		}
	}

	headers := make(map[string]string, len(env.Headers)+1)
	for k, v := range env.Headers {
		headers[k] = v
	}
	headers["X-Signature"] = sig

	return unified.SignedRequest{Method: env.Method, Path: env.Path, Headers: headers, Body: body}, nil
}

// signTypedData hashes and signs td per EIP-712, adjusting V to 27/28 the
// way the teacher's SignTypedData does.
func (s *EIP712Strategy) signTypedData(td TypedDataMessage) (string, error) {
	typedData := apitypes.TypedData{
		Types:       td.Types,
		PrimaryType: td.PrimaryType,
		Domain:      td.Domain,
		Message:     td.Message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign typed data: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + common.Bytes2Hex(sig), nil
}

// ChainIDHex exposes the chain ID in the hex-or-decimal encoding go-ethereum's
// apitypes expects on a TypedDataDomain, for venue BuildMessage implementations.
func ChainIDHex(chainID *big.Int) *ethmath.HexOrDecimal256 {
	return (*ethmath.HexOrDecimal256)(new(big.Int).Set(chainID))
}
