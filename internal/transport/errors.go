package transport

import (
	"net/http"
	"strings"

	"github.com/perpx/unified/pkg/unified"
)

// ErrorMapper lets a venue adapter recognize its own error bodies before
// falling back to the default substring matcher. It returns ok=false to
// defer to DefaultErrorMapper.
type ErrorMapper func(body []byte) (category unified.Category, ok bool)

// ClassifyStatus maps an HTTP status code to a Category per spec §4.2 /
// §7. It never inspects the body — that's ErrorMapper's job — so the same
// mapping applies uniformly across every venue.
func ClassifyStatus(status int) unified.Category {
	switch {
	case status == http.StatusBadRequest:
		return unified.CategoryBadRequest
	case status == http.StatusUnauthorized:
		return unified.CategoryUnauthorized
	case status == http.StatusForbidden:
		return unified.CategoryForbidden
	case status == http.StatusNotFound:
		return unified.CategoryNotFound
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return unified.CategoryTimeout
	case status == http.StatusTooManyRequests:
		return unified.CategoryRateLimit
	case status >= 500 && status <= 503:
		return unified.CategoryServerError
	case status >= 400 && status < 500:
		return unified.CategoryBadRequest
	case status >= 500:
		return unified.CategoryServerError
	default:
		return unified.CategoryBadResponse
	}
}

// IsRetryableStatus reports whether spec §4.2's retry policy considers this
// status retryable: network errors and timeouts are handled separately by
// the caller, this only covers status-code-driven retries.
func IsRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// DefaultErrorMapper recognizes a handful of common venue-body substrings
// and maps them to the corresponding category. Venues with richer or
// conflicting vocabularies supply their own ErrorMapper, tried first.
func DefaultErrorMapper(body []byte) (unified.Category, bool) {
	text := strings.ToLower(string(body))
	switch {
	case strings.Contains(text, "insufficient margin"):
		return unified.CategoryInsufficientMargin, true
	case strings.Contains(text, "insufficient balance"), strings.Contains(text, "insufficient funds"):
		return unified.CategoryInsufficientBalance, true
	case strings.Contains(text, "invalid signature"):
		return unified.CategoryInvalidSignature, true
	case strings.Contains(text, "order not found"):
		return unified.CategoryOrderNotFound, true
	case strings.Contains(text, "position not found"):
		return unified.CategoryPositionNotFound, true
	case strings.Contains(text, "minimum order size"), strings.Contains(text, "min order size"), strings.Contains(text, "min_order_size"):
		return unified.CategoryMinimumOrderSize, true
	case strings.Contains(text, "reduce only"), strings.Contains(text, "reduce-only"):
		return unified.CategoryInvalidOrder, true
	case strings.Contains(text, "expired"):
		return unified.CategoryExpiredAuth, true
	default:
		return "", false
	}
}

// classify resolves the final category for a response: the venue mapper is
// tried first (if supplied and the body is non-empty), then the default
// substring mapper, then the raw status-code mapping.
func classify(status int, body []byte, mapper ErrorMapper) unified.Category {
	if mapper != nil && len(body) > 0 {
		if cat, ok := mapper(body); ok {
			return cat
		}
	}
	if len(body) > 0 {
		if cat, ok := DefaultErrorMapper(body); ok {
			return cat
		}
	}
	return ClassifyStatus(status)
}
