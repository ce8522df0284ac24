package hmacspot

import "github.com/perpx/unified/pkg/unified"

func errBadSymbol(symbol string) error {
	return unified.New(unified.CategoryBadRequest, venueID, "unrecognized symbol: "+symbol)
}
