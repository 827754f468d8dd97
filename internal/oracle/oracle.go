package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned when a source has no price for the pair
var ErrNoPrice = errors.New("no price for pair")

// PriceOracle returns the current market price of one BASE in QUOTE for a "BASE/QUOTE" pair.
// A successful call always returns a strictly positive price.
type PriceOracle interface {
	GetCurrentPrice(ctx context.Context, pair string) (decimal.Decimal, error)
}

// Func adapts a function to PriceOracle
type Func func(ctx context.Context, pair string) (decimal.Decimal, error)

func (f Func) GetCurrentPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	return f(ctx, pair)
}

func checkPositive(pair string, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s returned non-positive price %s", ErrNoPrice, pair, price.String())
	}
	return price, nil
}
