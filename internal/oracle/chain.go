package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Chain asks each source in order and returns the first price. The error of every
// failed source is joined into the returned error.
type Chain []PriceOracle

func (c Chain) GetCurrentPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	if len(c) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no price sources configured", ErrNoPrice)
	}
	var errs []error
	for i, src := range c {
		price, err := src.GetCurrentPrice(ctx, pair)
		if err == nil {
			if i > 0 {
				zap.L().Warn("Price served by fallback source", zap.String("pair", pair), zap.Int("source_index", i))
			}
			return price, nil
		}
		if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
		errs = append(errs, err)
	}
	return decimal.Zero, errors.Join(errs...)
}
