package oracle

import (
	"context"
	"fmt"
	"strings"

	"exchange-ledger-go/internal/metrics"
	"exchange-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Static prices pairs from the configured mock prices of the currency catalog. Every
// price is expressed in the stable currency, so BASE/QUOTE is price(BASE) / price(QUOTE).
type Static struct {
	catalog   models.CurrencyCatalog
	stable    string
	precision int32
}

func NewStatic(catalog models.CurrencyCatalog, stable string) *Static {
	return &Static{catalog: catalog, stable: strings.ToUpper(stable), precision: 8}
}

func (s *Static) GetCurrentPrice(_ context.Context, pair string) (decimal.Decimal, error) {
	base, quote, err := models.SplitPair(pair)
	if err != nil {
		metrics.OracleRequests.WithLabelValues("static", "error").Inc()
		return decimal.Zero, fmt.Errorf("%w: %v", ErrNoPrice, err)
	}
	bp, ok := s.price(base)
	if !ok {
		metrics.OracleRequests.WithLabelValues("static", "miss").Inc()
		return decimal.Zero, fmt.Errorf("%w: no static price for %s", ErrNoPrice, base)
	}
	qp, ok := s.price(quote)
	if !ok {
		metrics.OracleRequests.WithLabelValues("static", "miss").Inc()
		return decimal.Zero, fmt.Errorf("%w: no static price for %s", ErrNoPrice, quote)
	}
	metrics.OracleRequests.WithLabelValues("static", "ok").Inc()
	if qp.Equal(decimal.NewFromInt(1)) {
		return checkPositive(pair, bp)
	}
	return checkPositive(pair, bp.DivRound(qp, s.precision))
}

func (s *Static) price(symbol string) (decimal.Decimal, bool) {
	if symbol == s.stable {
		return decimal.NewFromInt(1), true
	}
	cur, ok := s.catalog[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return cur.StaticPrice()
}
