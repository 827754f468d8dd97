package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"exchange-ledger-go/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultBinanceURL = "https://api.binance.com"

// Binance reads last-trade prices from the public ticker endpoint
type Binance struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type BinanceOption func(*Binance)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) BinanceOption {
	return func(b *Binance) { b.httpClient = c }
}

// WithRateLimit caps outgoing requests. A non-positive rps disables the limiter.
func WithRateLimit(rps float64, burst int) BinanceOption {
	return func(b *Binance) {
		if rps <= 0 {
			b.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewBinance(baseURL string, timeout time.Duration, opts ...BinanceOption) *Binance {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	b := &Binance{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Symbol converts "BTC/USDT" to the exchange symbol "BTCUSDT"
func Symbol(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(pair, "/", ""))
}

func (b *Binance) GetCurrentPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	price, err := b.fetch(ctx, pair)
	if err != nil {
		metrics.OracleRequests.WithLabelValues("binance", "error").Inc()
		return decimal.Zero, err
	}
	metrics.OracleRequests.WithLabelValues("binance", "ok").Inc()
	return price, nil
}

func (b *Binance) fetch(ctx context.Context, pair string) (decimal.Decimal, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return decimal.Zero, fmt.Errorf("rate limiter: %w", err)
		}
	}

	q := url.Values{}
	q.Set("symbol", Symbol(pair))
	endpoint := b.baseURL + "/api/v3/ticker/price?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build ticker request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ticker request for %s failed: %w", pair, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		// unknown symbol
		return decimal.Zero, fmt.Errorf("%w: %s is not listed", ErrNoPrice, pair)
	case resp.StatusCode != http.StatusOK:
		return decimal.Zero, fmt.Errorf("ticker request for %s returned status %d", pair, resp.StatusCode)
	}

	var body tickerPrice
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode ticker for %s: %w", pair, err)
	}
	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid ticker price %q for %s: %w", body.Price, pair, err)
	}

	zap.L().Debug("Fetched ticker price", zap.String("pair", pair), zap.String("price", price.String()))
	return checkPositive(pair, price)
}
