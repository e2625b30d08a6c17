// Package binance provides reference prices from the Binance REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/circuitbreaker"
	"github.com/fd1az/flashloan-arb/internal/httpclient"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/flashloan-arb/business/pricing/infra/binance"

	// Binance REST API endpoints
	BaseAPIURL   = "https://api.binance.com"
	BaseAPIURLUS = "https://api.binance.us"

	tickerEndpoint = "/api/v3/ticker/price"

	httpTimeout = 10 * time.Second
)

var _ app.PriceFeed = (*Feed)(nil)

// Config holds configuration for the Binance feed.
type Config struct {
	BaseURL           string        // API base URL (empty = default)
	Timeout           time.Duration // Request timeout
	RequestsPerSecond float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:           BaseAPIURL,
		Timeout:           httpTimeout,
		RequestsPerSecond: 5,
	}
}

// TickerResponse is the REST API response for a symbol price.
type TickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Feed reads last-trade prices such as ETHUSDC.
type Feed struct {
	client  *httpclient.Client
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[TickerResponse]
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	now     func() time.Time
}

// NewFeed creates a new Binance feed.
func NewFeed(cfg Config, log logger.LoggerInterface) (*Feed, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseAPIURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	client, err := httpclient.New(
		httpclient.WithProviderName("binance"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Feed{
		client:  client,
		limiter: ratelimit.New(cfg.RequestsPerSecond, 1),
		cb:      circuitbreaker.New[TickerResponse](circuitbreaker.DefaultConfig("binance")),
		logger:  log,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}, nil
}

// Price fetches the latest price for symbol.
func (f *Feed) Price(ctx context.Context, symbol string) (domain.FeedPrice, error) {
	ctx, span := f.tracer.Start(ctx, "binance.ticker",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
	defer span.End()

	if err := f.limiter.Wait(ctx); err != nil {
		return domain.FeedPrice{}, apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
	}

	ticker, err := f.cb.Execute(func() (TickerResponse, error) {
		var result TickerResponse
		_, err := f.client.NewRequest().
			SetQueryParam("symbol", symbol).
			SetResult(&result).
			SetErrorHandler(binanceErrorHandler).
			Get(ctx, tickerEndpoint)
		return result, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ticker failed")
		return domain.FeedPrice{}, apperror.New(apperror.CodePriceFeedFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("ticker %s", symbol)))
	}

	rate, err := decimal.NewFromString(ticker.Price)
	if err != nil || !rate.IsPositive() {
		return domain.FeedPrice{}, apperror.New(apperror.CodePriceFeedFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("invalid price %q for %s", ticker.Price, symbol)))
	}

	span.SetAttributes(attribute.String("price", ticker.Price))
	span.SetStatus(codes.Ok, "priced")
	f.logger.Debug(ctx, "fetched ticker", "symbol", symbol, "price", ticker.Price)

	return domain.FeedPrice{Symbol: symbol, Rate: rate, At: f.now()}, nil
}

// BinanceAPIError represents an error response from Binance API.
type BinanceAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *BinanceAPIError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

func binanceErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var apiErr BinanceAPIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
			return &apiErr
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
