// Package aggregator quotes and executes swaps through a 0x-style swap API.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	chain "github.com/fd1az/flashloan-arb/business/blockchain/domain"
	"github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/circuitbreaker"
	"github.com/fd1az/flashloan-arb/internal/httpclient"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/flashloan-arb/business/pricing/infra/aggregator"

	priceEndpoint = "/swap/v1/price"
	quoteEndpoint = "/swap/v1/quote"
)

var _ app.RouteQuoter = (*Client)(nil)

// Config holds configuration for one aggregator venue.
type Config struct {
	Venue             string
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// PriceResponse is the indicative price answer.
type PriceResponse struct {
	BuyAmount  string `json:"buyAmount"`
	SellAmount string `json:"sellAmount"`
	Price      string `json:"price"`
}

// QuoteResponse is the firm quote with calldata.
type QuoteResponse struct {
	To              common.Address `json:"to"`
	Data            hexutil.Bytes  `json:"data"`
	Value           string         `json:"value"`
	BuyAmount       string         `json:"buyAmount"`
	AllowanceTarget common.Address `json:"allowanceTarget"`
	EstimatedGas    string         `json:"estimatedGas"`
	GuaranteedPrice string         `json:"guaranteedPrice"`
}

// APIError is the aggregator's error body.
type APIError struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aggregator error %d: %s", e.Code, e.Reason)
}

// Client is a RouteQuoter over the swap API.
type Client struct {
	cfg     Config
	http    *httpclient.Client
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[*httpclient.Response]
	sender  app.TxSubmitter
	logger  logger.LoggerInterface
	tracer  trace.Tracer
}

// New creates an aggregator client. sender may be nil for quote-only use.
func New(cfg Config, sender app.TxSubmitter, log logger.LoggerInterface) (*Client, error) {
	headers := map[string]string{"Accept": "application/json"}
	if cfg.APIKey != "" {
		headers["0x-api-key"] = cfg.APIKey
	}

	hc, err := httpclient.New(
		httpclient.WithProviderName(cfg.Venue),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithHeaders(headers),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("aggregator-" + cfg.Venue)
	// 4xx answers are the caller's problem, not an outage.
	cbCfg.IsSuccessful = func(err error) bool {
		var apiErr *APIError
		return err == nil || errors.As(err, &apiErr)
	}

	return &Client{
		cfg:     cfg,
		http:    hc,
		limiter: ratelimit.New(cfg.RequestsPerSecond, cfg.Burst),
		cb:      circuitbreaker.New[*httpclient.Response](cbCfg),
		sender:  sender,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

func slippageParam(bps uint64) string {
	return strconv.FormatFloat(float64(bps)/10_000, 'f', -1, 64)
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err), apperror.WithContext(c.cfg.Venue))
	}

	_, err := c.cb.Execute(func() (*httpclient.Response, error) {
		req := c.http.NewRequest().SetResult(result).SetErrorHandler(errorHandler)
		for k, v := range params {
			req.SetQueryParam(k, v)
		}
		return req.Get(ctx, path)
	})
	if err == nil {
		return nil
	}

	if circuitbreaker.IsOpen(err) {
		return apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err), apperror.WithContext(c.cfg.Venue))
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apperror.New(apperror.CodeInvalidQuote, apperror.WithCause(err), apperror.WithContext(c.cfg.Venue))
	}
	return apperror.New(apperror.CodeAggregatorQuoteFailed, apperror.WithCause(err), apperror.WithContext(c.cfg.Venue))
}

// RouteQuote returns the indicative buy amount for the sell amount.
func (c *Client) RouteQuote(ctx context.Context, req app.QuoteRequest) (uint64, error) {
	ctx, span := c.tracer.Start(ctx, "aggregator.price",
		trace.WithAttributes(
			attribute.String("venue", c.cfg.Venue),
			attribute.String("sell_token", req.Input.Address().Hex()),
			attribute.String("buy_token", req.Output.Address().Hex()),
		),
	)
	defer span.End()

	var resp PriceResponse
	err := c.get(ctx, priceEndpoint, map[string]string{
		"sellToken":          req.Input.Address().Hex(),
		"buyToken":           req.Output.Address().Hex(),
		"sellAmount":         strconv.FormatUint(req.Amount, 10),
		"slippagePercentage": slippageParam(req.MaxSlippageBps),
	}, &resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "price failed")
		return 0, err
	}

	out, err := parseAmount(resp.BuyAmount)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.String("buy_amount", resp.BuyAmount))
	span.SetStatus(codes.Ok, "priced")
	return out, nil
}

// RouteSwap fetches a firm quote for the signing account, approves the
// allowance target when needed and submits the calldata.
func (c *Client) RouteSwap(ctx context.Context, req app.SwapRequest) (uint64, error) {
	if c.sender == nil {
		return 0, apperror.New(apperror.CodeConfigurationError, apperror.WithContext(c.cfg.Venue+" has no signer"))
	}

	ctx, span := c.tracer.Start(ctx, "aggregator.swap",
		trace.WithAttributes(
			attribute.String("venue", c.cfg.Venue),
			attribute.Int64("sell_amount", int64(req.Amount)),
		),
	)
	defer span.End()

	account := c.sender.Account()
	var q QuoteResponse
	err := c.get(ctx, quoteEndpoint, map[string]string{
		"sellToken":      req.Input.Address().Hex(),
		"buyToken":       req.Output.Address().Hex(),
		"sellAmount":     strconv.FormatUint(req.Amount, 10),
		"takerAddress":   account.Hex(),
		"skipValidation": "false",
	}, &q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote failed")
		return 0, err
	}

	quoted, err := parseAmount(q.BuyAmount)
	if err != nil {
		return 0, err
	}
	if quoted < req.MinOutput {
		return 0, apperror.New(apperror.CodeSlippageExceeded,
			apperror.WithContext(fmt.Sprintf("%s firm quote %d below minimum %d", c.cfg.Venue, quoted, req.MinOutput)))
	}

	value, err := parseAmount(q.Value)
	if err != nil {
		return 0, err
	}

	if q.AllowanceTarget != (common.Address{}) {
		if err := c.sender.EnsureAllowance(ctx, req.Input.Address(), q.AllowanceTarget, req.Amount); err != nil {
			span.RecordError(err)
			return 0, err
		}
	}

	receipt, err := c.sender.Send(ctx, q.To, q.Data, value)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "swap failed")
		return 0, err
	}

	out, err := chain.ReceivedAmount(receipt.Logs, req.Output.Address(), account)
	if err != nil {
		return 0, apperror.New(apperror.CodeCalculationError, apperror.WithCause(err))
	}

	c.logger.Debug(ctx, "aggregator swap",
		"venue", c.cfg.Venue,
		"sell_amount", req.Amount,
		"quoted", quoted,
		"received", out,
		"tx", receipt.TxHash.Hex(),
	)
	span.SetStatus(codes.Ok, "swapped")
	return out, nil
}

// parseAmount reads a base-10 integer string. Empty means zero.
func parseAmount(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 || !v.IsUint64() {
		return 0, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext(fmt.Sprintf("bad amount %q", s)))
	}
	return v.Uint64(), nil
}

func errorHandler(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}
	var apiErr APIError
	if statusCode < 500 {
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Reason != "" {
			return &apiErr
		}
		return &APIError{Code: statusCode, Reason: string(body)}
	}
	return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
}
