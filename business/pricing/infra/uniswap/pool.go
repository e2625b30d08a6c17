// Package uniswap reads and trades Uniswap V2 style constant-product pools.
package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	chain "github.com/fd1az/flashloan-arb/business/blockchain/domain"
	"github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/cache"
	"github.com/fd1az/flashloan-arb/internal/circuitbreaker"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

const (
	tracerName = "github.com/fd1az/flashloan-arb/business/pricing/infra/uniswap"
	meterName  = "github.com/fd1az/flashloan-arb/business/pricing/infra/uniswap"

	pairCacheTTL = time.Hour
)

var (
	_ app.ReserveSource = (*Pool)(nil)
	_ app.PoolSwapper   = (*Pool)(nil)
)

// ContractCaller performs read-only calls.
type ContractCaller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Config addresses one V2 deployment.
type Config struct {
	Venue       string
	Factory     common.Address
	Router      common.Address
	SwapTimeout time.Duration // router deadline
}

type pairInfo struct {
	address common.Address
	token0  common.Address
}

type poolMetrics struct {
	reserveReads metric.Int64Counter
	readLatency  metric.Float64Histogram
	swaps        metric.Int64Counter
}

// Pool is the reserve source and swapper for one V2 deployment.
type Pool struct {
	cfg    Config
	caller ContractCaller
	sender app.TxSubmitter
	logger logger.LoggerInterface
	now    func() time.Time

	pairs *cache.Cache[[2]common.Address, pairInfo]
	cb    *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	metrics *poolMetrics
}

// NewPool creates a V2 pool adapter. sender may be nil for quote-only use.
func NewPool(cfg Config, caller ContractCaller, sender app.TxSubmitter, log logger.LoggerInterface) (*Pool, error) {
	if cfg.SwapTimeout <= 0 {
		cfg.SwapTimeout = 2 * time.Minute
	}
	p := &Pool{
		cfg:    cfg,
		caller: caller,
		sender: sender,
		logger: log,
		now:    time.Now,
		pairs:  cache.New[[2]common.Address, pairInfo](0),
		cb:     circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("uniswap-" + cfg.Venue)),
		tracer: otel.Tracer(tracerName),
	}
	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return p, nil
}

func (p *Pool) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &poolMetrics{}

	p.metrics.reserveReads, err = meter.Int64Counter(
		"uniswap_reserve_reads_total",
		metric.WithDescription("Total reserve reads"),
	)
	if err != nil {
		return err
	}

	p.metrics.readLatency, err = meter.Float64Histogram(
		"uniswap_reserve_latency_ms",
		metric.WithDescription("Reserve read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	p.metrics.swaps, err = meter.Int64Counter(
		"uniswap_swaps_total",
		metric.WithDescription("Swaps submitted to the router"),
	)
	return err
}

// Close stops the pair cache.
func (p *Pool) Close() { p.pairs.Close() }

func (p *Pool) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := p.cb.Execute(func() ([]byte, error) {
		return p.caller.Call(ctx, to, data)
	})
	if circuitbreaker.IsOpen(err) {
		return nil, apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err), apperror.WithContext(p.cfg.Venue))
	}
	return out, err
}

func (p *Pool) pair(ctx context.Context, a, b common.Address) (pairInfo, error) {
	key := [2]common.Address{a, b}
	if a.Cmp(b) > 0 {
		key = [2]common.Address{b, a}
	}
	if info, ok := p.pairs.Get(ctx, key); ok {
		return info, nil
	}

	data, err := factoryABI.Pack("getPair", a, b)
	if err != nil {
		return pairInfo{}, fmt.Errorf("failed to encode getPair: %w", err)
	}
	raw, err := p.call(ctx, p.cfg.Factory, data)
	if err != nil {
		return pairInfo{}, err
	}
	values, err := factoryABI.Unpack("getPair", raw)
	if err != nil || len(values) != 1 {
		return pairInfo{}, apperror.New(apperror.CodeContractCallFailed, apperror.WithCause(err), apperror.WithContext("decode getPair"))
	}
	addr := values[0].(common.Address)
	if addr == (common.Address{}) {
		return pairInfo{}, apperror.New(apperror.CodePoolNotFound,
			apperror.WithContext(fmt.Sprintf("%s has no pair for %s/%s", p.cfg.Venue, a.Hex(), b.Hex())))
	}

	data, err = pairABI.Pack("token0")
	if err != nil {
		return pairInfo{}, fmt.Errorf("failed to encode token0: %w", err)
	}
	raw, err = p.call(ctx, addr, data)
	if err != nil {
		return pairInfo{}, err
	}
	values, err = pairABI.Unpack("token0", raw)
	if err != nil || len(values) != 1 {
		return pairInfo{}, apperror.New(apperror.CodeContractCallFailed, apperror.WithCause(err), apperror.WithContext("decode token0"))
	}

	info := pairInfo{address: addr, token0: values[0].(common.Address)}
	p.pairs.Set(ctx, key, info, pairCacheTTL)
	return info, nil
}

// Reserves reads getReserves and orients them input→output.
func (p *Pool) Reserves(ctx context.Context, in, out asset.AssetID) (domain.Reserves, error) {
	ctx, span := p.tracer.Start(ctx, "uniswap.reserves",
		trace.WithAttributes(
			attribute.String("venue", p.cfg.Venue),
			attribute.String("token_in", in.String()),
			attribute.String("token_out", out.String()),
		),
	)
	defer span.End()

	start := time.Now()
	p.metrics.reserveReads.Add(ctx, 1)
	defer func() {
		p.metrics.readLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	info, err := p.pair(ctx, in.Address(), out.Address())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pair lookup failed")
		return domain.Reserves{}, err
	}

	data, err := pairABI.Pack("getReserves")
	if err != nil {
		return domain.Reserves{}, fmt.Errorf("failed to encode getReserves: %w", err)
	}
	raw, err := p.call(ctx, info.address, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "getReserves failed")
		return domain.Reserves{}, err
	}
	values, err := pairABI.Unpack("getReserves", raw)
	if err != nil || len(values) < 2 {
		return domain.Reserves{}, apperror.New(apperror.CodeContractCallFailed, apperror.WithCause(err), apperror.WithContext("decode getReserves"))
	}

	r0, _ := uint256.FromBig(values[0].(*big.Int))
	r1, _ := uint256.FromBig(values[1].(*big.Int))
	if info.token0 != in.Address() {
		r0, r1 = r1, r0
	}

	span.SetAttributes(
		attribute.String("reserve_in", r0.Dec()),
		attribute.String("reserve_out", r1.Dec()),
	)
	span.SetStatus(codes.Ok, "reserves read")
	return domain.Reserves{In: r0, Out: r1}, nil
}

// SwapExactIn swaps through the router and returns the amount the account
// received according to the receipt's Transfer logs.
func (p *Pool) SwapExactIn(ctx context.Context, req app.SwapRequest) (uint64, error) {
	if p.sender == nil {
		return 0, apperror.New(apperror.CodeConfigurationError, apperror.WithContext(p.cfg.Venue+" has no signer"))
	}

	ctx, span := p.tracer.Start(ctx, "uniswap.swap",
		trace.WithAttributes(
			attribute.String("venue", p.cfg.Venue),
			attribute.Int64("amount_in", int64(req.Amount)),
			attribute.Int64("min_out", int64(req.MinOutput)),
		),
	)
	defer span.End()

	account := p.sender.Account()
	if err := p.sender.EnsureAllowance(ctx, req.Input.Address(), p.cfg.Router, req.Amount); err != nil {
		span.RecordError(err)
		return 0, err
	}

	deadline := big.NewInt(p.now().Add(p.cfg.SwapTimeout).Unix())
	data, err := routerABI.Pack("swapExactTokensForTokens",
		new(big.Int).SetUint64(req.Amount),
		new(big.Int).SetUint64(req.MinOutput),
		[]common.Address{req.Input.Address(), req.Output.Address()},
		account,
		deadline,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to encode swap: %w", err)
	}

	p.metrics.swaps.Add(ctx, 1)
	receipt, err := p.sender.Send(ctx, p.cfg.Router, data, 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "swap failed")
		return 0, err
	}

	out, err := chain.ReceivedAmount(receipt.Logs, req.Output.Address(), account)
	if err != nil {
		return 0, apperror.New(apperror.CodeCalculationError, apperror.WithCause(err))
	}

	p.logger.Debug(ctx, "uniswap swap",
		"venue", p.cfg.Venue,
		"amount_in", req.Amount,
		"amount_out", out,
		"tx", receipt.TxHash.Hex(),
	)
	span.SetAttributes(attribute.Int64("amount_out", int64(out)))
	span.SetStatus(codes.Ok, "swapped")
	return out, nil
}
