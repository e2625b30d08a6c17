package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-arb/business/blockchain/app"
	"github.com/fd1az/flashloan-arb/business/blockchain/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/cache"
	"github.com/fd1az/flashloan-arb/internal/circuitbreaker"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

var (
	_ app.GasOracle   = (*GasOracle)(nil)
	_ app.ChainReader = (*GasOracle)(nil)
)

const (
	latestGasKey = "latest"
	// staleWindow is how many TTLs a quote survives as a fallback.
	staleWindow = 10
)

// GasOracleConfig bounds what the oracle reports.
type GasOracleConfig struct {
	TTL     time.Duration
	CapGwei uint64 // 0 disables the cap
}

func (c GasOracleConfig) capWei() *big.Int {
	if c.CapGwei == 0 {
		return nil
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(c.CapGwei), big.NewInt(1e9))
}

// GasOracle serves the node's suggested gas price. Quotes are cached for
// TTL; while the node is unreachable the last quote is served for up to
// staleWindow TTLs.
type GasOracle struct {
	cfg    GasOracleConfig
	capWei *big.Int
	rpc    RPC
	log    logger.LoggerInterface
	now    func() time.Time

	quotes  *cache.Cache[string, *domain.GasPrice]
	breaker *circuitbreaker.CircuitBreaker[*big.Int]

	tracer   trace.Tracer
	lookups  metric.Int64Counter
	fallback metric.Int64Counter
	current  metric.Float64Gauge
}

// NewGasOracle creates a gas oracle over an existing client.
func NewGasOracle(rpc RPC, cfg GasOracleConfig, log logger.LoggerInterface) (*GasOracle, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Second
	}
	meter := otel.Meter(meterName)

	lookups, err := meter.Int64Counter("arb_gas_price_lookups_total",
		metric.WithDescription("Gas price lookups by source"))
	if err != nil {
		return nil, fmt.Errorf("gas lookups counter: %w", err)
	}
	fallback, err := meter.Int64Counter("arb_gas_price_stale_total",
		metric.WithDescription("Lookups answered with a stale price after a node failure"))
	if err != nil {
		return nil, fmt.Errorf("gas stale counter: %w", err)
	}
	current, err := meter.Float64Gauge("arb_gas_price_gwei",
		metric.WithDescription("Last gas price reported by the node"),
		metric.WithUnit("gwei"))
	if err != nil {
		return nil, fmt.Errorf("gas price gauge: %w", err)
	}

	return &GasOracle{
		cfg:      cfg,
		capWei:   cfg.capWei(),
		rpc:      rpc,
		log:      log,
		now:      time.Now,
		quotes:   cache.New[string, *domain.GasPrice](time.Minute),
		breaker:  circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("gas-oracle")),
		tracer:   otel.Tracer(tracerName),
		lookups:  lookups,
		fallback: fallback,
		current:  current,
	}, nil
}

// GasPrice returns the cached quote, refreshing it from the node when it
// has expired.
func (g *GasOracle) GasPrice(ctx context.Context) (*domain.GasPrice, error) {
	ctx, span := g.tracer.Start(ctx, "gas.price")
	defer span.End()

	last, have := g.quotes.Get(ctx, latestGasKey)
	if have && g.now().Sub(last.At) < g.cfg.TTL {
		g.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "cache")))
		return last, nil
	}
	g.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "node")))

	wei, err := g.breaker.Execute(func() (*big.Int, error) {
		return g.rpc.SuggestGasPrice(ctx)
	})
	if err != nil {
		span.RecordError(err)
		if have {
			g.fallback.Add(ctx, 1)
			g.log.Warn(ctx, "gas price refresh failed, using last quote",
				"error", err, "age", g.now().Sub(last.At).Round(time.Second))
			span.SetAttributes(attribute.Bool("stale", true))
			return last, nil
		}
		span.SetStatus(codes.Error, "no gas price")
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("suggest gas price"))
	}

	if g.capWei != nil && wei.Cmp(g.capWei) > 0 {
		g.log.Warn(ctx, "gas price above cap", "wei", wei.String(), "cap_gwei", g.cfg.CapGwei)
		wei = g.capWei
	}

	p := domain.NewGasPrice(wei, g.now())
	g.quotes.Set(ctx, latestGasKey, p, staleWindow*g.cfg.TTL)
	g.current.Record(ctx, p.Gwei())
	span.SetAttributes(attribute.Float64("gwei", p.Gwei()))
	return p, nil
}

// BlockNumber returns the latest block number.
func (g *GasOracle) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := g.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.CodeEthereumRPCError, "block number")
	}
	return n, nil
}

// Close stops the cache sweeper.
func (g *GasOracle) Close() error {
	g.quotes.Close()
	return nil
}
