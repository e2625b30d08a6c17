package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

const (
	tracerName = "pricing"
	meterName  = "pricing"
)

type quoterMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteErrors  metric.Int64Counter
	quoteLatency metric.Float64Histogram
}

// QuoterService is the registry of venues and the entry point for quotes.
type QuoterService struct {
	mu      sync.RWMutex
	venues  map[domain.VenueID]Venue
	timeout time.Duration

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *quoterMetrics
}

// NewQuoterService creates a service. timeout bounds each QuotePair call.
func NewQuoterService(timeout time.Duration, log logger.LoggerInterface) (*QuoterService, error) {
	s := &QuoterService{
		venues:  make(map[domain.VenueID]Venue),
		timeout: timeout,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return s, nil
}

func (s *QuoterService) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	s.metrics = &quoterMetrics{}

	s.metrics.quotesTotal, err = meter.Int64Counter("venue_quotes_total",
		metric.WithDescription("Total venue quote requests"))
	if err != nil {
		return err
	}
	s.metrics.quoteErrors, err = meter.Int64Counter("venue_quote_errors_total",
		metric.WithDescription("Total failed venue quotes"))
	if err != nil {
		return err
	}
	s.metrics.quoteLatency, err = meter.Float64Histogram("venue_quote_latency_ms",
		metric.WithDescription("Venue quote latency in milliseconds"),
		metric.WithUnit("ms"))
	return err
}

// Register adds a venue, replacing any venue with the same ID.
func (s *QuoterService) Register(v Venue) {
	s.mu.Lock()
	s.venues[v.ID()] = v
	s.mu.Unlock()
}

// Venue looks up a venue by ID.
func (s *QuoterService) Venue(id domain.VenueID) (Venue, error) {
	s.mu.RLock()
	v, ok := s.venues[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperror.New(apperror.CodeVenueNotFound, apperror.WithContext(string(id)))
	}
	return v, nil
}

// Venues lists registered venue IDs in order.
func (s *QuoterService) Venues() []domain.VenueID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]domain.VenueID, 0, len(s.venues))
	for id := range s.venues {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Quote fetches one quote from venue id.
func (s *QuoterService) Quote(ctx context.Context, id domain.VenueID, req QuoteRequest) (domain.PriceQuote, error) {
	v, err := s.Venue(id)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	ctx, span := s.tracer.Start(ctx, "pricing.quote",
		trace.WithAttributes(
			attribute.String("venue", string(id)),
			attribute.String("venue_kind", v.Kind().String()),
			attribute.Int64("amount", int64(req.Amount)),
		),
	)
	defer span.End()

	start := time.Now()
	attrs := metric.WithAttributes(attribute.String("venue", string(id)))
	s.metrics.quotesTotal.Add(ctx, 1, attrs)

	q, err := v.Quote(ctx, req)
	s.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		s.metrics.quoteErrors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote failed")
		return domain.PriceQuote{}, err
	}

	span.SetAttributes(attribute.Int64("output", int64(q.OutputAmount)))
	span.SetStatus(codes.Ok, "quote received")
	return q, nil
}

// QuotePair fetches quotes for the same request from two venues concurrently.
func (s *QuoterService) QuotePair(ctx context.Context, a, b domain.VenueID, req QuoteRequest) (domain.PriceQuote, domain.PriceQuote, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var qa, qb domain.PriceQuote
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		qa, err = s.Quote(gctx, a, req)
		return err
	})
	g.Go(func() error {
		var err error
		qb, err = s.Quote(gctx, b, req)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Debug(ctx, "pair quote failed", "venue_a", a, "venue_b", b, "error", err)
		return domain.PriceQuote{}, domain.PriceQuote{}, err
	}
	return qa, qb, nil
}
