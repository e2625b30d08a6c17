package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

// MonitorConfig drives the polling loop.
type MonitorConfig struct {
	Interval      time.Duration
	MaxConcurrent int
	// QuoteTimeout bounds quote, simulation and fee lookups of one pair.
	QuoteTimeout time.Duration
}

// PairStatus is the result of checking one pair in a tick.
type PairStatus struct {
	Pair       domain.TokenPair
	PriceA     uint64
	PriceB     uint64
	Spread     uint64
	Cost       uint64
	Profitable bool
	// InFlight is set when an execution for the pair was already running.
	InFlight  bool
	Triggered bool
	Err       error
}

// TickSummary describes one polling cycle.
type TickSummary struct {
	Seq      uint64
	At       time.Time
	Duration time.Duration
	Pairs    []PairStatus
	InFlight int
}

// MonitorStats accumulates over the process lifetime.
type MonitorStats struct {
	Ticks          uint64
	Opportunities  uint64
	Executions     uint64
	Successes      uint64
	Failures       uint64
	RealizedProfit uint64
	ByFailure      map[domain.FailureKind]uint64
	LastTick       time.Time
}

type monitorMetrics struct {
	ticks         metric.Int64Counter
	tickDuration  metric.Float64Histogram
	evaluations   metric.Int64Counter
	opportunities metric.Int64Counter
	skipped       metric.Int64Counter
	errors        metric.Int64Counter
	inFlight      metric.Int64UpDownCounter
}

// MonitorOption configures optional Monitor collaborators.
type MonitorOption func(*Monitor)

// WithPairLock adds a distributed lock on top of the local in-flight set.
func WithPairLock(l PairLock) MonitorOption {
	return func(m *Monitor) { m.lock = l }
}

// WithReporter sets the display sink.
func WithReporter(r Reporter) MonitorOption {
	return func(m *Monitor) { m.reporter = r }
}

// WithDryRun evaluates and reports opportunities without executing them.
// The executor may be nil.
func WithDryRun() MonitorOption {
	return func(m *Monitor) { m.dryRun = true }
}

// WithOutcomeStore persists every execution outcome.
func WithOutcomeStore(s OutcomeStore) MonitorOption {
	return func(m *Monitor) { m.store = s }
}

// Monitor polls the watch-list, evaluates each pair and triggers executions.
// At most one execution per pair runs at a time; a busy pair is skipped.
type Monitor struct {
	cfg    MonitorConfig
	pairs  []domain.TokenPair
	source QuoteSource
	fees   FeeSource
	exec   Executor
	dryRun bool

	local    *InFlight
	lock     PairLock
	reporter Reporter
	store    OutcomeStore

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *monitorMetrics

	statsMu  sync.Mutex
	stats    MonitorStats
	seq      atomic.Uint64
	lastTick atomic.Int64

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	wg      sync.WaitGroup
}

// NewMonitor creates a Monitor over pairs. The slice is copied.
func NewMonitor(
	cfg MonitorConfig,
	pairs []domain.TokenPair,
	source QuoteSource,
	fees FeeSource,
	exec Executor,
	log logger.LoggerInterface,
	opts ...MonitorOption,
) (*Monitor, error) {
	if cfg.Interval <= 0 {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("monitor interval must be positive"))
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}

	m := &Monitor{
		cfg:    cfg,
		pairs:  append([]domain.TokenPair(nil), pairs...),
		source: source,
		fees:   fees,
		exec:   exec,
		local:  NewInFlight(),
		logger: log,
		tracer: otel.Tracer(tracerName),
		stats:  MonitorStats{ByFailure: make(map[domain.FailureKind]uint64)},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.exec == nil && !m.dryRun {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("monitor needs an executor unless dry run"))
	}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return m, nil
}

func (m *Monitor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	m.metrics = &monitorMetrics{}

	m.metrics.ticks, err = meter.Int64Counter("arb_monitor_ticks_total",
		metric.WithDescription("Polling cycles completed"))
	if err != nil {
		return err
	}
	m.metrics.tickDuration, err = meter.Float64Histogram("arb_monitor_tick_ms",
		metric.WithDescription("Polling cycle duration in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return err
	}
	m.metrics.evaluations, err = meter.Int64Counter("arb_evaluations_total",
		metric.WithDescription("Pair evaluations"))
	if err != nil {
		return err
	}
	m.metrics.opportunities, err = meter.Int64Counter("arb_opportunities_total",
		metric.WithDescription("Positive decisions"))
	if err != nil {
		return err
	}
	m.metrics.skipped, err = meter.Int64Counter("arb_pairs_skipped_total",
		metric.WithDescription("Pairs skipped because an execution was in flight"))
	if err != nil {
		return err
	}
	m.metrics.errors, err = meter.Int64Counter("arb_monitor_errors_total",
		metric.WithDescription("Pair check failures by transience"))
	if err != nil {
		return err
	}
	m.metrics.inFlight, err = meter.Int64UpDownCounter("arb_executions_in_flight",
		metric.WithDescription("Executions currently running"))
	return err
}

// Start launches the polling loop and the reporter.
func (m *Monitor) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.started {
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("monitor already started"))
	}
	if m.reporter != nil {
		if err := m.reporter.Start(ctx); err != nil {
			return err
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.started = true

	m.logger.Info(ctx, "monitor started", "pairs", len(m.pairs), "interval", m.cfg.Interval.String())
	go m.loop(loopCtx, m.done)
	return nil
}

func (m *Monitor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info(ctx, "monitor stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Stop ends the loop between ticks and waits for in-flight executions to
// reach a terminal state.
func (m *Monitor) Stop() error {
	m.runMu.Lock()
	cancel, done, started := m.cancel, m.done, m.started
	m.cancel, m.started = nil, false
	m.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.wg.Wait()

	if started && m.reporter != nil {
		return m.reporter.Stop()
	}
	return nil
}

// Wait blocks until no execution is in flight.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// Tick checks every pair once. Executions it triggers keep running after it
// returns.
func (m *Monitor) Tick(ctx context.Context) TickSummary {
	seq := m.seq.Add(1)
	ctx, span := m.tracer.Start(ctx, "arbitrage.tick",
		trace.WithAttributes(attribute.Int64("seq", int64(seq)), attribute.Int("pairs", len(m.pairs))),
	)
	defer span.End()

	start := time.Now()
	statuses := make([]PairStatus, len(m.pairs))

	var g errgroup.Group
	g.SetLimit(m.cfg.MaxConcurrent)
	for i, pair := range m.pairs {
		g.Go(func() error {
			statuses[i] = m.checkPair(ctx, pair)
			return nil
		})
	}
	_ = g.Wait()

	summary := TickSummary{
		Seq:      seq,
		At:       start,
		Duration: time.Since(start),
		Pairs:    statuses,
		InFlight: m.local.Len(),
	}

	m.lastTick.Store(start.UnixNano())
	m.statsMu.Lock()
	m.stats.Ticks++
	m.stats.LastTick = start
	m.statsMu.Unlock()

	m.metrics.ticks.Add(ctx, 1)
	m.metrics.tickDuration.Record(ctx, float64(summary.Duration.Milliseconds()))
	if m.reporter != nil {
		m.reporter.ReportTick(summary)
	}
	span.SetStatus(codes.Ok, "tick complete")
	return summary
}

func (m *Monitor) checkPair(ctx context.Context, pair domain.TokenPair) PairStatus {
	st := PairStatus{Pair: pair}
	attrs := metric.WithAttributes(attribute.String("pair", pair.Symbol()))

	if m.local.Busy(pair.Key()) {
		st.InFlight = true
		m.metrics.skipped.Add(ctx, 1, attrs)
		return st
	}

	qctx, cancel := m.quoteContext(ctx)
	defer cancel()

	qa, qb, err := m.source.Quotes(qctx, pair)
	if err != nil {
		return m.pairFailed(ctx, st, "quote", err)
	}
	fees, err := m.fees.FeeModel(qctx, pair)
	if err != nil {
		return m.pairFailed(ctx, st, "fees", err)
	}

	m.metrics.evaluations.Add(ctx, 1, attrs)
	opp, err := EvaluatePair(pair, qa, qb, fees)
	if err != nil {
		return m.pairFailed(ctx, st, "evaluate", err)
	}
	if opp == nil {
		spread, err := pricingDomain.CalculateSpread(qa, qb, pair.TradeAmount)
		if err != nil {
			return m.pairFailed(ctx, st, "spread", err)
		}
		st.PriceA, st.PriceB, st.Spread = spread.PriceA, spread.PriceB, spread.Amount
		st.Cost = fees.TotalCost(pair.TradeAmount)
		m.logger.Debug(ctx, "no opportunity", "pair", pair.Symbol(), "spread", st.Spread, "cost", st.Cost)
		return st
	}

	st.PriceA, st.PriceB, st.Spread = opp.Spread.PriceA, opp.Spread.PriceB, opp.Spread.Amount
	st.Cost = opp.Costs.Total
	st.Profitable = true
	m.metrics.opportunities.Add(ctx, 1, attrs)
	m.statsMu.Lock()
	m.stats.Opportunities++
	m.statsMu.Unlock()

	m.logger.Info(ctx, "opportunity detected",
		"pair", pair.Symbol(),
		"direction", opp.Direction.String(),
		"spread", opp.Spread.Amount,
		"cost", opp.Costs.Total,
		"expected_profit", opp.ExpectedProfit)
	if m.reporter != nil {
		m.reporter.ReportOpportunity(opp)
	}

	if m.dryRun {
		m.logger.Info(ctx, "dry run, execution skipped", "pair", pair.Symbol())
		return st
	}
	st.Triggered = m.trigger(ctx, pair)
	st.InFlight = !st.Triggered
	return st
}

func (m *Monitor) quoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.QuoteTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.cfg.QuoteTimeout)
}

// pairFailed logs and counts a failed check. Transient failures wait for the
// next tick.
func (m *Monitor) pairFailed(ctx context.Context, st PairStatus, stage string, err error) PairStatus {
	transient := apperror.IsTransient(err) || errors.Is(err, context.Canceled)
	m.metrics.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("transient", transient),
	))
	if transient {
		m.logger.Warn(ctx, "pair check failed, retrying next tick", "pair", st.Pair.Symbol(), "stage", stage, "error", err)
	} else {
		m.logger.Error(ctx, "pair check failed", "pair", st.Pair.Symbol(), "stage", stage, "error", err)
	}
	st.Err = err
	return st
}

// trigger claims the pair and runs the execution in the background. It
// returns false when the pair is already claimed here or elsewhere.
func (m *Monitor) trigger(ctx context.Context, pair domain.TokenPair) bool {
	key := pair.Key()

	unlockLocal, ok, _ := m.local.TryLock(ctx, key)
	if !ok {
		return false
	}

	unlockRemote := func() {}
	if m.lock != nil {
		unlock, ok, err := m.lock.TryLock(ctx, key)
		if err != nil || !ok {
			unlockLocal()
			if err != nil {
				m.logger.Warn(ctx, "pair lock unavailable", "pair", pair.Symbol(), "error", err)
			} else {
				m.logger.Debug(ctx, "pair locked by another instance", "pair", pair.Symbol())
			}
			return false
		}
		unlockRemote = unlock
	}

	// Executions outlive the loop: Stop waits instead of cancelling them.
	execCtx := context.WithoutCancel(ctx)
	m.wg.Add(1)
	m.metrics.inFlight.Add(execCtx, 1)
	go func() {
		defer m.wg.Done()
		defer m.metrics.inFlight.Add(execCtx, -1)
		defer unlockLocal()
		defer unlockRemote()

		outcome := m.exec.Execute(execCtx, pair, pair.LoanAmount)
		m.record(execCtx, outcome)
	}()
	return true
}

func (m *Monitor) record(ctx context.Context, outcome domain.ExecutionOutcome) {
	m.statsMu.Lock()
	m.stats.Executions++
	if outcome.Success {
		m.stats.Successes++
		m.stats.RealizedProfit += outcome.RealizedProfit
	} else {
		m.stats.Failures++
		m.stats.ByFailure[outcome.FailureKind]++
	}
	m.statsMu.Unlock()

	if m.store != nil {
		if err := m.store.Save(ctx, outcome); err != nil {
			m.logger.Warn(ctx, "failed to persist outcome", "id", outcome.ID, "error", err)
		}
	}
	if m.reporter != nil {
		m.reporter.ReportOutcome(outcome)
	}
}

// Stats returns a copy of the accumulated statistics.
func (m *Monitor) Stats() MonitorStats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	s := m.stats
	s.ByFailure = make(map[domain.FailureKind]uint64, len(m.stats.ByFailure))
	for k, v := range m.stats.ByFailure {
		s.ByFailure[k] = v
	}
	return s
}

// LastTick returns when the last tick started, zero before the first one.
func (m *Monitor) LastTick() time.Time {
	ns := m.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// InFlight returns the number of running executions.
func (m *Monitor) InFlight() int {
	return m.local.Len()
}

// Pairs returns the watch-list.
func (m *Monitor) Pairs() []domain.TokenPair {
	return append([]domain.TokenPair(nil), m.pairs...)
}
