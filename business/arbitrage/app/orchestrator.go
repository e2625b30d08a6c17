package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	lendingDomain "github.com/fd1az/flashloan-arb/business/lending/domain"
	pricingApp "github.com/fd1az/flashloan-arb/business/pricing/app"
	pricingDomain "github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/fixedpoint"
	"github.com/fd1az/flashloan-arb/internal/ledger"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

const (
	tracerName = "arbitrage"
	meterName  = "arbitrage"
)

// OrchestratorConfig holds execution settings.
type OrchestratorConfig struct {
	Settlement        *asset.Asset
	Account           ledger.Account
	ProfitDestination ledger.Account
	// SlippageBps bounds each hop below its fresh quote.
	SlippageBps     uint64
	StepTimeout     time.Duration
	TransferRetries int
	RetryBackoff    time.Duration
}

type orchestratorMetrics struct {
	executions    metric.Int64Counter
	duration      metric.Float64Histogram
	stepLatency   metric.Float64Histogram
	compensations metric.Int64Counter
	profit        metric.Int64Counter
}

// Orchestrator drives borrow, swap, swap, repay and profit transfer as one
// unit. Steps completed before a failure are compensated in reverse order.
type Orchestrator struct {
	cfg       OrchestratorConfig
	venues    Venues
	loans     Loans
	transfers Transferer
	fees      FeeSource

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *orchestratorMetrics
	now     func() time.Time
}

var _ Executor = (*Orchestrator)(nil)

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	cfg OrchestratorConfig,
	venues Venues,
	loans Loans,
	transfers Transferer,
	fees FeeSource,
	log logger.LoggerInterface,
) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:       cfg,
		venues:    venues,
		loans:     loans,
		transfers: transfers,
		fees:      fees,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return o, nil
}

func (o *Orchestrator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	o.metrics = &orchestratorMetrics{}

	o.metrics.executions, err = meter.Int64Counter("arb_executions_total",
		metric.WithDescription("Executions by result"))
	if err != nil {
		return err
	}
	o.metrics.duration, err = meter.Float64Histogram("arb_execution_duration_ms",
		metric.WithDescription("Execution wall time in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return err
	}
	o.metrics.stepLatency, err = meter.Float64Histogram("arb_step_latency_ms",
		metric.WithDescription("Execution step latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return err
	}
	o.metrics.compensations, err = meter.Int64Counter("arb_compensations_total",
		metric.WithDescription("Compensating actions run after failed executions"))
	if err != nil {
		return err
	}
	o.metrics.profit, err = meter.Int64Counter("arb_realized_profit",
		metric.WithDescription("Realized profit in settlement base units"))
	return err
}

// Execute runs the full sequence for pair with a loan of amount settlement
// units; zero means pair.LoanAmount. Profitability is re-checked against
// fresh quotes before anything is borrowed.
func (o *Orchestrator) Execute(ctx context.Context, pair domain.TokenPair, amount uint64) domain.ExecutionOutcome {
	if amount == 0 {
		amount = pair.LoanAmount
	}

	e := &execution{
		o:    o,
		pair: pair,
		outcome: domain.ExecutionOutcome{
			ID:        uuid.NewString(),
			Pair:      pair,
			State:     domain.StateIdle,
			StartedAt: o.now(),
		},
	}

	ctx, span := o.tracer.Start(ctx, "arbitrage.execute",
		trace.WithAttributes(
			attribute.String("execution_id", e.outcome.ID),
			attribute.String("pair", pair.Key()),
			attribute.Int64("loan_amount", int64(amount)),
		),
	)
	defer span.End()

	err := e.run(ctx, amount)
	e.finish(ctx, err)
	out := e.outcome

	attrs := metric.WithAttributes(
		attribute.String("pair", pair.Symbol()),
		attribute.String("result", resultLabel(out)),
	)
	o.metrics.executions.Add(ctx, 1, attrs)
	o.metrics.duration.Record(ctx, float64(out.Duration().Milliseconds()), attrs)
	if n := len(out.Compensations); n > 0 {
		o.metrics.compensations.Add(ctx, int64(n), attrs)
	}

	span.SetAttributes(attribute.String("state", out.State.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, out.FailureKind.String())
		o.logger.Warn(ctx, "execution failed",
			"id", out.ID,
			"pair", pair.Symbol(),
			"state", out.State.String(),
			"failure", out.FailureKind.String(),
			"compensations", len(out.Compensations),
			"error", err)
		return out
	}

	o.metrics.profit.Add(ctx, int64(out.RealizedProfit), attrs)
	span.SetStatus(codes.Ok, "profit transferred")
	o.logger.Info(ctx, "execution succeeded",
		"id", out.ID,
		"pair", pair.Symbol(),
		"direction", out.Direction.String(),
		"borrowed", out.Borrowed,
		"repaid", out.Repaid,
		"profit", asset.FormatRaw(out.RealizedProfit, o.cfg.Settlement.Decimals()).String())
	return out
}

func resultLabel(out domain.ExecutionOutcome) string {
	if out.Success {
		return "success"
	}
	return out.FailureKind.String()
}

func (o *Orchestrator) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.StepTimeout)
}

func (o *Orchestrator) validate(pair domain.TokenPair) error {
	invalid := func(msg string) error {
		return apperror.New(apperror.CodeInvalidTokenAccount, apperror.WithContext(msg))
	}
	switch {
	case o.cfg.Settlement == nil || o.cfg.Settlement.ID().IsZero():
		return invalid("settlement asset is not set")
	case pair.Input == nil || pair.Output == nil || pair.Input.ID().IsZero() || pair.Output.ID().IsZero():
		return invalid("pair assets are not set")
	case o.cfg.Account == "":
		return invalid("working account is not set")
	case o.cfg.ProfitDestination == "":
		return invalid("profit destination is not set")
	case pair.NeedsConversion(o.cfg.Settlement) && pair.ConversionVenue == "":
		return invalid(fmt.Sprintf("%s needs a conversion venue from %s", pair.Symbol(), o.cfg.Settlement))
	}
	return nil
}

// reverseSwap sells carry back through the venue of a completed hop.
func (o *Orchestrator) reverseSwap(v pricingApp.Venue, fwd pricingApp.SwapRequest) undoFunc {
	return func(ctx context.Context, carry uint64) (uint64, error) {
		if carry == 0 {
			return 0, apperror.New(apperror.CodeInvalidState, apperror.WithContext("nothing to swap back"))
		}
		stepCtx, cancel := o.stepContext(ctx)
		defer cancel()
		return v.Swap(stepCtx, fwd.Reverse(carry))
	}
}

// repayPrincipal returns as much of the principal as carry covers.
func (o *Orchestrator) repayPrincipal(loan lendingDomain.Loan) undoFunc {
	return func(ctx context.Context, carry uint64) (uint64, error) {
		repay := min(carry, loan.Principal)
		if repay == 0 {
			return carry, apperror.New(apperror.CodeInsufficientProfit,
				apperror.WithContext("nothing left to repay the loan"))
		}

		stepCtx, cancel := o.stepContext(ctx)
		defer cancel()
		if err := o.loans.Repay(stepCtx, loan, repay); err != nil {
			return carry, err
		}
		if repay < loan.Principal {
			return carry - repay, apperror.New(apperror.CodeInsufficientProfit,
				apperror.WithContext(fmt.Sprintf("loan short by %d", loan.Principal-repay)))
		}
		return carry - repay, nil
	}
}

// execution is the mutable state of one Execute call.
type execution struct {
	o       *Orchestrator
	pair    domain.TokenPair
	saga    saga
	outcome domain.ExecutionOutcome
	// carry is the amount currently held in the asset of the last step.
	carry uint64
}

func (e *execution) run(ctx context.Context, amount uint64) error {
	if err := e.o.validate(e.pair); err != nil {
		return err
	}

	opp, err := e.verify(ctx)
	if err != nil {
		return err
	}
	e.outcome.Direction = opp.Direction

	loan, err := e.borrow(ctx, amount)
	if err != nil {
		return err
	}

	settlement := e.o.cfg.Settlement.ID()
	input, output := e.pair.Input.ID(), e.pair.Output.ID()
	convert := e.pair.NeedsConversion(e.o.cfg.Settlement)

	if convert {
		if err := e.swap(ctx, "convert_in", e.pair.ConversionVenue, settlement, input); err != nil {
			return err
		}
	}
	e.outcome.State = domain.StateFirstSwapped

	first, second := opp.Direction.Legs(e.pair)
	if err := e.swap(ctx, "first_leg", first, input, output); err != nil {
		return err
	}
	if err := e.swap(ctx, "second_leg", second, output, input); err != nil {
		return err
	}
	e.outcome.State = domain.StateSecondSwapped

	if convert {
		if err := e.swap(ctx, "convert_out", e.pair.ConversionVenue, input, settlement); err != nil {
			return err
		}
	}
	// Proceeds are back in the settlement asset; only the loan can unwind.
	e.saga.keep(1)

	return e.settle(ctx, loan)
}

func (e *execution) verify(ctx context.Context) (*domain.Opportunity, error) {
	rec := domain.StepRecord{Name: "verify", State: domain.StateIdle, Input: e.pair.TradeAmount}
	start := time.Now()

	stepCtx, cancel := e.o.stepContext(ctx)
	defer cancel()

	fees, err := e.o.fees.FeeModel(stepCtx, e.pair)
	if err != nil {
		return nil, e.record(ctx, rec, start, err)
	}
	qa, qb, err := e.o.venues.QuotePair(stepCtx, e.pair.VenueA, e.pair.VenueB, pricingApp.QuoteRequest{
		Input:  e.pair.Input.ID(),
		Output: e.pair.Output.ID(),
		Amount: e.pair.TradeAmount,
	})
	if err != nil {
		return nil, e.record(ctx, rec, start, err)
	}
	opp, err := EvaluatePair(e.pair, qa, qb, fees)
	if err != nil {
		return nil, e.record(ctx, rec, start, err)
	}
	if opp == nil {
		return nil, e.record(ctx, rec, start, apperror.New(apperror.CodeNotProfitable,
			apperror.WithContext(fmt.Sprintf("%s spread no longer covers cost %d", e.pair.Symbol(), fees.TotalCost(e.pair.TradeAmount)))))
	}

	rec.Output = opp.ExpectedProfit
	return opp, e.record(ctx, rec, start, nil)
}

func (e *execution) borrow(ctx context.Context, amount uint64) (lendingDomain.Loan, error) {
	rec := domain.StepRecord{Name: "borrow", State: domain.StateIdle, Input: amount}
	start := time.Now()

	stepCtx, cancel := e.o.stepContext(ctx)
	defer cancel()

	loan, err := e.o.loans.Borrow(stepCtx, e.o.cfg.Settlement.ID(), amount)
	if err != nil {
		return loan, e.record(ctx, rec, start, err)
	}

	e.saga.push("borrow", e.o.repayPrincipal(loan))
	e.carry = amount
	e.outcome.Borrowed = amount
	e.outcome.State = domain.StateBorrowed
	rec.Output = amount
	return loan, e.record(ctx, rec, start, nil)
}

// swap sells the carried amount on a venue with a floor of the fresh quote
// less the slippage bound.
func (e *execution) swap(ctx context.Context, name string, id pricingDomain.VenueID, in, out asset.AssetID) error {
	rec := domain.StepRecord{Name: name + "@" + string(id), State: e.outcome.State, Input: e.carry}
	start := time.Now()

	v, err := e.o.venues.Venue(id)
	if err != nil {
		return e.record(ctx, rec, start, err)
	}

	stepCtx, cancel := e.o.stepContext(ctx)
	defer cancel()

	q, err := v.Quote(stepCtx, pricingApp.QuoteRequest{Input: in, Output: out, Amount: e.carry})
	if err != nil {
		return e.record(ctx, rec, start, err)
	}
	minOut, err := fixedpoint.LessBps(q.OutputAmount, e.o.cfg.SlippageBps)
	if err != nil {
		return e.record(ctx, rec, start, apperror.New(apperror.CodeCalculationError, apperror.WithCause(err)))
	}

	req := pricingApp.SwapRequest{Input: in, Output: out, Amount: e.carry, MinOutput: minOut}
	got, err := v.Swap(stepCtx, req)
	if got > 0 {
		// Whatever arrived has to be unwound, even alongside an error.
		e.saga.push(name, e.o.reverseSwap(v, req))
		e.carry = got
	}
	if err == nil && got == 0 {
		err = apperror.New(apperror.CodeSlippageExceeded,
			apperror.WithContext(fmt.Sprintf("%s returned nothing for %d", id, req.Amount)))
	}
	rec.Output = got
	return e.record(ctx, rec, start, err)
}

// settle repays principal plus fee and forwards the rest. Repayment is the
// pivot: afterwards nothing is compensated.
func (e *execution) settle(ctx context.Context, loan lendingDomain.Loan) error {
	repay, err := loan.RepayAmount()
	if err != nil {
		return apperror.New(apperror.CodeCalculationError, apperror.WithCause(err))
	}

	rec := domain.StepRecord{Name: "repay", State: e.outcome.State, Input: repay}
	start := time.Now()

	if e.carry < repay {
		return e.record(ctx, rec, start, apperror.New(apperror.CodeInsufficientProfit,
			apperror.WithContext(fmt.Sprintf("proceeds %d below repayment %d", e.carry, repay))))
	}

	stepCtx, cancel := e.o.stepContext(ctx)
	err = e.o.loans.Repay(stepCtx, loan, repay)
	cancel()
	if err != nil {
		return e.record(ctx, rec, start, err)
	}

	e.saga.clear()
	e.carry -= repay
	e.outcome.Repaid = repay
	e.outcome.RealizedProfit = e.carry
	e.outcome.State = domain.StateRepaid
	rec.Output = repay
	_ = e.record(ctx, rec, start, nil)

	if e.carry == 0 {
		return nil
	}
	return e.transferProfit(ctx, e.carry)
}

func (e *execution) transferProfit(ctx context.Context, profit uint64) error {
	rec := domain.StepRecord{Name: "transfer_profit", State: domain.StateRepaid, Input: profit}
	start := time.Now()

	var err error
attempts:
	for attempt := 0; attempt <= e.o.cfg.TransferRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				break attempts
			case <-time.After(e.o.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}

		stepCtx, cancel := e.o.stepContext(ctx)
		err = e.o.transfers.Transfer(stepCtx, e.o.cfg.Settlement.ID(), e.o.cfg.Account, e.o.cfg.ProfitDestination, profit)
		cancel()
		if err == nil {
			rec.Output = profit
			return e.record(ctx, rec, start, nil)
		}
		e.o.logger.Warn(ctx, "profit transfer failed", "id", e.outcome.ID, "attempt", attempt+1, "error", err)
	}

	return e.record(ctx, rec, start, apperror.New(apperror.CodeTransferFailed,
		apperror.WithCause(err),
		apperror.WithContext(fmt.Sprintf("profit %d left in %s", profit, e.o.cfg.Account))))
}

func (e *execution) record(ctx context.Context, rec domain.StepRecord, start time.Time, err error) error {
	rec.Duration = time.Since(start)
	if err != nil {
		rec.Err = err.Error()
	}
	e.outcome.Steps = append(e.outcome.Steps, rec)
	e.o.metrics.stepLatency.Record(ctx, float64(rec.Duration.Milliseconds()),
		metric.WithAttributes(attribute.String("step", rec.Name)))
	return err
}

// finish settles the terminal state. Failures before repayment unwind the
// saga on a context that ignores cancellation.
func (e *execution) finish(ctx context.Context, err error) {
	if err == nil {
		e.outcome.Success = true
		e.outcome.State = domain.StateProfitTransferred
		e.outcome.FinishedAt = e.o.now()
		return
	}

	e.outcome.Err = err
	e.outcome.FailureKind = domain.ClassifyFailure(err)
	if e.outcome.State != domain.StateRepaid {
		e.outcome.State = domain.StateReverted
		if e.saga.len() > 0 {
			e.outcome.Compensations = e.saga.unwind(context.WithoutCancel(ctx), e.carry)
			for _, c := range e.outcome.Compensations {
				if c.Err != "" {
					e.o.logger.Error(ctx, "compensation failed", "id", e.outcome.ID, "step", c.Name, "error", c.Err)
				}
			}
		}
	}
	e.outcome.FinishedAt = e.o.now()
}
