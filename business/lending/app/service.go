package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-arb/business/lending/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

const tracerName = "lending"

// LoanService opens and settles flash loans against one lender.
type LoanService struct {
	lender Lender
	feeBps uint64
	logger logger.LoggerInterface
	tracer trace.Tracer
	now    func() time.Time
}

// NewLoanService creates a LoanService charging feeBps per loan.
func NewLoanService(lender Lender, feeBps uint64, log logger.LoggerInterface) *LoanService {
	return &LoanService{
		lender: lender,
		feeBps: feeBps,
		logger: log,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
}

// FeeBps returns the loan fee rate.
func (s *LoanService) FeeBps() uint64 { return s.feeBps }

// Borrow opens a loan of amount. Insufficient liquidity or a lender failure
// returns LOAN_UNAVAILABLE unless the cause is transient.
func (s *LoanService) Borrow(ctx context.Context, id asset.AssetID, amount uint64) (domain.Loan, error) {
	ctx, span := s.tracer.Start(ctx, "lending.borrow",
		trace.WithAttributes(
			attribute.String("lender", s.lender.Name()),
			attribute.String("asset", id.String()),
			attribute.Int64("amount", int64(amount)),
		),
	)
	defer span.End()

	loan, err := domain.NewLoan(s.lender.Name(), id, amount, s.feeBps, s.now())
	if err != nil {
		return domain.Loan{}, apperror.New(apperror.CodeCalculationError, apperror.WithCause(err))
	}

	available, err := s.lender.Available(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "availability failed")
		return domain.Loan{}, s.unavailable(err, "availability")
	}
	if available < amount {
		err := apperror.New(apperror.CodeLoanUnavailable,
			apperror.WithContext(fmt.Sprintf("%s has %d of %s, requested %d", s.lender.Name(), available, id, amount)))
		span.SetStatus(codes.Error, "insufficient liquidity")
		return domain.Loan{}, err
	}

	if err := s.lender.Borrow(ctx, id, amount); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "borrow failed")
		return domain.Loan{}, s.unavailable(err, "borrow")
	}

	s.logger.Debug(ctx, "loan opened", "lender", s.lender.Name(), "asset", id.String(), "principal", amount, "fee", loan.Fee)
	span.SetStatus(codes.Ok, "borrowed")
	return loan, nil
}

// Repay returns amount of the loan asset to the lender.
func (s *LoanService) Repay(ctx context.Context, loan domain.Loan, amount uint64) error {
	ctx, span := s.tracer.Start(ctx, "lending.repay",
		trace.WithAttributes(
			attribute.String("lender", s.lender.Name()),
			attribute.Int64("amount", int64(amount)),
		),
	)
	defer span.End()

	if err := s.lender.Repay(ctx, loan.Asset, amount); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repay failed")
		return err
	}
	span.SetStatus(codes.Ok, "repaid")
	return nil
}

func (s *LoanService) unavailable(err error, op string) error {
	if apperror.IsTransient(err) {
		return err
	}
	return apperror.New(apperror.CodeLoanUnavailable, apperror.WithCause(err), apperror.WithContext(op))
}
