package app

import (
	"context"
	"time"

	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
)

// undoFunc reverses one step. carry is the amount held in the step's output
// asset; the result is the amount held in its input asset afterwards.
type undoFunc func(ctx context.Context, carry uint64) (uint64, error)

type compensation struct {
	name string
	undo undoFunc
}

// saga records compensations of completed steps so a failed execution can
// walk them back in reverse order.
type saga struct {
	comps []compensation
}

func (s *saga) push(name string, undo undoFunc) {
	s.comps = append(s.comps, compensation{name: name, undo: undo})
}

// keep drops every compensation after the first n. Used once the proceeds
// are back in the settlement asset and only the loan is left to unwind.
func (s *saga) keep(n int) {
	if n < len(s.comps) {
		s.comps = s.comps[:n]
	}
}

func (s *saga) clear() { s.comps = nil }

func (s *saga) len() int { return len(s.comps) }

// unwind runs compensations newest first, threading the carried amount
// through them. After a failure the rest cannot run against the right asset
// and are recorded as skipped.
func (s *saga) unwind(ctx context.Context, carry uint64) []domain.StepRecord {
	records := make([]domain.StepRecord, 0, len(s.comps))
	failed := false

	for i := len(s.comps) - 1; i >= 0; i-- {
		c := s.comps[i]
		rec := domain.StepRecord{Name: "undo_" + c.name, State: domain.StateReverted, Input: carry}
		if failed {
			rec.Err = "skipped after failed compensation"
			records = append(records, rec)
			continue
		}

		start := time.Now()
		out, err := c.undo(ctx, carry)
		rec.Duration = time.Since(start)
		rec.Output = out
		if err != nil {
			rec.Err = err.Error()
			failed = true
		}
		carry = out
		records = append(records, rec)
	}

	s.clear()
	return records
}
