// Package postgres persists execution outcomes using PostgreSQL via pgx.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	"github.com/fd1az/flashloan-arb/business/arbitrage/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ app.OutcomeStore = (*Store)(nil)

// Store implements app.OutcomeStore.
type Store struct {
	pool *pgxpool.Pool
}

// New connects a pool and verifies it with a ping.
func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err),
			apperror.WithContext("postgres: parse dsn"))
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, apperror.New(apperror.CodeStoreError, apperror.WithCause(err),
			apperror.WithContext("postgres: connect"))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperror.New(apperror.CodeStoreError, apperror.WithCause(err),
			apperror.WithContext("postgres: ping"))
	}
	return &Store{pool: pool}, nil
}

// Ping checks the connection for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close shuts down the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies the embedded migrations in name order, once each.
func (s *Store) Migrate(ctx context.Context) error {
	const createTracker = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`
	if _, err := s.pool.Exec(ctx, createTracker); err != nil {
		return storeErr(err, "create schema_migrations")
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return storeErr(err, "read migrations")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		var applied bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)", name,
		).Scan(&applied); err != nil {
			return storeErr(err, "check migration "+name)
		}
		if applied {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return storeErr(err, "read migration "+name)
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return storeErr(err, "begin migration "+name)
		}
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			_ = tx.Rollback(ctx)
			return storeErr(err, "exec migration "+name)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", name); err != nil {
			_ = tx.Rollback(ctx)
			return storeErr(err, "record migration "+name)
		}
		if err := tx.Commit(ctx); err != nil {
			return storeErr(err, "commit migration "+name)
		}
	}
	return nil
}

// executionRecord is one executions row.
type executionRecord struct {
	ID             string
	Pair           string
	VenueA         string
	VenueB         string
	Direction      string
	Success        bool
	State          string
	FailureKind    string
	Error          string
	Borrowed       pgtype.Numeric
	Repaid         pgtype.Numeric
	RealizedProfit pgtype.Numeric
	StartedAt      time.Time
	FinishedAt     time.Time
}

// stepRecord is one execution_steps row.
type stepRecord struct {
	Seq          int
	Compensation bool
	Name         string
	State        string
	Input        pgtype.Numeric
	Output       pgtype.Numeric
	Error        string
	DurationMS   int64
}

func numeric(v uint64) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).SetUint64(v), Valid: true}
}

func toRecords(o domain.ExecutionOutcome) (executionRecord, []stepRecord) {
	rec := executionRecord{
		ID:             o.ID,
		Pair:           o.Pair.Symbol(),
		VenueA:         string(o.Pair.VenueA),
		VenueB:         string(o.Pair.VenueB),
		Direction:      o.Direction.String(),
		Success:        o.Success,
		State:          o.State.String(),
		FailureKind:    o.FailureKind.String(),
		Borrowed:       numeric(o.Borrowed),
		Repaid:         numeric(o.Repaid),
		RealizedProfit: numeric(o.RealizedProfit),
		StartedAt:      o.StartedAt,
		FinishedAt:     o.FinishedAt,
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}

	steps := make([]stepRecord, 0, len(o.Steps)+len(o.Compensations))
	add := func(i int, s domain.StepRecord, compensation bool) {
		steps = append(steps, stepRecord{
			Seq:          i,
			Compensation: compensation,
			Name:         s.Name,
			State:        s.State.String(),
			Input:        numeric(s.Input),
			Output:       numeric(s.Output),
			Error:        s.Err,
			DurationMS:   s.Duration.Milliseconds(),
		})
	}
	for i, s := range o.Steps {
		add(i, s, false)
	}
	for i, s := range o.Compensations {
		add(i, s, true)
	}
	return rec, steps
}

// Save inserts the outcome and its steps in one transaction.
func (s *Store) Save(ctx context.Context, o domain.ExecutionOutcome) error {
	rec, steps := toRecords(o)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO executions (id, pair, venue_a, venue_b, direction, success, state, failure_kind, error, borrowed, repaid, realized_profit, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.Pair, rec.VenueA, rec.VenueB, rec.Direction, rec.Success, rec.State,
		rec.FailureKind, rec.Error, rec.Borrowed, rec.Repaid, rec.RealizedProfit, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return storeErr(err, "insert execution "+rec.ID)
	}

	for _, st := range steps {
		_, err = tx.Exec(ctx, `
			INSERT INTO execution_steps (execution_id, seq, compensation, name, state, input, output, error, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rec.ID, st.Seq, st.Compensation, st.Name, st.State, st.Input, st.Output, st.Error, st.DurationMS,
		)
		if err != nil {
			return storeErr(err, fmt.Sprintf("insert step %s/%d", rec.ID, st.Seq))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr(err, "commit execution "+rec.ID)
	}
	return nil
}

// CountByState returns the number of stored executions per terminal state.
func (s *Store) CountByState(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, "SELECT state, COUNT(*) FROM executions GROUP BY state")
	if err != nil {
		return nil, storeErr(err, "count executions")
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, storeErr(err, "scan count")
		}
		counts[state] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "count executions")
	}
	return counts, nil
}

func storeErr(err error, context string) error {
	return apperror.New(apperror.CodeStoreError, apperror.WithCause(err), apperror.WithContext("postgres: "+context))
}
