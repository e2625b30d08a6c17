package paper

import (
	"context"
	"fmt"

	"github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
)

var (
	_ app.ReserveSource = (*PoolSet)(nil)
	_ app.PoolSwapper   = (*PoolSet)(nil)
)

// PoolSet is one constant-product venue made of several pools.
type PoolSet struct {
	venue string
	pools []*Pool
}

// NewPoolSet creates an empty venue.
func NewPoolSet(venue string) *PoolSet {
	return &PoolSet{venue: venue}
}

// Add registers a pool.
func (s *PoolSet) Add(p *Pool) { s.pools = append(s.pools, p) }

func (s *PoolSet) find(in, out asset.AssetID) (*Pool, error) {
	for _, p := range s.pools {
		if p.Trades(in, out) {
			return p, nil
		}
	}
	return nil, apperror.New(apperror.CodePoolNotFound,
		apperror.WithContext(fmt.Sprintf("%s has no pool for %s/%s", s.venue, in, out)))
}

// Reserves delegates to the pool trading the pair.
func (s *PoolSet) Reserves(ctx context.Context, in, out asset.AssetID) (domain.Reserves, error) {
	p, err := s.find(in, out)
	if err != nil {
		return domain.Reserves{}, err
	}
	return p.Reserves(ctx, in, out)
}

// SwapExactIn delegates to the pool trading the pair.
func (s *PoolSet) SwapExactIn(ctx context.Context, req app.SwapRequest) (uint64, error) {
	p, err := s.find(req.Input, req.Output)
	if err != nil {
		return 0, err
	}
	return p.SwapExactIn(ctx, req)
}
