package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/business/pricing/domain"
	"github.com/fd1az/flashloan-arb/internal/apperror"
)

var _ app.PriceFeed = (*Feed)(nil)

// Feed serves fixed reference prices.
type Feed struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	now    func() time.Time
}

// NewFeed creates a feed with the given symbol prices.
func NewFeed(prices map[string]decimal.Decimal) *Feed {
	f := &Feed{prices: make(map[string]decimal.Decimal, len(prices)), now: time.Now}
	for s, p := range prices {
		f.prices[s] = p
	}
	return f
}

// Set updates a symbol price.
func (f *Feed) Set(symbol string, rate decimal.Decimal) {
	f.mu.Lock()
	f.prices[symbol] = rate
	f.mu.Unlock()
}

// Price returns the stored price for symbol.
func (f *Feed) Price(_ context.Context, symbol string) (domain.FeedPrice, error) {
	f.mu.RLock()
	rate, ok := f.prices[symbol]
	f.mu.RUnlock()
	if !ok {
		return domain.FeedPrice{}, apperror.New(apperror.CodePriceFeedFailed,
			apperror.WithContext(fmt.Sprintf("no price for %s", symbol)))
	}
	return domain.FeedPrice{Symbol: symbol, Rate: rate, At: f.now()}, nil
}
