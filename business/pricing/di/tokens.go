// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/flashloan-arb/business/pricing/app"
	"github.com/fd1az/flashloan-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	QuoterService = di.NewToken[*app.QuoterService]("pricing.QuoterService")
	PriceFeed     = di.NewToken[app.PriceFeed]("pricing.PriceFeed")
)

// Helper functions for type-safe access
func GetQuoterService(c di.ServiceRegistry) *app.QuoterService {
	return di.GetToken(c, QuoterService)
}

func GetPriceFeed(c di.ServiceRegistry) app.PriceFeed {
	return di.GetToken(c, PriceFeed)
}
