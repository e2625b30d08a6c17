// Package di contains dependency injection tokens for the lending context.
package di

import (
	"github.com/fd1az/flashloan-arb/business/lending/app"
	"github.com/fd1az/flashloan-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	LoanService = di.NewToken[*app.LoanService]("lending.LoanService")
)

// Private dependency tokens - internal to lending module
var (
	Lender = di.NewToken[app.Lender]("lending:lender")
)

func GetLoanService(c di.ServiceRegistry) *app.LoanService {
	return di.GetToken(c, LoanService)
}

func GetLender(c di.ServiceRegistry) app.Lender {
	return di.GetToken(c, Lender)
}
