// Package di contains dependency injection tokens for the blockchain context.
package di

import (
	"github.com/fd1az/flashloan-arb/business/blockchain/app"
	"github.com/fd1az/flashloan-arb/business/blockchain/infra/ethereum"
	"github.com/fd1az/flashloan-arb/internal/di"
)

// Public service tokens - exposed to other modules. All of them require a
// live node and are only resolved in live mode.
var (
	GasService = di.NewToken[*app.GasService]("blockchain.GasService")
	Caller     = di.NewToken[*ethereum.Caller]("blockchain.Caller")
	Submitter  = di.NewToken[*ethereum.Submitter]("blockchain.Submitter")
	Tokens     = di.NewToken[*ethereum.Tokens]("blockchain.Tokens")
)

// Private dependency tokens - internal to blockchain module
var (
	GasOracle = di.NewToken[*ethereum.GasOracle]("blockchain:gasOracle")
)

func GetGasService(c di.ServiceRegistry) *app.GasService {
	return di.GetToken(c, GasService)
}

func GetCaller(c di.ServiceRegistry) *ethereum.Caller {
	return di.GetToken(c, Caller)
}

func GetSubmitter(c di.ServiceRegistry) *ethereum.Submitter {
	return di.GetToken(c, Submitter)
}

func GetTokens(c di.ServiceRegistry) *ethereum.Tokens {
	return di.GetToken(c, Tokens)
}

func GetGasOracle(c di.ServiceRegistry) *ethereum.GasOracle {
	return di.GetToken(c, GasOracle)
}
