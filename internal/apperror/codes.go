package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain errors
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"
	CodeTxReverted               Code = "TX_REVERTED"
	CodeSimulationUnavailable    Code = "SIMULATION_UNAVAILABLE"
)

// Venue and feed errors
const (
	CodeVenueNotFound         Code = "VENUE_NOT_FOUND"
	CodePoolNotFound          Code = "POOL_NOT_FOUND"
	CodeInvalidQuote          Code = "INVALID_QUOTE"
	CodeAggregatorQuoteFailed Code = "AGGREGATOR_QUOTE_FAILED"
	CodePriceFeedFailed       Code = "PRICE_FEED_FAILED"
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
)

// Arbitrage errors
const (
	CodeCalculationError    Code = "CALCULATION_ERROR"
	CodeInsufficientProfit  Code = "INSUFFICIENT_PROFIT"
	CodeInvalidTokenAccount Code = "INVALID_TOKEN_ACCOUNT"
	CodeSlippageExceeded    Code = "SLIPPAGE_EXCEEDED"
	CodeNotProfitable       Code = "NOT_PROFITABLE"
	CodeLoanUnavailable     Code = "LOAN_UNAVAILABLE"
	CodeTransferFailed      Code = "TRANSFER_FAILED"
	CodeLockHeld            Code = "LOCK_HELD"
	CodeStoreError          Code = "STORE_ERROR"
)

// Circuit breaker errors
const (
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
