package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeGasEstimationFailed:      "Gas estimation failed",
	CodeContractCallFailed:       "Smart contract call failed",
	CodeTxReverted:               "Transaction reverted",
	CodeSimulationUnavailable:    "Price-check simulation unavailable",

	CodeVenueNotFound:         "Venue not registered",
	CodePoolNotFound:          "Liquidity pool not found",
	CodeInvalidQuote:          "Invalid quote data",
	CodeAggregatorQuoteFailed: "Aggregator quote failed",
	CodePriceFeedFailed:       "Price feed lookup failed",
	CodeInsufficientLiquidity: "Insufficient liquidity for trade size",

	CodeCalculationError:    "Arithmetic overflow, underflow or division by zero",
	CodeInsufficientProfit:  "Proceeds do not cover loan repayment",
	CodeInvalidTokenAccount: "Invalid token account",
	CodeSlippageExceeded:    "Realized output below slippage bound",
	CodeNotProfitable:       "Opportunity no longer profitable",
	CodeLoanUnavailable:     "Loan venue refused the borrow",
	CodeTransferFailed:      "Token transfer failed",
	CodeLockHeld:            "Lock already held",
	CodeStoreError:          "Persistence error",

	CodeCircuitOpen: "Circuit breaker is open",
}
