package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199). These are fatal and abort the run
	// before any simulation starts.
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidWeights       ErrorCode = 102
	ErrCodeInvalidThreshold     ErrorCode = 103
	ErrCodeInvalidPeriod        ErrorCode = 104
	ErrCodeInvalidDateRange     ErrorCode = 105
	ErrCodeInvalidLotSize       ErrorCode = 106

	// Data errors (200-299). Recorded per symbol, never fatal.
	ErrCodeInsufficientData ErrorCode = 200
	ErrCodeDataFetchFailed  ErrorCode = 201
	ErrCodeDataNotFound     ErrorCode = 202
	ErrCodeInvalidBar       ErrorCode = 203

	// Factor errors (300-399)
	ErrCodeFactorNotFound      ErrorCode = 300
	ErrCodeFactorAlreadyExists ErrorCode = 301
	ErrCodeFactorCalculation   ErrorCode = 302

	// Trading errors (400-499). Recorded per order, never fatal.
	ErrCodeInsufficientFunds ErrorCode = 400
	ErrCodeOrderRejected     ErrorCode = 401
	ErrCodePositionNotFound  ErrorCode = 402

	// Risk errors (500-599). Soft: recorded as warnings, run continues.
	ErrCodeRiskBreach ErrorCode = 500

	// Backtest errors (600-699)
	ErrCodeBacktestStateNil   ErrorCode = 600
	ErrCodeBacktestInitFailed ErrorCode = 601
	ErrCodeBacktestNoBars     ErrorCode = 602
	ErrCodeQueryFailed        ErrorCode = 603
)

// IsFatal reports whether an error code must abort the run before simulation.
// Only configuration errors are fatal; everything else is recorded in the
// result's error list and the run continues.
func (c ErrorCode) IsFatal() bool {
	return c >= 100 && c < 200
}
