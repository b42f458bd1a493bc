package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidTimeRange     ErrorCode = 102
	ErrCodeInvalidInterval      ErrorCode = 103
	ErrCodeMissingParameter     ErrorCode = 104

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataParseFailed ErrorCode = 701
	ErrCodeUnknownSymbol         ErrorCode = 702
	ErrCodeInvalidProvider       ErrorCode = 703

	// Pipeline errors (900-999)
	ErrCodeBusClosed     ErrorCode = 900
	ErrCodeQueueFull     ErrorCode = 901
	ErrCodeStageFailed   ErrorCode = 902
	ErrCodeQueueClosed   ErrorCode = 903
	ErrCodeStagePanicked ErrorCode = 904
	ErrCodeTopicMismatch ErrorCode = 905
)

// Retryable reports whether an operation that failed with this code may
// succeed if attempted again. Validation failures and unknown symbols never do.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrCodeMarketDataFetchFailed, ErrCodeQueueFull, ErrCodeUnknown:
		return true
	default:
		return false
	}
}
