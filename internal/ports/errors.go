package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Tracking Errors
	// ErrInvariantViolation indicates the position tracker failed to classify
	// an execution. This is a logic bug and must abort the run rather than
	// silently produce an incomplete trade.
	ErrInvariantViolation = errors.New("execution left without an assigned trade id")
	ErrUnorderedInput     = errors.New("executions are not in timestamp order")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)
