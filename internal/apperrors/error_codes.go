package apperrors

// ErrorCode is the machine readable code returned in error bodies by the static host
type ErrorCode string

const (
	ErrCodeBadGateway        ErrorCode = "bad_gateway"
	ErrCodeEntryDocument     ErrorCode = "entry_document_unavailable"
	ErrCodeInternalError     ErrorCode = "internal_error"
	ErrCodeMethodNotAllowed  ErrorCode = "method_not_allowed"
	ErrCodeRateLimitExceeded ErrorCode = "rate_limit_exceeded"
	ErrCodeResourceNotFound  ErrorCode = "resource_not_found"
)
