package handlers

const (
	RequestIDHeader = "X-Request-ID"

	ErrInvalidJSON         = "Invalid JSON body"
	ErrTooManyRequests     = "Too many requests"
	ErrInternalServerError = "Internal server error"
	ErrUpstreamFailure     = "Data service unavailable"

	maxBodyBytes = 1 << 20
)
