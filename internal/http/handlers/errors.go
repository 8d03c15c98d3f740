package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeInsufficientTokens = "INSUFFICIENT_TOKENS"
	ErrCodeStaleReward        = "STALE_REWARD"
	ErrCodeNotConfigured      = "NOT_CONFIGURED"
	ErrCodeUpstream           = "UPSTREAM_UNAVAILABLE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)
