package httputil

// Machine-readable error codes returned in ErrorResponse.Code.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeNotFound           = "NOT_FOUND"

	// Auth
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidReset       = "INVALID_RESET"
	CodeNotificationFailed = "NOTIFICATION_FAILED"

	// Rate limiting
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeCooldownActive  = "COOLDOWN_ACTIVE"

	// Bearer authentication
	CodeMissingAuth        = "MISSING_AUTH"
	CodeInvalidAuthHeader  = "INVALID_AUTH_HEADER"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidTokenUserID = "INVALID_TOKEN_USER_ID"
)
