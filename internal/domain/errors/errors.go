package errors

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrValidationFailed   = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInternalServer     = errors.New("internal server error")
	ErrBadRequest         = errors.New("bad request")
	ErrNotFound           = errors.New("resource not found")
	ErrConflict           = errors.New("resource conflict")
	ErrTooManyRequests    = errors.New("too many requests")

	ErrInvalidToken       = errors.New("invalid link")
	ErrExpiredToken       = errors.New("link expired")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrNotificationFailed = errors.New("notification delivery failed")

	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidTitle       = errors.New("invalid task title")
	ErrInvalidDescription = errors.New("invalid task description")
	ErrInvalidPriority    = errors.New("invalid task priority")
	ErrInvalidCategory    = errors.New("invalid task category")

	ErrConfigFileReadFailed = errors.New("failed to read config file")
	ErrConfigParseFailed    = errors.New("failed to parse config file")
	ErrConfigInvalidFormat  = errors.New("invalid config value")

	ErrInvalidGzipRequest    = errors.New("invalid gzip request body")
	ErrGzipCompressionFailed = errors.New("gzip compression failed")
)

// Code returns the machine-readable code sent alongside an error message.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrExpiredToken):
		return "expired_token"
	case errors.Is(err, ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUserNotFound):
		return "not_found"
	case errors.Is(err, ErrUserAlreadyExists), errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrTooManyRequests):
		return "rate_limited"
	case IsValidation(err), errors.Is(err, ErrBadRequest):
		return "validation_failed"
	default:
		return "internal"
	}
}

// IsValidation reports whether err is one of the field validation errors.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrValidationFailed,
		ErrInvalidUsername,
		ErrInvalidEmail,
		ErrInvalidPassword,
		ErrInvalidTitle,
		ErrInvalidDescription,
		ErrInvalidPriority,
		ErrInvalidCategory,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
