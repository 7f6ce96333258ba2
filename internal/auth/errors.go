package auth

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/Kyz7/hcg-auth/internal/utils"
)

var (
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrEmailRequired         = errors.New("email is required")
	ErrInvalidOrExpiredOTP   = errors.New("invalid or expired OTP")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")
	ErrPasswordTooShort      = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong       = errors.New("password must be at most 72 bytes")
)

// Problem is how an error is reported to API clients.
type Problem struct {
	Status  int
	Code    string
	Message string
}

// Classify maps service and token errors onto their public form. Anything
// unrecognised is an internal error with a generic message.
func Classify(err error) Problem {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return Problem{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password"}
	case errors.Is(err, ErrEmailRequired):
		return Problem{http.StatusBadRequest, "VALIDATION_ERROR", "Email is required"}
	case errors.Is(err, ErrInvalidOrExpiredOTP):
		return Problem{http.StatusBadRequest, "RESET_INVALID_OR_EXPIRED", "Invalid or expired OTP"}
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return Problem{http.StatusBadRequest, "RESET_INVALID_OR_EXPIRED", "Invalid or expired reset token"}
	case errors.Is(err, ErrPasswordTooShort):
		return Problem{http.StatusBadRequest, "PASSWORD_TOO_SHORT", "Password must be at least 6 characters"}
	case errors.Is(err, ErrPasswordTooLong), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return Problem{http.StatusBadRequest, "PASSWORD_TOO_LONG", "Password must be at most 72 bytes"}
	case errors.Is(err, utils.ErrTokenExpired):
		return Problem{http.StatusUnauthorized, "TOKEN_EXPIRED", "Invalid or expired token"}
	case errors.Is(err, utils.ErrTokenSignatureInvalid):
		return Problem{http.StatusUnauthorized, "TOKEN_SIGNATURE_INVALID", "Invalid or expired token"}
	case errors.Is(err, utils.ErrTokenMalformed):
		return Problem{http.StatusUnauthorized, "TOKEN_MALFORMED", "Invalid or expired token"}
	default:
		return Problem{http.StatusInternalServerError, "INTERNAL_ERROR", "Server error. Please try again later."}
	}
}
