package accounts

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Machine readable codes surfaced with failures. The calling layer maps these
// to user-visible messages, they never carry copy themselves.
const (
	TextCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	TextCodeAccountNotActive   = "ACCOUNT_NOT_ACTIVE"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeTooManyAttempts    = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeTokenInvalid       = "TOKEN_INVALID"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenAlreadyUsed   = "TOKEN_ALREADY_USED"
	TextCodeEmailTaken         = "EMAIL_ALREADY_REGISTERED"
)

// ErrAccountNotFound is returned when a referenced account does not exist
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidOrExpiredToken covers activation or reset codes that do not
// match, were already consumed, or whose TTL elapsed. Callers receive the
// same failure kind for all three, the metadata carries the internal reason.
var ErrInvalidOrExpiredToken = errors.New("invalid or expired code", errors.CategoryValidation).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeBadRequest)

// ErrIdentityNotFound is the login failure for an unknown identifier
var ErrIdentityNotFound = errors.New("invalid credentials provided", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the login failure for a password mismatch
var ErrMismatchedHashAndPassword = errors.New("invalid credentials provided", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrAccountPending blocks login until the account has been activated
var ErrAccountPending = errors.New("account is pending activation", errors.CategoryAuth).
	WithTextCode(TextCodeAccountNotActive).
	WithCode(errors.CodeUnauthorized)

// ErrAccountDeleted blocks login for soft-deleted accounts
var ErrAccountDeleted = errors.New("account has been deleted", errors.CategoryAuth).
	WithTextCode(TextCodeAccountNotActive).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while the cooldown window is active
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryAuth).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyPassword rejects blank passwords before they reach bcrypt
var ErrNoEmptyPassword = errors.New("password must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrTokenExpired is the session token (JWT) expiry error
var ErrTokenExpired = errors.New("authentication token expired", errors.CategoryAuth).
	WithTextCode("AUTH_TOKEN_EXPIRED").
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is the session token decode error
var ErrTokenMalformed = errors.New("authentication token malformed", errors.CategoryAuth).
	WithTextCode("AUTH_TOKEN_MALFORMED").
	WithCode(errors.CodeUnauthorized)

// ErrUnableToFindSession is returned when the request carries no session
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession is returned when the session cookie JWT is unusable
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims is returned when claims cannot be read from a token
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// statusAuthError maps a persisted account status to its login failure
func statusAuthError(status AccountStatus) error {
	switch status {
	case AccountStatusActive:
		return nil
	case AccountStatusPending:
		return ErrAccountPending
	case AccountStatusDeleted:
		return ErrAccountDeleted
	default:
		return ErrAccountPending
	}
}

// IsTokenExpiredError will check for expired session tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenExpired) ||
		strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for undecodable session tokens
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
