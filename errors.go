package accounts

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds     = "INVALID_CREDENTIALS"
	TextCodeTooManyAttempts  = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeSessionNotFound  = "SESSION_NOT_FOUND"
	TextCodeTokenExpired     = "TOKEN_EXPIRED"
	TextCodeTokenMalformed   = "TOKEN_MALFORMED"
	TextCodeTokenStale       = "TOKEN_STALE_OR_REUSED"
	TextCodeIdentityNotFound = "IDENTITY_NOT_FOUND"
	TextCodeChannelNotFound  = "CHANNEL_NOT_FOUND"
	TextCodeDuplicateAccount = "DUPLICATE_ACCOUNT"
	TextCodeAlreadySubbed    = "ALREADY_SUBSCRIBED"
	TextCodeSelfSubscription = "SELF_SUBSCRIPTION"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(errors.CodeNotFound)

// ErrChannelNotFound is returned when a channel profile is requested for an
// unknown username.
var ErrChannelNotFound = errors.New("channel not found", errors.CategoryNotFound).
	WithTextCode(TextCodeChannelNotFound).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned for any bad credential. The
// message stays deliberately vague so callers cannot probe which part of
// the credential was wrong.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned when an account is cooling down.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(errors.CodeTooManyRequests)

// ErrNoEmptyString rejects empty secrets before they reach bcrypt.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// ErrTokenExpired is returned for tokens that fail the expiry check.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail signature or shape checks.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrRefreshTokenStale is returned when a syntactically valid refresh token
// no longer matches the identity's current slot: it was superseded by a
// rotation or cleared by a logout. Externally it reads as any other 401 but
// it carries its own text code because reuse is a theft signal.
var ErrRefreshTokenStale = errors.New("refresh token is stale or already used", errors.CategoryAuth).
	WithTextCode(TextCodeTokenStale).
	WithCode(errors.CodeUnauthorized)

// ErrDuplicateAccount is returned when a username or email is taken.
var ErrDuplicateAccount = errors.New("username or email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateAccount).
	WithCode(errors.CodeConflict)

// ErrAlreadySubscribed is returned when the subscription edge already exists.
var ErrAlreadySubscribed = errors.New("already subscribed to channel", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadySubbed).
	WithCode(errors.CodeConflict)

// ErrSelfSubscription rejects a subscriber and channel that are the same user.
var ErrSelfSubscription = errors.New("cannot subscribe to own channel", errors.CategoryBadInput).
	WithTextCode(TextCodeSelfSubscription).
	WithCode(errors.CodeBadRequest)

// ErrUnableToFindSession is the error when our reequest has no cookie
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}

	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}

	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsStaleTokenError reports whether err is the stale-or-reused rotation
// rejection, as opposed to a plain expired/malformed failure.
func IsStaleTokenError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	return errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenStale
}
