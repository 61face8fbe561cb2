package accounts

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteAuthenticator is the HTTP session transport. It moves the token pair
// in and out of cookies, falls back to the Authorization header for API
// clients, and guards routes by turning a verified access token into the
// request session.
type RouteAuthenticator struct {
	auth         Authenticator
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		cfg:    cfg,
		auth:   auther,
		Logger: defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = logger
	return a
}

// SetSessionCookies attaches both tokens to the response. Cookie lifetimes
// track the token lifetimes so the browser drops them when they stop being
// useful.
func (a *RouteAuthenticator) SetSessionCookies(c router.Context, pair *TokenPair) {
	a.setCookieToken(c, a.cfg.GetAccessCookieName(), pair.Access, a.cfg.GetAccessTokenExpiration())
	a.setCookieToken(c, a.cfg.GetRefreshCookieName(), pair.Refresh, a.cfg.GetRefreshTokenExpiration())
}

// ClearSessionCookies expires both token cookies.
func (a *RouteAuthenticator) ClearSessionCookies(c router.Context) {
	a.cookieDel(c, a.cfg.GetAccessCookieName())
	a.cookieDel(c, a.cfg.GetRefreshCookieName())
}

// AccessTokenFromRequest reads the access token from its cookie, falling
// back to a bearer Authorization header.
func (a *RouteAuthenticator) AccessTokenFromRequest(c router.Context) string {
	if token := c.Cookies(a.cfg.GetAccessCookieName()); token != "" {
		return token
	}

	header := c.GetString(router.HeaderAuthorization, "")
	scheme := a.cfg.GetAuthScheme()
	if scheme == "" {
		scheme = "Bearer"
	}

	if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}

	return ""
}

// RefreshTokenFromRequest reads the refresh token cookie.
func (a *RouteAuthenticator) RefreshTokenFromRequest(c router.Context) string {
	return c.Cookies(a.cfg.GetRefreshCookieName())
}

// ProtectedRoute verifies the request's access token and stores the session
// under the configured context key. Requests without a valid token never
// reach the handler.
func (a *RouteAuthenticator) ProtectedRoute(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = a.ErrorHandler
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			raw := a.AccessTokenFromRequest(c)
			if raw == "" {
				return errorHandler(c, ErrUnableToFindSession)
			}

			session, err := a.auth.SessionFromToken(raw)
			if err != nil {
				return errorHandler(c, a.classifyTokenError(err))
			}

			c.Locals(a.cfg.GetContextKey(), session)
			c.SetContext(WithSessionContext(c.Context(), session))

			return hf(c)
		}
	}
}

// OptionalRoute behaves like ProtectedRoute but lets unauthenticated
// requests through without a session. Handlers see a nil session and can
// degrade, e.g. a channel profile with is_subscribed always false.
func (a *RouteAuthenticator) OptionalRoute() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			raw := a.AccessTokenFromRequest(c)
			if raw == "" {
				return hf(c)
			}

			session, err := a.auth.SessionFromToken(raw)
			if err != nil {
				a.Logger.Info("Optional auth failed, proceeding", "error", err)
				return hf(c)
			}

			c.Locals(a.cfg.GetContextKey(), session)
			c.SetContext(WithSessionContext(c.Context(), session))

			return hf(c)
		}
	}
}

func (a *RouteAuthenticator) classifyTokenError(err error) error {
	if IsTokenExpiredError(err) {
		return ErrTokenExpired
	}

	if IsMalformedError(err) {
		return ErrTokenMalformed
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}

	return errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
		WithCode(errors.CodeUnauthorized)
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, name, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Request error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		status = errors.CodeInternal
	}

	return c.JSON(status, map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
		},
	})
}
