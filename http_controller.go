package accounts

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"path"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"

	"github.com/goliatone/go-accounts/storage"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Patch(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

type AccountControllerRoutes struct {
	Register       string
	Login          string
	Logout         string
	RefreshToken   string
	ChangePassword string
	CurrentUser    string
	Account        string
	Avatar         string
	CoverImage     string
	Channel        string
	Subscription   string
	History        string
}

// AccountController exposes the account API as JSON routes. It talks to the
// authenticator for sessions, the repositories for account state, the graph
// engine for channel reads, and media storage for profile images.
type AccountController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Auther       Authenticator
	HTTP         *RouteAuthenticator
	Graph        *ChannelGraph
	Media        storage.MediaStorage
	Routes       *AccountControllerRoutes
	ErrorHandler func(router.Context, error) error
}

type AccountControllerOption func(*AccountController) *AccountController

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger: defLogger{},
		Routes: &AccountControllerRoutes{
			Register:       "/auth/register",
			Login:          "/auth/login",
			Logout:         "/auth/logout",
			RefreshToken:   "/auth/refresh-token",
			ChangePassword: "/auth/change-password",
			CurrentUser:    "/auth/current-user",
			Account:        "/auth/account",
			Avatar:         "/auth/avatar",
			CoverImage:     "/auth/cover-image",
			Channel:        "/channels/:username",
			Subscription:   "/channels/:username/subscription",
			History:        "/history",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in account controller...")
	}

	if c.HTTP == nil {
		panic("Missing RouteAuthenticator in account controller...")
	}

	if c.Graph == nil {
		c.Graph = NewChannelGraph(c.Repo)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.HTTP.ErrorHandler
	}

	return c
}

func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Logger = logger
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther Authenticator) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Auther = auther
		return c
	}
}

func WithControllerHTTP(http *RouteAuthenticator) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.HTTP = http
		return c
	}
}

func WithControllerMedia(media storage.MediaStorage) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Media = media
		return c
	}
}

func WithControllerDebug(debug bool) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Debug = debug
		return c
	}
}

// RegisterRoutes wires the account routes. Protected routes go through the
// session middleware; the channel profile route is optional so anonymous
// viewers still get a profile with is_subscribed false.
func (a *AccountController) RegisterRoutes(group RouteRegistrar) {
	protected := a.HTTP.ProtectedRoute(nil)
	optional := a.HTTP.OptionalRoute()

	group.Post(a.Routes.Register, a.Register)
	group.Post(a.Routes.Login, a.Login)
	group.Post(a.Routes.RefreshToken, a.RefreshToken)

	group.Post(a.Routes.Logout, a.Logout, protected)
	group.Post(a.Routes.ChangePassword, a.ChangePassword, protected)
	group.Get(a.Routes.CurrentUser, a.CurrentUser, protected)
	group.Patch(a.Routes.Account, a.UpdateAccount, protected)
	group.Patch(a.Routes.Avatar, a.UpdateAvatar, protected)
	group.Patch(a.Routes.CoverImage, a.UpdateCoverImage, protected)
	group.Get(a.Routes.History, a.WatchHistory, protected)
	group.Post(a.Routes.Subscription, a.Subscribe, protected)
	group.Delete(a.Routes.Subscription, a.Unsubscribe, protected)

	group.Get(a.Routes.Channel, a.ChannelProfile, optional)
}

// RegisterPayload is the registration request body. Avatar and cover image
// can come as media payloads or as pre-uploaded URLs.
type RegisterPayload struct {
	Username   string        `json:"username" form:"username"`
	Email      string        `json:"email" form:"email"`
	FullName   string        `json:"full_name" form:"full_name"`
	Password   string        `json:"password" form:"password"`
	Avatar     *MediaPayload `json:"avatar,omitempty"`
	CoverImage *MediaPayload `json:"cover_image,omitempty"`
}

func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(2, 50)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(&r.Avatar, validation.Required),
	)
}

// MediaPayload carries one uploaded image, either inline or by URL.
type MediaPayload struct {
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        string `json:"data,omitempty"`
}

func (m MediaPayload) Validate() error {
	if m.URL != "" {
		return validation.Validate(m.URL, is.URL)
	}

	return validation.ValidateStruct(&m,
		validation.Field(&m.ContentType, validation.Required),
		validation.Field(&m.Data, validation.Required, is.Base64),
	)
}

func (a *AccountController) Register(ctx router.Context) error {
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	avatarURL, err := a.resolveMedia(ctx, payload.Avatar, "avatar")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	coverURL, err := a.resolveMedia(ctx, payload.CoverImage, "cover")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	var created *User
	msg := RegisterUserMessage{
		Username:   payload.Username,
		Email:      payload.Email,
		FullName:   payload.FullName,
		Password:   payload.Password,
		Avatar:     avatarURL,
		CoverImage: coverURL,
		UseHashid:  true,
		OnResponse: func(u *User) {
			created = u
		},
	}

	registerUser := NewRegisterUserHandler(a.Repo)
	if err := registerUser.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("register user error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"user": created,
	})
}

// LoginPayload is the login request body. Identifier takes a username or an
// email.
type LoginPayload struct {
	Identifier string `json:"identifier" form:"identifier"`
	Password   string `json:"password" form:"password"`
}

func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountController) Login(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	pair, err := a.Auther.Login(ctx.Context(), payload.Identifier, payload.Password)
	if err != nil {
		a.Logger.Error("login error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	a.HTTP.SetSessionCookies(ctx, pair)

	// the pair also goes in the body for clients without a cookie jar
	return ctx.JSON(router.StatusOK, map[string]any{
		"tokens": pair,
	})
}

func (a *AccountController) Logout(ctx router.Context) error {
	session, err := a.sessionFromRequest(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Auther.Logout(ctx.Context(), session.GetUserID()); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.HTTP.ClearSessionCookies(ctx)

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "logged out",
	})
}

// RefreshPayload carries a body-presented refresh token for clients that do
// not use cookies.
type RefreshPayload struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

func (a *AccountController) RefreshToken(ctx router.Context) error {
	presented := a.HTTP.RefreshTokenFromRequest(ctx)

	if presented == "" {
		payload := new(RefreshPayload)
		if err := ctx.Bind(payload); err == nil {
			presented = payload.RefreshToken
		}
	}

	if presented == "" {
		return a.ErrorHandler(ctx, ErrUnableToFindSession)
	}

	pair, err := a.Auther.Refresh(ctx.Context(), presented)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.HTTP.SetSessionCookies(ctx, pair)

	return ctx.JSON(router.StatusOK, map[string]any{
		"tokens": pair,
	})
}

// ChangePasswordPayload is the change password request body.
type ChangePasswordPayload struct {
	OldPassword string `json:"old_password" form:"old_password"`
	NewPassword string `json:"new_password" form:"new_password"`
}

func (r ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(10, 100)),
	)
}

func (a *AccountController) ChangePassword(ctx router.Context) error {
	session, err := a.sessionFromRequest(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ChangePasswordPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	changePassword := NewChangePasswordHandler(a.Repo)
	if err := changePassword.Execute(ctx.Context(), ChangePasswordMessage{
		UserID:      session.GetUserID(),
		OldPassword: payload.OldPassword,
		NewPassword: payload.NewPassword,
	}); err != nil {
		a.Logger.Error("change password error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	// refresh slot was cleared; drop the cookies so the client re-logins
	a.HTTP.ClearSessionCookies(ctx)

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "password changed",
	})
}

func (a *AccountController) CurrentUser(ctx router.Context) error {
	user, err := a.userFromRequest(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": user,
	})
}

// UpdateAccountPayload is the account update request body.
type UpdateAccountPayload struct {
	FullName string `json:"full_name" form:"full_name"`
	Email    string `json:"email" form:"email"`
}

func (r UpdateAccountPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
	)
}

func (a *AccountController) UpdateAccount(ctx router.Context) error {
	user, err := a.userFromRequest(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(UpdateAccountPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	updated, err := a.Repo.Users().UpdateAccount(ctx.Context(), user.ID, payload.FullName, payload.Email)
	if err != nil {
		a.Logger.Error("update account error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": updated,
	})
}

func (a *AccountController) UpdateAvatar(ctx router.Context) error {
	return a.updateMedia(ctx, "avatar", func(id uuid.UUID, url string) (*User, error) {
		return a.Repo.Users().UpdateAvatar(ctx.Context(), id, url)
	})
}

func (a *AccountController) UpdateCoverImage(ctx router.Context) error {
	return a.updateMedia(ctx, "cover", func(id uuid.UUID, url string) (*User, error) {
		return a.Repo.Users().UpdateCoverImage(ctx.Context(), id, url)
	})
}

func (a *AccountController) updateMedia(ctx router.Context, kind string, update func(uuid.UUID, string) (*User, error)) error {
	user, err := a.userFromRequest(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(MediaPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	url, err := a.resolveMedia(ctx, payload, kind)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	updated, err := update(user.ID, url)
	if err != nil {
		a.Logger.Error("update media error", "kind", kind, "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": updated,
	})
}

func (a *AccountController) ChannelProfile(ctx router.Context) error {
	username := ctx.Param("username", "")
	if username == "" {
		return a.ErrorHandler(ctx, ErrChannelNotFound)
	}

	viewerID := uuid.Nil
	if session, ok := GetRouterSession(ctx, a.HTTP.cfg.GetContextKey()); ok {
		if id, err := session.GetUserUUID(); err == nil {
			viewerID = id
		}
	}

	profile, err := a.Graph.Profile(ctx.Context(), username, viewerID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"channel": profile,
	})
}

func (a *AccountController) WatchHistory(ctx router.Context) error {
	user, err := a.userFromRequest(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	entries, err := a.Graph.WatchHistory(ctx.Context(), user.ID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"history": entries,
	})
}

func (a *AccountController) Subscribe(ctx router.Context) error {
	viewer, channel, err := a.resolveSubscriptionEdge(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if _, err := a.Repo.Subscriptions().Subscribe(ctx.Context(), viewer.ID, channel.ID); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"subscribed": true,
		"channel":    channel.Username,
	})
}

func (a *AccountController) Unsubscribe(ctx router.Context) error {
	viewer, channel, err := a.resolveSubscriptionEdge(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Repo.Subscriptions().Unsubscribe(ctx.Context(), viewer.ID, channel.ID); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"subscribed": false,
		"channel":    channel.Username,
	})
}

func (a *AccountController) resolveSubscriptionEdge(ctx router.Context) (viewer, channel *User, err error) {
	viewer, err = a.userFromRequest(ctx)
	if err != nil {
		return nil, nil, err
	}

	username := ctx.Param("username", "")
	if username == "" {
		return nil, nil, ErrChannelNotFound
	}

	channel, err = a.Repo.Users().GetByIdentifier(ctx.Context(), NormalizeIdentifier(username))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, nil, ErrChannelNotFound
		}
		return nil, nil, err
	}

	return viewer, channel, nil
}

// resolveMedia turns a media payload into a stored URL. Inline data is
// uploaded; a URL is passed through untouched.
func (a *AccountController) resolveMedia(ctx router.Context, payload *MediaPayload, kind string) (string, error) {
	if payload == nil {
		return "", nil
	}

	if payload.URL != "" {
		return payload.URL, nil
	}

	if a.Media == nil {
		return "", goerrors.New("media storage is not configured", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal)
	}

	data, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid media payload").
			WithCode(goerrors.CodeBadRequest)
	}

	key := storage.MediaKey(kind, extensionForContentType(payload.ContentType))

	url, err := a.Media.Upload(ctx.Context(), key, payload.ContentType, bytes.NewReader(data))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store media").
			WithCode(goerrors.CodeInternal)
	}

	return url, nil
}

func (a *AccountController) sessionFromRequest(ctx router.Context) (Session, error) {
	session, ok := GetRouterSession(ctx, a.HTTP.cfg.GetContextKey())
	if !ok {
		return nil, ErrUnableToFindSession
	}
	return session, nil
}

func (a *AccountController) userFromRequest(ctx router.Context) (*User, error) {
	session, err := a.sessionFromRequest(ctx)
	if err != nil {
		return nil, err
	}

	user, err := a.Repo.Users().GetByIdentifier(ctx.Context(), session.GetUserID())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	return user, nil
}

func (a *AccountController) badRequest(ctx router.Context, err error, msg string) error {
	a.Logger.Error("bad request", "error", err)
	return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, msg).
		WithCode(goerrors.CodeBadRequest))
}

func (a *AccountController) validationError(ctx router.Context, err error) error {
	a.Logger.Error("validation error", "error", err)
	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"message":   "validation failed",
			"text_code": "VALIDATION",
			"fields":    FormatValidationErrorToMap(err),
		},
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["_"] = err.Error()
	return out
}

func extensionForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return path.Ext(contentType)
	}
}
