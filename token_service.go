package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenStore is the narrow persistence surface the token service needs: the
// identity record and its single refresh token slot.
type TokenStore interface {
	GetByID(ctx context.Context, id string) (*User, error)
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error
	SwapRefreshToken(ctx context.Context, id uuid.UUID, current, next string) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
}

// TokenService mints and validates the two token kinds and owns the
// rotation policy for the refresh slot.
type TokenService interface {
	IssuePair(ctx context.Context, identity Identity) (*TokenPair, error)
	VerifyAccess(token string) (AuthClaims, error)
	Rotate(ctx context.Context, presentedRefresh string) (*TokenPair, error)
	Revoke(ctx context.Context, identityID string) error
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	accessKey      []byte
	refreshKey     []byte
	accessExpiry   time.Duration
	refreshExpiry  time.Duration
	issuer         string
	audience       jwt.ClaimStrings
	store          TokenStore
	logger         Logger
	accessVerifier TokenValidator
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config, store TokenStore, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}

	return &TokenServiceImpl{
		accessKey:     []byte(cfg.GetAccessSigningKey()),
		refreshKey:    []byte(cfg.GetRefreshSigningKey()),
		accessExpiry:  cfg.GetAccessTokenExpiration(),
		refreshExpiry: cfg.GetRefreshTokenExpiration(),
		issuer:        cfg.GetIssuer(),
		audience:      jwt.ClaimStrings(cfg.GetAudience()),
		store:         store,
		logger:        logger,
	}
}

// WithAccessValidator sets a custom validator for externally issued access
// tokens, e.g. a JWKS backed verifier. Refresh tokens are always validated
// locally since rotation needs the store anyway.
func (ts *TokenServiceImpl) WithAccessValidator(validator TokenValidator) *TokenServiceImpl {
	ts.accessVerifier = validator
	return ts
}

// IssuePair signs a new access/refresh pair for the identity and persists
// the refresh token as the identity's current slot value. The slot is a
// state transition, not an append: whatever token was current before is
// invalid the moment this returns.
func (ts *TokenServiceImpl) IssuePair(ctx context.Context, identity Identity) (*TokenPair, error) {
	pair, err := ts.mintPair(identity)
	if err != nil {
		return nil, err
	}

	uid, err := uuid.Parse(identity.ID())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "identity id is not a valid uuid")
	}

	if err := ts.store.SetRefreshToken(ctx, uid, pair.Refresh); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist refresh token")
	}

	return pair, nil
}

// VerifyAccess validates signature and expiry of an access token. It does
// not consult the store; a revoked session keeps its access token alive
// until the short expiry window closes.
func (ts *TokenServiceImpl) VerifyAccess(tokenString string) (AuthClaims, error) {
	if ts.accessVerifier != nil {
		return ts.accessVerifier.Validate(tokenString)
	}

	claims := &AccessClaims{}
	if err := ts.parse(tokenString, claims, ts.accessKey); err != nil {
		return nil, err
	}

	return claims, nil
}

// Rotate validates a presented refresh token, confirms it is still the
// identity's current slot value, and swaps in a freshly minted pair. Any
// mismatch, including a previously valid but superseded token, is rejected
// as stale. The swap is a compare-and-swap so two concurrent rotations of
// the same token cannot both succeed.
func (ts *TokenServiceImpl) Rotate(ctx context.Context, presentedRefresh string) (*TokenPair, error) {
	claims := &RefreshClaims{}
	if err := ts.parse(presentedRefresh, claims, ts.refreshKey); err != nil {
		return nil, err
	}

	user, err := ts.store.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrRefreshTokenStale
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load identity during rotation")
	}

	if user.RefreshToken == nil || *user.RefreshToken != presentedRefresh {
		ts.logger.Warn("refresh token reuse detected", "user_id", user.ID.String())
		return nil, ErrRefreshTokenStale
	}

	pair, err := ts.mintPair(UserIdentity{user: user})
	if err != nil {
		return nil, err
	}

	if err := ts.store.SwapRefreshToken(ctx, user.ID, presentedRefresh, pair.Refresh); err != nil {
		if IsStaleTokenError(err) {
			// lost the race against a concurrent rotation
			ts.logger.Warn("concurrent rotation detected", "user_id", user.ID.String())
			return nil, ErrRefreshTokenStale
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to swap refresh token")
	}

	return pair, nil
}

// Revoke clears the identity's refresh token slot. Idempotent: revoking an
// already empty slot is not an error.
func (ts *TokenServiceImpl) Revoke(ctx context.Context, identityID string) error {
	uid, err := uuid.Parse(identityID)
	if err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "identity id is not a valid uuid")
	}

	if err := ts.store.ClearRefreshToken(ctx, uid); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to clear refresh token")
	}

	return nil
}

func (ts *TokenServiceImpl) mintPair(identity Identity) (*TokenPair, error) {
	now := time.Now()

	access := &AccessClaims{
		RegisteredClaims: ts.registeredClaims(identity.ID(), now, ts.accessExpiry),
		UID:              identity.ID(),
	}

	refresh := &RefreshClaims{
		RegisteredClaims: ts.registeredClaims(identity.ID(), now, ts.refreshExpiry),
		UID:              identity.ID(),
		Username:         identity.Username(),
		Email:            identity.Email(),
		FullName:         identity.FullName(),
	}

	signedAccess, err := ts.sign(access, ts.accessKey)
	if err != nil {
		return nil, err
	}

	signedRefresh, err := ts.sign(refresh, ts.refreshKey)
	if err != nil {
		return nil, err
	}

	return &TokenPair{Access: signedAccess, Refresh: signedRefresh}, nil
}

func (ts *TokenServiceImpl) registeredClaims(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := jwt.RegisteredClaims{
		Issuer:    ts.issuer,
		Subject:   subject,
		Audience:  aud,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	ensureTokenID(&claims)

	return claims
}

func (ts *TokenServiceImpl) sign(claims jwt.Claims, key []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

func (ts *TokenServiceImpl) parse(tokenString string, claims jwt.Claims, key []byte) error {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if !token.Valid {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return ErrUnableToDecodeSession
	}

	return nil
}
