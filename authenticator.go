package accounts

import (
	"context"
	"reflect"
	"time"
)

// Auther orchestrates credential verification and token issuance. It is the
// single entry point request handlers talk to: everything below it (the
// identity provider, the token service, the store) is injected.
type Auther struct {
	provider     IdentityProvider
	tokens       TokenService
	logger       Logger
	activitySink ActivitySink
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, tokens TokenService) *Auther {
	return &Auther{
		provider:     provider,
		tokens:       tokens,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// Login verifies the credential and issues a fresh token pair, replacing
// whatever refresh token was current for the identity.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrIdentityNotFound.Error(),
		})
		return nil, ErrIdentityNotFound
	}

	pair, err := s.tokens.IssuePair(ctx, identity)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": identifier,
	})

	return pair, nil
}

// Refresh rotates a presented refresh token into a new pair. A stale or
// reused token is surfaced to the caller like any other unauthorized error
// but recorded distinctly, since reuse is a signal of possible token theft.
func (s *Auther) Refresh(ctx context.Context, presentedRefresh string) (*TokenPair, error) {
	pair, err := s.tokens.Rotate(ctx, presentedRefresh)
	if err != nil {
		if IsStaleTokenError(err) {
			s.logger.Warn("Refresh rejected: stale or reused token")
			s.emitAuthEvent(ctx, ActivityEventTokenReuse, ActorRef{Type: "unknown"}, "", map[string]any{
				"error": err.Error(),
			})
		} else {
			s.logger.Error("Refresh rotation error", "error", err)
		}
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRotated, ActorRef{Type: "user"}, "", nil)

	return pair, nil
}

// Logout clears the identity's refresh token slot. Safe to call for an
// already logged out identity.
func (s *Auther) Logout(ctx context.Context, identityID string) error {
	if err := s.tokens.Revoke(ctx, identityID); err != nil {
		s.logger.Error("Logout revoke error", "error", err)
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, ActorRef{ID: identityID, Type: "user"}, identityID, nil)

	return nil
}

// SessionFromToken verifies an access token and builds the request session.
func (s Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.tokens.VerifyAccess(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims", "error", err)
		return nil, err
	}

	return session, nil
}

// IdentityFromSession resolves the full identity behind a session.
func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())
	if err != nil {
		s.logger.Error("IdentityFromSession find identity by identifier", "error", err)
		return nil, err
	}

	return identity, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
	}
}
