package auth

import (
	"fmt"
	"log/slog"

	"gmessagerie/contract"
	"gmessagerie/domain"
	"gmessagerie/errors"
)

// SessionAuthenticator resolves a bearer credential to a real user
// identity. Every failure mode (missing, malformed, expired token,
// unknown user) collapses into ErrAuthFailure so the caller terminates
// the handshake without leaking which check failed.
type SessionAuthenticator struct {
	tokens *TokenManager
	users  contract.UserRepository
	log    *slog.Logger
}

func NewSessionAuthenticator(tokens *TokenManager, users contract.UserRepository, log *slog.Logger) *SessionAuthenticator {
	return &SessionAuthenticator{tokens: tokens, users: users, log: log}
}

// Authenticate validates the credential and confirms the subject still
// exists in the account store. Read-only, no side effects.
func (a *SessionAuthenticator) Authenticate(token string) (domain.UserID, error) {
	if token == "" {
		return 0, errors.ErrAuthFailure
	}
	claims, err := a.tokens.Verify(token)
	if err != nil {
		a.log.Debug("token rejected", "error", err)
		return 0, fmt.Errorf("%w: %v", errors.ErrAuthFailure, err)
	}
	if _, err := a.users.GetByID(claims.UserID); err != nil {
		a.log.Debug("token subject unknown", "user_id", claims.UserID)
		return 0, errors.ErrAuthFailure
	}
	return claims.UserID, nil
}
