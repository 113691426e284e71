package auth_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gmessagerie/auth"
	"gmessagerie/domain"
	"gmessagerie/errors"
	"gmessagerie/mocks"
)

func TestSessionAuthenticator(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	users := mocks.NewMockUserRepository(ctrl)
	authenticator := auth.NewSessionAuthenticator(tokens, users, slog.Default())

	t.Run("resolves a valid token to its user", func(t *testing.T) {
		req := require.New(t)
		token, err := tokens.Generate(7)
		req.NoError(err)

		users.EXPECT().GetByID(domain.UserID(7)).Return(domain.User{ID: 7}, nil)

		userID, err := authenticator.Authenticate(token)
		req.NoError(err)
		req.EqualValues(7, userID)
	})

	t.Run("rejects a missing credential", func(t *testing.T) {
		req := require.New(t)
		_, err := authenticator.Authenticate("")
		req.ErrorIs(err, errors.ErrAuthFailure)
	})

	t.Run("rejects a malformed credential", func(t *testing.T) {
		req := require.New(t)
		_, err := authenticator.Authenticate("definitely-not-a-jwt")
		req.ErrorIs(err, errors.ErrAuthFailure)
	})

	t.Run("rejects an expired credential", func(t *testing.T) {
		req := require.New(t)
		expired, err := auth.NewTokenManager("test-secret", -time.Minute).Generate(7)
		req.NoError(err)

		_, err = authenticator.Authenticate(expired)
		req.ErrorIs(err, errors.ErrAuthFailure)
	})

	t.Run("rejects a token whose subject no longer exists", func(t *testing.T) {
		req := require.New(t)
		token, err := tokens.Generate(999)
		req.NoError(err)

		users.EXPECT().GetByID(domain.UserID(999)).Return(domain.User{}, errors.ErrUserNotFound)

		_, err = authenticator.Authenticate(token)
		req.ErrorIs(err, errors.ErrAuthFailure)
	})
}
