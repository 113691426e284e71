package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gmessagerie/auth"
	"gmessagerie/domain"
	"gmessagerie/errors"
	"gmessagerie/mocks"
	"gmessagerie/services"
)

const testPassword = "MonMotDePasseTr0pSûr!"

func validRequest() auth.RegisterRequest {
	return auth.RegisterRequest{
		Email:     "amelie@example.com",
		Password:  testPassword,
		FirstName: "Amélie",
		LastName:  "Poulain",
	}
}

func newService(t *testing.T) (services.IAuthService, *mocks.MockUserRepository, *auth.TokenManager) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	return services.NewAuthService(users, tokens), users, tokens
}

func TestRegister(t *testing.T) {
	t.Run("issues a token for the created account", func(t *testing.T) {
		req := require.New(t)
		service, users, tokens := newService(t)

		// Given the repository accepts the account and stores a hash,
		// never the plain password
		users.EXPECT().
			Create("amelie@example.com", gomock.Not(testPassword), "Amélie", "Poulain").
			Return(domain.UserID(42), nil)

		// When
		token, err := service.Register(validRequest())

		// Then the token carries the new account id
		req.NoError(err)
		claims, err := tokens.Verify(string(token))
		req.NoError(err)
		req.Equal(domain.UserID(42), claims.UserID)
	})

	t.Run("rejects an invalid request before touching storage", func(t *testing.T) {
		req := require.New(t)
		service, _, _ := newService(t)

		request := validRequest()
		request.Password = "court"

		_, err := service.Register(request)

		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("propagates a taken email", func(t *testing.T) {
		req := require.New(t)
		service, users, _ := newService(t)

		users.EXPECT().
			Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(domain.UserID(0), errors.ErrUserAlreadyExists)

		_, err := service.Register(validRequest())

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestLogin(t *testing.T) {
	t.Run("issues a token for valid credentials", func(t *testing.T) {
		req := require.New(t)
		service, users, tokens := newService(t)

		hash, err := auth.HashPassword(testPassword)
		req.NoError(err)
		users.EXPECT().GetByEmail("amelie@example.com").
			Return(domain.User{ID: 42, Email: "amelie@example.com", PasswordHash: hash}, nil)

		token, err := service.Login("amelie@example.com", testPassword)

		req.NoError(err)
		claims, err := tokens.Verify(string(token))
		req.NoError(err)
		req.Equal(domain.UserID(42), claims.UserID)
	})

	t.Run("hides whether the account exists", func(t *testing.T) {
		req := require.New(t)
		service, users, _ := newService(t)

		hash, err := auth.HashPassword(testPassword)
		req.NoError(err)
		users.EXPECT().GetByEmail("inconnue@example.com").
			Return(domain.User{}, errors.ErrUserNotFound)
		users.EXPECT().GetByEmail("amelie@example.com").
			Return(domain.User{ID: 42, PasswordHash: hash}, nil)

		// Unknown account and wrong password fail identically.
		_, unknownErr := service.Login("inconnue@example.com", testPassword)
		_, wrongErr := service.Login("amelie@example.com", "MauvaisMotDePasse1!")

		req.ErrorIs(unknownErr, errors.ErrInvalidCredentials)
		req.ErrorIs(wrongErr, errors.ErrInvalidCredentials)
	})
}
