//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"

	"gmessagerie/auth"
	"gmessagerie/contract"
	"gmessagerie/errors"
)

type IAuthService interface {
	Register(req auth.RegisterRequest) (Token, error)
	Login(email, password string) (Token, error)
}

type Token string

// AuthService wires account creation and credential issuance together:
// validation, argon2id hashing, persistence and JWT signing.
type AuthService struct {
	users  contract.UserRepository
	tokens *auth.TokenManager
}

func NewAuthService(users contract.UserRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Register(req auth.RegisterRequest) (Token, error) {
	// Validate business rules before any expensive cryptographic work.
	if err := auth.ValidateRegister(req); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}

	// Hashing happens in the service layer so the repository never sees
	// a plain password.
	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.users.Create(req.Email, hashedPassword, req.FirstName, req.LastName)
	if err != nil {
		return "", err // propagates ErrUserAlreadyExists if the email is taken
	}

	token, err := s.tokens.Generate(userID)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
