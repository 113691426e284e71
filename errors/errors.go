package errors

import "fmt"

var (
	// Authentication / account management
	ErrAuthFailure        = fmt.Errorf("authentication failure")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	// Realtime protocol
	ErrValidation       = fmt.Errorf("malformed client event")
	ErrUnknownEventType = fmt.Errorf("unknown event type")
	ErrUserNotFound     = fmt.Errorf("user not found")
	ErrMessageNotFound  = fmt.Errorf("message not found")
	ErrNotReceiver      = fmt.Errorf("acknowledger is not the message receiver")
	ErrAlreadyRead      = fmt.Errorf("message already read")

	// Infrastructure
	ErrPersistence     = fmt.Errorf("persistence failure")
	ErrDeliveryDropped = fmt.Errorf("event dropped, connection not draining")
)
