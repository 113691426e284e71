package domain

import (
	"time"

	"github.com/google/uuid"

	"gmessagerie/errors"
)

type MessageType string

const (
	TypeText  MessageType = "text"
	TypeAudio MessageType = "audio"
	TypeVideo MessageType = "video"
)

func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeAudio, TypeVideo:
		return true
	}
	return false
}

// Status is the delivery state of a message.
// It only moves forward: sent -> delivered -> read.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// rank orders statuses so transitions can refuse any regression.
func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	}
	return -1
}

// Message is a persistent entity exchanged between two users.
// It is created once with StatusSent and mutated at most twice
// (delivered transition, read transition), never deleted here.
type Message struct {
	ID          uuid.UUID
	SenderID    UserID
	ReceiverID  UserID
	Content     string
	Type        MessageType
	FileRef     string
	CreatedAt   time.Time
	Status      Status
	DeliveredAt *time.Time
	ReadAt      *time.Time
}

// NewMessage builds a message in its initial state after validating
// the send constraints: text requires content, media requires a file
// reference.
func NewMessage(sender, receiver UserID, content string, msgType MessageType, fileRef string, at time.Time) (Message, error) {
	if msgType == "" {
		msgType = TypeText
	}
	if !msgType.Valid() {
		return Message{}, errors.ErrValidation
	}
	if msgType == TypeText && content == "" {
		return Message{}, errors.ErrValidation
	}
	if msgType != TypeText && fileRef == "" {
		return Message{}, errors.ErrValidation
	}
	return Message{
		ID:         uuid.New(),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		Type:       msgType,
		FileRef:    fileRef,
		CreatedAt:  at,
		Status:     StatusSent,
	}, nil
}

// MarkDelivered advances the message to StatusDelivered.
// Delivered is only reachable from sent: once a message is delivered
// or read, a second delivery attempt is refused rather than regressing
// the state or overwriting DeliveredAt.
func (m *Message) MarkDelivered(at time.Time) error {
	if m.Status.rank() >= StatusDelivered.rank() {
		return errors.ErrValidation
	}
	m.Status = StatusDelivered
	m.DeliveredAt = &at
	return nil
}

// MarkRead advances the message to its terminal StatusRead.
// Reading an already-read message is reported as ErrAlreadyRead so the
// caller can treat the acknowledgment as an idempotent no-op.
func (m *Message) MarkRead(at time.Time) error {
	if m.Status == StatusRead {
		return errors.ErrAlreadyRead
	}
	m.Status = StatusRead
	m.ReadAt = &at
	return nil
}
