// Package delivery implements the message delivery state machine:
// a message is created as sent, opportunistically advanced to delivered
// while its receiver is online, and advanced to read on the receiver's
// acknowledgment. Transitions never run backwards.
package delivery

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gmessagerie/contract"
	"gmessagerie/domain"
	"gmessagerie/domain/event"
	"gmessagerie/errors"
)

type Service struct {
	messages    contract.MessageRepository
	users       contract.UserRepository
	presence    contract.Presence
	broadcaster contract.Broadcaster
	log         *slog.Logger
}

func NewService(messages contract.MessageRepository, users contract.UserRepository,
	presence contract.Presence, broadcaster contract.Broadcaster, log *slog.Logger) *Service {
	return &Service{
		messages:    messages,
		users:       users,
		presence:    presence,
		broadcaster: broadcaster,
		log:         log,
	}
}

// SendMessage persists a new message and fans it out to both parties.
// If the receiver is online right now, the message is immediately
// advanced to delivered and the smaller delivered payload is fanned out
// after the created one. The delivered flag is optimistic: it means the
// receiver held an open connection at send time, not that the payload
// reached their screen.
func (s *Service) SendMessage(sender, receiver domain.UserID, content string,
	msgType domain.MessageType, fileRef string) (domain.Message, error) {
	if _, err := s.users.GetByID(sender); err != nil {
		return domain.Message{}, errors.ErrUserNotFound
	}
	if _, err := s.users.GetByID(receiver); err != nil {
		return domain.Message{}, errors.ErrUserNotFound
	}

	msg, err := domain.NewMessage(sender, receiver, content, msgType, fileRef, time.Now().UTC())
	if err != nil {
		return domain.Message{}, err
	}

	// No event leaves this method unless the row exists: a persistence
	// failure means the message was never sent, with no partial fan-out.
	if err := s.messages.Create(msg); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	created := event.NewMessageCreated(msg)
	s.broadcaster.Publish(domain.UserGroup(msg.SenderID), created)
	s.broadcaster.Publish(domain.UserGroup(msg.ReceiverID), created)

	if s.presence.IsOnline(msg.ReceiverID) {
		delivered, err := s.messages.Transition(msg.ID, func(m *domain.Message) error {
			return m.MarkDelivered(time.Now().UTC())
		})
		if err != nil {
			// The message exists and was announced; only the delivered
			// transition is lost. Surfaced to the log, not to the sender.
			s.log.Error("delivered transition failed", "message_id", msg.ID, "error", err)
			return msg, nil
		}
		deliveredEvt := event.NewMessageDelivered(delivered)
		s.broadcaster.Publish(domain.UserGroup(delivered.SenderID), deliveredEvt)
		s.broadcaster.Publish(domain.UserGroup(delivered.ReceiverID), deliveredEvt)
		return delivered, nil
	}

	return msg, nil
}

// AcknowledgeRead moves a message to its terminal read state on behalf
// of its receiver and fans out the read receipt to both parties.
// A second acknowledgment for the same message is a silent no-op, as is
// an acknowledgment from anyone but the receiver; neither produces an
// event but both are reported to the caller as typed errors so they can
// be logged instead of masked.
func (s *Service) AcknowledgeRead(ackSender domain.UserID, id uuid.UUID) error {
	current, err := s.messages.Get(id)
	if err != nil {
		return errors.ErrMessageNotFound
	}
	if current.ReceiverID != ackSender {
		return errors.ErrNotReceiver
	}

	read, err := s.messages.Transition(id, func(m *domain.Message) error {
		if m.ReceiverID != ackSender {
			return errors.ErrNotReceiver
		}
		return m.MarkRead(time.Now().UTC())
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrAlreadyRead) {
			return errors.ErrAlreadyRead
		}
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	readEvt := event.NewMessageRead(read)
	s.broadcaster.Publish(domain.UserGroup(read.SenderID), readEvt)
	s.broadcaster.Publish(domain.UserGroup(read.ReceiverID), readEvt)
	return nil
}

// History returns the conversation between two users sorted by creation
// time ascending, for the REST history endpoint.
func (s *Service) History(self, other domain.UserID) ([]domain.Message, error) {
	if _, err := s.users.GetByID(other); err != nil {
		return nil, errors.ErrUserNotFound
	}
	msgs, err := s.messages.Conversation(self, other)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return msgs, nil
}
