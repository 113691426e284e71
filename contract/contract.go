//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"time"

	"github.com/google/uuid"

	"gmessagerie/domain"
	"gmessagerie/domain/event"
)

// EventSink is one live client connection from the core's point of view.
// Deliver must never block: a slow or dead client drops its own events
// and must not stall delivery to others.
type EventSink interface {
	Deliver(e event.Event) error
}

// Broadcaster manages group membership and group-wide fan-out.
// A sink may belong to several groups at once (its user group plus the
// shared presence group).
type Broadcaster interface {
	Register(key domain.GroupKey, sink EventSink)
	Unregister(key domain.GroupKey, sink EventSink)
	Publish(key domain.GroupKey, e event.Event)
}

// Presence is the process-wide set of users holding at least one open
// connection. Whether local or backed by a shared broadcast layer, the
// core only talks to this interface.
type Presence interface {
	// MarkOnline reports whether this was the user's first connection.
	MarkOnline(id domain.UserID) bool
	// MarkOffline reports the offline timestamp and whether the user's
	// last connection just closed.
	MarkOffline(id domain.UserID) (time.Time, bool)
	IsOnline(id domain.UserID) bool
	Snapshot() []domain.UserID
}

// MessageRepository is the opaque durable store for messages.
type MessageRepository interface {
	Create(msg domain.Message) error
	Get(id uuid.UUID) (domain.Message, error)
	// Transition atomically loads a message, applies a state change and
	// writes it back. The store serializes transitions per message id so
	// concurrent delivered/read updates cannot interleave.
	Transition(id uuid.UUID, apply func(*domain.Message) error) (domain.Message, error)
	// Conversation returns all messages between two users sorted by
	// creation time ascending.
	Conversation(a, b domain.UserID) ([]domain.Message, error)
}

// UserRepository is the opaque account store.
type UserRepository interface {
	Create(email, passwordHash, firstName, lastName string) (domain.UserID, error)
	GetByEmail(email string) (domain.User, error)
	GetByID(id domain.UserID) (domain.User, error)
	// List returns every account except the given one, for the
	// conversation sidebar.
	List(excluding domain.UserID) ([]domain.User, error)
}
