// Package event defines the server-to-client events of the realtime
// protocol. Each event marshals directly to its wire shape, with the
// discriminating "type" field set by its constructor.
package event

import (
	"time"

	"github.com/google/uuid"

	"gmessagerie/domain"
)

type Event interface {
	EventType() string
}

// PresenceSnapshot is sent once, right after a successful handshake.
type PresenceSnapshot struct {
	Type          string          `json:"type"`
	OnlineUserIDs []domain.UserID `json:"online_user_ids"`
}

func NewPresenceSnapshot(online []domain.UserID) PresenceSnapshot {
	return PresenceSnapshot{Type: "presence_snapshot", OnlineUserIDs: online}
}

func (e PresenceSnapshot) EventType() string { return e.Type }

// PresenceUpdate announces an online/offline transition to the
// presence group. LastSeen is only set on the offline transition.
type PresenceUpdate struct {
	Type     string        `json:"type"`
	UserID   domain.UserID `json:"user_id"`
	Online   bool          `json:"online"`
	LastSeen *time.Time    `json:"last_seen"`
}

func NewPresenceUpdate(id domain.UserID, online bool, lastSeen *time.Time) PresenceUpdate {
	return PresenceUpdate{Type: "presence_update", UserID: id, Online: online, LastSeen: lastSeen}
}

func (e PresenceUpdate) EventType() string { return e.Type }

// MessageCreated carries the full payload of a freshly persisted message.
type MessageCreated struct {
	Type        string             `json:"type"`
	ID          uuid.UUID          `json:"id"`
	From        domain.UserID      `json:"from"`
	To          domain.UserID      `json:"to"`
	Content     string             `json:"content"`
	MessageType domain.MessageType `json:"message_type"`
	FileRef     string             `json:"file_ref,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	Status      domain.Status      `json:"status"`
}

func NewMessageCreated(m domain.Message) MessageCreated {
	return MessageCreated{
		Type:        "message_created",
		ID:          m.ID,
		From:        m.SenderID,
		To:          m.ReceiverID,
		Content:     m.Content,
		MessageType: m.Type,
		FileRef:     m.FileRef,
		CreatedAt:   m.CreatedAt,
		Status:      m.Status,
	}
}

func (e MessageCreated) EventType() string { return e.Type }

// MessageDelivered is the smaller payload fanned out when a message
// reaches its receiver's process.
type MessageDelivered struct {
	Type        string        `json:"type"`
	ID          uuid.UUID     `json:"id"`
	DeliveredAt time.Time     `json:"delivered_at"`
	Status      domain.Status `json:"status"`
}

func NewMessageDelivered(m domain.Message) MessageDelivered {
	return MessageDelivered{
		Type:        "message_delivered",
		ID:          m.ID,
		DeliveredAt: *m.DeliveredAt,
		Status:      m.Status,
	}
}

func (e MessageDelivered) EventType() string { return e.Type }

type MessageRead struct {
	Type   string        `json:"type"`
	ID     uuid.UUID     `json:"id"`
	ReadAt time.Time     `json:"read_at"`
	Status domain.Status `json:"status"`
}

func NewMessageRead(m domain.Message) MessageRead {
	return MessageRead{
		Type:   "message_read",
		ID:     m.ID,
		ReadAt: *m.ReadAt,
		Status: m.Status,
	}
}

func (e MessageRead) EventType() string { return e.Type }

// Error is returned to the sender of a malformed client event instead
// of dropping it silently.
type Error struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func NewError(reason string) Error {
	return Error{Type: "error", Reason: reason}
}

func (e Error) EventType() string { return e.Type }
