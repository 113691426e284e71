package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"gmessagerie/domain"
)

// MessageRepository persists messages in BadgerDB.
//
// Two key families are used:
//   - "msg:{uuid}" holds the message row itself.
//   - "conv:{lo}:{hi}:{timestamp_padded}:{uuid}" is a conversation index
//     whose value is just the message id. The 19-digit zero padding makes
//     lexicographic iteration chronological, and the trailing UUID breaks
//     ties when two messages land on the same nanosecond.
//
// {lo}:{hi} is the ordered pair of participant ids, so both directions of
// a conversation share one index prefix.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger

	// Serializes read-modify-write transitions so concurrent delivered
	// and read updates for one message cannot interleave.
	mu sync.Mutex
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// diskMessage is the stored shape of a message. Kept separate from the
// domain struct so the storage schema does not silently drift with it.
type diskMessage struct {
	ID          uuid.UUID          `json:"id"`
	SenderID    domain.UserID      `json:"sender_id"`
	ReceiverID  domain.UserID      `json:"receiver_id"`
	Content     string             `json:"content"`
	Type        domain.MessageType `json:"message_type"`
	FileRef     string             `json:"file_ref,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	Status      domain.Status      `json:"status"`
	DeliveredAt *time.Time         `json:"delivered_at"`
	ReadAt      *time.Time         `json:"read_at"`
}

func messageKey(id uuid.UUID) []byte {
	return []byte("msg:" + id.String())
}

func conversationPrefix(a, b domain.UserID) []byte {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return []byte(fmt.Sprintf("conv:%d:%d:", lo, hi))
}

func conversationKey(msg domain.Message) []byte {
	return append(conversationPrefix(msg.SenderID, msg.ReceiverID),
		[]byte(fmt.Sprintf("%019d:%s", msg.CreatedAt.UnixNano(), msg.ID))...)
}

// Create persists a new message row and its conversation index entry in
// one transaction.
func (r *MessageRepository) Create(msg domain.Message) error {
	data, err := json.Marshal(fromDomain(msg))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(msg.ID), data); err != nil {
			return err
		}
		return txn.Set(conversationKey(msg), []byte(msg.ID.String()))
	})
}

func (r *MessageRepository) Get(id uuid.UUID) (domain.Message, error) {
	var msg domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		found, err := getMessage(txn, messageKey(id))
		if err != nil {
			return err
		}
		msg = found
		return nil
	})
	return msg, err
}

// Transition atomically loads a message, applies the state change and
// writes the row back. Status transitions never move the message in the
// conversation index, so only the row itself is rewritten.
func (r *MessageRepository) Transition(id uuid.UUID, apply func(*domain.Message) error) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var msg domain.Message
	err := r.db.Update(func(txn *badger.Txn) error {
		found, err := getMessage(txn, messageKey(id))
		if err != nil {
			return err
		}
		if err := apply(&found); err != nil {
			return err
		}
		data, err := json.Marshal(fromDomain(found))
		if err != nil {
			return err
		}
		if err := txn.Set(messageKey(id), data); err != nil {
			return err
		}
		msg = found
		return nil
	})
	return msg, err
}

// Conversation returns every message exchanged between two users,
// sorted by creation time ascending thanks to the padded index keys.
func (r *MessageRepository) Conversation(a, b domain.UserID) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := conversationPrefix(a, b)
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rawID []byte
			if err := it.Item().Value(func(v []byte) error {
				rawID = append([]byte(nil), v...)
				return nil
			}); err != nil {
				return err
			}
			id, err := uuid.Parse(string(rawID))
			if err != nil {
				return err
			}
			msg, err := getMessage(txn, messageKey(id))
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	return messages, err
}

func getMessage(txn *badger.Txn, key []byte) (domain.Message, error) {
	item, err := txn.Get(key)
	if err != nil {
		return domain.Message{}, err
	}
	var disk diskMessage
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &disk)
	}); err != nil {
		return domain.Message{}, err
	}
	return toDomain(disk), nil
}

func fromDomain(msg domain.Message) diskMessage {
	return diskMessage{
		ID:          msg.ID,
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
		Content:     msg.Content,
		Type:        msg.Type,
		FileRef:     msg.FileRef,
		CreatedAt:   msg.CreatedAt,
		Status:      msg.Status,
		DeliveredAt: msg.DeliveredAt,
		ReadAt:      msg.ReadAt,
	}
}

func toDomain(disk diskMessage) domain.Message {
	return domain.Message{
		ID:          disk.ID,
		SenderID:    disk.SenderID,
		ReceiverID:  disk.ReceiverID,
		Content:     disk.Content,
		Type:        disk.Type,
		FileRef:     disk.FileRef,
		CreatedAt:   disk.CreatedAt,
		Status:      disk.Status,
		DeliveredAt: disk.DeliveredAt,
		ReadAt:      disk.ReadAt,
	}
}
