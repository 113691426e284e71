package domain

import (
	"encoding/json"

	"github.com/google/uuid"

	"gmessagerie/errors"
)

// Command is an inbound client intent, decoded once at the connection
// boundary and matched exhaustively in the core.
type Command interface {
	isCommand()
}

type SendMessageCommand struct {
	To      UserID
	Content string
}

func (SendMessageCommand) isCommand() {}

type ReadAckCommand struct {
	ID uuid.UUID
}

func (ReadAckCommand) isCommand() {}

// envelope is the raw wire shape of a client event.
type envelope struct {
	Type    string    `json:"type"`
	To      UserID    `json:"to"`
	Content string    `json:"content"`
	ID      uuid.UUID `json:"id"`
}

// DecodeCommand parses a client envelope into a typed command.
// Unrecognized types yield ErrUnknownEventType (ignored by the caller),
// missing required fields yield ErrValidation.
func DecodeCommand(raw []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.ErrValidation
	}
	switch env.Type {
	case "send_message":
		if env.To == 0 || env.Content == "" {
			return nil, errors.ErrValidation
		}
		return SendMessageCommand{To: env.To, Content: env.Content}, nil
	case "read_ack":
		if env.ID == uuid.Nil {
			return nil, errors.ErrValidation
		}
		return ReadAckCommand{ID: env.ID}, nil
	default:
		return nil, errors.ErrUnknownEventType
	}
}
