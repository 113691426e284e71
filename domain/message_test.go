package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gmessagerie/errors"
)

func TestNewMessage_Validation(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		content string
		msgType MessageType
		fileRef string
		wantErr bool
	}{
		{"text with content", "hi", TypeText, "", false},
		{"empty type defaults to text", "hi", "", "", false},
		{"text without content", "", TypeText, "", true},
		{"audio with file", "", TypeAudio, "voice.ogg", false},
		{"audio without file", "", TypeAudio, "", true},
		{"video with file", "optional caption", TypeVideo, "clip.mp4", false},
		{"unknown type", "hi", MessageType("gif"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			msg, err := NewMessage(1, 2, tt.content, tt.msgType, tt.fileRef, now)
			if tt.wantErr {
				req.ErrorIs(err, errors.ErrValidation)
				return
			}
			req.NoError(err)
			req.Equal(StatusSent, msg.Status)
			req.Equal(now, msg.CreatedAt)
			req.Nil(msg.DeliveredAt)
			req.Nil(msg.ReadAt)
		})
	}
}

func TestMessage_StatusNeverRegresses(t *testing.T) {
	req := require.New(t)
	created := time.Now().UTC()
	msg, err := NewMessage(1, 2, "hi", TypeText, "", created)
	req.NoError(err)

	// sent -> delivered
	deliveredAt := created.Add(time.Second)
	req.NoError(msg.MarkDelivered(deliveredAt))
	req.Equal(StatusDelivered, msg.Status)
	req.Equal(deliveredAt, *msg.DeliveredAt)

	// delivered -> delivered is refused, DeliveredAt untouched
	req.Error(msg.MarkDelivered(deliveredAt.Add(time.Second)))
	req.Equal(deliveredAt, *msg.DeliveredAt)

	// delivered -> read
	readAt := deliveredAt.Add(time.Second)
	req.NoError(msg.MarkRead(readAt))
	req.Equal(StatusRead, msg.Status)
	req.Equal(readAt, *msg.ReadAt)

	// read is terminal: no regression to delivered, no second read
	req.Error(msg.MarkDelivered(readAt.Add(time.Second)))
	req.Equal(StatusRead, msg.Status)
	req.ErrorIs(msg.MarkRead(readAt.Add(time.Second)), errors.ErrAlreadyRead)
	req.Equal(readAt, *msg.ReadAt)

	// created_at <= delivered_at <= read_at
	req.False(msg.DeliveredAt.Before(msg.CreatedAt))
	req.False(msg.ReadAt.Before(*msg.DeliveredAt))
}

func TestMessage_ReadWithoutDelivery(t *testing.T) {
	req := require.New(t)
	msg, err := NewMessage(1, 2, "hi", TypeText, "", time.Now().UTC())
	req.NoError(err)

	// A receiver that was offline at send time acks straight from sent.
	req.NoError(msg.MarkRead(time.Now().UTC()))
	req.Equal(StatusRead, msg.Status)
	req.Nil(msg.DeliveredAt)
}
