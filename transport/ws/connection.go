// Package ws is the WebSocket transport of the realtime core: one
// authenticated connection per client device, with a read pump feeding
// the delivery state machine and a write pump draining fan-out events.
package ws

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"gmessagerie/domain"
	"gmessagerie/domain/event"
	"gmessagerie/errors"
)

// Connection is one live bidirectional channel from one authenticated
// user. It implements contract.EventSink: events published to a group
// this connection belongs to land in its buffered send channel and are
// written out by the write pump.
type Connection struct {
	userID domain.UserID
	conn   *websocket.Conn
	send   chan event.Event
	done   chan struct{}
	once   sync.Once
	log    *slog.Logger
}

func newConnection(userID domain.UserID, conn *websocket.Conn, bufferSize int, log *slog.Logger) *Connection {
	return &Connection{
		userID: userID,
		conn:   conn,
		send:   make(chan event.Event, bufferSize),
		done:   make(chan struct{}),
		log:    log,
	}
}

// Deliver enqueues an event for the write pump without ever blocking.
// A connection that stopped draining its buffer loses its own events;
// it must not stall fan-out to anyone else.
func (c *Connection) Deliver(e event.Event) error {
	select {
	case <-c.done:
		return errors.ErrDeliveryDropped
	default:
	}
	select {
	case c.send <- e:
		return nil
	default:
		return errors.ErrDeliveryDropped
	}
}

// close stops the write pump and tears down the underlying socket.
// Safe to call more than once.
func (c *Connection) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Connection) writePump() {
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case e := <-c.send:
			if err := c.conn.WriteJSON(e); err != nil {
				c.log.Debug("outbound write failed", "user_id", c.userID, "error", err)
				return
			}
		}
	}
}
