package ws

import (
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"gmessagerie/auth"
	"gmessagerie/contract"
	"gmessagerie/delivery"
	"gmessagerie/domain"
	"gmessagerie/domain/event"
	"gmessagerie/errors"
)

// Handler upgrades authenticated requests on /ws and runs the
// connection lifecycle: register into the user and presence groups,
// send the presence snapshot, broadcast the online transition, then
// pump events both ways until the socket dies.
type Handler struct {
	authenticator *auth.SessionAuthenticator
	delivery      *delivery.Service
	broadcaster   contract.Broadcaster
	presence      contract.Presence
	upgrader      websocket.Upgrader
	bufferSize    int
	log           *slog.Logger
}

func NewHandler(authenticator *auth.SessionAuthenticator, delivery *delivery.Service,
	broadcaster contract.Broadcaster, presence contract.Presence,
	bufferSize int, log *slog.Logger) *Handler {
	return &Handler{
		authenticator: authenticator,
		delivery:      delivery,
		broadcaster:   broadcaster,
		presence:      presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		bufferSize: bufferSize,
		log:        log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The credential travels as a query parameter; the handshake is
	// rejected before the upgrade so a failed attempt never allocates a
	// connection nor receives any payload.
	userID, err := h.authenticator.Authenticate(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	c := newConnection(userID, conn, h.bufferSize, h.log)

	// Presence is mutated before anything is broadcast, so the snapshot
	// this client receives already contains its own id and nobody can
	// observe the broadcast before the registry change.
	first := h.presence.MarkOnline(userID)
	h.broadcaster.Register(domain.UserGroup(userID), c)
	h.broadcaster.Register(domain.PresenceGroup, c)

	if err := c.Deliver(event.NewPresenceSnapshot(h.presence.Snapshot())); err != nil {
		h.log.Debug("snapshot dropped", "user_id", userID, "error", err)
	}
	if first {
		h.broadcaster.Publish(domain.PresenceGroup, event.NewPresenceUpdate(userID, true, nil))
	}

	h.log.Info("client connected", "user_id", userID)

	go c.writePump()
	go h.readPump(c)
}

func (h *Handler) readPump(c *Connection) {
	defer h.teardown(c)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read failed", "user_id", c.userID, "error", err)
			}
			return
		}
		h.dispatch(c, raw)
	}
}

// dispatch decodes one client envelope and feeds it to the state
// machine. Failures are local to this event: the connection stays open
// and keeps processing whatever comes next.
func (h *Handler) dispatch(c *Connection, raw []byte) {
	cmd, err := domain.DecodeCommand(raw)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrUnknownEventType):
			// Unrecognized types are ignored, per protocol.
			h.log.Debug("ignoring unknown client event", "user_id", c.userID)
		default:
			_ = c.Deliver(event.NewError("malformed event"))
		}
		return
	}

	switch cmd := cmd.(type) {
	case domain.SendMessageCommand:
		if _, err := h.delivery.SendMessage(c.userID, cmd.To, cmd.Content, domain.TypeText, ""); err != nil {
			h.log.Warn("send failed", "user_id", c.userID, "to", cmd.To, "error", err)
			_ = c.Deliver(event.NewError("send failed"))
		}
	case domain.ReadAckCommand:
		if err := h.delivery.AcknowledgeRead(c.userID, cmd.ID); err != nil {
			// Re-acknowledging, unknown ids and foreign messages are
			// deliberate no-ops; they are logged rather than surfaced so a
			// stray ack can never kill the connection.
			h.log.Debug("read ack ignored", "user_id", c.userID, "message_id", cmd.ID, "error", err)
		}
	}
}

func (h *Handler) teardown(c *Connection) {
	// Unregister first: the offline notice must never be delivered to a
	// group this connection still belongs to.
	h.broadcaster.Unregister(domain.UserGroup(c.userID), c)
	h.broadcaster.Unregister(domain.PresenceGroup, c)

	if lastSeen, wentOffline := h.presence.MarkOffline(c.userID); wentOffline {
		h.broadcaster.Publish(domain.PresenceGroup, event.NewPresenceUpdate(c.userID, false, &lastSeen))
	}

	c.close()
	h.log.Info("client disconnected", "user_id", c.userID)
}
