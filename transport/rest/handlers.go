package rest

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"gmessagerie/auth"
	"gmessagerie/contract"
	"gmessagerie/delivery"
	"gmessagerie/domain"
	"gmessagerie/errors"
	"gmessagerie/services"
)

// maxUploadBytes bounds how much of a media upload is buffered for
// MIME sniffing and validation.
const maxUploadBytes = 32 << 20

type Handlers struct {
	authService services.IAuthService
	users       contract.UserRepository
	delivery    *delivery.Service
	log         *slog.Logger
}

func NewHandlers(authService services.IAuthService, users contract.UserRepository,
	deliverySvc *delivery.Service, log *slog.Logger) *Handlers {
	return &Handlers{
		authService: authService,
		users:       users,
		delivery:    deliverySvc,
		log:         log,
	}
}

type tokenResponse struct {
	Token string `json:"token"`
}

type userResponse struct {
	ID        domain.UserID `json:"id"`
	Email     string        `json:"email"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

type messageResponse struct {
	ID          string             `json:"id"`
	From        domain.UserID      `json:"from"`
	To          domain.UserID      `json:"to"`
	Content     string             `json:"content"`
	MessageType domain.MessageType `json:"message_type"`
	FileRef     string             `json:"file_ref,omitempty"`
	CreatedAt   string             `json:"created_at"`
	Status      domain.Status      `json:"status"`
	DeliveredAt *string            `json:"delivered_at"`
	ReadAt      *string            `json:"read_at"`
}

func toMessageResponse(m domain.Message) messageResponse {
	resp := messageResponse{
		ID:          m.ID.String(),
		From:        m.SenderID,
		To:          m.ReceiverID,
		Content:     m.Content,
		MessageType: m.Type,
		FileRef:     m.FileRef,
		CreatedAt:   m.CreatedAt.Format(timeLayout),
		Status:      m.Status,
	}
	if m.DeliveredAt != nil {
		resp.DeliveredAt = lo.ToPtr(m.DeliveredAt.Format(timeLayout))
	}
	if m.ReadAt != nil {
		resp.ReadAt = lo.ToPtr(m.ReadAt.Format(timeLayout))
	}
	return resp
}

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Register creates an account and immediately issues a token for it.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, err := h.authService.Register(req)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrUserAlreadyExists):
			writeError(w, http.StatusConflict, "email already registered")
		case stderrors.Is(err, errors.ErrValidation), stderrors.Is(err, errors.ErrInvalidPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.Error("registration failed", "error", err)
			writeError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and returns a fresh bearer token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

// ListUsers returns every other account, for the conversation sidebar.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	self := userFromContext(r)
	users, err := h.users.List(self)
	if err != nil {
		h.log.Error("listing users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing users failed")
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(users, func(u domain.User, _ int) userResponse {
		return toUserResponse(u)
	}))
}

// UserDetail returns the public information of one user.
func (h *Handlers) UserDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := h.users.GetByID(domain.UserID(id))
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// History returns the conversation with ?with=<id>, sorted by creation
// time ascending.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	self := userFromContext(r)
	withParam := r.URL.Query().Get("with")
	if withParam == "" {
		writeError(w, http.StatusBadRequest, "missing 'with' query parameter")
		return
	}
	other, err := strconv.ParseInt(withParam, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'with' parameter")
		return
	}

	messages, err := h.delivery.History(self, domain.UserID(other))
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.log.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(messages, func(m domain.Message, _ int) messageResponse {
		return toMessageResponse(m)
	}))
}

type sendMessageRequest struct {
	Receiver    domain.UserID      `json:"receiver"`
	Content     string             `json:"content"`
	MessageType domain.MessageType `json:"message_type"`
	FileRef     string             `json:"file_ref"`
}

// SendMessage is the request/response send path for non-realtime
// clients. It produces exactly the same message_created fan-out as the
// WebSocket path. Media messages arrive as multipart uploads and are
// validated by sniffing the actual bytes, never by trusting the
// declared content type.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	self := userFromContext(r)

	var req sendMessageRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		parsed, err := h.parseMediaUpload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req = parsed
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.delivery.SendMessage(self, req.Receiver, req.Content, req.MessageType, req.FileRef)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "receiver not found")
		case stderrors.Is(err, errors.ErrValidation):
			writeError(w, http.StatusBadRequest, "invalid message")
		default:
			h.log.Error("rest send failed", "error", err)
			writeError(w, http.StatusInternalServerError, "send failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *Handlers) parseMediaUpload(r *http.Request) (sendMessageRequest, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return sendMessageRequest{}, errors.ErrValidation
	}

	receiver, err := strconv.ParseInt(r.FormValue("receiver"), 10, 64)
	if err != nil {
		return sendMessageRequest{}, errors.ErrValidation
	}
	msgType := domain.MessageType(r.FormValue("message_type"))

	file, header, err := r.FormFile("file")
	if err != nil {
		return sendMessageRequest{}, errors.ErrValidation
	}
	defer file.Close()

	head, err := io.ReadAll(io.LimitReader(file, 3072))
	if err != nil {
		return sendMessageRequest{}, errors.ErrValidation
	}
	detected := mimetype.Detect(head)
	if !mediaMatchesType(detected, msgType) {
		h.log.Warn("media upload rejected", "declared", msgType, "detected", detected.String())
		return sendMessageRequest{}, errors.ErrValidation
	}

	return sendMessageRequest{
		Receiver:    domain.UserID(receiver),
		Content:     r.FormValue("content"),
		MessageType: msgType,
		FileRef:     header.Filename,
	}, nil
}

// mediaMatchesType checks that the sniffed MIME family agrees with the
// declared message type.
func mediaMatchesType(m *mimetype.MIME, msgType domain.MessageType) bool {
	switch msgType {
	case domain.TypeAudio:
		return strings.HasPrefix(m.String(), "audio/")
	case domain.TypeVideo:
		return strings.HasPrefix(m.String(), "video/")
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
