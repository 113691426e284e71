package rest_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"gmessagerie/auth"
	"gmessagerie/delivery"
	"gmessagerie/hub"
	"gmessagerie/repositories"
	"gmessagerie/services"
	"gmessagerie/transport/rest"
	"gmessagerie/transport/ws"
)

const testPassword = "MonMotDePasseTr0pSûr!"

// newTestServer wires the full stack over an in-memory store, exactly
// as cmd/server does, and exposes it through httptest.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	options := badger.DefaultOptions("").WithInMemory(true)
	options.Logger = nil
	db, err := badger.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	users, err := repositories.NewUserRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Close() })
	messages := repositories.NewMessageRepository(db, log)

	registry := hub.NewRegistry(log)
	presence := hub.NewPresence()
	deliverySvc := delivery.NewService(messages, users, presence, registry, log)

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	authenticator := auth.NewSessionAuthenticator(tokens, users, log)
	authService := services.NewAuthService(users, tokens)

	wsHandler := ws.NewHandler(authenticator, deliverySvc, registry, presence, 16, log)
	handlers := rest.NewHandlers(authService, users, deliverySvc, log)

	server := httptest.NewServer(rest.NewRouter(handlers, wsHandler, authenticator))
	t.Cleanup(server.Close)
	return server
}

func registerUser(t *testing.T, server *httptest.Server, email, firstName string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":%q,"last_name":"Test"}`,
		email, testPassword, firstName)
	resp, err := http.Post(server.URL+"/api/register", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var payload struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NotEmpty(t, payload.Token)
	return payload.Token
}

func doAuthenticated(t *testing.T, method, url, token string, body io.Reader) *http.Response {
	t.Helper()
	request, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	request.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func TestRegisterEndpoint(t *testing.T) {
	server := newTestServer(t)

	t.Run("creates an account and issues a token", func(t *testing.T) {
		registerUser(t, server, "amelie@example.com", "Amélie")
	})

	t.Run("rejects a duplicate email with 409", func(t *testing.T) {
		req := require.New(t)
		body := fmt.Sprintf(`{"email":"amelie@example.com","password":%q,"first_name":"Double","last_name":"Compte"}`, testPassword)
		resp, err := http.Post(server.URL+"/api/register", "application/json", bytes.NewBufferString(body))
		req.NoError(err)
		defer resp.Body.Close()
		req.Equal(http.StatusConflict, resp.StatusCode)
	})

	t.Run("rejects a weak password with 400", func(t *testing.T) {
		req := require.New(t)
		body := `{"email":"faible@example.com","password":"court","first_name":"Trop","last_name":"Faible"}`
		resp, err := http.Post(server.URL+"/api/register", "application/json", bytes.NewBufferString(body))
		req.NoError(err)
		defer resp.Body.Close()
		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLoginEndpoint(t *testing.T) {
	server := newTestServer(t)
	registerUser(t, server, "amelie@example.com", "Amélie")

	t.Run("returns a token for valid credentials", func(t *testing.T) {
		req := require.New(t)
		body := fmt.Sprintf(`{"email":"amelie@example.com","password":%q}`, testPassword)
		resp, err := http.Post(server.URL+"/api/login", "application/json", bytes.NewBufferString(body))
		req.NoError(err)
		var payload struct {
			Token string `json:"token"`
		}
		decodeBody(t, resp, &payload)
		req.Equal(http.StatusOK, resp.StatusCode)
		req.NotEmpty(payload.Token)
	})

	t.Run("returns 401 for a wrong password", func(t *testing.T) {
		req := require.New(t)
		body := `{"email":"amelie@example.com","password":"MauvaisMotDePasse1!"}`
		resp, err := http.Post(server.URL+"/api/login", "application/json", bytes.NewBufferString(body))
		req.NoError(err)
		defer resp.Body.Close()
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAuthenticatedEndpointsRejectMissingToken(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/users")

	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestListUsersExcludesTheCaller(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	token := registerUser(t, server, "amelie@example.com", "Amélie")
	registerUser(t, server, "nino@example.com", "Nino")

	resp := doAuthenticated(t, http.MethodGet, server.URL+"/api/users", token, nil)
	var users []struct {
		Email string `json:"email"`
	}
	decodeBody(t, resp, &users)

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Len(users, 1)
	req.Equal("nino@example.com", users[0].Email)
}

func TestUserDetail(t *testing.T) {
	server := newTestServer(t)
	token := registerUser(t, server, "amelie@example.com", "Amélie")
	registerUser(t, server, "nino@example.com", "Nino")

	t.Run("returns the requested user", func(t *testing.T) {
		req := require.New(t)
		resp := doAuthenticated(t, http.MethodGet, server.URL+"/api/users/2", token, nil)
		var user struct {
			Email string `json:"email"`
		}
		decodeBody(t, resp, &user)
		req.Equal(http.StatusOK, resp.StatusCode)
		req.Equal("nino@example.com", user.Email)
	})

	t.Run("returns 404 for an unknown id", func(t *testing.T) {
		req := require.New(t)
		resp := doAuthenticated(t, http.MethodGet, server.URL+"/api/users/404", token, nil)
		defer resp.Body.Close()
		req.Equal(http.StatusNotFound, resp.StatusCode)
	})
}

func TestSendMessageAndHistory(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	amelie := registerUser(t, server, "amelie@example.com", "Amélie")
	nino := registerUser(t, server, "nino@example.com", "Nino")

	// Given Amélie sends Nino a message over REST while he is offline
	resp := doAuthenticated(t, http.MethodPost, server.URL+"/api/messages", amelie,
		bytes.NewBufferString(`{"receiver":2,"content":"salut Nino"}`))
	var sent struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeBody(t, resp, &sent)
	req.Equal(http.StatusCreated, resp.StatusCode)
	req.Equal("sent", sent.Status)

	// Then both sides see the same single-message history
	for _, token := range []string{amelie, nino} {
		other := "2"
		if token == nino {
			other = "1"
		}
		resp := doAuthenticated(t, http.MethodGet, server.URL+"/api/messages?with="+other, token, nil)
		var history []struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		}
		decodeBody(t, resp, &history)
		req.Equal(http.StatusOK, resp.StatusCode)
		req.Len(history, 1)
		req.Equal(sent.ID, history[0].ID)
		req.Equal("salut Nino", history[0].Content)
	}
}

func TestSendMessageFailures(t *testing.T) {
	server := newTestServer(t)
	token := registerUser(t, server, "amelie@example.com", "Amélie")

	cases := []struct {
		name string
		body string
		want int
	}{
		{"unknown receiver", `{"receiver":404,"content":"salut"}`, http.StatusNotFound},
		{"empty text content", `{"receiver":1,"content":""}`, http.StatusBadRequest},
		{"invalid JSON", `{`, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := require.New(t)
			resp := doAuthenticated(t, http.MethodPost, server.URL+"/api/messages", token,
				bytes.NewBufferString(c.body))
			defer resp.Body.Close()
			req.Equal(c.want, resp.StatusCode)
		})
	}
}

func TestHistoryFailures(t *testing.T) {
	server := newTestServer(t)
	token := registerUser(t, server, "amelie@example.com", "Amélie")

	t.Run("missing with parameter", func(t *testing.T) {
		req := require.New(t)
		resp := doAuthenticated(t, http.MethodGet, server.URL+"/api/messages", token, nil)
		defer resp.Body.Close()
		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown correspondent", func(t *testing.T) {
		req := require.New(t)
		resp := doAuthenticated(t, http.MethodGet, server.URL+"/api/messages?with=404", token, nil)
		defer resp.Body.Close()
		req.Equal(http.StatusNotFound, resp.StatusCode)
	})
}

// wavHeader is the smallest byte sequence the sniffer recognizes as
// audio/wav.
func wavHeader() []byte {
	return []byte("RIFF\x24\x00\x00\x00WAVEfmt ")
}

func multipartUpload(t *testing.T, receiver, msgType, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("receiver", receiver))
	require.NoError(t, writer.WriteField("message_type", msgType))
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestMediaUpload(t *testing.T) {
	server := newTestServer(t)
	token := registerUser(t, server, "amelie@example.com", "Amélie")
	registerUser(t, server, "nino@example.com", "Nino")

	send := func(t *testing.T, body *bytes.Buffer, contentType string) *http.Response {
		request, err := http.NewRequest(http.MethodPost, server.URL+"/api/messages", body)
		require.NoError(t, err)
		request.Header.Set("Authorization", "Bearer "+token)
		request.Header.Set("Content-Type", contentType)
		resp, err := http.DefaultClient.Do(request)
		require.NoError(t, err)
		return resp
	}

	t.Run("accepts an audio file declared as audio", func(t *testing.T) {
		req := require.New(t)
		body, contentType := multipartUpload(t, "2", "audio", "note.wav", wavHeader())
		resp := send(t, body, contentType)
		var sent struct {
			MessageType string `json:"message_type"`
			FileRef     string `json:"file_ref"`
		}
		decodeBody(t, resp, &sent)
		req.Equal(http.StatusCreated, resp.StatusCode)
		req.Equal("audio", sent.MessageType)
		req.Equal("note.wav", sent.FileRef)
	})

	t.Run("rejects bytes that do not match the declared type", func(t *testing.T) {
		req := require.New(t)
		body, contentType := multipartUpload(t, "2", "audio", "fake.wav", []byte("just plain text"))
		resp := send(t, body, contentType)
		defer resp.Body.Close()
		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}
