package session

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/waygate/waygate/internal/gateway/config"
	"github.com/waygate/waygate/internal/gateway/credstore"
	"github.com/waygate/waygate/internal/gateway/protocol"
	"github.com/waygate/waygate/internal/gateway/qrcode"
)

func setupAPI(t *testing.T) (*chi.Mux, *protocol.FakeDialer) {
	t.Helper()
	config.TestInit(t)

	dialer := &protocol.FakeDialer{}
	store, err := credstore.NewFileStore(t.TempDir(), "")
	require.NoError(t, err)

	Init(dialer, store, &qrcode.StaticEncoder{})
	t.Cleanup(func() {
		ActiveManager().Shutdown()
		activeManager = nil
		store.Close()
	})

	r := chi.NewRouter()
	Router(r)
	return r, dialer
}

func doRequest(t *testing.T, r *chi.Mux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	r, dialer := setupAPI(t)

	// create with no webhook
	rr := doRequest(t, r, http.MethodPost, "/create-session", `{"sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, gjson.Get(rr.Body.String(), "success").Bool())
	assert.Equal(t, "s1", gjson.Get(rr.Body.String(), "sessionId").String())

	rr = doRequest(t, r, http.MethodGet, "/status/s1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, string(StatusConnecting), gjson.Get(rr.Body.String(), "status").String())

	// pairing event makes the QR code available
	dialer.LastClient().EmitPairing("pair-token")
	rr = doRequest(t, r, http.MethodGet, "/qr-code/s1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, gjson.Get(rr.Body.String(), "qrCode").String())

	// open event connects the session and retires the QR code
	dialer.LastClient().EmitOpen("5531999990000")
	rr = doRequest(t, r, http.MethodGet, "/status/s1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, string(StatusConnected), gjson.Get(rr.Body.String(), "status").String())
	assert.Equal(t, "5531999990000", gjson.Get(rr.Body.String(), "phone").String())

	rr = doRequest(t, r, http.MethodGet, "/qr-code/s1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// send a message through the connected session
	rr = doRequest(t, r, http.MethodPost, "/send-message",
		`{"sessionId":"s1","to":"5531888880000","message":"hello"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, gjson.Get(rr.Body.String(), "success").Bool())
	assert.NotEmpty(t, gjson.Get(rr.Body.String(), "messageId").String())

	sent := dialer.LastClient().Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "hello", sent[0].Text)

	// delete tears the session down
	rr = doRequest(t, r, http.MethodDelete, "/session/s1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, gjson.Get(rr.Body.String(), "success").Bool())

	rr = doRequest(t, r, http.MethodGet, "/status/s1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateSessionValidation(t *testing.T) {
	r, _ := setupAPI(t)

	rr := doRequest(t, r, http.MethodPost, "/create-session", `{"webhookUrl":"http://hook.example"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "missing sessionId")

	rr = doRequest(t, r, http.MethodPost, "/create-session", `{"sessionId":"s1","webhookUrl":"::nonsense"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "malformed webhook url")

	rr = doRequest(t, r, http.MethodPost, "/create-session", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "unparseable body")
}

func TestCreateSessionDuplicate(t *testing.T) {
	r, _ := setupAPI(t)

	rr := doRequest(t, r, http.MethodPost, "/create-session", `{"sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, r, http.MethodPost, "/create-session", `{"sessionId":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, gjson.Get(rr.Body.String(), "error").String(), "already exists")
}

func TestSendMessageErrors(t *testing.T) {
	r, dialer := setupAPI(t)

	rr := doRequest(t, r, http.MethodPost, "/create-session", `{"sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	// session exists but is not connected
	rr = doRequest(t, r, http.MethodPost, "/send-message",
		`{"sessionId":"s1","to":"5531888880000","message":"too early"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// unknown session
	rr = doRequest(t, r, http.MethodPost, "/send-message",
		`{"sessionId":"ghost","to":"5531888880000","message":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	dialer.LastClient().EmitOpen("5531999990000")

	// only text is supported
	rr = doRequest(t, r, http.MethodPost, "/send-message",
		`{"sessionId":"s1","to":"5531888880000","message":"x","messageType":"image"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// missing required fields
	rr = doRequest(t, r, http.MethodPost, "/send-message", `{"sessionId":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusUnknownSession(t *testing.T) {
	r, _ := setupAPI(t)

	rr := doRequest(t, r, http.MethodGet, "/status/ghost", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteSessionIdempotent(t *testing.T) {
	r, _ := setupAPI(t)

	rr := doRequest(t, r, http.MethodDelete, "/session/ghost", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, gjson.Get(rr.Body.String(), "success").Bool())
}

func TestListSessions(t *testing.T) {
	r, _ := setupAPI(t)

	rr := doRequest(t, r, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(0), gjson.Get(rr.Body.String(), "sessions.#").Int())

	doRequest(t, r, http.MethodPost, "/create-session", `{"sessionId":"s1"}`)
	doRequest(t, r, http.MethodPost, "/create-session", `{"sessionId":"s2"}`)

	rr = doRequest(t, r, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(2), gjson.Get(rr.Body.String(), "sessions.#").Int())
}
