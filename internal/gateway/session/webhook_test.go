package session

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/waygate/waygate/internal/gateway/eventbus"
	"github.com/waygate/waygate/pkg/api"
)

type webhookRecorder struct {
	mu     sync.Mutex
	bodies []string
	status int
}

func newWebhookRecorder(status int) (*webhookRecorder, *httptest.Server) {
	rec := &webhookRecorder{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.bodies = append(rec.bodies, string(body))
		rec.mu.Unlock()
		w.WriteHeader(rec.status)
	}))
	return rec, srv
}

func (r *webhookRecorder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies...)
}

func (r *webhookRecorder) waitFor(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.received(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d webhook deliveries, got %d", n, len(r.received()))
	return nil
}

func TestDispatcherDeliversEvents(t *testing.T) {
	rec, srv := newWebhookRecorder(http.StatusOK)
	defer srv.Close()

	bus := eventbus.New()
	defer bus.Shutdown()

	d := NewDispatcher(bus, "s1", srv.URL, 2*time.Second, 16)

	bus.Publish(sessionTopic("s1", TopicWebhook), api.WebhookEvent{
		Type:      api.EventConnected,
		SessionID: "s1",
		Phone:     "5531999990000",
	}, publishTimeout)

	got := rec.waitFor(t, 1)
	assert.Equal(t, "connected", gjson.Get(got[0], "type").String())
	assert.Equal(t, "s1", gjson.Get(got[0], "sessionId").String())
	assert.Equal(t, "5531999990000", gjson.Get(got[0], "phone").String())
	assert.False(t, gjson.Get(got[0], "qrCode").Exists())

	d.Stop()
}

func TestDispatcherMessageWireFormat(t *testing.T) {
	rec, srv := newWebhookRecorder(http.StatusOK)
	defer srv.Close()

	bus := eventbus.New()
	defer bus.Shutdown()

	d := NewDispatcher(bus, "s1", srv.URL, 2*time.Second, 16)

	bus.Publish(sessionTopic("s1", TopicWebhook), api.WebhookEvent{
		Type:      api.EventMessage,
		SessionID: "s1",
		Message: &api.Message{
			ID:          "IN1",
			From:        "5531888880000@s.whatsapp.net",
			Content:     "hello",
			Timestamp:   1735689600,
			MessageType: api.MessageTypeText,
		},
	}, publishTimeout)

	got := rec.waitFor(t, 1)
	ts := gjson.Get(got[0], "message.timestamp")
	// consumers parse epoch seconds, so the timestamp must be a JSON number
	require.Equal(t, gjson.Number, ts.Type, "timestamp must be a JSON number, got %s", ts.Raw)
	assert.Equal(t, int64(1735689600), ts.Int())
	assert.Equal(t, "text", gjson.Get(got[0], "message.messageType").String())
	assert.Equal(t, "IN1", gjson.Get(got[0], "message.id").String())

	d.Stop()
}

func TestDispatcherFailureDoesNotStopDelivery(t *testing.T) {
	rec, srv := newWebhookRecorder(http.StatusInternalServerError)
	defer srv.Close()

	bus := eventbus.New()
	defer bus.Shutdown()

	d := NewDispatcher(bus, "s1", srv.URL, 2*time.Second, 16)

	for i := 0; i < 3; i++ {
		bus.Publish(sessionTopic("s1", TopicWebhook), api.WebhookEvent{
			Type:      api.EventMessage,
			SessionID: "s1",
		}, publishTimeout)
	}

	// rejected deliveries are discarded, later events still go out
	got := rec.waitFor(t, 3)
	require.Len(t, got, 3)

	d.Stop()
}

func TestDispatcherUnreachableReceiver(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()

	d := NewDispatcher(bus, "s1", "http://127.0.0.1:1/webhook", 100*time.Millisecond, 16)

	bus.Publish(sessionTopic("s1", TopicWebhook), api.WebhookEvent{
		Type:      api.EventQRCode,
		SessionID: "s1",
		QRCode:    "data:image/png;base64,xyz",
	}, publishTimeout)

	// failure is swallowed; Stop drains without hanging
	d.Stop()
}

func TestDispatcherIgnoresForeignPayloads(t *testing.T) {
	rec, srv := newWebhookRecorder(http.StatusOK)
	defer srv.Close()

	bus := eventbus.New()
	defer bus.Shutdown()

	d := NewDispatcher(bus, "s1", srv.URL, 2*time.Second, 16)

	bus.Publish(sessionTopic("s1", TopicWebhook), "not an event", publishTimeout)
	bus.Publish(sessionTopic("s1", TopicWebhook), api.WebhookEvent{
		Type:      api.EventConnected,
		SessionID: "s1",
	}, publishTimeout)

	got := rec.waitFor(t, 1)
	assert.Equal(t, "connected", gjson.Get(got[0], "type").String())

	d.Stop()
}
