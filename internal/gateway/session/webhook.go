package session

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/waygate/waygate/internal/gateway/eventbus"
	"github.com/waygate/waygate/pkg/api"

	jsoniter "github.com/json-iterator/go"
)

var webhookJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Dispatcher delivers webhook events for a single session. It consumes
// events from the bus and posts them to the session's webhook URL. Delivery
// is best effort: failures are logged and the event is discarded.
type Dispatcher struct {
	sessionID  string
	webhookURL string
	client     *http.Client
	events     <-chan eventbus.Event
	unsub      func()
	done       chan struct{}
}

// NewDispatcher subscribes to the session's webhook topic and starts a
// delivery goroutine. Call Stop to unsubscribe and wait for drain.
func NewDispatcher(bus *eventbus.EventBus, sessionID, webhookURL string, timeout time.Duration, bufferSize int) *Dispatcher {
	events, unsub := bus.Subscribe(sessionTopic(sessionID, TopicWebhook), bufferSize)
	d := &Dispatcher{
		sessionID:  sessionID,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		events:     events,
		unsub:      unsub,
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

// Stop unsubscribes from the bus and waits for the delivery goroutine to
// exit. Events still buffered at stop time are delivered first.
func (d *Dispatcher) Stop() {
	d.unsub()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.events {
		event, ok := ev.Data.(api.WebhookEvent)
		if !ok {
			log.Warn().Str("session_id", d.sessionID).Str("topic", ev.Topic).Msg("dropping event with unexpected payload type")
			continue
		}
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event api.WebhookEvent) {
	body, err := webhookJSON.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("session_id", d.sessionID).Msg("failed to marshal webhook event")
		return
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Str("session_id", d.sessionID).Msg("failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	rsp, err := d.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("session_id", d.sessionID).Str("event", string(event.Type)).Msg("webhook delivery failed")
		return
	}
	defer rsp.Body.Close()

	if rsp.StatusCode >= 300 {
		log.Warn().Int("status", rsp.StatusCode).Str("session_id", d.sessionID).Str("event", string(event.Type)).Msg("webhook rejected by receiver")
		return
	}
	log.Debug().Str("session_id", d.sessionID).Str("event", string(event.Type)).Msg("webhook delivered")
}
