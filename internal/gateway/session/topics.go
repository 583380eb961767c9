package session

import (
	"fmt"
	"time"
)

const (
	// TopicWebhook is the per-session event topic carrying webhook events
	// from the connection manager to the dispatcher.
	TopicWebhook = "webhook"

	// publishTimeout bounds how long a publish may wait on a full
	// subscriber buffer before the event is dropped.
	publishTimeout = 100 * time.Millisecond
)

// sessionTopic generates the topic name for a session and event class.
func sessionTopic(sessionID string, topic string) string {
	return fmt.Sprintf("session.%s.%s", sessionID, topic)
}

// allSessionTopics generates a pattern matching every topic of a session.
func allSessionTopics(sessionID string) string {
	return fmt.Sprintf("session.%s.*", sessionID)
}
