// Package api defines the wire types exchanged with consumers of the
// gateway: webhook event bodies delivered to per-session webhook URLs and
// the normalized message schema embedded in message events.
package api

// EventType identifies the kind of webhook event.
type EventType string

const (
	// EventQRCode is emitted when a new pairing artifact is available.
	EventQRCode EventType = "qr_code"

	// EventConnected is emitted when a session reaches the connected state.
	EventConnected EventType = "connected"

	// EventMessage is emitted for each inbound message on a session.
	EventMessage EventType = "message"
)

// MessageType classifies the payload of an inbound message.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeDocument MessageType = "document"
	MessageTypeUnknown  MessageType = "unknown"
)

// Message is the normalized form of a raw protocol message. Timestamp is
// unix seconds, matching the protocol's own clock representation, so it
// crosses the webhook wire as a JSON number.
type Message struct {
	ID          string      `json:"id"`
	From        string      `json:"from"`
	Content     string      `json:"content"`
	Timestamp   int64       `json:"timestamp"`
	MessageType MessageType `json:"messageType"`
}

// WebhookEvent is a single notification posted to a session's webhook URL.
// QRCode is set for qr_code events, Phone for connected events, and Message
// for message events; the other fields are omitted.
type WebhookEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	QRCode    string    `json:"qrCode,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Message   *Message  `json:"message,omitempty"`
}
