package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/waygate/waygate/pkg/api"
)

// textPaths are the known text-bearing message shapes, in extraction order.
var textPaths = []string{
	"message.conversation",
	"message.extendedTextMessage.text",
}

// mediaPaths maps message shapes to their classification, checked in fixed
// precedence order after the text shapes.
var mediaPaths = []struct {
	path  string
	mtype api.MessageType
}{
	{"message.imageMessage", api.MessageTypeImage},
	{"message.videoMessage", api.MessageTypeVideo},
	{"message.audioMessage", api.MessageTypeAudio},
	{"message.documentMessage", api.MessageTypeDocument},
}

// Normalize maps a raw protocol message into the stable wire schema. It is
// total: any malformed or empty input yields a message with empty content
// and the unknown type, never an error.
func Normalize(raw []byte) api.Message {
	doc := gjson.ParseBytes(raw)

	msg := api.Message{
		ID:          doc.Get("key.id").String(),
		From:        doc.Get("key.remoteJid").String(),
		Content:     extractContent(doc),
		Timestamp:   extractTimestamp(doc),
		MessageType: classify(doc),
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return msg
}

// extractContent returns the first non-empty text field among the known
// text-bearing shapes, defaulting to the empty string.
func extractContent(doc gjson.Result) string {
	for _, path := range textPaths {
		if v := doc.Get(path); v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// classify determines the message type: text shapes first, then media
// shapes in precedence order, else unknown.
func classify(doc gjson.Result) api.MessageType {
	if doc.Get("message.conversation").String() != "" {
		return api.MessageTypeText
	}
	if doc.Get("message.extendedTextMessage").Exists() {
		return api.MessageTypeText
	}
	for _, m := range mediaPaths {
		if doc.Get(m.path).Exists() {
			return m.mtype
		}
	}
	return api.MessageTypeUnknown
}

// extractTimestamp reads the protocol timestamp (unix seconds), falling
// back to the current time when absent or unparseable.
func extractTimestamp(doc gjson.Result) int64 {
	if ts := doc.Get("messageTimestamp").Int(); ts > 0 {
		return ts
	}
	return time.Now().Unix()
}

// fromSelf reports whether the raw message originated from the session's
// own identity. Such messages are suppressed before normalization.
func fromSelf(raw []byte) bool {
	return gjson.GetBytes(raw, "key.fromMe").Bool()
}
