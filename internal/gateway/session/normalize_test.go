package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
	"github.com/waygate/waygate/pkg/api"
)

func rawMessage(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	doc := "{}"
	var err error
	for path, value := range fields {
		doc, err = sjson.Set(doc, path, value)
		require.NoError(t, err)
	}
	return []byte(doc)
}

func TestNormalizeConversation(t *testing.T) {
	raw := rawMessage(t, map[string]any{
		"key.id":               "MSG1",
		"key.remoteJid":        "5531999990000@s.whatsapp.net",
		"messageTimestamp":     1735689600,
		"message.conversation": "hello there",
	})

	msg := Normalize(raw)
	assert.Equal(t, "MSG1", msg.ID)
	assert.Equal(t, "5531999990000@s.whatsapp.net", msg.From)
	assert.Equal(t, "hello there", msg.Content)
	assert.Equal(t, api.MessageTypeText, msg.MessageType)
	assert.Equal(t, int64(1735689600), msg.Timestamp)
}

func TestNormalizeExtendedText(t *testing.T) {
	raw := rawMessage(t, map[string]any{
		"key.id":                            "MSG2",
		"message.extendedTextMessage.text":  "quoted reply",
		"message.extendedTextMessage.title": "ignored",
	})

	msg := Normalize(raw)
	assert.Equal(t, "quoted reply", msg.Content)
	assert.Equal(t, api.MessageTypeText, msg.MessageType)
}

func TestNormalizeMediaTypes(t *testing.T) {
	tests := []struct {
		path string
		want api.MessageType
	}{
		{"message.imageMessage.url", api.MessageTypeImage},
		{"message.videoMessage.url", api.MessageTypeVideo},
		{"message.audioMessage.url", api.MessageTypeAudio},
		{"message.documentMessage.url", api.MessageTypeDocument},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			raw := rawMessage(t, map[string]any{
				"key.id": "M",
				tt.path:  "https://media.example/blob",
			})
			msg := Normalize(raw)
			assert.Equal(t, tt.want, msg.MessageType)
			assert.Empty(t, msg.Content)
		})
	}
}

func TestNormalizeTextWinsOverMedia(t *testing.T) {
	raw := rawMessage(t, map[string]any{
		"message.conversation":     "caption style text",
		"message.imageMessage.url": "https://media.example/blob",
	})

	msg := Normalize(raw)
	assert.Equal(t, api.MessageTypeText, msg.MessageType)
	assert.Equal(t, "caption style text", msg.Content)
}

func TestNormalizeUnknownShape(t *testing.T) {
	raw := rawMessage(t, map[string]any{
		"key.id":                        "MSG3",
		"message.reactionMessage.text":  "👍",
		"message.reactionMessage.keyId": "MSG1",
	})

	msg := Normalize(raw)
	assert.Equal(t, api.MessageTypeUnknown, msg.MessageType)
	assert.Empty(t, msg.Content)
}

func TestNormalizeMalformedInput(t *testing.T) {
	before := time.Now().Unix()
	msg := Normalize([]byte("not json at all"))

	assert.NotEmpty(t, msg.ID, "missing id gets a generated one")
	assert.Empty(t, msg.From)
	assert.Empty(t, msg.Content)
	assert.Equal(t, api.MessageTypeUnknown, msg.MessageType)
	assert.GreaterOrEqual(t, msg.Timestamp, before)
}

func TestNormalizeMissingTimestamp(t *testing.T) {
	before := time.Now().Unix()
	raw := rawMessage(t, map[string]any{
		"key.id":               "MSG4",
		"message.conversation": "no clock",
	})

	msg := Normalize(raw)
	assert.GreaterOrEqual(t, msg.Timestamp, before)
}

func TestFromSelf(t *testing.T) {
	own := rawMessage(t, map[string]any{
		"key.fromMe":           true,
		"message.conversation": "echo",
	})
	other := rawMessage(t, map[string]any{
		"key.fromMe":           false,
		"message.conversation": "inbound",
	})

	assert.True(t, fromSelf(own))
	assert.False(t, fromSelf(other))
	assert.False(t, fromSelf([]byte("{}")))
}
