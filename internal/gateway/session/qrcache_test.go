package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRCachePutGetClear(t *testing.T) {
	c := NewQRCache()

	_, ok := c.Get("s1")
	assert.False(t, ok)

	c.Put("s1", "data:image/png;base64,first")
	got, ok := c.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,first", got)

	// repeated pairing events overwrite
	c.Put("s1", "data:image/png;base64,second")
	got, _ = c.Get("s1")
	assert.Equal(t, "data:image/png;base64,second", got)

	c.Clear("s1")
	_, ok = c.Get("s1")
	assert.False(t, ok)

	// clearing an absent session is fine
	c.Clear("s1")
}
