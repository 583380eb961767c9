package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateAndSnapshot(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Create("s1", "http://hook.example"))

	snap, err := r.Snapshot("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", snap.SessionID)
	assert.Equal(t, StatusConnecting, snap.Status)
	assert.Empty(t, snap.Phone)
	assert.False(t, snap.LastSeen.IsZero())

	url, ok := r.WebhookURL("s1")
	require.True(t, ok)
	assert.Equal(t, "http://hook.example", url)
}

func TestRegistryCreateDuplicate(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Create("s1", ""))
	err := r.Create("s1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExists)
}

func TestRegistrySnapshotUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Snapshot("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Create("s1", ""))
	r.Remove("s1")
	_, err := r.Snapshot("s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// removing again is a no-op
	r.Remove("s1")
}

func TestRegistryRemoveCancelsReconnect(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create("s1", ""))

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, r.setReconnectCancel("s1", cancel))

	r.Remove("s1")
	select {
	case <-ctx.Done():
	default:
		t.Fatal("reconnect context not cancelled on remove")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()

	assert.Empty(t, r.List())

	require.NoError(t, r.Create("s1", ""))
	require.NoError(t, r.Create("s2", ""))

	snaps := r.List()
	require.Len(t, snaps, 2)
	ids := []string{snaps[0].SessionID, snaps[1].SessionID}
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)
}

func TestRegistryGenerationGuard(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create("s1", ""))

	gen1, ok := r.claimDial("s1")
	require.True(t, ok)

	// a second claim supersedes the first
	gen2, ok := r.claimDial("s1")
	require.True(t, ok)
	assert.Greater(t, gen2, gen1)

	// updates carrying the stale generation are rejected
	assert.False(t, r.update("s1", gen1, func(s *Session) {
		s.Status = StatusConnected
	}))
	assert.True(t, r.update("s1", gen2, func(s *Session) {
		s.Status = StatusConnected
	}))

	snap, err := r.Snapshot("s1")
	require.NoError(t, err)
	assert.Equal(t, StatusConnected, snap.Status)
}

func TestRegistryAttachClientStale(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create("s1", ""))

	gen1, _ := r.claimDial("s1")
	gen2, _ := r.claimDial("s1")

	assert.False(t, r.attachClient("s1", gen1, nil))
	assert.True(t, r.attachClient("s1", gen2, nil))
	assert.False(t, r.attachClient("missing", gen2, nil))
}

func TestRegistryReconnectEligible(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create("s1", ""))

	// connecting sessions are not eligible
	assert.False(t, r.reconnectEligible("s1"))

	r.update("s1", 0, func(s *Session) {
		s.Status = StatusDisconnected
	})
	assert.True(t, r.reconnectEligible("s1"))

	r.Remove("s1")
	assert.False(t, r.reconnectEligible("s1"))
}
