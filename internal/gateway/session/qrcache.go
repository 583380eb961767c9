package session

import (
	"sync"
)

// QRCache holds the most recent encoded pairing artifact per session. A
// single connecting phase may emit several pairing tokens before one is
// scanned; each overwrites the previous. Artifacts are cleared as soon as
// the session connects or is removed.
type QRCache struct {
	mu        sync.Mutex
	artifacts map[string]string
}

// NewQRCache creates an empty cache.
func NewQRCache() *QRCache {
	return &QRCache{
		artifacts: make(map[string]string),
	}
}

// Put stores the artifact for a session, replacing any previous one.
func (c *QRCache) Put(sessionID string, artifact string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts[sessionID] = artifact
}

// Get returns the cached artifact for a session.
func (c *QRCache) Get(sessionID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	artifact, ok := c.artifacts[sessionID]
	return artifact, ok
}

// Clear removes the artifact for a session. Clearing an absent session is
// a no-op.
func (c *QRCache) Clear(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.artifacts, sessionID)
}
