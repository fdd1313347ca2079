package monitor

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/pi-chan/claudeye/internal/classifier"
	"github.com/pi-chan/claudeye/internal/model"
)

// ClassifyCache remembers the last decision per pane, keyed by a hash of
// the captured content. Classification is a pure function of the content,
// so an unchanged pane reuses its previous decision without a TTL.
type ClassifyCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry // keyed by pane ID
}

type cacheEntry struct {
	contentHash string
	decision    classifier.Decision
}

// NewClassifyCache creates an empty cache.
func NewClassifyCache() *ClassifyCache {
	return &ClassifyCache{entries: make(map[string]cacheEntry)}
}

// Lookup returns the cached decision for paneID if content is unchanged.
func (c *ClassifyCache) Lookup(paneID string, content model.Content) (classifier.Decision, bool) {
	hash := hashContent(content)

	c.mu.RLock()
	entry, ok := c.entries[paneID]
	c.mu.RUnlock()

	if !ok || entry.contentHash != hash {
		return classifier.Decision{}, false
	}
	return entry.decision, true
}

// Store saves the decision for paneID and content.
func (c *ClassifyCache) Store(paneID string, content model.Content, d classifier.Decision) {
	hash := hashContent(content)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[paneID] = cacheEntry{contentHash: hash, decision: d}
}

// Invalidate removes the entry for paneID.
func (c *ClassifyCache) Invalidate(paneID string) {
	c.mu.Lock()
	delete(c.entries, paneID)
	c.mu.Unlock()
}

// Retain drops every entry whose pane is not in keep.
func (c *ClassifyCache) Retain(keep map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.entries {
		if !keep[id] {
			delete(c.entries, id)
		}
	}
}

// Len returns the number of cached panes.
func (c *ClassifyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// hashContent returns a hex-encoded SHA256 hash of the content.
func hashContent(content model.Content) string {
	h := sha256.New()
	for _, line := range content {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
