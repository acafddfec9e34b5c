package reading

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

type splitKey struct {
	bookName     BookName
	contentHash  string
	wordsPerPage int
}

// SplitCache keeps recent page splits keyed by book name and content hash.
// A changed book hashes differently, so stale entries are never served.
// The zero capacity cache and a nil *SplitCache both disable caching.
type SplitCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[splitKey][]string
	order    []splitKey
}

// NewSplitCache constructs a cache bounded to capacity entries.
func NewSplitCache(capacity int) *SplitCache {
	if capacity < 0 {
		capacity = 0
	}
	return &SplitCache{
		capacity: capacity,
		entries:  make(map[splitKey][]string, capacity),
	}
}

// Pages returns the split of content, computing and remembering it on a miss.
func (c *SplitCache) Pages(bookName BookName, content string, wordsPerPage int) []string {
	if c == nil || c.capacity == 0 {
		return SplitPages(content, wordsPerPage)
	}

	sum := sha256.Sum256([]byte(content))
	key := splitKey{bookName: bookName, contentHash: hex.EncodeToString(sum[:]), wordsPerPage: wordsPerPage}

	c.mu.Lock()
	if pages, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return pages
	}
	c.mu.Unlock()

	pages := SplitPages(content, wordsPerPage)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		for len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = pages
	return pages
}

// Len reports the number of cached splits.
func (c *SplitCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
