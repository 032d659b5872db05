// Package cache memoizes successful delegation results so repeated identical
// spawns within the TTL skip the completion service entirely.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jg-phare/warren/pkg/task"
)

const (
	// DefaultTTL is how long a cached result remains valid.
	DefaultTTL = time.Hour
	// DefaultCapacity bounds the number of retained entries.
	DefaultCapacity = 256
)

type entry struct {
	result   task.Result
	storedAt time.Time
}

// ResultCache maps input fingerprints to previously produced final results.
// Entries are immutable; expiry is enforced at read time and expired entries
// are purged lazily on access.
type ResultCache struct {
	entries *lru.Cache[string, entry]
	ttl     time.Duration
	now     func() time.Time
}

// New creates a ResultCache. Non-positive arguments fall back to defaults.
func New(capacity int, ttl time.Duration) *ResultCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	entries, err := lru.New[string, entry](capacity)
	if err != nil {
		// lru.New only errors on non-positive size, guarded above.
		panic(err)
	}
	return &ResultCache{entries: entries, ttl: ttl, now: time.Now}
}

// Get returns the cached result for a fingerprint, if present and fresh.
func (c *ResultCache) Get(fingerprint string) (task.Result, bool) {
	e, ok := c.entries.Get(fingerprint)
	if !ok {
		return task.Result{}, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		c.entries.Remove(fingerprint)
		return task.Result{}, false
	}
	return e.result, true
}

// Put stores a result. Only successful completions are cacheable; results
// carrying a failure/cancellation reason are ignored.
func (c *ResultCache) Put(fingerprint string, res task.Result) {
	if res.Reason != "" {
		return
	}
	c.entries.Add(fingerprint, entry{result: res, storedAt: c.now()})
}

// Len reports the number of retained entries, including any not yet purged.
func (c *ResultCache) Len() int {
	return c.entries.Len()
}

// Fingerprint derives the deterministic cache key for a delegation: agent
// type, whitespace-normalized prompt, model override, and any flags that
// change the outcome (sorted for stability).
func Fingerprint(agentType, prompt, model string, flags map[string]string) string {
	h := sha256.New()
	h.Write([]byte(agentType))
	h.Write([]byte{0})
	h.Write([]byte(normalizePrompt(prompt)))
	h.Write([]byte{0})
	h.Write([]byte(model))

	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(flags[k]))
	}

	return hex.EncodeToString(h.Sum(nil))
}

func normalizePrompt(p string) string {
	return strings.Join(strings.Fields(p), " ")
}
