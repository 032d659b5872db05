package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jg-phare/warren/pkg/task"
)

func TestGetPut(t *testing.T) {
	c := New(10, time.Hour)
	fp := Fingerprint("explore", "find the config loader", "", nil)

	_, ok := c.Get(fp)
	assert.False(t, ok)

	c.Put(fp, task.Result{Text: "it lives in pkg/config", Turns: 3})

	res, ok := c.Get(fp)
	require.True(t, ok)
	assert.Equal(t, "it lives in pkg/config", res.Text)
	assert.Equal(t, 3, res.Turns)
}

func TestExpiryEnforcedAtRead(t *testing.T) {
	c := New(10, time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }

	fp := Fingerprint("explore", "prompt", "", nil)
	c.Put(fp, task.Result{Text: "fresh"})

	// Just inside the TTL.
	now = now.Add(time.Hour - time.Second)
	_, ok := c.Get(fp)
	assert.True(t, ok)

	// At the TTL boundary the entry is stale and lazily purged.
	now = now.Add(time.Second)
	_, ok = c.Get(fp)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestFailedResultsNotCached(t *testing.T) {
	c := New(10, time.Hour)
	fp := Fingerprint("explore", "prompt", "", nil)

	c.Put(fp, task.Result{Text: "partial", Reason: "cancelled by request"})

	_, ok := c.Get(fp)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCapacityEviction(t *testing.T) {
	c := New(2, time.Hour)
	for i := 0; i < 3; i++ {
		c.Put(Fingerprint("explore", fmt.Sprintf("prompt %d", i), "", nil), task.Result{Text: "x"})
	}
	assert.Equal(t, 2, c.Len())

	// The oldest entry was evicted.
	_, ok := c.Get(Fingerprint("explore", "prompt 0", "", nil))
	assert.False(t, ok)
	_, ok = c.Get(Fingerprint("explore", "prompt 2", "", nil))
	assert.True(t, ok)
}

func TestFingerprint(t *testing.T) {
	base := Fingerprint("explore", "find the config loader", "claude-haiku", nil)

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, base, Fingerprint("explore", "find the config loader", "claude-haiku", nil))
	})

	t.Run("whitespace normalized", func(t *testing.T) {
		assert.Equal(t, base, Fingerprint("explore", "  find   the\nconfig\t loader ", "claude-haiku", nil))
	})

	t.Run("inputs distinguish", func(t *testing.T) {
		assert.NotEqual(t, base, Fingerprint("plan", "find the config loader", "claude-haiku", nil))
		assert.NotEqual(t, base, Fingerprint("explore", "find the config loader", "claude-opus", nil))
		assert.NotEqual(t, base, Fingerprint("explore", "find the cache loader", "claude-haiku", nil))
	})

	t.Run("flag order irrelevant", func(t *testing.T) {
		a := Fingerprint("explore", "p", "", map[string]string{"a": "1", "b": "2"})
		b := Fingerprint("explore", "p", "", map[string]string{"b": "2", "a": "1"})
		assert.Equal(t, a, b)
		assert.NotEqual(t, a, Fingerprint("explore", "p", "", map[string]string{"a": "1", "b": "3"}))
	})
}
