package expiring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetContainsRemove(t *testing.T) {
	m := New()
	m.Put("a", 1, time.Hour)

	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.True(t, m.Contains("a"))

	m.Remove("a")
	assert.False(t, m.Contains("a"))
}

func TestExpiredEventFiresWithinWindow(t *testing.T) {
	var mu sync.Mutex
	var expiredKey string
	var expiredValue any
	done := make(chan struct{})

	m := New(WithExpiredHandler(func(key string, value any) {
		mu.Lock()
		expiredKey, expiredValue = key, value
		mu.Unlock()
		close(done)
	}))

	start := time.Now()
	m.Put("session-1", "passive-session", 50*time.Millisecond)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expired event never fired")
	}

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "session-1", expiredKey)
	assert.Equal(t, "passive-session", expiredValue)
	assert.False(t, m.Contains("session-1"))
}

func TestRemoveBeforeExpiryPreventsEvent(t *testing.T) {
	fired := make(chan struct{}, 1)
	m := New(WithExpiredHandler(func(key string, value any) {
		fired <- struct{}{}
	}))

	m.Put("a", "v", 50*time.Millisecond)
	m.Remove("a")

	select {
	case <-fired:
		t.Fatal("expired handler fired after explicit removal")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestReplacementReschedulesExpiry(t *testing.T) {
	fired := make(chan string, 4)
	m := New(WithExpiredHandler(func(key string, value any) {
		fired <- value.(string)
	}))

	m.Put("a", "first", 30*time.Millisecond)
	m.Put("a", "second", 200*time.Millisecond)

	select {
	case v := <-fired:
		assert.Equal(t, "second", v)
	case <-time.After(2 * time.Second):
		t.Fatal("expired event never fired after replacement")
	}

	select {
	case v := <-fired:
		t.Fatalf("unexpected second expiry for %q", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMultipleEntriesExpireInDeadlineOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	m := New(WithExpiredHandler(func(key string, value any) {
		mu.Lock()
		order = append(order, key)
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
	}))

	m.Put("slow", "v", 150*time.Millisecond)
	m.Put("fast", "v", 30*time.Millisecond)
	m.Put("medium", "v", 80*time.Millisecond)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all entries expired in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"fast", "medium", "slow"}, order)
}

func TestWorkerExitsWhenQueueDrains(t *testing.T) {
	m := New()
	m.Put("a", "v", 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	m.queueMu.Lock()
	running := m.running
	m.queueMu.Unlock()
	assert.False(t, running)
}
