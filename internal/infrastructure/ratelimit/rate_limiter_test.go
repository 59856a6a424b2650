package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhaustion(t *testing.T) {
	bucket := NewTokenBucket(3, 1, time.Hour)

	for i := 0; i < 3; i++ {
		allowed, wait := bucket.Allow()
		assert.True(t, allowed)
		assert.Zero(t, wait)
	}

	allowed, wait := bucket.Allow()
	assert.False(t, allowed)
	assert.Greater(t, wait, time.Duration(0))
}

func TestTokenBucketRefill(t *testing.T) {
	bucket := NewTokenBucket(1, 1, 10*time.Millisecond)

	allowed, _ := bucket.Allow()
	assert.True(t, allowed)

	allowed, _ = bucket.Allow()
	assert.False(t, allowed)

	time.Sleep(15 * time.Millisecond)

	allowed, _ = bucket.Allow()
	assert.True(t, allowed)
}

func TestRateLimiterSendMessageBudget(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 10; i++ {
		allowed, _ := rl.Allow("rec_1", "send_message")
		assert.True(t, allowed)
	}

	allowed, wait := rl.Allow("rec_1", "send_message")
	assert.False(t, allowed)
	assert.Greater(t, wait, time.Duration(0))
}

func TestRateLimiterActorsIsolated(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 5; i++ {
		allowed, _ := rl.Allow("rec_1", "start_conversation")
		assert.True(t, allowed)
	}
	allowed, _ := rl.Allow("rec_1", "start_conversation")
	assert.False(t, allowed)

	allowed, _ = rl.Allow("rec_2", "start_conversation")
	assert.True(t, allowed)
}

func TestRateLimiterActionsIsolated(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 5; i++ {
		rl.Allow("rec_1", "start_conversation")
	}
	allowed, _ := rl.Allow("rec_1", "start_conversation")
	assert.False(t, allowed)

	allowed, _ = rl.Allow("rec_1", "send_message")
	assert.True(t, allowed)
}

func TestCleanupConcurrentWithAllow(t *testing.T) {
	rl := NewRateLimiter()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(actor string) {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					rl.Allow(actor, "send_message")
				}
			}
		}(string(rune('a' + i)))
	}

	for i := 0; i < 100; i++ {
		rl.Cleanup()
	}

	close(done)
	wg.Wait()

	allowed, _ := rl.Allow("fresh", "send_message")
	assert.True(t, allowed)
}

func TestCleanupDropsStaleBuckets(t *testing.T) {
	rl := NewRateLimiter()
	rl.Allow("rec_1", "send_message")

	rl.mutex.Lock()
	for _, bucket := range rl.buckets {
		bucket.lastRefill = time.Now().Add(-2 * time.Hour)
	}
	rl.mutex.Unlock()

	rl.Cleanup()

	rl.mutex.RLock()
	defer rl.mutex.RUnlock()
	assert.Empty(t, rl.buckets)
}
