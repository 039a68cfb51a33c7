package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Actions with their own buckets.
const (
	// ActionUpload covers requests that carry media payloads.
	ActionUpload   = "asset_upload"
	// ActionMutation covers deletes and publish toggles.
	ActionMutation = "asset_mutation"
)

// allowScript refills the bucket for the elapsed time and takes one token
// if there is one. Returns 1 when the token was taken.
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local refill_rate = tonumber(ARGV[2])
	local window = tonumber(ARGV[3])
	local now = tonumber(ARGV[4])

	local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
	local tokens = tonumber(bucket[1]) or capacity
	local last_refill = tonumber(bucket[2]) or now

	local tokens_to_add = math.floor(((now - last_refill) / window) * refill_rate)
	if tokens_to_add > 0 then
		tokens = math.min(capacity, tokens + tokens_to_add)
		last_refill = now
	end

	local allowed = 0
	if tokens > 0 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill', last_refill)
	redis.call('EXPIRE', key, window * 2)
	return allowed
`)

// remainingScript reports the tokens a caller would see without taking one.
var remainingScript = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local refill_rate = tonumber(ARGV[2])
	local window = tonumber(ARGV[3])
	local now = tonumber(ARGV[4])

	local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
	local tokens = tonumber(bucket[1]) or capacity
	local last_refill = tonumber(bucket[2]) or now

	local tokens_to_add = math.floor(((now - last_refill) / window) * refill_rate)
	if tokens_to_add > 0 then
		tokens = math.min(capacity, tokens + tokens_to_add)
	end
	return tokens
`)

// TokenBucket is a Redis backed token bucket shared by every API instance.
type TokenBucket struct {
	redis    *redis.Client
	capacity int64         // Maximum number of tokens
	refill   int64         // Tokens added per window
	window   time.Duration // Refill window
}

// NewTokenBucket creates a bucket that refills refillRate tokens per minute.
func NewTokenBucket(redisClient *redis.Client, capacity, refillRate int64) *TokenBucket {
	return &TokenBucket{
		redis:    redisClient,
		capacity: capacity,
		refill:   refillRate,
		window:   time.Minute,
	}
}

// Limit is the bucket capacity, reported to clients in headers.
func (tb *TokenBucket) Limit() int64 { return tb.capacity }

// Window is the refill period of the bucket.
func (tb *TokenBucket) Window() time.Duration { return tb.window }

func key(subject, action string) string {
	return fmt.Sprintf("ratelimit:%s:%s", action, subject)
}

// Allow takes one token for subject performing action.
func (tb *TokenBucket) Allow(ctx context.Context, subject, action string) (bool, error) {
	result, err := allowScript.Run(ctx, tb.redis, []string{key(subject, action)},
		tb.capacity, tb.refill, int64(tb.window.Seconds()), time.Now().Unix()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return result == 1, nil
}

// GetRemaining returns the number of tokens left for subject performing action.
func (tb *TokenBucket) GetRemaining(ctx context.Context, subject, action string) (int64, error) {
	remaining, err := remainingScript.Run(ctx, tb.redis, []string{key(subject, action)},
		tb.capacity, tb.refill, int64(tb.window.Seconds()), time.Now().Unix()).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to get remaining tokens: %w", err)
	}
	return remaining, nil
}

// Reset clears the bucket for subject performing action.
func (tb *TokenBucket) Reset(ctx context.Context, subject, action string) error {
	return tb.redis.Del(ctx, key(subject, action)).Err()
}
