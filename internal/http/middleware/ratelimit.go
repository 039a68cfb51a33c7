package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/princekumarofficial/catalog-service/internal/config"
	"github.com/princekumarofficial/catalog-service/internal/ratelimit"
	"github.com/princekumarofficial/catalog-service/internal/utils/response"
)

// Rate limited actions
const (
	ActionUpload   = ratelimit.ActionUpload
	ActionMutation = ratelimit.ActionMutation
)

type RateLimitConfig struct {
	limiters map[string]*ratelimit.TokenBucket
	log      *zap.Logger
}

// NewRateLimitConfig builds one bucket per action. A nil client disables
// rate limiting.
func NewRateLimitConfig(redisClient *redis.Client, cfg config.RateLimit, log *zap.Logger) *RateLimitConfig {
	rlc := &RateLimitConfig{
		limiters: make(map[string]*ratelimit.TokenBucket),
		log:      log,
	}
	if redisClient == nil {
		return rlc
	}

	// POST /assets and PUT /assets/{id} carry payloads
	rlc.limiters[ActionUpload] = ratelimit.NewTokenBucket(redisClient, cfg.UploadsPerMinute, cfg.UploadsPerMinute)
	// DELETE and publish toggles
	rlc.limiters[ActionMutation] = ratelimit.NewTokenBucket(redisClient, cfg.MutationsPerMinute, cfg.MutationsPerMinute)
	return rlc
}

func (rlc *RateLimitConfig) RateLimitMiddleware(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// assumes auth middleware ran first
			userID, ok := GetUserIDFromContext(r.Context())
			if !ok {
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
					errors.New("user not authenticated")))
				return
			}

			limiter, exists := rlc.limiters[action]
			if !exists {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), userID, action)
			if err != nil {
				// fail open when redis is unreachable
				rlc.log.Warn("rate limit check failed, allowing request", zap.String("action", action), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			remaining, _ := limiter.GetRemaining(r.Context(), userID, action)
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limiter.Limit(), 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(limiter.Window().Seconds())))

			if !allowed {
				response.WriteJSON(w, http.StatusTooManyRequests, response.GeneralError(
					errors.New("rate limit exceeded")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitedHandler wraps a handler with rate limiting for a specific action
func (rlc *RateLimitConfig) RateLimitedHandler(action string, handler http.HandlerFunc) http.Handler {
	return rlc.RateLimitMiddleware(action)(http.HandlerFunc(handler))
}
