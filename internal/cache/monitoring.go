package cache

import (
	"net/http"

	"github.com/go-redis/redis/v8"

	"github.com/princekumarofficial/catalog-service/internal/utils/response"
)

// CacheStats represents cache performance statistics
type CacheStats struct {
	RedisConnected bool     `json:"redis_connected"`
	ListVersion    int64    `json:"list_version"`
	CacheKeys      []string `json:"cache_keys_sample"`
	KeyCount       int      `json:"total_keys"`
}

// GetCacheStats returns cache statistics
// @Summary Cache statistics
// @Tags debug
// @Produce json
// @Success 200 {object} response.Response
// @Router /debug/cache [get]
func GetCacheStats(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		stats := CacheStats{RedisConnected: true}

		if err := redisClient.Ping(ctx).Err(); err != nil {
			stats.RedisConnected = false
			response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache stats retrieved", stats))
			return
		}

		stats.ListVersion, _ = redisClient.Get(ctx, ListVersionKey).Int64()

		var cursor uint64
		for {
			keys, next, err := redisClient.Scan(ctx, cursor, KeyPrefix+"*", 100).Result()
			if err != nil {
				break
			}
			stats.KeyCount += len(keys)
			if room := 10 - len(stats.CacheKeys); room > 0 {
				stats.CacheKeys = append(stats.CacheKeys, keys[:min(room, len(keys))]...)
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache stats retrieved", stats))
	}
}

// ClearCache drops cached listing pages. Rate limit buckets are left alone.
// @Summary Clear the listing cache
// @Tags debug
// @Produce json
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /debug/cache [delete]
func ClearCache(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		version, err := redisClient.Incr(ctx, ListVersionKey).Result()
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		var deleted int64
		iter := redisClient.Scan(ctx, 0, "catalog:list:*", 100).Iterator()
		for iter.Next(ctx) {
			if iter.Val() == ListVersionKey {
				continue
			}
			n, err := redisClient.Del(ctx, iter.Val()).Result()
			if err == nil {
				deleted += n
			}
		}
		if err := iter.Err(); err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		result := map[string]interface{}{
			"list_version": version,
			"deleted_keys": deleted,
		}
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache cleared successfully", result))
	}
}
