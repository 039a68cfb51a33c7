package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap/zaptest"

	"github.com/princekumarofficial/catalog-service/internal/config"
	"github.com/princekumarofficial/catalog-service/internal/utils/jwt"
)

const secret = "test-secret"

// echoPrincipal writes the principal seen by the handler, or "-".
var echoPrincipal = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		userID = "-"
	}
	w.Write([]byte(userID))
})

func request(t *testing.T, h http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware(secret)(echoPrincipal)
	token, _ := jwt.GenerateToken("owner-1", secret, time.Minute)

	if rec := request(t, h, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", rec.Code)
	}
	if rec := request(t, h, "bogus"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for a bad token, got %d", rec.Code)
	}
	rec := request(t, h, token)
	if rec.Code != http.StatusOK || rec.Body.String() != "owner-1" {
		t.Fatalf("Expected owner-1 to pass, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	h := OptionalAuthMiddleware(secret)(echoPrincipal)
	token, _ := jwt.GenerateToken("owner-1", secret, time.Minute)

	if rec := request(t, h, ""); rec.Code != http.StatusOK || rec.Body.String() != "-" {
		t.Fatalf("Expected anonymous pass-through, got %d %q", rec.Code, rec.Body.String())
	}
	if rec := request(t, h, "bogus"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for a bad token, got %d", rec.Code)
	}
	if rec := request(t, h, token); rec.Body.String() != "owner-1" {
		t.Fatalf("Expected principal owner-1, got %q", rec.Body.String())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	rlc := NewRateLimitConfig(redisClient, config.RateLimit{UploadsPerMinute: 2, MutationsPerMinute: 5}, zaptest.NewLogger(t))
	h := AuthMiddleware(secret)(rlc.RateLimitedHandler(ActionUpload, echoPrincipal))
	token, _ := jwt.GenerateToken("owner-1", secret, time.Minute)

	for i := 0; i < 2; i++ {
		rec := request(t, h, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected request %d to pass, got %d", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Fatalf("Expected limit header 2, got %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}
	rec := request(t, h, token)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("Expected 0 remaining, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitMiddleware_DisabledWithoutRedis(t *testing.T) {
	rlc := NewRateLimitConfig(nil, config.RateLimit{UploadsPerMinute: 1}, zaptest.NewLogger(t))
	h := AuthMiddleware(secret)(rlc.RateLimitedHandler(ActionUpload, echoPrincipal))
	token, _ := jwt.GenerateToken("owner-1", secret, time.Minute)

	for i := 0; i < 3; i++ {
		if rec := request(t, h, token); rec.Code != http.StatusOK {
			t.Fatalf("Expected request %d to pass, got %d", i+1, rec.Code)
		}
	}
}
