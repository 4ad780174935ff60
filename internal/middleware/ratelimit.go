package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const rateLimitMessage = "Muitas requisições, tente novamente em instantes"

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix
}

// clientKey identifies the caller by IP; RealIP runs earlier in the chain
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setLimitHeaders(w http.ResponseWriter, limit, remaining int) {
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
}

func rejectRequest(w http.ResponseWriter, limit int, retryAfter time.Duration) {
	setLimitHeaders(w, limit, 0)
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	RespondWithError(w, http.StatusTooManyRequests, rateLimitMessage)
}

// RateLimitMiddleware implements a fixed window limiter shared across instances through Redis
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientKey(r)
			key := fmt.Sprintf("%s:%s", config.KeyPrefix, clientID)
			ctx := r.Context()

			count, err := redisClient.Incr(ctx, key).Result()
			if err != nil {
				logger.Error("Failed to increment rate limit counter",
					zap.Error(err),
					zap.String("key", key),
				)
				// On Redis error, allow request to proceed
				next.ServeHTTP(w, r)
				return
			}

			if count == 1 {
				redisClient.Expire(ctx, key, config.Window)
			}

			if count > int64(config.RequestsPerWindow) {
				ttl, err := redisClient.TTL(ctx, key).Result()
				if err != nil || ttl < 0 {
					ttl = config.Window
				}

				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.Int64("count", count),
					zap.Int("limit", config.RequestsPerWindow),
				)
				rejectRequest(w, config.RequestsPerWindow, ttl)
				return
			}

			setLimitHeaders(w, config.RequestsPerWindow, config.RequestsPerWindow-int(count))
			next.ServeHTTP(w, r)
		})
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter keeps one token bucket per client inside the process
type localLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	lastGC   time.Time
	now      func() time.Time
}

func newLocalLimiter(config RateLimitConfig) *localLimiter {
	window := config.Window
	if window <= 0 {
		window = time.Minute
	}
	burst := config.RequestsPerWindow
	if burst < 1 {
		burst = 1
	}
	return &localLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(burst) / window.Seconds()),
		burst:    burst,
		idle:     3 * window,
		now:      time.Now,
	}
}

func (l *localLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > l.idle {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// LocalRateLimitMiddleware limits requests per client without Redis, used when no Redis host is configured
func LocalRateLimitMiddleware(config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	limiter := newLocalLimiter(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientKey(r)
			lim := limiter.get(clientID)

			now := limiter.now()
			res := lim.ReserveN(now, 1)
			if retryAfter := res.DelayFrom(now); retryAfter > 0 {
				res.CancelAt(now)

				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.Int("limit", limiter.burst),
				)
				if retryAfter < time.Second {
					retryAfter = time.Second
				}
				rejectRequest(w, limiter.burst, retryAfter)
				return
			}

			setLimitHeaders(w, limiter.burst, int(lim.TokensAt(now)))
			next.ServeHTTP(w, r)
		})
	}
}
