package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"careerhub/internal/transport/http/response"
)

// INCR then set the window expiry on the first hit, atomically.
var fixedWindowScript = redisv9.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RateLimiter is a fixed-window counter per client IP and route, kept in redis.
// Redis failures let the request through.
type RateLimiter struct {
	client *redisv9.Client
	window time.Duration
	logger logrus.FieldLogger
}

func NewRateLimiter(client *redisv9.Client, window time.Duration, logger logrus.FieldLogger) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{client: client, window: window, logger: logger}
}

func (l *RateLimiter) Limit(route string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.client == nil || limit <= 0 {
			c.Next()
			return
		}

		key := "ratelimit:" + route + ":" + c.ClientIP()
		n, err := fixedWindowScript.Run(c.Request.Context(), l.client, []string{key}, l.window.Milliseconds()).Int64()
		if err != nil {
			l.logger.WithError(err).WithField("route", route).Warn("rate limiter unavailable")
			c.Next()
			return
		}

		remaining := int64(limit) - n
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if n > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			response.Abort(c, http.StatusTooManyRequests, response.CodeTooManyRequests, "too many requests")
			return
		}
		c.Next()
	}
}
