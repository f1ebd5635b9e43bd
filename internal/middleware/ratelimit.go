package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ajali/internal/config"
)

// bucketScript takes one token from the bucket at KEYS[1] after crediting
// whole refill intervals since the last visit.
// ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_s.
// Returns {allowed, remaining, retry_ms}.
var bucketScript = redis.NewScript(`
local now, cap, step, every, ttl =
	tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

local h = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local left, ts = tonumber(h[1]), tonumber(h[2])
if not left or not ts then
	left, ts = cap, now
end

if every > 0 and step > 0 and now > ts then
	local n = math.floor((now - ts) / every)
	if n > 0 then
		left = math.min(cap, left + n * step)
		ts = ts + n * every
	end
end

local ok, wait = 0, 0
if left >= 1 then
	ok, left = 1, left - 1
else
	wait = math.max(0, every - (now - ts))
end

redis.call('HSET', KEYS[1], 'tokens', left, 'ts', ts)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, left, wait}
`)

// limitedBody is written when a caller has run out of tokens.
type limitedBody struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int64  `json:"retry_after"`
}

// NewTokenBucket limits requests per key with a Redis token bucket. Without
// a client, or when disabled, it passes every request through. Redis errors
// are logged and the request is let through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := int64(cfg.TTL / time.Second)
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := bucketScript.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(), cfg.Capacity, cfg.RefillTokens, cfg.RefillInterval.Milliseconds(), ttl,
			).Int64Slice()
			if err != nil || len(res) != 3 {
				c.Logger().Warnf("ratelimit: key=%s skipped: %v", key, err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if res[0] == 1 {
				return next(c)
			}

			secs := (res[2] + 999) / 1000
			h.Set("Retry-After", strconv.FormatInt(secs, 10))
			if cfg.Debug {
				c.Logger().Infof("ratelimit: key=%s blocked for %dms", key, res[2])
			}
			return c.JSON(http.StatusTooManyRequests, limitedBody{
				Error: "rate limit exceeded", Code: "RATE_LIMITED", RetryAfter: secs,
			})
		}
	}
}

// buildRateKey joins the configured prefix with the parts named by the key
// strategy. Unknown strategies key on ip, user and route together.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	part := map[string][]string{
		"ip":    {"ip", ip},
		"user":  {"user", currentUserID(c)},
		"route": {"route", c.Request().Method + " " + c.Path()},
	}

	strategy := strings.ToLower(cfg.KeyStrategy)
	names := strings.Split(strategy, "_")
	for _, n := range names {
		if _, ok := part[n]; !ok {
			names = []string{"ip", "user", "route"}
			break
		}
	}
	key := []string{cfg.Prefix}
	for _, n := range names {
		key = append(key, part[n]...)
	}
	return strings.Join(key, ":")
}
