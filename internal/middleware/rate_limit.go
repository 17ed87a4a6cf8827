package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// キーごとの回数制限（Redisの実装は infra/cache）
type RateLimiter interface {
	// 許可ならtrue。拒否のときは次に通るまでの目安を返す
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// group + クライアントIP 単位で制限する。
// limiterがnil（Redis未設定）なら何もしない。Redisが落ちているときは通す
func RateLimit(limiter RateLimiter, group string, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil {
			return next
		}
		return func(c echo.Context) error {
			key := "rl:" + group + ":" + c.RealIP()
			ok, retryAfter, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}
			if !ok {
				secs := int(math.Ceil(retryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, errorJSON("too many requests", "RATE_LIMITED"))
			}
			return next(c)
		}
	}
}
