package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GinMiddlewareOptions Gin 中间件选项
type GinMiddlewareOptions struct {
	// KeyFunc 提取限流键，默认使用客户端 IP；返回空串时放行
	KeyFunc func(*gin.Context) string

	// LimitFunc 返回本次请求的规则，默认使用 Limiter.Default()
	LimitFunc func(*gin.Context) Limit

	// OnLimited 自定义拒绝响应，默认 429 + JSON
	OnLimited func(*gin.Context, Limit)
}

// GinMiddleware 创建 Gin 限流中间件。限流器出错时放行
func GinMiddleware(limiter Limiter, opts *GinMiddlewareOptions) gin.HandlerFunc {
	if opts == nil {
		opts = &GinMiddlewareOptions{}
	}
	keyFunc := opts.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	limitFunc := opts.LimitFunc
	if limitFunc == nil {
		limitFunc = func(*gin.Context) Limit { return limiter.Default() }
	}
	onLimited := opts.OnLimited
	if onLimited == nil {
		onLimited = defaultOnLimited
	}

	return func(c *gin.Context) {
		key := keyFunc(c)
		limit := limitFunc(c)
		if key == "" || !limit.Valid() {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil || allowed {
			c.Next()
			return
		}
		onLimited(c, limit)
	}
}

func defaultOnLimited(c *gin.Context, limit Limit) {
	c.Header("Retry-After", strconv.Itoa(RetryAfterSeconds(limit)))
	if c.Request.Method == http.MethodHead {
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"detail": "Request was throttled.",
	})
}

// RetryAfterSeconds 生成一个令牌所需的秒数，向上取整，至少 1
func RetryAfterSeconds(limit Limit) int {
	if limit.Rate <= 0 {
		return 1
	}
	s := int(math.Ceil(1 / limit.Rate))
	if s < 1 {
		return 1
	}
	return s
}
