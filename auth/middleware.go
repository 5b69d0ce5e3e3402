package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/metrics"
)

// PrincipalKey gin.Context 中保存 *Principal 的键
const PrincipalKey = "auth:principal"

// MetricDecisions 访问判定计数，标签: decision, rule
const MetricDecisions = "awx_exporter_auth_decisions_total"

const (
	detailUnauthenticated = "Authentication credentials were not provided."
	detailForbidden       = "You do not have permission to perform this action."
	detailUnavailable     = "Service unavailable."
)

// RequireMetricsReader 认证、加载 Principal 并执行访问判定。
//
// 缺少或无效的 Token 以及未知用户返回 401，判定为 Deny 返回 403，
// 加载 Principal 时存储不可用返回 503。Principal 每次请求都重新加载。
func RequireMetricsReader(authn Authenticator, loader PrincipalLoader, opts ...Option) gin.HandlerFunc {
	o := applyOptions(opts)
	logger := o.logger
	decisions, err := o.meter.Counter(MetricDecisions, "Access decisions taken for the metrics endpoint.")
	if err != nil {
		logger.Warn("create decision counter failed", clog.Error(err))
		decisions, _ = metrics.Discard().Counter(MetricDecisions, "")
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token, err := authn.ExtractToken(c.Request)
		if err != nil {
			abort(c, http.StatusUnauthorized, detailUnauthenticated)
			return
		}
		claims, err := authn.ValidateToken(ctx, token)
		if err != nil {
			logger.DebugContext(ctx, "token rejected", clog.Error(err))
			abort(c, http.StatusUnauthorized, detailUnauthenticated)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			abort(c, http.StatusUnauthorized, detailUnauthenticated)
			return
		}

		principal, err := loader.LoadPrincipal(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrUnknownPrincipal) {
				logger.InfoContext(ctx, "unknown principal", clog.Any("user_id", userID))
				abort(c, http.StatusUnauthorized, detailUnauthenticated)
				return
			}
			logger.ErrorContext(ctx, "load principal failed", clog.Any("user_id", userID), clog.Error(err))
			abort(c, http.StatusServiceUnavailable, detailUnavailable)
			return
		}

		decision, rule := Explain(principal)
		decisions.Inc(ctx, metrics.L("decision", decision.String()), metrics.L("rule", rule))
		if decision != Allow {
			logger.InfoContext(ctx, "metrics access denied",
				clog.Any("user_id", principal.UserID),
				clog.String("username", principal.Username),
				clog.String("rule", rule))
			abort(c, http.StatusForbidden, detailForbidden)
			return
		}

		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// GetPrincipal 从 gin.Context 取出已通过判定的 Principal
func GetPrincipal(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}

func abort(c *gin.Context, status int, detail string) {
	if c.Request.Method == http.MethodHead {
		c.AbortWithStatus(status)
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
