// Package server 把指标流水线挂到 HTTP 上。
//
// 请求依次经过：方法检查（405，早于认证）、限流（429）、认证与访问判定
// （401/403）、存储健康检查（503）、采集与编码。OPTIONS 在判定通过后直接返回
// Allow 头，不采集。HEAD 与 GET 走同一条流水线，只是不写响应体。
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/iwt-cmd/awx/analytics"
	"github.com/iwt-cmd/awx/auth"
	"github.com/iwt-cmd/awx/cache"
	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/metrics"
	"github.com/iwt-cmd/awx/ratelimit"
	"github.com/iwt-cmd/awx/trace"
	"github.com/iwt-cmd/awx/xerrors"
)

// HealthPath 存活探针，不需要认证
const HealthPath = "/healthz"

// AllowedMethods 指标端点接受的方法
const AllowedMethods = "GET, HEAD, OPTIONS"

// HealthChecker 存储健康检查，失败时整个采集不可用
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Deps Server 的必需依赖
type Deps struct {
	Registry      *analytics.Registry
	Authenticator auth.Authenticator
	Principals    auth.PrincipalLoader
	Health        HealthChecker
}

func (d Deps) validate() error {
	switch {
	case d.Registry == nil:
		return xerrors.Wrap(ErrMissingDependency, "registry")
	case d.Authenticator == nil:
		return xerrors.Wrap(ErrMissingDependency, "authenticator")
	case d.Principals == nil:
		return xerrors.Wrap(ErrMissingDependency, "principal loader")
	case d.Health == nil:
		return xerrors.Wrap(ErrMissingDependency, "health checker")
	}
	return nil
}

// Server 指标 HTTP 服务
type Server struct {
	cfg    *Config
	deps   Deps
	logger clog.Logger

	aggregator *analytics.Aggregator
	encoder    *analytics.Encoder
	snapshots  *cache.Cache[[]byte]
	limiter    ratelimit.Limiter

	engine *gin.Engine
	http   *http.Server
}

// New 创建 Server 并注册路由
func New(cfg *Config, deps Deps, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: o.logger.WithNamespace("server"),
		aggregator: analytics.NewAggregator(deps.Registry,
			analytics.WithLogger(o.logger),
			analytics.WithMeter(o.meter),
			analytics.WithTracerProvider(o.tracerProvider),
			analytics.WithConcurrency(cfg.Concurrency)),
		encoder: analytics.NewEncoder(deps.Registry,
			analytics.WithLogger(o.logger),
			analytics.WithMeter(o.meter)),
	}

	snapshots, err := cache.New[[]byte](&cfg.Cache,
		cache.WithLogger(o.logger), cache.WithMeter(o.meter), cache.WithName("snapshot"))
	switch {
	case err == nil:
		s.snapshots = snapshots
	case !errors.Is(err, cache.ErrDisabled):
		return nil, err
	}

	if cfg.RateLimit.Enabled {
		s.limiter, err = ratelimit.New(&cfg.RateLimit, ratelimit.WithLogger(o.logger), ratelimit.WithMeter(o.meter))
		if err != nil {
			return nil, err
		}
	}

	httpMetrics, err := metrics.NewHTTPServerMetrics(o.meter, metrics.DefaultHTTPServerMetricsConfig(o.serviceName))
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.Use(
		RequestID(),
		Recovery(s.logger),
		trace.GinMiddleware(o.serviceName, o.tracerProvider),
		metrics.GinHTTPMiddleware(httpMetrics),
	)
	engine.GET(HealthPath, s.health)
	engine.HEAD(HealthPath, s.health)

	chain := []gin.HandlerFunc{s.methodGate}
	if s.limiter != nil {
		chain = append(chain, ratelimit.GinMiddleware(s.limiter, nil))
	}
	chain = append(chain,
		auth.RequireMetricsReader(deps.Authenticator, deps.Principals,
			auth.WithLogger(o.logger), auth.WithMeter(o.meter)),
		s.serveMetrics,
	)
	for _, path := range uniquePaths(cfg.Path, APIPath) {
		engine.Any(path, chain...)
	}

	s.engine = engine
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s, nil
}

func uniquePaths(paths ...string) []string {
	var out []string
	for _, p := range paths {
		dup := false
		for _, q := range out {
			if strings.TrimSuffix(p, "/") == strings.TrimSuffix(q, "/") {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

// Handler 返回路由，测试与嵌入使用
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 监听并服务，ctx 结束时优雅关闭
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return xerrors.Wrapf(err, "server: listen %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定 listener 上服务，ctx 结束时优雅关闭
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("metrics endpoint listening",
			clog.String("addr", ln.Addr().String()),
			clog.String("path", s.cfg.Path))
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return xerrors.Wrap(err, "server: serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)
	s.close()
	if err != nil {
		return xerrors.Wrap(err, "server: shutdown")
	}
	s.logger.Info("metrics endpoint stopped")
	return nil
}

func (s *Server) close() {
	if s.limiter != nil {
		_ = s.limiter.Close()
	}
}

func (s *Server) health(c *gin.Context) {
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// methodGate 只放行 GET、HEAD、OPTIONS，其余方法在认证之前返回 405
func (s *Server) methodGate(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		c.Next()
	default:
		c.Header("Allow", AllowedMethods)
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{
			"detail": `Method "` + c.Request.Method + `" not allowed.`,
		})
	}
}

func (s *Server) serveMetrics(c *gin.Context) {
	if c.Request.Method == http.MethodOptions {
		c.Header("Allow", AllowedMethods)
		c.Status(http.StatusOK)
		return
	}

	ctx := c.Request.Context()
	opts := analytics.CollectOptions{DBOnly: parseBool(c.Query("dbonly"))}
	key := "dbonly=" + strconv.FormatBool(opts.DBOnly)

	if s.snapshots != nil {
		if body, ok := s.snapshots.Get(ctx, key); ok {
			s.write(c, body)
			return
		}
	}

	if err := s.deps.Health.Ping(ctx); err != nil {
		s.logger.ErrorContext(ctx, "data store unavailable", clog.Error(err))
		s.unavailable(c)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CollectTimeout)
	defer cancel()
	snap := s.aggregator.Collect(ctx, opts)
	if snap.Empty() && len(snap.Failures) > 0 {
		s.logger.ErrorContext(ctx, "every metric failed", clog.Int("failures", len(snap.Failures)))
		s.unavailable(c)
		return
	}

	body := s.encoder.Encode(snap)
	if s.snapshots != nil && len(snap.Failures) == 0 {
		s.snapshots.Set(ctx, key, body)
	}
	s.write(c, body)
}

func (s *Server) write(c *gin.Context, body []byte) {
	c.Header("Content-Type", analytics.ContentType)
	if c.Request.Method == http.MethodHead {
		c.Header("Content-Length", strconv.Itoa(len(body)))
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, analytics.ContentType, body)
}

func (s *Server) unavailable(c *gin.Context) {
	if c.Request.Method == http.MethodHead {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"detail": "Service unavailable."})
}

// parseBool 接受 1 与 true（不区分大小写）
func parseBool(v string) bool {
	v = strings.TrimSpace(v)
	return v == "1" || strings.EqualFold(v, "true")
}
