package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/metrics"
	"github.com/iwt-cmd/awx/xerrors"
)

// bucket 令牌桶与最后访问时间（UnixNano）
type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

func (b *bucket) touch(now time.Time) {
	b.lastSeen.Store(now.UnixNano())
}

type standaloneLimiter struct {
	cfg      *Config
	logger   clog.Logger
	requests metrics.Counter
	buckets  sync.Map // map[string]*bucket

	closeOnce sync.Once
	closed    atomic.Bool
	stopCh    chan struct{}
}

func newStandalone(cfg *Config, o *options) (Limiter, error) {
	requests, err := o.meter.Counter(MetricRequestsTotal, "Rate limit checks by result")
	if err != nil {
		return nil, err
	}

	l := &standaloneLimiter{
		cfg:      cfg,
		logger:   o.logger,
		requests: requests,
		stopCh:   make(chan struct{}),
	}
	go l.cleanup(cfg.CleanupInterval, cfg.IdleTimeout)

	l.logger.Debug("rate limiter created",
		clog.Float64("rate", cfg.Rate),
		clog.Int("burst", cfg.Burst),
		clog.Duration("cleanup_interval", cfg.CleanupInterval),
		clog.Duration("idle_timeout", cfg.IdleTimeout))
	return l, nil
}

func (l *standaloneLimiter) Default() Limit {
	return Limit{Rate: l.cfg.Rate, Burst: l.cfg.Burst}
}

func (l *standaloneLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	return l.AllowN(ctx, key, limit, 1)
}

func (l *standaloneLimiter) AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error) {
	if err := l.check(key, limit); err != nil {
		return false, err
	}
	if n <= 0 {
		return false, xerrors.Wrapf(xerrors.ErrInvalidInput, "ratelimit: n must be positive")
	}

	now := time.Now()
	b := l.bucket(key, limit)
	b.touch(now)
	allowed := b.limiter.AllowN(now, n)

	result := "allowed"
	if !allowed {
		result = "denied"
	}
	l.requests.Inc(ctx, metrics.L(LabelResult, result))
	l.logger.DebugContext(ctx, "rate limit check",
		clog.String("key", key),
		clog.Bool("allowed", allowed),
		clog.Int("requested", n))
	return allowed, nil
}

func (l *standaloneLimiter) Wait(ctx context.Context, key string, limit Limit) error {
	if err := l.check(key, limit); err != nil {
		return err
	}
	b := l.bucket(key, limit)
	b.touch(time.Now())
	return b.limiter.Wait(ctx)
}

func (l *standaloneLimiter) check(key string, limit Limit) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if key == "" {
		return ErrKeyEmpty
	}
	if !limit.Valid() {
		return ErrInvalidLimit
	}
	return nil
}

// bucket 按 key 与规则取桶，规则变化时使用新桶
func (l *standaloneLimiter) bucket(key string, limit Limit) *bucket {
	cacheKey := fmt.Sprintf("%s:%v:%d", key, limit.Rate, limit.Burst)
	if v, ok := l.buckets.Load(cacheKey); ok {
		return v.(*bucket)
	}

	b := &bucket{limiter: rate.NewLimiter(rate.Limit(limit.Rate), limit.Burst)}
	actual, _ := l.buckets.LoadOrStore(cacheKey, b)
	return actual.(*bucket)
}

func (l *standaloneLimiter) cleanup(interval, idleTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			l.evictIdle(now, idleTimeout)
		case <-l.stopCh:
			return
		}
	}
}

func (l *standaloneLimiter) evictIdle(now time.Time, idleTimeout time.Duration) int {
	count := 0
	l.buckets.Range(func(key, value any) bool {
		idle := now.Sub(time.Unix(0, value.(*bucket).lastSeen.Load()))
		if idle > idleTimeout {
			l.buckets.Delete(key)
			count++
		}
		return true
	})
	if count > 0 {
		l.logger.Debug("cleaned up idle limiters", clog.Int("count", count))
	}
	return count
}

func (l *standaloneLimiter) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.stopCh)
	})
	return nil
}
