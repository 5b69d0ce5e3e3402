package subsystem

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iwt-cmd/awx/analytics"
	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/connector"
	"github.com/iwt-cmd/awx/xerrors"
)

// Recorder 在本地缓冲子系统指标，按间隔批量写入本节点的 Redis hash。
//
// 计数器用 HINCRBYFLOAT 累加，仪表用 HSET 覆盖。每次成功写入都会计入
// awx_subsystem_metrics_pipe_execute_calls，写入耗时计入下一次写入的
// awx_subsystem_metrics_pipe_execute_seconds。
type Recorder struct {
	client *redis.Client
	cfg    *Config
	logger clog.Logger
	now    func() time.Time

	mu          sync.Mutex
	incs        map[string]float64
	sets        map[string]float64
	pendingSecs float64
}

// NewRecorder 创建 Recorder
func NewRecorder(conn connector.RedisConnector, cfg *Config, opts ...Option) (*Recorder, error) {
	if conn == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "redis connector is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)

	return &Recorder{
		client: conn.GetClient(),
		cfg:    cfg,
		logger: o.logger.With(clog.String("node", cfg.Node)),
		now:    o.now,
		incs:   make(map[string]float64),
		sets:   make(map[string]float64),
	}, nil
}

// Inc 累加计数器
func (r *Recorder) Inc(name string, delta float64) error {
	m, err := lookup(name, analytics.Counter)
	if err != nil {
		return err
	}
	if err := checkValue(m, delta); err != nil {
		return err
	}
	if delta < 0 {
		return xerrors.Wrapf(ErrInvalidValue, "%s: negative increment %v", name, delta)
	}

	r.mu.Lock()
	r.incs[name] += delta
	r.mu.Unlock()
	return nil
}

// Set 设置仪表当前值
func (r *Recorder) Set(name string, value float64) error {
	m, err := lookup(name, analytics.Gauge)
	if err != nil {
		return err
	}
	if err := checkValue(m, value); err != nil {
		return err
	}

	r.mu.Lock()
	r.sets[name] = value
	r.mu.Unlock()
	return nil
}

func lookup(name string, kind analytics.Kind) (analytics.SubsystemMetric, error) {
	m, ok := analytics.LookupSubsystemMetric(name)
	if !ok {
		return m, xerrors.Wrapf(ErrUnknownMetric, "%q", name)
	}
	if m.Kind != kind {
		return m, xerrors.Wrapf(ErrKindMismatch, "%s is a %s", name, m.Kind)
	}
	return m, nil
}

func checkValue(m analytics.SubsystemMetric, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return xerrors.Wrapf(ErrInvalidValue, "%s: non-finite value", m.Name)
	}
	if m.ValueType == analytics.Integer && v != math.Trunc(v) {
		return xerrors.Wrapf(ErrInvalidValue, "%s: integer metric got %v", m.Name, v)
	}
	return nil
}

// Flush 在一个 MULTI/EXEC 事务里把缓冲写入 Redis，写入失败时不落任何数据，缓冲保留到下一次。
// 缓冲为空时仍然写入节点登记与 pipe_execute_calls，空闲节点也能被 Reader 看到
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	incs, sets, secs := r.incs, r.sets, r.pendingSecs
	r.incs, r.sets, r.pendingSecs = make(map[string]float64), make(map[string]float64), 0
	r.mu.Unlock()

	start := r.now()
	key := r.cfg.nodeKey(r.cfg.Node)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.cfg.nodesKey(), r.cfg.Node)
		for name, delta := range incs {
			pipe.HIncrByFloat(ctx, key, name, delta)
		}
		if len(sets) > 0 {
			values := make(map[string]any, len(sets))
			for name, v := range sets {
				values[name] = v
			}
			pipe.HSet(ctx, key, values)
		}
		pipe.HIncrByFloat(ctx, key, analytics.MetricSubsystemMetricsPipeExecuteCalls, 1)
		if secs > 0 {
			pipe.HIncrByFloat(ctx, key, analytics.MetricSubsystemMetricsPipeExecuteSeconds, secs)
		}
		if r.cfg.NodeTTL > 0 {
			pipe.Expire(ctx, key, r.cfg.NodeTTL)
		}
		return nil
	})
	elapsed := r.now().Sub(start).Seconds()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		for name, delta := range incs {
			r.incs[name] += delta
		}
		for name, v := range sets {
			if _, newer := r.sets[name]; !newer {
				r.sets[name] = v
			}
		}
		r.pendingSecs += secs
		r.logger.WarnContext(ctx, "flush subsystem metrics failed", clog.Error(err))
		return xerrors.Wrapf(xerrors.Join(ErrUnavailable, err), "flush node %s", r.cfg.Node)
	}
	r.pendingSecs += elapsed

	r.logger.DebugContext(ctx, "subsystem metrics flushed",
		clog.Int("counters", len(incs)),
		clog.Int("gauges", len(sets)),
		clog.Float64("seconds", elapsed))
	return nil
}

// Run 按 FlushInterval 定期写入，ctx 结束时做最后一次写入后返回
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = r.Flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.FlushInterval)
			defer cancel()
			return r.Flush(flushCtx)
		}
	}
}
