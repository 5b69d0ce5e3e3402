package subsystem

import (
	"context"
	"slices"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/iwt-cmd/awx/analytics"
	"github.com/iwt-cmd/awx/breaker"
	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/connector"
	"github.com/iwt-cmd/awx/xerrors"
)

// BreakerKey Reader 使用的熔断键
const BreakerKey = "subsystem-redis"

// Reader 读取所有节点的子系统指标，实现 analytics.SubsystemSource。
// Redis 连续失败时熔断器打开，之后的采集直接失败，不再等待超时。
type Reader struct {
	client  *redis.Client
	cfg     *Config
	breaker breaker.Breaker
	logger  clog.Logger
}

var _ analytics.SubsystemSource = (*Reader)(nil)

// NewReader 创建 Reader
func NewReader(conn connector.RedisConnector, cfg *Config, opts ...Option) (*Reader, error) {
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

	brk := o.breaker
	if brk == nil {
		var err error
		brk, err = breaker.New(&cfg.Breaker, breaker.WithLogger(o.logger), breaker.WithMeter(o.meter))
		if err != nil {
			return nil, err
		}
	}

	return &Reader{
		client:  conn.GetClient(),
		cfg:     cfg,
		breaker: brk,
		logger:  o.logger,
	}, nil
}

// SubsystemMetrics 按节点名、指标列表顺序返回全部样本
func (r *Reader) SubsystemMetrics(ctx context.Context) ([]analytics.SubsystemSample, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	v, err := r.breaker.Execute(ctx, BreakerKey, func() (any, error) {
		return r.read(ctx)
	})
	if err != nil {
		return nil, xerrors.Wrapf(xerrors.Join(ErrUnavailable, err), "read %s", r.cfg.KeyPrefix)
	}
	return v.([]analytics.SubsystemSample), nil
}

func (r *Reader) read(ctx context.Context) ([]analytics.SubsystemSample, error) {
	nodes, err := r.client.SMembers(ctx, r.cfg.nodesKey()).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(nodes)

	cmds := make([]*redis.MapStringStringCmd, len(nodes))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, node := range nodes {
			cmds[i] = pipe.HGetAll(ctx, r.cfg.nodeKey(node))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]analytics.SubsystemSample, 0, len(nodes)*len(analytics.SubsystemMetrics))
	for i, node := range nodes {
		fields := cmds[i].Val()
		for _, m := range analytics.SubsystemMetrics {
			raw, ok := fields[m.Name]
			if !ok {
				continue
			}
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				r.logger.WarnContext(ctx, "skip unparsable subsystem value",
					clog.String("node", node), clog.String("metric", m.Name), clog.String("raw", raw))
				continue
			}
			out = append(out, analytics.SubsystemSample{Node: node, Metric: m.Name, Value: value})
		}
	}
	return out, nil
}
