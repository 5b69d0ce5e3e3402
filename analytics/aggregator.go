// Package analytics 实现指标目录、聚合与 Prometheus 文本编码。
//
// 每次请求构建一个新的 Snapshot：Aggregator 按注册顺序执行计算规则，
// 单条规则失败只影响自身（样本省略并记录 Failure），其余指标照常输出；
// Encoder 把 Snapshot 编码为 text/plain; version=0.0.4。
//
//	reg := analytics.MustNewRegistry(analytics.NewCatalog(sources, info)...)
//	agg := analytics.NewAggregator(reg, analytics.WithLogger(logger))
//	enc := analytics.NewEncoder(reg, analytics.WithLogger(logger))
//	body := enc.Encode(agg.Collect(ctx, analytics.CollectOptions{}))
package analytics

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/prometheus/common/model"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/metrics"
	"github.com/iwt-cmd/awx/trace"
)

// 聚合器自身遥测
const (
	MetricCollectFailures = "awx_exporter_collect_failures_total"
	MetricSampleDefects   = "awx_exporter_sample_defects_total"
	MetricCollectDuration = "awx_exporter_collect_duration_seconds"
)

// Aggregator 执行计算规则，生成 Snapshot。无共享可变状态，可并发使用
type Aggregator struct {
	reg         *Registry
	logger      clog.Logger
	tracer      oteltrace.Tracer
	concurrency int

	failures metrics.Counter
	defects  metrics.Counter
	duration metrics.Histogram
}

// NewAggregator 创建 Aggregator
func NewAggregator(reg *Registry, opts ...Option) *Aggregator {
	o := applyOptions(opts)
	a := &Aggregator{
		reg:         reg,
		logger:      o.logger,
		tracer:      trace.Tracer(o.tracerProvider),
		concurrency: o.concurrency,
	}

	var err error
	if a.failures, err = o.meter.Counter(MetricCollectFailures, "Metric computations that failed and were omitted."); err != nil {
		a.failures = discardCounter()
	}
	if a.defects, err = o.meter.Counter(MetricSampleDefects, "Samples dropped because they violated their definition."); err != nil {
		a.defects = discardCounter()
	}
	if a.duration, err = o.meter.Histogram(MetricCollectDuration, "Time spent collecting one snapshot.", metrics.WithUnit("s")); err != nil {
		a.duration, _ = metrics.Discard().Histogram(MetricCollectDuration, "")
	}
	return a
}

func discardCounter() metrics.Counter {
	c, _ := metrics.Discard().Counter("", "")
	return c
}

type ruleResult struct {
	samples []Sample
	err     error
}

// Collect 对选中的定义各执行一次计算规则，不重试。
//
// 结果保持注册顺序。ctx 取消后尚未开始的规则记为失败（原因为 ctx.Err()）并跳过。
func (a *Aggregator) Collect(ctx context.Context, opts CollectOptions) *Snapshot {
	start := time.Now()
	defs := a.reg.Filter(opts)
	results := make([]ruleResult, len(defs))

	ctx, span := a.tracer.Start(ctx, trace.SpanNameCollect,
		oteltrace.WithAttributes(attribute.Bool(trace.AttrDBOnly, opts.DBOnly)))
	defer span.End()
	ctx = withSharedReads(ctx)

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, def := range defs {
		if err := ctx.Err(); err != nil {
			results[i].err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			results[i].samples, results[i].err = a.compute(ctx, def)
			return nil
		})
	}
	_ = g.Wait()

	snap := &Snapshot{CollectedAt: start}
	for i, def := range defs {
		res := results[i]
		if res.err != nil {
			snap.Failures = append(snap.Failures, Failure{Metric: def.Name, Err: res.err})
			a.failures.Inc(ctx, metrics.L(metrics.LabelMetric, def.Name))
			a.logger.WarnContext(ctx, "metric omitted",
				clog.String("metric", def.Name),
				clog.String("source", def.Source.String()),
				clog.Error(res.err))
			continue
		}
		for _, s := range res.samples {
			if checked, ok := a.check(ctx, def, s); ok {
				snap.Samples = append(snap.Samples, checked)
			}
		}
	}

	elapsed := time.Since(start)
	a.duration.Record(ctx, elapsed.Seconds())
	span.SetAttributes(attribute.Int(trace.AttrSampleCount, len(snap.Samples)))
	a.logger.DebugContext(ctx, "snapshot collected",
		clog.Int("definitions", len(defs)),
		clog.Int("samples", len(snap.Samples)),
		clog.Int("failures", len(snap.Failures)),
		clog.Duration("elapsed", elapsed))
	return snap
}

// compute 执行一条规则，panic 视为该规则失败
func (a *Aggregator) compute(ctx context.Context, def Definition) (samples []Sample, err error) {
	ctx, span := trace.StartComputeSpan(ctx, a.tracer, def.Name, def.Source.String())
	defer func() {
		if r := recover(); r != nil {
			samples, err = nil, fmt.Errorf("analytics: compute %s panicked: %v", def.Name, r)
		}
		trace.MarkSpanError(span, err)
		span.End()
	}()
	return def.Compute(ctx)
}

// check 校验样本是否符合定义，不符合的样本属于缺陷，丢弃并记录
func (a *Aggregator) check(ctx context.Context, def Definition, s Sample) (Sample, bool) {
	if s.Name == "" {
		s.Name = def.Name
	}

	var reason string
	switch {
	case s.Name != def.Name:
		reason = "name_mismatch"
	case !labelKeysMatch(def.LabelKeys, s.Labels):
		reason = "label_mismatch"
	case !labelValuesValid(s.Labels):
		reason = "invalid_label_value"
	case math.IsNaN(s.Value) || math.IsInf(s.Value, 0):
		reason = "non_finite"
	case def.ValueType == Integer && s.Value != math.Trunc(s.Value):
		reason = "fractional_integer"
	default:
		return s, true
	}

	a.defects.Inc(ctx, metrics.L(metrics.LabelMetric, def.Name), metrics.L(metrics.LabelReason, reason))
	a.logger.ErrorContext(ctx, "sample dropped",
		clog.String("metric", def.Name),
		clog.String("sample", s.Name),
		clog.String("reason", reason),
		clog.String("value", strconv.FormatFloat(s.Value, 'g', -1, 64)))
	return Sample{}, false
}

func labelKeysMatch(keys []string, labels []Label) bool {
	if len(keys) != len(labels) {
		return false
	}
	for i, k := range keys {
		if labels[i].Key != k {
			return false
		}
	}
	return true
}

// labelValuesValid 标签值必须是合法 UTF-8，否则文本格式无法解析
func labelValuesValid(labels []Label) bool {
	for _, l := range labels {
		if !model.LabelValue(l.Value).IsValid() {
			return false
		}
	}
	return true
}
