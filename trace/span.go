package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// 采集链路的 Span 属性
const (
	AttrMetricName   = "awx.metric.name"
	AttrMetricSource = "awx.metric.source"
	AttrSampleCount  = "awx.metric.samples"
	AttrDBOnly       = "awx.collect.dbonly"
)

// InstrumentationName 本项目 Tracer 的名字
const InstrumentationName = "github.com/iwt-cmd/awx"

// SpanNameCollect 一次完整采集
const SpanNameCollect = "metrics.collect"

// SpanNameCompute 返回单个指标计算的 Span 名
func SpanNameCompute(metric string) string {
	if metric == "" {
		return "metrics.compute"
	}
	return "metrics.compute " + metric
}

// Tracer 返回 tp 上的 Tracer，tp 为 nil 时使用全局 Provider
func Tracer(tp oteltrace.TracerProvider) oteltrace.Tracer {
	if tp == nil {
		return otel.Tracer(InstrumentationName)
	}
	return tp.Tracer(InstrumentationName)
}

// StartComputeSpan 为单个指标计算启动内部 Span
func StartComputeSpan(ctx context.Context, tracer oteltrace.Tracer, metric, source string) (context.Context, oteltrace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tracer == nil {
		tracer = Tracer(nil)
	}
	return tracer.Start(ctx, SpanNameCompute(metric),
		oteltrace.WithSpanKind(oteltrace.SpanKindInternal),
		oteltrace.WithAttributes(
			attribute.String(AttrMetricName, metric),
			attribute.String(AttrMetricSource, source),
		),
	)
}

// MarkSpanError err 不为 nil 时记录错误并把 Span 状态置为 Error
func MarkSpanError(span oteltrace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
