package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/iwt-cmd/awx/xerrors"
)

const (
	MetricHTTPServerRequestTotal    = "awx_exporter_http_requests_total"
	MetricHTTPServerDurationSeconds = "awx_exporter_http_request_duration_seconds"
)

var defaultHTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// HTTPServerMetricsConfig HTTP 服务端 RED 指标配置
type HTTPServerMetricsConfig struct {
	Service             string
	RequestTotalName    string
	RequestDurationName string
	DurationBuckets     []float64
	StaticLabels        []Label
}

// DefaultHTTPServerMetricsConfig 默认配置
func DefaultHTTPServerMetricsConfig(service string) *HTTPServerMetricsConfig {
	return &HTTPServerMetricsConfig{
		Service:             service,
		RequestTotalName:    MetricHTTPServerRequestTotal,
		RequestDurationName: MetricHTTPServerDurationSeconds,
		DurationBuckets:     defaultHTTPDurationBuckets,
	}
}

// HTTPServerMetrics HTTP 请求计数与耗时
type HTTPServerMetrics struct {
	service      string
	requestTotal Counter
	duration     Histogram
	staticLabels []Label
}

// NewHTTPServerMetrics 在 m 上创建 HTTP RED 指标
func NewHTTPServerMetrics(m Meter, cfg *HTTPServerMetricsConfig) (*HTTPServerMetrics, error) {
	if m == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "metrics: meter is nil")
	}
	if cfg == nil {
		cfg = DefaultHTTPServerMetricsConfig("")
	}

	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		service = "unknown"
	}
	totalName := strings.TrimSpace(cfg.RequestTotalName)
	if totalName == "" {
		totalName = MetricHTTPServerRequestTotal
	}
	durationName := strings.TrimSpace(cfg.RequestDurationName)
	if durationName == "" {
		durationName = MetricHTTPServerDurationSeconds
	}

	counter, err := m.Counter(totalName, "Total number of HTTP requests served by the exporter.")
	if err != nil {
		return nil, err
	}

	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = defaultHTTPDurationBuckets
	}
	duration, err := m.Histogram(durationName, "HTTP request duration in seconds.", WithUnit("s"), WithBuckets(buckets))
	if err != nil {
		return nil, err
	}

	return &HTTPServerMetrics{
		service:      service,
		requestTotal: counter,
		duration:     duration,
		staticLabels: append([]Label(nil), cfg.StaticLabels...),
	}, nil
}

// Observe 记录一次请求，nil 接收者是空操作
func (m *HTTPServerMetrics) Observe(ctx context.Context, method string, route string, status int, d time.Duration) {
	if m == nil {
		return
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	route = strings.TrimSpace(route)
	if route == "" {
		route = UnknownRoute
	}

	labels := make([]Label, 0, len(m.staticLabels)+6)
	labels = append(labels, m.staticLabels...)
	labels = append(labels,
		L(LabelService, m.service),
		L(LabelOperation, OperationHTTPServer),
		L(LabelMethod, method),
		L(LabelRoute, route),
		L(LabelStatusClass, HTTPStatusClass(status)),
		L(LabelOutcome, HTTPOutcome(status)),
	)

	m.requestTotal.Inc(ctx, labels...)
	m.duration.Record(ctx, d.Seconds(), labels...)
}
