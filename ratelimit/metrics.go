package ratelimit

// 指标名
const (
	// MetricRequestsTotal 限流检查次数 (Counter)，按 result 区分 allowed/denied
	MetricRequestsTotal = "awx_exporter_ratelimit_requests_total"

	// LabelResult 结果标签
	LabelResult = "result"
)
