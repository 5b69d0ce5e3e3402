package breaker

// 指标名
const (
	// MetricRequestsTotal 经过熔断器的请求数 (Counter)，按 key 与 result 区分
	MetricRequestsTotal = "awx_exporter_breaker_requests_total"

	// MetricStateChanges 状态变更次数 (Counter)
	MetricStateChanges = "awx_exporter_breaker_state_changes_total"

	LabelKey       = "key"
	LabelResult    = "result"
	LabelFromState = "from_state"
	LabelToState   = "to_state"
)

// result 标签取值
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
)
