package metrics

// Label 指标标签。标签值应当低基数，不要使用用户 ID、请求 ID 之类的值
type Label struct {
	Key   string
	Value string
}

// L 创建 Label
//
//	counter.Inc(ctx, metrics.L("metric", "awx_hosts_total"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}
