package analytics

import "time"

// Failure 一条计算规则的失败记录
type Failure struct {
	Metric string
	Err    error
}

// Snapshot 一次请求的采集结果，样本按注册顺序分组
type Snapshot struct {
	Samples     []Sample
	Failures    []Failure
	CollectedAt time.Time
}

// Empty 没有任何样本
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Samples) == 0
}

// Failed 指定指标是否失败
func (s *Snapshot) Failed(metric string) bool {
	if s == nil {
		return false
	}
	for _, f := range s.Failures {
		if f.Metric == metric {
			return true
		}
	}
	return false
}

// Names 按出现顺序去重后的指标名
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	var names []string
	seen := make(map[string]struct{})
	for _, smp := range s.Samples {
		if _, ok := seen[smp.Name]; ok {
			continue
		}
		seen[smp.Name] = struct{}{}
		names = append(names, smp.Name)
	}
	return names
}
