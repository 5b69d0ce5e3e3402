package analytics

import (
	"context"
	"time"
)

// Kind 指标类型
type Kind int

const (
	Gauge Kind = iota
	Counter
)

func (k Kind) String() string {
	if k == Counter {
		return "counter"
	}
	return "gauge"
}

// ValueType 指标的数值类型。Integer 指标拒绝带小数部分的样本
type ValueType int

const (
	Integer ValueType = iota
	Float
)

func (v ValueType) String() string {
	if v == Float {
		return "float"
	}
	return "integer"
}

// Source 指标的数据来源
type Source int

const (
	// SourceStatic 进程内常量，例如 awx_system_info
	SourceStatic Source = iota
	// SourceDatabase 来自领域存储
	SourceDatabase
	// SourceSubsystem 来自 Redis 中各节点上报的子系统指标，dbonly 时跳过
	SourceSubsystem
)

func (s Source) String() string {
	switch s {
	case SourceDatabase:
		return "database"
	case SourceSubsystem:
		return "subsystem"
	default:
		return "static"
	}
}

// Label 有序标签对
type Label struct {
	Key   string
	Value string
}

// L 构造 Label
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// Sample 一个样本。Name 为空时由聚合器填入所属定义的名字
type Sample struct {
	Name      string
	Labels    []Label
	Value     float64
	Timestamp *time.Time
}

// Point 构造不带名字的样本，供计算函数返回
func Point(value float64, labels ...Label) Sample {
	return Sample{Labels: labels, Value: value}
}

// ComputeFunc 计算规则。只允许只读查询，返回零个或多个样本
type ComputeFunc func(ctx context.Context) ([]Sample, error)

// Definition 指标定义，注册后不可变
type Definition struct {
	Name      string
	Kind      Kind
	ValueType ValueType
	Help      string
	LabelKeys []string
	Source    Source
	Compute   ComputeFunc
}

// CollectOptions 单次采集的选项
type CollectOptions struct {
	// DBOnly 只采集来自存储与进程内常量的指标
	DBOnly bool
}

func (o CollectOptions) includes(d Definition) bool {
	return !(o.DBOnly && d.Source == SourceSubsystem)
}
