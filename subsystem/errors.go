package subsystem

import "github.com/iwt-cmd/awx/xerrors"

var (
	// ErrUnavailable Redis 不可达或熔断打开
	ErrUnavailable = xerrors.New("subsystem: unavailable")

	// ErrInvalidConfig 配置非法
	ErrInvalidConfig = xerrors.New("subsystem: invalid config")

	// ErrUnknownMetric 指标名不在子系统指标列表中
	ErrUnknownMetric = xerrors.New("subsystem: unknown metric")

	// ErrKindMismatch 对计数器调用 Set，或对仪表调用 Inc
	ErrKindMismatch = xerrors.New("subsystem: operation does not match metric kind")

	// ErrInvalidValue 值非法：非有限值、整数指标的小数值、计数器的负增量
	ErrInvalidValue = xerrors.New("subsystem: invalid value")
)
