package analytics

import "github.com/iwt-cmd/awx/xerrors"

var (
	// ErrSourceUnavailable 数据源无法回答查询，对应指标被省略
	ErrSourceUnavailable = xerrors.New("analytics: metric source unavailable")

	// ErrDuplicateMetric 注册表中出现重名指标，属于启动期致命错误
	ErrDuplicateMetric = xerrors.New("analytics: duplicate metric")

	// ErrInvalidDefinition 指标定义不合法（名称、标签或计算函数）
	ErrInvalidDefinition = xerrors.New("analytics: invalid metric definition")

	// ErrUnknownMetric 样本引用了注册表中不存在的指标
	ErrUnknownMetric = xerrors.New("analytics: unknown metric")
)

var errNoSource = xerrors.New("analytics: source not configured")
