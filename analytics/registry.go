package analytics

import (
	"regexp"

	"github.com/iwt-cmd/awx/xerrors"
)

// MetricPrefix 所有指标名的固定前缀
const MetricPrefix = "awx_"

var (
	metricNameRE = regexp.MustCompile(`^awx_[a-z0-9]+(_[a-z0-9]+)*$`)
	labelNameRE  = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Registry 不可变的指标定义目录。
//
// 启动时构建一次，以引用传给 Aggregator 与 Encoder。Definitions 每次返回相同顺序，
// 使重复抓取的输出除数值外逐字节一致。
type Registry struct {
	defs  []Definition
	index map[string]int
}

// NewRegistry 校验并按给定顺序注册定义。重名返回 ErrDuplicateMetric
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		defs:  make([]Definition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if err := validateDefinition(d); err != nil {
			return nil, err
		}
		if _, dup := r.index[d.Name]; dup {
			return nil, xerrors.Wrapf(ErrDuplicateMetric, "%s", d.Name)
		}
		d.LabelKeys = append([]string(nil), d.LabelKeys...)
		r.index[d.Name] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	return r, nil
}

// MustNewRegistry 与 NewRegistry 相同，出错时 panic
func MustNewRegistry(defs ...Definition) *Registry {
	return xerrors.Must(NewRegistry(defs...))
}

// Definitions 按注册顺序返回定义的副本
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Lookup 按名字查找定义
func (r *Registry) Lookup(name string) (Definition, bool) {
	i, ok := r.index[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// Filter 返回本次采集需要执行的定义，保持注册顺序
func (r *Registry) Filter(opts CollectOptions) []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		if opts.includes(d) {
			out = append(out, d)
		}
	}
	return out
}

// Len 定义数量
func (r *Registry) Len() int {
	return len(r.defs)
}

func validateDefinition(d Definition) error {
	if d.Name == "" {
		return xerrors.Wrap(ErrInvalidDefinition, "empty name")
	}
	if !metricNameRE.MatchString(d.Name) {
		return xerrors.Wrapf(ErrInvalidDefinition, "%s: name must be snake_case with prefix %q", d.Name, MetricPrefix)
	}
	if d.Kind != Gauge && d.Kind != Counter {
		return xerrors.Wrapf(ErrInvalidDefinition, "%s: unknown kind %d", d.Name, d.Kind)
	}
	if d.Compute == nil {
		return xerrors.Wrapf(ErrInvalidDefinition, "%s: compute is nil", d.Name)
	}
	seen := make(map[string]struct{}, len(d.LabelKeys))
	for _, k := range d.LabelKeys {
		if !labelNameRE.MatchString(k) {
			return xerrors.Wrapf(ErrInvalidDefinition, "%s: invalid label %q", d.Name, k)
		}
		if _, dup := seen[k]; dup {
			return xerrors.Wrapf(ErrInvalidDefinition, "%s: duplicate label %q", d.Name, k)
		}
		seen[k] = struct{}{}
	}
	return nil
}
