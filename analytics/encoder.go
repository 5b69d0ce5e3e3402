package analytics

import (
	"bytes"
	"context"
	"math"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/metrics"
)

// ContentType 文本格式 0.0.4 的响应类型
const ContentType = "text/plain; version=0.0.4"

// MetricEncodingDefects 编码阶段丢弃的样本数，标签: metric, reason
const MetricEncodingDefects = "awx_exporter_encoding_defects_total"

// Encoder 把 Snapshot 编码为 Prometheus 文本格式。
//
// 编码是全函数：不返回错误，也不会 panic。引用未注册指标的样本属于编程缺陷，
// 以 error 级别记录后丢弃，编码继续。
type Encoder struct {
	reg     *Registry
	logger  clog.Logger
	defects metrics.Counter
}

// NewEncoder 创建 Encoder
func NewEncoder(reg *Registry, opts ...Option) *Encoder {
	o := applyOptions(opts)
	defects, err := o.meter.Counter(MetricEncodingDefects, "Samples dropped by the encoder.")
	if err != nil {
		defects = discardCounter()
	}
	return &Encoder{
		reg:     reg,
		logger:  o.logger,
		defects: defects,
	}
}

// Encode 按注册顺序输出每个指标的 # HELP、# TYPE 与样本行，没有样本的指标不输出
func (e *Encoder) Encode(s *Snapshot) []byte {
	if s == nil {
		return []byte{}
	}

	grouped := make(map[string][]Sample, len(e.reg.defs))
	for _, smp := range s.Samples {
		def, ok := e.reg.Lookup(smp.Name)
		switch {
		case !ok:
			e.defect(smp.Name, "unknown_metric", ErrUnknownMetric)
			continue
		case !labelKeysMatch(def.LabelKeys, smp.Labels):
			e.defect(smp.Name, "label_mismatch", nil)
			continue
		case !labelValuesValid(smp.Labels):
			e.defect(smp.Name, "invalid_label_value", nil)
			continue
		case math.IsNaN(smp.Value) || math.IsInf(smp.Value, 0):
			e.defect(smp.Name, "non_finite", nil)
			continue
		}
		grouped[smp.Name] = append(grouped[smp.Name], smp)
	}

	var out bytes.Buffer
	var fam bytes.Buffer
	for _, def := range e.reg.defs {
		samples := grouped[def.Name]
		if len(samples) == 0 {
			continue
		}
		fam.Reset()
		if _, err := expfmt.MetricFamilyToText(&fam, toFamily(def, samples)); err != nil {
			e.logger.Error("encode metric family failed", clog.String("metric", def.Name), clog.Error(err))
			continue
		}
		out.Write(fam.Bytes())
	}
	return out.Bytes()
}

func (e *Encoder) defect(name, reason string, err error) {
	e.defects.Inc(context.Background(), metrics.L(metrics.LabelMetric, name), metrics.L(metrics.LabelReason, reason))
	e.logger.Error("sample not encoded",
		clog.String("metric", name),
		clog.String("reason", reason),
		clog.Error(err))
}

func toFamily(def Definition, samples []Sample) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name:   proto.String(def.Name),
		Help:   proto.String(def.Help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: make([]*dto.Metric, 0, len(samples)),
	}
	if def.Kind == Counter {
		mf.Type = dto.MetricType_COUNTER.Enum()
	}

	for _, s := range samples {
		m := &dto.Metric{}
		if len(s.Labels) > 0 {
			m.Label = make([]*dto.LabelPair, 0, len(s.Labels))
			for _, l := range s.Labels {
				m.Label = append(m.Label, &dto.LabelPair{
					Name:  proto.String(l.Key),
					Value: proto.String(l.Value),
				})
			}
		}
		if def.Kind == Counter {
			m.Counter = &dto.Counter{Value: proto.Float64(s.Value)}
		} else {
			m.Gauge = &dto.Gauge{Value: proto.Float64(s.Value)}
		}
		if s.Timestamp != nil {
			m.TimestampMs = proto.Int64(s.Timestamp.UnixMilli())
		}
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}
