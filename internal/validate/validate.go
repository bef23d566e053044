// 包 validate：坐标合理性粗过滤
package validate

import (
	"math"
	"sverigekartan/internal/metrics"
)

// ReasonOutOfRange：越界坐标写入人工复核字段的原因
const ReasonOutOfRange = "coordinate outside expected range"

// Bounds：纬度/经度闭区间
type Bounds struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// DefaultBounds：覆盖瑞典本土的宽松范围（纬度 55–70，经度 10–25）
func DefaultBounds() Bounds {
	return Bounds{LatMin: 55, LatMax: 70, LonMin: 10, LonMax: 25}
}

// Verdict：判定结果；InScope 为 false 时 Reason 非空
type Verdict struct {
	InScope bool
	Reason  string
}

// Validator：按配置范围判定坐标是否值得做区划判定
type Validator struct {
	b Bounds
}

func New(b Bounds) *Validator { return &Validator{b: b} }

// Validate：两个分量均为有限数且落在闭区间内视为在范围内
// 约束：仅是粗过滤，范围内的点仍可能不命中任何要素
func (v *Validator) Validate(lat, lon float64) Verdict {
	if !finite(lat) || !finite(lon) ||
		lat < v.b.LatMin || lat > v.b.LatMax ||
		lon < v.b.LonMin || lon > v.b.LonMax {
		metrics.ValidateRejectTotal.Inc()
		return Verdict{InScope: false, Reason: ReasonOutOfRange}
	}
	return Verdict{InScope: true}
}

// Bounds：当前生效的范围
func (v *Validator) Bounds() Bounds { return v.b }

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
