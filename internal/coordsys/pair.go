package coordsys

import (
	"fmt"

	"github.com/paulmach/orb"
)

// 文档注释：展示顺序的坐标对
// 背景：用户输入与输出均为 (纬度, 经度) / (北, 东)，内部计算为 (经度, 纬度) / (东, 北)；轴序交换只在此处发生。
type Pair struct {
	First  float64 `json:"first"`
	Second float64 `json:"second"`
}

// PairOf：内部点 → 展示坐标对
func PairOf(pt orb.Point) Pair { return Pair{First: pt[1], Second: pt[0]} }

// Point：展示坐标对 → 内部点
func (p Pair) Point() orb.Point { return orb.Point{p.Second, p.First} }

// Format：按坐标系格式化（WGS84 五位小数，网格整米）
func (p Pair) Format(s System) string {
	if s.Projected() {
		return fmt.Sprintf("%.0f, %.0f", p.First, p.Second)
	}
	return fmt.Sprintf("%.5f, %.5f", p.First, p.Second)
}
