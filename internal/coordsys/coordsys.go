package coordsys

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

var (
	// ErrUnknownSystem：未登记的坐标系名称
	ErrUnknownSystem = errors.New("unknown coordinate system")
	// ErrUnknownFormat：无法按数值量级识别输入属于哪个坐标系
	ErrUnknownFormat = errors.New("cannot classify coordinate input")
)

// System：坐标系标识
type System string

const (
	WGS84    System = "WGS84"
	RT90     System = "RT90"
	SWEREF99 System = "SWEREF99"
)

// Systems：展示与 ConvertToAll 的固定顺序
var Systems = []System{WGS84, RT90, SWEREF99}

// EPSG：对应的 EPSG 代码
func (s System) EPSG() int {
	switch s {
	case WGS84:
		return 4326
	case RT90:
		return 3021
	case SWEREF99:
		return 3006
	}
	return 0
}

// Projected：是否为平面网格坐标（米）
func (s System) Projected() bool { return s == RT90 || s == SWEREF99 }

// ParseSystem：接受名称或 EPSG 代码（大小写与空白不敏感）
func ParseSystem(v string) (System, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "WGS84", "WGS 84", "EPSG:4326", "4326":
		return WGS84, nil
	case "RT90", "RT 90", "RT90 2.5 GON V", "EPSG:3021", "3021":
		return RT90, nil
	case "SWEREF99", "SWEREF 99", "SWEREF99 TM", "SWEREF 99 TM", "EPSG:3006", "3006":
		return SWEREF99, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSystem, v)
}

// 坐标参考系由 wgs84 的 EPSG 库提供：
// EPSG:3006 为 GRS80 tmerc lon_0=15 k=0.9996 x_0=500000；
// EPSG:3021 为 Bessel tmerc lon_0=15.808277777… k=1 x_0=1500000，towgs84=414.1,41.3,603.1,-0.855,2.141,-7.023,0。
var epsg = wgs84.EPSG()

func referenceSystem(s System) (wgs84.CoordinateReferenceSystem, error) {
	code := s.EPSG()
	if code == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSystem, s)
	}
	crs := epsg.Code(code)
	if crs == nil {
		return nil, fmt.Errorf("%w: EPSG:%d", ErrUnknownSystem, code)
	}
	return crs, nil
}

// 文档注释：坐标转换
// 背景：内部一律使用 orb.Point，WGS84 为 (lon, lat)，网格为 (easting, northing)；展示顺序的交换只在 Pair 中进行。
// 约束：输出按坐标系取整，WGS84 保留 5 位小数，网格取整到米。
func Convert(pt orb.Point, from, to System) (orb.Point, error) {
	out, err := transform(pt, from, to)
	if err != nil {
		return orb.Point{}, err
	}
	return Round(out, to), nil
}

// All：同一位置在三个坐标系中的表示
type All struct {
	WGS84    orb.Point
	RT90     orb.Point
	SWEREF99 orb.Point
}

// Get：按坐标系取值
func (a All) Get(s System) orb.Point {
	switch s {
	case RT90:
		return a.RT90
	case SWEREF99:
		return a.SWEREF99
	}
	return a.WGS84
}

// ConvertToAll：一次转换到全部坐标系（源坐标系本身也按规则取整）
func ConvertToAll(pt orb.Point, from System) (All, error) {
	if _, err := referenceSystem(from); err != nil {
		return All{}, err
	}
	var a All
	for _, to := range Systems {
		out, err := Convert(pt, from, to)
		if err != nil {
			return All{}, err
		}
		switch to {
		case WGS84:
			a.WGS84 = out
		case RT90:
			a.RT90 = out
		case SWEREF99:
			a.SWEREF99 = out
		}
	}
	return a, nil
}

// Round：WGS84 取 5 位小数，网格坐标取整到米
func Round(pt orb.Point, s System) orb.Point {
	if s.Projected() {
		return orb.Point{math.Round(pt[0]), math.Round(pt[1])}
	}
	return orb.Point{round5(pt[0]), round5(pt[1])}
}

func round5(v float64) float64 { return math.Round(v*1e5) / 1e5 }

// transform：未取整的转换；同一坐标系原样返回
func transform(pt orb.Point, from, to System) (orb.Point, error) {
	src, err := referenceSystem(from)
	if err != nil {
		return orb.Point{}, err
	}
	dst, err := referenceSystem(to)
	if err != nil {
		return orb.Point{}, err
	}
	if !finitePoint(pt) {
		return orb.Point{}, fmt.Errorf("%w: non-finite input", ErrUnknownFormat)
	}
	if from == to {
		return pt, nil
	}
	a, b, _ := wgs84.Transform(src, dst)(pt[0], pt[1], 0)
	out := orb.Point{a, b}
	if !finitePoint(out) {
		return orb.Point{}, fmt.Errorf("%w: %s to %s out of domain", ErrUnknownFormat, from, to)
	}
	return out, nil
}

func finitePoint(pt orb.Point) bool {
	for _, v := range pt {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
