// 包 boundary：行政区边界数据集（län/kommun/landskap/socken）的内存模型与加载
package boundary

import (
	"errors"

	"github.com/paulmach/orb"
)

var (
	// ErrDatasetUnavailable：任一数据集加载失败；调用方必须向用户展示，不得当作“未命中”
	ErrDatasetUnavailable = errors.New("boundary dataset unavailable")
	// ErrNotReady：数据集仍在加载中，调用方应排队等待或拒绝请求
	ErrNotReady = errors.New("boundary datasets not loaded yet")
)

// 文档注释：数据集配置记录
// 背景：不同来源文件的名称属性键不一致（lan / Landskap-lappmark / sockenstadnamn），注册时显式声明，调用点不再传递魔法字符串。
// 约束：Kind 在同一目录内唯一；Source 为相对 BOUNDARY_DIR 的文件、http(s) URL 或 pg:schema.table。
type Layer struct {
	Kind         string
	AttributeKey string
	Source       string
}

// DefaultLayers：瑞典行政区四个层级的默认配置，顺序即归属记录的字段顺序
func DefaultLayers() []Layer {
	return []Layer{
		{Kind: "lan", AttributeKey: "lan", Source: "lan.geojson"},
		{Kind: "kommun", AttributeKey: "kommun", Source: "kommun.geojson"},
		{Kind: "landskap", AttributeKey: "Landskap-lappmark", Source: "landskap-lappmark.geojson"},
		{Kind: "socken", AttributeKey: "sockenstadnamn", Source: "socken.geojson"},
	}
}

// Feature：一个行政区面要素；加载后几何与属性均不可变
// 约束：Geometry 为 nil 或非面类型时保留占位但永不命中
type Feature struct {
	Geometry   orb.Geometry
	Attributes map[string]string
}

// Attr：读取属性值；缺失时返回空串与 false
func (f *Feature) Attr(key string) (string, bool) {
	if f == nil || f.Attributes == nil {
		return "", false
	}
	v, ok := f.Attributes[key]
	return v, ok
}

// 文档注释：只读数据集
// 背景：进程内共享，加载完成后不再修改；查询时按插入顺序遍历候选，首个包含点的要素生效。
type Dataset struct {
	Layer    Layer
	features []Feature
	index    Index
}

// NewDataset：以给定要素顺序构建数据集并建立包围盒索引
func NewDataset(layer Layer, features []Feature) *Dataset {
	fs := make([]Feature, len(features))
	copy(fs, features)
	return &Dataset{Layer: layer, features: fs, index: newBBoxIndex(fs)}
}

// WithIndex：替换候选索引（如 R-Tree）；索引必须按插入顺序升序给出候选
func (d *Dataset) WithIndex(ix Index) *Dataset {
	return &Dataset{Layer: d.Layer, features: d.features, index: ix}
}

// Len：要素数量；nil 数据集视为 0
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.features)
}

// Feature：按插入序号取要素
func (d *Dataset) Feature(i int) *Feature {
	if d == nil || i < 0 || i >= len(d.features) {
		return nil
	}
	return &d.features[i]
}

// Candidates：按插入顺序枚举可能包含 pt 的要素序号；fn 返回 false 时停止
func (d *Dataset) Candidates(pt orb.Point, fn func(i int) bool) {
	if d == nil || d.index == nil {
		return
	}
	d.index.Candidates(pt, fn)
}
