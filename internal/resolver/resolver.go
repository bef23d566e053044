// 包 resolver：点到行政区名称的判定（首个包含点的要素生效）
package resolver

import (
	"sverigekartan/internal/boundary"
	"sverigekartan/internal/metrics"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	// ReasonNoMatch：任一层级未命中时写入人工复核字段的原因
	ReasonNoMatch = "no polygon match"
	// ReasonNoActiveLayers：没有任何已注册层级参与判定
	ReasonNoActiveLayers = "no polygon match in active layers"
)

// Resolve：在单个数据集内按插入顺序查找首个包含 pt 的要素，返回其 attr 属性
// 约束：pt 为 (lon, lat)；数据集为 nil/空/未加载时确定性返回 ("", false)，不报错
// 说明：边界相交时以插入顺序靠前者为准；命中要素缺少该属性时返回 ("", true)
func Resolve(pt orb.Point, ds *boundary.Dataset, attr string) (string, bool) {
	var (
		val   string
		found bool
	)
	ds.Candidates(pt, func(i int) bool {
		f := ds.Feature(i)
		if f == nil || !contains(f.Geometry, pt) {
			return true
		}
		val, _ = f.Attr(attr)
		found = true
		return false
	})
	return val, found
}

// contains：面要素包含判定（外环内且不在洞内；边界上视为包含）
func contains(g orb.Geometry, pt orb.Point) bool {
	switch v := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(v, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(v, pt)
	case orb.Collection:
		for _, c := range v {
			if contains(c, pt) {
				return true
			}
		}
	}
	return false
}

// Field：单个层级的判定结果
type Field struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// 文档注释：归属记录
// 背景：一个点在各层级的判定结果；某层未命中不影响其他层，只在 ManualReview 中标注。
type Record struct {
	Fields       []Field `json:"fields"`
	ManualReview string  `json:"manual_review,omitempty"`
}

// Value：按层级取名称；未命中或未参与判定时为空串
func (r Record) Value(kind string) string {
	for _, f := range r.Fields {
		if f.Kind == kind {
			return f.Value
		}
	}
	return ""
}

// Found：该层级是否命中
func (r Record) Found(kind string) bool {
	for _, f := range r.Fields {
		if f.Kind == kind {
			return f.Found
		}
	}
	return false
}

// Resolver：基于注入的数据集目录进行多层级判定
type Resolver struct {
	cat *boundary.Catalog
}

func New(cat *boundary.Catalog) *Resolver { return &Resolver{cat: cat} }

// Catalog：返回注入的目录（供调用方检查就绪状态）
func (r *Resolver) Catalog() *boundary.Catalog { return r.cat }

// ResolveAll：完整判定，对目录中全部层级按注册顺序执行
// 返回：目录未就绪（boundary.ErrNotReady）或加载失败（boundary.ErrDatasetUnavailable）时不做判定，直接返回错误
func (r *Resolver) ResolveAll(pt orb.Point) (Record, error) {
	metrics.ResolveRequestsTotal.WithLabelValues("full").Inc()
	if err := r.cat.Status(); err != nil {
		return Record{}, err
	}
	return r.resolve(pt, r.cat.Layers()), nil
}

// ResolveScoped：交互式判定，仅对调用方给出的活动层级执行；未注册的层级忽略
func (r *Resolver) ResolveScoped(pt orb.Point, kinds []string) (Record, error) {
	metrics.ResolveRequestsTotal.WithLabelValues("scoped").Inc()
	if err := r.cat.Status(); err != nil {
		return Record{}, err
	}
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var layers []boundary.Layer
	for _, l := range r.cat.Layers() {
		if want[l.Kind] {
			layers = append(layers, l)
		}
	}
	return r.resolve(pt, layers), nil
}

func (r *Resolver) resolve(pt orb.Point, layers []boundary.Layer) Record {
	rec := Record{Fields: make([]Field, 0, len(layers))}
	if len(layers) == 0 {
		rec.ManualReview = ReasonNoActiveLayers
		return rec
	}
	for _, l := range layers {
		ds, _ := r.cat.Dataset(l.Kind)
		v, ok := Resolve(pt, ds, l.AttributeKey)
		if !ok {
			metrics.ResolveMissTotal.WithLabelValues(l.Kind).Inc()
			rec.ManualReview = ReasonNoMatch
		}
		rec.Fields = append(rec.Fields, Field{Kind: l.Kind, Value: v, Found: ok})
	}
	return rec
}
