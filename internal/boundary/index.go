package boundary

import "github.com/paulmach/orb"

// 文档注释：候选索引接口
// 背景：当前规模（单层数千要素）线性扫描足够；接口保留给后续 R-Tree 替换。
// 约束：实现必须按插入序号升序回调，否则“首个命中”语义被破坏。
type Index interface {
	Candidates(pt orb.Point, fn func(i int) bool)
}

// bboxIndex：包围盒线性过滤
type bboxIndex struct {
	bounds []orb.Bound
	areal  []bool
}

func newBBoxIndex(fs []Feature) *bboxIndex {
	ix := &bboxIndex{bounds: make([]orb.Bound, len(fs)), areal: make([]bool, len(fs))}
	for i := range fs {
		if !isAreal(fs[i].Geometry) {
			continue
		}
		ix.bounds[i] = fs[i].Geometry.Bound()
		ix.areal[i] = true
	}
	return ix
}

func (ix *bboxIndex) Candidates(pt orb.Point, fn func(i int) bool) {
	for i, b := range ix.bounds {
		if !ix.areal[i] || !b.Contains(pt) {
			continue
		}
		if !fn(i) {
			return
		}
	}
}

// isAreal：仅 Polygon/MultiPolygon（及包含面的集合）参与判定
func isAreal(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	case orb.Collection:
		for _, c := range v {
			if isAreal(c) {
				return true
			}
		}
	}
	return false
}
