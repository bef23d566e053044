package api

import (
	"sverigekartan/internal/coordsys"
	"sverigekartan/internal/geocode"
	"sverigekartan/internal/resolver"
)

// 文档注释：对外返回结构
// 约束：字段稳定；新增字段需评估前端依赖。
type layerInfo struct {
	Kind         string `json:"kind"`
	AttributeKey string `json:"attribute_key"`
	Source       string `json:"source"`
	Features     int    `json:"features"`
}

type resolveResult struct {
	Lat          float64          `json:"lat"`
	Lon          float64          `json:"lon"`
	InScope      bool             `json:"in_scope"`
	Regions      []resolver.Field `json:"regions"`
	ManualReview string           `json:"manual_review,omitempty"`
}

type infoResult struct {
	resolveResult
	Coordinates string           `json:"coordinates"`
	Address     *geocode.Address `json:"address,omitempty"`
	Notice      string           `json:"notice,omitempty"`
	Sources     []string         `json:"sources"`
}

type displayCoord struct {
	System coordsys.System `json:"system"`
	EPSG   int             `json:"epsg"`
	coordsys.Pair
	Text string `json:"text"`
}

type convertResult struct {
	Input   coordsys.System `json:"input_system"`
	Results []displayCoord  `json:"results"`
}

type errorBody struct {
	Error string `json:"error"`
}
