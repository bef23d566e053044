// 包 geocode：Nominatim 逆地理编码与地名搜索，以及两级缓存
package geocode

import (
	"context"
	"errors"
)

// ErrNoResult：服务端正常响应但没有可用结果
var ErrNoResult = errors.New("no geocoding result")

// Address：逆地理编码结果（自由文本地址与国家/län/kommun 拆分）
type Address struct {
	DisplayName  string `json:"display_name"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
	County       string `json:"county,omitempty"`
	Municipality string `json:"municipality,omitempty"`
}

// Place：地名搜索结果
type Place struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Type string  `json:"type,omitempty"`
}

// Reverser：逆地理编码能力（批处理与交互查询共用）
type Reverser interface {
	Reverse(ctx context.Context, lat, lon float64) (Address, error)
}

// Searcher：正向地名搜索能力
type Searcher interface {
	Search(ctx context.Context, query, country string, limit int) ([]Place, error)
}
