package geocode

import (
	"strconv"

	geohash "github.com/TomiHiltunen/geohash-golang"
)

// DefaultPrecision：缓存键默认精度（9 位约 5m，同一建筑内的多行共享一次请求）
const DefaultPrecision = 9

// cacheKey：geohash 前缀即低精度编码，按精度截断；精度超出编码长度时退化为坐标文本
func cacheKey(lat, lon float64, precision int) string {
	h := geohash.Encode(lat, lon)
	if precision > 0 && precision <= len(h) {
		return h[:precision]
	}
	return strconv.FormatFloat(lat, 'f', 6, 64) + "," + strconv.FormatFloat(lon, 'f', 6, 64)
}
