package geocode

import (
	"net"
	"strings"
	"sverigekartan/internal/logger"

	"github.com/oschwald/geoip2-golang"
)

// 文档注释：地名搜索的国家范围
// 背景：请求未显式指定国家时，按客户端 IP 所在国家限定搜索；无 GeoIP 库或查询失败时回退到配置的默认国家。
type CountryScope struct {
	db       *geoip2.Reader
	fallback string
}

// OpenCountryScope：path 为空时仅使用默认国家
func OpenCountryScope(path, fallback string) (*CountryScope, error) {
	s := &CountryScope{fallback: strings.ToLower(fallback)}
	if path == "" {
		return s, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return s, err
	}
	s.db = db
	return s, nil
}

// Country：优先级 explicit > GeoIP(ip) > 默认国家；返回小写 ISO 代码
func (s *CountryScope) Country(explicit, ip string) string {
	if e := strings.TrimSpace(explicit); e != "" {
		return strings.ToLower(e)
	}
	if s == nil {
		return ""
	}
	if s.db != nil {
		if parsed := net.ParseIP(ip); parsed != nil {
			rec, err := s.db.Country(parsed)
			if err != nil {
				logger.L().Debug("geoip_lookup_error", "ip", ip, "err", err)
			} else if iso := rec.Country.IsoCode; iso != "" {
				return strings.ToLower(iso)
			}
		}
	}
	return s.fallback
}

func (s *CountryScope) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
