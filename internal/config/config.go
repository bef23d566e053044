// 包 config：集中读取环境变量配置（.env 由入口先行加载）
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sverigekartan/internal/boundary"
	"sverigekartan/internal/validate"
	"time"
)

var (
	ErrBadLayer  = errors.New("bad BOUNDARY_LAYERS entry")
	ErrBadBounds = errors.New("bad plausibility bounds")
)

// Config：服务与 CLI 共用的配置
type Config struct {
	Addr    string
	APIBase string
	UIDir   string

	BoundaryDir string
	Layers      []boundary.Layer
	Bounds      validate.Bounds

	GeocodeEnabled     bool
	GeocodeConcurrency int
	NominatimURL       string
	NominatimUserAgent string
	NominatimRPS       float64
	SearchLimit        int
	SearchCountry      string
	GeoIPDB            string

	CacheSize int
	CacheTTL  time.Duration
	// RedisHost 为空时不启用 Redis 缓存层
	RedisHost string

	RateLimitEnabled bool
	RateLimitQPS     int
	MaxUploadBytes   int64
}

// LoadFromEnv：读取环境变量并填充默认值
//
// 环境变量：
//   - ADDR（默认 :8080）、API_BASE（默认 /api）、UI_DIST（默认 ui/dist）
//   - BOUNDARY_DIR（默认 data/boundaries）、BOUNDARY_LAYERS（kind:attr:source，逗号分隔；默认四个瑞典层级）
//   - BOUNDS_LAT_MIN/MAX、BOUNDS_LON_MIN/MAX（默认 55/70、10/25）
//   - GEOCODE_ENABLED（默认 false）、GEOCODE_CONCURRENCY（默认 1）
//   - NOMINATIM_URL、NOMINATIM_USER_AGENT、NOMINATIM_RPS（默认 1）
//   - SEARCH_LIMIT（默认 5）、SEARCH_COUNTRY（默认 se）、GEOIP_DB
//   - GEOCODE_CACHE_SIZE（默认 10000）、GEOCODE_CACHE_TTL_S（默认 86400）、REDIS_HOST
//   - RATE_LIMIT_ENABLED、RATE_LIMIT_QPS（默认 200）、MAX_UPLOAD_MB（默认 20）
func LoadFromEnv() (Config, error) {
	c := Config{
		Addr:               envOr("ADDR", ":8080"),
		APIBase:            envOr("API_BASE", "/api"),
		UIDir:              envOr("UI_DIST", "ui/dist"),
		BoundaryDir:        envOr("BOUNDARY_DIR", "data/boundaries"),
		Layers:             boundary.DefaultLayers(),
		Bounds:             validate.DefaultBounds(),
		GeocodeEnabled:     os.Getenv("GEOCODE_ENABLED") == "true",
		GeocodeConcurrency: envInt("GEOCODE_CONCURRENCY", 1),
		NominatimURL:       envOr("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: envOr("NOMINATIM_USER_AGENT", "sverigekartan/1.0"),
		NominatimRPS:       envFloat("NOMINATIM_RPS", 1),
		SearchLimit:        envInt("SEARCH_LIMIT", 5),
		SearchCountry:      envOr("SEARCH_COUNTRY", "se"),
		GeoIPDB:            strings.TrimSpace(os.Getenv("GEOIP_DB")),
		CacheSize:          envInt("GEOCODE_CACHE_SIZE", 10000),
		CacheTTL:           time.Duration(envInt("GEOCODE_CACHE_TTL_S", 86400)) * time.Second,
		RedisHost:          strings.TrimSpace(os.Getenv("REDIS_HOST")),
		RateLimitEnabled:   os.Getenv("RATE_LIMIT_ENABLED") == "true",
		RateLimitQPS:       envInt("RATE_LIMIT_QPS", 200),
		MaxUploadBytes:     int64(envInt("MAX_UPLOAD_MB", 20)) << 20,
	}
	if v := strings.TrimSpace(os.Getenv("BOUNDARY_LAYERS")); v != "" {
		ls, err := ParseLayers(v)
		if err != nil {
			return c, err
		}
		c.Layers = ls
	}
	c.Bounds.LatMin = envFloat("BOUNDS_LAT_MIN", c.Bounds.LatMin)
	c.Bounds.LatMax = envFloat("BOUNDS_LAT_MAX", c.Bounds.LatMax)
	c.Bounds.LonMin = envFloat("BOUNDS_LON_MIN", c.Bounds.LonMin)
	c.Bounds.LonMax = envFloat("BOUNDS_LON_MAX", c.Bounds.LonMax)
	return c, nil
}

// Validate：检查配置的一致性
func (c Config) Validate() error {
	if len(c.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrBadLayer)
	}
	seen := make(map[string]bool, len(c.Layers))
	for _, l := range c.Layers {
		if l.Kind == "" || l.AttributeKey == "" || l.Source == "" {
			return fmt.Errorf("%w: %+v", ErrBadLayer, l)
		}
		if seen[l.Kind] {
			return fmt.Errorf("%w: duplicate kind %q", ErrBadLayer, l.Kind)
		}
		seen[l.Kind] = true
	}
	b := c.Bounds
	if b.LatMin >= b.LatMax || b.LonMin >= b.LonMax || b.LatMin < -90 || b.LatMax > 90 || b.LonMin < -180 || b.LonMax > 180 {
		return fmt.Errorf("%w: %+v", ErrBadBounds, b)
	}
	if c.GeocodeConcurrency < 1 {
		return errors.New("GEOCODE_CONCURRENCY must be >= 1")
	}
	if c.GeocodeEnabled && c.NominatimUserAgent == "" {
		return errors.New("NOMINATIM_USER_AGENT is required when geocoding is enabled")
	}
	return nil
}

// NeedsPostgres：任一层级来源为 pg: 时需要打开数据库
func (c Config) NeedsPostgres() bool {
	for _, l := range c.Layers {
		if strings.HasPrefix(l.Source, "pg:") {
			return true
		}
	}
	return false
}

// ParseLayers：解析 "kind:attr:source,kind:attr:source"
// 约束：source 可包含冒号（URL 与 pg:schema.table），仅按前两个冒号切分
func ParseLayers(v string) ([]boundary.Layer, error) {
	var out []boundary.Layer
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f := strings.SplitN(part, ":", 3)
		if len(f) != 3 || f[0] == "" || f[1] == "" || f[2] == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadLayer, part)
		}
		out = append(out, boundary.Layer{Kind: f[0], AttributeKey: f[1], Source: f[2]})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadLayer)
	}
	return out, nil
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, e := strconv.Atoi(strings.TrimSpace(v)); e == nil {
			return n
		}
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if n, e := strconv.ParseFloat(strings.TrimSpace(v), 64); e == nil {
			return n
		}
	}
	return def
}
