package boundary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sverigekartan/internal/logger"
	"time"

	"github.com/lib/pq"
	"github.com/paulmach/orb/geojson"
)

// Fetcher：按 Layer 配置取回要素序列（顺序即文件/表中的顺序）
type Fetcher interface {
	Fetch(ctx context.Context, layer Layer) ([]Feature, error)
}

// 文档注释：多来源加载器
// 背景：边界数据默认是静态 GeoJSON 文件；同时支持 http(s) 远端文件与 PostGIS 表（pg:schema.table），便于与既有空间库对接。
// 约束：PostGIS 表需包含 id、geom、props(jsonb) 三列，按 id 升序读取以保证首个命中语义稳定。
type Loader struct {
	Dir    string
	Client *http.Client
	DB     *sql.DB
}

func (l *Loader) Fetch(ctx context.Context, layer Layer) ([]Feature, error) {
	src := strings.TrimSpace(layer.Source)
	switch {
	case src == "":
		return nil, fmt.Errorf("layer %s: empty source", layer.Kind)
	case strings.HasPrefix(src, "pg:"):
		return l.fetchPG(ctx, strings.TrimPrefix(src, "pg:"))
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.fetchHTTP(ctx, src)
	default:
		p := src
		if !filepath.IsAbs(p) {
			p = filepath.Join(l.Dir, p)
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		return ParseFeatureCollection(b)
	}
}

func (l *Loader) fetchHTTP(ctx context.Context, u string) ([]Feature, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: http %d", u, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	return ParseFeatureCollection(b)
}

var tableRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func (l *Loader) fetchPG(ctx context.Context, table string) ([]Feature, error) {
	if l.DB == nil {
		return nil, errors.New("pg source configured without database")
	}
	if !tableRe.MatchString(table) {
		return nil, fmt.Errorf("bad table name %q", table)
	}
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	q := fmt.Sprintf("SELECT ST_AsGeoJSON(geom), props::text FROM %s ORDER BY id", strings.Join(parts, "."))
	rows, err := l.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()
	var out []Feature
	for rows.Next() {
		var geom, props sql.NullString
		if err := rows.Scan(&geom, &props); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		var f Feature
		if geom.Valid && geom.String != "" {
			g, err := geojson.UnmarshalGeometry([]byte(geom.String))
			if err != nil {
				logger.L().Debug("pg_geometry_skip", "table", table, "err", err)
			} else {
				f.Geometry = g.Geometry()
			}
		}
		if props.Valid && props.String != "" {
			var p geojson.Properties
			if err := json.Unmarshal([]byte(props.String), &p); err != nil {
				return nil, fmt.Errorf("props %s: %w", table, err)
			}
			f.Attributes = stringAttrs(p)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows %s: %w", table, err)
	}
	return out, nil
}

// ParseFeatureCollection：解析 GeoJSON FeatureCollection，保持要素顺序
// 约束：geometry 为 null 的要素保留（永不命中），不视为错误
func ParseFeatureCollection(b []byte) ([]Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	out := make([]Feature, 0, len(fc.Features))
	for _, gf := range fc.Features {
		if gf == nil {
			continue
		}
		out = append(out, Feature{Geometry: gf.Geometry, Attributes: stringAttrs(gf.Properties)})
	}
	return out, nil
}

// stringAttrs：属性统一转为字符串；数值按最短十进制表示，null 丢弃
func stringAttrs(p geojson.Properties) map[string]string {
	m := make(map[string]string, len(p))
	for k, v := range p {
		switch x := v.(type) {
		case string:
			m[k] = x
		case float64:
			m[k] = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			m[k] = strconv.FormatBool(x)
		case nil:
		default:
			m[k] = fmt.Sprint(x)
		}
	}
	return m
}
