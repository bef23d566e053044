// 包 batch：表格行的批量行政区归属
package batch

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sverigekartan/internal/geocode"
	"sverigekartan/internal/logger"
	"sverigekartan/internal/metrics"
	"sverigekartan/internal/resolver"
	"sverigekartan/internal/validate"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyBatch：没有数据行，不生成输出文件
var ErrEmptyBatch = errors.New("empty batch")

// 输出列名
const (
	ColID     = "id"
	ColLat    = "lat"
	ColLon    = "lon"
	ColLand   = "land"
	ColAdress = "adress"
	ColManual = "manuell_kontroll"
)

// NotAvailable：逆地理编码失败时地址与国家的占位值
const NotAvailable = "N/A"

// regionColumns：区划列在输出中的固定顺序
var regionColumns = []string{"lan", "landskap", "kommun", "socken"}

// 文档注释：批量归属管线
// 背景：逐行解析坐标、粗过滤、多层级判定，可选逆地理编码补充地址与国家。
// 约束：行数与顺序保持不变；越界行不调用判定与逆地理编码；单行逆地理编码失败只写入 N/A，不中断批次。
type Pipeline struct {
	Resolver  *resolver.Resolver
	Validator *validate.Validator
	// Geocoder 为 nil 时不做地址查询，land/adress 留空
	Geocoder geocode.Reverser
	// Concurrency：同时在途的地址查询数，<=0 视为 1
	Concurrency int
}

// Stats：批次统计
type Stats struct {
	Total         int `json:"total"`
	Matched       int `json:"matched"`
	OutOfRange    int `json:"out_of_range"`
	NoMatch       int `json:"no_match"`
	GeocodeFailed int `json:"geocode_failed"`
}

// Result：一次批处理的输出
type Result struct {
	RunID     string
	Columns   []string
	Rows      []Row
	Stats     Stats
	StartedAt time.Time
	Duration  time.Duration
}

type rowState struct {
	lat, lon float64
	resolve  bool
}

// Process：处理全部行并返回结果
// 返回：数据集未就绪或加载失败时返回错误（不产生任何行）；空输入返回零行结果与 nil
func (p *Pipeline) Process(ctx context.Context, rows []Row) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), StartedAt: time.Now()}
	if len(rows) == 0 {
		return res, nil
	}
	if err := p.Resolver.Catalog().Wait(ctx); err != nil {
		return nil, err
	}
	l := logger.L().With("run_id", res.RunID)
	l.Info("batch_start", "rows", len(rows), "geocode", p.Geocoder != nil)

	kinds := p.kinds()
	res.Columns = Columns(rows, kinds)
	res.Rows = make([]Row, len(rows))
	states := make([]rowState, len(rows))
	for i, in := range rows {
		out := Row{Keys: append([]string(nil), res.Columns...), Values: make(map[string]string, len(res.Columns))}
		for _, k := range in.Keys {
			out.Values[k] = in.Values[k]
		}
		latText, _ := in.Lookup(ColLat)
		lonText, _ := in.Lookup(ColLon)
		out.Values[ColID] = strconv.Itoa(i + 1)
		out.Values[ColLat] = latText
		out.Values[ColLon] = lonText
		out.Values[ColLand] = ""
		out.Values[ColAdress] = ""
		for _, k := range kinds {
			out.Values[k] = ""
		}

		lat, okLat := parseNumber(latText)
		lon, okLon := parseNumber(lonText)
		v := validate.Verdict{Reason: validate.ReasonOutOfRange}
		if okLat && okLon {
			v = p.Validator.Validate(lat, lon)
		}
		if !v.InScope {
			out.Values[ColManual] = v.Reason
			res.Stats.OutOfRange++
			metrics.BatchRowsTotal.WithLabelValues("out_of_range").Inc()
			l.Debug("batch_row_out_of_scope", "row", i+1, "lat", latText, "lon", lonText)
			res.Rows[i] = out
			continue
		}
		rec, err := p.Resolver.ResolveAll(orb.Point{lon, lat})
		if err != nil {
			return nil, err
		}
		for _, f := range rec.Fields {
			out.Values[f.Kind] = f.Value
		}
		out.Values[ColManual] = rec.ManualReview
		if rec.ManualReview != "" {
			res.Stats.NoMatch++
			metrics.BatchRowsTotal.WithLabelValues("no_match").Inc()
		} else {
			res.Stats.Matched++
			metrics.BatchRowsTotal.WithLabelValues("ok").Inc()
		}
		states[i] = rowState{lat: lat, lon: lon, resolve: true}
		res.Rows[i] = out
	}
	res.Stats.Total = len(rows)

	if p.Geocoder != nil {
		res.Stats.GeocodeFailed = p.geocode(ctx, l, res.Rows, states)
	}
	res.Duration = time.Since(res.StartedAt)
	metrics.BatchDurationMs.Observe(float64(res.Duration.Milliseconds()))
	l.Info("batch_done", "rows", res.Stats.Total, "matched", res.Stats.Matched, "out_of_range", res.Stats.OutOfRange,
		"no_match", res.Stats.NoMatch, "geocode_failed", res.Stats.GeocodeFailed, "ms", res.Duration.Milliseconds())
	return res, ctx.Err()
}

// geocode：按并发上限查询地址；每个任务只写自己的行
func (p *Pipeline) geocode(ctx context.Context, l *slog.Logger, rows []Row, states []rowState) int {
	limit := p.Concurrency
	if limit <= 0 {
		limit = 1
	}
	failed := make([]bool, len(rows))
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range rows {
		if !states[i].resolve {
			continue
		}
		i := i
		g.Go(func() error {
			a, err := p.Geocoder.Reverse(ctx, states[i].lat, states[i].lon)
			if err != nil {
				l.Debug("batch_row_geocode_failed", "row", i+1, "err", err)
				rows[i].Values[ColLand] = NotAvailable
				rows[i].Values[ColAdress] = NotAvailable
				failed[i] = true
				return nil
			}
			rows[i].Values[ColLand] = a.Country
			rows[i].Values[ColAdress] = a.DisplayName
			return nil
		})
	}
	_ = g.Wait()
	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	return n
}

func (p *Pipeline) kinds() []string {
	var ks []string
	for _, l := range p.Resolver.Catalog().Layers() {
		ks = append(ks, l.Kind)
	}
	return ks
}

// 文档注释：输出列顺序
// 约束：id, lat, lon, land, 区划列（lan, landskap, kommun, socken 及其他已注册层级）, adress, manuell_kontroll，
// 其后为输入中的其余列（按首次出现顺序）。
func Columns(rows []Row, kinds []string) []string {
	cols := []string{ColID, ColLat, ColLon, ColLand}
	registered := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		registered[k] = true
	}
	for _, k := range regionColumns {
		if registered[k] {
			cols = append(cols, k)
		}
	}
	for _, k := range kinds {
		if !contains(regionColumns, k) {
			cols = append(cols, k)
		}
	}
	cols = append(cols, ColAdress, ColManual)

	reserved := make(map[string]bool, len(cols))
	for _, c := range cols {
		reserved[c] = true
	}
	seen := make(map[string]bool)
	for _, r := range rows {
		for _, k := range r.Keys {
			norm := strings.ToLower(strings.TrimSpace(k))
			if reserved[norm] || seen[k] {
				continue
			}
			seen[k] = true
			cols = append(cols, k)
		}
	}
	return cols
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// parseNumber：接受小数点或小数逗号；空白与非有限值视为无效
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
