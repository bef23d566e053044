// 包 api：集中注册 HTTP API 路由，主入口挂载到 API_BASE 前缀下
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sverigekartan/internal/batch"
	"sverigekartan/internal/boundary"
	"sverigekartan/internal/coordsys"
	"sverigekartan/internal/geocode"
	"sverigekartan/internal/logger"
	"sverigekartan/internal/resolver"
	"sverigekartan/internal/sheet"
	"sverigekartan/internal/validate"

	"github.com/paulmach/orb"
)

const (
	sourceNominatim = "Nominatim/OpenStreetMap"
	sourcePolygons  = "Lantmäteriet (aktiva polygonlager)"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Deps：路由依赖；Reverser/Searcher 为 nil 时对应功能关闭
type Deps struct {
	Catalog        *boundary.Catalog
	Resolver       *resolver.Resolver
	Validator      *validate.Validator
	Pipeline       *batch.Pipeline
	Reverser       geocode.Reverser
	Searcher       geocode.Searcher
	Scope          *geocode.CountryScope
	SearchLimit    int
	MaxUploadBytes int64
	GeocodeSource  string
}

type handler struct {
	d Deps
}

// BuildRoutes：构建并返回 API 路由
func BuildRoutes(d Deps) *http.ServeMux {
	if d.SearchLimit <= 0 {
		d.SearchLimit = 5
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 20 << 20
	}
	h := &handler{d: d}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /layers", h.layers)
	mux.HandleFunc("GET /resolve", h.resolve)
	mux.HandleFunc("GET /info", h.info)
	mux.HandleFunc("GET /convert", h.convert)
	mux.HandleFunc("GET /search", h.search)
	mux.HandleFunc("GET /reverse", h.reverse)
	mux.HandleFunc("POST /batch", h.batch)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// ready：数据集未就绪或加载失败时返回 503，调用方应稍后重试
func (h *handler) ready(w http.ResponseWriter) bool {
	if err := h.d.Catalog.Status(); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return false
	}
	return true
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.d.Catalog.Status(); err != nil {
		status = err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "loaded_at": h.d.Catalog.LoadedAt()})
}

func (h *handler) layers(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var out []layerInfo
	for _, l := range h.d.Catalog.Layers() {
		ds, _ := h.d.Catalog.Dataset(l.Kind)
		out = append(out, layerInfo{Kind: l.Kind, AttributeKey: l.AttributeKey, Source: l.Source, Features: ds.Len()})
	}
	writeJSON(w, http.StatusOK, out)
}

// parseLatLon：读取 lat/lon 参数，接受小数逗号
func parseLatLon(r *http.Request) (float64, float64, error) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(q.Get("lat")), ",", "."), 64)
	lon, err2 := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(q.Get("lon")), ",", "."), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, errors.New("lat and lon must be numbers")
	}
	return lat, lon, nil
}

// activeLayers：layers 参数为空时使用全部已注册层级
func activeLayers(r *http.Request) []string {
	v := strings.TrimSpace(r.URL.Query().Get("layers"))
	if v == "" {
		return nil
	}
	var out []string
	for _, k := range strings.Split(v, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// resolveAt：范围外的点不调用判定器；目录不可用时返回错误，由调用方回 503
func (h *handler) resolveAt(lat, lon float64, kinds []string) (resolveResult, error) {
	res := resolveResult{Lat: lat, Lon: lon, Regions: []resolver.Field{}}
	v := h.d.Validator.Validate(lat, lon)
	if !v.InScope {
		res.ManualReview = v.Reason
		return res, nil
	}
	res.InScope = true
	var (
		rec resolver.Record
		err error
	)
	if kinds == nil {
		rec, err = h.d.Resolver.ResolveAll(orb.Point{lon, lat})
	} else {
		rec, err = h.d.Resolver.ResolveScoped(orb.Point{lon, lat}, kinds)
	}
	if err != nil {
		return res, err
	}
	res.Regions = rec.Fields
	res.ManualReview = rec.ManualReview
	return res, nil
}

func (h *handler) resolve(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	lat, lon, err := parseLatLon(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.resolveAt(lat, lon, activeLayers(r))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// 文档注释：交互式点查询
// 背景：地图点击或坐标输入时，同时给出逆地理编码地址与活动层级的多边形命中。
// 约束：逆地理编码失败不影响多边形结果，仅在 notice 中提示。
func (h *handler) info(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	lat, lon, err := parseLatLon(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.resolveAt(lat, lon, activeLayers(r))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	out := infoResult{
		resolveResult: res,
		Coordinates:   fmt.Sprintf("%.4f, %.4f", lat, lon),
		Sources:       []string{sourcePolygons},
	}
	if h.d.Reverser != nil {
		a, err := h.d.Reverser.Reverse(r.Context(), lat, lon)
		if err != nil {
			logger.L().Debug("info_reverse_failed", "lat", lat, "lon", lon, "err", err)
			out.Notice = "address lookup failed: " + err.Error()
		} else {
			out.Address = &a
			out.Sources = append([]string{sourceNominatim}, out.Sources...)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// 文档注释：坐标转换
// 参数：q 为自由文本坐标对（自动识别坐标系）；或 a/b 数值加 from 显式指定坐标系。均为展示顺序（纬度/北在前）。
func (h *handler) convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		p   coordsys.Pair
		sys coordsys.System
		err error
	)
	if text := q.Get("q"); text != "" {
		p, err = coordsys.ParsePair(text)
	} else {
		a, err1 := strconv.ParseFloat(strings.ReplaceAll(q.Get("a"), ",", "."), 64)
		b, err2 := strconv.ParseFloat(strings.ReplaceAll(q.Get("b"), ",", "."), 64)
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, errors.New("provide q or numeric a and b"))
			return
		}
		p = coordsys.Pair{First: a, Second: b}
	}
	if err == nil {
		if from := q.Get("from"); from != "" {
			sys, err = coordsys.ParseSystem(from)
		} else {
			sys, err = coordsys.Detect(p)
		}
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	all, err := coordsys.ConvertToAll(p.Point(), sys)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	out := convertResult{Input: sys}
	for _, s := range coordsys.Systems {
		dp := coordsys.PairOf(all.Get(s))
		out.Results = append(out.Results, displayCoord{System: s, EPSG: s.EPSG(), Pair: dp, Text: dp.Format(s)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	if h.d.Searcher == nil {
		writeError(w, http.StatusNotImplemented, errors.New("place search disabled"))
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, errors.New("q is required"))
		return
	}
	limit := h.d.SearchLimit
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= 50 {
		limit = n
	}
	country := h.d.Scope.Country(q.Get("country"), getClientIP(r))
	places, err := h.d.Searcher.Search(r.Context(), query, country, limit)
	if errors.Is(err, geocode.ErrNoResult) {
		writeJSON(w, http.StatusOK, map[string]any{"query": query, "country": country, "results": []geocode.Place{}})
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "country": country, "results": places})
}

func (h *handler) reverse(w http.ResponseWriter, r *http.Request) {
	if h.d.Reverser == nil {
		writeError(w, http.StatusNotImplemented, errors.New("reverse geocoding disabled"))
		return
	}
	lat, lon, err := parseLatLon(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a, err := h.d.Reverser.Reverse(r.Context(), lat, lon)
	if errors.Is(err, geocode.ErrNoResult) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// 文档注释：批量上传
// 背景：上传 xlsx/csv，返回 geo-resultat.xlsx；无数据行时返回 204 且不生成文件。
// 参数：multipart 字段 file；geocode=false 时本次跳过地址查询。
func (h *handler) batch(w http.ResponseWriter, r *http.Request) {
	if h.d.Pipeline == nil {
		writeError(w, http.StatusNotImplemented, errors.New("batch disabled"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.d.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.d.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer f.Close()
	rows, err := sheet.Read(f, hdr.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(rows) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	p := *h.d.Pipeline
	if r.URL.Query().Get("geocode") == "false" {
		p.Geocoder = nil
	}
	res, err := p.Process(r.Context(), rows)
	if errors.Is(err, boundary.ErrDatasetUnavailable) || errors.Is(err, boundary.ErrNotReady) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.L().Info("batch_aborted", "err", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	var buf bytes.Buffer
	prov := sheet.Provenance{Layers: h.d.Catalog.Layers(), LoadedAt: h.d.Catalog.LoadedAt()}
	if p.Geocoder != nil {
		prov.GeocodeSource = h.d.GeocodeSource
	}
	if err := sheet.Write(&buf, res, prov); err != nil {
		if errors.Is(err, batch.ErrEmptyBatch) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("content-type", xlsxContentType)
	w.Header().Set("content-disposition", `attachment; filename="`+sheet.FileName+`"`)
	w.Header().Set("x-run-id", res.RunID)
	w.Header().Set("cache-control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
