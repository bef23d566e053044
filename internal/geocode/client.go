package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sverigekartan/internal/logger"
	"sverigekartan/internal/metrics"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL：公共 Nominatim 实例
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// 文档注释：Nominatim HTTP 客户端
// 背景：公共实例要求每秒不超过 1 次请求并携带可识别的 User-Agent；出站请求统一经过令牌桶限速。
// 约束：429/5xx/网络错误按指数退避重试；4xx 与空结果不重试。
type Client struct {
	BaseURL    string
	UserAgent  string
	Language   string
	HTTP       *http.Client
	Limiter    *rate.Limiter
	MaxRetries int
	Backoff    time.Duration
}

// NewClient：rps<=0 时不限速（仅用于自建实例）
func NewClient(baseURL, userAgent string, rps float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		UserAgent:  userAgent,
		Language:   "sv",
		HTTP:       &http.Client{Timeout: 15 * time.Second},
		Limiter:    lim,
		MaxRetries: 3,
		Backoff:    2 * time.Second,
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		Country      string `json:"country"`
		CountryCode  string `json:"country_code"`
		County       string `json:"county"`
		Municipality string `json:"municipality"`
		Town         string `json:"town"`
		City         string `json:"city"`
	} `json:"address"`
}

// Reverse：坐标 → 地址与国家
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")
	var r reverseResponse
	if err := c.get(ctx, "reverse", "/reverse", q, &r); err != nil {
		return Address{}, err
	}
	if r.Error != "" || r.DisplayName == "" {
		metrics.GeocodeFailTotal.WithLabelValues("reverse").Inc()
		return Address{}, ErrNoResult
	}
	a := Address{
		DisplayName:  r.DisplayName,
		Country:      r.Address.Country,
		CountryCode:  r.Address.CountryCode,
		County:       r.Address.County,
		Municipality: r.Address.Municipality,
	}
	if a.Municipality == "" {
		a.Municipality = firstNonEmpty(r.Address.Town, r.Address.City)
	}
	return a, nil
}

type searchItem struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Type        string `json:"type"`
}

// Search：地名 → 候选位置；country 为 ISO 3166-1 alpha2，可为空
func (c *Client) Search(ctx context.Context, query, country string, limit int) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNoResult
	}
	if limit <= 0 {
		limit = 1
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "jsonv2")
	q.Set("limit", strconv.Itoa(limit))
	if country != "" {
		q.Set("countrycodes", strings.ToLower(country))
	}
	var items []searchItem
	if err := c.get(ctx, "search", "/search", q, &items); err != nil {
		return nil, err
	}
	out := make([]Place, 0, len(items))
	for _, it := range items {
		lat, err1 := strconv.ParseFloat(it.Lat, 64)
		lon, err2 := strconv.ParseFloat(it.Lon, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, Place{Name: it.DisplayName, Lat: lat, Lon: lon, Type: it.Type})
	}
	if len(out) == 0 {
		return nil, ErrNoResult
	}
	return out, nil
}

// get：限速 + 重试 + 指标；成功时把响应体解码到 out
func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) error {
	if c.Language != "" {
		q.Set("accept-language", c.Language)
	}
	u := c.BaseURL + path + "?" + q.Encode()
	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	attempts := c.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	l := logger.L()
	t0 := time.Now()
	metrics.GeocodeRequestsTotal.WithLabelValues(op).Inc()
	defer func() {
		metrics.GeocodeDurationMs.WithLabelValues(op).Observe(float64(time.Since(t0).Milliseconds()))
	}()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.Backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				metrics.GeocodeFailTotal.WithLabelValues(op).Inc()
				return ctx.Err()
			}
		}
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				metrics.GeocodeFailTotal.WithLabelValues(op).Inc()
				return err
			}
		}
		retry, err := c.do(ctx, client, u, out)
		if err == nil {
			l.Debug("nominatim_resp", "op", op, "attempt", attempt+1, "duration_ms", time.Since(t0).Milliseconds())
			return nil
		}
		lastErr = err
		l.Debug("nominatim_http_error", "op", op, "attempt", attempt+1, "err", err)
		if !retry {
			break
		}
	}
	metrics.GeocodeFailTotal.WithLabelValues(op).Inc()
	l.Error("nominatim_failed", "op", op, "err", lastErr)
	return lastErr
}

var errRetryable = errors.New("retryable")

func (c *Client) do(ctx context.Context, client *http.Client, u string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return true, fmt.Errorf("%w: http %d", errRetryable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("nominatim http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("nominatim decode: %w", err)
	}
	return false, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
