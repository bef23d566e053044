// 包 middleware：入口限流
package middleware

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// 文档注释：令牌桶限流中间件（每秒）
// 背景：批量上传与逆地理编码会放大对上游的压力，在入口按秒限速；由 RATE_LIMIT_ENABLED/RATE_LIMIT_QPS 控制。
// 约束：不做排队，超限直接返回 429；突发容量等于 qps。
type TokenBucket struct {
	lim *rate.Limiter
	now func() time.Time
}

func NewTokenBucket(qps int) *TokenBucket {
	if qps <= 0 {
		qps = 200
	}
	return &TokenBucket{lim: rate.NewLimiter(rate.Limit(qps), qps), now: time.Now}
}

func (tb *TokenBucket) allow() bool {
	return tb.lim.AllowN(tb.now(), 1)
}

// Wrap：enabled 为 false 时原样返回 next
func Wrap(next http.Handler, enabled bool, qps int) http.Handler {
	if !enabled {
		return next
	}
	tb := NewTokenBucket(qps)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.allow() {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
