package geocode

import (
	"container/list"
	"sverigekartan/internal/metrics"
	"sync"
	"time"
)

// 文档注释：进程内 LRU 缓存
// 背景：批处理中同一地点常被多行重复引用，逆地理编码结果在进程内短期复用，减少对公共实例的请求。
// 约束：容量按条目计；写入时先清掉队尾的过期条目，再按最近使用淘汰。
type LRU[V any] struct {
	mu    sync.Mutex
	size  int
	ttl   time.Duration
	now   func() time.Time
	order *list.List
	items map[string]*list.Element
}

type lruEntry[V any] struct {
	key     string
	val     V
	expires time.Time
}

func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU[V]{size: capacity, ttl: ttl, now: time.Now, order: list.New(), items: make(map[string]*list.Element)}
}

// Get：命中且未过期时提升为最近使用
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	ent := e.Value.(*lruEntry[V])
	if !c.now().Before(ent.expires) {
		c.drop(e, "expired")
		return zero, false
	}
	c.order.MoveToFront(e)
	return ent.val, true
}

func (c *LRU[V]) Set(key string, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if e, ok := c.items[key]; ok {
		ent := e.Value.(*lruEntry[V])
		ent.val, ent.expires = val, now.Add(c.ttl)
		c.order.MoveToFront(e)
		return
	}
	c.items[key] = c.order.PushFront(&lruEntry[V]{key: key, val: val, expires: now.Add(c.ttl)})
	for back := c.order.Back(); back != nil && c.order.Len() > 1; back = c.order.Back() {
		if now.Before(back.Value.(*lruEntry[V]).expires) {
			break
		}
		c.drop(back, "expired")
	}
	for c.order.Len() > c.size {
		c.drop(c.order.Back(), "capacity")
	}
}

func (c *LRU[V]) drop(e *list.Element, reason string) {
	delete(c.items, e.Value.(*lruEntry[V]).key)
	c.order.Remove(e)
	metrics.GeocodeCacheEvictionsTotal.WithLabelValues(reason).Inc()
}

// Len：当前条目数（含尚未清理的过期条目）
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
