package boundary

import (
	"context"
	"fmt"
	"sverigekartan/internal/logger"
	"sverigekartan/internal/metrics"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// 文档注释：数据集目录（显式构造、注入使用的只读上下文）
// 背景：所有层级并发加载一次，完成前交互查询与批处理均不得执行判定；加载失败需与“未命中”区分并向上报告。
// 约束：加载完成后 datasets 只读，无需加锁；ready 关闭即发布完成状态。
type Catalog struct {
	layers   []Layer
	datasets map[string]*Dataset
	ready    chan struct{}
	err      error
	loadedAt time.Time
}

// NewCatalog：由已构建的数据集直接组成目录（立即就绪），用于测试与嵌入式数据
func NewCatalog(ds ...*Dataset) *Catalog {
	c := &Catalog{datasets: make(map[string]*Dataset, len(ds)), ready: make(chan struct{}), loadedAt: time.Now()}
	for _, d := range ds {
		if d == nil {
			continue
		}
		c.layers = append(c.layers, d.Layer)
		c.datasets[d.Layer.Kind] = d
	}
	close(c.ready)
	return c
}

// LoadCatalog：异步并发加载全部层级并立即返回；通过 Wait/Status 获取完成状态
func LoadCatalog(ctx context.Context, layers []Layer, f Fetcher) *Catalog {
	c := &Catalog{layers: append([]Layer(nil), layers...), datasets: make(map[string]*Dataset, len(layers)), ready: make(chan struct{})}
	go c.load(ctx, f)
	return c
}

func (c *Catalog) load(ctx context.Context, f Fetcher) {
	defer close(c.ready)
	l := logger.L()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, layer := range c.layers {
		layer := layer
		g.Go(func() error {
			t0 := time.Now()
			fs, err := f.Fetch(gctx, layer)
			if err != nil {
				l.Error("dataset_load_error", "kind", layer.Kind, "source", layer.Source, "err", err)
				return fmt.Errorf("%w: %s: %v", ErrDatasetUnavailable, layer.Kind, err)
			}
			d := NewDataset(layer, fs)
			mu.Lock()
			c.datasets[layer.Kind] = d
			mu.Unlock()
			metrics.DatasetFeatures.WithLabelValues(layer.Kind).Set(float64(d.Len()))
			l.Info("dataset_load_ok", "kind", layer.Kind, "features", d.Len(), "ms", time.Since(t0).Milliseconds())
			return nil
		})
	}
	c.err = g.Wait()
	c.loadedAt = time.Now()
	if c.err == nil {
		l.Info("catalog_ready", "layers", len(c.layers))
	}
}

// Wait：阻塞直至加载完成或 ctx 结束
// 返回：加载失败时为包装后的 ErrDatasetUnavailable；ctx 结束时为 ErrNotReady
func (c *Catalog) Wait(ctx context.Context) error {
	select {
	case <-c.ready:
		return c.err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrNotReady, ctx.Err())
	}
}

// Status：非阻塞读取状态；未完成返回 ErrNotReady
func (c *Catalog) Status() error {
	select {
	case <-c.ready:
		return c.err
	default:
		return ErrNotReady
	}
}

// Layers：注册顺序的层级配置
func (c *Catalog) Layers() []Layer { return append([]Layer(nil), c.layers...) }

// Dataset：按 Kind 取数据集；未就绪或未注册时返回 false
func (c *Catalog) Dataset(kind string) (*Dataset, bool) {
	select {
	case <-c.ready:
	default:
		return nil, false
	}
	d, ok := c.datasets[kind]
	return d, ok
}

// LoadedAt：完成时间（未完成为零值）
func (c *Catalog) LoadedAt() time.Time {
	if c.Status() == ErrNotReady {
		return time.Time{}
	}
	return c.loadedAt
}
