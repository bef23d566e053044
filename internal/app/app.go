// 包 app：按配置组装数据集目录、判定器、批处理管线与外部客户端（服务与 CLI 共用）
package app

import (
	"context"
	"database/sql"
	"sverigekartan/internal/batch"
	"sverigekartan/internal/boundary"
	"sverigekartan/internal/config"
	"sverigekartan/internal/geocode"
	"sverigekartan/internal/logger"
	"sverigekartan/internal/resolver"
	"sverigekartan/internal/utils"
	"sverigekartan/internal/validate"

	"github.com/redis/go-redis/v9"
)

// App：进程级依赖集合
type App struct {
	Config    config.Config
	Catalog   *boundary.Catalog
	Resolver  *resolver.Resolver
	Validator *validate.Validator
	Pipeline  *batch.Pipeline
	// Reverser/Searcher 在 NOMINATIM_URL=off 时为 nil
	Reverser geocode.Reverser
	Searcher geocode.Searcher
	Scope    *geocode.CountryScope

	db    *sql.DB
	redis *redis.Client
}

// New：打开外部连接并开始异步加载边界数据；加载完成前 Catalog.Status 返回 ErrNotReady
func New(ctx context.Context, cfg config.Config) (*App, error) {
	l := logger.L()
	a := &App{Config: cfg}
	if cfg.NeedsPostgres() {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		a.db = db
	}
	a.Catalog = boundary.LoadCatalog(ctx, cfg.Layers, &boundary.Loader{Dir: cfg.BoundaryDir, DB: a.db})
	a.Resolver = resolver.New(a.Catalog)
	a.Validator = validate.New(cfg.Bounds)
	a.Pipeline = &batch.Pipeline{Resolver: a.Resolver, Validator: a.Validator, Concurrency: cfg.GeocodeConcurrency}

	if cfg.NominatimURL != "off" {
		client := geocode.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.NominatimRPS)
		a.redis = utils.OpenRedisFromEnv()
		if a.redis == nil {
			l.Info("redis_disabled")
		} else if err := a.redis.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
		a.Reverser = &geocode.CachedReverser{
			Next:  client,
			LRU:   geocode.NewLRU[geocode.Address](cfg.CacheSize, cfg.CacheTTL),
			Redis: geocode.NewRedisCache(a.redis, cfg.CacheTTL),
		}
		a.Searcher = client
		if cfg.GeocodeEnabled {
			a.Pipeline.Geocoder = a.Reverser
		}
	} else {
		l.Info("geocode_disabled")
	}

	scope, err := geocode.OpenCountryScope(cfg.GeoIPDB, cfg.SearchCountry)
	if err != nil {
		l.Error("geoip_open_error", "path", cfg.GeoIPDB, "err", err)
	}
	a.Scope = scope
	return a, nil
}

// GeocodeSource：写入 Info 工作表的地址来源说明
func (a *App) GeocodeSource() string {
	if a.Pipeline.Geocoder == nil {
		return ""
	}
	return "Nominatim/OpenStreetMap (" + a.Config.NominatimURL + ")"
}

// Close：释放外部连接
func (a *App) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.Scope.Close()
}
