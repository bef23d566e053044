// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sverigekartan/internal/api"
	"sverigekartan/internal/app"
	"sverigekartan/internal/config"
	"sverigekartan/internal/logger"
	"sverigekartan/internal/metrics"
	"sverigekartan/internal/middleware"
	"sverigekartan/internal/version"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")

	cfg, err := config.LoadFromEnv()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_api_base", "base", cfg.APIBase)
	l.Debug("config_boundary_dir", "dir", cfg.BoundaryDir, "layers", len(cfg.Layers))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		l.Error("app_init_error", "err", err)
		os.Exit(1)
	}
	defer a.Close()
	// 背景：加载失败不退出进程，接口返回 503 并给出原因
	go func() {
		if err := a.Catalog.Wait(ctx); err != nil {
			l.Error("catalog_unavailable", "err", err)
		}
	}()

	apiMux := api.BuildRoutes(api.Deps{
		Catalog:        a.Catalog,
		Resolver:       a.Resolver,
		Validator:      a.Validator,
		Pipeline:       a.Pipeline,
		Reverser:       a.Reverser,
		Searcher:       a.Searcher,
		Scope:          a.Scope,
		SearchLimit:    cfg.SearchLimit,
		MaxUploadBytes: cfg.MaxUploadBytes,
		GeocodeSource:  a.GeocodeSource(),
	})
	mux := http.NewServeMux()
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	mux.Handle("/", http.FileServer(http.Dir(cfg.UIDir)))
	// NOTE: 向前端暴露 API 基础路径，避免硬编码
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + cfg.APIBase + "'\n"))
		_, _ = w.Write([]byte("window.__COMMIT_SHA__='" + version.Commit + "'\n"))
	})

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler, cfg.RateLimitEnabled, cfg.RateLimitQPS)
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	}()
	l.Info("listening", "addr", cfg.Addr, "version", version.Version)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
		os.Exit(1)
	}
}
