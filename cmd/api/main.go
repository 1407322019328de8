package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/KickoffHub/internal/api"
	"github.com/LJTian/KickoffHub/internal/collector"
	"github.com/LJTian/KickoffHub/internal/config"
	"github.com/LJTian/KickoffHub/internal/metrics"
	"github.com/LJTian/KickoffHub/internal/pipeline"
	"github.com/LJTian/KickoffHub/internal/ranking"
	"github.com/LJTian/KickoffHub/internal/retention"
	"github.com/LJTian/KickoffHub/internal/scheduler"
	"github.com/LJTian/KickoffHub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// 延迟执行首轮采集，避免与启动后的第一批请求争抢资源
	startupDelay = 15 * time.Second

	collectTimeout = 5 * time.Minute
	sweepTimeout   = time.Minute
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		slog.Error("init store failed", "error", err)
		os.Exit(1)
	}

	// 确保配置中的数据源都已登记
	sources, err := cfg.Sources()
	if err != nil {
		slog.Error("load sources failed", "error", err)
		os.Exit(1)
	}
	if err := store.SyncSources(context.Background(), sources); err != nil {
		slog.Error("sync sources failed", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		slog.Error("register metrics failed", "error", err)
		os.Exit(1)
	}

	fetcher := collector.NewFeedFetcher(cfg.FetchTimeout, cfg.FetchMaxItems)
	pl := pipeline.New(store, fetcher, store, m)
	sweeper := retention.NewSweeper(store, cfg.RetentionWindow(), m)
	ranker := ranking.NewRanker(store, store)

	runCollect := func() {
		ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
		defer cancel()
		if _, err := pl.Run(ctx, pipeline.Options{}); err != nil {
			slog.Error("scheduled collect failed", "error", err)
		}
	}
	runSweep := func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		_, _ = sweeper.Sweep(ctx)
	}

	sched := scheduler.New()
	if err := sched.Start(scheduler.KeyCollect, cfg.CronSpec, runCollect); err != nil {
		slog.Error("init scheduler failed", "error", err)
		os.Exit(1)
	}
	if err := sched.Start(scheduler.KeyRetention, cfg.RetentionCronSpec, runSweep); err != nil {
		slog.Error("init scheduler failed", "error", err)
		os.Exit(1)
	}
	sched.Run()
	time.AfterFunc(startupDelay, runCollect)

	r := gin.Default()
	api.NewServer(pl, ranker, store, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).
		WithBasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass).
		WithCollectTimeout(collectTimeout).
		WithViewHistory(store).
		RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("starting api server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server exit", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		slog.Error("scheduler shutdown failed", "error", err)
	}
}
