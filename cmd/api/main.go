package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"FinnPipeline/pkg/api"
	"FinnPipeline/pkg/bootstrap"
	"FinnPipeline/pkg/pipeline"
	"FinnPipeline/pkg/scheduler"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startup, _ := zap.NewProduction()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		startup.Fatal("加载配置失败", zap.Error(err))
	}
	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		startup.Fatal("创建日志器失败", zap.Error(err))
	}
	defer log.Sync() //nolint:errcheck

	log.Info("启动流水线服务...")

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("初始化失败",
			zap.String("kind", pipeline.KindOf(err).String()),
			zap.String("trace", pipeline.Trace(err)),
		)
	}

	loc, _ := cfg.Location()
	sched, err := scheduler.NewScheduler(app.Orchestrator, scheduler.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Spec:           cfg.Scheduler.Spec,
		Location:       loc,
		HealthInterval: cfg.Scheduler.HealthInterval,
		RunTimeout:     cfg.Scheduler.RunTimeout,
	}, app.Monitor, log)
	if err != nil {
		_ = app.Close()
		log.Fatal("创建调度器失败", zap.Error(err))
	}
	sched.Start()
	if next, ok := sched.Next(); ok {
		log.Info("下次定时运行", zap.Time("next", next))
	}

	server := api.NewServer(api.Config{
		Port:         cfg.API.Port,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}, log)
	server.SetupRoutes(api.NewHandlers(sched, app.Monitor))
	serveErr := server.Start()

	select {
	case <-ctx.Done():
		log.Info("收到退出信号，正在关闭服务...")
	case err := <-serveErr:
		log.Error("API服务异常退出", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("关闭API服务失败", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn("等待运行中的任务超时", zap.Error(err))
	}
	if err := app.Close(); err != nil {
		log.Warn("关闭连接失败", zap.Error(err))
	}

	log.Info("服务已关闭")
	if ctx.Err() == nil {
		os.Exit(1)
	}
}
