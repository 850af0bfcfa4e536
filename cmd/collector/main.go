package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"FinnPipeline/pkg/bootstrap"
	"FinnPipeline/pkg/pipeline"
)

func main() {
	os.Exit(run())
}

// run 执行一次采集流水线，结果以JSON输出到标准输出，退出码按结果分类
func run() int {
	configPath := flag.String("config", "", "配置文件路径")
	timeout := flag.Duration("timeout", 0, "单次运行超时，0 使用配置值")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 配置加载前使用默认日志器
	startup, _ := zap.NewProduction()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		return fail(startup, err)
	}
	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return fail(startup, err)
	}
	defer log.Sync() //nolint:errcheck

	if *timeout <= 0 {
		*timeout = cfg.Scheduler.RunTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return fail(log, err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("关闭连接失败", zap.Error(err))
		}
	}()

	out := app.Orchestrator.Run(ctx)
	emit(log, out.Payload())
	return out.Classification.ExitCode()
}

func fail(log *zap.Logger, err error) int {
	out := pipeline.Failure(uuid.NewString(), err, time.Now())
	log.Error("流水线启动失败",
		zap.String("run_id", out.RunID),
		zap.String("status", out.Classification.Status()),
		zap.String("trace", pipeline.Trace(err)),
	)
	emit(log, out.Payload())
	return out.Classification.ExitCode()
}

func emit(log *zap.Logger, payload pipeline.Payload) {
	if err := json.NewEncoder(os.Stdout).Encode(payload); err != nil {
		log.Error("输出结果失败", zap.Error(err))
	}
}
