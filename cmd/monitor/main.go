package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"FinnPipeline/pkg/bootstrap"
)

// 连通性检查：连接数据库和消息通道，输出各组件状态，任一组件不健康时以非零码退出
func main() {
	configPath := flag.String("config", "", "配置文件路径")
	timeout := flag.Duration("timeout", 10*time.Second, "单个组件检查超时")
	flag.Parse()

	startup, _ := zap.NewProduction()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		startup.Fatal("加载配置失败", zap.Error(err))
	}
	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		startup.Fatal("创建日志器失败", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout*2)
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("初始化失败", zap.Error(err))
	}
	defer app.Close() //nolint:errcheck

	app.Monitor.CheckAll(ctx, *timeout)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(app.Monitor.GetAllStatus()); err != nil {
		log.Error("输出状态失败", zap.Error(err))
	}

	if !app.Monitor.Ready() {
		log.Warn("存在不健康的组件")
		_ = app.Close()
		os.Exit(1)
	}
}
