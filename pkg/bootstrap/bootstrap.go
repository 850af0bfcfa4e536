package bootstrap

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	"FinnPipeline/pkg/collector"
	"FinnPipeline/pkg/config"
	"FinnPipeline/pkg/database"
	"FinnPipeline/pkg/logger"
	"FinnPipeline/pkg/messaging"
	"FinnPipeline/pkg/monitor"
	"FinnPipeline/pkg/pipeline"
)

// App 进程内共享的组件，只初始化一次
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Monitor      *monitor.Monitor
	Orchestrator *pipeline.Orchestrator

	db       *database.PostgresDB
	notifier messaging.Notifier
}

// LoadConfig 加载配置，路径为空时使用 CONFIG_PATH 或默认路径
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, pipeline.ConfigurationError(err)
	}
	return cfg, nil
}

// NewLogger 根据配置创建日志器
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, pipeline.ConfigurationError(err)
	}
	return log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env)), nil
}

// New 连接数据库和消息通道并组装流水线，错误已按流水线分类包装
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)

	loc, err := cfg.Location()
	if err != nil {
		return nil, pipeline.ConfigurationError(err)
	}

	mon := monitor.NewMonitor(func(component, status, message string) {
		log.Warn("组件状态告警",
			zap.String("component", component),
			zap.String("status", status),
			zap.String("message", message),
		)
	})

	db, err := database.NewPostgresDB(cfg.Database.Postgres)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.KindStore, pipeline.StageInit, err, "初始化数据库失败")
	}
	store := database.NewStore(db)

	notifier, err := messaging.NewNotifier(ctx, cfg.NATS, log)
	if err != nil {
		_ = db.Close()
		return nil, pipeline.Wrap(pipeline.KindNotification, pipeline.StageInit, err, "初始化消息通道失败")
	}

	mon.RegisterComponent(monitor.ComponentDatabase, store)
	mon.RegisterComponent(monitor.ComponentNATS, notifier)
	mon.RegisterComponent(monitor.ComponentTiingo, nil)
	mon.RegisterComponent(monitor.ComponentNewsFeed, nil)
	mon.RegisterComponent(monitor.ComponentPipeline, nil)

	news := cfg.DataSources.News
	deps := pipeline.Deps{
		Store: store,
		News: collector.NewNewsFetcher(collector.NewsConfig{
			BaseURL:     news.BaseURL,
			Timeout:     news.Timeout,
			LimitPerDay: news.LimitPerDay,
			Language:    news.Language,
			Country:     news.Country,
			Edition:     news.Edition,
		}, log),
		Notifier: notifier,
		Monitor:  mon,
		Logger:   log,
	}

	tiingo := cfg.DataSources.Tiingo
	if cfg.HasTiingoKey() {
		client := collector.NewTiingoClient(tiingo.APIKey, tiingo.BaseURL, tiingo.Timeout)
		deps.Prices = collector.NewPriceFetcher(client, log)
	} else {
		log.Warn("TIINGO_API_KEY 未设置，将跳过股价采集")
	}

	orchestrator, err := pipeline.New(deps, pipeline.Options{
		Source:           cfg.Pipeline.Source,
		Location:         loc,
		PriceWindowDays:  cfg.Pipeline.PriceWindowDays,
		NewsWindowDays:   cfg.Pipeline.NewsWindowDays,
		ReferenceSymbol:  tiingo.ReferenceSymbol,
		SkipClosedMarket: cfg.SkipClosedMarketEnabled(),
		PriceCollector:   collectorConfig(cfg.Collector.Prices),
		NewsCollector:    collectorConfig(cfg.Collector.News),
	})
	if err != nil {
		_ = notifier.Close()
		_ = db.Close()
		return nil, err
	}

	return &App{
		Config:       cfg,
		Logger:       log,
		Monitor:      mon,
		Orchestrator: orchestrator,
		db:           db,
		notifier:     notifier,
	}, nil
}

// Close 关闭消息通道和数据库连接
func (a *App) Close() error {
	return errors.Join(a.notifier.Close(), a.db.Close())
}

func collectorConfig(cc config.CollectorConfig) collector.Config {
	return collector.Config{
		Concurrency:   cc.Concurrency,
		RatePerSecond: cc.RatePerSecond,
		Burst:         cc.Burst,
		UnitTimeout:   cc.UnitTimeout,
	}
}
