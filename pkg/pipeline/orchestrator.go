package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"FinnPipeline/pkg/collector"
	"FinnPipeline/pkg/logger"
	"FinnPipeline/pkg/model"
	"FinnPipeline/pkg/monitor"
	"FinnPipeline/pkg/reconciler"
)

const successMessage = "股价/新闻数据采集完成"

// DefaultPriceWindowDays 默认行情区间为[昨天, 今天]，保证包含最近一个已收盘的美股交易日
const DefaultPriceWindowDays = 2

// Store 流水线使用的存储操作
type Store interface {
	reconciler.CloseHistory
	ListStocks(ctx context.Context) ([]model.Stock, error)
	UpsertPrices(ctx context.Context, prices []model.StockPrice) (int64, error)
	InsertNews(ctx context.Context, news []model.News) (int64, error)
}

// PriceSource 行情采集和休市探测
type PriceSource interface {
	Func(createdAt time.Time) collector.FetchFunc[model.StockPrice]
	MarketOpen(ctx context.Context, referenceSymbol string, today time.Time) (bool, error)
}

// NewsSource 新闻采集
type NewsSource interface {
	Func(createdAt time.Time) collector.FetchFunc[model.News]
}

// Notifier 完成消息通道
type Notifier interface {
	PublishCompletion(ctx context.Context, msg model.CompletionMessage) error
}

// Deps 外部依赖，Prices为nil表示未配置行情密钥
type Deps struct {
	Store    Store
	Prices   PriceSource
	News     NewsSource
	Notifier Notifier
	Monitor  *monitor.Monitor
	Logger   *zap.Logger
}

// Options 运行参数，构造后不再修改
type Options struct {
	Source           string
	Location         *time.Location
	PriceWindowDays  int
	NewsWindowDays   int
	ReferenceSymbol  string
	SkipClosedMarket bool
	PriceCollector   collector.Config
	NewsCollector    collector.Config
	Now              func() time.Time
}

// Orchestrator 采集流水线
type Orchestrator struct {
	deps       Deps
	opts       Options
	prices     *collector.Collector[model.StockPrice]
	news       *collector.Collector[model.News]
	reconciler *reconciler.Reconciler
	logger     *zap.Logger
}

// New 创建流水线，缺少必要依赖时返回配置错误
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, ConfigurationError(errors.New("缺少存储"))
	case deps.News == nil:
		return nil, ConfigurationError(errors.New("缺少新闻采集器"))
	case deps.Notifier == nil:
		return nil, ConfigurationError(errors.New("缺少消息通道"))
	}

	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PriceWindowDays < 1 {
		opts.PriceWindowDays = DefaultPriceWindowDays
	}
	if opts.NewsWindowDays < 1 {
		opts.NewsWindowDays = 1
	}

	log := logger.OrNop(deps.Logger)
	return &Orchestrator{
		deps:       deps,
		opts:       opts,
		prices:     collector.New[model.StockPrice]("prices", opts.PriceCollector, log),
		news:       collector.New[model.News]("news", opts.NewsCollector, log),
		reconciler: reconciler.New(deps.Store),
		logger:     log,
	}, nil
}

// run 单次运行的状态
type run struct {
	id       string
	start    time.Time
	today    time.Time
	stage    Stage
	stats    Stats
	failures []error
	logger   *zap.Logger
}

func (r *run) enter(stage Stage) {
	r.stage = stage
	r.logger.Debug("进入阶段", zap.Stringer("stage", stage))
}

// stageFailed 阶段失败但流水线继续
func (r *run) stageFailed(err error) {
	r.failures = append(r.failures, err)
	r.logger.Error("阶段失败",
		zap.Stringer("stage", StageOf(err)),
		zap.Stringer("kind", KindOf(err)),
		zap.Error(err),
	)
}

// Run 执行一次完整的采集流水线，任何错误都转换为Outcome，不会panic
func (o *Orchestrator) Run(ctx context.Context) (out Outcome) {
	start := o.opts.Now().In(o.opts.Location)
	r := &run{
		id:    uuid.NewString(),
		start: start,
		today: model.Day(start),
	}
	r.logger = o.logger.With(zap.String("run_id", r.id))
	r.logger.Info("=== 数据采集流水线开始 ===", zap.Time("today", r.today))

	defer func() {
		if rec := recover(); rec != nil {
			err := &Error{Kind: KindUnclassified, Stage: r.stage, Err: eris.Errorf("运行异常: %v", rec)}
			out = o.fatal(r, err)
		}
		o.finish(r, out)
	}()

	r.enter(StageLoadUniverse)
	stocks, err := o.deps.Store.ListStocks(ctx)
	o.deps.Monitor.Report(monitor.ComponentDatabase, err)
	if err != nil {
		return o.fatal(r, Wrap(KindStore, StageLoadUniverse, err, "读取股票列表失败"))
	}
	r.stats.Stocks = len(stocks)
	if len(stocks) == 0 {
		r.logger.Warn("没有需要采集的股票，流水线结束")
		return o.outcome(r, OutcomeNothingToDo, ClassSuccess, StatusNothingToDo)
	}

	createdAt := r.start
	priceWindow := model.NewWindow(r.today, o.opts.PriceWindowDays)
	newsWindow := model.NewWindow(r.today, o.opts.NewsWindowDays)

	prices, pricesOK := o.collectPrices(ctx, r, stocks, priceWindow, createdAt)
	news := o.collectNews(ctx, r, stocks, newsWindow, createdAt)

	r.enter(StagePersist)
	if pricesOK && len(prices) > 0 {
		if err := o.persistPrices(ctx, r, prices, priceWindow); err != nil {
			r.stageFailed(err)
		}
	}

	saved, err := o.deps.Store.InsertNews(ctx, news)
	o.deps.Monitor.Report(monitor.ComponentDatabase, err)
	if err != nil {
		return o.fatal(r, Wrap(KindStore, StagePersist, err, "保存新闻失败"))
	}
	r.stats.NewsSaved = saved
	r.logger.Info("新闻保存完成", zap.Int64("saved", saved))

	if len(r.failures) > 0 {
		first := r.failures[0]
		return o.outcome(r, OutcomePartial, Classify(KindOf(first)), joinMessages(r.failures))
	}

	r.enter(StageNotify)
	msg := model.NewCompletionMessage(r.id, o.opts.Source, o.opts.Now().In(o.opts.Location))
	err = o.deps.Notifier.PublishCompletion(ctx, msg)
	o.deps.Monitor.Report(monitor.ComponentNATS, err)
	if err != nil {
		return o.fatal(r, Wrap(KindNotification, StageNotify, err, "发送完成消息失败"))
	}
	r.stats.Notified = true

	r.enter(StageDone)
	return o.outcome(r, OutcomeSuccess, ClassSuccess, successMessage)
}

// collectPrices 采集行情，返回false表示行情阶段失败
func (o *Orchestrator) collectPrices(ctx context.Context, r *run, stocks []model.Stock, window model.CollectionWindow, createdAt time.Time) ([]model.StockPrice, bool) {
	if o.deps.Prices == nil {
		r.stats.PricesSkipped = true
		r.logger.Warn("未配置行情API密钥，跳过股价采集")
		return nil, true
	}

	if o.opts.SkipClosedMarket {
		r.enter(StageCheckMarket)
		open, err := o.deps.Prices.MarketOpen(ctx, o.opts.ReferenceSymbol, r.today)
		o.deps.Monitor.Report(monitor.ComponentTiingo, err)
		if err != nil {
			r.stageFailed(Wrap(KindProvider, StageCheckMarket, err, "无法确定今日是否休市"))
			return nil, false
		}
		if !open {
			r.stats.MarketClosed = true
			r.stats.PricesSkipped = true
			r.logger.Info("今日休市，跳过股价采集", zap.String("reference", o.opts.ReferenceSymbol))
			return nil, true
		}
	}

	r.enter(StageCollectPrices)
	units := collector.WindowUnits(stocks, window, collector.HasCode)
	report := o.prices.Collect(ctx, units, o.deps.Prices.Func(createdAt), collector.PriceKey)
	r.stats.PriceUnits = report.Units
	r.stats.PriceUnitsFailed = report.Failed
	r.stats.PricesCollected = len(report.Records)
	reportUnits(o.deps.Monitor, monitor.ComponentTiingo, report.Units, report.Failed)

	return report.Records, true
}

func (o *Orchestrator) collectNews(ctx context.Context, r *run, stocks []model.Stock, window model.CollectionWindow, createdAt time.Time) []model.News {
	r.enter(StageCollectNews)
	units := collector.DailyUnits(stocks, window, collector.HasKeyword)
	report := o.news.Collect(ctx, units, o.deps.News.Func(createdAt), collector.NewsKey)
	r.stats.NewsUnits = report.Units
	r.stats.NewsUnitsFailed = report.Failed
	r.stats.NewsCollected = len(report.Records)
	reportUnits(o.deps.Monitor, monitor.ComponentNewsFeed, report.Units, report.Failed)

	return report.Records
}

// persistPrices 对账并写入行情，窗口开始前的最后收盘价作为基准
func (o *Orchestrator) persistPrices(ctx context.Context, r *run, prices []model.StockPrice, window model.CollectionWindow) error {
	last, err := o.reconciler.LoadLastCloses(ctx, window.Start)
	if err != nil {
		o.deps.Monitor.Report(monitor.ComponentDatabase, err)
		return Wrap(KindStore, StagePersist, err, "读取历史收盘价失败")
	}

	reconciled := o.reconciler.Apply(prices, last)
	saved, err := o.deps.Store.UpsertPrices(ctx, reconciled)
	o.deps.Monitor.Report(monitor.ComponentDatabase, err)
	if err != nil {
		return Wrap(KindStore, StagePersist, err, "保存股价失败")
	}

	r.stats.PricesSaved = saved
	r.logger.Info("股价保存完成",
		zap.Int("records", len(reconciled)),
		zap.Int64("saved", saved),
		zap.Int("history", len(last.Prices)),
	)
	return nil
}

func reportUnits(m *monitor.Monitor, component string, units, failed int) {
	switch {
	case units > 0 && failed == units:
		m.Report(component, fmt.Errorf("全部 %d 个采集单元失败", units))
	case failed > 0:
		m.Degraded(component, fmt.Sprintf("%d/%d 个采集单元失败", failed, units))
	default:
		m.Report(component, nil)
	}
}

func (o *Orchestrator) fatal(r *run, err error) Outcome {
	out := o.outcome(r, OutcomeFatal, Classify(KindOf(err)), err.Error())
	out.FailedStages = append(out.FailedStages, StageOf(err))
	out.Cause = err
	if KindOf(err) == KindUnclassified {
		r.logger.Error("流水线异常终止", zap.Error(err), zap.String("trace", Trace(err)))
	}
	return out
}

func (o *Orchestrator) outcome(r *run, kind OutcomeKind, class Classification, message string) Outcome {
	out := Outcome{
		RunID:          r.id,
		Kind:           kind,
		Classification: class,
		Message:        message,
		Stats:          r.stats,
		StartedAt:      r.start,
		FinishedAt:     o.opts.Now().In(o.opts.Location),
	}
	for _, err := range r.failures {
		out.FailedStages = append(out.FailedStages, StageOf(err))
	}
	if kind == OutcomePartial && len(r.failures) > 0 {
		out.Cause = errors.Join(r.failures...)
	}
	return out
}

func (o *Orchestrator) finish(r *run, out Outcome) {
	switch out.Kind {
	case OutcomeFatal:
		o.deps.Monitor.Report(monitor.ComponentPipeline, out.Cause)
	case OutcomePartial:
		o.deps.Monitor.Degraded(monitor.ComponentPipeline, out.Message)
	default:
		o.deps.Monitor.Report(monitor.ComponentPipeline, nil)
	}

	fields := []zap.Field{
		zap.Stringer("outcome", out.Kind),
		zap.String("status", out.Payload().Status),
		zap.Any("stats", out.Stats),
		zap.Duration("duration", out.FinishedAt.Sub(out.StartedAt)),
	}
	if out.Kind == OutcomeFatal || out.Kind == OutcomePartial {
		r.logger.Error("=== 数据采集流水线结束 ===", append(fields, zap.Error(out.Cause))...)
		return
	}
	r.logger.Info("=== 数据采集流水线结束 ===", fields...)
}
