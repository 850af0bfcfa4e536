package collector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"FinnPipeline/pkg/logger"
)

// Config 并发采集配置
type Config struct {
	Concurrency   int           // 同时执行的采集单元上限，1 即顺序执行
	RatePerSecond float64       // 每秒请求上限，0 表示不限速
	Burst         int           // 限速突发量
	UnitTimeout   time.Duration // 单元超时，0 表示只依赖请求自身的超时
}

// Report 一次采集的汇总结果
type Report[T any] struct {
	Records   []T
	Units     int
	Succeeded int
	Empty     int
	Failed    int
	Collected int // 去重前的记录数
}

// Collector 有界并发采集器
type Collector[T any] struct {
	name    string
	cfg     Config
	gate    *semaphore.Weighted
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New 创建采集器
func New[T any](name string, cfg Config, log *zap.Logger) *Collector[T] {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	c := &Collector[T]{
		name:   name,
		cfg:    cfg,
		gate:   semaphore.NewWeighted(int64(cfg.Concurrency)),
		logger: logger.OrNop(log).With(zap.String("collector", name)),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return c
}

// Concurrency 并发上限
func (c *Collector[T]) Concurrency() int {
	return c.cfg.Concurrency
}

// Collect 并发执行所有单元，汇总成功单元的记录并按key去重。
// 单个单元失败只会使该单元结果为空，不会影响其他单元。
func (c *Collector[T]) Collect(ctx context.Context, units []Unit, fetch FetchFunc[T], key KeyFunc[T]) Report[T] {
	start := time.Now()
	results := make([]UnitResult[T], len(units))

	var g errgroup.Group
	for i, unit := range units {
		g.Go(func() error {
			if err := c.gate.Acquire(ctx, 1); err != nil {
				results[i] = Failed[T](fmt.Errorf("等待采集许可失败: %w", err))
				results[i].Unit = unit
				return nil
			}
			defer c.gate.Release(1)

			results[i] = c.runUnit(ctx, unit, fetch)
			return nil
		})
	}
	_ = g.Wait()

	report := Report[T]{Units: len(units)}
	var all []T
	for _, res := range results {
		switch res.Status {
		case StatusSuccess:
			report.Succeeded++
			all = append(all, res.Records...)
		case StatusEmpty:
			report.Empty++
		case StatusFailed:
			report.Failed++
			c.logger.Warn("采集单元失败，已跳过",
				zap.Int64("stock_id", res.Unit.Stock.ID),
				zap.String("stock_code", res.Unit.Stock.StockCode),
				zap.String("keyword", res.Unit.Stock.SearchKeyword),
				zap.String("window", res.Unit.Window.String()),
				zap.Error(res.Err),
			)
		}
	}

	report.Collected = len(all)
	report.Records = Deduplicate(all, key)

	c.logger.Info("采集完成",
		zap.Int("units", report.Units),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("empty", report.Empty),
		zap.Int("failed", report.Failed),
		zap.Int("collected", report.Collected),
		zap.Int("kept", len(report.Records)),
		zap.Duration("duration", time.Since(start)),
	)

	return report
}

// runUnit 执行单个单元，panic和限速等待失败都转换为失败结果
func (c *Collector[T]) runUnit(ctx context.Context, unit Unit, fetch FetchFunc[T]) (res UnitResult[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed[T](fmt.Errorf("采集单元异常: %v", r))
		}
		res.Unit = unit
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Failed[T](fmt.Errorf("限速等待失败: %w", err))
		}
	}

	if c.cfg.UnitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.UnitTimeout)
		defer cancel()
	}

	res = fetch(ctx, unit)
	if res.Status == StatusSuccess && len(res.Records) == 0 {
		res.Status = StatusEmpty
	}
	return res
}
