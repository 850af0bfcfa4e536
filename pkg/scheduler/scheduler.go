package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"FinnPipeline/pkg/logger"
	"FinnPipeline/pkg/monitor"
	"FinnPipeline/pkg/pipeline"
)

// ErrAlreadyRunning 上一次运行尚未结束
var ErrAlreadyRunning = errors.New("流水线正在运行")

// Runner 执行一次流水线
type Runner interface {
	Run(ctx context.Context) pipeline.Outcome
}

// Config 调度配置
type Config struct {
	Enabled        bool
	Spec           string
	Location       *time.Location
	HealthInterval time.Duration
	HealthTimeout  time.Duration
	RunTimeout     time.Duration
}

// Scheduler 任务调度器，定时任务和手动触发共用同一个运行锁
type Scheduler struct {
	cron    *cron.Cron
	cfg     Config
	runner  Runner
	monitor *monitor.Monitor
	logger  *zap.Logger

	entry   cron.EntryID
	running atomic.Bool
	mu      sync.RWMutex
	last    *pipeline.Outcome

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler 创建任务调度器
func NewScheduler(runner Runner, cfg Config, mon *monitor.Monitor, log *zap.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	log = logger.OrNop(log).With(zap.String("component", "scheduler"))
	cl := cronLogger{log.Sugar()}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		cfg:     cfg,
		runner:  runner,
		monitor: mon,
		logger:  log,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if cfg.Enabled {
		id, err := s.cron.AddFunc(cfg.Spec, s.scheduledRun)
		if err != nil {
			return nil, fmt.Errorf("解析调度表达式 %q 失败: %w", cfg.Spec, err)
		}
		s.entry = id
	}
	if mon != nil && cfg.HealthInterval > 0 {
		// 定期检查依赖组件健康状态
		spec := fmt.Sprintf("@every %s", cfg.HealthInterval)
		if _, err := s.cron.AddFunc(spec, s.checkHealth); err != nil {
			return nil, fmt.Errorf("注册健康检查失败: %w", err)
		}
	}
	return s, nil
}

// Start 启动调度器
func (s *Scheduler) Start() {
	s.cron.Start()
	if s.cfg.Enabled {
		s.logger.Info("调度器已启动", zap.String("spec", s.cfg.Spec), zap.String("location", s.cfg.Location.String()))
	}
}

// Stop 停止调度器，等待正在执行的任务结束或ctx超时
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("等待任务结束超时: %w", ctx.Err())
	}
}

// RunNow 立即执行一次，已有运行时返回 ErrAlreadyRunning
func (s *Scheduler) RunNow(ctx context.Context) (pipeline.Outcome, error) {
	if !s.running.CompareAndSwap(false, true) {
		return pipeline.Outcome{}, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	out := s.runner.Run(ctx)

	s.mu.Lock()
	s.last = &out
	s.mu.Unlock()
	return out, nil
}

// Running 是否有运行中的流水线
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// LastOutcome 最近一次运行结果
func (s *Scheduler) LastOutcome() (pipeline.Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return pipeline.Outcome{}, false
	}
	return *s.last, true
}

// Next 下一次定时运行时间
func (s *Scheduler) Next() (time.Time, bool) {
	if !s.cfg.Enabled {
		return time.Time{}, false
	}
	next := s.cron.Entry(s.entry).Next
	return next, !next.IsZero()
}

func (s *Scheduler) scheduledRun() {
	s.logger.Info("定时触发数据采集")
	out, err := s.RunNow(s.ctx)
	if errors.Is(err, ErrAlreadyRunning) {
		s.logger.Warn("上一次运行尚未结束，跳过本次定时任务")
		return
	}
	s.logger.Info("定时任务结束", zap.String("run_id", out.RunID), zap.Stringer("outcome", out.Kind))
}

func (s *Scheduler) checkHealth() {
	timeout := s.cfg.HealthTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s.monitor.CheckAll(s.ctx, timeout)
}

// cronLogger cron.Logger 的zap实现
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
