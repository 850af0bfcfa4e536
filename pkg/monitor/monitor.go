package monitor

import (
	"context"
	"sort"
	"sync"
	"time"
)

// 组件状态
const (
	StatusUnknown   = "unknown"
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// 流水线依赖的组件
const (
	ComponentDatabase = "database"
	ComponentTiingo   = "tiingo"
	ComponentNewsFeed = "news_feed"
	ComponentNATS     = "nats"
	ComponentPipeline = "pipeline"
)

// HealthStatus 健康状态
type HealthStatus struct {
	Component   string    `json:"component"`
	Status      string    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	Message     string    `json:"message,omitempty"`
}

// Checker 可主动探测的组件
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc 函数形式的Checker
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Monitor 组件健康状态
type Monitor struct {
	components map[string]*HealthStatus
	checkers   map[string]Checker
	mutex      sync.RWMutex
	alertFunc  func(component, status, message string)
	now        func() time.Time
}

// NewMonitor 创建新的监控系统
func NewMonitor(alertFunc func(component, status, message string)) *Monitor {
	return &Monitor{
		components: make(map[string]*HealthStatus),
		checkers:   make(map[string]Checker),
		alertFunc:  alertFunc,
		now:        time.Now,
	}
}

// RegisterComponent 注册组件，checker可以为nil
func (m *Monitor) RegisterComponent(component string, checker Checker) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.components[component]; !exists {
		m.components[component] = &HealthStatus{
			Component:   component,
			Status:      StatusUnknown,
			LastChecked: m.now(),
		}
	}
	if checker != nil {
		m.checkers[component] = checker
	}
}

// UpdateStatus 更新组件状态
func (m *Monitor) UpdateStatus(component, status, message string) {
	m.mutex.Lock()
	current, exists := m.components[component]
	if !exists {
		current = &HealthStatus{Component: component}
		m.components[component] = current
	}

	oldStatus := current.Status
	current.Status = status
	current.LastChecked = m.now()
	current.Message = message
	alert := m.alertFunc
	m.mutex.Unlock()

	// 状态变为不健康时触发告警
	if oldStatus != status && status != StatusHealthy && status != StatusUnknown && alert != nil {
		alert(component, status, message)
	}
}

// Report 按错误更新状态，nil为健康
func (m *Monitor) Report(component string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.UpdateStatus(component, StatusUnhealthy, err.Error())
		return
	}
	m.UpdateStatus(component, StatusHealthy, "")
}

// Degraded 组件部分失败
func (m *Monitor) Degraded(component, message string) {
	if m == nil {
		return
	}
	m.UpdateStatus(component, StatusDegraded, message)
}

// GetStatus 获取组件状态
func (m *Monitor) GetStatus(component string) (HealthStatus, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if status, exists := m.components[component]; exists {
		return *status, true
	}
	return HealthStatus{}, false
}

// GetAllStatus 获取所有组件状态，按组件名排序
func (m *Monitor) GetAllStatus() []HealthStatus {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	statuses := make([]HealthStatus, 0, len(m.components))
	for _, status := range m.components {
		statuses = append(statuses, *status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Component < statuses[j].Component
	})
	return statuses
}

// Ready 所有组件都不是unhealthy
func (m *Monitor) Ready() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, status := range m.components {
		if status.Status == StatusUnhealthy {
			return false
		}
	}
	return true
}

// CheckAll 探测所有注册了checker的组件
func (m *Monitor) CheckAll(ctx context.Context, timeout time.Duration) {
	m.mutex.RLock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mutex.RUnlock()

	var wg sync.WaitGroup
	for name, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			m.Report(name, checker.Ping(checkCtx))
		}()
	}
	wg.Wait()
}

// StartChecking 开始定期检查，ctx取消后停止
func (m *Monitor) StartChecking(ctx context.Context, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		m.CheckAll(ctx, timeout)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckAll(ctx, timeout)
			}
		}
	}()
}
