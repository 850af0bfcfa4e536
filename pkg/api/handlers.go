package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"FinnPipeline/pkg/monitor"
	"FinnPipeline/pkg/pipeline"
	"FinnPipeline/pkg/scheduler"
)

// Trigger 手动触发和查询运行结果
type Trigger interface {
	RunNow(ctx context.Context) (pipeline.Outcome, error)
	LastOutcome() (pipeline.Outcome, bool)
	Running() bool
}

// Handlers API处理程序
type Handlers struct {
	trigger Trigger
	monitor *monitor.Monitor
}

// NewHandlers 创建新的API处理程序
func NewHandlers(trigger Trigger, mon *monitor.Monitor) *Handlers {
	return &Handlers{
		trigger: trigger,
		monitor: mon,
	}
}

// HealthCheck 健康检查处理程序
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadinessCheck 就绪检查处理程序，任一组件不健康时返回503
func (h *Handlers) ReadinessCheck(c *gin.Context) {
	if h.monitor == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	status, code := "ready", http.StatusOK
	if !h.monitor.Ready() {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"running":    h.trigger.Running(),
		"components": h.monitor.GetAllStatus(),
	})
}

// RunPipeline 同步执行一次采集，返回运行结果
func (h *Handlers) RunPipeline(c *gin.Context) {
	// 客户端断开不影响正在进行的采集
	ctx := context.WithoutCancel(c.Request.Context())

	out, err := h.trigger.RunNow(ctx)
	if errors.Is(err, scheduler.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, pipeline.Payload{
			Status:      "Conflict",
			Message:     err.Error(),
			CreatedDate: time.Now().Format("2006-01-02 15:04:05"),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "触发采集失败: " + err.Error(),
		})
		return
	}

	c.JSON(out.Classification.HTTPStatus(), out.Payload())
}

// LastRun 最近一次运行结果
func (h *Handlers) LastRun(c *gin.Context) {
	out, ok := h.trigger.LastOutcome()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "尚未运行",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payload": out.Payload(),
		"outcome": out,
	})
}
