package pipeline

import (
	"net/http"
	"strings"
	"time"
)

// OutcomeKind 运行结果类型
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeNothingToDo
	OutcomePartial
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNothingToDo:
		return "nothing_to_do"
	case OutcomePartial:
		return "partial"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Classification 对外的状态分类
type Classification int

const (
	ClassSuccess Classification = iota
	ClassConfiguration
	ClassUpstream
	ClassStorage
	ClassInternal
)

// Status 响应中的status字段
func (c Classification) Status() string {
	switch c {
	case ClassSuccess:
		return "Success"
	case ClassConfiguration:
		return "Config Error"
	case ClassUpstream:
		return "API Error"
	case ClassStorage:
		return "Database Error"
	default:
		return "Internal Server Error"
	}
}

// HTTPStatus 触发接口的HTTP状态码
func (c Classification) HTTPStatus() int {
	switch c {
	case ClassSuccess:
		return http.StatusOK
	case ClassUpstream, ClassStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode 命令行退出码
func (c Classification) ExitCode() int {
	switch c {
	case ClassSuccess:
		return 0
	case ClassConfiguration:
		return 2
	case ClassUpstream:
		return 3
	case ClassStorage:
		return 4
	default:
		return 1
	}
}

func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.Status()), nil
}

// Classify 错误分类对应的状态分类
func Classify(kind ErrorKind) Classification {
	switch kind {
	case KindConfiguration:
		return ClassConfiguration
	case KindProvider:
		return ClassUpstream
	case KindStore:
		return ClassStorage
	default:
		return ClassInternal
	}
}

const (
	StatusNothingToDo = "No stocks to process"
	createdDateLayout = "2006-01-02 15:04:05"
)

// Stats 运行统计
type Stats struct {
	Stocks           int   `json:"stocks"`
	PricesSkipped    bool  `json:"prices_skipped"`
	MarketClosed     bool  `json:"market_closed"`
	PriceUnits       int   `json:"price_units"`
	PriceUnitsFailed int   `json:"price_units_failed"`
	PricesCollected  int   `json:"prices_collected"`
	PricesSaved      int64 `json:"prices_saved"`
	NewsUnits        int   `json:"news_units"`
	NewsUnitsFailed  int   `json:"news_units_failed"`
	NewsCollected    int   `json:"news_collected"`
	NewsSaved        int64 `json:"news_saved"`
	Notified         bool  `json:"notified"`
}

// Outcome 一次运行的最终结果
type Outcome struct {
	RunID          string         `json:"run_id"`
	Kind           OutcomeKind    `json:"kind"`
	Classification Classification `json:"classification"`
	Message        string         `json:"message"`
	FailedStages   []Stage        `json:"failed_stages,omitempty"`
	Cause          error          `json:"-"`
	Stats          Stats          `json:"stats"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// Payload 触发接口的响应体
type Payload struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	CreatedDate string `json:"created_date"`
}

// Payload 转换为对外响应
func (o Outcome) Payload() Payload {
	status := o.Classification.Status()
	if o.Kind == OutcomeNothingToDo {
		status = StatusNothingToDo
	}
	return Payload{
		Status:      status,
		Message:     o.Message,
		CreatedDate: o.FinishedAt.Format(createdDateLayout),
	}
}

// OK 成功或无事可做
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeNothingToDo
}

// Failure 流水线之外的失败（配置加载、连接建立）转换为终止结果
func Failure(runID string, err error, at time.Time) Outcome {
	return Outcome{
		RunID:          runID,
		Kind:           OutcomeFatal,
		Classification: Classify(KindOf(err)),
		Message:        err.Error(),
		FailedStages:   []Stage{StageOf(err)},
		Cause:          err,
		StartedAt:      at,
		FinishedAt:     at,
	}
}

func joinMessages(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
