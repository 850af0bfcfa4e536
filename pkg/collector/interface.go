package collector

import (
	"context"
	"time"
)

// PriceProvider 日线行情数据接口
type PriceProvider interface {
	GetDailyPrices(ctx context.Context, symbol string, start, end time.Time) ([]DailyPrice, error)
}

// FetchFunc 执行单个采集单元，失败通过UnitResult返回而不是panic
type FetchFunc[T any] func(ctx context.Context, unit Unit) UnitResult[T]

// KeyFunc 去重键
type KeyFunc[T any] func(T) string
