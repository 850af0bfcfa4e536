package reconciler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"FinnPipeline/pkg/model"
)

// ChangeRatePrecision 涨跌幅保留的小数位
const ChangeRatePrecision = 2

var hundred = decimal.NewFromInt(100)

// CloseHistory 已持久化的收盘价查询
// 基准取早于本次行情区间起点的最新日期，而不是库中全局最新日期，同一区间重跑时涨跌幅保持不变
type CloseHistory interface {
	// LatestPriceDate 返回早于before的最新行情日期，没有历史时ok为false
	LatestPriceDate(ctx context.Context, before time.Time) (day time.Time, ok bool, err error)
	// ClosePricesOn 返回某一天所有股票的收盘价
	ClosePricesOn(ctx context.Context, day time.Time) (map[int64]decimal.Decimal, error)
}

// LastCloses 每只股票最近一次持久化的收盘价
type LastCloses struct {
	Day    time.Time
	Prices map[int64]decimal.Decimal
}

// Reconciler 行情与历史收盘价对账，计算涨跌幅
type Reconciler struct {
	history CloseHistory
}

// New 创建对账器
func New(history CloseHistory) *Reconciler {
	return &Reconciler{history: history}
}

// LoadLastCloses 每次运行只查询一次: 先取最新日期，再取当天全部收盘价
func (r *Reconciler) LoadLastCloses(ctx context.Context, before time.Time) (LastCloses, error) {
	day, ok, err := r.history.LatestPriceDate(ctx, before)
	if err != nil {
		return LastCloses{}, fmt.Errorf("查询最新行情日期失败: %w", err)
	}
	if !ok {
		return LastCloses{Prices: map[int64]decimal.Decimal{}}, nil
	}

	prices, err := r.history.ClosePricesOn(ctx, day)
	if err != nil {
		return LastCloses{}, fmt.Errorf("查询 %s 收盘价失败: %w", day.Format("2006-01-02"), err)
	}
	if prices == nil {
		prices = map[int64]decimal.Decimal{}
	}
	return LastCloses{Day: day, Prices: prices}, nil
}

// Apply 过滤不完整记录并计算涨跌幅。
// 每只股票按日期排序，第一条与持久化收盘价比较，之后每条与前一条比较。
func (r *Reconciler) Apply(records []model.StockPrice, last LastCloses) []model.StockPrice {
	out := make([]model.StockPrice, 0, len(records))
	for _, rec := range records {
		if rec.Complete() {
			out = append(out, rec)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StockID != out[j].StockID {
			return out[i].StockID < out[j].StockID
		}
		return out[i].PriceDate.Before(out[j].PriceDate)
	})

	prev := make(map[int64]decimal.Decimal, len(last.Prices))
	for id, p := range last.Prices {
		prev[id] = p
	}

	for i := range out {
		rec := &out[i]
		lastClose, ok := prev[rec.StockID]
		if ok {
			rec.ChangeRate = ChangeRate(rec.ClosePrice, lastClose)
		} else {
			rec.ChangeRate = decimal.Zero
		}
		prev[rec.StockID] = rec.ClosePrice
	}
	return out
}

// ChangeRate ((close - last) / last) * 100，保留两位小数；last不为正时为0
func ChangeRate(close, last decimal.Decimal) decimal.Decimal {
	if !last.IsPositive() {
		return decimal.Zero
	}
	return close.Sub(last).Div(last).Mul(hundred).Round(ChangeRatePrecision)
}
