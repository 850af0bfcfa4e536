package collector

import (
	"time"

	"FinnPipeline/pkg/model"
)

// Unit 采集单元: 一只股票 + 一个日期区间
type Unit struct {
	Stock  model.Stock
	Window model.CollectionWindow
}

// Day 单日单元对应的日期
func (u Unit) Day() time.Time {
	return u.Window.Start
}

// UnitStatus 采集单元结果类型
type UnitStatus int

const (
	StatusSuccess UnitStatus = iota
	StatusEmpty
	StatusFailed
)

func (s UnitStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UnitResult 单个采集单元的结果
type UnitResult[T any] struct {
	Unit    Unit
	Status  UnitStatus
	Records []T
	Err     error
}

// Succeeded 成功结果，没有记录时视为空结果
func Succeeded[T any](records []T) UnitResult[T] {
	if len(records) == 0 {
		return UnitResult[T]{Status: StatusEmpty}
	}
	return UnitResult[T]{Status: StatusSuccess, Records: records}
}

// Empty 空结果
func Empty[T any]() UnitResult[T] {
	return UnitResult[T]{Status: StatusEmpty}
}

// Failed 失败结果
func Failed[T any](err error) UnitResult[T] {
	return UnitResult[T]{Status: StatusFailed, Err: err}
}

// DailyUnits 股票 × 区间内每一天 的全部组合，want为false的股票被跳过
func DailyUnits(stocks []model.Stock, window model.CollectionWindow, want func(model.Stock) bool) []Unit {
	days := window.Days()
	units := make([]Unit, 0, len(stocks)*len(days))
	for _, stock := range stocks {
		if want != nil && !want(stock) {
			continue
		}
		for _, day := range days {
			units = append(units, Unit{Stock: stock, Window: model.SingleDay(day)})
		}
	}
	return units
}

// WindowUnits 每只股票一个单元，覆盖整个区间
func WindowUnits(stocks []model.Stock, window model.CollectionWindow, want func(model.Stock) bool) []Unit {
	units := make([]Unit, 0, len(stocks))
	for _, stock := range stocks {
		if want != nil && !want(stock) {
			continue
		}
		units = append(units, Unit{Stock: stock, Window: window})
	}
	return units
}

// HasKeyword 有搜索关键词
func HasKeyword(s model.Stock) bool {
	return s.SearchKeyword != ""
}

// HasCode 有行情代码
func HasCode(s model.Stock) bool {
	return s.StockCode != ""
}
