package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"FinnPipeline/pkg/logger"
	"FinnPipeline/pkg/model"
)

// PricePrecision 价格保留的小数位
const PricePrecision = 4

// PriceFetcher 单只股票日线采集
type PriceFetcher struct {
	provider PriceProvider
	logger   *zap.Logger
}

// NewPriceFetcher 创建价格采集器
func NewPriceFetcher(provider PriceProvider, log *zap.Logger) *PriceFetcher {
	return &PriceFetcher{
		provider: provider,
		logger:   logger.OrNop(log),
	}
}

// Func 绑定本次运行的创建时间
func (f *PriceFetcher) Func(createdAt time.Time) FetchFunc[model.StockPrice] {
	return func(ctx context.Context, unit Unit) UnitResult[model.StockPrice] {
		return f.Fetch(ctx, unit, createdAt)
	}
}

// Fetch 获取一只股票在区间内的日线，空序列视为跳过
func (f *PriceFetcher) Fetch(ctx context.Context, unit Unit, createdAt time.Time) UnitResult[model.StockPrice] {
	stock := unit.Stock
	if stock.StockCode == "" {
		return Empty[model.StockPrice]()
	}

	rows, err := f.provider.GetDailyPrices(ctx, stock.StockCode, unit.Window.Start, unit.Window.End)
	if err != nil {
		return Failed[model.StockPrice](fmt.Errorf("获取 %s 日线失败: %w", stock.StockCode, err))
	}
	if len(rows) == 0 {
		f.logger.Debug("行情为空，跳过", zap.String("stock_code", stock.StockCode))
		return Empty[model.StockPrice]()
	}

	prices := make([]model.StockPrice, 0, len(rows))
	for _, row := range rows {
		price, ok := normalizePrice(stock.ID, row, createdAt)
		if !ok {
			f.logger.Debug("丢弃不完整的行情记录",
				zap.String("stock_code", stock.StockCode),
				zap.String("date", row.Date),
			)
			continue
		}
		prices = append(prices, price)
	}

	return Succeeded(prices)
}

// MarketOpen 查询参考标的在[昨天, 今天]的行情，结果为空表示今天休市
func (f *PriceFetcher) MarketOpen(ctx context.Context, referenceSymbol string, today time.Time) (bool, error) {
	today = model.Day(today)
	rows, err := f.provider.GetDailyPrices(ctx, referenceSymbol, today.AddDate(0, 0, -1), today)
	if err != nil {
		return false, fmt.Errorf("查询参考标的 %s 失败: %w", referenceSymbol, err)
	}
	return len(rows) > 0, nil
}

// normalizePrice 将Tiingo字段转换为统一数据模型，缺少必要字段时返回false
func normalizePrice(stockID int64, row DailyPrice, createdAt time.Time) (model.StockPrice, bool) {
	date, err := parsePriceDate(row.Date)
	if err != nil {
		return model.StockPrice{}, false
	}

	// 开高低取复权价，收盘取原始价
	fields := []decimal.NullDecimal{row.AdjOpen, row.AdjHigh, row.AdjLow, row.Close, row.AdjClose, row.Volume}
	for _, field := range fields {
		if !field.Valid {
			return model.StockPrice{}, false
		}
	}

	price := model.StockPrice{
		StockID:       stockID,
		PriceDate:     date,
		OpenPrice:     row.AdjOpen.Decimal.Round(PricePrecision),
		HighPrice:     row.AdjHigh.Decimal.Round(PricePrecision),
		LowPrice:      row.AdjLow.Decimal.Round(PricePrecision),
		ClosePrice:    row.Close.Decimal.Round(PricePrecision),
		AdjClosePrice: row.AdjClose.Decimal.Round(PricePrecision),
		ChangeRate:    decimal.Zero,
		Volume:        row.Volume.Decimal.IntPart(),
		CreatedAt:     createdAt,
	}
	if !price.Complete() {
		return model.StockPrice{}, false
	}
	return price, true
}

// parsePriceDate 解析行情日期，只保留日期部分
func parsePriceDate(s string) (time.Time, error) {
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析日期: %q", s)
}
