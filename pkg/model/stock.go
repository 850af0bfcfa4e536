package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock 跟踪的股票
type Stock struct {
	ID            int64  `gorm:"primaryKey" json:"id"`
	StockCode     string `gorm:"type:varchar(20)" json:"stock_code"`
	SearchKeyword string `gorm:"type:varchar(100)" json:"search_keyword"`
}

func (Stock) TableName() string {
	return "stocks"
}

// StockPrice 日线价格记录，(stock_id, price_date) 唯一
type StockPrice struct {
	ID            int64           `gorm:"primaryKey" json:"-"`
	StockID       int64           `gorm:"not null;uniqueIndex:idx_stock_prices_stock_date" json:"stock_id"`
	PriceDate     time.Time       `gorm:"type:date;not null;uniqueIndex:idx_stock_prices_stock_date" json:"price_date"`
	OpenPrice     decimal.Decimal `gorm:"type:numeric(18,4)" json:"open_price"`
	HighPrice     decimal.Decimal `gorm:"type:numeric(18,4)" json:"high_price"`
	LowPrice      decimal.Decimal `gorm:"type:numeric(18,4)" json:"low_price"`
	ClosePrice    decimal.Decimal `gorm:"type:numeric(18,4)" json:"close_price"`
	AdjClosePrice decimal.Decimal `gorm:"type:numeric(18,4)" json:"adj_close_price"`
	ChangeRate    decimal.Decimal `gorm:"type:numeric(10,2);default:0" json:"change_rate"`
	Volume        int64           `json:"volume"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (StockPrice) TableName() string {
	return "stock_prices"
}

// Complete 检查必要字段是否齐全，StockID是不透明标识，0也是合法值
func (p StockPrice) Complete() bool {
	if p.PriceDate.IsZero() {
		return false
	}
	return p.ClosePrice.IsPositive() &&
		!p.OpenPrice.IsNegative() &&
		!p.HighPrice.IsNegative() &&
		!p.LowPrice.IsNegative() &&
		!p.AdjClosePrice.IsNegative()
}
