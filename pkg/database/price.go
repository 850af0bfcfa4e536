// pkg/database/price.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"FinnPipeline/pkg/model"
)

const (
	priceBatchSize = 500
	dateLayout     = "2006-01-02"
)

type PriceDB struct {
	db *gorm.DB
}

func (p *PostgresDB) Price() *PriceDB {
	return &PriceDB{db: p.db}
}

// LatestDate 早于before的最新行情日期，没有记录时ok为false
func (q *PriceDB) LatestDate(ctx context.Context, before time.Time) (time.Time, bool, error) {
	var latest sql.NullTime
	err := q.db.WithContext(ctx).
		Model(&model.StockPrice{}).
		Select("MAX(price_date)").
		Where("price_date < ?", before.Format(dateLayout)).
		Row().
		Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("查询最新行情日期失败: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return latest.Time, true, nil
}

// CloseOn 某一天所有股票的收盘价
func (q *PriceDB) CloseOn(ctx context.Context, day time.Time) (map[int64]decimal.Decimal, error) {
	var rows []struct {
		StockID    int64
		ClosePrice decimal.Decimal
	}
	err := q.db.WithContext(ctx).
		Model(&model.StockPrice{}).
		Select("stock_id", "close_price").
		Where("price_date = ?", day.Format(dateLayout)).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询收盘价失败: %w", err)
	}

	closes := make(map[int64]decimal.Decimal, len(rows))
	for _, r := range rows {
		closes[r.StockID] = r.ClosePrice
	}
	return closes, nil
}

// Upsert 按 (stock_id, price_date) 写入，已存在时覆盖
func (q *PriceDB) Upsert(ctx context.Context, prices []model.StockPrice) (int64, error) {
	if len(prices) == 0 {
		return 0, nil
	}
	result := q.db.WithContext(ctx).
		Clauses(upsertPriceClause()).
		CreateInBatches(&prices, priceBatchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("写入行情数据失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func upsertPriceClause() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "stock_id"}, {Name: "price_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"open_price", "high_price", "low_price", "close_price",
			"adj_close_price", "change_rate", "volume", "created_at",
		}),
	}
}
