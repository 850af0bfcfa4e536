// pkg/database/stock.go
package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"FinnPipeline/pkg/model"
)

type StockDB struct {
	db *gorm.DB
}

func (p *PostgresDB) Stock() *StockDB {
	return &StockDB{db: p.db}
}

// ListAll 读取全部跟踪的股票，按ID排序
func (s *StockDB) ListAll(ctx context.Context) ([]model.Stock, error) {
	var stocks []model.Stock
	err := s.db.WithContext(ctx).
		Select("id", "stock_code", "search_keyword").
		Order("id ASC").
		Find(&stocks).Error
	if err != nil {
		return nil, fmt.Errorf("查询股票列表失败: %w", err)
	}
	return stocks, nil
}
