// pkg/database/news.go
package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"FinnPipeline/pkg/model"
)

const newsBatchSize = 500

type NewsDB struct {
	db *gorm.DB
}

func (p *PostgresDB) News() *NewsDB {
	return &NewsDB{db: p.db}
}

// InsertBatch 批量写入新闻
func (n *NewsDB) InsertBatch(ctx context.Context, news []model.News) (int64, error) {
	if len(news) == 0 {
		return 0, nil
	}
	result := n.db.WithContext(ctx).CreateInBatches(&news, newsBatchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("写入新闻失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}
