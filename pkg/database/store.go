package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"FinnPipeline/pkg/model"
)

// Store 流水线使用的存储操作
type Store struct {
	db *PostgresDB
}

// NewStore 基于数据库连接创建存储
func NewStore(db *PostgresDB) *Store {
	return &Store{db: db}
}

func (s *Store) ListStocks(ctx context.Context) ([]model.Stock, error) {
	return s.db.Stock().ListAll(ctx)
}

func (s *Store) LatestPriceDate(ctx context.Context, before time.Time) (time.Time, bool, error) {
	return s.db.Price().LatestDate(ctx, before)
}

func (s *Store) ClosePricesOn(ctx context.Context, day time.Time) (map[int64]decimal.Decimal, error) {
	return s.db.Price().CloseOn(ctx, day)
}

func (s *Store) UpsertPrices(ctx context.Context, prices []model.StockPrice) (int64, error) {
	return s.db.Price().Upsert(ctx, prices)
}

func (s *Store) InsertNews(ctx context.Context, news []model.News) (int64, error) {
	return s.db.News().InsertBatch(ctx, news)
}

// Ping 健康检查
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
