package database

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"FinnPipeline/pkg/config"
	"FinnPipeline/pkg/model"
)

// PostgresDB PostgreSQL数据库连接
type PostgresDB struct {
	db *gorm.DB
}

// NewPostgresDB 创建新的PostgreSQL连接
func NewPostgresDB(cfg config.DBConfig) (*PostgresDB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接池失败: %w", err)
	}

	// 设置连接池参数
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	p := &PostgresDB{db: db}
	if cfg.AutoMigrate {
		if err := p.AutoMigrate(); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return p, nil
}

// AutoMigrate 创建或更新表结构
func (p *PostgresDB) AutoMigrate() error {
	if err := p.db.AutoMigrate(&model.Stock{}, &model.StockPrice{}, &model.News{}); err != nil {
		return fmt.Errorf("迁移表结构失败: %w", err)
	}
	return nil
}

// Ping 测试数据库连接
func (p *PostgresDB) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("获取数据库连接池失败: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("测试数据库连接失败: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (p *PostgresDB) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
