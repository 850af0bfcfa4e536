// pkg/model/news.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// News 新闻记录
type News struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	StockID       int64     `gorm:"not null;index" json:"stock_id"`
	Title         string    `gorm:"type:varchar(100);not null" json:"title"`
	OriginalURL   string    `gorm:"type:text" json:"original_url"`
	PublishedDate time.Time `gorm:"not null;index" json:"published_date"`
	CompanyName   string    `gorm:"type:varchar(100)" json:"company_name"`
	ViewCount     int       `gorm:"default:0" json:"view_count"`
	LikeCount     int       `gorm:"default:0" json:"like_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func (News) TableName() string {
	return "news"
}

func (n *News) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}
