package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"FinnPipeline/pkg/logger"
	"FinnPipeline/pkg/model"
)

const (
	// MaxTitleLength 标题最大长度，超出时截断并加省略号
	MaxTitleLength = 100
	ellipsis       = "..."
)

// NewsConfig 新闻RSS搜索配置
type NewsConfig struct {
	BaseURL     string
	Timeout     time.Duration
	LimitPerDay int
	Language    string // hl
	Country     string // gl
	Edition     string // ceid
}

// NewsFetcher Google News RSS 搜索采集
type NewsFetcher struct {
	cfg        NewsConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewNewsFetcher 创建新闻采集器
func NewNewsFetcher(cfg NewsConfig, log *zap.Logger) *NewsFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LimitPerDay <= 0 {
		cfg.LimitPerDay = 30
	}
	return &NewsFetcher{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.OrNop(log),
	}
}

// Func 绑定本次运行的创建时间
func (f *NewsFetcher) Func(createdAt time.Time) FetchFunc[model.News] {
	return func(ctx context.Context, unit Unit) UnitResult[model.News] {
		return f.Fetch(ctx, unit, createdAt)
	}
}

// SearchURL 构建 [day, day+1) 的搜索地址
func (f *NewsFetcher) SearchURL(keyword string, day time.Time) string {
	start := day.Format("2006-01-02")
	end := day.AddDate(0, 0, 1).Format("2006-01-02")

	query := url.Values{}
	query.Set("q", fmt.Sprintf("%s after:%s before:%s", keyword, start, end))
	if f.cfg.Language != "" {
		query.Set("hl", f.cfg.Language)
	}
	if f.cfg.Country != "" {
		query.Set("gl", f.cfg.Country)
	}
	if f.cfg.Edition != "" {
		query.Set("ceid", f.cfg.Edition)
	}
	return f.cfg.BaseURL + "?" + query.Encode()
}

// Fetch 获取一只股票某一天的新闻
func (f *NewsFetcher) Fetch(ctx context.Context, unit Unit, createdAt time.Time) UnitResult[model.News] {
	stock := unit.Stock
	keyword := strings.TrimSpace(stock.SearchKeyword)
	if keyword == "" {
		return Empty[model.News]()
	}

	searchURL := f.SearchURL(keyword, unit.Day())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return Failed[model.News](fmt.Errorf("创建HTTP请求失败: %w", err))
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Failed[model.News](fmt.Errorf("请求新闻RSS失败: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Failed[model.News](&APIError{Source: "news rss", StatusCode: resp.StatusCode})
	}

	// gofeed.Parser 内部有状态，每个单元单独创建
	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return Failed[model.News](fmt.Errorf("解析新闻RSS失败: %w", err))
	}

	items := feed.Items
	if len(items) > f.cfg.LimitPerDay {
		items = items[:f.cfg.LimitPerDay]
	}

	news := make([]model.News, 0, len(items))
	for _, item := range items {
		n, ok := toNews(stock.ID, keyword, item, createdAt)
		if !ok {
			f.logger.Debug("跳过无法解析的新闻条目",
				zap.String("keyword", keyword),
				zap.String("title", item.Title),
			)
			continue
		}
		news = append(news, n)
	}

	return Succeeded(news)
}

// toNews 单条RSS条目转换为新闻，缺少发布时间或标题时返回false
func toNews(stockID int64, keyword string, item *gofeed.Item, createdAt time.Time) (model.News, bool) {
	if item == nil || item.PublishedParsed == nil {
		return model.News{}, false
	}
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return model.News{}, false
	}

	link := item.Link
	if link == "" && len(item.Links) > 0 {
		link = item.Links[0]
	}

	return model.News{
		StockID:       stockID,
		Title:         AdjustTitle(title),
		OriginalURL:   link,
		PublishedDate: *item.PublishedParsed,
		CompanyName:   keyword,
		ViewCount:     0,
		LikeCount:     0,
		CreatedAt:     createdAt,
	}, true
}

// AdjustTitle 超过100个字符时截取前97个字符并加省略号
func AdjustTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= MaxTitleLength {
		return title
	}
	return string(runes[:MaxTitleLength-len(ellipsis)]) + ellipsis
}
