package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TiingoClient Tiingo API客户端
type TiingoClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// DailyPrice Tiingo日线行情原始数据，缺失字段为无效值
type DailyPrice struct {
	Date        string              `json:"date"`
	Open        decimal.NullDecimal `json:"open"`
	High        decimal.NullDecimal `json:"high"`
	Low         decimal.NullDecimal `json:"low"`
	Close       decimal.NullDecimal `json:"close"`
	Volume      decimal.NullDecimal `json:"volume"`
	AdjOpen     decimal.NullDecimal `json:"adjOpen"`
	AdjHigh     decimal.NullDecimal `json:"adjHigh"`
	AdjLow      decimal.NullDecimal `json:"adjLow"`
	AdjClose    decimal.NullDecimal `json:"adjClose"`
	AdjVolume   decimal.NullDecimal `json:"adjVolume"`
	DivCash     decimal.NullDecimal `json:"divCash"`
	SplitFactor decimal.NullDecimal `json:"splitFactor"`
}

// APIError 上游API返回的错误状态码
type APIError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s 返回非200状态码: %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s 返回非200状态码: %d, %s", e.Source, e.StatusCode, e.Body)
}

// NewTiingoClient 创建新的Tiingo客户端
func NewTiingoClient(apiKey, baseURL string, timeout time.Duration) *TiingoClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &TiingoClient{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetDailyPrices 获取[start, end]区间的日线行情
func (c *TiingoClient) GetDailyPrices(ctx context.Context, symbol string, start, end time.Time) ([]DailyPrice, error) {
	query := url.Values{}
	query.Set("startDate", start.Format("2006-01-02"))
	query.Set("endDate", end.Format("2006-01-02"))
	query.Set("resampleFreq", "daily")
	query.Set("format", "json")

	apiURL := fmt.Sprintf("%s/tiingo/daily/%s/prices?%s", c.BaseURL, url.PathEscape(symbol), query.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+c.APIKey)

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("执行HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Source: "tiingo", StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var prices []DailyPrice
	if err := json.Unmarshal(body, &prices); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	return prices, nil
}

// truncate 按字符截断，不拆分多字节字符
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
