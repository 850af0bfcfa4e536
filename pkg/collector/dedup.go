package collector

import (
	"fmt"
	"strings"

	"FinnPipeline/pkg/model"
)

// TitlePrefixLength 新闻标题去重前缀长度
const TitlePrefixLength = 50

// Deduplicate 按键去重，保留首次出现的记录，保持输入顺序
func Deduplicate[T any](items []T, key KeyFunc[T]) []T {
	if key == nil {
		return items
	}
	seen := make(map[string]struct{}, len(items))
	kept := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, item)
	}
	return kept
}

// TitleKey 取标题前prefixLen个字符，去空白并转小写
func TitleKey(title string, prefixLen int) string {
	runes := []rune(title)
	if len(runes) > prefixLen {
		runes = runes[:prefixLen]
	}
	return strings.ToLower(strings.TrimSpace(string(runes)))
}

// NewsKey 新闻去重键
func NewsKey(n model.News) string {
	return TitleKey(n.Title, TitlePrefixLength)
}

// PriceKey 价格去重键 (stock_id, price_date)
func PriceKey(p model.StockPrice) string {
	return fmt.Sprintf("%d|%s", p.StockID, p.PriceDate.Format("2006-01-02"))
}
