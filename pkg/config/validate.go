package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalid 配置校验失败
var ErrInvalid = errors.New("配置无效")

// Validate 检查必填项和取值范围
func (c *Config) Validate() error {
	if err := c.Database.Postgres.validate("database.postgres"); err != nil {
		return err
	}

	if c.NATS.URL == "" {
		return invalid("nats.url 不能为空")
	}
	switch c.NATS.Backend {
	case "jetstream":
		if c.NATS.Stream == "" {
			return invalid("nats.stream 不能为空")
		}
	case "stan":
		if c.NATS.ClusterID == "" {
			return invalid("nats.cluster_id 不能为空")
		}
	default:
		return invalid("nats.backend 必须是 jetstream 或 stan, 当前为 %q", c.NATS.Backend)
	}
	if c.NATS.Subject == "" {
		return invalid("nats.subject 不能为空")
	}

	if err := c.Collector.Prices.validate("collector.prices"); err != nil {
		return err
	}
	if err := c.Collector.News.validate("collector.news"); err != nil {
		return err
	}

	if c.Pipeline.PriceWindowDays < 1 {
		return invalid("pipeline.price_window_days 必须 >= 1")
	}
	if c.Pipeline.NewsWindowDays < 1 {
		return invalid("pipeline.news_window_days 必须 >= 1")
	}
	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		return invalid("pipeline.timezone 无法解析: %v", err)
	}

	if c.DataSources.News.LimitPerDay < 1 {
		return invalid("data_sources.news.limit_per_day 必须 >= 1")
	}

	if c.Scheduler.RunTimeout <= 0 {
		return invalid("scheduler.run_timeout 必须 > 0, 当前为 %s", c.Scheduler.RunTimeout)
	}
	if c.Scheduler.HealthInterval < 0 {
		return invalid("scheduler.health_interval 不能为负数")
	}

	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.Spec); err != nil {
			return invalid("scheduler.spec 无法解析: %v", err)
		}
	}

	return nil
}

// HasTiingoKey 是否配置了行情API密钥
func (c *Config) HasTiingoKey() bool {
	return c.DataSources.Tiingo.APIKey != ""
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return invalid("%s.host 不能为空", prefix)
	}
	if db.DBName == "" {
		return invalid("%s.dbname 不能为空", prefix)
	}
	if db.User == "" {
		return invalid("%s.user 不能为空", prefix)
	}
	if db.Port < 1 || db.Port > 65535 {
		return invalid("%s.port 必须在 1-65535 之间, 当前为 %d", prefix, db.Port)
	}
	if db.MaxIdleConns > db.MaxOpenConns {
		return invalid("%s.max_idle_conns (%d) 不能超过 max_open_conns (%d)", prefix, db.MaxIdleConns, db.MaxOpenConns)
	}
	return nil
}

func (cc *CollectorConfig) validate(prefix string) error {
	if cc.Concurrency < 1 {
		return invalid("%s.concurrency 必须 >= 1", prefix)
	}
	if cc.RatePerSecond < 0 {
		return invalid("%s.rate_per_second 不能为负数", prefix)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
