package config

import "time"

// 可选配置项的默认值
const (
	DefaultAppName          = "finn-pipeline"
	DefaultTiingoURL        = "https://api.tiingo.com"
	DefaultTiingoTimeout    = 20 * time.Second
	DefaultReferenceSymbol  = "SPY"
	DefaultNewsURL          = "https://news.google.com/rss/search"
	DefaultNewsTimeout      = 10 * time.Second
	DefaultNewsLimitPerDay  = 30
	DefaultNewsLanguage     = "en-US"
	DefaultNewsCountry      = "US"
	DefaultNewsEdition      = "US:en"
	DefaultConcurrency      = 5
	DefaultSource           = "data-collection-function"
	DefaultTimezone         = "Asia/Seoul"
	DefaultPriceWindowDays  = 2
	DefaultNewsWindowDays   = 1
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "disable"
	DefaultMaxOpenConns     = 25
	DefaultMaxIdleConns     = 5
	DefaultConnMaxLifetime  = 5 * time.Minute
	DefaultNATSBackend      = "jetstream"
	DefaultNATSStream       = "PIPELINE_STREAM"
	DefaultNATSSubject      = "pipeline.completed"
	DefaultNATSClientID     = "finn-pipeline"
	DefaultNATSTimeout      = 5 * time.Second
	DefaultAPIPort          = "8080"
	DefaultAPIReadTimeout   = 15 * time.Second
	DefaultAPIWriteTimeout  = 10 * time.Minute
	DefaultSchedulerSpec    = "0 7 * * 2-6"
	DefaultRunTimeout       = 30 * time.Minute
	DefaultHealthInterval   = 5 * time.Minute
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
)

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = DefaultAppName
	}

	// 数据源
	tiingo := &c.DataSources.Tiingo
	if tiingo.BaseURL == "" {
		tiingo.BaseURL = DefaultTiingoURL
	}
	if tiingo.Timeout == 0 {
		tiingo.Timeout = DefaultTiingoTimeout
	}
	if tiingo.ReferenceSymbol == "" {
		tiingo.ReferenceSymbol = DefaultReferenceSymbol
	}

	news := &c.DataSources.News
	if news.BaseURL == "" {
		news.BaseURL = DefaultNewsURL
	}
	if news.Timeout == 0 {
		news.Timeout = DefaultNewsTimeout
	}
	if news.LimitPerDay == 0 {
		news.LimitPerDay = DefaultNewsLimitPerDay
	}
	if news.Language == "" {
		news.Language = DefaultNewsLanguage
	}
	if news.Country == "" {
		news.Country = DefaultNewsCountry
	}
	if news.Edition == "" {
		news.Edition = DefaultNewsEdition
	}

	// 采集器
	applyCollectorDefaults(&c.Collector.Prices)
	applyCollectorDefaults(&c.Collector.News)

	// 流水线
	if c.Pipeline.Source == "" {
		c.Pipeline.Source = DefaultSource
	}
	if c.Pipeline.Timezone == "" {
		c.Pipeline.Timezone = DefaultTimezone
	}
	if c.Pipeline.PriceWindowDays == 0 {
		c.Pipeline.PriceWindowDays = DefaultPriceWindowDays
	}
	if c.Pipeline.NewsWindowDays == 0 {
		c.Pipeline.NewsWindowDays = DefaultNewsWindowDays
	}

	// 数据库
	db := &c.Database.Postgres
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxOpenConns == 0 {
		db.MaxOpenConns = DefaultMaxOpenConns
	}
	if db.MaxIdleConns == 0 {
		db.MaxIdleConns = DefaultMaxIdleConns
	}
	if db.ConnMaxLifetime == 0 {
		db.ConnMaxLifetime = DefaultConnMaxLifetime
	}

	// NATS
	if c.NATS.Backend == "" {
		c.NATS.Backend = DefaultNATSBackend
	}
	if c.NATS.Stream == "" {
		c.NATS.Stream = DefaultNATSStream
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = DefaultNATSSubject
	}
	if c.NATS.ClientID == "" {
		c.NATS.ClientID = DefaultNATSClientID
	}
	if c.NATS.Timeout == 0 {
		c.NATS.Timeout = DefaultNATSTimeout
	}

	// API
	if c.API.Port == "" {
		c.API.Port = DefaultAPIPort
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = DefaultAPIReadTimeout
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = DefaultAPIWriteTimeout
	}

	if c.Scheduler.Spec == "" {
		c.Scheduler.Spec = DefaultSchedulerSpec
	}
	if c.Scheduler.RunTimeout == 0 {
		c.Scheduler.RunTimeout = DefaultRunTimeout
	}
	if c.Scheduler.HealthInterval == 0 {
		c.Scheduler.HealthInterval = DefaultHealthInterval
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyCollectorDefaults(cc *CollectorConfig) {
	if cc.Concurrency == 0 {
		cc.Concurrency = DefaultConcurrency
	}
	if cc.RatePerSecond > 0 && cc.Burst == 0 {
		cc.Burst = 1
	}
}
