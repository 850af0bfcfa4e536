package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	DataSources struct {
		Tiingo struct {
			APIKey          string        `yaml:"api_key"`
			BaseURL         string        `yaml:"base_url"`
			Timeout         time.Duration `yaml:"timeout"`
			ReferenceSymbol string        `yaml:"reference_symbol"`
		} `yaml:"tiingo"`

		News struct {
			BaseURL     string        `yaml:"base_url"`
			Timeout     time.Duration `yaml:"timeout"`
			LimitPerDay int           `yaml:"limit_per_day"`
			Language    string        `yaml:"language"`
			Country     string        `yaml:"country"`
			Edition     string        `yaml:"edition"`
		} `yaml:"news"`
	} `yaml:"data_sources"`

	Collector struct {
		Prices CollectorConfig `yaml:"prices"`
		News   CollectorConfig `yaml:"news"`
	} `yaml:"collector"`

	Pipeline struct {
		Source           string `yaml:"source"`
		Timezone         string `yaml:"timezone"`
		PriceWindowDays  int    `yaml:"price_window_days"`
		NewsWindowDays   int    `yaml:"news_window_days"`
		SkipClosedMarket *bool  `yaml:"skip_closed_market"`
	} `yaml:"pipeline"`

	Database struct {
		Postgres DBConfig `yaml:"postgres"`
	} `yaml:"database"`

	NATS NATSConfig `yaml:"nats"`

	API struct {
		Port         string        `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"api"`

	Scheduler struct {
		Enabled        bool          `yaml:"enabled"`
		Spec           string        `yaml:"spec"`
		RunTimeout     time.Duration `yaml:"run_timeout"`
		HealthInterval time.Duration `yaml:"health_interval"`
	} `yaml:"scheduler"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// CollectorConfig 并发采集配置
type CollectorConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	RatePerSecond float64       `yaml:"rate_per_second"` // 0 表示不限速
	Burst         int           `yaml:"burst"`
	UnitTimeout   time.Duration `yaml:"unit_timeout"`
}

// NATSConfig 完成消息通道配置
type NATSConfig struct {
	Backend   string        `yaml:"backend"` // jetstream 或 stan
	URL       string        `yaml:"url"`
	ClusterID string        `yaml:"cluster_id"`
	ClientID  string        `yaml:"client_id"`
	Stream    string        `yaml:"stream"`
	Subject   string        `yaml:"subject"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DBConfig 数据库连接配置
type DBConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// DSN 构建连接字符串
func (db DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.User, db.Password, db.DBName, db.SSLMode,
	)
}

// SkipClosedMarketEnabled 休市日是否跳过价格采集，默认开启
func (c *Config) SkipClosedMarketEnabled() bool {
	return c.Pipeline.SkipClosedMarket == nil || *c.Pipeline.SkipClosedMarket
}

// Location 解析配置的时区
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Pipeline.Timezone)
}

// LoadConfig 从文件加载配置
func LoadConfig(path string) (*Config, error) {
	// 读取配置文件
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return Parse(data)
}

// Parse 解析YAML内容，应用环境变量和默认值并校验
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 环境变量覆盖
	overrideFromEnv(&config)
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// overrideFromEnv 使用环境变量覆盖配置
func overrideFromEnv(config *Config) {
	// 应用名称
	if env := os.Getenv("APP_NAME"); env != "" {
		config.App.Name = env
	}

	// 环境
	if env := os.Getenv("APP_ENV"); env != "" {
		config.App.Env = env
	}

	// Tiingo配置
	if env := os.Getenv("TIINGO_API_KEY"); env != "" {
		config.DataSources.Tiingo.APIKey = env
	}
	if env := os.Getenv("TIINGO_BASE_URL"); env != "" {
		config.DataSources.Tiingo.BaseURL = env
	}

	// 新闻源
	if env := os.Getenv("NEWS_BASE_URL"); env != "" {
		config.DataSources.News.BaseURL = env
	}

	// 数据库配置
	db := &config.Database.Postgres
	if env := os.Getenv("DB_HOST"); env != "" {
		db.Host = env
	}
	if env := os.Getenv("DB_PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil && port > 0 {
			db.Port = port
		}
	}
	if env := os.Getenv("DB_USER"); env != "" {
		db.User = env
	}
	if env := os.Getenv("DB_PASSWORD"); env != "" {
		db.Password = env
	}
	if env := os.Getenv("DB_NAME"); env != "" {
		db.DBName = env
	}
	if env := os.Getenv("DB_SSLMODE"); env != "" {
		db.SSLMode = env
	}

	// NATS配置
	if env := os.Getenv("NATS_BACKEND"); env != "" {
		config.NATS.Backend = env
	}
	if env := os.Getenv("NATS_URL"); env != "" {
		config.NATS.URL = env
	}
	if env := os.Getenv("NATS_CLUSTER_ID"); env != "" {
		config.NATS.ClusterID = env
	}
	if env := os.Getenv("NATS_CLIENT_ID"); env != "" {
		config.NATS.ClientID = env
	}
	if env := os.Getenv("NATS_SUBJECT"); env != "" {
		config.NATS.Subject = env
	}

	// API配置
	if env := os.Getenv("API_PORT"); env != "" {
		config.API.Port = env
	}

	// 日志
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		config.Log.Level = env
	}
}

// GetDefaultConfigPath 获取默认配置文件路径
func GetDefaultConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev" // 默认开发环境
	}

	return fmt.Sprintf("configs/%s/app.yaml", env)
}
