package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"FinnPipeline/pkg/config"
	"FinnPipeline/pkg/model"
)

const (
	BackendJetStream = "jetstream"
	BackendStan      = "stan"
)

// Config 消息通道配置
type Config = config.NATSConfig

// Notifier 完成消息通道
type Notifier interface {
	PublishCompletion(ctx context.Context, msg model.CompletionMessage) error
	Ping(ctx context.Context) error
	Close() error
}

// NewNotifier 根据backend创建对应的客户端
func NewNotifier(ctx context.Context, cfg Config, log *zap.Logger) (Notifier, error) {
	switch cfg.Backend {
	case "", BackendJetStream:
		return NewNATSClient(ctx, cfg, log)
	case BackendStan:
		return NewStanClient(cfg, log)
	default:
		return nil, fmt.Errorf("不支持的消息通道: %s", cfg.Backend)
	}
}

// EncodeCompletion 完成消息序列化为JSON
func EncodeCompletion(msg model.CompletionMessage) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("序列化数据失败: %w", err)
	}
	return payload, nil
}
