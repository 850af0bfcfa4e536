// pkg/messaging/nats.go
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"FinnPipeline/pkg/logger"
	"FinnPipeline/pkg/model"
)

// NATSClient NATS JetStream客户端
type NATSClient struct {
	conn      *nats.Conn
	jetStream jetstream.JetStream
	stream    string
	subject   string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewNATSClient 创建新的NATS客户端，并确保完成消息的Stream存在
func NewNATSClient(ctx context.Context, cfg Config, log *zap.Logger) (*NATSClient, error) {
	log = logger.OrNop(log).With(zap.String("backend", BackendJetStream))

	opts := []nats.Option{
		nats.Name(cfg.ClientID),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1), // 无限重连
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS连接断开", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS重新连接成功")
		}),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, nats.Timeout(cfg.Timeout))
	}

	// 连接NATS
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("连接NATS失败: %w", err)
	}

	// 创建JetStream上下文
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("创建JetStream失败: %w", err)
	}

	client := &NATSClient{
		conn:      nc,
		jetStream: js,
		stream:    cfg.Stream,
		subject:   cfg.Subject,
		timeout:   cfg.Timeout,
		logger:    log,
	}

	if err := client.setupStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}

	return client, nil
}

// setupStream 创建或更新完成消息的Stream
func (c *NATSClient) setupStream(ctx context.Context) error {
	streamConfig := jetstream.StreamConfig{
		Name:        c.stream,
		Subjects:    []string{c.subject},
		Description: "数据采集完成消息",
		Retention:   jetstream.LimitsPolicy,
		MaxMsgs:     10000,
		MaxAge:      7 * 24 * time.Hour, // 保留7天
		Duplicates:  10 * time.Minute,
	}

	if _, err := c.jetStream.CreateOrUpdateStream(ctx, streamConfig); err != nil {
		return fmt.Errorf("创建/更新Stream %s 失败: %w", c.stream, err)
	}
	c.logger.Info("Stream 设置成功", zap.String("stream", c.stream), zap.String("subject", c.subject))
	return nil
}

// PublishCompletion 发布完成消息并等待服务端确认
func (c *NATSClient) PublishCompletion(ctx context.Context, msg model.CompletionMessage) error {
	payload, err := EncodeCompletion(msg)
	if err != nil {
		return err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// 消息ID去重，重复发布同一条完成消息只会保存一次
	ack, err := c.jetStream.Publish(ctx, c.subject, payload, jetstream.WithMsgID(msg.ID))
	if err != nil {
		return fmt.Errorf("发布消息到 %s 失败: %w", c.subject, err)
	}

	c.logger.Info("完成消息已发布",
		zap.String("subject", c.subject),
		zap.String("stream", ack.Stream),
		zap.Uint64("sequence", ack.Sequence),
		zap.Bool("duplicate", ack.Duplicate),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

// Ping 检查连接状态
func (c *NATSClient) Ping(ctx context.Context) error {
	if !c.IsConnected() {
		return fmt.Errorf("NATS未连接: %s", c.conn.Status())
	}
	if _, err := c.jetStream.Stream(ctx, c.stream); err != nil {
		return fmt.Errorf("获取Stream %s 失败: %w", c.stream, err)
	}
	return nil
}

// IsConnected 检查连接状态
func (c *NATSClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close 关闭连接，等待未发送的消息刷出
func (c *NATSClient) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return fmt.Errorf("关闭NATS连接失败: %w", err)
	}
	c.logger.Info("NATS连接已关闭")
	return nil
}
