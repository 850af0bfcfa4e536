// pkg/messaging/stan.go
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/stan.go"
	"go.uber.org/zap"

	"FinnPipeline/pkg/logger"
	"FinnPipeline/pkg/model"
)

// StanClient NATS Streaming客户端
type StanClient struct {
	conn    stan.Conn
	subject string
	logger  *zap.Logger
}

// NewStanClient 连接NATS Streaming集群
func NewStanClient(cfg Config, log *zap.Logger) (*StanClient, error) {
	log = logger.OrNop(log).With(zap.String("backend", BackendStan))

	connectWait := cfg.Timeout
	if connectWait <= 0 {
		connectWait = stan.DefaultConnectWait
	}

	conn, err := stan.Connect(
		cfg.ClusterID,
		cfg.ClientID,
		stan.NatsURL(cfg.URL),
		stan.ConnectWait(connectWait),
		stan.PubAckWait(connectWait),
		stan.SetConnectionLostHandler(func(_ stan.Conn, err error) {
			log.Error("NATS Streaming连接丢失", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("连接NATS Streaming失败: %w", err)
	}

	return &StanClient{
		conn:    conn,
		subject: cfg.Subject,
		logger:  log,
	}, nil
}

// PublishCompletion 同步发布，返回前已收到集群确认
func (c *StanClient) PublishCompletion(ctx context.Context, msg model.CompletionMessage) error {
	payload, err := EncodeCompletion(msg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.conn.Publish(c.subject, payload)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("发布消息到 %s 失败: %w", c.subject, err)
		}
	case <-ctx.Done():
		return fmt.Errorf("发布消息到 %s 超时: %w", c.subject, ctx.Err())
	}

	c.logger.Info("完成消息已发布", zap.String("subject", c.subject), zap.Int("bytes", len(payload)))
	return nil
}

// Ping 检查底层NATS连接
func (c *StanClient) Ping(context.Context) error {
	nc := c.conn.NatsConn()
	if nc == nil || !nc.IsConnected() {
		return fmt.Errorf("NATS Streaming未连接")
	}
	return nil
}

// Close 关闭连接
func (c *StanClient) Close() error {
	done := make(chan error, 1)
	go func() { done <- c.conn.Close() }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("关闭NATS Streaming连接超时")
	}
}
