package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/d60-Lab/gin-board/pkg/logger"
)

// 领域事件主题（不含前缀）
const (
	TopicPostCreated    = "post.created"
	TopicPostUpdated    = "post.updated"
	TopicPostDeleted    = "post.deleted"
	TopicCommentCreated = "comment.created"
	TopicCommentDeleted = "comment.deleted"
)

// Publisher 外发领域事件
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close()
}

// Connect 连接 NATS；url 为空时返回 Nop
func Connect(url, prefix string) (Publisher, error) {
	if url == "" {
		return Nop{}, nil
	}
	nc, err := nats.Connect(url,
		nats.Name("gin-board"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info("nats connected", zap.String("url", nc.ConnectedUrl()))
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

// NATSPublisher 以 <prefix>.<topic> 为 subject 发布
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func (p *NATSPublisher) Subject(topic string) string {
	if p.prefix == "" {
		return topic
	}
	return p.prefix + "." + topic
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.nc.Publish(p.Subject(topic), payload)
}

func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) Publish(context.Context, string, []byte) error { return nil }
func (Nop) Close()                                        {}

// Message 已发布的事件（Recorder 使用）
type Message struct {
	Topic   string
	Payload []byte
}

// Recorder 在内存中记录事件，用于测试与本地调试
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
}

func (r *Recorder) Publish(_ context.Context, topic string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.msgs = append(r.msgs, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

func (r *Recorder) Close() {}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}
