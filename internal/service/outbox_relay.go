package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/gin-board/internal/events"
	"github.com/d60-Lab/gin-board/internal/repository"
	"github.com/d60-Lab/gin-board/pkg/logger"
	"github.com/d60-Lab/gin-board/pkg/metrics"
)

// DefaultMaxAttempts 超过后 outbox 行标记为 failed
const DefaultMaxAttempts = 5

// DefaultClaimLease processing 状态超过该时长未完成即可被重新领取
const DefaultClaimLease = 5 * time.Minute

// OutboxRelay 轮询 outbox 并把事件发布到 events.Publisher
type OutboxRelay struct {
	outbox       repository.OutboxRepository
	pub          events.Publisher
	workers      int
	claimLimit   int
	maxAttempts  int
	lease        time.Duration
	pollInterval time.Duration
	now          func() time.Time
}

func NewOutboxRelay(outbox repository.OutboxRepository, pub events.Publisher, workers, claimLimit int, pollInterval time.Duration) *OutboxRelay {
	if workers <= 0 {
		workers = 1
	}
	if claimLimit <= 0 {
		claimLimit = 128
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &OutboxRelay{
		outbox:       outbox,
		pub:          pub,
		workers:      workers,
		claimLimit:   claimLimit,
		maxAttempts:  DefaultMaxAttempts,
		lease:        DefaultClaimLease,
		pollInterval: pollInterval,
		now:          time.Now,
	}
}

// Start 启动若干 worker 轮询；返回停止函数，等待进行中的批次结束
func (w *OutboxRelay) Start() func(context.Context) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(stop)
		}()
	}
	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stop) })
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *OutboxRelay) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := w.ProcessOnce(context.Background()); err != nil {
				logger.Warn("outbox relay: claim failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce 认领一批事件并发布，返回成功条数。
// MarkDone 失败的行保持 processing，租约过期后会被重新领取。
func (w *OutboxRelay) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := w.outbox.Claim(ctx, w.claimLimit, w.now().UTC(), w.lease)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, ev := range batch {
		if err := w.pub.Publish(ctx, ev.Topic, []byte(ev.Payload)); err != nil {
			metrics.OutboxPublished.WithLabelValues(ev.Topic, "failed").Inc()
			logger.Warn("outbox relay: publish failed", zap.String("id", ev.ID), zap.String("topic", ev.Topic), zap.Error(err))
			if err := w.outbox.MarkRetry(ctx, ev.ID, w.maxAttempts); err != nil {
				logger.Error("outbox relay: mark retry", zap.String("id", ev.ID), zap.Error(err))
			}
			continue
		}
		metrics.OutboxPublished.WithLabelValues(ev.Topic, "ok").Inc()
		if err := w.outbox.MarkDone(ctx, ev.ID, w.now().UTC()); err != nil {
			logger.Error("outbox relay: mark done", zap.String("id", ev.ID), zap.Error(err))
			continue
		}
		published++
	}
	return published, nil
}
