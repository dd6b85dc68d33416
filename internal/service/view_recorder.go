package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/gin-board/internal/backend"
	"github.com/d60-Lab/gin-board/internal/repository"
	"github.com/d60-Lab/gin-board/pkg/logger"
	"github.com/d60-Lab/gin-board/pkg/metrics"
)

// ViewCounter 浏览计数
//
// 默认读-改-写：并发读者可能相互覆盖，计数仅供参考；写回带条件，计数不会回退。
// atomic 为 true 时改用 views = views + 1 单条语句。
type ViewCounter struct {
	posts  repository.PostRepository
	atomic bool
}

func NewViewCounter(posts repository.PostRepository, atomic bool) *ViewCounter {
	return &ViewCounter{posts: posts, atomic: atomic}
}

func (c *ViewCounter) Increment(ctx context.Context, id string) error {
	err := c.increment(ctx, id)
	if err != nil {
		metrics.ViewIncrements.WithLabelValues("failed").Inc()
		return err
	}
	metrics.ViewIncrements.WithLabelValues("ok").Inc()
	return nil
}

func (c *ViewCounter) increment(ctx context.Context, id string) error {
	if c.atomic {
		return backend.Wrap("increment views", c.posts.IncrementViews(ctx, id))
	}
	post, err := c.posts.GetByID(ctx, id)
	if err != nil {
		return requestErr("select views", err)
	}
	return backend.Wrap("update views", c.posts.SetViews(ctx, id, post.Views+1))
}

// ViewResult 一次异步计数的结果
type ViewResult struct {
	PostID  string
	Err     error
	Latency time.Duration
}

type viewJob struct {
	postID string
	enqAt  time.Time
}

// ViewRecorder 本地异步浏览计数，详情读取不等待写入
type ViewRecorder struct {
	counter   *ViewCounter
	ch        chan viewJob
	resultsCh chan ViewResult
	timeout   time.Duration
}

func NewViewRecorder(counter *ViewCounter, queueSize int) *ViewRecorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &ViewRecorder{
		counter:   counter,
		ch:        make(chan viewJob, queueSize),
		resultsCh: make(chan ViewResult, 1024),
		timeout:   5 * time.Second,
	}
}

// Start 启动 worker；返回的停止函数会先排空队列再返回，或在 ctx 结束时放弃
func (r *ViewRecorder) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	stopCh := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case job := <-r.ch:
					r.handle(job)
				case <-stopCh:
					for {
						select {
						case job := <-r.ch:
							r.handle(job)
						default:
							return
						}
					}
				}
			}
		}()
	}

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stopCh) })
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

func (r *ViewRecorder) handle(job viewJob) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	err := r.counter.Increment(ctx, job.postID)
	cancel()
	metrics.ViewQueueLen.Set(float64(len(r.ch)))
	if err != nil {
		logger.Warn("async view increment failed", zap.String("post_id", job.postID), zap.Error(err))
	}
	select {
	case r.resultsCh <- ViewResult{PostID: job.postID, Err: err, Latency: time.Since(job.enqAt)}:
	default:
	}
}

// Enqueue 队列满时丢弃并返回 false
func (r *ViewRecorder) Enqueue(postID string) bool {
	select {
	case r.ch <- viewJob{postID: postID, enqAt: time.Now()}:
		metrics.ViewQueueLen.Set(float64(len(r.ch)))
		return true
	default:
		metrics.ViewIncrements.WithLabelValues("dropped").Inc()
		logger.Warn("view queue full, drop increment", zap.String("post_id", postID))
		return false
	}
}

// Results 每处理一条发送一次；无人读取时丢弃
func (r *ViewRecorder) Results() <-chan ViewResult { return r.resultsCh }

// QueueLen 当前队列长度（采样值）
func (r *ViewRecorder) QueueLen() int { return len(r.ch) }
