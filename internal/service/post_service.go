package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/gin-board/internal/backend"
	"github.com/d60-Lab/gin-board/internal/events"
	"github.com/d60-Lab/gin-board/internal/model"
	"github.com/d60-Lab/gin-board/internal/repository"
	"github.com/d60-Lab/gin-board/pkg/logger"
)

// PostView 帖子及其作者
type PostView struct {
	model.Post
	Author Author `json:"author"`
}

type CreatePostInput struct {
	AuthorID string
	Title    string `validate:"required,max=200"`
	Content  string `validate:"required"`
}

type UpdatePostInput struct {
	ID      string `validate:"required"`
	Title   string `validate:"required,max=200"`
	Content string `validate:"required"`
}

// PostService 帖子读写
type PostService interface {
	// ListPosts 按 created_at 倒序，同刻按 id 升序
	ListPosts(ctx context.Context) ([]PostView, error)
	// GetPost 返回帖子并记录一次浏览；计数失败不影响结果
	GetPost(ctx context.Context, id string) (*PostView, error)
	CreatePost(ctx context.Context, in CreatePostInput) (string, error)
	UpdatePost(ctx context.Context, callerID string, in UpdatePostInput) error
	DeletePost(ctx context.Context, callerID, id string, confirmed bool) error
	// GetForEdit 仅作者可取得编辑预填内容
	GetForEdit(ctx context.Context, callerID, id string) (*model.Post, error)
	// ListPostIDs 静态导出用，顺序同 ListPosts
	ListPostIDs(ctx context.Context, limit int) ([]string, error)
}

type PostServiceOptions struct {
	// Recorder 非 nil 时浏览计数异步执行
	Recorder *ViewRecorder
	Counter  *ViewCounter
	Now      func() time.Time
}

type postService struct {
	client   *backend.Client
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	counter  *ViewCounter
	recorder *ViewRecorder
	validate *validator.Validate
	now      func() time.Time
}

func NewPostService(client *backend.Client, opts PostServiceOptions) PostService {
	posts := repository.NewPostRepository(client.DB())
	if opts.Counter == nil {
		opts.Counter = NewViewCounter(posts, false)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &postService{
		client:   client,
		posts:    posts,
		profiles: repository.NewProfileRepository(client.DB()),
		counter:  opts.Counter,
		recorder: opts.Recorder,
		validate: validator.New(),
		now:      opts.Now,
	}
}

func (s *postService) ListPosts(ctx context.Context) ([]PostView, error) {
	if err := s.client.Ready(); err != nil {
		return nil, err
	}
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, requestErr("select posts", err)
	}
	ids := distinctIDs(posts, func(p *model.Post) string { return p.UserID })
	idx := fetchProfiles(ctx, s.profiles, ids)

	out := make([]PostView, 0, len(posts))
	for _, p := range posts {
		out = append(out, PostView{Post: *p, Author: AuthorOf(p.UserID, idx[p.UserID])})
	}
	return out, nil
}

func (s *postService) GetPost(ctx context.Context, id string) (*PostView, error) {
	// 占位 id 只在构建期出现，不访问后端
	if id == "" || id == PlaceholderPostID {
		return nil, ErrNotFound
	}
	if err := s.client.Ready(); err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, requestErr("select post", err)
	}
	view := &PostView{Post: *post, Author: fetchAuthor(ctx, s.profiles, post.UserID)}
	s.recordView(ctx, post.ID)
	return view, nil
}

func (s *postService) recordView(ctx context.Context, id string) {
	if s.recorder != nil {
		s.recorder.Enqueue(id)
		return
	}
	if err := s.counter.Increment(ctx, id); err != nil {
		logger.Warn("increment views failed", zap.String("post_id", id), zap.Error(err))
	}
}

func (s *postService) CreatePost(ctx context.Context, in CreatePostInput) (string, error) {
	if in.AuthorID == "" {
		return "", ErrUnauthenticated
	}
	in.Title = strings.TrimSpace(in.Title)
	if strings.TrimSpace(in.Content) == "" {
		return "", fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if err := s.validate.Struct(in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.client.Ready(); err != nil {
		return "", err
	}

	now := s.now().UTC()
	post := &model.Post{
		ID:        uuid.NewString(),
		UserID:    in.AuthorID,
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewPostRepository(tx).Create(ctx, post); err != nil {
			return err
		}
		return enqueueEvent(ctx, tx, events.TopicPostCreated, post.ID,
			PostEvent{PostID: post.ID, AuthorID: post.UserID, Title: post.Title, At: now}, now)
	})
	if err != nil {
		return "", backend.Wrap("insert post", err)
	}
	return post.ID, nil
}

func (s *postService) UpdatePost(ctx context.Context, callerID string, in UpdatePostInput) error {
	if callerID == "" {
		return ErrUnauthenticated
	}
	in.Title = strings.TrimSpace(in.Title)
	if strings.TrimSpace(in.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.owned(ctx, callerID, in.ID); err != nil {
		return err
	}

	now := s.now().UTC()
	return s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := repository.NewPostRepository(tx).Update(ctx, in.ID, callerID, in.Title, in.Content, now)
		if err != nil {
			return backend.Wrap("update post", err)
		}
		// 行在检查之后被删除或易主
		if n == 0 {
			return ErrNotFound
		}
		return enqueueEvent(ctx, tx, events.TopicPostUpdated, in.ID,
			PostEvent{PostID: in.ID, AuthorID: callerID, Title: in.Title, At: now}, now)
	})
}

func (s *postService) DeletePost(ctx context.Context, callerID, id string, confirmed bool) error {
	if callerID == "" {
		return ErrUnauthenticated
	}
	if _, err := s.owned(ctx, callerID, id); err != nil {
		return err
	}
	if !confirmed {
		return ErrConfirmationRequired
	}

	now := s.now().UTC()
	return s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewCommentRepository(tx).DeleteByPost(ctx, id); err != nil {
			return backend.Wrap("delete post comments", err)
		}
		if err := repository.NewLikeRepository(tx).DeleteByPost(ctx, id); err != nil {
			return backend.Wrap("delete post likes", err)
		}
		n, err := repository.NewPostRepository(tx).Delete(ctx, id, callerID)
		if err != nil {
			return backend.Wrap("delete post", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return enqueueEvent(ctx, tx, events.TopicPostDeleted, id,
			PostEvent{PostID: id, AuthorID: callerID, At: now}, now)
	})
}

func (s *postService) GetForEdit(ctx context.Context, callerID, id string) (*model.Post, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	return s.owned(ctx, callerID, id)
}

func (s *postService) ListPostIDs(ctx context.Context, limit int) ([]string, error) {
	if err := s.client.Ready(); err != nil {
		return nil, err
	}
	ids, err := s.posts.ListIDs(ctx, limit)
	if err != nil {
		return nil, backend.Wrap("select post ids", err)
	}
	return ids, nil
}

// owned 读取帖子并校验作者
func (s *postService) owned(ctx context.Context, callerID, id string) (*model.Post, error) {
	if id == "" || id == PlaceholderPostID {
		return nil, ErrNotFound
	}
	if err := s.client.Ready(); err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, requestErr("select post", err)
	}
	if post.UserID != callerID {
		return nil, ErrForbidden
	}
	return post, nil
}
