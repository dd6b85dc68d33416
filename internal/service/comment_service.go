package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/gin-board/internal/backend"
	"github.com/d60-Lab/gin-board/internal/events"
	"github.com/d60-Lab/gin-board/internal/model"
	"github.com/d60-Lab/gin-board/internal/repository"
)

// CommentView 评论及其作者
type CommentView struct {
	model.Comment
	Author Author `json:"author"`
}

type CreateCommentInput struct {
	PostID   string `validate:"required"`
	AuthorID string
	Content  string `validate:"required,max=5000"`
}

type CommentService interface {
	// ListComments 按 created_at 正序，同刻按 id 升序
	ListComments(ctx context.Context, postID string) ([]CommentView, error)
	CreateComment(ctx context.Context, in CreateCommentInput) (*CommentView, error)
	DeleteComment(ctx context.Context, callerID, id string, confirmed bool) error
}

type commentService struct {
	client   *backend.Client
	posts    repository.PostRepository
	comments repository.CommentRepository
	profiles repository.ProfileRepository
	validate *validator.Validate
	now      func() time.Time
}

func NewCommentService(client *backend.Client) CommentService {
	db := client.DB()
	return &commentService{
		client:   client,
		posts:    repository.NewPostRepository(db),
		comments: repository.NewCommentRepository(db),
		profiles: repository.NewProfileRepository(db),
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *commentService) ListComments(ctx context.Context, postID string) ([]CommentView, error) {
	if postID == "" || postID == PlaceholderPostID {
		return []CommentView{}, nil
	}
	if err := s.client.Ready(); err != nil {
		return nil, err
	}
	rows, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, backend.Wrap("select comments", err)
	}
	idx := fetchProfiles(ctx, s.profiles, distinctIDs(rows, func(c *model.Comment) string { return c.UserID }))

	out := make([]CommentView, 0, len(rows))
	for _, c := range rows {
		out = append(out, CommentView{Comment: *c, Author: AuthorOf(c.UserID, idx[c.UserID])})
	}
	return out, nil
}

func (s *commentService) CreateComment(ctx context.Context, in CreateCommentInput) (*CommentView, error) {
	if in.AuthorID == "" {
		return nil, ErrUnauthenticated
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.client.Ready(); err != nil {
		return nil, err
	}
	if _, err := s.posts.GetByID(ctx, in.PostID); err != nil {
		return nil, requestErr("select post", err)
	}

	now := s.now().UTC()
	c := &model.Comment{
		ID:        uuid.NewString(),
		PostID:    in.PostID,
		UserID:    in.AuthorID,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewCommentRepository(tx).Create(ctx, c); err != nil {
			return err
		}
		return enqueueEvent(ctx, tx, events.TopicCommentCreated, c.PostID,
			CommentEvent{CommentID: c.ID, PostID: c.PostID, AuthorID: c.UserID, At: now}, now)
	})
	if err != nil {
		return nil, backend.Wrap("insert comment", err)
	}
	return &CommentView{Comment: *c, Author: fetchAuthor(ctx, s.profiles, c.UserID)}, nil
}

func (s *commentService) DeleteComment(ctx context.Context, callerID, id string, confirmed bool) error {
	if callerID == "" {
		return ErrUnauthenticated
	}
	if err := s.client.Ready(); err != nil {
		return err
	}
	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return requestErr("select comment", err)
	}
	if c.UserID != callerID {
		return ErrForbidden
	}
	if !confirmed {
		return ErrConfirmationRequired
	}

	now := s.now().UTC()
	return s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := repository.NewCommentRepository(tx).Delete(ctx, id, callerID)
		if err != nil {
			return backend.Wrap("delete comment", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return enqueueEvent(ctx, tx, events.TopicCommentDeleted, c.PostID,
			CommentEvent{CommentID: id, PostID: c.PostID, AuthorID: callerID, At: now}, now)
	})
}
