package service

import (
	"context"

	"github.com/d60-Lab/gin-board/internal/backend"
	"github.com/d60-Lab/gin-board/internal/repository"
)

// LikeSummary 帖子点赞数及当前用户是否已赞
type LikeSummary struct {
	Count int64 `json:"count"`
	Liked bool  `json:"liked"`
}

// LikeService 点赞关系；重复点赞与重复取消均为幂等
type LikeService interface {
	Like(ctx context.Context, userID, postID string) (LikeSummary, error)
	Unlike(ctx context.Context, userID, postID string) (LikeSummary, error)
	// Summary userID 为空时 Liked 恒为 false
	Summary(ctx context.Context, userID, postID string) (LikeSummary, error)
}

type likeService struct {
	client *backend.Client
	posts  repository.PostRepository
	likes  repository.LikeRepository
}

func NewLikeService(client *backend.Client) LikeService {
	return &likeService{
		client: client,
		posts:  repository.NewPostRepository(client.DB()),
		likes:  repository.NewLikeRepository(client.DB()),
	}
}

func (s *likeService) Like(ctx context.Context, userID, postID string) (LikeSummary, error) {
	if userID == "" {
		return LikeSummary{}, ErrUnauthenticated
	}
	if err := s.checkPost(ctx, postID); err != nil {
		return LikeSummary{}, err
	}
	if err := s.likes.Create(ctx, postID, userID); err != nil {
		return LikeSummary{}, backend.Wrap("insert like", err)
	}
	return s.Summary(ctx, userID, postID)
}

func (s *likeService) Unlike(ctx context.Context, userID, postID string) (LikeSummary, error) {
	if userID == "" {
		return LikeSummary{}, ErrUnauthenticated
	}
	if err := s.checkPost(ctx, postID); err != nil {
		return LikeSummary{}, err
	}
	if err := s.likes.Delete(ctx, postID, userID); err != nil {
		return LikeSummary{}, backend.Wrap("delete like", err)
	}
	return s.Summary(ctx, userID, postID)
}

func (s *likeService) Summary(ctx context.Context, userID, postID string) (LikeSummary, error) {
	if err := s.client.Ready(); err != nil {
		return LikeSummary{}, err
	}
	n, err := s.likes.CountByPost(ctx, postID)
	if err != nil {
		return LikeSummary{}, backend.Wrap("count likes", err)
	}
	sum := LikeSummary{Count: n}
	if userID != "" {
		if sum.Liked, err = s.likes.Exists(ctx, postID, userID); err != nil {
			return LikeSummary{}, backend.Wrap("select like", err)
		}
	}
	return sum, nil
}

func (s *likeService) checkPost(ctx context.Context, postID string) error {
	if postID == "" || postID == PlaceholderPostID {
		return ErrNotFound
	}
	if err := s.client.Ready(); err != nil {
		return err
	}
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return requestErr("select post", err)
	}
	return nil
}
