package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/gin-board/internal/api/middleware"
	"github.com/d60-Lab/gin-board/internal/service"
	"github.com/d60-Lab/gin-board/internal/session"
	"github.com/d60-Lab/gin-board/pkg/logger"
	"github.com/d60-Lab/gin-board/pkg/response"
)

// Link 页面导航链接
type Link struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Header 页头：会话状态与导航
type Header struct {
	State    session.State `json:"state"`
	UserID   string        `json:"user_id,omitempty"`
	Email    string        `json:"email,omitempty"`
	Username string        `json:"username,omitempty"`
	Links    []Link        `json:"links"`
}

type HomePage struct {
	Header Header `json:"header"`
	Links  []Link `json:"links"`
}

type ListPage struct {
	Posts     []service.PostView `json:"posts"`
	CanCreate bool               `json:"can_create"`
}

// CommentItem 评论及当前用户可用的操作
type CommentItem struct {
	service.CommentView
	CanDelete bool `json:"can_delete"`
}

// DetailPage 详情页。匿名访问时不显示编辑/删除与评论输入框，改为登录提示
type DetailPage struct {
	Post          service.PostView    `json:"post"`
	Likes         service.LikeSummary `json:"likes"`
	Comments      []CommentItem       `json:"comments"`
	CommentsError string              `json:"comments_error,omitempty"`
	CanEdit       bool                `json:"can_edit"`
	CanDelete     bool                `json:"can_delete"`
	ShowComposer  bool                `json:"show_composer"`
	LoginPrompt   *Link               `json:"login_prompt,omitempty"`
	Back          Link                `json:"back"`
}

func (h *Handler) header(c *gin.Context, s session.Session) Header {
	hd := Header{State: s.State}
	if !s.Authenticated() {
		hd.Links = []Link{{"Home", "/"}, {"Posts", ListPath}, {"Login", middleware.LoginPath}, {"Sign up", "/signup"}}
		return hd
	}
	hd.UserID = s.User.ID
	hd.Email = s.User.Email
	if p, err := h.accounts.GetProfile(c.Request.Context(), s.User.ID); err == nil && p.Username != nil {
		hd.Username = *p.Username
	}
	hd.Links = []Link{{"Home", "/"}, {"Posts", ListPath}, {"New post", "/posts/create"}, {"Logout", "/logout"}}
	return hd
}

// Home 首页
// @Summary 首页
// @Tags 页面
// @Produce json
// @Param apikey header string true "anon key"
// @Success 200 {object} response.Response{data=HomePage}
// @Router /api/v1/home [get]
func (h *Handler) Home(c *gin.Context) {
	s := middleware.SessionFrom(c)
	response.Success(c, HomePage{
		Header: h.header(c, s),
		Links:  []Link{{"Browse posts", ListPath}},
	})
}

// Header 页头会话状态
// @Summary 页头
// @Tags 页面
// @Produce json
// @Param apikey header string true "anon key"
// @Success 200 {object} response.Response{data=Header}
// @Router /api/v1/header [get]
func (h *Handler) Header(c *gin.Context) {
	response.Success(c, h.header(c, middleware.SessionFrom(c)))
}

// ListPosts 帖子列表页
// @Summary 帖子列表
// @Tags 帖子
// @Produce json
// @Param apikey header string true "anon key"
// @Success 200 {object} response.Response{data=ListPage}
// @Failure 502 {object} response.Response
// @Router /api/v1/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.posts.ListPosts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if gone(c) {
		return
	}
	response.Success(c, ListPage{Posts: posts, CanCreate: middleware.SessionFrom(c).Authenticated()})
}

// GetPost 帖子详情页，每次读取记录一次浏览
// @Summary 帖子详情
// @Tags 帖子
// @Produce json
// @Param apikey header string true "anon key"
// @Param id path string true "帖子 ID"
// @Success 200 {object} response.Response{data=DetailPage}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	s := middleware.SessionFrom(c)

	post, err := h.posts.GetPost(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}

	page := DetailPage{Post: *post, Comments: []CommentItem{}, Back: Link{"Back to list", ListPath}}
	comments, err := h.comments.ListComments(ctx, id)
	if err != nil {
		logger.Warn("detail: list comments failed", zap.String("post_id", id), zap.Error(err))
		page.CommentsError = "comments could not be loaded"
	}
	for _, cm := range comments {
		page.Comments = append(page.Comments, CommentItem{CommentView: cm, CanDelete: s.Authenticated() && cm.UserID == s.UserID()})
	}
	if page.Likes, err = h.likes.Summary(ctx, s.UserID(), id); err != nil {
		logger.Warn("detail: like summary failed", zap.String("post_id", id), zap.Error(err))
	}
	if gone(c) {
		return
	}

	if s.Authenticated() {
		own := post.UserID == s.UserID()
		page.CanEdit = own
		page.CanDelete = own
		page.ShowComposer = true
	} else {
		page.LoginPrompt = &Link{"Log in to comment", middleware.LoginPath}
	}
	response.Success(c, page)
}
