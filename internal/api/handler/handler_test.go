package handler_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/gin-board/config"
	"github.com/d60-Lab/gin-board/internal/app"
	"github.com/d60-Lab/gin-board/internal/backend"
	"github.com/d60-Lab/gin-board/internal/events"
	"github.com/d60-Lab/gin-board/internal/service"
	"github.com/d60-Lab/gin-board/pkg/database"
)

const anonKey = "test-anon-key"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type envelope struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
	Redirect string          `json:"redirect"`
	Back     string          `json:"back"`
}

type testServer struct {
	t      *testing.T
	router http.Handler
	client *backend.Client
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	opts := database.DefaultOptions()
	opts.LogLevel = gormlogger.Silent
	db, err := database.Open("sqlite://:memory:", opts)
	require.NoError(t, err)
	client := backend.NewWithDB(db, anonKey)
	require.NoError(t, client.Migrate(context.Background()))
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		Auth:   config.AuthConfig{JWTSecret: "handler-secret", TokenTTL: time.Hour},
		Board:  config.BoardConfig{ExportLimit: 1000, OutboxWorker: 1, OutboxClaim: 10, OutboxPoll: time.Hour},
	}
	a, err := app.New(cfg, app.Deps{Client: client, Publisher: &events.Recorder{}})
	require.NoError(t, err)
	return &testServer{t: t, router: a.Router, client: client}
}

func (s *testServer) do(method, path, token string, body any, hdr ...string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", anonKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

// signUp 返回访问令牌
func (s *testServer) signUp(email, username string) string {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": email, "password": "secret123", "username": username,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var res struct {
		Token struct {
			AccessToken string `json:"access_token"`
		} `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &res))
	require.NotEmpty(s.t, res.Token.AccessToken)
	return res.Token.AccessToken
}

func (s *testServer) createPost(token, title, content string) string {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/v1/posts", token, map[string]string{"title": title, "content": content})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var res struct {
		ID string `json:"id"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &res))
	assert.Equal(s.t, "/posts/"+res.ID, env.Redirect)
	return res.ID
}

type detail struct {
	Post struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Content string `json:"content"`
		Views   int64  `json:"views"`
		Author  struct {
			Username string `json:"username"`
		} `json:"author"`
	} `json:"post"`
	Comments     []json.RawMessage `json:"comments"`
	CanEdit      bool              `json:"can_edit"`
	CanDelete    bool              `json:"can_delete"`
	ShowComposer bool              `json:"show_composer"`
	LoginPrompt  *struct {
		Href string `json:"href"`
	} `json:"login_prompt"`
}

func (s *testServer) detail(id, token string) detail {
	s.t.Helper()
	w, env := s.do(http.MethodGet, "/api/v1/posts/"+id, token, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var d detail
	require.NoError(s.t, json.Unmarshal(env.Data, &d))
	return d
}

func TestAPIKeyRequired(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/posts", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnonymousDetailPage(t *testing.T) {
	s := newServer(t)
	tok := s.signUp("alice@example.com", "alice")
	id := s.createPost(tok, "Hello", "First post")

	d := s.detail(id, "")
	assert.Equal(t, "Hello", d.Post.Title)
	assert.Equal(t, "First post", d.Post.Content)
	assert.Equal(t, "alice", d.Post.Author.Username)
	assert.EqualValues(t, 0, d.Post.Views)
	assert.False(t, d.CanEdit)
	assert.False(t, d.CanDelete)
	assert.False(t, d.ShowComposer)
	require.NotNil(t, d.LoginPrompt)
	assert.Equal(t, "/login", d.LoginPrompt.Href)

	// 第二次读取看到上一次的计数
	assert.EqualValues(t, 1, s.detail(id, "").Post.Views)
}

func TestAuthorDetailPageAndDelete(t *testing.T) {
	s := newServer(t)
	tok := s.signUp("alice@example.com", "alice")
	id := s.createPost(tok, "Mine", "body")

	d := s.detail(id, tok)
	assert.True(t, d.CanEdit)
	assert.True(t, d.CanDelete)
	assert.True(t, d.ShowComposer)
	assert.Nil(t, d.LoginPrompt)

	w, _ := s.do(http.MethodDelete, "/api/v1/posts/"+id, tok, nil)
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)

	w, env := s.do(http.MethodDelete, "/api/v1/posts/"+id+"?confirm=true", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "/posts", env.Redirect)

	w, env = s.do(http.MethodGet, "/api/v1/posts/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "/posts", env.Back)
}

func TestOtherUserSeesNoControlsAndCannotDelete(t *testing.T) {
	s := newServer(t)
	alice := s.signUp("alice@example.com", "alice")
	bob := s.signUp("bob@example.com", "bob")
	id := s.createPost(alice, "Alice's", "body")

	d := s.detail(id, bob)
	assert.False(t, d.CanEdit)
	assert.False(t, d.CanDelete)
	assert.True(t, d.ShowComposer)

	w, _ := s.do(http.MethodDelete, "/api/v1/posts/"+id+"?confirm=true", bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := s.do(http.MethodGet, "/api/v1/posts/"+id+"/edit", bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "/posts/"+id, env.Redirect)

	w, _ = s.do(http.MethodPut, "/api/v1/posts/"+id, bob, map[string]string{"title": "x", "content": "y"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Alice's", s.detail(id, "").Post.Title)
}

func TestEditAndUpdate(t *testing.T) {
	s := newServer(t)
	tok := s.signUp("alice@example.com", "alice")
	id := s.createPost(tok, "Draft", "v1")

	w, env := s.do(http.MethodGet, "/api/v1/posts/"+id+"/edit", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"`+id+`","title":"Draft","content":"v1"}`, string(env.Data))

	w, env = s.do(http.MethodPut, "/api/v1/posts/"+id, tok, map[string]string{"title": "Final", "content": "v2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "/posts/"+id, env.Redirect)
	assert.Equal(t, "Final", s.detail(id, "").Post.Title)
}

func TestMutationsRequireSession(t *testing.T) {
	s := newServer(t)
	body := map[string]string{"title": "t", "content": "c"}

	w, env := s.do(http.MethodPost, "/api/v1/posts", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "/login", env.Redirect)

	w, _ = s.do(http.MethodPost, "/api/v1/posts", "", body, "Accept", "text/html")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w, _ = s.do(http.MethodGet, "/api/v1/posts/x/edit", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newServer(t)
	tok := s.signUp("alice@example.com", "alice")

	w, _ := s.do(http.MethodPost, "/api/v1/auth/logout", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/posts", tok, map[string]string{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, env := s.do(http.MethodGet, "/api/v1/auth/session", tok, nil)
	assert.Contains(t, string(env.Data), `"anonymous"`)
}

func TestLoginAndHeader(t *testing.T) {
	s := newServer(t)
	s.signUp("alice@example.com", "alice")

	w, _ := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "nope12345"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Set-Cookie"))
	var res struct {
		Token struct {
			AccessToken string `json:"access_token"`
		} `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))

	_, env = s.do(http.MethodGet, "/api/v1/header", res.Token.AccessToken, nil)
	var hd struct {
		State    string `json:"state"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &hd))
	assert.Equal(t, "authenticated", hd.State)
	assert.Equal(t, "alice", hd.Username)

	_, env = s.do(http.MethodGet, "/api/v1/header", "", nil)
	require.NoError(t, json.Unmarshal(env.Data, &hd))
	assert.Equal(t, "anonymous", hd.State)
}

func TestComments(t *testing.T) {
	s := newServer(t)
	alice := s.signUp("alice@example.com", "alice")
	bob := s.signUp("bob@example.com", "bob")
	id := s.createPost(alice, "t", "c")

	w, _ := s.do(http.MethodPost, "/api/v1/posts/"+id+"/comments", bob, map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := s.do(http.MethodPost, "/api/v1/posts/"+id+"/comments", bob, map[string]string{"content": "nice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var cm struct {
		ID     string `json:"id"`
		Author struct {
			Username string `json:"username"`
		} `json:"author"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cm))
	assert.Equal(t, "bob", cm.Author.Username)

	assert.Len(t, s.detail(id, "").Comments, 1)

	w, _ = s.do(http.MethodDelete, "/api/v1/comments/"+cm.ID+"?confirm=true", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(http.MethodDelete, "/api/v1/comments/"+cm.ID+"?confirm=true", bob, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, s.detail(id, "").Comments)
}

func TestLikes(t *testing.T) {
	s := newServer(t)
	tok := s.signUp("alice@example.com", "alice")
	id := s.createPost(tok, "t", "c")

	w, env := s.do(http.MethodPost, "/api/v1/posts/"+id+"/likes", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":1,"liked":true}`, string(env.Data))

	w, env = s.do(http.MethodDelete, "/api/v1/posts/"+id+"/likes", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0,"liked":false}`, string(env.Data))
}

func TestPlaceholderDetailIsNotFound(t *testing.T) {
	s := newServer(t)
	w, _ := s.do(http.MethodGet, "/api/v1/posts/"+service.PlaceholderPostID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportPostIDs(t *testing.T) {
	s := newServer(t)
	_, env := s.do(http.MethodGet, "/api/v1/export/post-ids", "", nil)
	assert.JSONEq(t, `{"ids":["`+service.PlaceholderPostID+`"]}`, string(env.Data))

	tok := s.signUp("alice@example.com", "alice")
	id := s.createPost(tok, "t", "c")
	_, env = s.do(http.MethodGet, "/api/v1/export/post-ids", "", nil)
	assert.JSONEq(t, `{"ids":["`+id+`"]}`, string(env.Data))
}

func TestSessionEventsStream(t *testing.T) {
	s := newServer(t)
	tok := s.signUp("alice@example.com", "alice")

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/auth/events", nil)
	require.NoError(t, err)
	req.Header.Set("apikey", anonKey)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	// 先收到当前状态
	waitFor(t, lines, "event:state")

	w, _ := s.do(http.MethodPost, "/api/v1/auth/logout", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	waitFor(t, lines, "SIGNED_OUT")
}

func waitFor(t *testing.T, lines <-chan string, want string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case l, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed before %q", want)
			}
			if strings.Contains(l, want) {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}
