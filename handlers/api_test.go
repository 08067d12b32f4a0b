package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/gunhee098/my-next-project-sub000/config"
	"github.com/gunhee098/my-next-project-sub000/handlers"
	"github.com/gunhee098/my-next-project-sub000/models"
	"github.com/gunhee098/my-next-project-sub000/routes"
	"github.com/gunhee098/my-next-project-sub000/service"
)

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (m *memStorage) Put(_ context.Context, name string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name], m.types[name] = data, contentType
	return nil
}

func (m *memStorage) Open(_ context.Context, name string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, "", service.ErrImageNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), m.types[name], nil
}

func (m *memStorage) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

type testServer struct {
	t       *testing.T
	router  *gin.Engine
	storage *memStorage
}

type serverOptions struct {
	revocations service.RevocationStore
	limiter     service.RateLimiter
}

func newServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.InitDB(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { config.CloseDB(db) })
	if err := models.AutoMigrate(db); err != nil {
		t.Fatal(err)
	}

	if opts.revocations == nil {
		opts.revocations = service.NopRevocations{}
	}
	tokens, err := service.NewTokenManager("test-secret", time.Hour, opts.revocations)
	if err != nil {
		t.Fatal(err)
	}
	storage := &memStorage{objects: map[string][]byte{}, types: map[string]string{}}
	uploader := service.NewUploader(storage, service.NewInlineCleaner(storage, time.Second), "http://blog.test", 1<<20, 5*time.Second)

	h := &handlers.Handler{
		Users:    service.NewUserService(db, tokens),
		Posts:    service.NewPostService(db, uploader),
		Comments: service.NewCommentService(db),
		Likes:    service.NewLikeService(db),
		Uploads:  uploader,
		Tokens:   tokens,
	}
	return &testServer{t: t, router: routes.InitRouter(h, opts.limiter), storage: storage}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) expect(w *httptest.ResponseRecorder, status int, out interface{}) {
	s.t.Helper()
	if w.Code != status {
		s.t.Fatalf("status = %d, want %d; body = %s", w.Code, status, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			s.t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
}

// signup 注册并登录，返回 token 和用户 ID
func (s *testServer) signup(email, password string) (string, int64) {
	s.t.Helper()
	s.expect(s.do(http.MethodPost, "/auth", "", gin.H{"type": "register", "email": email, "password": password}), http.StatusCreated, nil)
	var res struct {
		Token string `json:"token"`
		User  struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	s.expect(s.do(http.MethodPost, "/auth", "", gin.H{"type": "login", "email": email, "password": password}), http.StatusOK, &res)
	if res.Token == "" {
		s.t.Fatal("login returned no token")
	}
	return res.Token, res.User.ID
}

func (s *testServer) createPost(token, title, content string) models.Post {
	s.t.Helper()
	var post models.Post
	s.expect(s.do(http.MethodPost, "/posts", token, gin.H{"title": title, "content": content}), http.StatusCreated, &post)
	return post
}

type likeResult struct {
	Liked bool  `json:"liked"`
	Count int64 `json:"count"`
}

func TestRegisterLoginLikeScenario(t *testing.T) {
	s := newServer(t, serverOptions{})
	owner, ownerID := s.signup("a@x.com", "pw")
	post := s.createPost(owner, "T", "C")
	if post.UserID != ownerID || post.Title != "T" {
		t.Fatalf("post = %+v", post)
	}

	fan, _ := s.signup("b@x.com", "pw")
	var res likeResult
	s.expect(s.do(http.MethodPost, "/likes", fan, gin.H{"postId": post.ID}), http.StatusOK, &res)
	if !res.Liked || res.Count != 1 {
		t.Fatalf("first toggle = %+v", res)
	}
	s.expect(s.do(http.MethodPost, "/likes", fan, gin.H{"postId": post.ID}), http.StatusOK, &res)
	if res.Liked || res.Count != 0 {
		t.Fatalf("second toggle = %+v", res)
	}
}

func TestAuthErrors(t *testing.T) {
	s := newServer(t, serverOptions{})
	s.signup("a@x.com", "pw")

	s.expect(s.do(http.MethodPost, "/auth", "", gin.H{"type": "register", "email": "A@x.com", "password": "other"}), http.StatusConflict, nil)
	s.expect(s.do(http.MethodPost, "/auth", "", gin.H{"type": "login", "email": "a@x.com", "password": "nope"}), http.StatusUnauthorized, nil)
	s.expect(s.do(http.MethodPost, "/auth", "", gin.H{"type": "login", "email": "ghost@x.com", "password": "pw"}), http.StatusNotFound, nil)
	s.expect(s.do(http.MethodPost, "/auth", "", gin.H{"type": "register", "email": "c@x.com"}), http.StatusBadRequest, nil)
	s.expect(s.do(http.MethodPost, "/auth", "", gin.H{"type": "reset"}), http.StatusBadRequest, nil)

	var body struct {
		Message string `json:"message"`
	}
	s.expect(s.do(http.MethodGet, "/auth/me", "", nil), http.StatusUnauthorized, &body)
	if body.Message == "" {
		t.Fatal("error responses carry a message")
	}
	s.expect(s.do(http.MethodGet, "/auth/me", "garbage", nil), http.StatusUnauthorized, nil)
}

func TestMe(t *testing.T) {
	s := newServer(t, serverOptions{})
	token, id := s.signup("dana@x.com", "pw")
	var me handlers.UserSummary
	s.expect(s.do(http.MethodGet, "/auth/me", token, nil), http.StatusOK, &me)
	if me.ID != id || me.Email != "dana@x.com" || me.Name != "dana" {
		t.Fatalf("me = %+v", me)
	}
}

func TestPostOwnership(t *testing.T) {
	s := newServer(t, serverOptions{})
	owner, _ := s.signup("a@x.com", "pw")
	other, _ := s.signup("b@x.com", "pw")
	post := s.createPost(owner, "T", "C")
	path := "/posts/" + itoa(post.ID)

	s.expect(s.do(http.MethodDelete, path, other, nil), http.StatusForbidden, nil)
	s.expect(s.do(http.MethodPut, path, other, gin.H{"title": "x", "content": "y"}), http.StatusForbidden, nil)

	var view models.PostView
	s.expect(s.do(http.MethodGet, path, "", nil), http.StatusOK, &view)
	if view.Title != "T" || view.AuthorName != "a" {
		t.Fatalf("view = %+v", view)
	}

	s.expect(s.do(http.MethodPut, path, owner, gin.H{"title": "T2", "content": "C2"}), http.StatusOK, nil)
	s.expect(s.do(http.MethodDelete, path, owner, nil), http.StatusOK, nil)
	s.expect(s.do(http.MethodGet, path, "", nil), http.StatusNotFound, nil)
	s.expect(s.do(http.MethodGet, "/posts/abc", "", nil), http.StatusBadRequest, nil)
}

func TestListPosts(t *testing.T) {
	s := newServer(t, serverOptions{})
	token, _ := s.signup("a@x.com", "pw")
	s.createPost(token, "Hello Go", "first")
	s.createPost(token, "Other", "second")

	s.expect(s.do(http.MethodGet, "/posts", "", nil), http.StatusUnauthorized, nil)

	var posts []models.PostView
	s.expect(s.do(http.MethodGet, "/posts?search=GO", token, nil), http.StatusOK, &posts)
	if len(posts) != 1 || posts[0].Title != "Hello Go" {
		t.Fatalf("search = %+v", posts)
	}
	s.expect(s.do(http.MethodGet, "/posts?orderBy=asc", token, nil), http.StatusOK, &posts)
	if len(posts) != 2 || posts[0].Title != "Hello Go" {
		t.Fatalf("ascending = %+v", posts)
	}
	s.expect(s.do(http.MethodGet, "/posts", token, nil), http.StatusOK, &posts)
	if posts[0].Title != "Other" {
		t.Fatalf("default = %+v", posts)
	}
}

func TestLikeValidation(t *testing.T) {
	s := newServer(t, serverOptions{})
	token, id := s.signup("a@x.com", "pw")
	post := s.createPost(token, "T", "C")

	s.expect(s.do(http.MethodPost, "/likes", "", gin.H{"postId": post.ID}), http.StatusUnauthorized, nil)
	s.expect(s.do(http.MethodPost, "/likes", token, gin.H{}), http.StatusBadRequest, nil)
	s.expect(s.do(http.MethodPost, "/likes", token, gin.H{"postId": 999}), http.StatusNotFound, nil)

	s.expect(s.do(http.MethodPost, "/likes", token, gin.H{"postId": post.ID}), http.StatusOK, nil)
	var status struct {
		IsLiked bool  `json:"isLiked"`
		Count   int64 `json:"count"`
	}
	s.expect(s.do(http.MethodGet, "/likes/status?postId="+itoa(post.ID)+"&userId="+itoa(id), token, nil), http.StatusOK, &status)
	if !status.IsLiked || status.Count != 1 {
		t.Fatalf("status = %+v", status)
	}
	s.expect(s.do(http.MethodGet, "/likes/status?postId="+itoa(post.ID)+"&userId="+itoa(id+1), token, nil), http.StatusForbidden, nil)
}

func TestCommentFlow(t *testing.T) {
	s := newServer(t, serverOptions{})
	owner, _ := s.signup("a@x.com", "pw")
	other, _ := s.signup("b@x.com", "pw")
	post := s.createPost(owner, "T", "C")

	s.expect(s.do(http.MethodPost, "/comments", other, gin.H{"content": "hi"}), http.StatusBadRequest, nil)
	s.expect(s.do(http.MethodPost, "/comments", other, gin.H{"postId": 999, "content": "hi"}), http.StatusNotFound, nil)

	var comment models.Comment
	s.expect(s.do(http.MethodPost, "/comments", other, gin.H{"postId": post.ID, "content": "hi"}), http.StatusCreated, &comment)

	var res likeResult
	s.expect(s.do(http.MethodPost, "/comments/likes", owner, gin.H{"commentId": comment.ID}), http.StatusCreated, &res)
	if !res.Liked || res.Count != 1 {
		t.Fatalf("comment like = %+v", res)
	}

	var comments []models.CommentView
	s.expect(s.do(http.MethodGet, "/comments?postId="+itoa(post.ID), owner, nil), http.StatusOK, &comments)
	if len(comments) != 1 || !comments[0].Liked || comments[0].LikeCount != 1 || comments[0].AuthorName != "b" {
		t.Fatalf("comments = %+v", comments)
	}

	s.expect(s.do(http.MethodPost, "/comments/likes", owner, gin.H{"commentId": comment.ID}), http.StatusOK, &res)
	if res.Liked || res.Count != 0 {
		t.Fatalf("comment unlike = %+v", res)
	}

	path := "/comments/" + itoa(comment.ID)
	s.expect(s.do(http.MethodPut, path, owner, gin.H{"content": "edited"}), http.StatusForbidden, nil)
	s.expect(s.do(http.MethodPut, path, other, gin.H{"content": "edited"}), http.StatusOK, nil)
	s.expect(s.do(http.MethodDelete, path, owner, nil), http.StatusForbidden, nil)
	s.expect(s.do(http.MethodDelete, path, other, nil), http.StatusOK, nil)
	s.expect(s.do(http.MethodDelete, path, other, nil), http.StatusNotFound, nil)
}

func TestUploadAndServeImage(t *testing.T) {
	s := newServer(t, serverOptions{})
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{7}, 100)...)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(png)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var res struct {
		ImageURL string `json:"imageUrl"`
	}
	s.expect(w, http.StatusOK, &res)
	if !strings.HasPrefix(res.ImageURL, "http://blog.test/media/images/") {
		t.Fatalf("imageUrl = %s", res.ImageURL)
	}

	w = s.do(http.MethodGet, strings.TrimPrefix(res.ImageURL, "http://blog.test"), "", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" || !bytes.Equal(w.Body.Bytes(), png) {
		t.Fatalf("media fetch: %d %s (%d bytes)", w.Code, w.Header().Get("Content-Type"), w.Body.Len())
	}

	s.expect(s.do(http.MethodGet, "/media/images/missing.png", "", nil), http.StatusNotFound, nil)

	req = httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.expect(w, http.StatusBadRequest, nil)
}

func TestDeletePostReleasesImage(t *testing.T) {
	s := newServer(t, serverOptions{})
	token, _ := s.signup("a@x.com", "pw")
	s.storage.objects["images/a.png"] = []byte("x")

	var post models.Post
	s.expect(s.do(http.MethodPost, "/posts", token, gin.H{"title": "T", "content": "C", "imageUrl": "http://blog.test/media/images/a.png"}), http.StatusCreated, &post)
	s.expect(s.do(http.MethodDelete, "/posts/"+itoa(post.ID), token, nil), http.StatusOK, nil)
	if _, ok := s.storage.objects["images/a.png"]; ok {
		t.Fatal("image should be removed with its post")
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := newServer(t, serverOptions{revocations: service.NewRedisRevocations(rdb)})
	token, _ := s.signup("a@x.com", "pw")

	s.expect(s.do(http.MethodGet, "/auth/me", token, nil), http.StatusOK, nil)
	s.expect(s.do(http.MethodPost, "/auth/logout", token, nil), http.StatusOK, nil)
	s.expect(s.do(http.MethodGet, "/auth/me", token, nil), http.StatusUnauthorized, nil)
	s.expect(s.do(http.MethodGet, "/posts/1", token, nil), http.StatusUnauthorized, nil)
}

func TestAuthRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := newServer(t, serverOptions{limiter: service.NewRedisRateLimiter(rdb, "auth", 2, time.Minute)})
	login := gin.H{"type": "login", "email": "ghost@x.com", "password": "pw"}
	s.expect(s.do(http.MethodPost, "/auth", "", login), http.StatusNotFound, nil)
	s.expect(s.do(http.MethodPost, "/auth", "", login), http.StatusNotFound, nil)
	s.expect(s.do(http.MethodPost, "/auth", "", login), http.StatusTooManyRequests, nil)

	// 其他接口不受限流影响
	s.expect(s.do(http.MethodGet, "/healthz", "", nil), http.StatusOK, nil)
}

func TestCORSPreflight(t *testing.T) {
	s := newServer(t, serverOptions{})
	w := s.do(http.MethodOptions, "/posts", "", nil)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight = %d %v", w.Code, w.Header())
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
