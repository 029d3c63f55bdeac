package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bloglist/internal/auth"
	"bloglist/internal/repository/memory"
	"bloglist/internal/service"
	"bloglist/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

type serverOption func(*Options)

func withSnapshots(e *fakeExporter) serverOption {
	return func(o *Options) { o.Snapshots = e }
}

func newTestServer(t *testing.T, withReset bool, opts ...serverOption) *testServer {
	t.Helper()
	userRepo, blogRepo := memory.NewUserRepository(), memory.NewBlogRepository()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	options := Options{Logger: logger}
	if withReset {
		options.Reset = service.NewResetService(userRepo, blogRepo)
	}
	for _, opt := range opts {
		opt(&options)
	}

	handler := NewHandler(
		service.NewUserService(userRepo, blogRepo, bcrypt.MinCost),
		service.NewBlogService(blogRepo, userRepo),
		auth.NewTokens("test-secret", time.Hour),
		options,
	)
	router := gin.New()
	handler.RegisterRoutes(router)
	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// registerAndLogin mirrors the acceptance fixture: reset, create dayron, log in.
func (s *testServer) registerAndLogin(username, name, password string) LoginResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/users", "", gin.H{"name": name, "username": username, "password": password})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/login", "", gin.H{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[LoginResponse](s.t, rec)
}

func (s *testServer) createBlog(token, title string) BlogResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/blogs", token, gin.H{
		"title":  title,
		"author": "Martin Hernandez",
		"url":    "http://" + title + ".com",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[BlogResponse](s.t, rec)
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t, true)
	login := srv.registerAndLogin("dayron", "Dayron Furcain", "furcain")
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "Dayron Furcain", login.Name)
	assert.Equal(t, "dayron", login.Username)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "wrong password", username: "dayron", password: "hernandez"},
		{name: "unknown user", username: "martin", password: "furcain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(http.MethodPost, "/api/login", "", gin.H{"username": tt.username, "password": tt.password})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"invalid username or password"}`, rec.Body.String())
		})
	}
}

func TestCreateUser(t *testing.T) {
	srv := newTestServer(t, true)
	rec := srv.do(http.MethodPost, "/api/users", "", gin.H{"name": "Dayron Furcain", "username": "dayron", "password": "furcain"})
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decode[UserResponse](t, rec)
	assert.Equal(t, "dayron", user.Username)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = srv.do(http.MethodPost, "/api/users", "", gin.H{"name": "Other", "username": "dayron", "password": "furcain"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(http.MethodPost, "/api/users", "", gin.H{"name": "Other", "username": "da", "password": "furcain"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/api/users", "", gin.H{"name": "No Password", "username": "nopass"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/api/users", "", gin.H{"name": "Long", "username": "longpw", "password": strings.Repeat("a", 80)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at most 72 bytes")
}

func TestCreateBlog(t *testing.T) {
	srv := newTestServer(t, true)
	login := srv.registerAndLogin("dayron", "Dayron Furcain", "furcain")

	blog := srv.createBlog(login.Token, "Blog 1")
	assert.Equal(t, "Blog 1", blog.Title)
	assert.Equal(t, "Martin Hernandez", blog.Author)
	assert.Equal(t, int64(0), blog.Likes)
	require.NotNil(t, blog.User)
	assert.Equal(t, "dayron", blog.User.Username)

	rec := srv.do(http.MethodPost, "/api/blogs", "", gin.H{"title": "x", "url": "y"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(http.MethodPost, "/api/blogs", "garbage", gin.H{"title": "x", "url": "y"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"token invalid"}`, rec.Body.String())

	rec = srv.do(http.MethodPost, "/api/blogs", "", gin.H{"title": "x", "url": "y"})
	assert.JSONEq(t, `{"error":"token missing"}`, rec.Body.String())

	rec = srv.do(http.MethodPost, "/api/blogs", login.Token, gin.H{"author": "nobody"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodGet, "/api/blogs/"+blog.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, blog.ID, decode[BlogResponse](t, rec).ID)
}

func TestLikeBlog(t *testing.T) {
	srv := newTestServer(t, true)
	login := srv.registerAndLogin("dayron", "Dayron Furcain", "furcain")
	blog := srv.createBlog(login.Token, "Blog 1")

	for want := int64(1); want <= 3; want++ {
		// liking needs no token
		rec := srv.do(http.MethodPut, "/api/blogs/"+blog.ID+"/likes", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, decode[BlogResponse](t, rec).Likes)
	}

	rec := srv.do(http.MethodGet, "/api/blogs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	blogs := decode[[]BlogResponse](t, rec)
	require.Len(t, blogs, 1)
	assert.Equal(t, int64(3), blogs[0].Likes)

	rec = srv.do(http.MethodPut, "/api/blogs/missing/likes", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
}

// expiredToken signs a well formed token for userID that expired an hour ago.
func expiredToken(t *testing.T, userID string) string {
	t.Helper()
	issued := time.Now().Add(-2 * time.Hour)
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "bloglist",
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestUnverifiedTokenIsAnonymousOnOpenRoutes(t *testing.T) {
	srv := newTestServer(t, true)
	login := srv.registerAndLogin("dayron", "Dayron Furcain", "furcain")
	blog := srv.createBlog(login.Token, "Blog 1")

	userID := decode[[]UserResponse](t, srv.do(http.MethodGet, "/api/users", "", nil))[0].ID
	stale := expiredToken(t, userID)

	for i, token := range []string{stale, "not-a-jwt"} {
		rec := srv.do(http.MethodPut, "/api/blogs/"+blog.ID+"/likes", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, int64(i+1), decode[BlogResponse](t, rec).Likes)

		rec = srv.do(http.MethodGet, "/api/blogs", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	// an expired token no longer proves ownership
	rec := srv.do(http.MethodDelete, "/api/blogs/"+blog.ID, stale, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(http.MethodPost, "/api/blogs", stale, gin.H{"title": "x", "url": "y"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"token invalid"}`, rec.Body.String())

	rec = srv.do(http.MethodPost, "/api/testing/reset", "not-a-jwt", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteBlog(t *testing.T) {
	srv := newTestServer(t, true)
	owner := srv.registerAndLogin("dayron", "Dayron Furcain", "furcain")
	other := srv.registerAndLogin("martin", "Martin Hernandez", "hernandez")
	blog := srv.createBlog(owner.Token, "Blog 1")

	rec := srv.do(http.MethodDelete, "/api/blogs/"+blog.ID, other.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(http.MethodDelete, "/api/blogs/"+blog.ID, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(http.MethodDelete, "/api/blogs/"+blog.ID, owner.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(http.MethodGet, "/api/blogs/"+blog.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(http.MethodDelete, "/api/blogs/"+blog.ID, owner.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBlogsOrganizedByLikes(t *testing.T) {
	srv := newTestServer(t, true)
	login := srv.registerAndLogin("dayron", "Dayron Furcain", "furcain")

	first := srv.createBlog(login.Token, "Blog 1")
	second := srv.createBlog(login.Token, "Blog 2")
	for range 3 {
		rec := srv.do(http.MethodPut, "/api/blogs/"+second.ID+"/likes", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	third := srv.createBlog(login.Token, "Blog 3")

	rec := srv.do(http.MethodGet, "/api/blogs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	blogs := decode[[]BlogResponse](t, rec)
	require.Len(t, blogs, 3)
	assert.Equal(t, second.ID, blogs[0].ID)
	assert.Equal(t, int64(3), blogs[0].Likes)
	assert.Equal(t, first.ID, blogs[1].ID)
	assert.Equal(t, third.ID, blogs[2].ID)
}

func TestListUsers(t *testing.T) {
	srv := newTestServer(t, true)
	login := srv.registerAndLogin("dayron", "Dayron Furcain", "furcain")
	blog := srv.createBlog(login.Token, "Blog 1")

	rec := srv.do(http.MethodGet, "/api/users", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]UserResponse](t, rec)
	require.Len(t, users, 1)
	require.Len(t, users[0].Blogs, 1)
	assert.Equal(t, blog.ID, users[0].Blogs[0].ID)
}

func TestTestingReset(t *testing.T) {
	srv := newTestServer(t, true)
	login := srv.registerAndLogin("dayron", "Dayron Furcain", "furcain")
	srv.createBlog(login.Token, "Blog 1")

	rec := srv.do(http.MethodPost, "/api/testing/reset", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(http.MethodGet, "/api/blogs", "", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())

	// the old token now refers to a user that is gone
	rec = srv.do(http.MethodPost, "/api/blogs", login.Token, gin.H{"title": "x", "url": "y"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// and the same account can be registered again
	srv.registerAndLogin("dayron", "Dayron Furcain", "furcain")
}

func TestTestingResetNotMountedByDefault(t *testing.T) {
	srv := newTestServer(t, false)
	rec := srv.do(http.MethodPost, "/api/testing/reset", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeExporter struct {
	location string
	err      error
	objects  []storage.ObjectInfo
	exports  int
}

func (f *fakeExporter) Start(context.Context) error { return nil }
func (f *fakeExporter) Shutdown()                   {}

func (f *fakeExporter) Export(context.Context) (string, error) {
	f.exports++
	return f.location, f.err
}

func (f *fakeExporter) List(context.Context) ([]storage.ObjectInfo, error) {
	return f.objects, f.err
}

func TestSnapshots(t *testing.T) {
	modified := time.Date(2026, 10, 17, 7, 0, 0, 0, time.UTC)
	exporter := &fakeExporter{
		location: "s3://bucket/bloglist-snapshots/blogs-1.json",
		objects:  []storage.ObjectInfo{{Key: "bloglist-snapshots/blogs-1.json", Size: 42, LastModified: &modified}},
	}
	srv := newTestServer(t, false, withSnapshots(exporter))

	rec := srv.do(http.MethodPost, "/api/snapshots", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"location":"s3://bucket/bloglist-snapshots/blogs-1.json"}`, rec.Body.String())
	assert.Equal(t, 1, exporter.exports)

	rec = srv.do(http.MethodGet, "/api/snapshots", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snapshots := decode[[]SnapshotResponse](t, rec)
	require.Len(t, snapshots, 1)
	assert.Equal(t, int64(42), snapshots[0].Size)
	require.NotNil(t, snapshots[0].LastModified)
	assert.Equal(t, "2026-10-17T07:00:00Z", *snapshots[0].LastModified)

	exporter.err = errors.New("bucket unreachable")
	rec = srv.do(http.MethodPost, "/api/snapshots", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "bucket unreachable")
}

func TestSnapshotsUnconfigured(t *testing.T) {
	srv := newTestServer(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, srv.do(http.MethodGet, "/api/snapshots", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, srv.do(http.MethodPost, "/api/snapshots", "", nil).Code)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer   abc "))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken("abc"))
	assert.Equal(t, "", bearerToken(""))
}
