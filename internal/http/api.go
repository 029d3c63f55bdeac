package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bloglist/internal/auth"
	"bloglist/internal/domain"
	"bloglist/internal/service"
	"bloglist/internal/snapshot"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users     service.UserService
	blogs     service.BlogService
	tokens    *auth.Tokens
	reset     *service.ResetService
	snapshots snapshot.Exporter
	logger    *logrus.Logger
}

// Options carries the optional collaborators of a Handler. A nil Reset keeps
// the testing routes unmounted; a nil Snapshots makes snapshot routes answer 503.
type Options struct {
	Reset     *service.ResetService
	Snapshots snapshot.Exporter
	Logger    *logrus.Logger
}

func NewHandler(users service.UserService, blogs service.BlogService, tokens *auth.Tokens, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:     users,
		blogs:     blogs,
		tokens:    tokens,
		reset:     opts.Reset,
		snapshots: opts.Snapshots,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), corsMiddleware())

	api := router.Group("/api")
	api.Use(h.identityMiddleware())
	{
		api.POST("/users", h.createUser)
		api.GET("/users", h.listUsers)
		api.POST("/login", h.login)

		api.GET("/blogs", h.listBlogs)
		api.GET("/blogs/:id", h.getBlog)
		api.POST("/blogs", requireIdentity(), h.createBlog)
		api.PUT("/blogs/:id/likes", h.likeBlog)
		api.DELETE("/blogs/:id", h.deleteBlog)

		api.GET("/snapshots", h.listSnapshots)
		api.POST("/snapshots", h.createSnapshot)

		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}

	if h.reset != nil {
		api.POST("/testing/reset", h.resetAll)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createBlogRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Name, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, userToResponse(*user, nil))
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i].User, users[i].Blogs)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	token, err := h.tokens.Issue(*identity)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:    token,
		Username: identity.Username,
		Name:     identity.Name,
	})
}

func (h *Handler) listBlogs(c *gin.Context) {
	blogs, err := h.blogs.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	creators := h.resolveCreators(c.Request.Context(), blogs)
	resp := make([]BlogResponse, len(blogs))
	for i := range blogs {
		resp[i] = blogToResponse(blogs[i], creators[blogs[i].CreatorID])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getBlog(c *gin.Context) {
	blog, err := h.blogs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.respondBlog(c, http.StatusOK, *blog)
}

func (h *Handler) createBlog(c *gin.Context) {
	var req createBlogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	blog, err := h.blogs.Create(c.Request.Context(), identityFrom(c), service.BlogInput{
		Title:  req.Title,
		Author: req.Author,
		URL:    req.URL,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.respondBlog(c, http.StatusCreated, *blog)
}

func (h *Handler) likeBlog(c *gin.Context) {
	blog, err := h.blogs.IncrementLikes(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.respondBlog(c, http.StatusOK, *blog)
}

func (h *Handler) deleteBlog(c *gin.Context) {
	if err := h.blogs.Remove(c.Request.Context(), c.Param("id"), identityFrom(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) resetAll(c *gin.Context) {
	if err := h.reset.Reset(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listSnapshots(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot storage not configured"})
		return
	}

	objects, err := h.snapshots.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]SnapshotResponse, len(objects))
	for i := range objects {
		resp[i] = SnapshotResponse{Key: objects[i].Key, Size: objects[i].Size}
		if objects[i].LastModified != nil && !objects[i].LastModified.IsZero() {
			v := objects[i].LastModified.Format(time.RFC3339)
			resp[i].LastModified = &v
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot storage not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	location, err := h.snapshots.Export(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"location": location})
}

func (h *Handler) respondBlog(c *gin.Context, status int, blog domain.Blog) {
	creators := h.resolveCreators(c.Request.Context(), []domain.Blog{blog})
	c.JSON(status, blogToResponse(blog, creators[blog.CreatorID]))
}

// resolveCreators looks up each distinct creator once. Creators that cannot be
// resolved are left out and rendered without a user.
func (h *Handler) resolveCreators(ctx context.Context, blogs []domain.Blog) map[string]*domain.User {
	creators := make(map[string]*domain.User)
	for _, blog := range blogs {
		if _, seen := creators[blog.CreatorID]; seen {
			continue
		}
		user, err := h.users.GetByID(ctx, blog.CreatorID)
		if err != nil {
			h.logger.WithError(err).WithField("user_id", blog.CreatorID).Warn("resolve blog creator")
		}
		creators[blog.CreatorID] = user
	}
	return creators
}

func (h *Handler) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := http.StatusInternalServerError
	message := "internal server error"
	switch {
	case errors.Is(err, service.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUserAlreadyExists):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrUnknownIdentity), errors.Is(err, auth.ErrInvalidToken):
		status, message = http.StatusUnauthorized, "token invalid"
	case errors.Is(err, service.ErrForbidden):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrBlogNotFound):
		status, message = http.StatusNotFound, "not found"
	default:
		h.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("unhandled error")
	}
	c.JSON(status, gin.H{"error": message})
}
