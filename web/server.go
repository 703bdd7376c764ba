package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"blogicum/models"
)

// Blog is the query side the handlers depend on.
type Blog interface {
	ListRecent(ctx context.Context, now time.Time, limit int) ([]models.Post, error)
	GetVisible(ctx context.Context, id int64, now time.Time) (*models.Post, error)
	ListByCategory(ctx context.Context, slug string, now time.Time) (*models.Category, []models.Post, error)
	Search(ctx context.Context, query string, now time.Time, limit int) ([]models.Post, error)
}

type Server struct {
	blog     Blog
	pageSize int
	now      func() time.Time
	logger   *slog.Logger
}

func NewServer(blog Blog, pageSize int) *Server {
	return &Server{blog: blog, pageSize: pageSize, now: time.Now, logger: slog.Default()}
}

func (s *Server) WithLogger(l *slog.Logger) *Server {
	tmp := *s
	tmp.logger = l
	return &tmp
}

// WithClock replaces the time source used to evaluate publication.
func (s *Server) WithClock(now func() time.Time) *Server {
	tmp := *s
	tmp.now = now
	return &tmp
}

// Router builds the gin engine: HTML pages at the root, the same pages as
// JSON under /api.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.SetHTMLTemplate(Templates())

	html := HTMLRenderer{}
	r.GET("/", s.index(html))
	r.GET("/posts/:id/", s.detail(html))
	r.GET("/category/:slug/", s.category(html))
	r.GET("/search", s.search(html))
	r.NoRoute(html.NotFound)

	api := r.Group("/api")
	{
		js := JSONRenderer{}
		api.GET("/posts", s.index(js))
		api.GET("/posts/:id", s.detail(js))
		api.GET("/category/:slug", s.category(js))
		api.GET("/search", s.search(js))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": s.now()})
	})
	return r
}

func (s *Server) index(rd Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		posts, err := s.blog.ListRecent(c, s.now(), s.pageSize)
		if err != nil {
			s.fail(c, rd, err)
			return
		}
		rd.Render(c, "index.html", gin.H{"post_list": posts})
	}
}

func (s *Server) detail(rd Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			rd.NotFound(c)
			return
		}
		post, err := s.blog.GetVisible(c, id, s.now())
		if err != nil {
			s.fail(c, rd, err)
			return
		}
		rd.Render(c, "detail.html", gin.H{"post": post})
	}
}

func (s *Server) category(rd Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat, posts, err := s.blog.ListByCategory(c, c.Param("slug"), s.now())
		if err != nil {
			s.fail(c, rd, err)
			return
		}
		rd.Render(c, "category.html", gin.H{"category": cat, "post_list": posts})
	}
}

func (s *Server) search(rd Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := c.Query("q")
		posts, err := s.blog.Search(c, q, s.now(), s.pageSize)
		if err != nil {
			s.fail(c, rd, err)
			return
		}
		rd.Render(c, "search.html", gin.H{"query": q, "post_list": posts})
	}
}

// fail maps models.ErrNotFound to the renderer's 404 and anything else to 500.
func (s *Server) fail(c *gin.Context, rd Renderer, err error) {
	if errors.Is(err, models.ErrNotFound) {
		rd.NotFound(c)
		return
	}
	s.logger.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
