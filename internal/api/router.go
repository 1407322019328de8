package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/KickoffHub/internal/pipeline"
	"github.com/LJTian/KickoffHub/internal/ranking"
	"github.com/LJTian/KickoffHub/internal/storage"
	"github.com/gin-gonic/gin"
)

// Collector 触发一轮采集
type Collector interface {
	Run(ctx context.Context, opts pipeline.Options) (pipeline.Summary, error)
}

// Lister 个性化排序后的文章列表
type Lister interface {
	List(ctx context.Context, req ranking.Request) (ranking.Result, error)
}

// Editor 编辑侧写入：置顶与翻译
type Editor interface {
	SetFeatured(ctx context.Context, id string, featured bool) error
	SaveTranslation(ctx context.Context, id, lang string, tr storage.Translation) error
}

// 手动触发的采集不随客户端断开而取消，只受该超时约束
const defaultCollectTimeout = 5 * time.Minute

// HistoryReader viewer 最近浏览的文章 id
type HistoryReader interface {
	ViewHistory(ctx context.Context, viewer string, limit int) ([]string, error)
}

type Server struct {
	collector      Collector
	lister         Lister
	editor         Editor
	history        HistoryReader
	metrics        http.Handler
	collectTimeout time.Duration

	// 写接口的 Basic Auth，未配置时不校验
	adminUser string
	adminPass string
}

func NewServer(collector Collector, lister Lister, editor Editor, metrics http.Handler) *Server {
	return &Server{
		collector:      collector,
		lister:         lister,
		editor:         editor,
		metrics:        metrics,
		collectTimeout: defaultCollectTimeout,
	}
}

// WithCollectTimeout 设置手动采集的超时
func (s *Server) WithCollectTimeout(d time.Duration) *Server {
	if d > 0 {
		s.collectTimeout = d
	}
	return s
}

// WithViewHistory 开放 viewer 浏览历史查询
func (s *Server) WithViewHistory(h HistoryReader) *Server {
	s.history = h
	return s
}

// WithBasicAuth 为采集触发与编辑接口启用 Basic Auth
func (s *Server) WithBasicAuth(user, pass string) *Server {
	s.adminUser = user
	s.adminPass = pass
	return s
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/articles", s.listArticles)
		if s.history != nil {
			v1.GET("/viewers/:viewer/history", s.viewHistory)
		}

		admin := v1.Group("")
		if s.adminUser != "" && s.adminPass != "" {
			admin.Use(basicAuthMiddleware(s.adminUser, s.adminPass))
		}
		admin.POST("/collect", s.collect)
		admin.PUT("/articles/:id/featured", s.setFeatured)
		admin.PUT("/articles/:id/translations/:lang", s.saveTranslation)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func (s *Server) listArticles(c *gin.Context) {
	req, err := ranking.ParseRequest(c.Request.URL.Query())
	if err != nil {
		// 过滤参数不合法时返回空列表而不是报错
		respondOK(c, ranking.Result{Articles: []ranking.ScoredArticle{}})
		return
	}

	res, err := s.lister.List(c.Request.Context(), req)
	if err != nil {
		slog.Error("list articles failed", "error", err)
		respondError(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondOK(c, res)
}

func (s *Server) collect(c *gin.Context) {
	var opts pipeline.Options
	if c.Request.ContentLength > 0 && strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&opts); err != nil {
			respondError(c, http.StatusBadRequest, "invalid_argument", err.Error())
			return
		}
	} else {
		for _, raw := range c.QueryArray("sources") {
			for _, code := range strings.Split(raw, ",") {
				if code = strings.TrimSpace(code); code != "" {
					opts.SourceCodes = append(opts.SourceCodes, code)
				}
			}
		}
		opts.Category = strings.TrimSpace(c.Query("category"))
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.collectTimeout)
	defer cancel()
	sum, err := s.collector.Run(ctx, opts)
	if errors.Is(err, pipeline.ErrInvalidCategory) {
		respondError(c, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	if err != nil {
		slog.Error("manual collect failed", "error", err)
		respondError(c, http.StatusInternalServerError, "internal_error", "collect failed")
		return
	}
	respondOK(c, sum)
}

func (s *Server) viewHistory(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(c, http.StatusBadRequest, "invalid_argument", "invalid limit")
			return
		}
		limit = n
	}

	ids, err := s.history.ViewHistory(c.Request.Context(), c.Param("viewer"), limit)
	if err != nil {
		slog.Error("load view history failed", "viewer", c.Param("viewer"), "error", err)
		respondError(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondOK(c, gin.H{"viewer": c.Param("viewer"), "articleIds": ids})
}

func (s *Server) setFeatured(c *gin.Context) {
	var body struct {
		Featured *bool `json:"featured" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_argument", "featured is required")
		return
	}
	s.writeResult(c, s.editor.SetFeatured(c.Request.Context(), c.Param("id"), *body.Featured))
}

func (s *Server) saveTranslation(c *gin.Context) {
	var tr storage.Translation
	if err := c.ShouldBindJSON(&tr); err != nil || strings.TrimSpace(tr.Title) == "" {
		respondError(c, http.StatusBadRequest, "invalid_argument", "title is required")
		return
	}
	s.writeResult(c, s.editor.SaveTranslation(c.Request.Context(), c.Param("id"), c.Param("lang"), tr))
}

func (s *Server) writeResult(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", "article not found")
	case err != nil:
		slog.Error("article update failed", "id", c.Param("id"), "error", err)
		respondError(c, http.StatusInternalServerError, "internal_error", "internal server error")
	default:
		respondOK(c, gin.H{"id": c.Param("id")})
	}
}

// basicAuthMiddleware 写接口的简单 Basic Auth
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
