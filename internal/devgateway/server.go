// Package devgateway is a local implementation of the notification
// gateway REST contract, for development and end-to-end tests.
package devgateway

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nhle/campus-notifier/internal/model"
)

const (
	requestTimeout  = 5 * time.Second
	defaultPageSize = 10
	maxPageSize     = 100
	userKey         = "user_id"
)

// Server serves the gateway API under /api.
type Server struct {
	repo   *Repository
	log    *zap.Logger
	engine *gin.Engine
}

// NewServer builds the router.
func NewServer(repo *Repository, l *zap.Logger) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{repo: repo, log: l, engine: gin.New()}
	s.engine.Use(requestLogger(l), gin.Recovery())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api", bearerAuth())
	s.registerRoutes(api)
	return s
}

func (s *Server) registerRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications/me", s.listNotifications)
	rg.GET("/notifications/unread-count", s.unreadCount)
	rg.PUT("/notifications/mark-all-read", s.markAllRead)
	rg.PUT("/notifications/:id/read", s.markRead)
	rg.DELETE("/notifications/clear-all", s.clearAll)
	rg.DELETE("/notifications/:id", s.deleteNotification)
	rg.POST("/notifications/subscribe/event/:eventId", s.subscribe)
	rg.DELETE("/notifications/subscribe/event/:eventId", s.unsubscribe)
	rg.GET("/notification-preferences", s.preferences)
	rg.PUT("/notification-preferences", s.updatePreferences)
	rg.POST("/dev/notifications", s.createNotification)
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dev gateway listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("dev gateway shutting down")
	return srv.Shutdown(shutdownCtx)
}

// bearerAuth accepts any non-empty bearer token and uses it as the user ID.
func bearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing authorization header"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid authorization header format"})
			return
		}

		c.Set(userKey, strings.TrimSpace(parts[1]))
		c.Next()
	}
}

func requestLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// notificationDTO is the wire shape; ids are numeric like the campus
// services send them.
type notificationDTO struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Content          string  `json:"content"`
	NotificationType string  `json:"notificationType"`
	ReferenceType    string  `json:"referenceType,omitempty"`
	ReferenceID      string  `json:"referenceId,omitempty"`
	CreatedAt        string  `json:"createdAt"`
	ReadAt           *string `json:"readAt"`
	Important        bool    `json:"important"`
}

func toDTO(n model.Notification) notificationDTO {
	id, _ := strconv.ParseInt(string(n.ID), 10, 64)
	return notificationDTO{
		ID:               id,
		Title:            n.Title,
		Content:          n.Content,
		NotificationType: string(n.NotificationType),
		ReferenceType:    n.ReferenceType,
		ReferenceID:      n.ReferenceID,
		CreatedAt:        n.CreatedAt,
		ReadAt:           n.ReadAt,
		Important:        n.Important,
	}
}

type pageDTO struct {
	Content       []notificationDTO `json:"content"`
	TotalElements int               `json:"totalElements"`
	TotalPages    int               `json:"totalPages"`
	Number        int               `json:"number"`
	Size          int               `json:"size"`
	Last          bool              `json:"last"`
}

func (s *Server) listNotifications(c *gin.Context) {
	page, err := queryInt(c, "page", 0)
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "page must be a non-negative integer"})
		return
	}
	size, err := queryInt(c, "size", defaultPageSize)
	if err != nil || size <= 0 || size > maxPageSize {
		c.JSON(http.StatusBadRequest, gin.H{"message": "size must be between 1 and 100"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	items, total, err := s.repo.ListNotifications(ctx, c.GetString(userKey), page, size)
	if err != nil {
		s.fail(c, err)
		return
	}

	content := make([]notificationDTO, 0, len(items))
	for _, n := range items {
		content = append(content, toDTO(n))
	}
	pages := int(math.Ceil(float64(total) / float64(size)))
	c.JSON(http.StatusOK, pageDTO{
		Content:       content,
		TotalElements: total,
		TotalPages:    pages,
		Number:        page,
		Size:          size,
		Last:          page+1 >= pages,
	})
}

func (s *Server) unreadCount(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	n, err := s.repo.UnreadCount(ctx, c.GetString(userKey))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) markRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := s.repo.MarkRead(ctx, c.GetString(userKey), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) markAllRead(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := s.repo.MarkAllRead(ctx, c.GetString(userKey)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteNotification(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := s.repo.DeleteNotification(ctx, c.GetString(userKey), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) clearAll(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := s.repo.ClearAll(ctx, c.GetString(userKey)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) subscribe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := s.repo.Subscribe(ctx, c.GetString(userKey), c.Param("eventId")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "subscribed"})
}

func (s *Server) unsubscribe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := s.repo.Unsubscribe(ctx, c.GetString(userKey), c.Param("eventId")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) preferences(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	prefs, err := s.repo.Preferences(ctx, c.GetString(userKey))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) updatePreferences(c *gin.Context) {
	var prefs []model.Preference
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "body must be an array of preference records"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := s.repo.ReplacePreferences(ctx, c.GetString(userKey), prefs); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

type createRequest struct {
	Title            string `json:"title" binding:"required"`
	Content          string `json:"content"`
	NotificationType string `json:"notificationType"`
	ReferenceType    string `json:"referenceType"`
	ReferenceID      string `json:"referenceId"`
	Important        bool   `json:"important"`
}

func (s *Server) createNotification(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	n, err := s.repo.CreateNotification(ctx, c.GetString(userKey), model.Notification{
		Title:            req.Title,
		Content:          req.Content,
		NotificationType: model.NotificationType(req.NotificationType),
		ReferenceType:    req.ReferenceType,
		ReferenceID:      req.ReferenceID,
		Important:        req.Important,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDTO(n))
}

func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
		return
	}
	s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid notification id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
