// Package httpapi exposes rule management and on-demand materialization over
// HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alexanderramin/recur/internal/domain"
	"github.com/alexanderramin/recur/internal/materialize"
	"github.com/alexanderramin/recur/internal/repository"
	"github.com/alexanderramin/recur/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// DefaultPreviewDays is the preview window used when the query omits `to`.
const DefaultPreviewDays = 30

// Materializer is the part of the scheduler the API drives.
type Materializer interface {
	RunOnce(ctx context.Context) (materialize.Report, error)
	RunRule(ctx context.Context, ruleID string) (materialize.RuleReport, error)
	Resume(ctx context.Context, ruleID string) (domain.Checkpoint, error)
	Status(ctx context.Context, ruleID string) (domain.Checkpoint, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	rules service.RuleService
	sched Materializer
	db    Pinger
	log   zerolog.Logger
	now   func() time.Time
}

func NewHandler(rules service.RuleService, sched Materializer, db Pinger, log zerolog.Logger) *Handler {
	return &Handler{rules: rules, sched: sched, db: db, log: log, now: time.Now}
}

// NewEngine returns a gin engine with recovery, access logging and all routes.
func NewEngine(h *Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), accessLog(h.log))
	h.Register(engine)
	return engine
}

func (h *Handler) Register(engine *gin.Engine) {
	engine.GET("/healthz", h.Healthz)
	engine.GET("/readyz", h.Readyz)

	api := engine.Group("/api/v1")
	{
		api.GET("/rules", h.ListRules)
		api.POST("/rules", h.CreateRule)
		api.POST("/rules/preview", h.PreviewDraft)
		api.GET("/rules/:id", h.GetRule)
		api.PUT("/rules/:id", h.UpdateRule)
		api.DELETE("/rules/:id", h.DeleteRule)
		api.POST("/rules/:id/activate", h.ActivateRule)
		api.POST("/rules/:id/deactivate", h.DeactivateRule)
		api.GET("/rules/:id/preview", h.PreviewRule)
		api.GET("/rules/:id/tasks", h.ListTasks)
		api.POST("/rules/:id/materialize", h.MaterializeRule)
		api.POST("/rules/:id/resume", h.ResumeRule)
		api.POST("/materialize", h.MaterializeAll)
	}
}

// GET /healthz
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /readyz
func (h *Handler) Readyz(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": "db ping failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "timestamp": h.now().UTC()})
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and hidden from the client.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, domain.ErrInvalidRule), errors.Is(err, service.ErrInvalidWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, materialize.ErrRuleInactive), errors.Is(err, materialize.ErrRuleFlagged):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func accessLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
