// Package api serves stored digests and tools over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arkaiv/arkaiv/pkg/logger"
	"github.com/arkaiv/arkaiv/pkg/metrics"
	"github.com/arkaiv/arkaiv/pkg/model"
	"github.com/arkaiv/arkaiv/pkg/scheduler"
	"github.com/arkaiv/arkaiv/pkg/store"
)

// DateLayout is the accepted form of the :date path parameter.
const DateLayout = model.DateLayout

// Trigger starts a digest run on demand.
type Trigger interface {
	Trigger(ctx context.Context) (*model.DailyDigest, error)
}

type Config struct {
	Tools   store.ToolCatalog
	Digests store.DigestRepository
	// Trigger is optional; without it the generate endpoint answers 503.
	Trigger  Trigger
	Location *time.Location
	Logger   logger.Logger
	Metrics  *metrics.Metrics
}

type handler struct {
	tools   store.ToolCatalog
	digests store.DigestRepository
	trigger Trigger
	loc     *time.Location
	log     logger.Logger
}

func errorBody(msg string) gin.H { return gin.H{"error": msg} }

// NewRouter builds the gin engine with middleware and every route registered.
// The gin mode is left to the caller.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	h := &handler{
		tools:   cfg.Tools,
		digests: cfg.Digests,
		trigger: cfg.Trigger,
		loc:     cfg.Location,
		log:     cfg.Logger,
	}

	r := gin.New()
	r.Use(recoveryMiddleware(cfg.Logger), loggerMiddleware(cfg.Logger), metricsMiddleware(cfg.Metrics))

	r.GET("/health", h.health)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	api.GET("/tools", h.listTools)
	api.GET("/search", h.search)
	api.GET("/digest/latest", h.latestDigest)
	api.GET("/digest/:date", h.digestByDate)
	api.POST("/digest/generate", h.generate)
	return r
}

func (h *handler) health(c *gin.Context) {
	body := gin.H{"status": "ok", "time": time.Now().UTC()}
	if r, ok := h.trigger.(interface{ Running() bool }); ok {
		body["generating"] = r.Running()
	}
	c.JSON(http.StatusOK, body)
}

func (h *handler) listTools(c *gin.Context) {
	var source model.Source
	if raw := c.Query("source"); raw != "" {
		src, err := model.ParseSource(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		source = src
	}
	limit, ok := parseLimit(c, store.DefaultListLimit)
	if !ok {
		return
	}

	tools, err := h.tools.ListTools(c.Request.Context(), source, limit)
	if err != nil {
		h.fail(c, err, "Failed to fetch tools")
		return
	}
	c.JSON(http.StatusOK, nonNil(tools))
}

func (h *handler) search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusOK, []model.ToolRecord{})
		return
	}
	limit, ok := parseLimit(c, store.DefaultSearchLimit)
	if !ok {
		return
	}

	tools, err := h.tools.Search(c.Request.Context(), query, limit)
	if err != nil {
		h.fail(c, err, "Failed to perform search")
		return
	}
	c.JSON(http.StatusOK, nonNil(tools))
}

func (h *handler) latestDigest(c *gin.Context) {
	d, err := h.digests.Latest(c.Request.Context())
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorBody("No digest found"))
		return
	}
	if err != nil {
		h.fail(c, err, "Failed to fetch digest")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) digestByDate(c *gin.Context) {
	day, err := time.ParseInLocation(DateLayout, c.Param("date"), h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid date, expected YYYY-MM-DD"))
		return
	}
	d, err := h.digests.ByDate(c.Request.Context(), day)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorBody("Digest not found for the specified date"))
		return
	}
	if err != nil {
		h.fail(c, err, "Failed to fetch digest")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) generate(c *gin.Context) {
	if h.trigger == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("Digest generation is not enabled"))
		return
	}
	d, err := h.trigger.Trigger(c.Request.Context())
	if errors.Is(err, scheduler.ErrRunning) {
		c.JSON(http.StatusConflict, errorBody(err.Error()))
		return
	}
	if err != nil {
		h.fail(c, err, "Failed to generate digest")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) fail(c *gin.Context, err error, msg string) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, errorBody(msg))
}

func parseLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, errorBody("limit must be a positive integer"))
		return 0, false
	}
	return min(n, store.DefaultListLimit), true
}

func nonNil(tools []model.ToolRecord) []model.ToolRecord {
	if tools == nil {
		return []model.ToolRecord{}
	}
	return tools
}
