package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"contact-intake-go/internal/intake"
	metricsPkg "contact-intake-go/internal/metrics"
	"contact-intake-go/internal/model"
	"contact-intake-go/internal/ratelimit"
	"contact-intake-go/internal/scheduler"
)

// Submitter accepts validated contact submissions
type Submitter interface {
	Submit(ctx context.Context, sub model.ContactSubmission, meta model.RequestMetadata) (intake.Result, error)
}

// MessageReader is the read side of the message store
type MessageReader interface {
	Get(ctx context.Context, id string) (*model.ContactMessage, error)
	List(ctx context.Context, opts model.ListOptions) ([]model.ContactMessage, int64, error)
	CountByStatus(ctx context.Context) (map[model.Status]int64, error)
}

// Sweeper is the stale message sweeper as seen by the admin API
type Sweeper interface {
	IsRunning() bool
	GetNextRun() time.Time
	GetLastRun() time.Time
	LastSweep() scheduler.SweepStats
	RunOnce(ctx context.Context) (scheduler.SweepStats, error)
}

// Dependencies groups everything the handlers need
type Dependencies struct {
	Pipeline      Submitter
	Limiter       *ratelimit.Limiter
	KeyFunc       ratelimit.KeyFunc
	Messages      MessageReader
	Sweeper       Sweeper
	Metrics       *metricsPkg.Metrics
	Ping          func(ctx context.Context) error
	InFlight      func() int
	AdminToken    string
	CountryHeader string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	pipeline      Submitter
	limiter       *ratelimit.Limiter
	keyFunc       ratelimit.KeyFunc
	messages      MessageReader
	sweeper       Sweeper
	metrics       *metricsPkg.Metrics
	ping          func(ctx context.Context) error
	inFlight      func() int
	adminToken    string
	countryHeader string
}

// NewHandlers creates new HTTP handlers
func NewHandlers(deps Dependencies) *Handlers {
	h := &Handlers{
		pipeline:      deps.Pipeline,
		limiter:       deps.Limiter,
		keyFunc:       deps.KeyFunc,
		messages:      deps.Messages,
		sweeper:       deps.Sweeper,
		metrics:       deps.Metrics,
		ping:          deps.Ping,
		inFlight:      deps.InFlight,
		adminToken:    deps.AdminToken,
		countryHeader: deps.CountryHeader,
	}
	if h.keyFunc == nil {
		h.keyFunc = ratelimit.DefaultKeyFunc("", false)
	}
	return h
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/contact", h.SubmitContact)

		admin := api.Group("", AdminAuth(h.adminToken))
		admin.GET("/messages", h.ListMessages)
		admin.GET("/messages/stats", h.GetMessageStats)
		admin.GET("/messages/:id", h.GetMessage)

		admin.GET("/sweeper/status", h.GetSweeperStatus)
		admin.POST("/sweeper/run-once", h.RunSweeperOnce)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Sweeper:   "stopped",
	}

	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			response.Status = "error"
			response.Database = "error"
			logrus.Errorf("Database health check failed: %v", err)
		}
	}

	if h.sweeper != nil && h.sweeper.IsRunning() {
		response.Sweeper = "running"
	}
	if h.inFlight != nil {
		response.Notifications = h.inFlight()
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
