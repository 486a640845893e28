package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/angeloszaimis/backend-scheduler/internal/backend"
	"github.com/angeloszaimis/backend-scheduler/internal/policy"
	"github.com/angeloszaimis/backend-scheduler/internal/scheduler"
	"github.com/angeloszaimis/backend-scheduler/internal/store"
)

// Handler translates the HTTP surface into scheduler facade calls and
// maps typed errors onto the response envelope.
type Handler struct {
	logger    *slog.Logger
	scheduler *scheduler.Scheduler
}

// NewHandler creates the HTTP handler for the scheduler facade.
func NewHandler(logger *slog.Logger, sched *scheduler.Scheduler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{logger: logger, scheduler: sched}
}

// NewRouter builds the gin engine with every scheduler route mounted.
func NewRouter(logger *slog.Logger, sched *scheduler.Scheduler) *gin.Engine {
	h := NewHandler(logger, sched)

	engine := gin.New()
	engine.Use(gin.Recovery())

	v1 := engine.Group("/v1")
	{
		v1.GET("/backends", h.ListAllBackends)
		v1.GET("/policies", h.ListPolicies)

		v1.POST("/:app_id/backends", h.RegisterBackend)
		v1.GET("/:app_id/backends", h.SelectBackends)
		v1.GET("/:app_id/backends/all", h.ListAppBackends)
		v1.DELETE("/:app_id/backends/:backend_id", h.RemoveBackend)
		v1.PATCH("/:app_id/backends/:backend_id", h.UpdateBackendState)
		v1.PATCH("/:app_id/backends/:backend_id/weight", h.UpdateBackendWeight)
		v1.PATCH("/:app_id/backends/:backend_id/app", h.UpdateBackendApp)
		v1.GET("/:app_id/policy", h.GetPolicy)
		v1.PATCH("/:app_id/policy", h.UpdatePolicy)
	}

	return engine
}

type registerBackendRequest struct {
	// Name is the historical field for the instance identifier; newer
	// clients send instance_id. Either satisfies the request.
	Name       string        `json:"name"`
	InstanceID string        `json:"instance_id"`
	Weight     int           `json:"weight"`
	State      backend.State `json:"state"`
}

func (r registerBackendRequest) instanceID() string {
	if r.InstanceID != "" {
		return r.InstanceID
	}
	return r.Name
}

func (r registerBackendRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.InstanceID,
			validation.When(r.Name == "", validation.Required.Error("either instance_id or name is required")),
		),
		validation.Field(&r.Weight,
			validation.Min(0),
		),
		validation.Field(&r.State,
			validation.In(backend.StateActive, backend.StateDown),
		),
	)
}

// RegisterBackend handles POST /v1/:app_id/backends.
func (h *Handler) RegisterBackend(c *gin.Context) {
	appID := c.Param("app_id")

	var req registerBackendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, failure(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusOK, failure(fmt.Sprintf("validation error: %v", err)))
		return
	}

	stored, cfg, err := h.scheduler.RegisterBackend(c.Request.Context(),
		backend.New(appID, req.instanceID(), req.Weight, req.State))
	if err != nil {
		h.fail(c, "register backend", err)
		return
	}

	c.JSON(http.StatusOK, success(gin.H{
		"backend": stored,
		"policy":  cfg,
	}, "Backend added successfully"))
}

// ListAllBackends handles GET /v1/backends.
func (h *Handler) ListAllBackends(c *gin.Context) {
	backends, err := h.scheduler.ListBackends(c.Request.Context())
	if err != nil {
		h.fail(c, "list backends", err)
		return
	}

	c.JSON(http.StatusOK, success(backends, "Successfully retrieved backends"))
}

// ListAppBackends handles GET /v1/:app_id/backends/all.
func (h *Handler) ListAppBackends(c *gin.Context) {
	backends, err := h.scheduler.ListAppBackends(c.Request.Context(), c.Param("app_id"))
	if err != nil {
		h.fail(c, "list app backends", err)
		return
	}

	c.JSON(http.StatusOK, success(backends, "Successfully retrieved backends"))
}

// SelectBackends handles GET /v1/:app_id/backends. Without a query
// parameter the app's persisted policy applies; ?policy=<type> runs a
// one-shot override.
func (h *Handler) SelectBackends(c *gin.Context) {
	appID := c.Param("app_id")

	var (
		selected []*backend.Backend
		err      error
	)

	if override := c.Query("policy"); override != "" {
		selected, err = h.scheduler.SelectBackendsWith(c.Request.Context(), appID, policy.Type(override))
	} else {
		selected, err = h.scheduler.SelectBackends(c.Request.Context(), appID)
	}
	if err != nil {
		h.fail(c, "select backends", err)
		return
	}

	c.JSON(http.StatusOK, success(selected, "Successfully retrieved backends"))
}

// RemoveBackend handles DELETE /v1/:app_id/backends/:backend_id.
func (h *Handler) RemoveBackend(c *gin.Context) {
	removed, err := h.scheduler.RemoveBackend(c.Request.Context(), c.Param("app_id"), c.Param("backend_id"))
	if err != nil {
		h.fail(c, "remove backend", err)
		return
	}

	c.JSON(http.StatusOK, success(removed, "Backend removed successfully"))
}

type updateStateRequest struct {
	State backend.State `json:"state"`
}

// UpdateBackendState handles PATCH /v1/:app_id/backends/:backend_id.
func (h *Handler) UpdateBackendState(c *gin.Context) {
	var req updateStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, failure(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	updated, err := h.scheduler.UpdateBackendState(c.Request.Context(),
		c.Param("app_id"), c.Param("backend_id"), req.State)
	if err != nil {
		h.fail(c, "update backend state", err)
		return
	}

	c.JSON(http.StatusOK, success(updated, fmt.Sprintf("Backend state updated to %s", req.State)))
}

type updateWeightRequest struct {
	Weight int `json:"weight"`
}

// UpdateBackendWeight handles PATCH /v1/:app_id/backends/:backend_id/weight.
func (h *Handler) UpdateBackendWeight(c *gin.Context) {
	var req updateWeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, failure(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	updated, err := h.scheduler.UpdateBackendWeight(c.Request.Context(),
		c.Param("app_id"), c.Param("backend_id"), req.Weight)
	if err != nil {
		h.fail(c, "update backend weight", err)
		return
	}

	c.JSON(http.StatusOK, success(updated, fmt.Sprintf("Backend weight updated to %d", req.Weight)))
}

type updateAppRequest struct {
	AppID string `json:"app_id"`
}

// UpdateBackendApp handles PATCH /v1/:app_id/backends/:backend_id/app.
func (h *Handler) UpdateBackendApp(c *gin.Context) {
	var req updateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, failure(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	updated, err := h.scheduler.UpdateBackendApp(c.Request.Context(),
		c.Param("app_id"), c.Param("backend_id"), req.AppID)
	if err != nil {
		h.fail(c, "update backend app", err)
		return
	}

	c.JSON(http.StatusOK, success(updated, fmt.Sprintf("Backend app_id updated to %s", req.AppID)))
}

// GetPolicy handles GET /v1/:app_id/policy.
func (h *Handler) GetPolicy(c *gin.Context) {
	cfg, err := h.scheduler.GetPolicy(c.Request.Context(), c.Param("app_id"))
	if err != nil {
		h.fail(c, "get policy", err)
		return
	}

	c.JSON(http.StatusOK, success(cfg, "Successfully retrieved policy"))
}

type updatePolicyRequest struct {
	Type  policy.Type `json:"type"`
	Limit int         `json:"limit"`
}

// UpdatePolicy handles PATCH /v1/:app_id/policy.
func (h *Handler) UpdatePolicy(c *gin.Context) {
	var req updatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, failure(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	stored, err := h.scheduler.UpdatePolicy(c.Request.Context(), c.Param("app_id"),
		policy.Config{Type: req.Type, Limit: req.Limit})
	if err != nil {
		h.fail(c, "update policy", err)
		return
	}

	c.JSON(http.StatusOK, success(stored, fmt.Sprintf("Policy updated to %s", stored.Type)))
}

// ListPolicies handles GET /v1/policies.
func (h *Handler) ListPolicies(c *gin.Context) {
	c.JSON(http.StatusOK, success(h.scheduler.SupportedPolicies(), "Successfully retrieved supported policies"))
}

// fail writes a failure envelope. Classified errors keep their message
// verbatim so clients can tell a conflict from a missing record; anything
// unclassified is logged as a defect and reported generically.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	var (
		notFound *store.NotFoundError
		conflict *store.ConflictError
		invalid  *store.ValidationError
		polErr   *policy.Error
	)

	switch {
	case errors.As(err, &notFound),
		errors.As(err, &conflict),
		errors.As(err, &invalid),
		errors.As(err, &polErr):
		h.logger.Warn(op+" failed", slog.String("error", err.Error()))
		c.JSON(http.StatusOK, failure(err.Error()))
	default:
		h.logger.Error(op+" failed with unclassified error", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, failure("internal error"))
	}
}
