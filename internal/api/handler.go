package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workshop-access-backend/internal/apperr"
	"workshop-access-backend/internal/core"
	"workshop-access-backend/internal/logger"
	"workshop-access-backend/internal/parse"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc *core.Service
	log *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc *core.Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type errorResponse struct {
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	Reasons  []string               `json:"reasons,omitempty"`
	Conflict *apperr.ConflictWindow `json:"conflict,omitempty"`
}

// fail renders typed core errors with their own status. Anything else is an
// infrastructure fault and is logged, not shown.
func (h *Handler) fail(c *gin.Context, err error) {
	if e, ok := apperr.As(err); ok {
		c.AbortWithStatusJSON(e.Status(), errorResponse{
			Code:     e.Code,
			Message:  e.Error(),
			Reasons:  e.Reasons,
			Conflict: e.Conflict,
		})
		return
	}
	_ = c.Error(err)
	h.log.Error("unhandled error", "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Code: "internal", Message: "internal server error"})
}

func badRequest(c *gin.Context, code string, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Code: code, Message: err.Error()})
}

// pathID reads a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := parse.ID(c.Param(name))
	if err != nil {
		badRequest(c, "invalid_"+name, err)
		return 0, false
	}
	return id, true
}

// queryID reads an optional positive integer query parameter; absent is 0.
func queryID(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := parse.ID(raw)
	if err != nil {
		badRequest(c, "invalid_"+name, err)
		return 0, false
	}
	return id, true
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "invalid_request", err)
		return false
	}
	return true
}
