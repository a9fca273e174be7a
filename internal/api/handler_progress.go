package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workshop-access-backend/internal/mw"
	"workshop-access-backend/internal/watch"
)

type validateProgressRequest struct {
	PreviousWatchedSeconds float64              `json:"previousWatchedSeconds"`
	VideoDurationSeconds   float64              `json:"videoDurationSeconds"`
	Update                 watch.ProgressUpdate `json:"update"`
}

// ValidateProgress handles POST /api/progress/validate. It is a dry run and
// stores nothing.
func (h *Handler) ValidateProgress(c *gin.Context) {
	var req validateProgressRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.ValidateProgressUpdate(req.PreviousWatchedSeconds, req.Update, req.VideoDurationSeconds))
}

// PutProgress handles PUT /api/modules/:module_id/progress.
func (h *Handler) PutProgress(c *gin.Context) {
	moduleID, ok := pathID(c, "module_id")
	if !ok {
		return
	}
	var req watch.ProgressUpdate
	if !bind(c, &req) {
		return
	}
	if _, err := h.svc.RecordProgress(c.Request.Context(), mw.UserID(c), moduleID, req); err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.svc.GetProgress(c.Request.Context(), mw.UserID(c), moduleID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetProgress handles GET /api/modules/:module_id/progress.
func (h *Handler) GetProgress(c *gin.Context) {
	moduleID, ok := pathID(c, "module_id")
	if !ok {
		return
	}
	view, err := h.svc.GetProgress(c.Request.Context(), mw.UserID(c), moduleID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListProgress handles GET /api/progress.
func (h *Handler) ListProgress(c *gin.Context) {
	views, err := h.svc.ListProgress(c.Request.Context(), mw.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}
