package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/mw"
)

// GetMachines handles GET /api/machines.
func (h *Handler) GetMachines(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("includeInactive"))
	machines, err := h.svc.ListMachines(c.Request.Context(), includeInactive)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, machines)
}

// GetModules handles GET /api/modules.
func (h *Handler) GetModules(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("includeInactive"))
	modules, err := h.svc.ListModules(c.Request.Context(), includeInactive)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, modules)
}

type lifecycleRequest struct {
	Lifecycle model.Lifecycle `json:"lifecycle" binding:"required"`
}

// PutMachineLifecycle handles PUT /api/machines/:machine_id/lifecycle.
func (h *Handler) PutMachineLifecycle(c *gin.Context) {
	id, ok := pathID(c, "machine_id")
	if !ok {
		return
	}
	var req lifecycleRequest
	if !bind(c, &req) {
		return
	}
	m, err := h.svc.SetMachineLifecycle(c.Request.Context(), mw.UserID(c), id, req.Lifecycle)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// PutModuleLifecycle handles PUT /api/modules/:module_id/lifecycle.
func (h *Handler) PutModuleLifecycle(c *gin.Context) {
	id, ok := pathID(c, "module_id")
	if !ok {
		return
	}
	var req lifecycleRequest
	if !bind(c, &req) {
		return
	}
	m, err := h.svc.SetModuleLifecycle(c.Request.Context(), mw.UserID(c), id, req.Lifecycle)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// GetEligibility handles GET /api/machines/:machine_id/eligibility for the caller.
func (h *Handler) GetEligibility(c *gin.Context) {
	machineID, ok := pathID(c, "machine_id")
	if !ok {
		return
	}
	res, err := h.svc.CheckEligibility(c.Request.Context(), mw.UserID(c), machineID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
