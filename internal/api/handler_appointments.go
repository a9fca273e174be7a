package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workshop-access-backend/internal/core"
	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/mw"
	"workshop-access-backend/internal/parse"
	"workshop-access-backend/internal/store"
)

type createAppointmentRequest struct {
	MachineID int64  `json:"machineId" binding:"required"`
	BlockID   int64  `json:"blockId"`
	RuleID    int64  `json:"ruleId"`
	Start     string `json:"start" binding:"required"`
	End       string `json:"end" binding:"required"`
}

// CreateAppointment handles POST /api/appointments. Exactly one of blockId
// or ruleId names the window being booked.
func (h *Handler) CreateAppointment(c *gin.Context) {
	var req createAppointmentRequest
	if !bind(c, &req) {
		return
	}
	start, end, err := parse.Window(req.Start, req.End)
	if err != nil {
		badRequest(c, "invalid_time", err)
		return
	}
	ref := core.SlotRef{BlockID: req.BlockID, RuleID: req.RuleID}
	a, err := h.svc.CreateCheckoutAppointment(c.Request.Context(), mw.UserID(c), req.MachineID, ref, start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

type cancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

// CancelAppointment handles POST /api/appointments/:appointment_id/cancel.
func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := pathID(c, "appointment_id")
	if !ok {
		return
	}
	var req cancelAppointmentRequest
	if !bind(c, &req) {
		return
	}
	a, err := h.svc.CancelCheckoutAppointment(c.Request.Context(), mw.UserID(c), id, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// CompleteAppointment handles POST /api/appointments/:appointment_id/complete.
func (h *Handler) CompleteAppointment(c *gin.Context) {
	id, ok := pathID(c, "appointment_id")
	if !ok {
		return
	}
	a, err := h.svc.CompleteCheckoutAppointment(c.Request.Context(), mw.UserID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// ListAppointments handles GET /api/appointments.
func (h *Handler) ListAppointments(c *gin.Context) {
	var f store.AppointmentFilter
	var ok bool
	if f.UserID, ok = queryID(c, "userId"); !ok {
		return
	}
	if f.ManagerID, ok = queryID(c, "managerId"); !ok {
		return
	}
	if f.MachineID, ok = queryID(c, "machineId"); !ok {
		return
	}
	for _, s := range splitList(c.Query("status")) {
		f.Statuses = append(f.Statuses, model.AppointmentStatus(s))
	}

	rows, err := h.svc.ListAppointments(c.Request.Context(), mw.UserID(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
