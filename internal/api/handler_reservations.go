package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/mw"
	"workshop-access-backend/internal/parse"
	"workshop-access-backend/internal/store"
)

type createReservationRequest struct {
	MachineID int64  `json:"machineId" binding:"required"`
	Start     string `json:"start" binding:"required"`
	End       string `json:"end" binding:"required"`
	Note      string `json:"note"`
}

// CreateReservation handles POST /api/reservations.
func (h *Handler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if !bind(c, &req) {
		return
	}
	start, end, err := parse.Window(req.Start, req.End)
	if err != nil {
		badRequest(c, "invalid_time", err)
		return
	}
	r, err := h.svc.CreateReservation(c.Request.Context(), mw.UserID(c), req.MachineID, start, end, req.Note)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

type transitionRequest struct {
	Status model.ReservationStatus `json:"status" binding:"required"`
	Note   string                  `json:"note"`
}

// TransitionReservation handles POST /api/reservations/:reservation_id/transition.
func (h *Handler) TransitionReservation(c *gin.Context) {
	id, ok := pathID(c, "reservation_id")
	if !ok {
		return
	}
	var req transitionRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.svc.TransitionReservation(c.Request.Context(), mw.UserID(c), id, req.Status, req.Note)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// ListReservations handles GET /api/reservations.
func (h *Handler) ListReservations(c *gin.Context) {
	var f store.ReservationFilter
	var ok bool
	if f.UserID, ok = queryID(c, "userId"); !ok {
		return
	}
	if f.MachineID, ok = queryID(c, "machineId"); !ok {
		return
	}
	for _, s := range splitList(c.Query("status")) {
		f.Statuses = append(f.Statuses, model.ReservationStatus(s))
	}
	if from, to := c.Query("from"), c.Query("to"); from != "" || to != "" {
		start, end, err := parse.Window(from, to)
		if err != nil {
			badRequest(c, "invalid_time", err)
			return
		}
		f.From, f.To = start, end
	}

	rows, err := h.svc.ListReservations(c.Request.Context(), mw.UserID(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
