package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"workshop-access-backend/internal/core"
	"workshop-access-backend/internal/mw"
	"workshop-access-backend/internal/parse"
)

// GetAvailability handles GET /api/managers/:manager_id/availability?from=&to=.
func (h *Handler) GetAvailability(c *gin.Context) {
	managerID, ok := pathID(c, "manager_id")
	if !ok {
		return
	}
	from, to, err := parse.Window(c.Query("from"), c.Query("to"))
	if err != nil {
		badRequest(c, "invalid_time", err)
		return
	}
	windows, err := h.svc.ResolveAvailability(c.Request.Context(), managerID, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, windows)
}

// GetMachineAvailability handles GET /api/machines/:machine_id/availability?from=&to=.
func (h *Handler) GetMachineAvailability(c *gin.Context) {
	machineID, ok := pathID(c, "machine_id")
	if !ok {
		return
	}
	from, to, err := parse.Window(c.Query("from"), c.Query("to"))
	if err != nil {
		badRequest(c, "invalid_time", err)
		return
	}
	windows, err := h.svc.ResolveMachineAvailability(c.Request.Context(), machineID, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, windows)
}

type createBlockRequest struct {
	MachineID int64  `json:"machineId" binding:"required"`
	ManagerID int64  `json:"managerId"`
	Start     string `json:"start" binding:"required"`
	End       string `json:"end" binding:"required"`
}

// CreateBlock handles POST /api/availability/blocks. ManagerID defaults to
// the caller.
func (h *Handler) CreateBlock(c *gin.Context) {
	var req createBlockRequest
	if !bind(c, &req) {
		return
	}
	start, end, err := parse.Window(req.Start, req.End)
	if err != nil {
		badRequest(c, "invalid_time", err)
		return
	}
	block, err := h.svc.CreateAvailabilityBlock(c.Request.Context(), mw.UserID(c), core.BlockInput{
		MachineID: req.MachineID,
		ManagerID: req.ManagerID,
		Start:     start,
		End:       end,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, block)
}

// DeleteBlock handles DELETE /api/availability/blocks/:block_id. The block is
// deactivated, never removed.
func (h *Handler) DeleteBlock(c *gin.Context) {
	id, ok := pathID(c, "block_id")
	if !ok {
		return
	}
	if err := h.svc.DeactivateAvailabilityBlock(c.Request.Context(), mw.UserID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createRuleRequest struct {
	ManagerID int64  `json:"managerId"`
	Day       string `json:"day" binding:"required"`
	Start     string `json:"start" binding:"required"`
	End       string `json:"end" binding:"required"`
	Timezone  string `json:"timezone"`
}

// CreateRule handles POST /api/availability/rules. Times are wall-clock
// "HH:MM" in the rule's timezone.
func (h *Handler) CreateRule(c *gin.Context) {
	var req createRuleRequest
	if !bind(c, &req) {
		return
	}
	day, err := parse.Weekday(req.Day)
	if err != nil {
		badRequest(c, "invalid_day", err)
		return
	}
	startMin, err := parse.MinuteOfDay(req.Start)
	if err != nil {
		badRequest(c, "invalid_time", err)
		return
	}
	endMin, err := parse.MinuteOfDay(req.End)
	if err != nil {
		badRequest(c, "invalid_time", err)
		return
	}
	rule, err := h.svc.CreateAvailabilityRule(c.Request.Context(), mw.UserID(c), core.RuleInput{
		ManagerID:        req.ManagerID,
		DayOfWeek:        int(day),
		StartMinuteOfDay: startMin,
		EndMinuteOfDay:   endMin,
		Timezone:         strings.TrimSpace(req.Timezone),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// DeleteRule handles DELETE /api/availability/rules/:rule_id.
func (h *Handler) DeleteRule(c *gin.Context) {
	id, ok := pathID(c, "rule_id")
	if !ok {
		return
	}
	if err := h.svc.DeactivateAvailabilityRule(c.Request.Context(), mw.UserID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
