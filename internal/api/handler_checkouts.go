package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workshop-access-backend/internal/mw"
)

// PutCheckout handles PUT /api/users/:user_id/checkouts/:machine_id.
// Re-approving an existing checkout is a no-op that returns 200.
func (h *Handler) PutCheckout(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	machineID, ok := pathID(c, "machine_id")
	if !ok {
		return
	}
	created, err := h.svc.ApproveCheckout(c.Request.Context(), mw.UserID(c), userID, machineID)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"userId": userID, "machineId": machineID, "created": created})
}

// DeleteCheckout handles DELETE /api/users/:user_id/checkouts/:machine_id.
func (h *Handler) DeleteCheckout(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	machineID, ok := pathID(c, "machine_id")
	if !ok {
		return
	}
	if err := h.svc.RevokeCheckout(c.Request.Context(), mw.UserID(c), userID, machineID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Sweep handles POST /api/admin/sweep, completing bookings whose end has
// passed.
func (h *Handler) Sweep(c *gin.Context) {
	res, err := h.svc.SweepElapsed(c.Request.Context(), mw.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
