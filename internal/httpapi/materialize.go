package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// POST /api/v1/rules/:id/materialize
func (h *Handler) MaterializeRule(c *gin.Context) {
	rr, err := h.sched.RunRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRuleReportDTO(rr))
}

// POST /api/v1/rules/:id/resume
func (h *Handler) ResumeRule(c *gin.Context) {
	cp, err := h.sched.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCheckpointDTO(cp))
}

// POST /api/v1/materialize
func (h *Handler) MaterializeAll(c *gin.Context) {
	report, err := h.sched.RunOnce(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReportDTO(report))
}
