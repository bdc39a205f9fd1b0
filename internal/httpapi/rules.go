package httpapi

import (
	"net/http"
	"time"

	"github.com/alexanderramin/recur/internal/domain"
	"github.com/gin-gonic/gin"
)

// GET /api/v1/rules
func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.rules.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]ruleDTO, 0, len(rules))
	for _, r := range rules {
		out = append(out, toRuleDTO(r))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

// POST /api/v1/rules
func (h *Handler) CreateRule(c *gin.Context) {
	d, ok := h.bindDraft(c)
	if !ok {
		return
	}
	rule, err := h.rules.Create(c.Request.Context(), d)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRuleDTO(rule))
}

// GET /api/v1/rules/:id
func (h *Handler) GetRule(c *gin.Context) {
	ctx := c.Request.Context()
	desc, err := h.rules.Describe(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := toRuleDetailDTO(desc)
	if h.sched != nil {
		cp, err := h.sched.Status(ctx, desc.Rule.ID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		out.Checkpoint = toCheckpointDTO(cp)
	}
	c.JSON(http.StatusOK, out)
}

// PUT /api/v1/rules/:id
func (h *Handler) UpdateRule(c *gin.Context) {
	d, ok := h.bindDraft(c)
	if !ok {
		return
	}
	rule, err := h.rules.Update(c.Request.Context(), c.Param("id"), d)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRuleDTO(rule))
}

// DELETE /api/v1/rules/:id
func (h *Handler) DeleteRule(c *gin.Context) {
	if err := h.rules.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/v1/rules/:id/activate
func (h *Handler) ActivateRule(c *gin.Context) { h.setActive(c, true) }

// POST /api/v1/rules/:id/deactivate
func (h *Handler) DeactivateRule(c *gin.Context) { h.setActive(c, false) }

func (h *Handler) setActive(c *gin.Context, active bool) {
	rule, err := h.rules.SetActive(c.Request.Context(), c.Param("id"), active)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRuleDTO(rule))
}

// GET /api/v1/rules/:id/preview?from=YYYY-MM-DD&to=YYYY-MM-DD
//
// from defaults to today and to (exclusive) to DefaultPreviewDays later.
func (h *Handler) PreviewRule(c *gin.Context) {
	from, to, ok := h.window(c, c.Query("from"), c.Query("to"))
	if !ok {
		return
	}
	occs, err := h.rules.Preview(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"from":        formatDate(from),
		"to":          formatDate(to),
		"occurrences": toOccurrenceDTOs(occs),
	})
}

// POST /api/v1/rules/preview
func (h *Handler) PreviewDraft(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := req.Rule.draft()
	if err != nil {
		h.writeError(c, err)
		return
	}
	from, to, ok := h.window(c, req.From, req.To)
	if !ok {
		return
	}
	occs, err := h.rules.PreviewDraft(c.Request.Context(), d, from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"from":        formatDate(from),
		"to":          formatDate(to),
		"occurrences": toOccurrenceDTOs(occs),
	})
}

// GET /api/v1/rules/:id/tasks
func (h *Handler) ListTasks(c *gin.Context) {
	tasks, err := h.rules.ListTasks(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": toTaskDTOs(tasks)})
}

func (h *Handler) bindDraft(c *gin.Context) (domain.RuleDraft, bool) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.RuleDraft{}, false
	}
	d, err := req.draft()
	if err != nil {
		h.writeError(c, err)
		return domain.RuleDraft{}, false
	}
	return d, true
}

func (h *Handler) window(c *gin.Context, fromStr, toStr string) (from, to time.Time, ok bool) {
	from = domain.DateOnly(h.now())
	if fromStr != "" {
		t, err := domain.ParseDate(fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from: must be YYYY-MM-DD"})
			return time.Time{}, time.Time{}, false
		}
		from = t
	}
	to = domain.AddDays(from, DefaultPreviewDays)
	if toStr != "" {
		t, err := domain.ParseDate(toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to: must be YYYY-MM-DD"})
			return time.Time{}, time.Time{}, false
		}
		to = t
	}
	return from, to, true
}
