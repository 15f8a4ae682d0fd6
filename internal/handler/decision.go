package handler

import (
	"net/http"

	"asyncops/internal/middleware"
	"asyncops/internal/model"
	"asyncops/internal/service"

	"github.com/gin-gonic/gin"
)

type DecisionHandler struct{ svc *service.DecisionService }

func NewDecisionHandler(svc *service.DecisionService) *DecisionHandler {
	return &DecisionHandler{svc: svc}
}

// POST /api/decisions
func (h *DecisionHandler) Create(c *gin.Context) {
	var req model.DecisionCreate
	if !bind(c, &req) {
		return
	}
	d, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// GET /api/decisions?start_date=&end_date=&participant_id=&tag=&search=
func (h *DecisionHandler) List(c *gin.Context) {
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	f := service.DecisionFilter{Tag: c.Query("tag"), Search: c.Query("search"), PageQuery: q}
	if f.StartDate, ok = queryDate(c, "start_date"); !ok {
		return
	}
	if f.EndDate, ok = queryDate(c, "end_date"); !ok {
		return
	}
	if f.ParticipantID, ok = queryInt(c, "participant_id"); !ok {
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page(items, total, q))
}

// GET /api/decisions/:id
func (h *DecisionHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	d, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// PATCH /api/decisions/:id
func (h *DecisionHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req model.DecisionPatch
	if !bind(c, &req) {
		return
	}
	d, err := h.svc.Update(c.Request.Context(), id, middleware.CurrentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// DELETE /api/decisions/:id
func (h *DecisionHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, middleware.CurrentUser(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/decisions/:id/audit
func (h *DecisionHandler) Audit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entries, err := h.svc.Audit(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if entries == nil {
		entries = []model.DecisionAuditLog{}
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}
