package handler

import (
	"net/http"

	"asyncops/internal/middleware"
	"asyncops/internal/model"
	"asyncops/internal/service"

	"github.com/gin-gonic/gin"
)

type IncidentHandler struct{ svc *service.IncidentService }

func NewIncidentHandler(svc *service.IncidentService) *IncidentHandler {
	return &IncidentHandler{svc: svc}
}

// POST /api/incidents
func (h *IncidentHandler) Create(c *gin.Context) {
	var req model.IncidentCreate
	if !bind(c, &req) {
		return
	}
	in, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, in)
}

// GET /api/incidents?status=&severity=&assigned_to_id=&archived=
func (h *IncidentHandler) List(c *gin.Context) {
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	f := service.IncidentFilter{Status: c.Query("status"), Severity: c.Query("severity"), PageQuery: q}
	if f.AssignedToID, ok = queryInt(c, "assigned_to_id"); !ok {
		return
	}
	if f.Archived, ok = queryBool(c, "archived"); !ok {
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page(items, total, q))
}

// GET /api/incidents/:id
func (h *IncidentHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	in, err := h.svc.Get(c.Request.Context(), id)
	h.reply(c, in, err)
}

// PATCH /api/incidents/:id
func (h *IncidentHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req model.IncidentPatch
	if !bind(c, &req) {
		return
	}
	in, err := h.svc.Update(c.Request.Context(), id, req)
	h.reply(c, in, err)
}

// PATCH /api/incidents/:id/status
func (h *IncidentHandler) SetStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req model.IncidentStatusRequest
	if !bind(c, &req) {
		return
	}
	in, err := h.svc.SetStatus(c.Request.Context(), id, req)
	h.reply(c, in, err)
}

// PATCH /api/incidents/:id/assign
func (h *IncidentHandler) Assign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req model.IncidentAssignRequest
	if !bind(c, &req) {
		return
	}
	in, err := h.svc.Assign(c.Request.Context(), id, req.AssignedToID)
	h.reply(c, in, err)
}

// PATCH /api/incidents/:id/archive
func (h *IncidentHandler) Archive(c *gin.Context) { h.setArchived(c, true) }

// PATCH /api/incidents/:id/unarchive
func (h *IncidentHandler) Unarchive(c *gin.Context) { h.setArchived(c, false) }

func (h *IncidentHandler) setArchived(c *gin.Context, archived bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	in, err := h.svc.SetArchived(c.Request.Context(), id, archived)
	h.reply(c, in, err)
}

// DELETE /api/incidents/:id (admin)
func (h *IncidentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *IncidentHandler) reply(c *gin.Context, in *model.Incident, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}
