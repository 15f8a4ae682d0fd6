package handler

import (
	"net/http"

	"asyncops/internal/middleware"
	"asyncops/internal/model"
	"asyncops/internal/service"

	"github.com/gin-gonic/gin"
)

type StatusHandler struct{ svc *service.StatusService }

func NewStatusHandler(svc *service.StatusService) *StatusHandler { return &StatusHandler{svc: svc} }

// POST /api/status
func (h *StatusHandler) Create(c *gin.Context) {
	var req model.StatusUpdateCreate
	if !bind(c, &req) {
		return
	}
	su, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, su)
}

// GET /api/status?author_id=&start_date=&end_date=
func (h *StatusHandler) List(c *gin.Context) {
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	f := service.StatusFilter{PageQuery: q}
	if f.AuthorID, ok = queryInt(c, "author_id"); !ok {
		return
	}
	if f.StartDate, ok = queryTime(c, "start_date"); !ok {
		return
	}
	if f.EndDate, ok = queryTime(c, "end_date"); !ok {
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page(items, total, q))
}

// GET /api/status/:id
func (h *StatusHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	su, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, su)
}

// PATCH /api/status/:id
func (h *StatusHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req model.StatusUpdatePatch
	if !bind(c, &req) {
		return
	}
	su, err := h.svc.Update(c.Request.Context(), id, middleware.CurrentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, su)
}

// DELETE /api/status/:id
func (h *StatusHandler) Delete(c *gin.Context) {
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
