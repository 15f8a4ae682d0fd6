package handler

import (
	"net/http"

	"asyncops/internal/middleware"
	"asyncops/internal/model"
	"asyncops/internal/service"

	"github.com/gin-gonic/gin"
)

type BlockerHandler struct{ svc *service.BlockerService }

func NewBlockerHandler(svc *service.BlockerService) *BlockerHandler {
	return &BlockerHandler{svc: svc}
}

// POST /api/blockers
func (h *BlockerHandler) Create(c *gin.Context) {
	var req model.BlockerCreate
	if !bind(c, &req) {
		return
	}
	b, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// GET /api/blockers?status=&archived=
func (h *BlockerHandler) List(c *gin.Context) {
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	f := service.BlockerFilter{Status: c.Query("status"), PageQuery: q}
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

// GET /api/blockers/:id
func (h *BlockerHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.svc.Get(c.Request.Context(), id)
	h.reply(c, b, err)
}

// PATCH /api/blockers/:id
func (h *BlockerHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req model.BlockerPatch
	if !bind(c, &req) {
		return
	}
	b, err := h.svc.Update(c.Request.Context(), id, req)
	h.reply(c, b, err)
}

// PATCH /api/blockers/:id/resolve
func (h *BlockerHandler) Resolve(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req model.BlockerResolveRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	b, err := h.svc.Resolve(c.Request.Context(), id, req.ResolutionNotes)
	h.reply(c, b, err)
}

// PATCH /api/blockers/:id/archive
func (h *BlockerHandler) Archive(c *gin.Context) { h.setArchived(c, true) }

// PATCH /api/blockers/:id/unarchive
func (h *BlockerHandler) Unarchive(c *gin.Context) { h.setArchived(c, false) }

func (h *BlockerHandler) setArchived(c *gin.Context, archived bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.svc.SetArchived(c.Request.Context(), id, archived)
	h.reply(c, b, err)
}

// DELETE /api/blockers/:id (admin)
func (h *BlockerHandler) Delete(c *gin.Context) {
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

func (h *BlockerHandler) reply(c *gin.Context, b *model.Blocker, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
