package handler

import (
	"net/http"
	"time"

	"asyncops/internal/logger"
	"asyncops/internal/middleware"
	"asyncops/internal/model"
	"asyncops/internal/service"

	"github.com/gin-gonic/gin"
)

type SummaryHandler struct{ svc *service.SummaryService }

func NewSummaryHandler(svc *service.SummaryService) *SummaryHandler {
	return &SummaryHandler{svc: svc}
}

// POST /api/summaries/generate?summary_date=YYYY-MM-DD&force=true (admin)
func (h *SummaryHandler) Generate(c *gin.Context) {
	day, ok := queryDate(c, "summary_date")
	if !ok {
		return
	}
	force, ok := queryBool(c, "force")
	if !ok {
		return
	}
	var when time.Time
	if day != nil {
		when = *day
	}
	s, err := h.svc.Ensure(c.Request.Context(), when, force)
	if err != nil {
		fail(c, err)
		return
	}
	logger.Info("summary.generate", "uid", middleware.CurrentUser(c).ID,
		"date", model.FormatDate(s.SummaryDate), "force", force)
	c.JSON(http.StatusCreated, s.Response())
}

// GET /api/summaries?start_date=&end_date=
func (h *SummaryHandler) List(c *gin.Context) {
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	f := service.SummaryFilter{PageQuery: q}
	if f.StartDate, ok = queryDate(c, "start_date"); !ok {
		return
	}
	if f.EndDate, ok = queryDate(c, "end_date"); !ok {
		return
	}
	rows, total, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	items := make([]model.SummaryListItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ListItem())
	}
	c.JSON(http.StatusOK, page(items, total, q))
}

// GET /api/summaries/:id
func (h *SummaryHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Response())
}
